package telegram

import (
	"strings"
	"testing"

	"github.com/VladimirNagibin/shop-list-bot/internal/metrics"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		name      string
		allowlist []int64
		userID    int64
		want      bool
	}{
		{"EmptyAllowlistAcceptsAnyone", nil, 42, true},
		{"ListedUser", []int64{100, 200}, 200, true},
		{"UnlistedUser", []int64{100, 200}, 300, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := allowed(tt.allowlist, tt.userID); got != tt.want {
				t.Errorf("allowed(%v, %d) = %v, want %v", tt.allowlist, tt.userID, got, tt.want)
			}
		})
	}
}

func TestFormatSysHealth(t *testing.T) {
	h := metrics.SysHealth{
		AllocMB:      12,
		SysMB:        64,
		NumGC:        7,
		Goroutines:   9,
		DataDiskSize: "1.2 MB",
	}

	out := formatSysHealth(h)

	if !strings.Contains(out, "📊 *System Health*") {
		t.Error("Missing health header")
	}
	if !strings.Contains(out, "RAM: 12MB (Alloc) / 64MB (Sys)") {
		t.Error("Missing RAM line")
	}
	if !strings.Contains(out, "Goroutines: 9") {
		t.Error("Missing goroutine count")
	}
	if !strings.Contains(out, "GC cycles: 7") {
		t.Error("Missing GC count")
	}
	if !strings.Contains(out, "Disk Data: 1.2 MB") {
		t.Error("Missing disk usage")
	}
}
