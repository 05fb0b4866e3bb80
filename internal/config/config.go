package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the configuration for the application.
type Config struct {
	// Telegram
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64

	// Storage: DatabaseURL selects Postgres; otherwise SQLite at DBPath.
	DatabaseURL string
	DBPath      string

	Port string
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}

	cfg := &Config{
		TelegramBotToken:   token,
		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBPath:             os.Getenv("SHOPLIST_DB_PATH"),
		Port:               os.Getenv("PORT"),
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "data/shoplist.db"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	// Optional allowlist; empty means the bot answers anyone.
	if raw := os.Getenv("TELEGRAM_ALLOWED_USER_IDS"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("TELEGRAM_ALLOWED_USER_IDS contains invalid id %q", part)
			}
			cfg.TelegramAllowedUserIDs = append(cfg.TelegramAllowedUserIDs, id)
		}
	}

	if raw := os.Getenv("ADMIN_TELEGRAM_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not a number: %q", raw)
		}
		cfg.AdminTelegramID = id
	}

	return cfg, nil
}
