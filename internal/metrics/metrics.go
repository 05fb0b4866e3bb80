// Package metrics exposes command counters via Prometheus and a runtime
// health snapshot for the admin /stats command.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder counts handled commands and their latency.
type Recorder struct {
	registry *prometheus.Registry
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRecorder builds a Recorder with its own registry, including Go runtime
// collectors.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shoplist_commands_total",
		Help: "Handled chat commands by command name and outcome.",
	}, []string{"command", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shoplist_command_duration_seconds",
		Help:    "Command handling latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})

	registry.MustRegister(commands, duration)

	return &Recorder{
		registry: registry,
		commands: commands,
		duration: duration,
	}
}

// Observe records one handled command.
func (r *Recorder) Observe(command, status string, d time.Duration) {
	r.commands.WithLabelValues(command, status).Inc()
	r.duration.WithLabelValues(command).Observe(d.Seconds())
}

// Handler returns the /metrics HTTP handler for this recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
