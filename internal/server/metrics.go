// Package server keeps lock-free runtime counters and serves them as JSON.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Tyrowin/linechat/internal/chat"
)

// Metrics tracks transport statistics. Registry figures are pulled from the
// registry itself when a snapshot is taken.
type Metrics struct {
	startTime time.Time
	registry  *chat.Registry

	TotalConnections  atomic.Int64 // lifetime connections accepted, TCP and WebSocket
	ActiveConnections atomic.Int64
	TotalDisconnects  atomic.Int64
	RejectedOrigins   atomic.Int64 // WebSocket upgrades refused by the origin policy

	LinesIn      atomic.Int64
	LinesOut     atomic.Int64
	LinesDropped atomic.Int64 // lines refused by a full or closed outbound queue
	RateLimited  atomic.Int64 // inbound lines discarded by the rate limiter
	Evictions    atomic.Int64 // slow consumers disconnected
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics(registry *chat.Registry) *Metrics {
	return &Metrics{
		startTime: time.Now(),
		registry:  registry,
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	TotalDisconnects  int64 `json:"total_disconnects"`
	RejectedOrigins   int64 `json:"rejected_origins"`

	LinesIn      int64 `json:"lines_in"`
	LinesOut     int64 `json:"lines_out"`
	LinesDropped int64 `json:"lines_dropped"`
	RateLimited  int64 `json:"rate_limited"`
	Evictions    int64 `json:"evictions"`

	Registry chat.Stats `json:"registry"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	s := MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		ActiveConnections: m.ActiveConnections.Load(),
		TotalConnections:  m.TotalConnections.Load(),
		TotalDisconnects:  m.TotalDisconnects.Load(),
		RejectedOrigins:   m.RejectedOrigins.Load(),
		LinesIn:           m.LinesIn.Load(),
		LinesOut:          m.LinesOut.Load(),
		LinesDropped:      m.LinesDropped.Load(),
		RateLimited:       m.RateLimited.Load(),
		Evictions:         m.Evictions.Load(),
	}
	if m.registry != nil {
		s.Registry = m.registry.Stats()
	}
	return s
}

// ServeHTTP writes the snapshot as JSON.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.Snapshot()); err != nil {
		slog.Warn("writing metrics response", "error", err)
	}
}

// LogSummary writes a one-line metrics summary.
func (m *Metrics) LogSummary(log *slog.Logger) {
	s := m.Snapshot()
	log.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"lines_in", s.LinesIn,
		"lines_out", s.LinesOut,
		"lines_dropped", s.LinesDropped,
		"nicks", s.Registry.Nicks,
		"channels", s.Registry.Channels,
	)
}

// logPeriodically logs a summary every interval until ctx is done.
func (m *Metrics) logPeriodically(ctx context.Context, log *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.LogSummary(log)
		}
	}
}
