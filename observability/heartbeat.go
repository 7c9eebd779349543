package observability

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/hazyhaar/docrelay/dbopen"
)

// RuntimeMetrics captures Go process health at a point in time.
type RuntimeMetrics struct {
	GoroutinesCount int
	MemoryAllocMB   float64
	MemorySysMB     float64
	GCCount         uint32
}

// CollectRuntimeMetrics reads current Go runtime stats.
func CollectRuntimeMetrics() RuntimeMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeMetrics{
		GoroutinesCount: runtime.NumGoroutine(),
		MemoryAllocMB:   float64(mem.Alloc) / 1024 / 1024,
		MemorySysMB:     float64(mem.Sys) / 1024 / 1024,
		GCCount:         mem.NumGC,
	}
}

// Heartbeat writes liveness rows for one service instance.
type Heartbeat struct {
	db       *sql.DB
	logger   *slog.Logger
	service  string
	hostname string
	pid      int
}

// NewHeartbeat creates a heartbeat writer for service.
func NewHeartbeat(db *sql.DB, service string, logger *slog.Logger) *Heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &Heartbeat{db: db, logger: logger, service: service, hostname: hostname, pid: os.Getpid()}
}

// Beat writes one row with the current runtime metrics.
func (h *Heartbeat) Beat(ctx context.Context) error {
	m := CollectRuntimeMetrics()
	_, err := dbopen.Exec(ctx, h.db, `
		INSERT INTO service_heartbeats (
			service_name, hostname, pid, timestamp,
			goroutines_count, memory_alloc_mb, memory_sys_mb, gc_count
		) VALUES (?,?,?,?,?,?,?,?)`,
		h.service, h.hostname, h.pid, time.Now().Unix(),
		m.GoroutinesCount, m.MemoryAllocMB, m.MemorySysMB, m.GCCount)
	if err != nil {
		return fmt.Errorf("insert heartbeat: %w", err)
	}
	return nil
}

// Run beats immediately and then every interval until ctx is done.
func (h *Heartbeat) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := h.Beat(ctx); err != nil && ctx.Err() == nil {
			h.logger.Error("heartbeat write failed", "error", err, "service", h.service)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// HeartbeatStatus is the latest heartbeat of a service with its staleness.
type HeartbeatStatus struct {
	Service         string    `json:"service"`
	Hostname        string    `json:"hostname"`
	PID             int       `json:"pid"`
	Timestamp       time.Time `json:"timestamp"`
	GoroutinesCount int       `json:"goroutines_count"`
	MemoryAllocMB   float64   `json:"memory_alloc_mb"`
	Alive           bool      `json:"alive"` // last beat within the staleness threshold
}

// LatestHeartbeat returns the most recent heartbeat for service, or nil if
// none was written. staleAfter is usually three heartbeat intervals.
func LatestHeartbeat(ctx context.Context, db *sql.DB, service string, staleAfter time.Duration) (*HeartbeatStatus, error) {
	row := db.QueryRowContext(ctx, `
		SELECT service_name, hostname, pid, timestamp, goroutines_count, memory_alloc_mb
		FROM service_heartbeats
		WHERE service_name = ?
		ORDER BY timestamp DESC LIMIT 1`, service)

	var hs HeartbeatStatus
	var ts int64
	err := row.Scan(&hs.Service, &hs.Hostname, &hs.PID, &ts, &hs.GoroutinesCount, &hs.MemoryAllocMB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest heartbeat: %w", err)
	}
	hs.Timestamp = time.Unix(ts, 0)
	hs.Alive = time.Since(hs.Timestamp) <= staleAfter
	return &hs, nil
}

// CleanupHeartbeats deletes heartbeats older than retentionDays.
func CleanupHeartbeats(ctx context.Context, db *sql.DB, retentionDays int) (int64, error) {
	threshold := time.Now().AddDate(0, 0, -retentionDays).Unix()
	res, err := dbopen.Exec(ctx, db, "DELETE FROM service_heartbeats WHERE timestamp < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup heartbeats: %w", err)
	}
	return res.RowsAffected()
}
