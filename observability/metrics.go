// Package observability records the relay's operational measurements in
// SQLite: extraction timings and outcomes, parsed command kinds, and
// periodic heartbeats with Go runtime stats.
//
// The database is separate from anything the relay serves. Open it with
// dbopen and apply Schema (or call Init) before using the constructors.
//
// Persistence is asynchronous: Record never blocks on the database, and a
// failing store only produces log lines.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/docrelay/dbopen"
)

// Metric names written by the relay.
const (
	MetricExtractDurationMs   = "extract_duration_ms"
	MetricExtractPayloadBytes = "extract_payload_bytes"
	MetricCommandCount        = "command_count"
)

// Metric is a single timeseries datapoint.
type Metric struct {
	Name      string
	Timestamp time.Time
	Value     float64
	Labels    map[string]string
	Unit      string // "milliseconds", "bytes", "count"
}

// MetricsManager buffers metrics and flushes them to SQLite in batches, when
// the buffer fills or on every flush interval.
type MetricsManager struct {
	db            *sql.DB
	logger        *slog.Logger
	bufferSize    int
	flushInterval time.Duration

	mu     sync.Mutex
	buffer []*Metric
	writes sync.WaitGroup // batches handed off by Record

	stop chan struct{}
	done chan struct{}
}

// NewMetricsManager creates a manager and starts its flush loop. Close it to
// flush what is left. Typical values: bufferSize=100, flushInterval=5s.
func NewMetricsManager(db *sql.DB, logger *slog.Logger, bufferSize int, flushInterval time.Duration) *MetricsManager {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	mm := &MetricsManager{
		db:            db,
		logger:        logger,
		bufferSize:    bufferSize,
		flushInterval: flushInterval,
		buffer:        make([]*Metric, 0, bufferSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go mm.flushLoop()
	return mm
}

// Record queues a metric. A full buffer is handed to a background flush.
func (mm *MetricsManager) Record(m *Metric) {
	mm.mu.Lock()
	mm.buffer = append(mm.buffer, m)
	var batch []*Metric
	if len(mm.buffer) >= mm.bufferSize {
		batch = mm.buffer
		mm.buffer = make([]*Metric, 0, mm.bufferSize)
	}
	mm.mu.Unlock()

	if batch != nil {
		mm.writes.Add(1)
		go func() {
			defer mm.writes.Done()
			mm.write(batch)
		}()
	}
}

// RecordExtraction records the duration and payload size of one extraction,
// labelled with the decoder format and the outcome ("ok" or an error kind).
func (mm *MetricsManager) RecordExtraction(format, outcome string, size int, elapsed time.Duration) {
	now := time.Now()
	labels := map[string]string{"outcome": outcome}
	if format != "" {
		labels["format"] = format
	}
	mm.Record(&Metric{Name: MetricExtractDurationMs, Timestamp: now, Value: float64(elapsed.Milliseconds()), Labels: labels, Unit: "milliseconds"})
	mm.Record(&Metric{Name: MetricExtractPayloadBytes, Timestamp: now, Value: float64(size), Labels: labels, Unit: "bytes"})
}

// RecordCommand counts one interpreted chat command of the given kind.
func (mm *MetricsManager) RecordCommand(kind string) {
	mm.Record(&Metric{
		Name:      MetricCommandCount,
		Timestamp: time.Now(),
		Value:     1,
		Labels:    map[string]string{"kind": kind},
		Unit:      "count",
	})
}

// Query returns metrics filtered by name and time range, newest first.
// An empty name matches every metric; nil bounds are open.
func (mm *MetricsManager) Query(ctx context.Context, name string, since, until *time.Time, limit int) ([]*Metric, error) {
	q := "SELECT metric_name, timestamp, value, labels, unit FROM metrics_timeseries WHERE 1=1"
	var args []any

	if name != "" {
		q += " AND metric_name = ?"
		args = append(args, name)
	}
	if since != nil {
		q += " AND timestamp >= ?"
		args = append(args, since.Unix())
	}
	if until != nil {
		q += " AND timestamp <= ?"
		args = append(args, until.Unix())
	}
	q += " ORDER BY timestamp DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := mm.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var out []*Metric
	for rows.Next() {
		var (
			m      Metric
			ts     int64
			labels sql.NullString
			unit   sql.NullString
		)
		if err := rows.Scan(&m.Name, &ts, &m.Value, &labels, &unit); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		m.Timestamp = time.Unix(ts, 0)
		m.Unit = unit.String
		if labels.Valid {
			_ = json.Unmarshal([]byte(labels.String), &m.Labels)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Cleanup deletes metrics older than retentionDays and returns the count removed.
func (mm *MetricsManager) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	threshold := time.Now().AddDate(0, 0, -retentionDays).Unix()
	res, err := dbopen.Exec(ctx, mm.db, "DELETE FROM metrics_timeseries WHERE timestamp < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup metrics: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the flush loop and writes the remaining buffer.
func (mm *MetricsManager) Close() error {
	close(mm.stop)
	<-mm.done
	mm.writes.Wait()
	return nil
}

func (mm *MetricsManager) flushLoop() {
	defer close(mm.done)
	ticker := time.NewTicker(mm.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-mm.stop:
			mm.flush()
			return
		case <-ticker.C:
			mm.flush()
		}
	}
}

func (mm *MetricsManager) flush() {
	mm.mu.Lock()
	batch := mm.buffer
	mm.buffer = make([]*Metric, 0, mm.bufferSize)
	mm.mu.Unlock()
	mm.write(batch)
}

func (mm *MetricsManager) write(batch []*Metric) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := dbopen.RunTx(ctx, mm.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO metrics_timeseries (metric_name, timestamp, value, labels, unit) VALUES (?,?,?,?,?)`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for _, m := range batch {
			var labels sql.NullString
			if len(m.Labels) > 0 {
				if b, err := json.Marshal(m.Labels); err == nil {
					labels = sql.NullString{String: string(b), Valid: true}
				}
			}
			if _, err := stmt.ExecContext(ctx, m.Name, m.Timestamp.Unix(), m.Value, labels, m.Unit); err != nil {
				return fmt.Errorf("insert %s: %w", m.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		mm.logger.Error("observability: flush metrics", "error", err, "dropped", len(batch))
	}
}
