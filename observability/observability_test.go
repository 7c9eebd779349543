package observability

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hazyhaar/docrelay/dbopen"
)

func setupObsDB(t *testing.T) *sql.DB {
	t.Helper()
	return dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
}

func TestInit_Idempotent(t *testing.T) {
	db := setupObsDB(t)
	if err := Init(db); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	for _, table := range []string{"metrics_timeseries", "service_heartbeats"} {
		var count int
		db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if count != 1 {
			t.Fatalf("table %s not found", table)
		}
	}
}

// --- MetricsManager ---

func TestMetricsManager_RecordExtractionAndQuery(t *testing.T) {
	db := setupObsDB(t)
	mm := NewMetricsManager(db, nil, 100, time.Hour)

	mm.RecordExtraction("pdf", "ok", 2048, 120*time.Millisecond)
	mm.RecordExtraction("", "unsupported_media_type", 10, 0)
	mm.RecordCommand("LIST")

	// Close flushes the buffer.
	mm.Close()

	ctx := context.Background()
	durations, err := mm.Query(ctx, MetricExtractDurationMs, nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(durations) != 2 {
		t.Fatalf("got %d duration metrics, want 2", len(durations))
	}
	var sawPDF bool
	for _, m := range durations {
		if m.Labels["format"] == "pdf" {
			sawPDF = true
			if m.Value != 120 || m.Labels["outcome"] != "ok" || m.Unit != "milliseconds" {
				t.Errorf("pdf metric = %+v", m)
			}
		} else if _, ok := m.Labels["format"]; ok {
			t.Errorf("unexpected format label: %+v", m.Labels)
		}
	}
	if !sawPDF {
		t.Error("pdf duration not recorded")
	}

	sizes, _ := mm.Query(ctx, MetricExtractPayloadBytes, nil, nil, 0)
	if len(sizes) != 2 {
		t.Errorf("got %d size metrics, want 2", len(sizes))
	}

	cmds, _ := mm.Query(ctx, MetricCommandCount, nil, nil, 0)
	if len(cmds) != 1 || cmds[0].Labels["kind"] != "LIST" || cmds[0].Value != 1 {
		t.Errorf("command metrics = %+v", cmds)
	}

	all, _ := mm.Query(ctx, "", nil, nil, 3)
	if len(all) != 3 {
		t.Errorf("limit: got %d, want 3", len(all))
	}
}

func TestMetricsManager_FlushWhenBufferFull(t *testing.T) {
	db := setupObsDB(t)
	mm := NewMetricsManager(db, nil, 2, time.Hour)
	defer mm.Close()

	mm.RecordCommand("HELP")
	mm.RecordCommand("HELP")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := mm.Query(context.Background(), MetricCommandCount, nil, nil, 0)
		if err == nil && len(got) == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("full buffer was not flushed")
}

func TestMetricsManager_QueryTimeRange(t *testing.T) {
	db := setupObsDB(t)
	mm := NewMetricsManager(db, nil, 100, time.Hour)

	now := time.Now()
	mm.Record(&Metric{Name: "m", Timestamp: now.Add(-2 * time.Hour), Value: 1})
	mm.Record(&Metric{Name: "m", Timestamp: now, Value: 2})
	mm.Close()

	since := now.Add(-time.Hour)
	got, err := mm.Query(context.Background(), "m", &since, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Value != 2 {
		t.Fatalf("got %+v, want only the recent point", got)
	}
}

func TestMetricsManager_Cleanup(t *testing.T) {
	db := setupObsDB(t)
	mm := NewMetricsManager(db, nil, 100, time.Hour)

	mm.Record(&Metric{Name: "old", Timestamp: time.Now().AddDate(0, 0, -40), Value: 1})
	mm.Record(&Metric{Name: "new", Timestamp: time.Now(), Value: 1})
	mm.Close()

	n, err := mm.Cleanup(context.Background(), 30)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	left, _ := mm.Query(context.Background(), "", nil, nil, 0)
	if len(left) != 1 || left[0].Name != "new" {
		t.Errorf("remaining = %+v", left)
	}
}

// --- Heartbeat ---

func TestCollectRuntimeMetrics(t *testing.T) {
	m := CollectRuntimeMetrics()
	if m.GoroutinesCount <= 0 || m.MemorySysMB <= 0 {
		t.Errorf("runtime metrics = %+v", m)
	}
}

func TestHeartbeat_BeatAndLatest(t *testing.T) {
	db := setupObsDB(t)
	ctx := context.Background()

	st, err := LatestHeartbeat(ctx, db, "extractor", time.Minute)
	if err != nil || st != nil {
		t.Fatalf("before any beat: %+v, %v", st, err)
	}

	hb := NewHeartbeat(db, "extractor", nil)
	if err := hb.Beat(ctx); err != nil {
		t.Fatal(err)
	}

	st, err = LatestHeartbeat(ctx, db, "extractor", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if st == nil || !st.Alive || st.Service != "extractor" || st.PID == 0 {
		t.Errorf("status = %+v", st)
	}
}

func TestHeartbeat_RunStopsWithContext(t *testing.T) {
	db := setupObsDB(t)
	hb := NewHeartbeat(db, "extractor", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hb.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM service_heartbeats").Scan(&count)
	if count < 1 {
		t.Errorf("heartbeats = %d, want >= 1", count)
	}
}

func TestCleanupHeartbeats(t *testing.T) {
	db := setupObsDB(t)
	old := time.Now().AddDate(0, 0, -10).Unix()
	db.Exec(`INSERT INTO service_heartbeats (service_name, hostname, pid, timestamp) VALUES ('x','h',1,?)`, old)
	db.Exec(`INSERT INTO service_heartbeats (service_name, hostname, pid, timestamp) VALUES ('x','h',1,?)`, time.Now().Unix())

	n, err := CleanupHeartbeats(context.Background(), db, 7)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("removed %d, want 1", n)
	}
}
