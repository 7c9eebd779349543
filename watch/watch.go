// CLAUDE:SUMMARY Poll-detect-debounce-reload loop over a version token, with a file modification time detector for config hot reload.
// Package watch runs an action whenever a polled version token changes.
//
// The relay uses it to pick up edits to its YAML configuration without a
// restart:
//
//	wake, _ := watch.NotifyFile(ctx, "/etc/docrelay.yaml", logger)
//	w := watch.New(watch.Options{
//		Interval: 5 * time.Second,
//		Debounce: 250 * time.Millisecond,
//		Detector: watch.FileModTime("/etc/docrelay.yaml"),
//		Wake:     wake,
//	})
//	go w.OnChange(ctx, func() error { return reload() })
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Detector reads a version token. Two calls that return different values
// mean something changed. Tokens must be non-negative.
type Detector func(ctx context.Context) (int64, error)

// Options tunes the watcher.
type Options struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a change before the action fires.
	// Further changes inside the window restart it. 0 fires immediately.
	Debounce time.Duration
	// Detector produces the version token. Required.
	Detector Detector
	// Wake, when set, triggers a check between ticks. See NotifyFile.
	Wake <-chan struct{}
	// Logger overrides slog.Default().
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls a Detector and runs an action when the token moves. It is
// safe for concurrent use.
type Watcher struct {
	opts Options

	// version is the last token whose action succeeded.
	version atomic.Int64

	versionMu   sync.Mutex
	versionCond *sync.Cond

	checks   atomic.Int64
	changes  atomic.Int64
	errors   atomic.Int64
	reloads  atomic.Int64
	reloadNs atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks          int64         `json:"checks"`
	ChangesDetected int64         `json:"changes_detected"`
	Errors          int64         `json:"errors"`
	Reloads         int64         `json:"reloads"`
	AvgReloadTime   time.Duration `json:"avg_reload_time"`
}

// New creates a Watcher. It panics if opts.Detector is nil.
func New(opts Options) *Watcher {
	if opts.Detector == nil {
		panic("watch: Options.Detector is required")
	}
	opts.defaults()
	w := &Watcher{opts: opts}
	w.versionCond = sync.NewCond(&w.versionMu)
	return w
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	s := Stats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Reloads:         w.reloads.Load(),
	}
	if s.Reloads > 0 {
		s.AvgReloadTime = time.Duration(w.reloadNs.Load() / s.Reloads)
	}
	return s
}

// Version returns the last token whose action succeeded.
func (w *Watcher) Version() int64 { return w.version.Load() }

// OnChange blocks until ctx is cancelled. The first token read is the
// baseline and does not fire action. If action fails the token is not
// advanced, so the next poll retries.
func (w *Watcher) OnChange(ctx context.Context, action func() error) {
	log := w.opts.Logger

	if v, err := w.opts.Detector(ctx); err != nil {
		log.Warn("watch: initial version check failed", "error", err)
	} else {
		w.setVersion(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var st loopState
	st.pending = -1

	log.Info("watch: started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			log.Info("watch: stopped")
			if st.timer != nil {
				st.timer.Stop()
			}
			return

		case <-ticker.C:
			w.check(ctx, action, &st)

		case <-w.opts.Wake:
			w.check(ctx, action, &st)

		case <-st.settled:
			st.settled = nil
			if st.pending >= 0 {
				w.fire(log, action, st.pending)
				st.pending = -1
			}
		}
	}
}

// loopState is the debounce state owned by one OnChange loop.
type loopState struct {
	pending int64 // token waiting for the debounce window, -1 if none
	timer   *time.Timer
	settled <-chan time.Time
}

// check polls the detector once.
func (w *Watcher) check(ctx context.Context, action func() error, st *loopState) {
	log := w.opts.Logger
	w.checks.Add(1)
	cur, err := w.opts.Detector(ctx)
	if err != nil {
		w.errors.Add(1)
		log.Warn("watch: version check failed", "error", err)
		return
	}
	if cur == w.version.Load() || cur == st.pending {
		return
	}
	w.changes.Add(1)

	if w.opts.Debounce <= 0 {
		w.fire(log, action, cur)
		st.pending = -1
		return
	}
	st.pending = cur
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.NewTimer(w.opts.Debounce)
	st.settled = st.timer.C
	log.Debug("watch: change detected, debouncing", "pending_version", cur)
}

// WaitForVersion blocks until an action has succeeded for a token >= target,
// or ctx ends.
func (w *Watcher) WaitForVersion(ctx context.Context, target int64) error {
	if w.version.Load() >= target {
		return nil
	}

	done := ctx.Done()
	w.versionMu.Lock()
	defer w.versionMu.Unlock()

	for w.version.Load() < target {
		ch := make(chan struct{})
		go func() {
			select {
			case <-done:
				w.versionMu.Lock()
				w.versionCond.Broadcast()
				w.versionMu.Unlock()
			case <-ch:
			}
		}()

		w.versionCond.Wait()
		close(ch)

		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) fire(log *slog.Logger, action func() error, ver int64) {
	log.Info("watch: reloading", "old_version", w.version.Load(), "new_version", ver)
	start := time.Now()
	if err := action(); err != nil {
		w.errors.Add(1)
		log.Error("watch: reload failed", "error", err, "version", ver)
		return
	}
	elapsed := time.Since(start)
	w.reloads.Add(1)
	w.reloadNs.Add(int64(elapsed))
	w.setVersion(ver)
	log.Info("watch: reload complete", "version", ver, "duration", elapsed)
}

func (w *Watcher) setVersion(v int64) {
	w.versionMu.Lock()
	w.version.Store(v)
	w.versionCond.Broadcast()
	w.versionMu.Unlock()
}

// ErrNotRegular is returned by FileModTime for directories and devices.
var ErrNotRegular = errors.New("watch: not a regular file")

// FileModTime reports the modification time of path in nanoseconds. Editors
// that save by rename still move the token because the new inode carries a
// fresh mtime.
func FileModTime(path string) Detector {
	return func(context.Context) (int64, error) {
		fi, err := os.Stat(path)
		if err != nil {
			return 0, fmt.Errorf("stat %s: %w", path, err)
		}
		if !fi.Mode().IsRegular() {
			return 0, fmt.Errorf("%s: %w", path, ErrNotRegular)
		}
		return fi.ModTime().UnixNano(), nil
	}
}
