// CLAUDE:SUMMARY Entry point for the relay service: YAML config, slog, extraction pipeline, optional SQLite metrics and heartbeat, MCP, config hot reload.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/docrelay/command"
	"github.com/hazyhaar/docrelay/dbopen"
	"github.com/hazyhaar/docrelay/docpipe"
	"github.com/hazyhaar/docrelay/observability"
	"github.com/hazyhaar/docrelay/server"
	"github.com/hazyhaar/docrelay/watch"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("docrelay", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := env("CONFIG", "")

	cfg := server.DefaultConfig()
	if cfgPath != "" {
		loaded, err := server.LoadConfig(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Listen = ":" + port
	}
	cfg.LogLevel = env("LOG_LEVEL", cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	pcfg := cfg.PipelineConfig()
	pcfg.Logger = logger
	pipe := docpipe.New(pcfg)

	var opts []server.Option

	// Observability DB: metrics and heartbeats, off unless configured.
	var obsDB *sql.DB
	if cfg.ObservabilityDB != "" {
		db, err := dbopen.Open(cfg.ObservabilityDB, dbopen.WithMkdirAll(), dbopen.WithSchema(observability.Schema))
		if err != nil {
			return fmt.Errorf("observability db: %w", err)
		}
		defer db.Close()
		obsDB = db

		metrics := observability.NewMetricsManager(db, logger, 100, 5*time.Second)
		defer metrics.Close()
		opts = append(opts, server.WithMetrics(metrics))

		hb := observability.NewHeartbeat(db, cfg.ServiceName, logger)
		g.Go(func() error {
			hb.Run(gctx, cfg.Heartbeat)
			return nil
		})
		g.Go(func() error {
			retention(gctx, db, metrics, cfg.MetricsRetentionDays)
			return nil
		})
	}

	if cfg.MCP.Enabled {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: cfg.ServiceName, Version: version}, nil)
		command.RegisterMCP(mcpSrv)
		pipe.RegisterMCP(mcpSrv)
		opts = append(opts, server.WithMCP(mcpSrv))
	}

	var watcher *watch.Watcher
	if cfgPath != "" && cfg.ReloadInterval > 0 {
		// fsnotify shortens the wait; polling still catches what it misses.
		wake, err := watch.NotifyFile(gctx, cfgPath, logger)
		if err != nil {
			slog.Warn("config notify unavailable, polling only", "error", err)
		}
		watcher = watch.New(watch.Options{
			Interval: cfg.ReloadInterval,
			Debounce: 250 * time.Millisecond,
			Detector: watch.FileModTime(cfgPath),
			Wake:     wake,
			Logger:   logger,
		})
	}

	opts = append(opts, server.WithStatus(statusFunc(obsDB, cfg, watcher)))
	srv := server.New(cfg, pipe, opts...)

	if watcher != nil {
		g.Go(func() error {
			watcher.OnChange(gctx, func() error {
				next, err := server.LoadConfig(cfgPath)
				if err != nil {
					return err
				}
				return srv.Reload(next)
			})
			return nil
		})
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		slog.Info("docrelay starting",
			"version", version,
			"listen", cfg.Listen,
			"service", cfg.ServiceName,
			"max_payload_mb", cfg.MaxPayloadMB,
			"formats", pipe.Formats(),
			"mcp", cfg.MCP.Enabled,
			"observability", obsDB != nil,
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("docrelay stopped")
	return nil
}

// statusFunc assembles GET /status from whatever is running.
func statusFunc(db *sql.DB, cfg *server.Config, w *watch.Watcher) server.StatusFunc {
	staleAfter := 3 * cfg.Heartbeat
	return func(ctx context.Context) (map[string]any, error) {
		out := map[string]any{"version": version}
		if db != nil {
			hb, err := observability.LatestHeartbeat(ctx, db, cfg.ServiceName, staleAfter)
			if err != nil {
				return nil, err
			}
			out["heartbeat"] = hb
		}
		if w != nil {
			out["reload"] = w.Stats()
		}
		return out, nil
	}
}

// retention prunes old metrics and heartbeats once a day.
func retention(ctx context.Context, db *sql.DB, metrics *observability.MetricsManager, days int) {
	if days <= 0 {
		return
	}
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		if n, err := metrics.Cleanup(ctx, days); err != nil {
			slog.Warn("metrics cleanup", "error", err)
		} else if n > 0 {
			slog.Info("metrics cleanup", "deleted", n)
		}
		if _, err := observability.CleanupHeartbeats(ctx, db, days); err != nil {
			slog.Warn("heartbeat cleanup", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
