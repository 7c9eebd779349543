// CLAUDE:SUMMARY HTTP surface of the relay: chi router with /extract, /health, /command and an optional MCP endpoint.
// Package server exposes the command interpreter and the extraction pipeline
// over HTTP.
//
// Routes:
//
//	POST /extract   multipart "file" (+ "mimeType") or raw body + x-mime-type
//	GET  /health    liveness probe
//	GET  /status    heartbeat and reload details (when configured)
//	POST /command   chat command line, JSON {"text"} or webhook form Body/From
//	     /mcp       MCP streamable HTTP (optional)
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docrelay/docpipe"
	"github.com/hazyhaar/docrelay/idgen"
	"github.com/hazyhaar/docrelay/kit"
	"github.com/hazyhaar/docrelay/shield"
)

// multipartSlack is the room left above the payload ceiling for multipart
// boundaries, part headers and small form fields.
const multipartSlack = 1 << 20

// Metrics receives per-request measurements. observability.MetricsManager
// satisfies it.
type Metrics interface {
	RecordExtraction(format, outcome string, size int, elapsed time.Duration)
	RecordCommand(kind string)
}

type nopMetrics struct{}

func (nopMetrics) RecordExtraction(string, string, int, time.Duration) {}
func (nopMetrics) RecordCommand(string)                                {}

// Server wires the pipeline and the command interpreter to HTTP.
type Server struct {
	cfg     *Config
	pipe    *docpipe.Pipeline
	metrics Metrics
	mcp     *mcp.Server
	newID   idgen.Generator
	now     func() time.Time
	status  StatusFunc
}

// StatusFunc reports operational details for GET /status: heartbeat
// freshness, reload counters and the like.
type StatusFunc func(ctx context.Context) (map[string]any, error)

// Option configures a Server.
type Option func(*Server)

// WithMetrics records extraction and command measurements.
func WithMetrics(m Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMCP mounts srv at cfg.MCP.Path when MCP is enabled.
func WithMCP(srv *mcp.Server) Option {
	return func(s *Server) { s.mcp = srv }
}

// WithClock overrides the time source used by /health.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithStatus mounts GET /status backed by fn.
func WithStatus(fn StatusFunc) Option {
	return func(s *Server) { s.status = fn }
}

// New creates a Server. cfg must have passed Validate.
func New(cfg *Config, pipe *docpipe.Pipeline, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		pipe:    pipe,
		metrics: nopMetrics{},
		newID:   idgen.Prefixed("req_", idgen.Default),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Reload applies the hot-swappable parts of next: the classification table
// and the decode timeout. Settings bound at startup keep their running values
// and a change to them is only logged.
func (s *Server) Reload(next *Config) error {
	if err := next.Validate(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if next.Listen != s.cfg.Listen || next.MaxPayloadMB != s.cfg.MaxPayloadMB || next.MCP != s.cfg.MCP || next.RateLimit != s.cfg.RateLimit {
		slog.Warn("reload: listen, max_payload_mb, rate_limit and mcp need a restart", "listen", next.Listen, "max_payload_mb", next.MaxPayloadMB)
	}
	s.pipe.Reload(next.Classify, next.DecodeTimeout)
	return nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(s.pipe.MaxPayloadSize() + multipartSlack) {
		r.Use(mw)
	}
	r.Use(s.requestID)

	r.Get("/health", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(shield.RateLimit(s.cfg.RateLimit.RPS, s.cfg.RateLimit.Burst, s.cfg.RateLimit.TrustProxy))
		r.Post("/extract", s.handleExtract)
		r.Post("/command", s.handleCommand)
	})
	if s.status != nil {
		r.Get("/status", s.handleStatus)
	}

	if s.cfg.MCP.Enabled && s.mcp != nil {
		srv := s.mcp
		r.Handle(s.cfg.MCP.Path, mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil))
	}
	return r
}

// requestID tags each request with an ID, reusing a caller-supplied UUID.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := s.newID()
		if in := r.Header.Get("X-Request-ID"); in != "" {
			if canon, err := idgen.Parse(in); err == nil {
				id = "req_" + canon
			}
		}
		w.Header().Set("X-Request-ID", id)
		ctx := kit.WithRequestID(r.Context(), id)
		ctx = kit.WithTransport(ctx, "http")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": s.cfg.ServiceName,
		"ts":      s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.status(r.Context())
	if err != nil {
		shield.GetLogger(r.Context()).Error("status", "error", err)
		writeError(w, http.StatusInternalServerError, "status unavailable")
		return
	}
	if st == nil {
		st = map[string]any{}
	}
	st["service"] = s.cfg.ServiceName
	st["formats"] = s.pipe.Formats()
	writeJSON(w, http.StatusOK, st)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
