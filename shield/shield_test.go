package shield

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/docrelay/horosafe"
	"github.com/hazyhaar/docrelay/kit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(DefaultHeaders())(okHandler())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestSecurityHeaders_EmptySkipped(t *testing.T) {
	h := SecurityHeaders(HeaderConfig{XFrameOptions: "DENY"})(okHandler())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Header().Get("Content-Security-Policy") != "" {
		t.Error("empty CSP should not be set")
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("X-Frame-Options missing")
	}
}

func TestHeadToGet(t *testing.T) {
	var method string
	h := HeadToGet(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("HEAD", "/health", nil))
	if method != http.MethodGet {
		t.Fatalf("method = %q, want GET", method)
	}
}

func TestMaxBody(t *testing.T) {
	var readErr error
	h := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/extract", strings.NewReader("12345678")))
	if readErr != nil {
		t.Fatalf("body at limit: %v", readErr)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/extract", strings.NewReader("123456789")))
	if !errors.Is(readErr, horosafe.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", readErr)
	}
}

func TestTraceID(t *testing.T) {
	var traceID string
	var hasLogger bool
	h := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = kit.GetTraceID(r.Context())
		_, hasLogger = r.Context().Value(LoggerKey).(*slog.Logger)
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if len(traceID) != 8 {
		t.Fatalf("trace id = %q, want 8 hex chars", traceID)
	}
	if w.Header().Get("X-Trace-ID") != traceID {
		t.Fatalf("X-Trace-ID = %q, want %q", w.Header().Get("X-Trace-ID"), traceID)
	}
	if !hasLogger {
		t.Fatal("expected per-request logger")
	}
	if w.Code != http.StatusTeapot {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(1, 2, false)(okHandler())

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("POST", "/extract", nil))
		codes[i] = w.Code
		if i == 2 {
			if got := w.Header().Get("Retry-After"); got != "1" {
				t.Errorf("Retry-After = %q", got)
			}
			if !strings.Contains(w.Body.String(), "Too many requests") {
				t.Errorf("body = %q", w.Body.String())
			}
		}
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v, want [200 200 429]", codes)
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	h := RateLimit(0.01, 1, false)(okHandler())
	send := func(ip string) int {
		req := httptest.NewRequest("POST", "/command", nil)
		req.RemoteAddr = ip + ":40000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}
	if send("192.0.2.1") != 200 || send("192.0.2.2") != 200 {
		t.Fatal("first request of each client should pass")
	}
	if got := send("192.0.2.1"); got != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", got)
	}
}

func TestRateLimit_ForgedForwardedFor(t *testing.T) {
	send := func(h http.Handler, xff string) int {
		req := httptest.NewRequest("POST", "/extract", nil)
		req.RemoteAddr = "192.0.2.7:40000"
		req.Header.Set("X-Forwarded-For", xff)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	direct := RateLimit(0.01, 1, false)(okHandler())
	if send(direct, "203.0.113.1") != 200 {
		t.Fatal("first request should pass")
	}
	if got := send(direct, "203.0.113.2"); got != http.StatusTooManyRequests {
		t.Fatalf("rotated X-Forwarded-For = %d, want 429", got)
	}

	proxied := RateLimit(0.01, 1, true)(okHandler())
	if send(proxied, "203.0.113.1") != 200 || send(proxied, "203.0.113.2") != 200 {
		t.Fatal("behind a trusted proxy each forwarded client gets its own bucket")
	}
}

func TestRateLimiter_DropsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1, false)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.allow("192.0.2.1")
	rl.allow("192.0.2.2")
	if rl.Clients() != 2 {
		t.Fatalf("clients = %d", rl.Clients())
	}

	now = now.Add(idleAfter + 2*time.Minute)
	rl.allow("192.0.2.3")
	if rl.Clients() != 1 {
		t.Fatalf("clients after sweep = %d, want 1", rl.Clients())
	}
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		xff, remote string
		trust       bool
		want        string
	}{
		{"", "192.0.2.1:1234", true, "192.0.2.1"},
		{"203.0.113.5, 10.0.0.1", "192.0.2.1:1234", true, "203.0.113.5"},
		{" 203.0.113.9 ", "192.0.2.1:1234", true, "203.0.113.9"},
		{"203.0.113.5", "192.0.2.1:1234", false, "192.0.2.1"},
		{"", "pipe", false, "pipe"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = tt.remote
		if tt.xff != "" {
			r.Header.Set("X-Forwarded-For", tt.xff)
		}
		if got := ExtractIP(r, tt.trust); got != tt.want {
			t.Errorf("ExtractIP(xff=%q, remote=%q, trust=%v) = %q, want %q", tt.xff, tt.remote, tt.trust, got, tt.want)
		}
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(0, 0, false)(okHandler())
	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("POST", "/extract", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, w.Code)
		}
	}
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), `"error":"Internal error"`) || !strings.Contains(w.Body.String(), "boom") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestRecover_AfterHeadersWritten(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want the handler's 202", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
}

func TestRecover_AbortHandlerPropagates(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}
