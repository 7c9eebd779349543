package kit

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	resp, err := Chain(mw("outer"), mw("inner"))(base)(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"outer_before", "inner_before", "endpoint", "inner_after", "outer_after"}
	if len(order) != len(expected) {
		t.Fatalf("order: got %v, want %v", order, expected)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Fatalf("order[%d]: got %q, want %q", i, order[i], v)
		}
	}
}

func TestChain_ErrorPropagation(t *testing.T) {
	errFail := errors.New("fail")
	base := func(_ context.Context, _ any) (any, error) {
		return nil, errFail
	}

	noop := func(next Endpoint) Endpoint { return next }
	_, err := Chain(noop)(base)(context.Background(), nil)
	if !errors.Is(err, errFail) {
		t.Fatalf("error: got %v, want %v", err, errFail)
	}
}

func TestWithTransportTag(t *testing.T) {
	var seen string
	base := func(ctx context.Context, _ any) (any, error) {
		seen = GetTransport(ctx)
		return nil, nil
	}
	WithTransportTag("mcp")(base)(context.Background(), nil)
	if seen != "mcp" {
		t.Fatalf("transport: got %q, want mcp", seen)
	}
}

func TestWithNewRequestID(t *testing.T) {
	var seen string
	base := func(ctx context.Context, _ any) (any, error) {
		seen = GetRequestID(ctx)
		return nil, nil
	}
	mw := WithNewRequestID(func() string { return "req_new" })

	mw(base)(context.Background(), nil)
	if seen != "req_new" {
		t.Fatalf("request id: got %q, want req_new", seen)
	}
	mw(base)(WithRequestID(context.Background(), "req_kept"), nil)
	if seen != "req_kept" {
		t.Fatalf("request id: got %q, want req_kept", seen)
	}
}

func TestMCPMiddleware(t *testing.T) {
	var transport, id string
	base := func(ctx context.Context, _ any) (any, error) {
		transport, id = GetTransport(ctx), GetRequestID(ctx)
		return nil, nil
	}
	mcpMiddleware()(base)(context.Background(), nil)
	if transport != "mcp" {
		t.Errorf("transport: got %q, want mcp", transport)
	}
	if !strings.HasPrefix(id, "mcp_") {
		t.Errorf("request id: got %q, want mcp_ prefix", id)
	}
}

func TestContext_Transport_Default(t *testing.T) {
	if v := GetTransport(context.Background()); v != "http" {
		t.Fatalf("default transport: got %q, want 'http'", v)
	}
}

func TestContext_Values(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req_abc")
	ctx = WithTraceID(ctx, "a1b2c3d4")
	ctx = WithSender(ctx, "whatsapp:+10000000000")

	if v := GetRequestID(ctx); v != "req_abc" {
		t.Fatalf("request_id: got %q", v)
	}
	if v := GetTraceID(ctx); v != "a1b2c3d4" {
		t.Fatalf("trace_id: got %q", v)
	}
	if v := GetSender(ctx); v != "whatsapp:+10000000000" {
		t.Fatalf("sender: got %q", v)
	}
}

func TestContext_EmptyDefaults(t *testing.T) {
	ctx := context.Background()
	if v := GetRequestID(ctx); v != "" {
		t.Fatalf("request_id default: got %q", v)
	}
	if v := GetTraceID(ctx); v != "" {
		t.Fatalf("trace_id default: got %q", v)
	}
	if v := GetSender(ctx); v != "" {
		t.Fatalf("sender default: got %q", v)
	}
}

func TestInputSchema(t *testing.T) {
	s := InputSchema(map[string]any{"text": map[string]any{"type": "string"}}, []string{"text"})
	if s["type"] != "object" {
		t.Fatalf("type: got %v", s["type"])
	}
	req, ok := s["required"].([]string)
	if !ok || len(req) != 1 || req[0] != "text" {
		t.Fatalf("required: got %v", s["required"])
	}

	empty := InputSchema(map[string]any{}, nil)
	if _, ok := empty["required"]; ok {
		t.Fatal("required should be omitted when empty")
	}
}
