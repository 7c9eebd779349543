package docpipe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "docpipe-test", Version: "0.1.0"}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	return mcpSessionFor(t, New(Config{}))
}

func mcpSessionFor(t *testing.T, pipe *Pipeline) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	pipe.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCall(t *testing.T, session *mcp.ClientSession, name string, args any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return result
}

func mcpText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	return tc.Text
}

func TestMCP_Formats(t *testing.T) {
	session := mcpSession(t)
	result := mcpCall(t, session, "docpipe_formats", map[string]any{})
	if result.IsError {
		t.Fatalf("tool error: %s", mcpText(t, result))
	}

	var resp struct {
		Formats []string `json:"formats"`
	}
	if err := json.Unmarshal([]byte(mcpText(t, result)), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if strings.Join(resp.Formats, ",") != "office,pdf,text" {
		t.Errorf("formats = %v", resp.Formats)
	}
}

func TestMCP_Classify(t *testing.T) {
	session := mcpSession(t)

	tests := []struct {
		mimeType string
		format   string
	}{
		{"application/pdf", "pdf"},
		{"application/msword", "office"},
		{"text/markdown", "text"},
		{"", "text"},
	}
	for _, tt := range tests {
		result := mcpCall(t, session, "docpipe_classify", map[string]any{"mime_type": tt.mimeType})
		if result.IsError {
			t.Fatalf("%q: tool error: %s", tt.mimeType, mcpText(t, result))
		}
		var resp struct {
			Format string `json:"format"`
		}
		json.Unmarshal([]byte(mcpText(t, result)), &resp)
		if resp.Format != tt.format {
			t.Errorf("classify(%q) = %q, want %q", tt.mimeType, resp.Format, tt.format)
		}
	}
}

func TestMCP_Classify_Unsupported(t *testing.T) {
	session := mcpSession(t)
	result := mcpCall(t, session, "docpipe_classify", map[string]any{"mime_type": "image/png"})
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	if text := mcpText(t, result); !strings.Contains(text, "Unsupported mime type: image/png") {
		t.Errorf("error text = %q", text)
	}
}

func TestMCP_Extract_Text(t *testing.T) {
	session := mcpSession(t)
	result := mcpCall(t, session, "docpipe_extract", map[string]any{
		"content_base64": base64.StdEncoding.EncodeToString([]byte("Hello World\nSecond line\x00")),
		"mime_type":      "text/plain",
	})
	if result.IsError {
		t.Fatalf("tool error: %s", mcpText(t, result))
	}

	var res Result
	if err := json.Unmarshal([]byte(mcpText(t, result)), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Text != "Hello World\nSecond line" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Length != 23 {
		t.Errorf("length = %d, want 23", res.Length)
	}
	if res.Format != FormatText {
		t.Errorf("format = %q", res.Format)
	}
}

func TestMCP_Extract_BadBase64(t *testing.T) {
	session := mcpSession(t)
	result := mcpCall(t, session, "docpipe_extract", map[string]any{
		"content_base64": "!!not base64!!",
		"mime_type":      "text/plain",
	})
	if !result.IsError {
		t.Fatal("expected tool error")
	}
}

func TestMCP_Extract_MissingPayload(t *testing.T) {
	session := mcpSession(t)
	result := mcpCall(t, session, "docpipe_extract", map[string]any{
		"content_base64": "",
		"mime_type":      "text/plain",
	})
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	if text := mcpText(t, result); !strings.Contains(text, "missing payload") {
		t.Errorf("error text = %q", text)
	}
}

func TestMCP_Extract_TooLargeBeforeDecode(t *testing.T) {
	session := mcpSessionFor(t, New(Config{MaxPayloadSize: 8}))
	result := mcpCall(t, session, "docpipe_extract", map[string]any{
		"content_base64": base64.StdEncoding.EncodeToString([]byte("nine byte")),
		"mime_type":      "text/plain",
	})
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	if text := mcpText(t, result); !strings.Contains(text, "payload too large: 9 bytes (max 8)") {
		t.Errorf("error text = %q", text)
	}

	result = mcpCall(t, session, "docpipe_extract", map[string]any{
		"content_base64": base64.StdEncoding.EncodeToString([]byte("eight by")),
		"mime_type":      "text/plain",
	})
	if result.IsError {
		t.Fatalf("payload at the limit rejected: %s", mcpText(t, result))
	}
}

func TestDecodedSize(t *testing.T) {
	for _, raw := range []string{"", "a", "ab", "abc", "abcd", "hello world"} {
		enc := base64.StdEncoding.EncodeToString([]byte(raw))
		if got := decodedSize(enc); got != int64(len(raw)) {
			t.Errorf("decodedSize(%q) = %d, want %d", enc, got, len(raw))
		}
	}
}
