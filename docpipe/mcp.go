package docpipe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docrelay/kit"
)

// RegisterMCP registers docpipe tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerExtractTool(srv)
	p.registerClassifyTool(srv)
	p.registerFormatsTool(srv)
}

// --- extract ---

type extractReq struct {
	ContentBase64 string `json:"content_base64"`
	MimeType      string `json:"mime_type"`
}

func (p *Pipeline) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "docpipe_extract",
		Description: "Extract plain text from a document (pdf, docx, plain text) given its bytes and declared mime type.",
		InputSchema: kit.InputSchema(map[string]any{
			"content_base64": map[string]any{"type": "string", "description": "Document bytes, standard base64"},
			"mime_type":      map[string]any{"type": "string", "description": "Declared media type, e.g. application/pdf"},
		}, []string{"content_base64"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*extractReq)
		if size := decodedSize(r.ContentBase64); size > p.MaxPayloadSize() {
			return nil, &Error{Kind: KindPayloadTooLarge, MediaType: r.MimeType, Size: size, Limit: p.MaxPayloadSize()}
		}
		payload, err := base64.StdEncoding.DecodeString(r.ContentBase64)
		if err != nil {
			return nil, fmt.Errorf("content_base64: %w", err)
		}
		return p.Extract(ctx, payload, r.MimeType)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r extractReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// decodedSize is the byte length s decodes to under standard padded base64,
// known before decoding.
func decodedSize(s string) int64 {
	n := int64(base64.StdEncoding.DecodedLen(len(s)))
	return n - int64(len(s)-len(strings.TrimRight(s, "=")))
}

// --- classify ---

type classifyReq struct {
	MimeType string `json:"mime_type"`
}

func (p *Pipeline) registerClassifyTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "docpipe_classify",
		Description: "Report which decoder a declared mime type would be routed to.",
		InputSchema: kit.InputSchema(map[string]any{
			"mime_type": map[string]any{"type": "string", "description": "Declared media type"},
		}, nil),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		format, err := p.Classify(req.(*classifyReq).MimeType)
		if err != nil {
			return nil, err
		}
		return map[string]any{"format": string(format)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r classifyReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- formats ---

func (p *Pipeline) registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "docpipe_formats",
		Description: "List the formats the classification table can route to.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"formats": p.Formats()}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
