package command

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docrelay/kit"
)

// ParseResult is what the HTTP and MCP surfaces return for one chat line.
type ParseResult struct {
	Command Command `json:"command"`
	Reply   string  `json:"reply"`
}

// Interpret parses text and pairs the command with its reply.
func Interpret(text string) *ParseResult {
	c := Parse(text)
	return &ParseResult{Command: c, Reply: Reply(c)}
}

type parseReq struct {
	Text string `json:"text"`
}

// RegisterMCP registers the command_parse tool on an MCP server.
func RegisterMCP(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "command_parse",
		Description: "Parse a chat command (HELP, LIST, DELETE, MOVE, SUMMARY) into its typed form and the reply to send back.",
		InputSchema: kit.InputSchema(map[string]any{
			"text": map[string]any{"type": "string", "description": "Message body as typed by the user"},
		}, []string{"text"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		return Interpret(req.(*parseReq).Text), nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r parseReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
