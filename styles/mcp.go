package styles

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docsmith/bridge"
	"github.com/hazyhaar/docsmith/kit"
)

// RegisterMCP registers the style transfer tool on an MCP server.
func (e *Engine) RegisterMCP(srv *mcp.Server) {
	e.registerTransferTool(srv)
}

// Use installs a middleware applied to the tool endpoint. Call before
// RegisterMCP.
func (e *Engine) Use(mw kit.Middleware) { e.mw = mw }

func (e *Engine) chain(endpoint kit.Endpoint) kit.Endpoint {
	if e.mw == nil {
		return endpoint
	}
	return e.mw(endpoint)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

type transferRequest struct {
	SourcePath      string            `json:"source_path"`
	TargetPath      string            `json:"target_path"`
	StyleTypes      []string          `json:"style_types,omitempty"`
	PreserveContent bool              `json:"preserve_content,omitempty"`
	TemplateMode    bool              `json:"template_mode,omitempty"`
	StyleMapping    map[string]string `json:"style_mapping,omitempty"`
}

func (e *Engine) registerTransferTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "enhanced_style_transfer",
		Description: "Copy named style definitions from a source document into a target document. Supports a category subset, collision preservation, name remapping, and a template mode that verifies placeholder tokens survive intact.",
		InputSchema: inputSchema(map[string]any{
			"source_path": map[string]any{"type": "string", "description": "Document to read styles from"},
			"target_path": map[string]any{"type": "string", "description": "Document to write styles into (saved in place)"},
			"style_types": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string", "enum": []any{"paragraph", "character", "page", "frame", "numbering", "table"}},
				"description": "Categories to transfer (default all)",
			},
			"preserve_content": map[string]any{"type": "boolean", "description": "Skip target styles whose overwrite could change displayed content"},
			"template_mode":    map[string]any{"type": "boolean", "description": "Verify target placeholder tokens are unchanged by the transfer"},
			"style_mapping":    map[string]any{"type": "object", "description": "Source style name to target style name"},
		}, []string{"source_path", "target_path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*transferRequest)
		cats := make([]bridge.StyleCategory, 0, len(rr.StyleTypes))
		for _, s := range rr.StyleTypes {
			cat, err := bridge.ParseCategory(s)
			if err != nil {
				return nil, err
			}
			cats = append(cats, cat)
		}
		res, err := e.Transfer(ctx, Params{
			SourcePath:      rr.SourcePath,
			TargetPath:      rr.TargetPath,
			Categories:      cats,
			PreserveContent: rr.PreserveContent,
			TemplateMode:    rr.TemplateMode,
			Mapping:         rr.StyleMapping,
		})
		if err != nil {
			return nil, err
		}
		return res, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr transferRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, e.chain(endpoint), decode)
}
