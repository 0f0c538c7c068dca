package templates

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docsmith/kit"
)

// RegisterMCP registers the template tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerCreateTool(srv)
	s.registerApplyTool(srv)
	s.registerListTool(srv)
	s.registerDeleteTool(srv)
}

// Use installs a middleware applied to every tool endpoint. Call before
// RegisterMCP.
func (s *Service) Use(mw kit.Middleware) { s.mw = mw }

func (s *Service) chain(endpoint kit.Endpoint) kit.Endpoint {
	if s.mw == nil {
		return endpoint
	}
	return s.mw(endpoint)
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

// --- template_create ---

type createRequest struct {
	SourcePath  string            `json:"source_path"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Category    string            `json:"category,omitempty"`
	Markers     []string          `json:"markers"`
	Scheme      string            `json:"scheme,omitempty"`
	Defaults    map[string]string `json:"defaults,omitempty"`
}

func (s *Service) registerCreateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "template_create",
		Description: "Turn a document into a reusable template by replacing literal text markers with named placeholders. Returns the derived placeholder names and any markers that were not found.",
		InputSchema: inputSchema(map[string]any{
			"source_path": map[string]any{"type": "string", "description": "Path of the source document"},
			"name":        map[string]any{"type": "string", "description": "Unique template name"},
			"description": map[string]any{"type": "string", "description": "Human-readable description"},
			"category":    map[string]any{"type": "string", "description": "Free-form category tag (e.g. billing)"},
			"markers":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Literal text snippets to replace with placeholders"},
			"scheme":      map[string]any{"type": "string", "enum": []any{"mustache", "percent", "dollar"}, "description": "Placeholder delimiter scheme (default mustache)"},
			"defaults":    map[string]any{"type": "object", "description": "Default values by derived placeholder name, used at apply time when no value is given"},
		}, []string{"source_path", "name", "markers"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*createRequest)
		return s.Create(ctx, CreateParams{
			SourcePath:  rr.SourcePath,
			Name:        rr.Name,
			Description: rr.Description,
			Category:    rr.Category,
			Markers:     rr.Markers,
			Scheme:      rr.Scheme,
			Defaults:    rr.Defaults,
		})
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr createRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.chain(endpoint), decode)
}

// --- template_apply ---

type applyRequest struct {
	Name       string            `json:"name"`
	OutputPath string            `json:"output_path"`
	Format     string            `json:"format,omitempty"`
	Values     map[string]string `json:"values,omitempty"`
	Defaults   map[string]string `json:"defaults,omitempty"`
}

func (s *Service) registerApplyTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "template_apply",
		Description: "Instantiate a registered template into a new document. Placeholders without a value fall back to defaults; without either they stay literal and the result is marked partial.",
		InputSchema: inputSchema(map[string]any{
			"name":        map[string]any{"type": "string", "description": "Registered template name"},
			"output_path": map[string]any{"type": "string", "description": "Where to write the instantiated document"},
			"format":      map[string]any{"type": "string", "description": "Output format override; defaults to the output path's extension"},
			"values":      map[string]any{"type": "object", "description": "Replacement text keyed by placeholder name or original marker text"},
			"defaults":    map[string]any{"type": "object", "description": "Fallback values for placeholders missing from values"},
		}, []string{"name", "output_path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*applyRequest)
		return s.Apply(ctx, ApplyParams{
			Name:       rr.Name,
			OutputPath: rr.OutputPath,
			Format:     rr.Format,
			Values:     rr.Values,
			Defaults:   rr.Defaults,
		})
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr applyRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.chain(endpoint), decode)
}

// --- template_list ---

type listRequest struct {
	Term            string `json:"term,omitempty"`
	Category        string `json:"category,omitempty"`
	Format          string `json:"format,omitempty"`
	IncludeMetadata *bool  `json:"include_metadata,omitempty"`
}

// templateSummary is the stripped listing entry when metadata is not
// requested.
type templateSummary struct {
	Name   string `json:"name"`
	Format string `json:"format"`
}

func (s *Service) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "template_list",
		Description: "List registered templates ordered by name, optionally filtered by a search term (name, description or category, case-insensitive), category, or format.",
		InputSchema: inputSchema(map[string]any{
			"term":             map[string]any{"type": "string", "description": "Substring to match in name, description or category"},
			"category":         map[string]any{"type": "string", "description": "Exact category filter"},
			"format":           map[string]any{"type": "string", "description": "Exact format filter (e.g. odt)"},
			"include_metadata": map[string]any{"type": "boolean", "description": "Return full records (default) or just name and format"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*listRequest)
		list, err := s.List(ctx, rr.Term, rr.Category, rr.Format)
		if err != nil {
			return nil, err
		}
		if rr.IncludeMetadata != nil && !*rr.IncludeMetadata {
			summaries := make([]templateSummary, len(list))
			for i, tpl := range list {
				summaries[i] = templateSummary{Name: tpl.Name, Format: tpl.Format}
			}
			return map[string]any{"templates": summaries, "count": len(summaries)}, nil
		}
		return map[string]any{"templates": list, "count": len(list)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr listRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.chain(endpoint), decode)
}

// --- template_delete ---

type deleteRequest struct {
	Name string `json:"name"`
}

func (s *Service) registerDeleteTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "template_delete",
		Description: "Remove a registered template and its stored document.",
		InputSchema: inputSchema(map[string]any{
			"name": map[string]any{"type": "string", "description": "Registered template name"},
		}, []string{"name"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*deleteRequest)
		if err := s.Delete(ctx, rr.Name); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": rr.Name}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr deleteRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.chain(endpoint), decode)
}
