package docops

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docsmith/kit"
)

// RegisterMCP registers the document operation tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerCreateTool(srv)
	s.registerReadTool(srv)
	s.registerSearchTool(srv)
	s.registerSummaryTool(srv)
	s.registerStructureTool(srv)
	s.registerCompareTool(srv)
	s.registerMergeTool(srv)
	s.registerSplitTool(srv)
	s.registerConvertTool(srv)
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

// --- create_writer_document ---

type createDocRequest struct {
	Path       string   `json:"path"`
	Title      string   `json:"title,omitempty"`
	Paragraphs []string `json:"paragraphs,omitempty"`
}

func (s *Service) registerCreateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "create_writer_document",
		Description: "Create a new text document with an optional title heading and initial paragraphs.",
		InputSchema: inputSchema(map[string]any{
			"path":       map[string]any{"type": "string", "description": "Where to write the document"},
			"title":      map[string]any{"type": "string", "description": "Title rendered as a level-1 heading"},
			"paragraphs": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Initial body paragraphs"},
		}, []string{"path"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*createDocRequest)
		if err := s.Create(ctx, CreateParams{Path: rr.Path, Title: rr.Title, Paragraphs: rr.Paragraphs}); err != nil {
			return nil, err
		}
		return map[string]any{"path": rr.Path, "paragraphs": len(rr.Paragraphs)}, nil
	}
	kit.RegisterMCPTool(srv, tool, s.chain(endpoint), decodeInto[createDocRequest]())
}

// --- read_document ---

type readRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

func (s *Service) registerReadTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "read_document",
		Description: "Read a document as plain text, structured paragraphs with heading levels, or size metadata. Supports odt, ott, txt and (read-only) pdf.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Document to read"},
			"mode": map[string]any{"type": "string", "enum": []any{"text", "structured", "metadata"}, "description": "View to return (default text)"},
		}, []string{"path"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*readRequest)
		return s.Read(ctx, rr.Path, rr.Mode)
	}
	kit.RegisterMCPTool(srv, tool, s.chain(endpoint), decodeInto[readRequest]())
}

// --- search_in_document ---

type searchRequest struct {
	Path  string `json:"path"`
	Query string `json:"query"`
	Type  string `json:"search_type,omitempty"`
}

func (s *Service) registerSearchTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "search_in_document",
		Description: "Search a document paragraph by paragraph. Exact is a case-insensitive substring match, regex uses Go syntax, fuzzy keeps paragraphs containing at least 60% of the query's words.",
		InputSchema: inputSchema(map[string]any{
			"path":        map[string]any{"type": "string", "description": "Document to search"},
			"query":       map[string]any{"type": "string", "description": "Search text or pattern"},
			"search_type": map[string]any{"type": "string", "enum": []any{"exact", "regex", "fuzzy"}, "description": "Matching mode (default exact)"},
		}, []string{"path", "query"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*searchRequest)
		return s.Search(ctx, rr.Path, rr.Query, rr.Type)
	}
	kit.RegisterMCPTool(srv, tool, s.chain(endpoint), decodeInto[searchRequest]())
}

// --- document_summary ---

type summaryRequest struct {
	Path      string `json:"path"`
	Type      string `json:"summary_type,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
}

func (s *Service) registerSummaryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "document_summary",
		Description: "Condense a document: brief (leading sentences), detailed (heading outline with first sentences), or bullet_points (one line per paragraph).",
		InputSchema: inputSchema(map[string]any{
			"path":         map[string]any{"type": "string", "description": "Document to summarize"},
			"summary_type": map[string]any{"type": "string", "enum": []any{"brief", "detailed", "bullet_points"}, "description": "Summary style (default brief)"},
			"max_length":   map[string]any{"type": "integer", "description": "Character cap for the summary, cut at a word boundary (0 = no cap)"},
		}, []string{"path"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*summaryRequest)
		return s.Summarize(ctx, rr.Path, rr.Type, rr.MaxLength)
	}
	kit.RegisterMCPTool(srv, tool, s.chain(endpoint), decodeInto[summaryRequest]())
}

// --- analyze_document_structure ---

type structureRequest struct {
	Path  string `json:"path"`
	Depth string `json:"analysis_depth,omitempty"`
}

func (s *Service) registerStructureTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "analyze_document_structure",
		Description: "Extract a document's size statistics; detailed adds the heading outline, comprehensive also profiles the prose as technical or narrative.",
		InputSchema: inputSchema(map[string]any{
			"path":           map[string]any{"type": "string", "description": "Document to analyze"},
			"analysis_depth": map[string]any{"type": "string", "enum": []any{"basic", "detailed", "comprehensive"}, "description": "Analysis depth (default detailed)"},
		}, []string{"path"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*structureRequest)
		return s.AnalyzeStructure(ctx, rr.Path, rr.Depth)
	}
	kit.RegisterMCPTool(srv, tool, s.chain(endpoint), decodeInto[structureRequest]())
}

// --- compare_documents ---

type compareRequest struct {
	Path1 string `json:"path1"`
	Path2 string `json:"path2"`
	Type  string `json:"comparison_type,omitempty"`
}

func (s *Service) registerCompareTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "compare_documents",
		Description: "Compare two documents: content diffs paragraphs and scores word overlap, structure compares heading outlines, metadata compares size counts, comprehensive does all three.",
		InputSchema: inputSchema(map[string]any{
			"path1":           map[string]any{"type": "string", "description": "First document"},
			"path2":           map[string]any{"type": "string", "description": "Second document"},
			"comparison_type": map[string]any{"type": "string", "enum": []any{"content", "structure", "metadata", "comprehensive"}, "description": "Comparison mode (default content)"},
		}, []string{"path1", "path2"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*compareRequest)
		return s.Compare(ctx, rr.Path1, rr.Path2, rr.Type)
	}
	kit.RegisterMCPTool(srv, tool, s.chain(endpoint), decodeInto[compareRequest]())
}

// --- merge_documents ---

type mergeRequest struct {
	Paths      []string `json:"paths"`
	OutputPath string   `json:"output_path"`
	Strategy   string   `json:"strategy,omitempty"`
}

func (s *Service) registerMergeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "merge_documents",
		Description: "Merge two or more documents into one. Sequential appends each under a source heading, interleaved alternates paragraphs, smart appends while dropping duplicate paragraphs.",
		InputSchema: inputSchema(map[string]any{
			"paths":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Documents to merge, in order"},
			"output_path": map[string]any{"type": "string", "description": "Where to write the merged document"},
			"strategy":    map[string]any{"type": "string", "enum": []any{"sequential", "interleaved", "smart"}, "description": "Merge strategy (default sequential)"},
		}, []string{"paths", "output_path"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*mergeRequest)
		return s.Merge(ctx, MergeParams{Paths: rr.Paths, OutputPath: rr.OutputPath, Strategy: rr.Strategy})
	}
	kit.RegisterMCPTool(srv, tool, s.chain(endpoint), decodeInto[mergeRequest]())
}

// --- split_document ---

type splitRequest struct {
	Path      string `json:"path"`
	OutputDir string `json:"output_dir"`
	Method    string `json:"method,omitempty"`
	MaxChars  int    `json:"max_chars,omitempty"`
}

func (s *Service) registerSplitTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "split_document",
		Description: "Split a document into numbered part files: by_headings cuts at level-1 headings, by_sections at any heading, by_size after a character limit, by_pages per PDF page.",
		InputSchema: inputSchema(map[string]any{
			"path":       map[string]any{"type": "string", "description": "Document to split"},
			"output_dir": map[string]any{"type": "string", "description": "Directory for the part files"},
			"method":     map[string]any{"type": "string", "enum": []any{"by_headings", "by_sections", "by_size", "by_pages"}, "description": "Split method (default by_headings)"},
			"max_chars":  map[string]any{"type": "integer", "description": "Character limit per part for by_size (default 4000)"},
		}, []string{"path", "output_dir"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*splitRequest)
		return s.Split(ctx, SplitParams{Path: rr.Path, OutputDir: rr.OutputDir, Method: rr.Method, MaxChars: rr.MaxChars})
	}
	kit.RegisterMCPTool(srv, tool, s.chain(endpoint), decodeInto[splitRequest]())
}

// --- convert_document ---

type convertRequest struct {
	Path       string `json:"path"`
	OutputPath string `json:"output_path"`
}

func (s *Service) registerConvertTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "convert_document",
		Description: "Rewrite a document in the format implied by the output extension (odt, ott, txt). PDF input converts to txt only.",
		InputSchema: inputSchema(map[string]any{
			"path":        map[string]any{"type": "string", "description": "Source document"},
			"output_path": map[string]any{"type": "string", "description": "Destination path; its extension picks the format"},
		}, []string{"path", "output_path"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*convertRequest)
		if err := s.Convert(ctx, rr.Path, rr.OutputPath); err != nil {
			return nil, err
		}
		return map[string]any{"path": rr.Path, "output_path": rr.OutputPath}, nil
	}
	kit.RegisterMCPTool(srv, tool, s.chain(endpoint), decodeInto[convertRequest]())
}

// decodeInto builds the standard JSON-arguments decoder for a request type.
func decodeInto[T any]() func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr T
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}
}
