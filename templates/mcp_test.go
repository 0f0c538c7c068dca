package templates

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docsmith/bridge"
	"github.com/hazyhaar/docsmith/registry"
)

var testImpl = &mcp.Implementation{Name: "docsmith-test", Version: "0.1.0"}

func mcpSession(t *testing.T) (*bridge.Memory, *mcp.ClientSession) {
	t.Helper()
	mem := bridge.NewMemory()
	reg, err := registry.New(registry.Config{
		DBPath: filepath.Join(t.TempDir(), "registry.db"),
		Root:   "tpl",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	svc := New(Config{Root: "tpl"}, mem, reg, nil)

	srv := mcp.NewServer(testImpl, nil)
	svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()

	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return mem, session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if result.IsError {
		t.Fatalf("CallTool(%s) tool error: %v", name, result.Content)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text
}

func callToolExpectError(t *testing.T, session *mcp.ClientSession, name string, args any) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s) protocol error: %v", name, err)
	}
	if !result.IsError {
		t.Fatalf("CallTool(%s): expected tool error", name)
	}
}

func TestMCP_CreateApplyList(t *testing.T) {
	mem, session := mcpSession(t)
	mem.Put("letter",
		bridge.Run{Text: "Dear John Smith,"},
		bridge.Run{Text: "Regards"},
	)

	text := callTool(t, session, "template_create", map[string]any{
		"source_path": "letter",
		"name":        "greeting",
		"description": "Client greeting letter",
		"category":    "correspondence",
		"markers":     []string{"John Smith"},
	})
	var created CreateResult
	if err := json.Unmarshal([]byte(text), &created); err != nil {
		t.Fatalf("decode create result: %v", err)
	}
	if len(created.Placeholders) != 1 || created.Placeholders[0].Name != "JOHN_SMITH" {
		t.Fatalf("create result: %+v", created)
	}

	text = callTool(t, session, "template_apply", map[string]any{
		"name":        "greeting",
		"output_path": "out",
		"values":      map[string]string{"JOHN_SMITH": "Ada Lovelace"},
	})
	var applied ApplyResult
	if err := json.Unmarshal([]byte(text), &applied); err != nil {
		t.Fatalf("decode apply result: %v", err)
	}
	if applied.Status != StatusOK {
		t.Fatalf("apply status: %+v", applied)
	}
	if got := mem.Texts("out")[0]; got != "Dear Ada Lovelace," {
		t.Fatalf("applied text: %q", got)
	}

	text = callTool(t, session, "template_list", map[string]any{"category": "correspondence"})
	var listed struct {
		Templates []registry.Template `json:"templates"`
		Count     int                 `json:"count"`
	}
	if err := json.Unmarshal([]byte(text), &listed); err != nil {
		t.Fatalf("decode list result: %v", err)
	}
	if listed.Count != 1 || listed.Templates[0].Name != "greeting" {
		t.Fatalf("list result: %+v", listed)
	}
}

// WHAT: a failed tool call is a tool error, not a protocol error.
// WHY: one bad request must not poison the client session.
func TestMCP_ErrorsKeepSessionUsable(t *testing.T) {
	mem, session := mcpSession(t)
	mem.Put("letter", bridge.Run{Text: "hello"})

	callToolExpectError(t, session, "template_apply", map[string]any{
		"name": "ghost", "output_path": "out",
	})

	// The session still works.
	callTool(t, session, "template_create", map[string]any{
		"source_path": "letter",
		"name":        "hi",
		"markers":     []string{"hello"},
	})
}

func TestMCP_DeleteTool(t *testing.T) {
	mem, session := mcpSession(t)
	mem.Put("letter", bridge.Run{Text: "hello"})

	callTool(t, session, "template_create", map[string]any{
		"source_path": "letter", "name": "tmp", "markers": []string{"hello"},
	})
	callTool(t, session, "template_delete", map[string]any{"name": "tmp"})
	callToolExpectError(t, session, "template_delete", map[string]any{"name": "tmp"})
}

func TestMCP_ListWithoutMetadata(t *testing.T) {
	mem, session := mcpSession(t)
	mem.Put("letter", bridge.Run{Text: "hello"})

	callTool(t, session, "template_create", map[string]any{
		"source_path": "letter", "name": "hi", "markers": []string{"hello"},
	})

	text := callTool(t, session, "template_list", map[string]any{
		"include_metadata": false,
	})
	if !strings.Contains(text, `"hi"`) {
		t.Fatalf("listing missing template: %s", text)
	}
	if strings.Contains(text, "placeholders") {
		t.Fatalf("stripped listing still carries metadata: %s", text)
	}
}
