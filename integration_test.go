package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/embernet/tapestry-sub001/internal/graph"
	"github.com/embernet/tapestry-sub001/internal/models"
	"github.com/embernet/tapestry-sub001/internal/server"
	"github.com/embernet/tapestry-sub001/internal/session"
	"github.com/embernet/tapestry-sub001/internal/storage"
	"github.com/embernet/tapestry-sub001/internal/tools"
)

// setupIntegration creates a real MCP server with in-memory transport and returns a connected client session.
func setupIntegration(t *testing.T) (*mcp.ClientSession, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "tapestry-integration-*")
	if err != nil {
		t.Fatal(err)
	}

	meta, err := storage.OpenMeta(dir)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}

	store := graph.New()
	sess := session.New(meta, store, nil)
	srv := server.New(sess, tools.NewDispatcher(store), nil)

	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	_, err = srv.Connect(ctx, serverTransport, nil)
	if err != nil {
		meta.Close()
		os.RemoveAll(dir)
		t.Fatalf("server connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		meta.Close()
		os.RemoveAll(dir)
		t.Fatalf("client connect: %v", err)
	}

	cleanup := func() {
		cs.Close()
		sess.Close()
		meta.Close()
		os.RemoveAll(dir)
	}
	return cs, cleanup
}

// callTool is a helper that calls a tool and returns the text content.
func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	result, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	if result.IsError {
		t.Fatalf("CallTool(%s) returned error: %s", name, tc.Text)
	}
	return tc.Text
}

// callToolExpectError calls a tool and expects an error response (IsError=true).
func callToolExpectError(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	result, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): protocol error: %v", name, err)
	}
	if !result.IsError {
		tc := result.Content[0].(*mcp.TextContent)
		t.Fatalf("CallTool(%s): expected error but got success: %s", name, tc.Text)
	}
	tc := result.Content[0].(*mcp.TextContent)
	return tc.Text
}

// outcome decodes the JSON outcome returned by a catalog tool.
func outcome(t *testing.T, text string) models.ToolOutcome {
	t.Helper()
	var o models.ToolOutcome
	if err := json.Unmarshal([]byte(text), &o); err != nil {
		t.Fatalf("parse outcome: %v\n%s", err, text)
	}
	return o
}

func TestIntegration_ListTools(t *testing.T) {
	cs, cleanup := setupIntegration(t)
	defer cleanup()

	result, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	expectedTools := []string{
		"list_workspaces", "create_workspace", "switch_workspace", "get_current_workspace",
		"save_workspace", "archive_workspace", "restore_workspace", "delete_workspace",
		"search_workspace", "list_views", "activate_view", "focus",
	}
	for _, def := range tools.Catalog() {
		expectedTools = append(expectedTools, def.Name)
	}

	toolNames := make(map[string]bool)
	for _, tool := range result.Tools {
		toolNames[tool.Name] = true
	}

	for _, name := range expectedTools {
		if !toolNames[name] {
			t.Errorf("Missing tool: %s", name)
		}
	}

	if len(result.Tools) != len(expectedTools) {
		t.Errorf("Expected %d tools, got %d", len(expectedTools), len(result.Tools))
	}
}

func TestIntegration_FullWorkflow(t *testing.T) {
	cs, cleanup := setupIntegration(t)
	defer cleanup()

	// Step 1: create_workspace switches to the new workspace
	text := callTool(t, cs, "create_workspace", map[string]any{
		"name":        "weather",
		"description": "Integration test workspace",
	})
	var ws models.Workspace
	if err := json.Unmarshal([]byte(text), &ws); err != nil {
		t.Fatalf("parse create_workspace: %v", err)
	}
	if ws.Name != "weather" || ws.Status != "active" {
		t.Errorf("workspace = %+v", ws)
	}

	text = callTool(t, cs, "get_current_workspace", nil)
	if err := json.Unmarshal([]byte(text), &ws); err != nil {
		t.Fatalf("parse get_current_workspace: %v", err)
	}
	if ws.Name != "weather" {
		t.Errorf("current workspace = %q, want %q", ws.Name, "weather")
	}

	// Step 2: build a small graph through the catalog tools
	o := outcome(t, callTool(t, cs, "addElement", map[string]any{
		"name":  "Rain",
		"notes": "Water falling from clouds",
		"tags":  []any{"Weather"},
	}))
	if !o.Success || o.Extra["id"] == "" {
		t.Errorf("addElement outcome = %+v", o)
	}
	callTool(t, cs, "addElement", map[string]any{"name": "Wet Ground"})
	o = outcome(t, callTool(t, cs, "addRelationship", map[string]any{
		"sourceName": "Rain",
		"targetName": "Wet Ground",
		"label":      "causes",
	}))
	if !o.Success {
		t.Errorf("addRelationship outcome = %+v", o)
	}
	callTool(t, cs, "setElementAttribute", map[string]any{
		"elementName": "Rain",
		"key":         "intensity",
		"value":       3,
	})

	o = outcome(t, callTool(t, cs, "readGraph", nil))
	for _, want := range []string{"**Rain** [weather]", "intensity: 3", "Wet Ground"} {
		if !strings.Contains(o.Message, want) {
			t.Errorf("readGraph missing %q:\n%s", want, o.Message)
		}
	}

	// Step 3: documents are searchable through the workspace database
	callTool(t, cs, "createDocument", map[string]any{
		"title":   "Field log",
		"content": "It rained on the meadow all afternoon.",
	})
	text = callTool(t, cs, "search_workspace", map[string]any{"query": "rain*"})
	var hits []storage.Hit
	if err := json.Unmarshal([]byte(text), &hits); err != nil {
		t.Fatalf("parse search_workspace: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 hits for rain*, got %+v", hits)
	}

	// Step 4: focus narrows the visible graph, an empty name clears it
	callTool(t, cs, "addElement", map[string]any{"name": "Sunshine"})
	text = callTool(t, cs, "focus", map[string]any{"name": "Rain"})
	if strings.Contains(text, "Sunshine") || !strings.Contains(text, "Wet Ground") {
		t.Errorf("focus on Rain should hide Sunshine:\n%s", text)
	}
	text = callTool(t, cs, "focus", map[string]any{})
	if !strings.Contains(text, "Sunshine") {
		t.Errorf("clearing focus should show Sunshine:\n%s", text)
	}

	// Step 5: views
	text = callTool(t, cs, "list_views", nil)
	if !strings.Contains(text, graph.DefaultViewName) {
		t.Errorf("list_views missing default view: %s", text)
	}
	callTool(t, cs, "activate_view", map[string]any{"name": graph.DefaultViewName})

	// Step 6: archive, restore and switch back: data survives the round trip
	callTool(t, cs, "archive_workspace", map[string]any{"name": "weather"})
	text = callTool(t, cs, "get_current_workspace", nil)
	if !strings.Contains(text, "No workspace") {
		t.Errorf("get_current_workspace after archive = %q", text)
	}
	callTool(t, cs, "restore_workspace", map[string]any{"name": "weather"})
	callTool(t, cs, "switch_workspace", map[string]any{"name": "weather"})

	o = outcome(t, callTool(t, cs, "readGraph", nil))
	for _, want := range []string{"Rain", "Wet Ground", "Sunshine"} {
		if !strings.Contains(o.Message, want) {
			t.Errorf("graph after restore missing %q:\n%s", want, o.Message)
		}
	}
	o = outcome(t, callTool(t, cs, "readDocument", map[string]any{"title": "Field log"}))
	if !strings.Contains(o.Message, "meadow") {
		t.Errorf("readDocument after restore = %+v", o)
	}

	// Step 7: delete_workspace
	text = callTool(t, cs, "delete_workspace", map[string]any{"name": "weather"})
	if !strings.Contains(text, "permanently deleted") {
		t.Errorf("expected confirmation, got %q", text)
	}
	text = callTool(t, cs, "list_workspaces", map[string]any{"status": "all"})
	var list []models.Workspace
	json.Unmarshal([]byte(text), &list)
	if len(list) != 0 {
		t.Errorf("expected 0 workspaces after delete, got %d", len(list))
	}
}

func TestIntegration_ErrorCases(t *testing.T) {
	cs, cleanup := setupIntegration(t)
	defer cleanup()

	// Error: graph tool without active workspace
	errText := callToolExpectError(t, cs, "addElement", map[string]any{"name": "test"})
	if !strings.Contains(errText, "No active workspace") {
		t.Errorf("expected 'No active workspace', got %q", errText)
	}
	errText = callToolExpectError(t, cs, "list_views", nil)
	if !strings.Contains(errText, "No active workspace") {
		t.Errorf("expected 'No active workspace', got %q", errText)
	}

	callTool(t, cs, "create_workspace", map[string]any{"name": "error-test"})

	// Error: duplicate workspace name
	errText = callToolExpectError(t, cs, "create_workspace", map[string]any{"name": "error-test"})
	if !strings.Contains(errText, "Failed to create workspace") {
		t.Errorf("expected 'Failed to create workspace' for duplicate, got %q", errText)
	}

	// Error: failed tool outcomes are reported as tool errors
	callTool(t, cs, "addElement", map[string]any{"name": "A"})
	o := outcome(t, callToolExpectError(t, cs, "addRelationship", map[string]any{
		"sourceName": "A",
		"targetName": "NonExistent",
	}))
	if o.Success || !strings.Contains(o.Message, "not found") {
		t.Errorf("addRelationship to missing element = %+v", o)
	}
	o = outcome(t, callToolExpectError(t, cs, "addElement", map[string]any{}))
	if !strings.Contains(o.Message, "required") {
		t.Errorf("missing name should be reported, got %+v", o)
	}
	errText = callToolExpectError(t, cs, "focus", map[string]any{"name": "Nobody"})
	if !strings.Contains(errText, "not found") {
		t.Errorf("expected 'not found' for focus, got %q", errText)
	}

	// Error: switch to nonexistent workspace
	errText = callToolExpectError(t, cs, "switch_workspace", map[string]any{"name": "nonexistent"})
	if !strings.Contains(errText, "not found") {
		t.Errorf("expected 'not found' for switch, got %q", errText)
	}

	// Error: archive twice
	callTool(t, cs, "archive_workspace", map[string]any{"name": "error-test"})
	errText = callToolExpectError(t, cs, "archive_workspace", map[string]any{"name": "error-test"})
	if !strings.Contains(errText, "already archived") {
		t.Errorf("expected 'already archived', got %q", errText)
	}

	// Error: switch to archived workspace
	errText = callToolExpectError(t, cs, "switch_workspace", map[string]any{"name": "error-test"})
	if !strings.Contains(errText, "archived") {
		t.Errorf("expected mention of 'archived' for switch, got %q", errText)
	}

	// Error: restore a workspace that is not archived
	callTool(t, cs, "restore_workspace", map[string]any{"name": "error-test"})
	errText = callToolExpectError(t, cs, "restore_workspace", map[string]any{"name": "error-test"})
	if !strings.Contains(errText, "not archived") {
		t.Errorf("expected 'not archived', got %q", errText)
	}

	callTool(t, cs, "delete_workspace", map[string]any{"name": "error-test"})
}

func TestIntegration_MultiWorkspaceIsolation(t *testing.T) {
	cs, cleanup := setupIntegration(t)
	defer cleanup()

	callTool(t, cs, "create_workspace", map[string]any{"name": "workspace-a"})
	callTool(t, cs, "addElement", map[string]any{"name": "ElementInA"})

	callTool(t, cs, "create_workspace", map[string]any{"name": "workspace-b"})
	callTool(t, cs, "addElement", map[string]any{"name": "ElementInB"})

	o := outcome(t, callTool(t, cs, "readGraph", nil))
	if strings.Contains(o.Message, "ElementInA") || !strings.Contains(o.Message, "ElementInB") {
		t.Errorf("workspace-b should only see its own element:\n%s", o.Message)
	}

	callTool(t, cs, "switch_workspace", map[string]any{"name": "workspace-a"})
	o = outcome(t, callTool(t, cs, "readGraph", nil))
	if !strings.Contains(o.Message, "ElementInA") || strings.Contains(o.Message, "ElementInB") {
		t.Errorf("workspace-a should only see its own element:\n%s", o.Message)
	}
}
