package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/embernet/tapestry-sub001/internal/models"
	"github.com/embernet/tapestry-sub001/internal/session"
	"github.com/embernet/tapestry-sub001/internal/storage"
)

// WorkspaceTools holds references needed by workspace management handlers.
type WorkspaceTools struct {
	Session *session.Session
}

// --- Input types ---

type ListWorkspacesInput struct {
	Status string `json:"status,omitempty" jsonschema:"Filter workspaces by status: active, archived, or all"`
}

type CreateWorkspaceInput struct {
	Name        string `json:"name" jsonschema:"Unique workspace name"`
	Description string `json:"description,omitempty" jsonschema:"Optional workspace description"`
}

type WorkspaceNameInput struct {
	Name string `json:"name" jsonschema:"Workspace name"`
}

type SearchWorkspaceInput struct {
	Query string `json:"query" jsonschema:"Full-text query over element names, notes and documents (FTS5 syntax: AND, OR, NOT, prefix*)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum hits per kind (default 20)"`
}

// --- Handlers ---

func (t *WorkspaceTools) ListWorkspaces(_ context.Context, _ *mcp.CallToolRequest, input ListWorkspacesInput) (*mcp.CallToolResult, any, error) {
	status := input.Status
	if status == "" {
		status = storage.StatusActive
	}
	list, err := t.Session.Meta().ListWorkspaces(status)
	if err != nil {
		return toolError("Failed to list workspaces: %v", err), nil, nil
	}
	if list == nil {
		list = []models.Workspace{}
	}
	return toolJSON(list)
}

func (t *WorkspaceTools) CreateWorkspace(_ context.Context, _ *mcp.CallToolRequest, input CreateWorkspaceInput) (*mcp.CallToolResult, any, error) {
	if input.Name == "" {
		return toolError("Workspace name is required"), nil, nil
	}
	w, err := t.Session.Meta().CreateWorkspace(input.Name, input.Description)
	if err != nil {
		return toolError("Failed to create workspace: %v", err), nil, nil
	}
	if _, err := t.Session.Switch(w.Name); err != nil {
		return toolError("Workspace created but failed to switch: %v", err), nil, nil
	}
	return toolJSON(w)
}

func (t *WorkspaceTools) SwitchWorkspace(_ context.Context, _ *mcp.CallToolRequest, input WorkspaceNameInput) (*mcp.CallToolResult, any, error) {
	if input.Name == "" {
		return toolError("Workspace name is required"), nil, nil
	}
	w, err := t.Session.Switch(input.Name)
	if err != nil {
		return toolError("Failed to switch workspace: %v", err), nil, nil
	}
	return toolJSON(w)
}

func (t *WorkspaceTools) GetCurrentWorkspace(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	w, ok := t.Session.Current()
	if !ok {
		return toolText("No workspace is currently active. Use switch_workspace to select one."), nil, nil
	}
	return toolJSON(w)
}

func (t *WorkspaceTools) SaveWorkspace(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	if err := t.Session.Save(); err != nil {
		return toolError("Failed to save workspace: %v", err), nil, nil
	}
	w, _ := t.Session.Current()
	return toolText(fmt.Sprintf("Workspace %q saved.", w.Name)), nil, nil
}

func (t *WorkspaceTools) ArchiveWorkspace(_ context.Context, _ *mcp.CallToolRequest, input WorkspaceNameInput) (*mcp.CallToolResult, any, error) {
	if input.Name == "" {
		return toolError("Workspace name is required"), nil, nil
	}
	if err := t.closeIfCurrent(input.Name); err != nil {
		return toolError("Failed to save workspace before archiving: %v", err), nil, nil
	}
	w, err := t.Session.Meta().ArchiveWorkspace(input.Name)
	if err != nil {
		return toolError("Failed to archive workspace: %v", err), nil, nil
	}
	return toolJSON(w)
}

func (t *WorkspaceTools) RestoreWorkspace(_ context.Context, _ *mcp.CallToolRequest, input WorkspaceNameInput) (*mcp.CallToolResult, any, error) {
	if input.Name == "" {
		return toolError("Workspace name is required"), nil, nil
	}
	w, err := t.Session.Meta().RestoreWorkspace(input.Name)
	if err != nil {
		return toolError("Failed to restore workspace: %v", err), nil, nil
	}
	return toolJSON(w)
}

func (t *WorkspaceTools) DeleteWorkspace(_ context.Context, _ *mcp.CallToolRequest, input WorkspaceNameInput) (*mcp.CallToolResult, any, error) {
	if input.Name == "" {
		return toolError("Workspace name is required"), nil, nil
	}
	if cur, ok := t.Session.Current(); ok && cur.Name == input.Name {
		t.Session.Clear()
	}
	if err := t.Session.Meta().DeleteWorkspace(input.Name); err != nil {
		return toolError("Failed to delete workspace: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Workspace %q permanently deleted.", input.Name)), nil, nil
}

func (t *WorkspaceTools) SearchWorkspace(_ context.Context, _ *mcp.CallToolRequest, input SearchWorkspaceInput) (*mcp.CallToolResult, any, error) {
	if input.Query == "" {
		return toolError("Query is required"), nil, nil
	}
	hits, err := t.Session.Search(input.Query, input.Limit)
	if err != nil {
		return toolError("Search failed: %v", err), nil, nil
	}
	if hits == nil {
		hits = []storage.Hit{}
	}
	return toolJSON(hits)
}

// closeIfCurrent saves and closes the active workspace when it is name.
func (t *WorkspaceTools) closeIfCurrent(name string) error {
	cur, ok := t.Session.Current()
	if !ok || cur.Name != name {
		return nil
	}
	if err := t.Session.Save(); err != nil {
		return err
	}
	t.Session.Clear()
	return nil
}

// --- Helpers ---

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
