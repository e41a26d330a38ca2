package server

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/embernet/tapestry-sub001/internal/models"
	"github.com/embernet/tapestry-sub001/internal/session"
	"github.com/embernet/tapestry-sub001/internal/tools"
	"github.com/embernet/tapestry-sub001/internal/views"
)

const noWorkspace = "No active workspace. Use create_workspace or switch_workspace first."

// GraphTools exposes the tool catalog and view controls of the active
// workspace. Changes are saved after every call that mutates the store.
type GraphTools struct {
	Session    *session.Session
	Dispatcher *tools.Dispatcher
	Logger     *zap.Logger
}

// --- Input types ---

type ActivateViewInput struct {
	Name string `json:"name" jsonschema:"Name or id of the view to activate"`
}

type FocusInput struct {
	Name string `json:"name,omitempty" jsonschema:"Element to center on; empty clears the focus"`
	Hops int    `json:"hops,omitempty" jsonschema:"Neighborhood radius in relationship hops (default 1)"`
}

// register adds one MCP tool per enabled catalog entry.
func (g *GraphTools) register(srv *mcp.Server) {
	for _, def := range g.Dispatcher.Definitions() {
		srv.AddTool(&mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: inputSchema(def),
		}, g.catalogHandler(def.Name))
	}
}

func inputSchema(def tools.Definition) map[string]any {
	if def.Parameters == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return def.Parameters.Map(true)
}

func (g *GraphTools) catalogHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if _, ok := g.Session.Current(); !ok {
			return toolError(noWorkspace), nil
		}
		var raw string
		if req.Params != nil {
			raw = string(req.Params.Arguments)
		}
		call := models.ToolCall{ID: uuid.NewString(), Name: name, Args: tools.ParseParameters(raw)}

		store := g.Session.Store()
		before := store.Version()
		res := g.Dispatcher.ExecuteOne(ctx, call, false)
		outcome := res.Response.Result
		if store.Version() != before {
			if err := g.Session.Save(); err != nil {
				g.Logger.Warn("autosave failed", zap.String("tool", name), zap.Error(err))
				outcome.Message += fmt.Sprintf(" (autosave failed: %v)", err)
			}
		}

		result, _, _ := toolJSON(outcome)
		result.IsError = !outcome.Success
		return result, nil
	}
}

func (g *GraphTools) ListViews(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	if _, ok := g.Session.Current(); !ok {
		return toolError(noWorkspace), nil, nil
	}
	store := g.Session.Store()
	active := store.ActiveView()
	type viewInfo struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Active bool   `json:"active"`
	}
	var out []viewInfo
	for _, v := range store.Views() {
		out = append(out, viewInfo{ID: v.ID, Name: v.Name, Active: v.ID == active.ID})
	}
	return toolJSON(out)
}

func (g *GraphTools) ActivateView(_ context.Context, _ *mcp.CallToolRequest, input ActivateViewInput) (*mcp.CallToolResult, any, error) {
	if _, ok := g.Session.Current(); !ok {
		return toolError(noWorkspace), nil, nil
	}
	store := g.Session.Store()
	if !store.SetActiveView(input.Name) {
		return toolError("View %q not found.", input.Name), nil, nil
	}
	if err := g.Session.Save(); err != nil {
		g.Logger.Warn("autosave failed", zap.Error(err))
	}
	return toolText(views.TagSchema(store.ActiveView(), views.Visible(store))), nil, nil
}

func (g *GraphTools) Focus(_ context.Context, _ *mcp.CallToolRequest, input FocusInput) (*mcp.CallToolResult, any, error) {
	if _, ok := g.Session.Current(); !ok {
		return toolError(noWorkspace), nil, nil
	}
	store := g.Session.Store()
	if input.Name == "" {
		store.ClearOverlay()
		return toolText(views.Markdown(views.Visible(store))), nil, nil
	}
	e, ok := store.FindElement(input.Name)
	if !ok {
		return toolError("Element %q not found.", input.Name), nil, nil
	}
	hops := input.Hops
	if hops <= 0 {
		hops = 1
	}
	store.SetOverlay(models.Overlay{Neighborhood: &models.NodeFilter{Active: true, CenterID: e.ID, Hops: hops}})
	return toolText(views.Markdown(views.Visible(store))), nil, nil
}
