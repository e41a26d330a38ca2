package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/embernet/tapestry-sub001/internal/session"
	"github.com/embernet/tapestry-sub001/internal/tools"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// New creates a fully configured MCP server with all tools registered. The
// dispatcher must act on the session's store.
func New(sess *session.Session, dispatcher *tools.Dispatcher, logger *zap.Logger) *mcp.Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	wt := &WorkspaceTools{Session: sess}
	gt := &GraphTools{Session: sess, Dispatcher: dispatcher, Logger: logger}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "tapestry",
		Version: Version,
	}, nil)

	// Workspace management tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_workspaces",
		Description: "List workspaces with optional status filter (active, archived, all)",
	}, wt.ListWorkspaces)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_workspace",
		Description: "Create a new workspace with its own isolated database and switch to it",
	}, wt.CreateWorkspace)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "switch_workspace",
		Description: "Save the current workspace and load another one",
	}, wt.SwitchWorkspace)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_current_workspace",
		Description: "Get information about the currently active workspace",
	}, wt.GetCurrentWorkspace)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "save_workspace",
		Description: "Save the active workspace now",
	}, wt.SaveWorkspace)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "archive_workspace",
		Description: "Archive a workspace (preserves data, makes it inactive)",
	}, wt.ArchiveWorkspace)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "restore_workspace",
		Description: "Restore an archived workspace back to active status",
	}, wt.RestoreWorkspace)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_workspace",
		Description: "Permanently delete a workspace and all its data (irreversible)",
	}, wt.DeleteWorkspace)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_workspace",
		Description: "Full-text search over element names, notes and documents of the active workspace",
	}, wt.SearchWorkspace)

	// View controls
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_views",
		Description: "List the saved views of the active workspace (requires active workspace)",
	}, gt.ListViews)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "activate_view",
		Description: "Activate a saved view and clear any focus (requires active workspace)",
	}, gt.ActivateView)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "focus",
		Description: "Show only the neighborhood of an element; call without a name to clear (requires active workspace)",
	}, gt.Focus)

	// Graph, document and board tools from the catalog
	gt.register(srv)

	return srv
}
