package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/embernet/tapestry-sub001/internal/schema"
)

// Tool names.
const (
	AddElement                  = "addElement"
	UpdateElement               = "updateElement"
	DeleteElement               = "deleteElement"
	AddRelationship             = "addRelationship"
	UpdateRelationship          = "updateRelationship"
	DeleteRelationship          = "deleteRelationship"
	SetElementAttribute         = "setElementAttribute"
	DeleteElementAttribute      = "deleteElementAttribute"
	SetRelationshipAttribute    = "setRelationshipAttribute"
	DeleteRelationshipAttribute = "deleteRelationshipAttribute"
	SearchNodes                 = "searchNodes"
	GetCurrentDate              = "getCurrentDate"
	ReadGraph                   = "readGraph"

	CreateDocument = "createDocument"
	ReadDocument   = "readDocument"
	UpdateDocument = "updateDocument"
	DeleteDocument = "deleteDocument"
	CreateFolder   = "createFolder"
	MoveDocument   = "moveDocument"

	Kanban   = "kanban"
	OpenTool = "openTool"
)

// Framework tool groups. Core tools have no group and are always enabled.
const (
	GroupDocuments = "documents"
	GroupKanban    = "kanban"
	GroupUI        = "ui"
)

// Groups lists every framework group.
var Groups = []string{GroupDocuments, GroupKanban, GroupUI}

// Kanban actions.
const (
	KanbanCreateBoard = "createBoard"
	KanbanAddNode     = "addNode"
	KanbanAddToBoard  = "addToBoard"
	KanbanMoveNode    = "moveNode"
	KanbanFindNodes   = "findNodes"
	KanbanListBoards  = "listBoards"
)

// Definition describes one tool of the catalog.
type Definition struct {
	Name        string
	Description string
	Parameters  *schema.Schema
	// Group is empty for core tools.
	Group string
}

// Core reports whether the tool is always available.
func (d Definition) Core() bool { return d.Group == "" }

var directionEnum = []string{"NONE", "TO", "FROM", "BOTH"}

var catalog = []Definition{
	{
		Name:        AddElement,
		Description: "Create a new element (node) in the graph.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"name":  schema.String("Unique, human-readable name of the element."),
			"notes": schema.String("Free-text notes, markdown allowed."),
			"tags":  schema.Array("Tags classifying the element.", schema.String("")),
		}, "name"),
	},
	{
		Name:        UpdateElement,
		Description: "Update the name, notes or tags of an existing element.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"name":    schema.String("Current name of the element."),
			"newName": schema.String("New name, if renaming."),
			"notes":   schema.String("Replacement notes."),
			"tags":    schema.Array("Replacement tag list.", schema.String("")),
		}, "name"),
	},
	{
		Name:        DeleteElement,
		Description: "Delete an element and every relationship attached to it.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"name": schema.String("Name of the element to delete."),
		}, "name"),
	},
	{
		Name:        AddRelationship,
		Description: "Connect two existing elements with a labeled relationship.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"sourceName": schema.String("Name of the source element."),
			"targetName": schema.String("Name of the target element."),
			"label":      schema.String("Short verb phrase describing the relationship."),
			"direction":  schema.String("Arrow direction.", directionEnum...),
			"tags":       schema.Array("Tags classifying the relationship.", schema.String("")),
		}, "sourceName", "targetName"),
	},
	{
		Name:        UpdateRelationship,
		Description: "Change the label, direction or tags of the relationship between two elements.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"sourceName": schema.String("Name of one endpoint."),
			"targetName": schema.String("Name of the other endpoint."),
			"label":      schema.String("New label."),
			"direction":  schema.String("New arrow direction.", directionEnum...),
			"tags":       schema.Array("Replacement tag list.", schema.String("")),
		}, "sourceName", "targetName"),
	},
	{
		Name:        DeleteRelationship,
		Description: "Delete the relationship between two elements (either direction).",
		Parameters: schema.Object(map[string]*schema.Schema{
			"sourceName": schema.String("Name of one endpoint."),
			"targetName": schema.String("Name of the other endpoint."),
		}, "sourceName", "targetName"),
	},
	{
		Name:        SetElementAttribute,
		Description: "Set a key/value attribute on an element.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"elementName": schema.String("Name of the element."),
			"key":         schema.String("Attribute key."),
			"value":       schema.String("Attribute value."),
		}, "elementName", "key", "value"),
	},
	{
		Name:        DeleteElementAttribute,
		Description: "Remove an attribute from an element.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"elementName": schema.String("Name of the element."),
			"key":         schema.String("Attribute key."),
		}, "elementName", "key"),
	},
	{
		Name:        SetRelationshipAttribute,
		Description: "Set a key/value attribute on the relationship between two elements.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"sourceName": schema.String("Name of one endpoint."),
			"targetName": schema.String("Name of the other endpoint."),
			"key":        schema.String("Attribute key."),
			"value":      schema.String("Attribute value."),
		}, "sourceName", "targetName", "key", "value"),
	},
	{
		Name:        DeleteRelationshipAttribute,
		Description: "Remove an attribute from the relationship between two elements.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"sourceName": schema.String("Name of one endpoint."),
			"targetName": schema.String("Name of the other endpoint."),
			"key":        schema.String("Attribute key."),
		}, "sourceName", "targetName", "key"),
	},
	{
		Name:        SearchNodes,
		Description: "Find elements by text in name or notes, by tag, or by creation/update date (YYYY-MM-DD).",
		Parameters: schema.Object(map[string]*schema.Schema{
			"query":         schema.String("Case-insensitive text to look for in names and notes."),
			"tag":           schema.String("Exact tag the element must carry."),
			"createdAfter":  schema.String("Only elements created after this date."),
			"createdBefore": schema.String("Only elements created before this date."),
			"updatedAfter":  schema.String("Only elements updated after this date."),
			"updatedBefore": schema.String("Only elements updated before this date."),
		}),
	},
	{
		Name:        GetCurrentDate,
		Description: "Return today's date and weekday, for resolving relative dates.",
		Parameters:  schema.Object(map[string]*schema.Schema{}),
	},
	{
		Name:        ReadGraph,
		Description: "Return the currently visible graph as markdown.",
		Parameters:  schema.Object(map[string]*schema.Schema{}),
	},
	{
		Name:        CreateDocument,
		Group:       GroupDocuments,
		Description: "Create a text document, optionally inside a folder.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"title":   schema.String("Document title."),
			"content": schema.String("Document content, markdown allowed."),
			"folder":  schema.String("Name of an existing folder."),
		}, "title"),
	},
	{
		Name:        ReadDocument,
		Group:       GroupDocuments,
		Description: "Read the full content of a document.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"title": schema.String("Document title."),
		}, "title"),
	},
	{
		Name:        UpdateDocument,
		Group:       GroupDocuments,
		Description: "Replace, append to or prepend to the content of a document.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"title":   schema.String("Document title."),
			"content": schema.String("New content."),
			"mode":    schema.String("How to combine with existing content.", "replace", "append", "prepend"),
		}, "title", "content"),
	},
	{
		Name:        DeleteDocument,
		Group:       GroupDocuments,
		Description: "Delete a document.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"title": schema.String("Document title."),
		}, "title"),
	},
	{
		Name:        CreateFolder,
		Group:       GroupDocuments,
		Description: "Create a document folder, optionally nested in a parent folder.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"name":   schema.String("Folder name."),
			"parent": schema.String("Name of the parent folder."),
		}, "name"),
	},
	{
		Name:        MoveDocument,
		Group:       GroupDocuments,
		Description: "Move a document into a folder. An empty folder moves it to the root.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"title":  schema.String("Document title."),
			"folder": schema.String("Destination folder name."),
		}, "title"),
	},
	{
		Name:        Kanban,
		Group:       GroupKanban,
		Description: "Manage kanban boards: createBoard, addNode, addToBoard, moveNode, findNodes, listBoards. Elements sit in a column through a board-specific attribute.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"action": schema.String("Board operation.",
				KanbanCreateBoard, KanbanAddNode, KanbanAddToBoard, KanbanMoveNode, KanbanFindNodes, KanbanListBoards),
			"boardId":   schema.String("Board id."),
			"boardName": schema.String("Board name. Falls back to the active board."),
			"columns":   schema.Array("Columns for createBoard.", schema.String("")),
			"nodeName":  schema.String("Element name for addNode, addToBoard and moveNode."),
			"column":    schema.String("Target column, or the column to list for findNodes."),
		}, "action"),
	},
	{
		Name:        OpenTool,
		Group:       GroupUI,
		Description: "Open a UI panel for the user.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"tool": schema.String("Name of the panel to open, e.g. kanban or documents."),
		}, "tool"),
	},
}

// Catalog returns every tool definition.
func Catalog() []Definition {
	return append([]Definition(nil), catalog...)
}

// Lookup finds a definition by exact name.
func Lookup(name string) (Definition, bool) {
	for _, d := range catalog {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Enabled returns the core tools plus the framework tools whose group is in
// groups. Group names are case-insensitive.
func Enabled(groups []string) []Definition {
	on := make(map[string]bool, len(groups))
	for _, g := range groups {
		on[strings.ToLower(strings.TrimSpace(g))] = true
	}
	var out []Definition
	for _, d := range catalog {
		if d.Core() || on[d.Group] {
			out = append(out, d)
		}
	}
	return out
}

// Docs renders one line per tool: name, description, parameters and the
// required list. The block is embedded verbatim in system instructions.
func Docs(defs []Definition) string {
	var sb strings.Builder
	for _, d := range defs {
		fmt.Fprintf(&sb, "- %s: %s", d.Name, d.Description)
		var params []string
		var required []string
		if d.Parameters != nil {
			for name := range d.Parameters.Properties {
				params = append(params, paramDoc(name, d.Parameters.Properties[name]))
			}
			required = d.Parameters.Required
		}
		sort.Strings(params)
		if len(params) > 0 {
			sb.WriteString(" Parameters: " + strings.Join(params, ", ") + ".")
		}
		if len(required) > 0 {
			sb.WriteString(" Required: " + strings.Join(required, ", ") + ".")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func paramDoc(name string, s *schema.Schema) string {
	t := strings.ToLower(string(s.Type))
	if s.Type == schema.TypeArray && s.Items != nil {
		t = strings.ToLower(string(s.Items.Type)) + "[]"
	}
	if len(s.Enum) > 0 {
		t += " " + strings.Join(s.Enum, "|")
	}
	return name + " (" + t + ")"
}

// PlanningSchema is the response schema of a conversation's first turn. The
// model may answer with a plan, with actions, or with both left empty.
func PlanningSchema() *schema.Schema {
	return schema.Object(map[string]*schema.Schema{
		"analysis": schema.String("Private reasoning about the request and the current graph."),
		"message":  schema.String("Message shown to the user."),
		"plan":     schema.Array("Dependency-ordered sub-tasks. Empty when the request needs no plan.", planStepSchema()),
		"actions":  schema.Array("Tool calls to perform now.", actionSchema()),
	}, "analysis", "message", "plan", "actions")
}

// ExecutionSchema is used while a plan executes. It has no plan field, so a
// step cannot propose a new plan.
func ExecutionSchema() *schema.Schema {
	return schema.Object(map[string]*schema.Schema{
		"analysis": schema.String("Private reasoning about the step."),
		"message":  schema.String("Status message shown to the user."),
		"actions":  schema.Array("Tool calls that carry out the step.", actionSchema()),
	}, "analysis", "message", "actions")
}

func planStepSchema() *schema.Schema {
	return schema.Object(map[string]*schema.Schema{
		"id":           schema.String("Short unique step id."),
		"description":  schema.String("What the step achieves, shown to the user."),
		"prompt":       schema.String("Self-contained instruction executed in isolation."),
		"dependencies": schema.Array("Ids of steps whose output this step needs.", schema.String("")),
	}, "id", "description", "prompt", "dependencies")
}

func actionSchema() *schema.Schema {
	return schema.Object(map[string]*schema.Schema{
		"tool":       schema.String("Tool name from the catalog."),
		"parameters": schema.String("JSON-encoded object of tool arguments."),
	}, "tool", "parameters")
}
