package chat

import (
	"fmt"
	"strings"

	"github.com/embernet/tapestry-sub001/internal/graph"
	"github.com/embernet/tapestry-sub001/internal/tools"
	"github.com/embernet/tapestry-sub001/internal/views"
)

// Mode selects how freely the model may invent content.
type Mode string

const (
	ModeCreative Mode = "creative"
	ModeStrict   Mode = "strict"
)

const persona = `You are Tapestry, an assistant that helps the user build and explore a knowledge graph.
The graph is made of named elements (with tags, notes and attributes) and labelled relationships between them.
Documents and kanban boards live alongside the graph.

Always reply with a single JSON object with these fields:
- analysis: your private reasoning about the request.
- message: what you tell the user.
- plan: for larger tasks, a list of steps {id, description, prompt, dependencies}. Each prompt must be self-contained; a step only sees the results of the steps listed in its dependencies. Leave empty for small requests.
- actions: tool calls to apply now, each {tool, parameters} where parameters is a JSON-encoded object.
Refer to elements by their exact names.`

var modeHints = map[Mode]string{
	ModeCreative: "Mode: creative. Suggest ideas, elements and connections beyond what was literally asked when they help the user.",
	ModeStrict:   "Mode: strict. Only do what the user explicitly asks. Do not invent elements, relationships or facts.",
}

// SystemInstruction assembles the instruction for one request from the
// current state of the store.
func SystemInstruction(store *graph.Store, mode Mode, defs []tools.Definition) string {
	visible := views.Visible(store)

	var sb strings.Builder
	sb.WriteString(persona)
	sb.WriteString("\n\n")
	hint, ok := modeHints[mode]
	if !ok {
		hint = modeHints[ModeCreative]
	}
	sb.WriteString(hint)

	sb.WriteString("\n\n# Current view\n")
	sb.WriteString(views.TagSchema(store.ActiveView(), visible))

	sb.WriteString("\n\n# Visible graph\n")
	sb.WriteString(views.Markdown(visible))

	sb.WriteString("\n# Documents\n")
	docs := store.Documents()
	if len(docs) == 0 {
		sb.WriteString("None.\n")
	}
	for _, d := range docs {
		if f, ok := store.FolderByID(d.FolderID); ok {
			fmt.Fprintf(&sb, "- %s (in %s)\n", d.Title, f.Name)
		} else {
			fmt.Fprintf(&sb, "- %s\n", d.Title)
		}
	}

	sb.WriteString("\n# Kanban boards\n")
	boards := store.Boards()
	if len(boards) == 0 {
		sb.WriteString("None.\n")
	}
	active, hasActive := store.ActiveBoard()
	for _, b := range boards {
		marker := ""
		if hasActive && active.ID == b.ID {
			marker = " (active)"
		}
		fmt.Fprintf(&sb, "- %s [%s]%s: %s\n", b.Name, b.ID, marker, strings.Join(b.Columns, " | "))
	}

	sb.WriteString("\n# Tools\n")
	sb.WriteString(tools.Docs(defs))
	return sb.String()
}
