// Package tools holds the tool catalog the model acts through and the
// dispatcher that executes tool calls against a graph store. Execute never
// panics or returns an error: every call yields a ToolResult carrying a
// success flag and a message the model can read on its next turn.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/embernet/tapestry-sub001/internal/apperrors"
	"github.com/embernet/tapestry-sub001/internal/graph"
	"github.com/embernet/tapestry-sub001/internal/models"
	"github.com/embernet/tapestry-sub001/internal/views"
)

// Outcome labels reported to a Recorder.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
	OutcomeUnknown = "unknown"
)

// Recorder receives one observation per dispatched call.
type Recorder interface {
	ToolCall(tool, outcome string)
}

// OpenToolFunc opens a UI panel. Headless hosts leave it nil.
type OpenToolFunc func(ctx context.Context, tool string) error

// Dispatcher executes tool calls against a store.
type Dispatcher struct {
	store    *graph.Store
	groups   map[string]bool
	openTool OpenToolFunc
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithEnabledGroups enables framework tool groups. Core tools are always on.
func WithEnabledGroups(groups []string) Option {
	return func(d *Dispatcher) {
		d.groups = make(map[string]bool, len(groups))
		for _, g := range groups {
			d.groups[strings.ToLower(strings.TrimSpace(g))] = true
		}
	}
}

// WithOpenTool wires the UI callback used by openTool.
func WithOpenTool(fn OpenToolFunc) Option {
	return func(d *Dispatcher) { d.openTool = fn }
}

// WithRecorder wires a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock overrides the clock used by getCurrentDate.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a dispatcher for store. All framework groups are
// enabled unless WithEnabledGroups says otherwise.
func NewDispatcher(store *graph.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	WithEnabledGroups(Groups)(d)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Definitions returns the tools this dispatcher accepts.
func (d *Dispatcher) Definitions() []Definition {
	groups := make([]string, 0, len(d.groups))
	for g := range d.groups {
		groups = append(groups, g)
	}
	return Enabled(groups)
}

// Execute runs calls in order and returns one result per call. Calls whose id
// is in rejected are skipped without touching the store.
func (d *Dispatcher) Execute(ctx context.Context, calls []models.ToolCall, rejected map[string]bool) []models.ToolResult {
	results := make([]models.ToolResult, len(calls))
	for i, call := range calls {
		results[i] = d.ExecuteOne(ctx, call, rejected[call.ID])
	}
	return results
}

// ExecuteOne runs a single call.
func (d *Dispatcher) ExecuteOne(ctx context.Context, call models.ToolCall, rejected bool) (result models.ToolResult) {
	result = models.ToolResult{ID: call.ID, Name: call.Name}
	outcome := OutcomeFailure

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool panicked", zap.String("tool", call.Name), zap.Any("panic", r))
			result.Response.Result = failure("Error executing %s: %v", call.Name, r)
			outcome = OutcomeFailure
		}
		if d.recorder != nil {
			d.recorder.ToolCall(call.Name, outcome)
		}
	}()

	if rejected {
		result.Response.Result = models.ToolOutcome{Skipped: true, Message: "Skipped: the user declined this action."}
		outcome = OutcomeSkipped
		return result
	}

	args, err := Decode(call.Name, call.Args)
	if errors.Is(err, ErrUnknownTool) {
		result.Response.Result = models.ToolOutcome{Message: "Unknown function"}
		outcome = OutcomeUnknown
		return result
	}
	if err != nil {
		result.Response.Result = failure("%v", err)
		return result
	}
	if def, _ := Lookup(call.Name); !def.Core() && !d.groups[def.Group] {
		result.Response.Result = failure("Tool %s is not enabled.", call.Name)
		return result
	}

	out, err := d.dispatch(ctx, args)
	if err != nil {
		d.logger.Debug("tool failed", zap.String("tool", call.Name), zap.Error(err))
		out = failure("%v", err)
	}
	if out.Success {
		outcome = OutcomeSuccess
	}
	result.Response.Result = out
	return result
}

func (d *Dispatcher) dispatch(ctx context.Context, args Args) (models.ToolOutcome, error) {
	s := d.store
	switch a := args.(type) {
	case *AddElementArgs:
		id := s.AddElement(graph.ElementData{Name: a.Name, Notes: a.Notes, Tags: a.Tags})
		return success(map[string]any{"id": id}, "Added element %q.", a.Name), nil

	case *UpdateElementArgs:
		patch := graph.ElementPatch{Name: a.NewName, Notes: a.Notes}
		if a.Tags != nil {
			patch.Tags = a.Tags
		}
		if !s.UpdateElement(a.Name, patch) {
			return notFound("Element", a.Name), nil
		}
		return success(nil, "Updated element %q.", a.Name), nil

	case *DeleteElementArgs:
		if !s.DeleteElement(a.Name) {
			return notFound("Element", a.Name), nil
		}
		return success(nil, "Deleted element %q and its relationships.", a.Name), nil

	case *AddRelationshipArgs:
		id, ok := s.AddRelationship(a.SourceName, a.TargetName, a.Label, a.Direction, a.Tags...)
		if !ok {
			return endpointsMissing(s, a.SourceName, a.TargetName), nil
		}
		return success(map[string]any{"id": id}, "Connected %q -[%s]-> %q.", a.SourceName, a.Label, a.TargetName), nil

	case *UpdateRelationshipArgs:
		patch := graph.RelationshipPatch{Label: a.Label, Direction: a.Direction}
		if a.Tags != nil {
			patch.Tags = a.Tags
		}
		if !s.UpdateRelationship(a.SourceName, a.TargetName, patch) {
			return relationshipMissing(a.SourceName, a.TargetName), nil
		}
		return success(nil, "Updated the relationship between %q and %q.", a.SourceName, a.TargetName), nil

	case *DeleteRelationshipArgs:
		if !s.DeleteRelationship(a.SourceName, a.TargetName) {
			return relationshipMissing(a.SourceName, a.TargetName), nil
		}
		return success(nil, "Deleted the relationship between %q and %q.", a.SourceName, a.TargetName), nil

	case *SetElementAttributeArgs:
		if !s.SetElementAttribute(a.ElementName, a.Key, string(a.Value)) {
			return notFound("Element", a.ElementName), nil
		}
		return success(nil, "Set %s=%s on %q.", a.Key, a.Value, a.ElementName), nil

	case *DeleteElementAttributeArgs:
		if !s.DeleteElementAttribute(a.ElementName, a.Key) {
			return notFound("Element", a.ElementName), nil
		}
		return success(nil, "Removed %s from %q.", a.Key, a.ElementName), nil

	case *SetRelationshipAttributeArgs:
		if !s.SetRelationshipAttribute(a.SourceName, a.TargetName, a.Key, string(a.Value)) {
			return relationshipMissing(a.SourceName, a.TargetName), nil
		}
		return success(nil, "Set %s=%s on the relationship between %q and %q.", a.Key, a.Value, a.SourceName, a.TargetName), nil

	case *DeleteRelationshipAttributeArgs:
		if !s.DeleteRelationshipAttribute(a.SourceName, a.TargetName, a.Key) {
			return relationshipMissing(a.SourceName, a.TargetName), nil
		}
		return success(nil, "Removed %s from the relationship between %q and %q.", a.Key, a.SourceName, a.TargetName), nil

	case *SearchNodesArgs:
		return d.searchNodes(a)

	case *GetCurrentDateArgs:
		now := d.now()
		return success(map[string]any{
			"date":    now.Format("2006-01-02"),
			"weekday": now.Weekday().String(),
		}, "Today is %s, %s.", now.Weekday(), now.Format("2006-01-02")), nil

	case *ReadGraphArgs:
		return success(nil, "%s", views.Markdown(views.Visible(s))), nil

	case *CreateDocumentArgs:
		doc, ok := s.CreateDocument(a.Title, a.Content, a.Folder)
		if !ok {
			return notFound("Folder", a.Folder), nil
		}
		return success(map[string]any{"id": doc.ID}, "Created document %q.", doc.Title), nil

	case *ReadDocumentArgs:
		doc, ok := s.ReadDocument(a.Title)
		if !ok {
			return notFound("Document", a.Title), nil
		}
		return success(map[string]any{"id": doc.ID}, "%s", doc.Content), nil

	case *UpdateDocumentArgs:
		mode, err := graph.ParseUpdateMode(a.Mode)
		if err != nil {
			return models.ToolOutcome{}, apperrors.NewValidationError("%v", err)
		}
		if !s.UpdateDocument(a.Title, a.Content, mode) {
			return notFound("Document", a.Title), nil
		}
		return success(nil, "Updated document %q (%s).", a.Title, mode), nil

	case *DeleteDocumentArgs:
		if !s.DeleteDocument(a.Title) {
			return notFound("Document", a.Title), nil
		}
		return success(nil, "Deleted document %q.", a.Title), nil

	case *CreateFolderArgs:
		f, ok := s.CreateFolder(a.Name, a.Parent)
		if !ok {
			return notFound("Folder", a.Parent), nil
		}
		return success(map[string]any{"id": f.ID}, "Created folder %q.", f.Name), nil

	case *MoveDocumentArgs:
		if _, ok := s.ReadDocument(a.Title); !ok {
			return notFound("Document", a.Title), nil
		}
		if !s.MoveDocument(a.Title, a.Folder) {
			return notFound("Folder", a.Folder), nil
		}
		if a.Folder == "" {
			return success(nil, "Moved document %q to the root.", a.Title), nil
		}
		return success(nil, "Moved document %q to %q.", a.Title, a.Folder), nil

	case *KanbanArgs:
		return d.kanban(a)

	case *OpenToolArgs:
		if d.openTool == nil {
			return failure("Cannot open %s: no UI is attached.", a.Target), nil
		}
		if err := d.openTool(ctx, a.Target); err != nil {
			return failure("Cannot open %s: %v", a.Target, err), nil
		}
		return success(nil, "Opened %s.", a.Target), nil
	}
	return models.ToolOutcome{Message: "Unknown function"}, nil
}

func (d *Dispatcher) searchNodes(a *SearchNodesArgs) (models.ToolOutcome, error) {
	filter := models.DateFilter{
		CreatedAfter:  a.CreatedAfter,
		CreatedBefore: a.CreatedBefore,
		UpdatedAfter:  a.UpdatedAfter,
		UpdatedBefore: a.UpdatedBefore,
	}
	for field, v := range map[string]string{
		"createdAfter":  a.CreatedAfter,
		"createdBefore": a.CreatedBefore,
		"updatedAfter":  a.UpdatedAfter,
		"updatedBefore": a.UpdatedBefore,
	} {
		if err := checkDate(field, v); err != nil {
			return models.ToolOutcome{}, err
		}
	}

	query := strings.ToLower(strings.TrimSpace(a.Query))
	tag := strings.ToLower(strings.TrimSpace(a.Tag))

	var names []string
	var matches []map[string]any
	for _, e := range d.store.Elements() {
		if query != "" &&
			!strings.Contains(strings.ToLower(e.Name), query) &&
			!strings.Contains(strings.ToLower(e.Notes), query) {
			continue
		}
		if tag != "" && !contains(e.Tags, tag) {
			continue
		}
		if !views.MatchesDates(e, filter) {
			continue
		}
		names = append(names, e.Name)
		matches = append(matches, map[string]any{
			"id":        e.ID,
			"name":      e.Name,
			"tags":      e.Tags,
			"createdAt": e.CreatedAt,
			"updatedAt": e.UpdatedAt,
		})
	}
	extra := map[string]any{"count": len(matches), "matches": matches}
	if len(matches) == 0 {
		return success(extra, "No elements matched."), nil
	}
	return success(extra, "Found %d element(s): %s.", len(matches), strings.Join(names, ", ")), nil
}

func checkDate(field, v string) error {
	if v == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", views.DateKey(v)); err != nil {
		return apperrors.NewValidationError("invalid %s date %q: expected YYYY-MM-DD", field, v)
	}
	return nil
}

func (d *Dispatcher) kanban(a *KanbanArgs) (models.ToolOutcome, error) {
	s := d.store
	switch a.Action {
	case KanbanCreateBoard:
		name := a.BoardName
		if strings.TrimSpace(name) == "" {
			return models.ToolOutcome{}, apperrors.NewValidationError("kanban createBoard: boardName is required")
		}
		b, created := s.CreateBoard(name, a.Columns, "")
		extra := map[string]any{"boardId": b.ID, "columns": b.Columns}
		if !created {
			return success(extra, "Board %q already exists; it is now the active board.", b.Name), nil
		}
		return success(extra, "Created board %q with columns %s.", b.Name, strings.Join(b.Columns, ", ")), nil

	case KanbanListBoards:
		boards := s.Boards()
		if len(boards) == 0 {
			return success(map[string]any{"boards": []string{}}, "There are no boards."), nil
		}
		names := make([]string, len(boards))
		for i, b := range boards {
			names[i] = b.Name
		}
		return success(map[string]any{"boards": names}, "Boards: %s.", strings.Join(names, ", ")), nil

	case KanbanFindNodes:
		b, ok := s.ResolveBoard(a.BoardID, a.BoardName)
		if !ok {
			return failure("No board found. Create one with createBoard first."), nil
		}
		column := ""
		if a.Column != "" {
			c, ok := graph.HasColumn(b, a.Column)
			if !ok {
				return columnMissing(b, a.Column), nil
			}
			column = c
		}
		var names []string
		for _, e := range s.Elements() {
			v, on := e.Attributes[b.AttributeKey]
			if !on || (column != "" && !strings.EqualFold(v, column)) {
				continue
			}
			names = append(names, fmt.Sprintf("%s (%s)", e.Name, v))
		}
		extra := map[string]any{"boardId": b.ID, "count": len(names)}
		if len(names) == 0 {
			return success(extra, "No elements on board %q.", b.Name), nil
		}
		return success(extra, "Board %q: %s.", b.Name, strings.Join(names, ", ")), nil

	case KanbanAddNode, KanbanAddToBoard, KanbanMoveNode:
		if strings.TrimSpace(a.NodeName) == "" {
			return models.ToolOutcome{}, apperrors.NewValidationError("kanban %s: nodeName is required", a.Action)
		}
		b, ok := s.ResolveBoard(a.BoardID, a.BoardName)
		if !ok {
			return failure("No board found. Create one with createBoard first."), nil
		}
		column := b.Columns[0]
		if a.Column != "" {
			c, ok := graph.HasColumn(b, a.Column)
			if !ok {
				return columnMissing(b, a.Column), nil
			}
			column = c
		} else if a.Action == KanbanMoveNode {
			return models.ToolOutcome{}, apperrors.NewValidationError("kanban moveNode: column is required")
		}
		created := false
		if _, ok := s.FindElement(a.NodeName); !ok {
			if a.Action == KanbanMoveNode {
				return notFound("Element", a.NodeName), nil
			}
			s.AddElement(graph.ElementData{Name: a.NodeName})
			created = true
		}
		s.SetElementAttribute(a.NodeName, b.AttributeKey, column)
		extra := map[string]any{"boardId": b.ID, "column": column, "created": created}
		if created {
			return success(extra, "Created %q and placed it in %s on board %q.", a.NodeName, column, b.Name), nil
		}
		return success(extra, "Placed %q in %s on board %q.", a.NodeName, column, b.Name), nil
	}
	return models.ToolOutcome{}, apperrors.NewValidationError("unknown kanban action %q", a.Action)
}

func success(extra map[string]any, format string, args ...any) models.ToolOutcome {
	return models.ToolOutcome{Success: true, Message: fmt.Sprintf(format, args...), Extra: extra}
}

func failure(format string, args ...any) models.ToolOutcome {
	return models.ToolOutcome{Message: fmt.Sprintf(format, args...)}
}

func notFound(kind, name string) models.ToolOutcome {
	return failure("%v.", apperrors.NewNotFoundError(kind, name))
}

func relationshipMissing(source, target string) models.ToolOutcome {
	return failure("No relationship between %q and %q.", source, target)
}

func endpointsMissing(s *graph.Store, source, target string) models.ToolOutcome {
	if _, ok := s.FindElement(source); !ok {
		return notFound("Element", source)
	}
	return notFound("Element", target)
}

func columnMissing(b models.Board, column string) models.ToolOutcome {
	return failure("Board %q has no column %q (columns: %s).", b.Name, column, strings.Join(b.Columns, ", "))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
