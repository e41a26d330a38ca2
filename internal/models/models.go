package models

// Workspace is an entry in the meta database. Each workspace owns an isolated
// graph database.
type Workspace struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	DBPath      string `json:"db_path"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Element is a node in the knowledge graph.
type Element struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Notes      string            `json:"notes"`
	Tags       []string          `json:"tags"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  string            `json:"createdAt"`
	UpdatedAt  string            `json:"updatedAt"`
	X          *float64          `json:"x,omitempty"`
	Y          *float64          `json:"y,omitempty"`
	FX         *float64          `json:"fx,omitempty"`
	FY         *float64          `json:"fy,omitempty"`
}

// Direction is a display hint for a relationship.
type Direction string

const (
	DirectionNone Direction = "NONE"
	DirectionTo   Direction = "TO"
	DirectionFrom Direction = "FROM"
	DirectionBoth Direction = "BOTH"
)

// Relationship is an edge between two elements.
type Relationship struct {
	ID         string            `json:"id"`
	Source     string            `json:"source"`
	Target     string            `json:"target"`
	Label      string            `json:"label"`
	Direction  Direction         `json:"direction"`
	Tags       []string          `json:"tags"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// TagFilter restricts elements by tag membership.
type TagFilter struct {
	Included []string `json:"included"`
	Excluded []string `json:"excluded"`
}

// DateFilter restricts elements by creation and update date. Values are
// compared on their first ten characters (YYYY-MM-DD).
type DateFilter struct {
	CreatedAfter  string `json:"createdAfter,omitempty"`
	CreatedBefore string `json:"createdBefore,omitempty"`
	UpdatedAfter  string `json:"updatedAfter,omitempty"`
	UpdatedBefore string `json:"updatedBefore,omitempty"`
}

// NodeFilter restricts elements to the neighborhood of CenterID.
type NodeFilter struct {
	Active   bool   `json:"active"`
	CenterID string `json:"centerId"`
	Hops     int    `json:"hops"`
}

// ViewFilters groups the attribute filters of a view.
type ViewFilters struct {
	Tags       TagFilter  `json:"tags"`
	Date       DateFilter `json:"date"`
	NodeFilter NodeFilter `json:"nodeFilter"`
}

// Position is a pinned canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GraphView is a named, persisted filter configuration over the graph.
type GraphView struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Description        string              `json:"description"`
	ExplicitInclusions []string            `json:"explicitInclusions"`
	ExplicitExclusions []string            `json:"explicitExclusions"`
	Filters            ViewFilters         `json:"filters"`
	NodePositions      map[string]Position `json:"nodePositions,omitempty"`
}

// SelectionMode selects how a selection overlay is applied.
type SelectionMode string

const (
	SelectionHide       SelectionMode = "hide"
	SelectionHideOthers SelectionMode = "hide_others"
)

// SelectionFilter hides listed ids, or everything but the listed ids.
type SelectionFilter struct {
	Mode SelectionMode `json:"mode"`
	IDs  []string      `json:"ids"`
}

// Overlay is a transient filter layered on top of the active view. It is
// never persisted.
type Overlay struct {
	Neighborhood *NodeFilter      `json:"neighborhood,omitempty"`
	Selection    *SelectionFilter `json:"selection,omitempty"`
}

// Folder groups documents.
type Folder struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
}

// Document is a free-text note stored alongside the graph.
type Document struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	FolderID  string `json:"folderId,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Board is a kanban board. Elements sit in a column when their AttributeKey
// attribute equals the column name.
type Board struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Columns      []string `json:"columns"`
	AttributeKey string   `json:"attributeKey"`
	CreatedAt    string   `json:"createdAt"`
}

// StepStatus is the lifecycle state of a plan step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepError      StepStatus = "error"
)

// PlanStep is one node of an AI-proposed plan.
type PlanStep struct {
	ID           string     `json:"id"`
	Description  string     `json:"description"`
	Prompt       string     `json:"prompt"`
	Dependencies []string   `json:"dependencies"`
	Status       StepStatus `json:"status"`
	Result       string     `json:"result,omitempty"`
}

// ToolCall is a named tool invocation.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolOutcome is the uniform result payload of a dispatched tool call.
type ToolOutcome struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Skipped bool           `json:"skipped,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// ToolResponse wraps the outcome the way it is fed back to the model.
type ToolResponse struct {
	Result ToolOutcome `json:"result"`
}

// ToolResult is always produced for a ToolCall, even on failure.
type ToolResult struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Response ToolResponse `json:"response"`
}

// Snapshot is a deep copy of the graph store's persisted state.
type Snapshot struct {
	Version       uint64         `json:"version"`
	Elements      []Element      `json:"elements"`
	Relationships []Relationship `json:"relationships"`
	Views         []GraphView    `json:"views"`
	ActiveViewID  string         `json:"activeViewId,omitempty"`
	Folders       []Folder       `json:"folders"`
	Documents     []Document     `json:"documents"`
	Boards        []Board        `json:"boards"`
	ActiveBoardID string         `json:"activeBoardId,omitempty"`
}

// Clone returns a deep copy of e.
func (e Element) Clone() Element {
	c := e
	c.Tags = append([]string(nil), e.Tags...)
	c.Attributes = cloneMap(e.Attributes)
	c.X = cloneFloat(e.X)
	c.Y = cloneFloat(e.Y)
	c.FX = cloneFloat(e.FX)
	c.FY = cloneFloat(e.FY)
	return c
}

// Clone returns a deep copy of r.
func (r Relationship) Clone() Relationship {
	c := r
	c.Tags = append([]string(nil), r.Tags...)
	c.Attributes = cloneMap(r.Attributes)
	return c
}

// Clone returns a deep copy of v.
func (v GraphView) Clone() GraphView {
	c := v
	c.ExplicitInclusions = append([]string(nil), v.ExplicitInclusions...)
	c.ExplicitExclusions = append([]string(nil), v.ExplicitExclusions...)
	c.Filters.Tags.Included = append([]string(nil), v.Filters.Tags.Included...)
	c.Filters.Tags.Excluded = append([]string(nil), v.Filters.Tags.Excluded...)
	if v.NodePositions != nil {
		c.NodePositions = make(map[string]Position, len(v.NodePositions))
		for k, p := range v.NodePositions {
			c.NodePositions[k] = p
		}
	}
	return c
}

// Clone returns a deep copy of b.
func (b Board) Clone() Board {
	c := b
	c.Columns = append([]string(nil), b.Columns...)
	return c
}

// Clone returns a deep copy of s.
func (s PlanStep) Clone() PlanStep {
	c := s
	c.Dependencies = append([]string(nil), s.Dependencies...)
	return c
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
