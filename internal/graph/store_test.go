package graph

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embernet/tapestry-sub001/internal/models"
)

// newTestStore returns a store with sequential ids and a controllable clock.
func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	n := 0
	s := New(
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
	return s, &now
}

func TestAddElementNormalizesTags(t *testing.T) {
	s, _ := newTestStore(t)

	s.AddElement(ElementData{Name: "Rain", Tags: []string{"Weather", " weather ", "WET", ""}})
	e, ok := s.FindElement("rain")
	require.True(t, ok)
	assert.Equal(t, []string{"weather", "wet"}, e.Tags)

	require.True(t, s.UpdateElement("Rain", ElementPatch{Tags: []string{"Weather", "Weather"}}))
	require.True(t, s.UpdateElement("Rain", ElementPatch{Tags: []string{"Weather", "Weather"}}))
	e, _ = s.FindElement("Rain")
	assert.Equal(t, []string{"weather"}, e.Tags)
}

func TestAddElementPlacesOnSpiral(t *testing.T) {
	s1, _ := newTestStore(t)
	s2, _ := newTestStore(t)
	for i := 0; i < 3; i++ {
		s1.AddElement(ElementData{Name: fmt.Sprintf("n%d", i)})
		s2.AddElement(ElementData{Name: fmt.Sprintf("n%d", i)})
	}
	a, b := s1.Elements(), s2.Elements()
	for i := range a {
		require.NotNil(t, a[i].X)
		assert.Equal(t, *a[i].X, *b[i].X)
		assert.Equal(t, *a[i].Y, *b[i].Y)
	}
	assert.NotEqual(t, *a[1].X, *a[2].X)

	x, y := 12.5, -3.0
	s1.AddElement(ElementData{Name: "pinned", X: &x, Y: &y})
	e, _ := s1.FindElement("pinned")
	assert.Equal(t, 12.5, *e.X)
	assert.Equal(t, -3.0, *e.Y)
}

func TestUpdateElementBumpsUpdatedAt(t *testing.T) {
	s, now := newTestStore(t)
	s.AddElement(ElementData{Name: "Rain"})

	*now = now.Add(48 * time.Hour)
	notes := "falls from clouds"
	require.True(t, s.UpdateElement("RAIN", ElementPatch{Notes: &notes, Attributes: map[string]string{"kind": "weather"}}))

	e, _ := s.FindElement("Rain")
	assert.Equal(t, "2024-03-01T09:00:00Z", e.CreatedAt)
	assert.Equal(t, "2024-03-03T09:00:00Z", e.UpdatedAt)
	assert.Equal(t, "falls from clouds", e.Notes)
	assert.Equal(t, "weather", e.Attributes["kind"])

	assert.False(t, s.UpdateElement("Snow", ElementPatch{Notes: &notes}))
}

func TestFindElementFirstMatchWins(t *testing.T) {
	s, _ := newTestStore(t)
	first := s.AddElement(ElementData{Name: "Node"})
	s.AddElement(ElementData{Name: "node"})

	e, ok := s.FindElement("NODE")
	require.True(t, ok)
	assert.Equal(t, first, e.ID)
}

func TestDeleteElementCascades(t *testing.T) {
	s, _ := newTestStore(t)
	for _, n := range []string{"A", "B", "C"} {
		s.AddElement(ElementData{Name: n})
	}
	_, ok := s.AddRelationship("A", "B", "knows", "to")
	require.True(t, ok)
	_, ok = s.AddRelationship("C", "A", "likes", "")
	require.True(t, ok)
	_, ok = s.AddRelationship("B", "C", "sees", "both")
	require.True(t, ok)

	require.True(t, s.DeleteElement("a"))
	rels := s.Relationships()
	require.Len(t, rels, 1)
	assert.Equal(t, "sees", rels[0].Label)

	assert.False(t, s.DeleteElement("A"))
}

func TestDeleteElementPrunesViewReferences(t *testing.T) {
	s, _ := newTestStore(t)
	id := s.AddElement(ElementData{Name: "A"})
	v := s.ActiveView()
	v.ExplicitInclusions = []string{id}
	v.NodePositions = map[string]models.Position{id: {X: 1, Y: 2}}
	require.True(t, s.UpdateView(v))

	s.DeleteElement("A")
	v = s.ActiveView()
	assert.Empty(t, v.ExplicitInclusions)
	assert.Empty(t, v.NodePositions)
}

func TestDeleteElementClearsNeighborhoodFilters(t *testing.T) {
	s, _ := newTestStore(t)
	a := s.AddElement(ElementData{Name: "A"})
	b := s.AddElement(ElementData{Name: "B"})
	v := s.ActiveView()
	v.Filters.NodeFilter = models.NodeFilter{Active: true, CenterID: a, Hops: 2}
	require.True(t, s.UpdateView(v))
	s.SetOverlay(models.Overlay{Neighborhood: &models.NodeFilter{Active: true, CenterID: a, Hops: 1}})

	require.True(t, s.DeleteElement("A"))
	assert.False(t, s.ActiveView().Filters.NodeFilter.Active)
	assert.Nil(t, s.Overlay().Neighborhood)

	// Filters centered elsewhere are kept.
	v = s.ActiveView()
	v.Filters.NodeFilter = models.NodeFilter{Active: true, CenterID: b, Hops: 1}
	require.True(t, s.UpdateView(v))
	s.AddElement(ElementData{Name: "C"})
	require.True(t, s.DeleteElement("C"))
	assert.Equal(t, b, s.ActiveView().Filters.NodeFilter.CenterID)
}

func TestAddRelationshipDirection(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddElement(ElementData{Name: "A"})
	s.AddElement(ElementData{Name: "B"})

	cases := map[string]models.Direction{
		"none":     models.DirectionNone,
		"From":     models.DirectionFrom,
		"BOTH":     models.DirectionBoth,
		"to":       models.DirectionTo,
		"sideways": models.DirectionTo,
		"":         models.DirectionTo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseDirection(in), in)
	}

	_, ok := s.AddRelationship("A", "Missing", "x", "to")
	assert.False(t, ok)
}

func TestDeleteRelationshipMatchesEitherDirection(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddElement(ElementData{Name: "A"})
	s.AddElement(ElementData{Name: "B"})
	s.AddRelationship("A", "B", "first", "to")
	s.AddRelationship("A", "B", "second", "to")

	require.True(t, s.DeleteRelationship("b", "a"))
	rels := s.Relationships()
	require.Len(t, rels, 1)
	assert.Equal(t, "second", rels[0].Label)

	assert.False(t, s.DeleteRelationship("A", "Nobody"))
}

func TestRelationshipAttributes(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddElement(ElementData{Name: "A"})
	s.AddElement(ElementData{Name: "B"})
	s.AddRelationship("A", "B", "x", "to")

	require.True(t, s.SetRelationshipAttribute("B", "A", "weight", "3"))
	r, ok := s.FindRelationship("A", "B")
	require.True(t, ok)
	assert.Equal(t, "3", r.Attributes["weight"])

	require.True(t, s.DeleteRelationshipAttribute("A", "B", "weight"))
	r, _ = s.FindRelationship("A", "B")
	assert.NotContains(t, r.Attributes, "weight")

	label := "y"
	dir := "both"
	require.True(t, s.UpdateRelationship("A", "B", RelationshipPatch{Label: &label, Direction: &dir}))
	r, _ = s.FindRelationship("A", "B")
	assert.Equal(t, "y", r.Label)
	assert.Equal(t, models.DirectionBoth, r.Direction)

	assert.False(t, s.SetRelationshipAttribute("A", "C", "k", "v"))
}

func TestElementAttributes(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddElement(ElementData{Name: "A"})

	require.True(t, s.SetElementAttribute("a", "color", "red"))
	e, _ := s.FindElement("A")
	assert.Equal(t, "red", e.Attributes["color"])

	require.True(t, s.DeleteElementAttribute("A", "color"))
	e, _ = s.FindElement("A")
	assert.NotContains(t, e.Attributes, "color")

	assert.False(t, s.SetElementAttribute("Z", "k", "v"))
	assert.False(t, s.DeleteElementAttribute("Z", "k"))
}

func TestDocuments(t *testing.T) {
	s, _ := newTestStore(t)

	_, ok := s.CreateDocument("Notes", "body", "Missing")
	assert.False(t, ok)

	_, ok = s.CreateFolder("Research", "")
	require.True(t, ok)
	_, ok = s.CreateFolder("Sub", "research")
	require.True(t, ok)

	d, ok := s.CreateDocument("Notes", "middle", "")
	require.True(t, ok)
	assert.Empty(t, d.FolderID)

	require.True(t, s.UpdateDocument("notes", "end", ModeAppend))
	require.True(t, s.UpdateDocument("notes", "start", ModePrepend))
	got, ok := s.ReadDocument("NOTES")
	require.True(t, ok)
	assert.Equal(t, "start\n\nmiddle\n\nend", got.Content)

	require.True(t, s.UpdateDocument("Notes", "fresh", ModeReplace))
	got, _ = s.ReadDocument("Notes")
	assert.Equal(t, "fresh", got.Content)

	require.True(t, s.MoveDocument("Notes", "Sub"))
	got, _ = s.ReadDocument("Notes")
	f, ok := s.FolderByID(got.FolderID)
	require.True(t, ok)
	assert.Equal(t, "Sub", f.Name)

	assert.False(t, s.MoveDocument("Notes", "Nowhere"))
	assert.False(t, s.UpdateDocument("Ghost", "x", ModeReplace))

	require.True(t, s.DeleteDocument("Notes"))
	_, ok = s.ReadDocument("Notes")
	assert.False(t, ok)
}

func TestParseUpdateMode(t *testing.T) {
	m, err := ParseUpdateMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeReplace, m)

	m, err = ParseUpdateMode("Append")
	require.NoError(t, err)
	assert.Equal(t, ModeAppend, m)

	_, err = ParseUpdateMode("overwrite")
	assert.Error(t, err)
}

func TestCreateBoardIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)

	b1, created := s.CreateBoard("Sprint 1", nil, "")
	require.True(t, created)
	b2, created := s.CreateBoard("sprint 1", []string{"Other"}, "")
	require.False(t, created)

	assert.Equal(t, b1.ID, b2.ID)
	assert.Len(t, s.Boards(), 1)
	assert.Equal(t, DefaultColumns, b2.Columns)
	assert.Equal(t, "kanban_sprint_1", b2.AttributeKey)

	active, ok := s.ActiveBoard()
	require.True(t, ok)
	assert.Equal(t, b1.ID, active.ID)
}

func TestResolveBoardFallbackChain(t *testing.T) {
	s, _ := newTestStore(t)
	a, _ := s.CreateBoard("Alpha", nil, "")
	b, _ := s.CreateBoard("Beta", nil, "")

	got, ok := s.ResolveBoard(a.ID, "")
	require.True(t, ok)
	assert.Equal(t, "Alpha", got.Name)

	got, ok = s.ResolveBoard("nope", "alpha")
	require.True(t, ok)
	assert.Equal(t, a.ID, got.ID)

	got, ok = s.ResolveBoard("", "")
	require.True(t, ok)
	assert.Equal(t, b.ID, got.ID)

	col, ok := HasColumn(got, "in progress")
	require.True(t, ok)
	assert.Equal(t, "In Progress", col)
	_, ok = HasColumn(got, "Blocked")
	assert.False(t, ok)
}

func TestViews(t *testing.T) {
	s, _ := newTestStore(t)
	require.Len(t, s.Views(), 1)
	assert.Equal(t, DefaultViewName, s.ActiveView().Name)
	assert.False(t, s.DeleteView(DefaultViewName))

	id := s.CreateView(models.GraphView{Name: "Weather"})
	s.SetOverlay(models.Overlay{Selection: &models.SelectionFilter{Mode: models.SelectionHide, IDs: []string{"x"}}})
	require.True(t, s.SetActiveView("weather"))
	assert.Equal(t, id, s.ActiveView().ID)
	assert.Nil(t, s.Overlay().Selection)

	require.True(t, s.DeleteView(id))
	assert.Equal(t, DefaultViewName, s.ActiveView().Name)
}

func TestSnapshotLoadDropsDanglingRelationships(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddElement(ElementData{Name: "A", Tags: []string{"x"}})
	s.AddElement(ElementData{Name: "B"})
	s.AddRelationship("A", "B", "r", "to")

	snap := s.Snapshot()
	snap.Relationships = append(snap.Relationships, models.Relationship{ID: "dangling", Source: "gone", Target: snap.Elements[0].ID})
	snap.Elements[0].Tags = []string{"X", "x"}

	other, _ := newTestStore(t)
	before := other.Version()
	other.Load(snap)

	assert.Greater(t, other.Version(), before)
	assert.Len(t, other.Elements(), 2)
	require.Len(t, other.Relationships(), 1)
	assert.Equal(t, "r", other.Relationships()[0].Label)
	e, _ := other.FindElement("A")
	assert.Equal(t, []string{"x"}, e.Tags)
	assert.Equal(t, snap.ActiveViewID, other.ActiveView().ID)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddElement(ElementData{Name: "A", Tags: []string{"x"}})

	snap := s.Snapshot()
	snap.Elements[0].Tags[0] = "mutated"
	snap.Elements[0].Attributes["k"] = "v"

	e, _ := s.FindElement("A")
	assert.Equal(t, []string{"x"}, e.Tags)
	assert.Empty(t, e.Attributes)
}
