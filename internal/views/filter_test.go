package views

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embernet/tapestry-sub001/internal/graph"
	"github.com/embernet/tapestry-sub001/internal/models"
)

func el(id string, tags ...string) models.Element {
	return models.Element{
		ID:        id,
		Name:      id,
		Tags:      tags,
		CreatedAt: "2024-03-10T12:00:00Z",
		UpdatedAt: "2024-03-20T12:00:00Z",
	}
}

func rel(src, tgt string) models.Relationship {
	return models.Relationship{ID: src + "-" + tgt, Source: src, Target: tgt, Direction: models.DirectionTo}
}

func ids(r Result) []string {
	out := make([]string, 0, len(r.Elements))
	for _, e := range r.Elements {
		out = append(out, e.ID)
	}
	sort.Strings(out)
	return out
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// chain builds A–B–C–D with mixed directions.
func chain() ([]models.Element, []models.Relationship) {
	elements := []models.Element{el("A"), el("B"), el("C"), el("D")}
	relationships := []models.Relationship{rel("A", "B"), rel("C", "B"), rel("C", "D")}
	return elements, relationships
}

func TestNeighborhood(t *testing.T) {
	_, relationships := chain()

	tests := []struct {
		hops int
		want []string
	}{
		{0, []string{"A"}},
		{1, []string{"A", "B"}},
		{2, []string{"A", "B", "C"}},
		{3, []string{"A", "B", "C", "D"}},
		{10, []string{"A", "B", "C", "D"}},
	}
	for _, tt := range tests {
		got := keys(Neighborhood(relationships, "A", tt.hops))
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("hops=%d mismatch (-want +got):\n%s", tt.hops, diff)
		}
	}
}

func TestNeighborhoodDisconnected(t *testing.T) {
	relationships := []models.Relationship{rel("A", "B"), rel("X", "Y")}
	got := keys(Neighborhood(relationships, "A", 5))
	assert.Equal(t, []string{"A", "B"}, got)

	got = keys(Neighborhood(relationships, "lonely", 2))
	assert.Equal(t, []string{"lonely"}, got)
}

func TestExclusionWinsOverEverything(t *testing.T) {
	elements, relationships := chain()
	view := models.GraphView{
		ExplicitInclusions: []string{"B"},
		ExplicitExclusions: []string{"B"},
	}
	got := Apply(elements, relationships, view, models.Overlay{})
	assert.Equal(t, []string{"A", "C", "D"}, ids(got))
	for _, r := range got.Relationships {
		assert.NotEqual(t, "B", r.Source)
		assert.NotEqual(t, "B", r.Target)
	}
}

func TestInclusionBypassesAttributeFilters(t *testing.T) {
	elements := []models.Element{el("A", "keep"), el("B", "drop"), el("C")}
	view := models.GraphView{
		ExplicitInclusions: []string{"B"},
		Filters: models.ViewFilters{
			Tags: models.TagFilter{Included: []string{"Keep"}, Excluded: []string{"drop"}},
		},
	}
	got := Apply(elements, nil, view, models.Overlay{})
	assert.Equal(t, []string{"A", "B"}, ids(got))
}

func TestNeighborhoodFilterFromViewAndOverlay(t *testing.T) {
	elements, relationships := chain()
	view := models.GraphView{Filters: models.ViewFilters{
		NodeFilter: models.NodeFilter{Active: true, CenterID: "A", Hops: 1},
	}}

	got := Apply(elements, relationships, view, models.Overlay{})
	assert.Equal(t, []string{"A", "B"}, ids(got))
	require.Len(t, got.Relationships, 1)
	assert.Equal(t, "A-B", got.Relationships[0].ID)

	overlay := models.Overlay{Neighborhood: &models.NodeFilter{Active: true, CenterID: "D", Hops: 1}}
	got = Apply(elements, relationships, view, overlay)
	assert.Equal(t, []string{"C", "D"}, ids(got))

	view.Filters.NodeFilter.CenterID = "deleted"
	got = Apply(elements, relationships, view, models.Overlay{})
	assert.Empty(t, got.Elements, "a missing center hides everything")
	assert.Empty(t, got.Relationships)

	view.ExplicitInclusions = []string{"C"}
	got = Apply(elements, relationships, view, models.Overlay{})
	assert.Equal(t, []string{"C"}, ids(got))
}

func TestTagFilters(t *testing.T) {
	elements := []models.Element{el("A", "red"), el("B", "blue"), el("C", "red", "blue"), el("D")}

	view := models.GraphView{Filters: models.ViewFilters{Tags: models.TagFilter{Excluded: []string{"BLUE"}}}}
	assert.Equal(t, []string{"A", "D"}, ids(Apply(elements, nil, view, models.Overlay{})))

	view = models.GraphView{Filters: models.ViewFilters{Tags: models.TagFilter{Included: []string{"red"}}}}
	assert.Equal(t, []string{"A", "C"}, ids(Apply(elements, nil, view, models.Overlay{})))
}

func TestDateFilters(t *testing.T) {
	elements := []models.Element{el("A")}

	tests := []struct {
		name string
		f    models.DateFilter
		keep bool
	}{
		{"created after earlier day", models.DateFilter{CreatedAfter: "2024-03-09"}, true},
		{"created after same day", models.DateFilter{CreatedAfter: "2024-03-10"}, false},
		{"created before later day", models.DateFilter{CreatedBefore: "2024-03-11T00:00:00Z"}, true},
		{"created before same day", models.DateFilter{CreatedBefore: "2024-03-10"}, false},
		{"updated after", models.DateFilter{UpdatedAfter: "2024-03-19"}, true},
		{"updated before", models.DateFilter{UpdatedBefore: "2024-03-20"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := models.GraphView{Filters: models.ViewFilters{Date: tt.f}}
			got := Apply(elements, nil, view, models.Overlay{})
			assert.Equal(t, tt.keep, len(got.Elements) == 1)
		})
	}
}

func TestSelectionOverlay(t *testing.T) {
	elements, relationships := chain()

	hide := models.Overlay{Selection: &models.SelectionFilter{Mode: models.SelectionHide, IDs: []string{"B"}}}
	got := Apply(elements, relationships, models.GraphView{}, hide)
	assert.Equal(t, []string{"A", "C", "D"}, ids(got))
	require.Len(t, got.Relationships, 1)

	others := models.Overlay{Selection: &models.SelectionFilter{Mode: models.SelectionHideOthers, IDs: []string{"C", "D"}}}
	got = Apply(elements, relationships, models.GraphView{}, others)
	assert.Equal(t, []string{"C", "D"}, ids(got))
}

func TestNodePositionsArePinned(t *testing.T) {
	elements, _ := chain()
	view := models.GraphView{NodePositions: map[string]models.Position{"A": {X: 10, Y: 20}}}

	got := Apply(elements, nil, view, models.Overlay{})
	require.NotNil(t, got.Elements[0].FX)
	assert.Equal(t, 10.0, *got.Elements[0].X)
	assert.Equal(t, 20.0, *got.Elements[0].FY)
	assert.Nil(t, got.Elements[1].FX)
	assert.Nil(t, elements[0].FX, "input must not be modified")
}

func TestVisibleReadsStore(t *testing.T) {
	s := graph.New()
	s.AddElement(graph.ElementData{Name: "Rain", Tags: []string{"weather"}})
	s.AddElement(graph.ElementData{Name: "Wet Ground"})
	s.AddRelationship("Rain", "Wet Ground", "causes", "to")

	got := Visible(s)
	assert.Len(t, got.Elements, 2)
	assert.Len(t, got.Relationships, 1)

	md := Markdown(got)
	assert.Contains(t, md, "- **Rain** [weather]")
	assert.Contains(t, md, "- Rain -[causes]-> Wet Ground")

	schema := TagSchema(s.ActiveView(), got)
	assert.Contains(t, schema, "weather (1)")
}
