// Package views computes the visible subset of the graph for a view plus an
// optional transient overlay. The pipeline order is fixed:
//
//  1. explicit exclusions drop
//  2. explicit inclusions keep (skipping 3–6)
//  3. neighborhood radius
//  4. excluded tags
//  5. included tags
//  6. created/updated date ranges
//  7. selection overlay (hide / hide_others)
//  8. pinned node positions
//
// Relationships are derived: a relationship is visible when both endpoints are.
package views

import (
	"github.com/embernet/tapestry-sub001/internal/graph"
	"github.com/embernet/tapestry-sub001/internal/models"
)

// Result is the visible part of the graph.
type Result struct {
	Elements      []models.Element
	Relationships []models.Relationship
}

// IDs returns the visible element ids.
func (r Result) IDs() map[string]bool {
	ids := make(map[string]bool, len(r.Elements))
	for _, e := range r.Elements {
		ids[e.ID] = true
	}
	return ids
}

// Visible reads the store at call time and filters it through the active view
// and overlay.
func Visible(s *graph.Store) Result {
	return Apply(s.Elements(), s.Relationships(), s.ActiveView(), s.Overlay())
}

// Apply filters elements and relationships through view and overlay. The
// inputs are not modified.
func Apply(elements []models.Element, relationships []models.Relationship, view models.GraphView, overlay models.Overlay) Result {
	excluded := toSet(view.ExplicitExclusions)
	included := toSet(view.ExplicitInclusions)

	// A center that no longer exists reaches nothing, so only explicit
	// inclusions survive.
	var neighborhood map[string]bool
	if nf, ok := activeNodeFilter(view, overlay); ok {
		neighborhood = Neighborhood(relationships, nf.CenterID, nf.Hops)
	}

	tagsOut := toSet(graph.NormalizeTags(view.Filters.Tags.Excluded))
	tagsIn := toSet(graph.NormalizeTags(view.Filters.Tags.Included))
	date := view.Filters.Date

	var visible []models.Element
	for _, e := range elements {
		if excluded[e.ID] {
			continue
		}
		if !included[e.ID] {
			if neighborhood != nil && !neighborhood[e.ID] {
				continue
			}
			if hasAny(e.Tags, tagsOut) {
				continue
			}
			if len(tagsIn) > 0 && !hasAny(e.Tags, tagsIn) {
				continue
			}
			if !MatchesDates(e, date) {
				continue
			}
		}
		visible = append(visible, e.Clone())
	}

	visible = applySelection(visible, overlay.Selection)
	applyPositions(visible, view.NodePositions)

	ids := make(map[string]bool, len(visible))
	for _, e := range visible {
		ids[e.ID] = true
	}
	var rels []models.Relationship
	for _, r := range relationships {
		if ids[r.Source] && ids[r.Target] {
			rels = append(rels, r.Clone())
		}
	}
	return Result{Elements: visible, Relationships: rels}
}

// activeNodeFilter prefers the transient overlay over the view's own filter.
func activeNodeFilter(view models.GraphView, overlay models.Overlay) (models.NodeFilter, bool) {
	if overlay.Neighborhood != nil {
		return *overlay.Neighborhood, true
	}
	if view.Filters.NodeFilter.Active {
		return view.Filters.NodeFilter, true
	}
	return models.NodeFilter{}, false
}

// Neighborhood returns the ids reachable from centerID in at most hops
// undirected edge traversals, centerID included.
func Neighborhood(relationships []models.Relationship, centerID string, hops int) map[string]bool {
	adj := make(map[string][]string)
	for _, r := range relationships {
		adj[r.Source] = append(adj[r.Source], r.Target)
		adj[r.Target] = append(adj[r.Target], r.Source)
	}

	visited := map[string]bool{centerID: true}
	layer := []string{centerID}
	for i := 0; i < hops; i++ {
		var next []string
		for _, id := range layer {
			for _, n := range adj[id] {
				if !visited[n] {
					visited[n] = true
					next = append(next, n)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		layer = next
	}
	return visited
}

func applySelection(elements []models.Element, sel *models.SelectionFilter) []models.Element {
	if sel == nil {
		return elements
	}
	ids := toSet(sel.IDs)
	out := elements[:0]
	for _, e := range elements {
		switch sel.Mode {
		case models.SelectionHide:
			if ids[e.ID] {
				continue
			}
		case models.SelectionHideOthers:
			if !ids[e.ID] {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func applyPositions(elements []models.Element, positions map[string]models.Position) {
	if len(positions) == 0 {
		return
	}
	for i := range elements {
		p, ok := positions[elements[i].ID]
		if !ok {
			continue
		}
		x, y := p.X, p.Y
		fx, fy := p.X, p.Y
		elements[i].X, elements[i].Y = &x, &y
		elements[i].FX, elements[i].FY = &fx, &fy
	}
}

// MatchesDates compares the YYYY-MM-DD prefix of the element timestamps.
// After-filters keep strictly later dates, before-filters strictly earlier.
func MatchesDates(e models.Element, f models.DateFilter) bool {
	created, updated := DateKey(e.CreatedAt), DateKey(e.UpdatedAt)
	if f.CreatedAfter != "" && !(created > DateKey(f.CreatedAfter)) {
		return false
	}
	if f.CreatedBefore != "" && !(created < DateKey(f.CreatedBefore)) {
		return false
	}
	if f.UpdatedAfter != "" && !(updated > DateKey(f.UpdatedAfter)) {
		return false
	}
	if f.UpdatedBefore != "" && !(updated < DateKey(f.UpdatedBefore)) {
		return false
	}
	return true
}

// DateKey returns the YYYY-MM-DD prefix of a timestamp.
func DateKey(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

func hasAny(tags []string, set map[string]bool) bool {
	for _, t := range tags {
		if set[t] {
			return true
		}
	}
	return false
}

func toSet(list []string) map[string]bool {
	m := make(map[string]bool, len(list))
	for _, v := range list {
		m[v] = true
	}
	return m
}
