package graph

import (
	"strings"

	"github.com/embernet/tapestry-sub001/internal/models"
)

// DefaultViewName names the view every store starts with.
const DefaultViewName = "All"

// ensureDefaultView must be called with the lock held (or before the store is shared).
func (s *Store) ensureDefaultView() {
	if len(s.views) == 0 {
		s.views = append(s.views, models.GraphView{
			ID:          s.newID(),
			Name:        DefaultViewName,
			Description: "Every element in the graph",
		})
	}
	for _, v := range s.views {
		if v.ID == s.activeViewID {
			return
		}
	}
	s.activeViewID = s.views[0].ID
}

func (s *Store) viewIndex(idOrName string) int {
	for i := range s.views {
		if s.views[i].ID == idOrName {
			return i
		}
	}
	for i := range s.views {
		if equalFold(s.views[i].Name, idOrName) {
			return i
		}
	}
	return -1
}

// Views returns a copy of every view.
func (s *Store) Views() []models.GraphView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.GraphView, len(s.views))
	for i, v := range s.views {
		out[i] = v.Clone()
	}
	return out
}

// ActiveView returns the single active view.
func (s *Store) ActiveView() models.GraphView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.views {
		if v.ID == s.activeViewID {
			return v.Clone()
		}
	}
	return s.views[0].Clone()
}

// CreateView stores v under a new id and returns it.
func (s *Store) CreateView(v models.GraphView) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := v.Clone()
	c.ID = s.newID()
	c.Name = strings.TrimSpace(c.Name)
	s.views = append(s.views, c)
	s.touch()
	return c.ID
}

// UpdateView replaces the view with the same id.
func (s *Store) UpdateView(v models.GraphView) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.views {
		if s.views[i].ID == v.ID {
			s.views[i] = v.Clone()
			s.touch()
			return true
		}
	}
	return false
}

// DeleteView removes a view. The last remaining view cannot be deleted.
func (s *Store) DeleteView(idOrName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.viewIndex(idOrName)
	if i < 0 || len(s.views) == 1 {
		return false
	}
	s.views = append(s.views[:i], s.views[i+1:]...)
	s.ensureDefaultView()
	s.touch()
	return true
}

// SetActiveView activates a view by id or name and clears any transient overlay.
func (s *Store) SetActiveView(idOrName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.viewIndex(idOrName)
	if i < 0 {
		return false
	}
	s.activeViewID = s.views[i].ID
	s.overlay = models.Overlay{}
	s.touch()
	return true
}

// Overlay returns the transient overlay.
func (s *Store) Overlay() models.Overlay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneOverlay(s.overlay)
}

// SetOverlay layers a transient filter over the active view.
func (s *Store) SetOverlay(o models.Overlay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay = cloneOverlay(o)
	s.touch()
}

// ClearOverlay drops the transient filter.
func (s *Store) ClearOverlay() {
	s.SetOverlay(models.Overlay{})
}

func cloneOverlay(o models.Overlay) models.Overlay {
	var c models.Overlay
	if o.Neighborhood != nil {
		n := *o.Neighborhood
		c.Neighborhood = &n
	}
	if o.Selection != nil {
		sel := models.SelectionFilter{Mode: o.Selection.Mode, IDs: append([]string(nil), o.Selection.IDs...)}
		c.Selection = &sel
	}
	return c
}
