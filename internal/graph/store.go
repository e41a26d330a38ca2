// Package graph owns the canonical knowledge graph of a workspace: elements,
// relationships and the documents, folders, kanban boards and views that sit
// beside them. Every mutation resolves its target by name (first
// case-insensitive match) and reports an unresolved name as false rather than
// an error. Deleting an element always removes the relationships touching it.
package graph

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/embernet/tapestry-sub001/internal/models"
)

// Store is safe for concurrent use. Readers always receive copies, and every
// mutation bumps Version so long-running callers can tell a fresh read from a
// stale one.
type Store struct {
	mu sync.RWMutex

	elements      []models.Element
	relationships []models.Relationship

	views        []models.GraphView
	activeViewID string
	overlay      models.Overlay

	folders   []models.Folder
	documents []models.Document

	boards        []models.Board
	activeBoardID string

	version uint64

	now   func() time.Time
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// ElementData is the input of AddElement.
type ElementData struct {
	Name       string
	Notes      string
	Tags       []string
	Attributes map[string]string
	X, Y       *float64
}

// ElementPatch describes an element update. Nil fields are left untouched;
// Attributes are merged key by key.
type ElementPatch struct {
	Name       *string
	Notes      *string
	Tags       []string
	Attributes map[string]string
	X, Y       *float64
}

// RelationshipPatch describes a relationship update.
type RelationshipPatch struct {
	Label     *string
	Direction *string
	Tags      []string
}

// New creates an empty store with a single active default view.
func New(opts ...Option) *Store {
	s := &Store{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ensureDefaultView()
	return s
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *Store) touch() {
	s.version++
}

// Version returns the mutation counter.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// --- Elements ---

func (s *Store) elementIndex(name string) int {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return -1
	}
	for i := range s.elements {
		if strings.ToLower(strings.TrimSpace(s.elements[i].Name)) == key {
			return i
		}
	}
	return -1
}

func (s *Store) elementIndexByID(id string) int {
	for i := range s.elements {
		if s.elements[i].ID == id {
			return i
		}
	}
	return -1
}

// FindElement resolves an element by name.
func (s *Store) FindElement(name string) (models.Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.elementIndex(name)
	if i < 0 {
		return models.Element{}, false
	}
	return s.elements[i].Clone(), true
}

// ElementByID returns the element with the given id.
func (s *Store) ElementByID(id string) (models.Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.elementIndexByID(id)
	if i < 0 {
		return models.Element{}, false
	}
	return s.elements[i].Clone(), true
}

// Elements returns a copy of every element in insertion order.
func (s *Store) Elements() []models.Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Element, len(s.elements))
	for i, e := range s.elements {
		out[i] = e.Clone()
	}
	return out
}

// AddElement creates an element and returns its id. Unplaced elements get a
// deterministic spiral position.
func (s *Store) AddElement(data ElementData) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.timestamp()
	e := models.Element{
		ID:         s.newID(),
		Name:       strings.TrimSpace(data.Name),
		Notes:      data.Notes,
		Tags:       NormalizeTags(data.Tags),
		Attributes: map[string]string{},
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	for k, v := range data.Attributes {
		e.Attributes[k] = v
	}
	x, y := spiralPosition(len(s.elements))
	if data.X != nil {
		x = *data.X
	}
	if data.Y != nil {
		y = *data.Y
	}
	e.X, e.Y = &x, &y

	s.elements = append(s.elements, e)
	s.touch()
	return e.ID
}

// UpdateElement merges patch into the named element.
func (s *Store) UpdateElement(name string, patch ElementPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.elementIndex(name)
	if i < 0 {
		return false
	}
	e := &s.elements[i]
	if patch.Name != nil && strings.TrimSpace(*patch.Name) != "" {
		e.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Notes != nil {
		e.Notes = *patch.Notes
	}
	if patch.Tags != nil {
		e.Tags = NormalizeTags(patch.Tags)
	}
	if len(patch.Attributes) > 0 {
		if e.Attributes == nil {
			e.Attributes = map[string]string{}
		}
		for k, v := range patch.Attributes {
			e.Attributes[k] = v
		}
	}
	if patch.X != nil {
		x := *patch.X
		e.X = &x
	}
	if patch.Y != nil {
		y := *patch.Y
		e.Y = &y
	}
	e.UpdatedAt = s.timestamp()
	s.touch()
	return true
}

// DeleteElement removes the named element and every relationship touching it.
func (s *Store) DeleteElement(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.elementIndex(name)
	if i < 0 {
		return false
	}
	id := s.elements[i].ID
	s.elements = append(s.elements[:i], s.elements[i+1:]...)

	kept := s.relationships[:0]
	for _, r := range s.relationships {
		if r.Source != id && r.Target != id {
			kept = append(kept, r)
		}
	}
	s.relationships = kept

	for vi := range s.views {
		v := &s.views[vi]
		v.ExplicitInclusions = removeString(v.ExplicitInclusions, id)
		v.ExplicitExclusions = removeString(v.ExplicitExclusions, id)
		delete(v.NodePositions, id)
		if v.Filters.NodeFilter.CenterID == id {
			v.Filters.NodeFilter = models.NodeFilter{}
		}
	}
	if nf := s.overlay.Neighborhood; nf != nil && nf.CenterID == id {
		s.overlay.Neighborhood = nil
	}
	s.touch()
	return true
}

// SetElementAttribute sets key=value on the named element.
func (s *Store) SetElementAttribute(name, key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.elementIndex(name)
	if i < 0 {
		return false
	}
	e := &s.elements[i]
	if e.Attributes == nil {
		e.Attributes = map[string]string{}
	}
	e.Attributes[key] = value
	e.UpdatedAt = s.timestamp()
	s.touch()
	return true
}

// DeleteElementAttribute removes key from the named element.
func (s *Store) DeleteElementAttribute(name, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.elementIndex(name)
	if i < 0 {
		return false
	}
	e := &s.elements[i]
	delete(e.Attributes, key)
	e.UpdatedAt = s.timestamp()
	s.touch()
	return true
}

// --- Relationships ---

// Relationships returns a copy of every relationship.
func (s *Store) Relationships() []models.Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Relationship, len(s.relationships))
	for i, r := range s.relationships {
		out[i] = r.Clone()
	}
	return out
}

// relationshipIndex finds the first relationship between the two named
// elements in either direction.
func (s *Store) relationshipIndex(sourceName, targetName string) int {
	si := s.elementIndex(sourceName)
	ti := s.elementIndex(targetName)
	if si < 0 || ti < 0 {
		return -1
	}
	a, b := s.elements[si].ID, s.elements[ti].ID
	for i, r := range s.relationships {
		if (r.Source == a && r.Target == b) || (r.Source == b && r.Target == a) {
			return i
		}
	}
	return -1
}

// FindRelationship returns the first relationship between two named elements,
// matching either direction.
func (s *Store) FindRelationship(sourceName, targetName string) (models.Relationship, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.relationshipIndex(sourceName, targetName)
	if i < 0 {
		return models.Relationship{}, false
	}
	return s.relationships[i].Clone(), true
}

// AddRelationship links two named elements. Unknown direction strings map to TO.
func (s *Store) AddRelationship(sourceName, targetName, label, direction string, tags ...string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	si := s.elementIndex(sourceName)
	ti := s.elementIndex(targetName)
	if si < 0 || ti < 0 {
		return "", false
	}
	r := models.Relationship{
		ID:         s.newID(),
		Source:     s.elements[si].ID,
		Target:     s.elements[ti].ID,
		Label:      label,
		Direction:  ParseDirection(direction),
		Tags:       NormalizeTags(tags),
		Attributes: map[string]string{},
	}
	s.relationships = append(s.relationships, r)
	s.touch()
	return r.ID, true
}

// UpdateRelationship patches the first relationship between two named elements.
func (s *Store) UpdateRelationship(sourceName, targetName string, patch RelationshipPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.relationshipIndex(sourceName, targetName)
	if i < 0 {
		return false
	}
	r := &s.relationships[i]
	if patch.Label != nil {
		r.Label = *patch.Label
	}
	if patch.Direction != nil {
		r.Direction = ParseDirection(*patch.Direction)
	}
	if patch.Tags != nil {
		r.Tags = NormalizeTags(patch.Tags)
	}
	s.touch()
	return true
}

// DeleteRelationship removes the first relationship between two named
// elements, matching either direction. Parallel relationships survive.
func (s *Store) DeleteRelationship(sourceName, targetName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.relationshipIndex(sourceName, targetName)
	if i < 0 {
		return false
	}
	s.relationships = append(s.relationships[:i], s.relationships[i+1:]...)
	s.touch()
	return true
}

// SetRelationshipAttribute sets key=value on the relationship between two named elements.
func (s *Store) SetRelationshipAttribute(sourceName, targetName, key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.relationshipIndex(sourceName, targetName)
	if i < 0 {
		return false
	}
	r := &s.relationships[i]
	if r.Attributes == nil {
		r.Attributes = map[string]string{}
	}
	r.Attributes[key] = value
	s.touch()
	return true
}

// DeleteRelationshipAttribute removes key from the relationship between two named elements.
func (s *Store) DeleteRelationshipAttribute(sourceName, targetName, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.relationshipIndex(sourceName, targetName)
	if i < 0 {
		return false
	}
	delete(s.relationships[i].Attributes, key)
	s.touch()
	return true
}

// --- Snapshots ---

// Snapshot returns a deep copy of the persisted state.
func (s *Store) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := models.Snapshot{
		Version:       s.version,
		Elements:      make([]models.Element, len(s.elements)),
		Relationships: make([]models.Relationship, len(s.relationships)),
		Views:         make([]models.GraphView, len(s.views)),
		ActiveViewID:  s.activeViewID,
		Folders:       append([]models.Folder(nil), s.folders...),
		Documents:     append([]models.Document(nil), s.documents...),
		Boards:        make([]models.Board, len(s.boards)),
		ActiveBoardID: s.activeBoardID,
	}
	for i, e := range s.elements {
		snap.Elements[i] = e.Clone()
	}
	for i, r := range s.relationships {
		snap.Relationships[i] = r.Clone()
	}
	for i, v := range s.views {
		snap.Views[i] = v.Clone()
	}
	for i, b := range s.boards {
		snap.Boards[i] = b.Clone()
	}
	return snap
}

// Load replaces the store contents with snap. Relationships whose endpoints
// are missing are dropped.
func (s *Store) Load(snap models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.elements = make([]models.Element, 0, len(snap.Elements))
	ids := make(map[string]bool, len(snap.Elements))
	for _, e := range snap.Elements {
		c := e.Clone()
		c.Tags = NormalizeTags(c.Tags)
		s.elements = append(s.elements, c)
		ids[c.ID] = true
	}
	s.relationships = s.relationships[:0]
	for _, r := range snap.Relationships {
		if ids[r.Source] && ids[r.Target] {
			s.relationships = append(s.relationships, r.Clone())
		}
	}
	s.views = s.views[:0]
	for _, v := range snap.Views {
		s.views = append(s.views, v.Clone())
	}
	s.activeViewID = snap.ActiveViewID
	s.overlay = models.Overlay{}
	s.folders = append([]models.Folder(nil), snap.Folders...)
	s.documents = append([]models.Document(nil), snap.Documents...)
	s.boards = s.boards[:0]
	for _, b := range snap.Boards {
		s.boards = append(s.boards, b.Clone())
	}
	s.activeBoardID = snap.ActiveBoardID
	s.ensureDefaultView()
	s.touch()
}
