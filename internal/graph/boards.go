package graph

import (
	"strings"

	"github.com/embernet/tapestry-sub001/internal/models"
)

// DefaultColumns are used when a board is created without columns.
var DefaultColumns = []string{"To Do", "In Progress", "Done"}

// BoardAttributeKey derives the element attribute a board writes its column to.
func BoardAttributeKey(boardName string) string {
	slug := strings.Join(strings.Fields(strings.ToLower(boardName)), "_")
	return "kanban_" + slug
}

// Boards returns a copy of every board.
func (s *Store) Boards() []models.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Board, len(s.boards))
	for i, b := range s.boards {
		out[i] = b.Clone()
	}
	return out
}

// FindBoard resolves a board by id, then by case-insensitive name.
func (s *Store) FindBoard(idOrName string) (models.Board, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.boardIndex(idOrName); i >= 0 {
		return s.boards[i].Clone(), true
	}
	return models.Board{}, false
}

func (s *Store) boardIndex(idOrName string) int {
	if strings.TrimSpace(idOrName) == "" {
		return -1
	}
	for i := range s.boards {
		if s.boards[i].ID == idOrName {
			return i
		}
	}
	for i := range s.boards {
		if equalFold(s.boards[i].Name, idOrName) {
			return i
		}
	}
	return -1
}

// CreateBoard returns the existing board with the same name (any casing), or
// creates a new one. The bool is true when a board was created. Either way the
// board becomes the active board.
func (s *Store) CreateBoard(name string, columns []string, attributeKey string) (models.Board, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.boards {
		if equalFold(s.boards[i].Name, name) {
			s.activeBoardID = s.boards[i].ID
			s.touch()
			return s.boards[i].Clone(), false
		}
	}

	cols := make([]string, 0, len(columns))
	for _, c := range columns {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		cols = append(cols, DefaultColumns...)
	}
	if strings.TrimSpace(attributeKey) == "" {
		attributeKey = BoardAttributeKey(name)
	}
	b := models.Board{
		ID:           s.newID(),
		Name:         strings.TrimSpace(name),
		Columns:      cols,
		AttributeKey: attributeKey,
		CreatedAt:    s.timestamp(),
	}
	s.boards = append(s.boards, b)
	s.activeBoardID = b.ID
	s.touch()
	return b.Clone(), true
}

// ActiveBoard returns the active board, if any.
func (s *Store) ActiveBoard() (models.Board, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.boards {
		if b.ID == s.activeBoardID {
			return b.Clone(), true
		}
	}
	return models.Board{}, false
}

// SetActiveBoard activates a board by id or name.
func (s *Store) SetActiveBoard(idOrName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.boardIndex(idOrName)
	if i < 0 {
		return false
	}
	s.activeBoardID = s.boards[i].ID
	s.touch()
	return true
}

// ResolveBoard walks the fallback chain used by kanban actions: board id,
// then board name, then the active board.
func (s *Store) ResolveBoard(boardID, boardName string) (models.Board, bool) {
	if b, ok := s.FindBoard(boardID); ok {
		return b, true
	}
	if b, ok := s.FindBoard(boardName); ok {
		return b, true
	}
	return s.ActiveBoard()
}

// HasColumn reports whether column exists on b (case-insensitive) and returns
// its canonical spelling.
func HasColumn(b models.Board, column string) (string, bool) {
	for _, c := range b.Columns {
		if equalFold(c, column) {
			return c, true
		}
	}
	return "", false
}
