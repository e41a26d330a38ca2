package graph

import (
	"fmt"
	"strings"

	"github.com/embernet/tapestry-sub001/internal/models"
)

// UpdateMode selects how UpdateDocument combines old and new content.
type UpdateMode string

const (
	ModeReplace UpdateMode = "replace"
	ModeAppend  UpdateMode = "append"
	ModePrepend UpdateMode = "prepend"
)

// ParseUpdateMode validates a mode string. Empty means replace.
func ParseUpdateMode(s string) (UpdateMode, error) {
	switch UpdateMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeReplace:
		return ModeReplace, nil
	case ModeAppend:
		return ModeAppend, nil
	case ModePrepend:
		return ModePrepend, nil
	default:
		return "", fmt.Errorf("unknown update mode %q (use replace, append or prepend)", s)
	}
}

func (s *Store) documentIndex(title string) int {
	for i := range s.documents {
		if equalFold(s.documents[i].Title, title) {
			return i
		}
	}
	return -1
}

func (s *Store) folderIndex(name string) int {
	for i := range s.folders {
		if equalFold(s.folders[i].Name, name) {
			return i
		}
	}
	return -1
}

// Documents returns a copy of every document.
func (s *Store) Documents() []models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Document(nil), s.documents...)
}

// Folders returns a copy of every folder.
func (s *Store) Folders() []models.Folder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Folder(nil), s.folders...)
}

// FolderByID returns the folder with the given id.
func (s *Store) FolderByID(id string) (models.Folder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.folders {
		if f.ID == id {
			return f, true
		}
	}
	return models.Folder{}, false
}

// CreateDocument adds a document, optionally inside the named folder. It fails
// when the folder does not resolve.
func (s *Store) CreateDocument(title, content, folderName string) (models.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var folderID string
	if strings.TrimSpace(folderName) != "" {
		fi := s.folderIndex(folderName)
		if fi < 0 {
			return models.Document{}, false
		}
		folderID = s.folders[fi].ID
	}
	ts := s.timestamp()
	d := models.Document{
		ID:        s.newID(),
		Title:     strings.TrimSpace(title),
		Content:   content,
		FolderID:  folderID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	s.documents = append(s.documents, d)
	s.touch()
	return d, true
}

// ReadDocument resolves a document by title.
func (s *Store) ReadDocument(title string) (models.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.documentIndex(title)
	if i < 0 {
		return models.Document{}, false
	}
	return s.documents[i], true
}

// UpdateDocument replaces, appends to or prepends to a document's content.
func (s *Store) UpdateDocument(title, content string, mode UpdateMode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.documentIndex(title)
	if i < 0 {
		return false
	}
	d := &s.documents[i]
	switch mode {
	case ModeAppend:
		d.Content = joinContent(d.Content, content)
	case ModePrepend:
		d.Content = joinContent(content, d.Content)
	default:
		d.Content = content
	}
	d.UpdatedAt = s.timestamp()
	s.touch()
	return true
}

// DeleteDocument removes a document by title.
func (s *Store) DeleteDocument(title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.documentIndex(title)
	if i < 0 {
		return false
	}
	s.documents = append(s.documents[:i], s.documents[i+1:]...)
	s.touch()
	return true
}

// CreateFolder adds a folder, optionally nested under the named parent.
func (s *Store) CreateFolder(name, parentName string) (models.Folder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parentID string
	if strings.TrimSpace(parentName) != "" {
		pi := s.folderIndex(parentName)
		if pi < 0 {
			return models.Folder{}, false
		}
		parentID = s.folders[pi].ID
	}
	f := models.Folder{ID: s.newID(), Name: strings.TrimSpace(name), ParentID: parentID}
	s.folders = append(s.folders, f)
	s.touch()
	return f, true
}

// MoveDocument moves a document into the named folder. An empty folder name
// moves it to the root.
func (s *Store) MoveDocument(title, folderName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	di := s.documentIndex(title)
	if di < 0 {
		return false
	}
	var folderID string
	if strings.TrimSpace(folderName) != "" {
		fi := s.folderIndex(folderName)
		if fi < 0 {
			return false
		}
		folderID = s.folders[fi].ID
	}
	s.documents[di].FolderID = folderID
	s.documents[di].UpdatedAt = s.timestamp()
	s.touch()
	return true
}

func joinContent(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n\n" + b
	}
}
