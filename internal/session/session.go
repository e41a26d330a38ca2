// Package session tracks the active workspace and keeps its graph store in
// sync with the workspace database.
package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/embernet/tapestry-sub001/internal/apperrors"
	"github.com/embernet/tapestry-sub001/internal/graph"
	"github.com/embernet/tapestry-sub001/internal/models"
	"github.com/embernet/tapestry-sub001/internal/storage"
)

// Session holds the active workspace. The graph store is shared for the
// lifetime of the session; switching workspaces reloads its contents.
type Session struct {
	meta   *storage.MetaStore
	store  *graph.Store
	logger *zap.Logger

	mu        sync.Mutex
	workspace *models.Workspace
	db        *storage.WorkspaceStore
	saved     uint64
}

// New creates a session with no active workspace.
func New(meta *storage.MetaStore, store *graph.Store, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{meta: meta, store: store, logger: logger}
}

// Store returns the graph store.
func (s *Session) Store() *graph.Store {
	return s.store
}

// Meta returns the workspace registry.
func (s *Session) Meta() *storage.MetaStore {
	return s.meta
}

// Switch saves the current workspace, then opens name and loads its snapshot
// into the store.
func (s *Session) Switch(name string) (*models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.meta.GetWorkspace(name)
	if err != nil {
		return nil, err
	}
	if w.Status == storage.StatusArchived {
		return nil, apperrors.NewValidationError("workspace %q is archived, restore it first", name)
	}

	db, err := storage.OpenWorkspace(s.meta.WorkspaceDBPath(w))
	if err != nil {
		return nil, err
	}
	snap, err := db.Load()
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := s.saveLocked(); err != nil {
		db.Close()
		return nil, err
	}
	s.closeLocked()

	s.store.Load(snap)
	s.workspace = w
	s.db = db
	s.saved = s.store.Version()
	s.logger.Info("workspace opened", zap.String("workspace", w.Name), zap.Int("elements", len(snap.Elements)))
	return w, nil
}

// Current returns the active workspace.
func (s *Session) Current() (models.Workspace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workspace == nil {
		return models.Workspace{}, false
	}
	return *s.workspace, true
}

// Save writes the store to the active workspace when it changed since the
// last save.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return apperrors.NewValidationError("no active workspace, use switch_workspace first")
	}
	return s.saveLocked()
}

func (s *Session) saveLocked() error {
	if s.db == nil {
		return nil
	}
	snap := s.store.Snapshot()
	if snap.Version == s.saved {
		return nil
	}
	if err := s.db.Save(snap); err != nil {
		return err
	}
	s.saved = snap.Version
	if err := s.meta.Touch(s.workspace.ID); err != nil {
		s.logger.Warn("touch workspace", zap.Error(err))
	}
	s.logger.Debug("workspace saved", zap.String("workspace", s.workspace.Name), zap.Uint64("version", snap.Version))
	return nil
}

// Search runs a full-text query over the saved state of the active workspace.
func (s *Session) Search(query string, limit int) ([]storage.Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, apperrors.NewValidationError("no active workspace, use switch_workspace first")
	}
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return s.db.Search(query, limit)
}

// Clear closes the active workspace without saving and empties the store.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	s.store.Load(models.Snapshot{})
}

func (s *Session) closeLocked() {
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	s.workspace = nil
	s.saved = 0
}

// Close saves and closes the active workspace. Used during shutdown.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.saveLocked()
	s.closeLocked()
	return err
}
