package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/embernet/tapestry-sub001/internal/apperrors"
	"github.com/embernet/tapestry-sub001/internal/models"
)

// Workspace statuses.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

const workspaceColumns = `id, name, description, db_path, status, created_at, updated_at`

// MetaStore manages the central _meta.db database that tracks all workspaces.
type MetaStore struct {
	db      *sql.DB
	dataDir string
}

// OpenMeta opens (or creates) the _meta.db database and runs migrations.
func OpenMeta(dataDir string) (*MetaStore, error) {
	for _, dir := range []string{dataDir, filepath.Join(dataDir, "workspaces"), filepath.Join(dataDir, "archive")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn(filepath.Join(dataDir, "_meta.db")))
	if err != nil {
		return nil, fmt.Errorf("open meta db: %w", err)
	}
	if _, err := db.Exec(MetaSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate meta db: %w", err)
	}
	return &MetaStore{db: db, dataDir: dataDir}, nil
}

// Close closes the database connection.
func (m *MetaStore) Close() error {
	return m.db.Close()
}

// DataDir returns the base data directory.
func (m *MetaStore) DataDir() string {
	return m.dataDir
}

// CreateWorkspace registers a workspace and creates its database file.
// Names are unique.
func (m *MetaStore) CreateWorkspace(name, description string) (*models.Workspace, error) {
	if name == "" {
		return nil, apperrors.NewValidationError("workspace name is required")
	}
	if _, err := m.GetWorkspace(name); err == nil {
		return nil, apperrors.NewValidationError("workspace %q already exists", name)
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	id := uuid.NewString()
	dbPath := filepath.Join("workspaces", id+".db")
	if _, err := m.db.Exec(
		`INSERT INTO workspaces (id, name, description, db_path, status) VALUES (?, ?, ?, ?, ?)`,
		id, name, description, dbPath, StatusActive,
	); err != nil {
		return nil, fmt.Errorf("insert workspace: %w", err)
	}

	if err := initWorkspaceDB(filepath.Join(m.dataDir, dbPath)); err != nil {
		m.db.Exec(`DELETE FROM workspaces WHERE id = ?`, id)
		return nil, fmt.Errorf("init workspace db: %w", err)
	}
	return m.GetWorkspaceByID(id)
}

// GetWorkspace looks up a workspace by its unique name.
func (m *MetaStore) GetWorkspace(name string) (*models.Workspace, error) {
	return m.lookup("name", name)
}

// GetWorkspaceByID looks up a workspace by its UUID.
func (m *MetaStore) GetWorkspaceByID(id string) (*models.Workspace, error) {
	return m.lookup("id", id)
}

// lookup fetches the single workspace whose column equals key.
func (m *MetaStore) lookup(column, key string) (*models.Workspace, error) {
	row := m.db.QueryRow(`SELECT `+workspaceColumns+` FROM workspaces WHERE `+column+` = ?`, key)
	w, err := scanWorkspace(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, apperrors.NewNotFoundError("workspace", key)
	case err != nil:
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	return w, nil
}

// ListWorkspaces returns workspaces ordered by name, filtered by status.
// An empty status or "all" lists everything.
func (m *MetaStore) ListWorkspaces(status string) ([]models.Workspace, error) {
	query := `SELECT ` + workspaceColumns + ` FROM workspaces`
	var args []any
	if status != "" && status != "all" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	rows, err := m.db.Query(query+` ORDER BY name`, args...)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var out []models.Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// Touch bumps a workspace's updated_at after a save.
func (m *MetaStore) Touch(id string) error {
	_, err := m.db.Exec(`UPDATE workspaces SET updated_at = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("touch workspace: %w", err)
	}
	return nil
}

// ArchiveWorkspace marks a workspace archived and moves its database from
// workspaces/ to archive/.
func (m *MetaStore) ArchiveWorkspace(name string) (*models.Workspace, error) {
	w, err := m.GetWorkspace(name)
	if err != nil {
		return nil, err
	}
	if w.Status == StatusArchived {
		return nil, apperrors.NewValidationError("workspace %q is already archived", name)
	}
	return m.move(w, "archive", StatusArchived)
}

// RestoreWorkspace brings an archived workspace back.
func (m *MetaStore) RestoreWorkspace(name string) (*models.Workspace, error) {
	w, err := m.GetWorkspace(name)
	if err != nil {
		return nil, err
	}
	if w.Status != StatusArchived {
		return nil, apperrors.NewValidationError("workspace %q is not archived", name)
	}
	return m.move(w, "workspaces", StatusActive)
}

func (m *MetaStore) move(w *models.Workspace, dir, status string) (*models.Workspace, error) {
	oldPath := filepath.Join(m.dataDir, w.DBPath)
	newRel := filepath.Join(dir, filepath.Base(w.DBPath))
	newPath := filepath.Join(m.dataDir, newRel)

	if err := os.Rename(oldPath, newPath); err != nil {
		return nil, fmt.Errorf("move workspace db: %w", err)
	}
	_, err := m.db.Exec(
		`UPDATE workspaces SET status = ?, db_path = ?, updated_at = datetime('now') WHERE id = ?`,
		status, newRel, w.ID,
	)
	if err != nil {
		os.Rename(newPath, oldPath)
		return nil, fmt.Errorf("update workspace status: %w", err)
	}
	return m.GetWorkspace(w.Name)
}

// DeleteWorkspace permanently removes a workspace record and its database file.
func (m *MetaStore) DeleteWorkspace(name string) error {
	w, err := m.GetWorkspace(name)
	if err != nil {
		return err
	}

	abs := filepath.Join(m.dataDir, w.DBPath)
	os.Remove(abs)
	os.Remove(abs + "-wal")
	os.Remove(abs + "-shm")

	if _, err := m.db.Exec(`DELETE FROM workspaces WHERE id = ?`, w.ID); err != nil {
		return fmt.Errorf("delete workspace record: %w", err)
	}
	return nil
}

// WorkspaceDBPath returns the absolute path to a workspace's database file.
func (m *MetaStore) WorkspaceDBPath(w *models.Workspace) string {
	return filepath.Join(m.dataDir, w.DBPath)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(row rowScanner) (*models.Workspace, error) {
	var w models.Workspace
	if err := row.Scan(&w.ID, &w.Name, &w.Description, &w.DBPath, &w.Status, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

// initWorkspaceDB creates a workspace database with the full schema.
func initWorkspaceDB(path string) error {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(WorkspaceSchema); err != nil {
		return fmt.Errorf("create workspace schema: %w", err)
	}
	if _, err := db.Exec(WorkspaceTriggers); err != nil {
		return fmt.Errorf("create workspace triggers: %w", err)
	}
	return nil
}
