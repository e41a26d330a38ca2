package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/embernet/tapestry-sub001/internal/models"
)

// Setting keys.
const (
	settingActiveView  = "active_view_id"
	settingActiveBoard = "active_board_id"
	settingVersion     = "version"
)

// WorkspaceStore persists one workspace's graph snapshot.
type WorkspaceStore struct {
	db *sql.DB
}

// OpenWorkspace opens an existing workspace database. Missing tables are
// created, so databases written by older builds keep working.
func OpenWorkspace(dbPath string) (*WorkspaceStore, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath)+"&_pragma=cache_size(-64000)")
	if err != nil {
		return nil, fmt.Errorf("open workspace db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping workspace db: %w", err)
	}
	if _, err := db.Exec(WorkspaceSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate workspace db: %w", err)
	}
	if _, err := db.Exec(WorkspaceTriggers); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate workspace triggers: %w", err)
	}
	return &WorkspaceStore{db: db}, nil
}

// Close closes the workspace database connection.
func (w *WorkspaceStore) Close() error {
	return w.db.Close()
}

// Save replaces the stored snapshot with snap in one transaction.
func (w *WorkspaceStore) Save(snap models.Snapshot) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"relationships", "elements", "views", "documents", "folders", "boards", "settings"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, e := range snap.Elements {
		_, err := tx.Exec(
			`INSERT INTO elements (id, position, name, notes, tags, attributes, x, y, fx, fy, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, i, e.Name, e.Notes, encode(e.Tags), encode(e.Attributes),
			nullFloat(e.X), nullFloat(e.Y), nullFloat(e.FX), nullFloat(e.FY),
			e.CreatedAt, e.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert element %q: %w", e.Name, err)
		}
	}

	for i, r := range snap.Relationships {
		_, err := tx.Exec(
			`INSERT INTO relationships (id, position, source_id, target_id, label, direction, tags, attributes)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, i, r.Source, r.Target, r.Label, string(r.Direction), encode(r.Tags), encode(r.Attributes),
		)
		if err != nil {
			return fmt.Errorf("insert relationship %s: %w", r.ID, err)
		}
	}

	for i, v := range snap.Views {
		if _, err := tx.Exec(
			`INSERT INTO views (id, position, name, definition) VALUES (?, ?, ?, ?)`,
			v.ID, i, v.Name, encode(v),
		); err != nil {
			return fmt.Errorf("insert view %q: %w", v.Name, err)
		}
	}

	for i, f := range snap.Folders {
		if _, err := tx.Exec(
			`INSERT INTO folders (id, position, name, parent_id) VALUES (?, ?, ?, ?)`,
			f.ID, i, f.Name, f.ParentID,
		); err != nil {
			return fmt.Errorf("insert folder %q: %w", f.Name, err)
		}
	}

	for i, d := range snap.Documents {
		if _, err := tx.Exec(
			`INSERT INTO documents (id, position, title, content, folder_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.ID, i, d.Title, d.Content, d.FolderID, d.CreatedAt, d.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert document %q: %w", d.Title, err)
		}
	}

	for i, b := range snap.Boards {
		if _, err := tx.Exec(
			`INSERT INTO boards (id, position, name, columns, attribute_key, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			b.ID, i, b.Name, encode(b.Columns), b.AttributeKey, b.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert board %q: %w", b.Name, err)
		}
	}

	settings := map[string]string{
		settingActiveView:  snap.ActiveViewID,
		settingActiveBoard: snap.ActiveBoardID,
		settingVersion:     strconv.FormatUint(snap.Version, 10),
	}
	for k, v := range settings {
		if _, err := tx.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert setting %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. An empty database yields an empty snapshot.
func (w *WorkspaceStore) Load() (models.Snapshot, error) {
	var snap models.Snapshot

	rows, err := w.db.Query(
		`SELECT id, name, notes, tags, attributes, x, y, fx, fy, created_at, updated_at FROM elements ORDER BY position`,
	)
	if err != nil {
		return snap, fmt.Errorf("load elements: %w", err)
	}
	for rows.Next() {
		var (
			e            models.Element
			tags, attrs  string
			x, y, fx, fy sql.NullFloat64
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Notes, &tags, &attrs, &x, &y, &fx, &fy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan element: %w", err)
		}
		decode(tags, &e.Tags)
		decode(attrs, &e.Attributes)
		e.X, e.Y, e.FX, e.FY = floatPtr(x), floatPtr(y), floatPtr(fx), floatPtr(fy)
		snap.Elements = append(snap.Elements, e)
	}
	rows.Close()

	rows, err = w.db.Query(
		`SELECT id, source_id, target_id, label, direction, tags, attributes FROM relationships ORDER BY position`,
	)
	if err != nil {
		return snap, fmt.Errorf("load relationships: %w", err)
	}
	for rows.Next() {
		var (
			r           models.Relationship
			dir         string
			tags, attrs string
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.Target, &r.Label, &dir, &tags, &attrs); err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan relationship: %w", err)
		}
		r.Direction = models.Direction(dir)
		decode(tags, &r.Tags)
		decode(attrs, &r.Attributes)
		snap.Relationships = append(snap.Relationships, r)
	}
	rows.Close()

	rows, err = w.db.Query(`SELECT definition FROM views ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("load views: %w", err)
	}
	for rows.Next() {
		var def string
		if err := rows.Scan(&def); err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan view: %w", err)
		}
		var v models.GraphView
		decode(def, &v)
		snap.Views = append(snap.Views, v)
	}
	rows.Close()

	rows, err = w.db.Query(`SELECT id, name, parent_id FROM folders ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("load folders: %w", err)
	}
	for rows.Next() {
		var f models.Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.ParentID); err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan folder: %w", err)
		}
		snap.Folders = append(snap.Folders, f)
	}
	rows.Close()

	rows, err = w.db.Query(
		`SELECT id, title, content, folder_id, created_at, updated_at FROM documents ORDER BY position`,
	)
	if err != nil {
		return snap, fmt.Errorf("load documents: %w", err)
	}
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.FolderID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan document: %w", err)
		}
		snap.Documents = append(snap.Documents, d)
	}
	rows.Close()

	rows, err = w.db.Query(`SELECT id, name, columns, attribute_key, created_at FROM boards ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("load boards: %w", err)
	}
	for rows.Next() {
		var (
			b    models.Board
			cols string
		)
		if err := rows.Scan(&b.ID, &b.Name, &cols, &b.AttributeKey, &b.CreatedAt); err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan board: %w", err)
		}
		decode(cols, &b.Columns)
		snap.Boards = append(snap.Boards, b)
	}
	rows.Close()

	rows, err = w.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return snap, fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return snap, fmt.Errorf("scan setting: %w", err)
		}
		switch k {
		case settingActiveView:
			snap.ActiveViewID = v
		case settingActiveBoard:
			snap.ActiveBoardID = v
		case settingVersion:
			snap.Version, _ = strconv.ParseUint(v, 10, 64)
		}
	}
	return snap, rows.Err()
}

func encode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// decode ignores malformed columns; the row keeps its zero value.
func decode(s string, v any) {
	_ = json.Unmarshal([]byte(s), v)
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}
