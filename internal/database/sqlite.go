package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"complib/internal/complib"
	"complib/internal/data"
	"complib/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteLibrary implements complib.Library using SQLite.
type SQLiteLibrary struct {
	db    *sql.DB
	clock complib.Clock
	path  string
}

var _ complib.Library = (*SQLiteLibrary)(nil)

// NewSQLiteLibrary opens the library at path and migrates it to the latest schema.
// path can be a file path or ":memory:" for an in-memory library.
func NewSQLiteLibrary(path string, clock complib.Clock) (*SQLiteLibrary, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating library: %w", err)
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("checking library schema: %w", err)
	}
	lib := NewSQLiteLibraryFromDB(db, clock)
	lib.path = path
	return lib, nil
}

// NewSQLiteLibraryFromDB wraps an existing, already migrated connection.
func NewSQLiteLibraryFromDB(db *sql.DB, clock complib.Clock) *SQLiteLibrary {
	if clock == nil {
		clock = complib.RealClock{}
	}
	return &SQLiteLibrary{db: db, clock: clock}
}

// OpenConnection opens a SQLite connection with foreign keys enforced.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	// DSN parameters apply to every pooled connection, unlike a one-off PRAGMA.
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Path returns the file the library was opened from, or "" for a wrapped connection.
func (s *SQLiteLibrary) Path() string { return s.path }

func (s *SQLiteLibrary) Close() error {
	return s.db.Close()
}

// ListComponents returns the components matching q. Search matches names
// case-insensitively. A component matches a file type filter if it has any of
// the listed types, and a tag filter if it has any of the listed tags.
func (s *SQLiteLibrary) ListComponents(ctx context.Context, q complib.QueryState) ([]*data.Component, int, error) {
	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = complib.DefaultPageSize
	}

	where, args := filterClause(q)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM components c"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting components: %w", err)
	}

	query := "SELECT c.id, c.name, c.thumbnail, c.created_at, c.updated_at FROM components c" +
		where + orderClause(q) + " LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, size, (page-1)*size)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing components: %w", err)
	}

	var comps []*data.Component
	byID := make(map[int64]*data.Component)
	for rows.Next() {
		var c data.Component
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.Name, &c.Thumbnail, &created, &updated); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scanning component: %w", err)
		}
		c.CreatedAt = time.Unix(0, created).UTC()
		c.UpdatedAt = time.Unix(0, updated).UTC()
		c.Files = make(map[data.FileType]data.File)
		comps = append(comps, &c)
		byID[c.ID] = &c
	}
	// The rows must be closed before the follow-up queries: an in-memory
	// library has a single connection.
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, 0, fmt.Errorf("listing components: %w", err)
	}
	if len(comps) == 0 {
		return comps, total, nil
	}

	if err := s.loadFiles(ctx, byID); err != nil {
		return nil, 0, err
	}
	if err := s.loadTags(ctx, byID); err != nil {
		return nil, 0, err
	}
	return comps, total, nil
}

func (s *SQLiteLibrary) loadFiles(ctx context.Context, byID map[int64]*data.Component) error {
	in, args := idList(byID)
	rows, err := s.db.QueryContext(ctx,
		"SELECT component_id, file_type, path FROM component_files WHERE component_id IN ("+in+")", args...)
	if err != nil {
		return fmt.Errorf("loading component files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var ft, path string
		if err := rows.Scan(&id, &ft, &path); err != nil {
			return fmt.Errorf("scanning component file: %w", err)
		}
		t := data.FileType(ft)
		byID[id].Files[t] = data.File{URL: FileURL(path), Type: t}
	}
	return rows.Err()
}

func (s *SQLiteLibrary) loadTags(ctx context.Context, byID map[int64]*data.Component) error {
	in, args := idList(byID)
	rows, err := s.db.QueryContext(ctx,
		`SELECT ct.component_id, t.name FROM component_tags ct
		 JOIN tags t ON t.id = ct.tag_id
		 WHERE ct.component_id IN (`+in+`) ORDER BY t.name`, args...)
	if err != nil {
		return fmt.Errorf("loading component tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("scanning component tag: %w", err)
		}
		byID[id].Tags = append(byID[id].Tags, name)
	}
	return rows.Err()
}

// ListTags returns the tags in use by at least one stored component, by name.
func (s *SQLiteLibrary) ListTags(ctx context.Context) ([]*data.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.name, t.created_at FROM tags t
		 WHERE EXISTS (SELECT 1 FROM component_tags ct WHERE ct.tag_id = t.id)
		 ORDER BY t.name`)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var tags []*data.Tag
	for rows.Next() {
		var tag data.Tag
		var created int64
		if err := rows.Scan(&tag.ID, &tag.Name, &created); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tag.CreatedAt = time.Unix(0, created).UTC()
		tag.UpdatedAt = tag.CreatedAt
		tags = append(tags, &tag)
	}
	return tags, rows.Err()
}

// RecordDownload upserts c by name, replaces its tags and stores path as its
// file of type ft.
func (s *SQLiteLibrary) RecordDownload(ctx context.Context, c *data.Component, ft data.FileType, path string) error {
	if c == nil || c.Name == "" {
		return &data.ValidationError{Record: data.DTypeComponent, Field: "name", Msg: "component name required"}
	}
	if !ft.Valid() {
		return &data.ValidationError{Record: data.DTypeComponent, Field: "file_type", Msg: fmt.Sprintf("unknown file type %q", ft)}
	}
	if path == "" {
		return &data.ValidationError{Record: data.DTypeComponent, Field: "path", Msg: "path required"}
	}

	now := s.clock.Now().UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO components (name, thumbnail, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET thumbnail = excluded.thumbnail, updated_at = excluded.updated_at
		 RETURNING id`,
		c.Name, c.Thumbnail, now, now).Scan(&id)
	if err != nil {
		return fmt.Errorf("storing component %s: %w", c.Name, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO component_files (component_id, file_type, path, source_url, downloaded_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(component_id, file_type) DO UPDATE SET
		   path = excluded.path, source_url = excluded.source_url, downloaded_at = excluded.downloaded_at`,
		id, string(ft), path, c.Files[ft].URL, now)
	if err != nil {
		return fmt.Errorf("storing %s file of %s: %w", ft, c.Name, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM component_tags WHERE component_id = ?", id); err != nil {
		return fmt.Errorf("clearing tags of %s: %w", c.Name, err)
	}
	for _, tag := range c.Tags {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tags (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING", tag, now); err != nil {
			return fmt.Errorf("storing tag %s: %w", tag, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO component_tags (component_id, tag_id)
			 SELECT ?, id FROM tags WHERE name = ?`, id, tag); err != nil {
			return fmt.Errorf("tagging %s with %s: %w", c.Name, tag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing download of %s: %w", c.Name, err)
	}
	return nil
}

// FileURL returns the file:// URL of a local path.
func FileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: path}).String()
}

func filterClause(q complib.QueryState) (string, []any) {
	var conds []string
	var args []any

	if q.Search != "" {
		conds = append(conds, `c.name LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(q.Search)+"%")
	}
	if len(q.FileTypes) > 0 {
		conds = append(conds, "EXISTS (SELECT 1 FROM component_files f WHERE f.component_id = c.id AND f.file_type IN ("+
			placeholders(len(q.FileTypes))+"))")
		for _, ft := range q.FileTypes {
			args = append(args, string(ft))
		}
	}
	if len(q.Tags) > 0 {
		conds = append(conds, `EXISTS (SELECT 1 FROM component_tags ct JOIN tags t ON t.id = ct.tag_id
			WHERE ct.component_id = c.id AND t.name IN (`+placeholders(len(q.Tags))+"))")
		for _, tag := range q.Tags {
			args = append(args, tag)
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderClause(q complib.QueryState) string {
	var col string
	switch q.SortBy {
	case complib.SortByName:
		col = "c.name COLLATE NOCASE"
	case complib.SortByCreated:
		col = "c.created_at"
	case complib.SortByUpdated:
		col = "c.updated_at"
	default:
		return " ORDER BY c.id"
	}
	dir := " ASC"
	if q.SortOrder == complib.SortDesc {
		dir = " DESC"
	}
	return " ORDER BY " + col + dir + ", c.id"
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func idList(byID map[int64]*data.Component) (string, []any) {
	args := make([]any, 0, len(byID))
	for id := range byID {
		args = append(args, id)
	}
	return placeholders(len(args)), args
}
