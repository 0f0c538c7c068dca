// Package store is the SQLite persistence layer for the template registry.
// It owns the schema and all SQL; the registry package above it owns
// validation and concurrency.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Schema is applied by the registry at open time via dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS templates (
	name         TEXT PRIMARY KEY,
	description  TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	format       TEXT NOT NULL,
	scheme       TEXT NOT NULL,
	path         TEXT NOT NULL,
	placeholders TEXT NOT NULL DEFAULT '[]',
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_templates_category ON templates(category);
CREATE INDEX IF NOT EXISTS idx_templates_format   ON templates(format);
`

// ErrDuplicateName reports an insert under a name that is already taken.
var ErrDuplicateName = errors.New("store: template name already exists")

// ErrNotFound reports a lookup of a name that is not registered.
var ErrNotFound = errors.New("store: template not found")

// Placeholder is one distinct placeholder in a stored template.
type Placeholder struct {
	Name        string `json:"name"`
	Marker      string `json:"marker,omitempty"`
	Occurrences int    `json:"occurrences"`
	Default     string `json:"default,omitempty"`
}

// Record is one registered template.
type Record struct {
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Category     string        `json:"category,omitempty"`
	Format       string        `json:"format"`
	Scheme       string        `json:"scheme"`
	Path         string        `json:"path"`
	Placeholders []Placeholder `json:"placeholders"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Store wraps a SQLite handle. Writes are serialized by the registry
// above; reads may run concurrently.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Insert registers a new template. The name must be free.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	ph, err := json.Marshal(rec.Placeholders)
	if err != nil {
		return fmt.Errorf("encode placeholders: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO templates (name, description, category, format, scheme, path, placeholders, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Name, rec.Description, rec.Category, rec.Format, rec.Scheme,
		rec.Path, string(ph), rec.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateName, rec.Name)
		}
		return fmt.Errorf("insert template %s: %w", rec.Name, err)
	}
	return nil
}

// Get returns one template by exact name.
func (s *Store) Get(ctx context.Context, name string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, description, category, format, scheme, path, placeholders, created_at
		FROM templates WHERE name = ?`, name)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get template %s: %w", name, err)
	}
	return rec, nil
}

// Delete removes one template by exact name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete template %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// Query selects templates. An empty Term matches everything; Category and
// Format filter exactly when non-empty. Results are ordered by name.
type Query struct {
	Term     string
	Category string
	Format   string
}

// Select returns all templates matching q. Rows whose placeholder column
// fails to decode are skipped with a warning rather than failing the
// whole listing.
func (s *Store) Select(ctx context.Context, q Query) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if q.Term != "" {
		where = append(where, `(name LIKE ? COLLATE NOCASE OR description LIKE ? COLLATE NOCASE OR category LIKE ? COLLATE NOCASE)`)
		pat := "%" + q.Term + "%"
		args = append(args, pat, pat, pat)
	}
	if q.Category != "" {
		where = append(where, `category = ?`)
		args = append(args, q.Category)
	}
	if q.Format != "" {
		where = append(where, `format = ?`)
		args = append(args, q.Format)
	}
	sqlText := `SELECT name, description, category, format, scheme, path, placeholders, created_at FROM templates`
	if len(where) > 0 {
		sqlText += ` WHERE ` + strings.Join(where, ` AND `)
	}
	sqlText += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("select templates: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable template row", "error", err)
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select templates: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec       Record
		ph        string
		createdAt string
	)
	if err := row.Scan(&rec.Name, &rec.Description, &rec.Category, &rec.Format,
		&rec.Scheme, &rec.Path, &ph, &createdAt); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(ph), &rec.Placeholders); err != nil {
		return Record{}, fmt.Errorf("template %s: decode placeholders: %w", rec.Name, err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("template %s: decode created_at: %w", rec.Name, err)
	}
	rec.CreatedAt = t
	return rec, nil
}

// isUniqueViolation matches the driver's primary-key error without
// importing driver internals.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
