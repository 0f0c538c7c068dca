// Package registry is the catalog of reusable document templates. Records
// are persisted in SQLite; template files themselves live on disk under
// the registry's root directory, owned by the templates service.
//
// Names are the primary key. All writes are serialized through a single
// mutex so a register/delete pair can never interleave; reads go straight
// to the store.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/hazyhaar/docsmith/dbopen"
	"github.com/hazyhaar/docsmith/registry/internal/store"
)

// ErrDuplicateName reports a registration under a taken name.
var ErrDuplicateName = store.ErrDuplicateName

// ErrNotFound reports a lookup of an unregistered name.
var ErrNotFound = store.ErrNotFound

// Template is one registry record.
type Template = store.Record

// Placeholder is one distinct placeholder of a registered template.
type Placeholder = store.Placeholder

// Query filters Search results.
type Query = store.Query

// Config carries the registry settings.
type Config struct {
	// DBPath is the SQLite file. Empty means an in-memory database.
	DBPath string
	// Root is the directory where template documents are stored.
	Root string
}

func (c *Config) defaults() {
	if c.Root == "" {
		c.Root = "templates"
	}
}

// Registry validates and persists template records.
type Registry struct {
	cfg    Config
	store  *store.Store
	logger *slog.Logger

	mu sync.Mutex // serializes writes
}

// New opens (or creates) the registry database and returns the service.
func New(cfg Config, logger *slog.Logger) (*Registry, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	path := cfg.DBPath
	if path == "" {
		path = ":memory:"
	}
	db, err := dbopen.Open(path,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(store.Schema),
	)
	if err != nil {
		return nil, fmt.Errorf("registry: open database: %w", err)
	}
	return &Registry{
		cfg:    cfg,
		store:  store.New(db, logger),
		logger: logger,
	}, nil
}

// Close releases the registry database.
func (r *Registry) Close() error { return r.store.Close() }

// validName admits the names the catalog accepts: short, path-safe, no
// leading or trailing separators.
var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._ -]{0,127}$`)

// ValidateName rejects empty, oversized or path-hostile template names.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("template name must not be empty")
	}
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid template name %q", name)
	}
	return nil
}

// DocumentPath returns the on-disk location for a template's document.
func (r *Registry) DocumentPath(name, format string) string {
	return filepath.Join(r.cfg.Root, name+"."+format)
}

// Register inserts a new record. The name must be valid and free; a
// duplicate leaves the existing record untouched.
func (r *Registry) Register(ctx context.Context, tpl Template) error {
	if err := ValidateName(tpl.Name); err != nil {
		return err
	}
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Insert(ctx, tpl); err != nil {
		return err
	}
	r.logger.Info("template registered",
		"name", tpl.Name, "format", tpl.Format, "placeholders", len(tpl.Placeholders))
	return nil
}

// Get returns one record by exact name.
func (r *Registry) Get(ctx context.Context, name string) (Template, error) {
	return r.store.Get(ctx, name)
}

// Delete removes one record by exact name. The stored document file is
// the caller's to clean up.
func (r *Registry) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Delete(ctx, name); err != nil {
		return err
	}
	r.logger.Info("template deleted", "name", name)
	return nil
}

// Search returns records matching q, ordered by name.
func (r *Registry) Search(ctx context.Context, q Query) ([]Template, error) {
	return r.store.Select(ctx, q)
}

// List returns every record ordered by name.
func (r *Registry) List(ctx context.Context) ([]Template, error) {
	return r.store.Select(ctx, Query{})
}
