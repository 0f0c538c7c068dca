// Package templates turns ordinary documents into reusable templates and
// instantiates registered templates with concrete values.
//
// Creation never rewrites structure: only run texts change, so every
// style reference in the source survives into the template. Application
// is the mirror image, substituting placeholder tokens in a copy of the
// stored template.
package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/docsmith/bridge"
	"github.com/hazyhaar/docsmith/kit"
	"github.com/hazyhaar/docsmith/placeholder"
	"github.com/hazyhaar/docsmith/registry"
)

// ValidationError reports a request rejected before any document or
// registry state was touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Config carries the service settings.
type Config struct {
	// Root is the directory where template documents are stored. It is
	// handed to the registry for path construction.
	Root string
}

func (c *Config) defaults() {
	if c.Root == "" {
		c.Root = "templates"
	}
}

// Service orchestrates template creation and application.
type Service struct {
	cfg     Config
	adapter bridge.Adapter
	reg     *registry.Registry
	logger  *slog.Logger
	mw      kit.Middleware
}

// New wires the service. The registry must have been created over the
// same root directory.
func New(cfg Config, adapter bridge.Adapter, reg *registry.Registry, logger *slog.Logger) *Service {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, adapter: adapter, reg: reg, logger: logger}
}

// PlaceholderReport is one marker's outcome during creation.
type PlaceholderReport struct {
	Name        string `json:"name"`
	Marker      string `json:"marker"`
	Occurrences int    `json:"occurrences"`
	Default     string `json:"default,omitempty"`
}

// CreateParams describes a template_create request.
type CreateParams struct {
	SourcePath  string
	Name        string
	Description string
	Category    string
	Markers     []string
	Scheme      string // empty means the default scheme
	// Defaults maps derived placeholder names to the value used at apply
	// time when the caller provides none. Keys not matching any derived
	// name are ignored, like extra keys at apply time.
	Defaults map[string]string
}

// CreateResult reports what was replaced and where the template lives.
type CreateResult struct {
	Name         string              `json:"name"`
	Path         string              `json:"path"`
	Format       string              `json:"format"`
	Scheme       string              `json:"scheme"`
	Placeholders []PlaceholderReport `json:"placeholders"`
	Unmatched    []string            `json:"unmatched,omitempty"`
}

// Create scans the source document for the given markers, replaces each
// occurrence with a placeholder token, stores the result under the
// registry root and registers it.
//
// All validation, including the duplicate-name check, happens before the
// source document is opened, so a rejected request mutates nothing.
func (s *Service) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	if err := registry.ValidateName(p.Name); err != nil {
		return nil, &ValidationError{Field: "name", Reason: err.Error()}
	}
	if len(p.Markers) == 0 {
		return nil, &ValidationError{Field: "markers", Reason: "at least one marker is required"}
	}
	for _, m := range p.Markers {
		if m == "" {
			return nil, &ValidationError{Field: "markers", Reason: "markers must not be empty"}
		}
	}
	scheme, err := placeholder.ParseScheme(p.Scheme)
	if err != nil {
		return nil, &ValidationError{Field: "scheme", Reason: err.Error()}
	}
	if _, err := s.reg.Get(ctx, p.Name); err == nil {
		return nil, fmt.Errorf("%w: %s", registry.ErrDuplicateName, p.Name)
	} else if !errors.Is(err, registry.ErrNotFound) {
		return nil, err
	}

	format := formatFromPath(p.SourcePath, s.adapter)
	destPath := s.reg.DocumentPath(p.Name, format)

	var scan *placeholder.ScanResult
	err = bridge.WithDocument(ctx, s.adapter, p.SourcePath, func(doc bridge.Document) error {
		scan, err = placeholder.ScanMarkers(bridge.RunTexts(doc), p.Markers, scheme)
		if err != nil {
			return err
		}
		if err := bridge.WriteRunTexts(doc, scan.Texts); err != nil {
			return err
		}
		return doc.SaveAs(destPath, format)
	})
	if err != nil {
		return nil, err
	}

	res := &CreateResult{
		Name:      p.Name,
		Path:      destPath,
		Format:    format,
		Scheme:    string(scheme),
		Unmatched: scan.Unmatched,
	}
	tpl := registry.Template{
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Format:      format,
		Scheme:      string(scheme),
		Path:        destPath,
	}
	for _, m := range scan.Markers {
		// Markers that never matched are reported in Unmatched only; the
		// stored record lists placeholders that exist in the document.
		if m.Count == 0 {
			continue
		}
		res.Placeholders = append(res.Placeholders, PlaceholderReport{
			Name:        m.Name,
			Marker:      m.Marker,
			Occurrences: m.Count,
			Default:     p.Defaults[m.Name],
		})
		tpl.Placeholders = append(tpl.Placeholders, registry.Placeholder{
			Name:        m.Name,
			Marker:      m.Marker,
			Occurrences: m.Count,
			Default:     p.Defaults[m.Name],
		})
	}
	if err := s.reg.Register(ctx, tpl); err != nil {
		// A concurrent create won the name between our check and the
		// register. Our stored copy is now an orphan; best-effort cleanup.
		if errors.Is(err, registry.ErrDuplicateName) {
			if rmErr := os.Remove(destPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				s.logger.Warn("orphaned template document left behind", "path", destPath, "error", rmErr)
			}
		}
		return nil, err
	}
	s.logger.Info("template created",
		"name", p.Name, "placeholders", len(res.Placeholders), "unmatched", len(res.Unmatched))
	return res, nil
}

// Apply statuses.
const (
	StatusOK      = "ok"      // every placeholder resolved
	StatusPartial = "partial" // some placeholders left literal
)

// ApplyParams describes a template_apply request.
type ApplyParams struct {
	Name       string
	OutputPath string
	// Format overrides the output format derived from OutputPath's
	// extension.
	Format   string
	Values   map[string]string
	Defaults map[string]string
}

// ApplyResult reports the instantiation outcome.
type ApplyResult struct {
	Name        string   `json:"name"`
	OutputPath  string   `json:"output_path"`
	Status      string   `json:"status"`
	Occurrences int      `json:"occurrences"`
	Resolved    []string `json:"resolved,omitempty"`
	Defaulted   []string `json:"defaulted,omitempty"`
	Unresolved  []string `json:"unresolved,omitempty"`
}

// Apply instantiates a registered template into OutputPath. Placeholders
// without a value fall back to their default; without either they stay
// literal and the status becomes partial. A template whose record lists
// placeholders but whose document contains none is reported as an error,
// since the stored pair is out of sync.
func (s *Service) Apply(ctx context.Context, p ApplyParams) (*ApplyResult, error) {
	if p.OutputPath == "" {
		return nil, &ValidationError{Field: "output_path", Reason: "must not be empty"}
	}
	tpl, err := s.reg.Get(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	scheme, err := placeholder.ParseScheme(tpl.Scheme)
	if err != nil {
		return nil, fmt.Errorf("template %s: stored scheme: %w", tpl.Name, err)
	}

	// Callers may key values and defaults by the derived placeholder name
	// or by the original marker text the template was created from.
	byMarker := map[string]string{}
	for _, ph := range tpl.Placeholders {
		if ph.Marker != "" {
			byMarker[ph.Marker] = ph.Name
		}
	}
	values := resolveKeys(p.Values, byMarker)

	// Recorded defaults apply first; per-call defaults override them.
	defaults := map[string]string{}
	for _, ph := range tpl.Placeholders {
		if ph.Default != "" {
			defaults[ph.Name] = ph.Default
		}
	}
	for name, v := range resolveKeys(p.Defaults, byMarker) {
		defaults[name] = v
	}

	outFormat := p.Format
	if outFormat == "" {
		outFormat = formatFromPath(p.OutputPath, s.adapter)
	}
	var sub *placeholder.SubstituteResult
	err = bridge.WithDocument(ctx, s.adapter, tpl.Path, func(doc bridge.Document) error {
		sub = placeholder.Substitute(bridge.RunTexts(doc), scheme, values, defaults)
		if len(tpl.Placeholders) > 0 && sub.Occurrences == 0 {
			return fmt.Errorf("template %s: document contains no placeholders but the record lists %d",
				tpl.Name, len(tpl.Placeholders))
		}
		if err := bridge.WriteRunTexts(doc, sub.Texts); err != nil {
			return err
		}
		return doc.SaveAs(p.OutputPath, outFormat)
	})
	if err != nil {
		return nil, err
	}

	status := StatusOK
	if len(sub.Unresolved) > 0 {
		status = StatusPartial
	}
	s.logger.Info("template applied",
		"name", p.Name, "output", p.OutputPath, "status", status, "unresolved", len(sub.Unresolved))
	return &ApplyResult{
		Name:        p.Name,
		OutputPath:  p.OutputPath,
		Status:      status,
		Occurrences: sub.Occurrences,
		Resolved:    sub.Resolved,
		Defaulted:   sub.Defaulted,
		Unresolved:  sub.Unresolved,
	}, nil
}

// resolveKeys maps marker-text keys onto their derived placeholder names.
// A key that already names a placeholder passes through; when both forms
// address the same placeholder, the derived-name key wins.
func resolveKeys(in map[string]string, byMarker map[string]string) map[string]string {
	if len(in) == 0 || len(byMarker) == 0 {
		return in
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if name, ok := byMarker[k]; ok && name != k {
			if _, direct := in[name]; direct {
				continue
			}
			out[name] = v
			continue
		}
		out[k] = v
	}
	return out
}

// List returns registered templates, optionally filtered.
func (s *Service) List(ctx context.Context, term, category, format string) ([]registry.Template, error) {
	return s.reg.Search(ctx, registry.Query{Term: term, Category: category, Format: format})
}

// Delete removes a template record and its stored document.
func (s *Service) Delete(ctx context.Context, name string) error {
	tpl, err := s.reg.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := s.reg.Delete(ctx, name); err != nil {
		return err
	}
	if err := os.Remove(tpl.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("template document not removed", "path", tpl.Path, "error", err)
	}
	return nil
}

// formatFromPath derives a save format from a path extension, falling
// back to the adapter's first supported format for extension-less paths
// (the in-memory back end).
func formatFromPath(path string, a bridge.Adapter) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); ext != "" {
		return ext
	}
	if formats := a.Formats(); len(formats) > 0 {
		return formats[0]
	}
	return "odt"
}
