// Package styles copies named style definitions between documents.
//
// A transfer walks a fixed state machine: Planning (enumerate source
// styles, resolve target names) → Applying (mutate the target one
// category at a time) → Verified (placeholder-integrity check, template
// mode only) → Done. A failure while applying halts the remaining
// categories; completed categories are not rolled back and the result
// says exactly which ones finished.
package styles

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/docsmith/bridge"
	"github.com/hazyhaar/docsmith/kit"
	"github.com/hazyhaar/docsmith/placeholder"
)

// State is the transfer's position in its lifecycle.
type State string

const (
	StatePlanning State = "planning"
	StateApplying State = "applying"
	StateVerified State = "verified"
	StateDone     State = "done"
)

// protectedNames are built-in style names that are never overwritten in
// the target document.
var protectedNames = map[string]bool{
	"Standard":      true,
	"Heading":       true,
	"Text Body":     true,
	"Default Style": true,
	"Default":       true,
	"Header":        true,
	"Footer":        true,
	"Caption":       true,
}

// protectedProperties are linkage properties that belong to a document's
// own style graph and are never carried across documents.
var protectedProperties = map[string]bool{
	"display-name":      true,
	"parent-style-name": true,
	"follow-style-name": true,
}

// contentBearingProperties mark a style whose overwrite could change what
// text the document shows, not just how it looks. With preserve_content
// set, target styles carrying any of these are skipped instead of
// overwritten.
var contentBearingProperties = map[string]bool{
	"list-style-name":  true,
	"master-page-name": true,
	"drop-cap":         true,
}

// Engine runs style transfers over a document adapter.
type Engine struct {
	adapter bridge.Adapter
	logger  *slog.Logger
	mw      kit.Middleware
}

func New(adapter bridge.Adapter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{adapter: adapter, logger: logger}
}

// Params describes one transfer.
type Params struct {
	SourcePath string
	TargetPath string
	// Categories to transfer; empty means all six.
	Categories []bridge.StyleCategory
	// PreserveContent skips overwriting target styles whose properties
	// could change displayed content.
	PreserveContent bool
	// TemplateMode verifies the target's placeholder tokens survive the
	// transfer intact.
	TemplateMode bool
	// Mapping renames styles on the way over (source name → target name).
	Mapping map[string]string
}

// CategoryResult is one category's outcome.
type CategoryResult struct {
	Category bridge.StyleCategory `json:"category"`
	Copied   int                  `json:"copied"`
	Skipped  int                  `json:"skipped"`
	// Collisions lists target names left alone because of preserve_content
	// or protection.
	Collisions []string `json:"collisions,omitempty"`
}

// Result reports a transfer. On failure it still carries the categories
// that completed before the halt.
type Result struct {
	State      State                  `json:"state"`
	Categories []CategoryResult       `json:"categories"`
	Completed  []bridge.StyleCategory `json:"completed"`
	// PlaceholdersVerified is the number of tokens confirmed intact after
	// the transfer. Only meaningful in template mode.
	PlaceholdersVerified int  `json:"placeholders_verified"`
	Verified             bool `json:"verified"`
}

// Transfer copies the requested style categories from source to target
// and saves the target in place.
func (e *Engine) Transfer(ctx context.Context, p Params) (*Result, error) {
	cats := p.Categories
	if len(cats) == 0 {
		cats = bridge.AllCategories()
	}
	seen := map[bridge.StyleCategory]bool{}
	for _, c := range cats {
		if _, err := bridge.ParseCategory(string(c)); err != nil {
			return nil, err
		}
		if seen[c] {
			return nil, fmt.Errorf("duplicate style category %q", c)
		}
		seen[c] = true
	}
	if p.SourcePath == p.TargetPath {
		return nil, fmt.Errorf("source and target are the same document")
	}

	res := &Result{State: StatePlanning}
	err := bridge.WithTwoDocuments(ctx, e.adapter, p.SourcePath, p.TargetPath,
		func(src, tgt bridge.Document) error {
			return e.transfer(src, tgt, p, cats, res)
		})
	if err != nil {
		return res, err
	}
	e.logger.Info("style transfer done",
		"source", p.SourcePath, "target", p.TargetPath,
		"categories", len(res.Completed), "verified", res.Verified)
	return res, nil
}

func (e *Engine) transfer(src, tgt bridge.Document, p Params, cats []bridge.StyleCategory, res *Result) error {
	// Planning: enumerate source styles and resolve target names up front
	// so a bad mapping is caught before any mutation.
	type plannedStyle struct {
		def        bridge.StyleDefinition
		targetName string
	}
	plan := map[bridge.StyleCategory][]plannedStyle{}
	for _, cat := range cats {
		for _, def := range src.Styles(cat) {
			name := def.Name
			if mapped, ok := p.Mapping[def.Name]; ok {
				if mapped == "" {
					return fmt.Errorf("style mapping for %q is empty", def.Name)
				}
				name = mapped
			}
			plan[cat] = append(plan[cat], plannedStyle{def: def, targetName: name})
		}
	}

	var tokensBefore []placeholder.Token
	if p.TemplateMode {
		tokensBefore = placeholder.InventoryAll(bridge.RunTexts(tgt))
	}

	res.State = StateApplying
	for _, cat := range cats {
		cr := CategoryResult{Category: cat}
		existing := map[string]bridge.StyleDefinition{}
		for _, def := range tgt.Styles(cat) {
			existing[def.Name] = def
		}
		for _, ps := range plan[cat] {
			cur, collides := existing[ps.targetName]
			switch {
			case collides && protectedNames[ps.targetName]:
				cr.Skipped++
				cr.Collisions = append(cr.Collisions, ps.targetName)
				continue
			case collides && p.PreserveContent && hasContentBearing(cur.Properties):
				cr.Skipped++
				cr.Collisions = append(cr.Collisions, ps.targetName)
				continue
			}
			props := copyProperties(ps.def.Properties)
			if collides {
				// The target's own style-graph linkage survives an overwrite.
				for k := range protectedProperties {
					if v, ok := cur.Properties[k]; ok {
						props[k] = v
					}
				}
			}
			if err := tgt.SetStyle(cat, ps.targetName, props); err != nil {
				res.Categories = append(res.Categories, cr)
				return fmt.Errorf("apply %s style %q: %w", cat, ps.targetName, err)
			}
			cr.Copied++
		}
		res.Categories = append(res.Categories, cr)
		res.Completed = append(res.Completed, cat)
	}

	if p.TemplateMode {
		res.State = StateVerified
		tokensAfter := placeholder.InventoryAll(bridge.RunTexts(tgt))
		if err := compareTokens(tokensBefore, tokensAfter); err != nil {
			return fmt.Errorf("placeholder integrity: %w", err)
		}
		res.PlaceholdersVerified = len(tokensAfter)
		res.Verified = true
	}

	if err := tgt.SaveAs(p.TargetPath, formatOf(p.TargetPath, e.adapter)); err != nil {
		return err
	}
	res.State = StateDone
	return nil
}

func formatOf(path string, a bridge.Adapter) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); ext != "" {
		return ext
	}
	if formats := a.Formats(); len(formats) > 0 {
		return formats[0]
	}
	return "odt"
}

// copyProperties clones a bag minus the cross-document linkage keys.
func copyProperties(props map[string]string) map[string]string {
	out := make(map[string]string, len(props))
	for k, v := range props {
		if protectedProperties[k] {
			continue
		}
		out[k] = v
	}
	return out
}

func hasContentBearing(props map[string]string) bool {
	for k := range props {
		if contentBearingProperties[k] {
			return true
		}
	}
	return false
}

// compareTokens demands the exact same token population before and after.
func compareTokens(before, after []placeholder.Token) error {
	if len(before) != len(after) {
		return fmt.Errorf("token count changed from %d to %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			return fmt.Errorf("token %d changed from %s to %s", i, before[i], after[i])
		}
	}
	return nil
}
