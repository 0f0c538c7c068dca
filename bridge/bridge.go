// Package bridge is the narrow seam between docsmith and document storage.
//
// The template, style and document services never touch files or parsers
// directly: they see a document as an ordered sequence of text runs plus a
// set of named style definitions, and reach both through the Adapter
// interface. One Adapter implementation exists per supported back end:
//
//   - ODF    — .odt/.ott zip archives (content.xml runs, styles.xml styles)
//     and plain .txt files
//   - Memory — in-process documents for tests and transient scratch work
//
// A Document handle is exclusively owned: callers must serialize all
// operations against the same handle and must Close it on every exit path.
// WithDocument and WithTwoDocuments encode that discipline.
package bridge

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound marks an open of a document that does not exist.
var ErrNotFound = errors.New("bridge: document not found")

// ErrTransient marks a back-end failure the caller may retry (engine busy,
// interrupted I/O). The bridge itself never retries.
var ErrTransient = errors.New("bridge: transient failure")

// Run is a contiguous span of text sharing one style reference. It is the
// unit of granularity for placeholder scanning and substitution.
type Run struct {
	Text     string `json:"text"`
	StyleRef string `json:"style_ref,omitempty"`
}

// StyleCategory is one of the six closed style classes.
type StyleCategory string

const (
	StyleParagraph StyleCategory = "paragraph"
	StyleCharacter StyleCategory = "character"
	StylePage      StyleCategory = "page"
	StyleFrame     StyleCategory = "frame"
	StyleNumbering StyleCategory = "numbering"
	StyleTable     StyleCategory = "table"
)

// AllCategories lists the six style categories in documentation order.
func AllCategories() []StyleCategory {
	return []StyleCategory{
		StyleParagraph, StyleCharacter, StylePage,
		StyleFrame, StyleNumbering, StyleTable,
	}
}

// ParseCategory validates a category string.
func ParseCategory(s string) (StyleCategory, error) {
	switch StyleCategory(s) {
	case StyleParagraph, StyleCharacter, StylePage, StyleFrame, StyleNumbering, StyleTable:
		return StyleCategory(s), nil
	default:
		return "", fmt.Errorf("unknown style category %q", s)
	}
}

// StyleDefinition is one named style. Properties are an opaque bag the
// back end understands; the transfer engine copies them without
// interpretation beyond the content-bearing check.
type StyleDefinition struct {
	Category   StyleCategory     `json:"category"`
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Paragraph is the block-level view of a document, used by operations
// that care about structure (headings, sections) rather than runs.
type Paragraph struct {
	Text     string `json:"text"`
	StyleRef string `json:"style_ref,omitempty"`
	Heading  bool   `json:"heading,omitempty"`
	Level    int    `json:"level,omitempty"`
}

// Document is a live document handle. Not safe for concurrent use.
type Document interface {
	// Runs returns the document's runs in order.
	Runs() []Run
	// Paragraphs returns the block-level view: one entry per paragraph or
	// heading, with span texts joined.
	Paragraphs() []Paragraph
	// SetRunText replaces the text of run i, leaving its style reference alone.
	SetRunText(i int, text string) error
	// AppendParagraph adds a new paragraph holding a single run of text and
	// returns the new run's index.
	AppendParagraph(text string) int
	// AppendHeading adds a heading paragraph at the given outline level
	// (1-based) and returns the new run's index.
	AppendHeading(text string, level int) int
	// Styles returns the named style definitions of one category.
	Styles(category StyleCategory) []StyleDefinition
	// SetStyle creates or overwrites a named style.
	SetStyle(category StyleCategory, name string, properties map[string]string) error
	// SaveAs persists the document under path in the given format.
	SaveAs(path, format string) error
	// Close releases the handle. Safe to call more than once.
	Close() error
}

// Adapter opens and creates documents for one storage back end.
type Adapter interface {
	Open(ctx context.Context, path string) (Document, error)
	Create(ctx context.Context, format string) (Document, error)
	// Formats lists the formats SaveAs accepts.
	Formats() []string
}

// WithDocument opens path, runs fn, and guarantees the handle is closed on
// every exit path. A Close failure after a successful fn is reported; after
// a failed fn the fn error wins.
func WithDocument(ctx context.Context, a Adapter, path string, fn func(Document) error) error {
	doc, err := a.Open(ctx, path)
	if err != nil {
		return err
	}
	fnErr := fn(doc)
	if cerr := doc.Close(); cerr != nil && fnErr == nil {
		return fmt.Errorf("close %s: %w", path, cerr)
	}
	return fnErr
}

// WithTwoDocuments opens two documents (source first) with the same
// guarantees as WithDocument for both handles.
func WithTwoDocuments(ctx context.Context, a Adapter, path1, path2 string, fn func(d1, d2 Document) error) error {
	return WithDocument(ctx, a, path1, func(d1 Document) error {
		return WithDocument(ctx, a, path2, func(d2 Document) error {
			return fn(d1, d2)
		})
	})
}

// RunTexts extracts the ordered texts from a document's runs.
func RunTexts(doc Document) []string {
	runs := doc.Runs()
	texts := make([]string, len(runs))
	for i, r := range runs {
		texts[i] = r.Text
	}
	return texts
}

// WriteRunTexts writes updated texts back run by run, skipping unchanged
// runs. texts must have the same length as the document's runs.
func WriteRunTexts(doc Document, texts []string) error {
	runs := doc.Runs()
	if len(texts) != len(runs) {
		return fmt.Errorf("bridge: run count mismatch: %d texts for %d runs", len(texts), len(runs))
	}
	for i, t := range texts {
		if t == runs[i].Text {
			continue
		}
		if err := doc.SetRunText(i, t); err != nil {
			return err
		}
	}
	return nil
}
