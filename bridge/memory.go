package bridge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Adapter. Documents live in a map keyed by path;
// SaveAs writes back into the same map. Handles see a deep copy of the
// stored document, so an abandoned handle never corrupts the store.
//
// The zero value is not usable; call NewMemory.
type Memory struct {
	mu   sync.Mutex
	docs map[string]*memState

	// OpenErr, when set, is returned by every Open. Tests use it to
	// exercise failure paths, typically with ErrTransient.
	OpenErr error
}

// memPara is one paragraph holding exactly one run.
type memPara struct {
	run     Run
	heading bool
	level   int
}

type memState struct {
	paras  []memPara
	styles map[StyleCategory]map[string]map[string]string
}

func (s *memState) clone() *memState {
	c := &memState{
		paras:  append([]memPara(nil), s.paras...),
		styles: make(map[StyleCategory]map[string]map[string]string, len(s.styles)),
	}
	for cat, byName := range s.styles {
		c.styles[cat] = make(map[string]map[string]string, len(byName))
		for name, props := range byName {
			p := make(map[string]string, len(props))
			for k, v := range props {
				p[k] = v
			}
			c.styles[cat][name] = p
		}
	}
	return c
}

// NewMemory returns an empty in-memory adapter.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]*memState)}
}

// Put stores a document of plain runs under path, replacing any previous
// one. Each run becomes its own paragraph.
func (m *Memory) Put(path string, runs ...Run) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &memState{
		styles: make(map[StyleCategory]map[string]map[string]string),
	}
	for _, r := range runs {
		st.paras = append(st.paras, memPara{run: r})
	}
	m.docs[path] = st
}

// PutText stores a document with one run per line of text.
func (m *Memory) PutText(path, text string) {
	lines := strings.Split(text, "\n")
	runs := make([]Run, len(lines))
	for i, l := range lines {
		runs[i] = Run{Text: l}
	}
	m.Put(path, runs...)
}

// Texts returns the stored run texts for path, or nil if absent.
func (m *Memory) Texts(path string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.docs[path]
	if !ok {
		return nil
	}
	texts := make([]string, len(st.paras))
	for i, p := range st.paras {
		texts[i] = p.run.Text
	}
	return texts
}

// Exists reports whether a document is stored under path.
func (m *Memory) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[path]
	return ok
}

func (m *Memory) Open(_ context.Context, path string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	st, ok := m.docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return &memDoc{adapter: m, state: st.clone()}, nil
}

func (m *Memory) Create(_ context.Context, format string) (Document, error) {
	if format != "memory" && format != "txt" {
		return nil, fmt.Errorf("memory adapter cannot create %q documents", format)
	}
	return &memDoc{
		adapter: m,
		state: &memState{
			styles: make(map[StyleCategory]map[string]map[string]string),
		},
	}, nil
}

func (m *Memory) Formats() []string { return []string{"memory", "txt"} }

type memDoc struct {
	adapter *Memory
	state   *memState
	closed  bool
}

func (d *memDoc) Runs() []Run {
	runs := make([]Run, len(d.state.paras))
	for i, p := range d.state.paras {
		runs[i] = p.run
	}
	return runs
}

func (d *memDoc) Paragraphs() []Paragraph {
	paras := make([]Paragraph, len(d.state.paras))
	for i, p := range d.state.paras {
		paras[i] = Paragraph{
			Text:     p.run.Text,
			StyleRef: p.run.StyleRef,
			Heading:  p.heading,
			Level:    p.level,
		}
	}
	return paras
}

func (d *memDoc) SetRunText(i int, text string) error {
	if d.closed {
		return fmt.Errorf("memory document is closed")
	}
	if i < 0 || i >= len(d.state.paras) {
		return fmt.Errorf("run index %d out of range [0,%d)", i, len(d.state.paras))
	}
	d.state.paras[i].run.Text = text
	return nil
}

func (d *memDoc) AppendParagraph(text string) int {
	d.state.paras = append(d.state.paras, memPara{run: Run{Text: text}})
	return len(d.state.paras) - 1
}

func (d *memDoc) AppendHeading(text string, level int) int {
	if level < 1 {
		level = 1
	}
	d.state.paras = append(d.state.paras, memPara{run: Run{Text: text}, heading: true, level: level})
	return len(d.state.paras) - 1
}

func (d *memDoc) Styles(category StyleCategory) []StyleDefinition {
	byName := d.state.styles[category]
	defs := make([]StyleDefinition, 0, len(byName))
	for name, props := range byName {
		p := make(map[string]string, len(props))
		for k, v := range props {
			p[k] = v
		}
		defs = append(defs, StyleDefinition{Category: category, Name: name, Properties: p})
	}
	sortStyles(defs)
	return defs
}

func (d *memDoc) SetStyle(category StyleCategory, name string, properties map[string]string) error {
	if d.closed {
		return fmt.Errorf("memory document is closed")
	}
	if name == "" {
		return fmt.Errorf("style name must not be empty")
	}
	byName, ok := d.state.styles[category]
	if !ok {
		byName = make(map[string]map[string]string)
		d.state.styles[category] = byName
	}
	p := make(map[string]string, len(properties))
	for k, v := range properties {
		p[k] = v
	}
	byName[name] = p
	return nil
}

func (d *memDoc) SaveAs(path, format string) error {
	if d.closed {
		return fmt.Errorf("memory document is closed")
	}
	if format != "memory" && format != "txt" {
		return fmt.Errorf("memory adapter cannot save %q documents", format)
	}
	d.adapter.mu.Lock()
	defer d.adapter.mu.Unlock()
	d.adapter.docs[path] = d.state.clone()
	return nil
}

func (d *memDoc) Close() error {
	d.closed = true
	return nil
}

func sortStyles(defs []StyleDefinition) {
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
}
