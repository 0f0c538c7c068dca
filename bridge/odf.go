package bridge

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ODF reads and writes OpenDocument text files (.odt, .ott) plus plain
// .txt files. An .odt archive is a zip: run texts live in content.xml,
// named styles in styles.xml. Only the text-bearing subset of the format
// is modeled; unknown markup is not preserved across a SaveAs.
type ODF struct{}

// NewODF returns the OpenDocument adapter.
func NewODF() *ODF { return &ODF{} }

func (*ODF) Formats() []string { return []string{"odt", "ott", "txt"} }

func (a *ODF) Open(_ context.Context, path string) (Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".odt", ".ott":
		return openODT(path)
	case ".txt", ".text":
		return openPlainText(path)
	default:
		return nil, fmt.Errorf("unsupported document type %q", filepath.Ext(path))
	}
}

func (a *ODF) Create(_ context.Context, format string) (Document, error) {
	switch format {
	case "odt", "ott", "txt":
		return &odfDoc{styles: map[StyleCategory]map[string]map[string]string{}}, nil
	default:
		return nil, fmt.Errorf("cannot create %q documents", format)
	}
}

// odfPara is one paragraph: a style name and its ordered spans.
type odfPara struct {
	styleName string
	heading   bool
	level     int // heading outline level, 0 for plain paragraphs
	spans     []odfSpan
}

type odfSpan struct {
	styleName string
	text      string
}

type odfDoc struct {
	paras  []odfPara
	styles map[StyleCategory]map[string]map[string]string
	closed bool
}

func openODT(path string) (*odfDoc, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	doc := &odfDoc{styles: map[StyleCategory]map[string]map[string]string{}}
	var sawContent bool
	for _, f := range r.File {
		switch f.Name {
		case "content.xml":
			data, err := readZipFile(f)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			if doc.paras, err = parseContent(data); err != nil {
				return nil, fmt.Errorf("%s: content.xml: %w", path, err)
			}
			sawContent = true
		case "styles.xml":
			data, err := readZipFile(f)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			if err := parseStyles(data, doc.styles); err != nil {
				return nil, fmt.Errorf("%s: styles.xml: %w", path, err)
			}
		}
	}
	if !sawContent {
		return nil, fmt.Errorf("%s: no content.xml in archive", path)
	}
	return doc, nil
}

func openPlainText(path string) (*odfDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	doc := &odfDoc{styles: map[StyleCategory]map[string]map[string]string{}}
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		doc.paras = append(doc.paras, odfPara{spans: []odfSpan{{text: line}}})
	}
	return doc, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// parseContent walks content.xml and collects text:p / text:h paragraphs.
// Direct paragraph text becomes an implicit span with no style name.
// Tabs, line breaks and run-length spaces are folded into the text.
func parseContent(data []byte) ([]odfPara, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		paras    []odfPara
		inPara   bool
		inSpan   bool
		spanName string
	)
	appendText := func(s string) {
		if !inPara || s == "" {
			return
		}
		p := &paras[len(paras)-1]
		name := ""
		if inSpan {
			name = spanName
		}
		if n := len(p.spans); n > 0 && p.spans[n-1].styleName == name {
			p.spans[n-1].text += s
			return
		}
		p.spans = append(p.spans, odfSpan{styleName: name, text: s})
	}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p", "h":
				para := odfPara{styleName: xmlAttr(t, "style-name"), heading: t.Name.Local == "h"}
				if para.heading {
					para.level, _ = strconv.Atoi(xmlAttr(t, "outline-level"))
					if para.level == 0 {
						para.level = 1
					}
				}
				paras = append(paras, para)
				inPara, inSpan = true, false
			case "span":
				if inPara {
					inSpan, spanName = true, xmlAttr(t, "style-name")
				}
			case "tab":
				appendText("\t")
			case "line-break":
				appendText("\n")
			case "s":
				n, _ := strconv.Atoi(xmlAttr(t, "c"))
				if n < 1 {
					n = 1
				}
				appendText(strings.Repeat(" ", n))
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p", "h":
				inPara = false
			case "span":
				inSpan = false
			}
		case xml.CharData:
			appendText(string(t))
		}
	}
	return paras, nil
}

// parseStyles collects style:style elements. Attributes of any nested
// *-properties element are flattened into the style's property bag keyed
// by their local names.
func parseStyles(data []byte, out map[StyleCategory]map[string]map[string]string) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		curCat  StyleCategory
		curName string
		curProp map[string]string
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "style":
				cat, ok := familyCategory(xmlAttr(t, "family"))
				name := xmlAttr(t, "name")
				if !ok || name == "" {
					curName = ""
					continue
				}
				curCat, curName = cat, name
				curProp = map[string]string{}
				if p := xmlAttr(t, "parent-style-name"); p != "" {
					curProp["parent-style-name"] = p
				}
				if d := xmlAttr(t, "display-name"); d != "" {
					curProp["display-name"] = d
				}
			case curName != "" && strings.HasSuffix(t.Name.Local, "properties"):
				for _, a := range t.Attr {
					if a.Name.Local == "xmlns" {
						continue
					}
					curProp[a.Name.Local] = a.Value
				}
			}
		case xml.EndElement:
			if t.Name.Local == "style" && curName != "" {
				byName, ok := out[curCat]
				if !ok {
					byName = map[string]map[string]string{}
					out[curCat] = byName
				}
				byName[curName] = curProp
				curName = ""
			}
		}
	}
	return nil
}

func xmlAttr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// familyCategory maps an ODF style family to a bridge category.
func familyCategory(family string) (StyleCategory, bool) {
	switch family {
	case "paragraph":
		return StyleParagraph, true
	case "text":
		return StyleCharacter, true
	case "page":
		return StylePage, true
	case "graphic":
		return StyleFrame, true
	case "list":
		return StyleNumbering, true
	case "table":
		return StyleTable, true
	default:
		return "", false
	}
}

func categoryFamily(cat StyleCategory) string {
	switch cat {
	case StyleParagraph:
		return "paragraph"
	case StyleCharacter:
		return "text"
	case StylePage:
		return "page"
	case StyleFrame:
		return "graphic"
	case StyleNumbering:
		return "list"
	case StyleTable:
		return "table"
	default:
		return string(cat)
	}
}

func (d *odfDoc) Runs() []Run {
	var runs []Run
	for _, p := range d.paras {
		for _, s := range p.spans {
			ref := s.styleName
			if ref == "" {
				ref = p.styleName
			}
			runs = append(runs, Run{Text: s.text, StyleRef: ref})
		}
	}
	return runs
}

// locate maps a flat run index to its paragraph and span.
func (d *odfDoc) locate(i int) (pi, si int, err error) {
	if i >= 0 {
		for pi, p := range d.paras {
			if i < len(p.spans) {
				return pi, i, nil
			}
			i -= len(p.spans)
		}
	}
	return 0, 0, fmt.Errorf("run index %d out of range", i)
}

func (d *odfDoc) SetRunText(i int, text string) error {
	if d.closed {
		return fmt.Errorf("document is closed")
	}
	pi, si, err := d.locate(i)
	if err != nil {
		return err
	}
	d.paras[pi].spans[si].text = text
	return nil
}

func (d *odfDoc) Paragraphs() []Paragraph {
	paras := make([]Paragraph, len(d.paras))
	for i, p := range d.paras {
		var b strings.Builder
		for _, s := range p.spans {
			b.WriteString(s.text)
		}
		paras[i] = Paragraph{
			Text:     b.String(),
			StyleRef: p.styleName,
			Heading:  p.heading,
			Level:    p.level,
		}
	}
	return paras
}

func (d *odfDoc) AppendParagraph(text string) int {
	d.paras = append(d.paras, odfPara{spans: []odfSpan{{text: text}}})
	return d.runCount() - 1
}

func (d *odfDoc) AppendHeading(text string, level int) int {
	if level < 1 {
		level = 1
	}
	d.paras = append(d.paras, odfPara{
		heading: true,
		level:   level,
		spans:   []odfSpan{{text: text}},
	})
	return d.runCount() - 1
}

func (d *odfDoc) runCount() int {
	n := 0
	for _, p := range d.paras {
		n += len(p.spans)
	}
	return n
}

func (d *odfDoc) Styles(category StyleCategory) []StyleDefinition {
	byName := d.styles[category]
	defs := make([]StyleDefinition, 0, len(byName))
	for name, props := range byName {
		p := make(map[string]string, len(props))
		for k, v := range props {
			p[k] = v
		}
		defs = append(defs, StyleDefinition{Category: category, Name: name, Properties: p})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (d *odfDoc) SetStyle(category StyleCategory, name string, properties map[string]string) error {
	if d.closed {
		return fmt.Errorf("document is closed")
	}
	if name == "" {
		return fmt.Errorf("style name must not be empty")
	}
	byName, ok := d.styles[category]
	if !ok {
		byName = map[string]map[string]string{}
		d.styles[category] = byName
	}
	p := make(map[string]string, len(properties))
	for k, v := range properties {
		p[k] = v
	}
	byName[name] = p
	return nil
}

func (d *odfDoc) SaveAs(path, format string) error {
	if d.closed {
		return fmt.Errorf("document is closed")
	}
	switch format {
	case "odt", "ott":
		return d.saveODT(path, format)
	case "txt":
		return d.saveText(path)
	default:
		return fmt.Errorf("cannot save %q documents", format)
	}
}

func (d *odfDoc) saveText(path string) error {
	var b strings.Builder
	for i, p := range d.paras {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, s := range p.spans {
			b.WriteString(s.text)
		}
	}
	b.WriteByte('\n')
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

const (
	odtMime = "application/vnd.oasis.opendocument.text"
	ottMime = "application/vnd.oasis.opendocument.text-template"
)

func (d *odfDoc) saveODT(path, format string) error {
	mime := odtMime
	if format == "ott" {
		mime = ottMime
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// The mimetype entry must come first and be stored uncompressed.
	mw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return err
	}
	if _, err := mw.Write([]byte(mime)); err != nil {
		return err
	}
	if err := writeZipEntry(zw, "META-INF/manifest.xml", manifestXML(mime)); err != nil {
		return err
	}
	if err := writeZipEntry(zw, "content.xml", d.contentXML()); err != nil {
		return err
	}
	if err := writeZipEntry(zw, "styles.xml", d.stylesXML()); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func manifestXML(mime string) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0" manifest:version="1.2">`)
	fmt.Fprintf(&b, `<manifest:file-entry manifest:full-path="/" manifest:media-type="%s"/>`, mime)
	b.WriteString(`<manifest:file-entry manifest:full-path="content.xml" manifest:media-type="text/xml"/>`)
	b.WriteString(`<manifest:file-entry manifest:full-path="styles.xml" manifest:media-type="text/xml"/>`)
	b.WriteString(`</manifest:manifest>`)
	return []byte(b.String())
}

func (d *odfDoc) contentXML() []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<office:document-content` +
		` xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"` +
		` xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"` +
		` office:version="1.2">`)
	b.WriteString(`<office:body><office:text>`)
	for _, p := range d.paras {
		tag := "text:p"
		extra := ""
		if p.heading {
			tag = "text:h"
			extra = fmt.Sprintf(` text:outline-level="%d"`, p.level)
		}
		if p.styleName != "" {
			extra += fmt.Sprintf(` text:style-name="%s"`, escapeAttr(p.styleName))
		}
		fmt.Fprintf(&b, "<%s%s>", tag, extra)
		for _, s := range p.spans {
			if s.styleName != "" {
				fmt.Fprintf(&b, `<text:span text:style-name="%s">%s</text:span>`,
					escapeAttr(s.styleName), escapeText(s.text))
			} else {
				b.WriteString(escapeText(s.text))
			}
		}
		fmt.Fprintf(&b, "</%s>", tag)
	}
	b.WriteString(`</office:text></office:body></office:document-content>`)
	return []byte(b.String())
}

func (d *odfDoc) stylesXML() []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<office:document-styles` +
		` xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"` +
		` xmlns:style="urn:oasis:names:tc:opendocument:xmlns:style:1.0"` +
		` office:version="1.2">`)
	b.WriteString(`<office:styles>`)
	for _, cat := range AllCategories() {
		for _, def := range d.Styles(cat) {
			fmt.Fprintf(&b, `<style:style style:name="%s" style:family="%s"`,
				escapeAttr(def.Name), categoryFamily(cat))
			if p := def.Properties["parent-style-name"]; p != "" {
				fmt.Fprintf(&b, ` style:parent-style-name="%s"`, escapeAttr(p))
			}
			if dn := def.Properties["display-name"]; dn != "" {
				fmt.Fprintf(&b, ` style:display-name="%s"`, escapeAttr(dn))
			}
			b.WriteString(`>`)
			b.WriteString(`<style:properties`)
			keys := make([]string, 0, len(def.Properties))
			for k := range def.Properties {
				if k == "parent-style-name" || k == "display-name" {
					continue
				}
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, ` %s="%s"`, k, escapeAttr(def.Properties[k]))
			}
			b.WriteString(`/></style:style>`)
		}
	}
	b.WriteString(`</office:styles></office:document-styles>`)
	return []byte(b.String())
}

func escapeText(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

func escapeAttr(s string) string {
	r := strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

func (d *odfDoc) Close() error {
	d.closed = true
	return nil
}
