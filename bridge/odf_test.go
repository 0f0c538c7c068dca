package bridge

import (
	"archive/zip"
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestODF_SaveAndReopen(t *testing.T) {
	ctx := context.Background()
	odf := NewODF()

	doc, err := odf.Create(ctx, "odt")
	if err != nil {
		t.Fatal(err)
	}
	doc.AppendHeading("Quarterly Report", 1)
	doc.AppendParagraph("Revenue was {{REVENUE}} this quarter.")
	doc.AppendHeading("Outlook", 2)
	doc.AppendParagraph("Steady.")
	if err := doc.SetStyle(StyleParagraph, "Quote", map[string]string{
		"margin-left":       "1cm",
		"parent-style-name": "Standard",
	}); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "report.odt")
	if err := doc.SaveAs(path, "odt"); err != nil {
		t.Fatal(err)
	}
	if err := doc.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := odf.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer got.Close()

	paras := got.Paragraphs()
	if len(paras) != 4 {
		t.Fatalf("got %d paragraphs, want 4", len(paras))
	}
	if !paras[0].Heading || paras[0].Level != 1 || paras[0].Text != "Quarterly Report" {
		t.Fatalf("heading round trip: %+v", paras[0])
	}
	if paras[1].Text != "Revenue was {{REVENUE}} this quarter." {
		t.Fatalf("paragraph round trip: %q", paras[1].Text)
	}
	if !paras[2].Heading || paras[2].Level != 2 {
		t.Fatalf("sub-heading round trip: %+v", paras[2])
	}

	defs := got.Styles(StyleParagraph)
	if len(defs) != 1 || defs[0].Name != "Quote" {
		t.Fatalf("styles round trip: %+v", defs)
	}
	if defs[0].Properties["margin-left"] != "1cm" {
		t.Fatalf("properties round trip: %+v", defs[0].Properties)
	}
	if defs[0].Properties["parent-style-name"] != "Standard" {
		t.Fatalf("parent style lost: %+v", defs[0].Properties)
	}
}

func TestODF_EscapedText(t *testing.T) {
	ctx := context.Background()
	odf := NewODF()

	doc, _ := odf.Create(ctx, "odt")
	doc.AppendParagraph(`Terms: <net-30> & "prompt" payment`)

	path := filepath.Join(t.TempDir(), "terms.odt")
	if err := doc.SaveAs(path, "odt"); err != nil {
		t.Fatal(err)
	}
	doc.Close()

	got, err := odf.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer got.Close()
	if text := got.Paragraphs()[0].Text; text != `Terms: <net-30> & "prompt" payment` {
		t.Fatalf("markup leaked into text: %q", text)
	}
}

func TestODF_MimetypeFirstAndStored(t *testing.T) {
	ctx := context.Background()
	odf := NewODF()

	doc, _ := odf.Create(ctx, "odt")
	doc.AppendParagraph("x")
	path := filepath.Join(t.TempDir(), "x.odt")
	if err := doc.SaveAs(path, "odt"); err != nil {
		t.Fatal(err)
	}
	doc.Close()

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	if len(zr.File) == 0 || zr.File[0].Name != "mimetype" {
		t.Fatal("mimetype must be the first archive entry")
	}
	if zr.File[0].Method != zip.Store {
		t.Fatal("mimetype must be stored uncompressed")
	}
}

func TestODF_SpanStylesBecomeRuns(t *testing.T) {
	content := `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:body><office:text>
<text:p text:style-name="Body">Dear <text:span text:style-name="Emphasis">Customer</text:span>, welcome.</text:p>
</office:text></office:body></office:document-content>`

	paras, err := parseContent([]byte(content))
	if err != nil {
		t.Fatal(err)
	}
	if len(paras) != 1 {
		t.Fatalf("got %d paragraphs, want 1", len(paras))
	}
	doc := &odfDoc{paras: paras}
	runs := doc.Runs()
	want := []Run{
		{Text: "Dear ", StyleRef: "Body"},
		{Text: "Customer", StyleRef: "Emphasis"},
		{Text: ", welcome.", StyleRef: "Body"},
	}
	if len(runs) != len(want) {
		t.Fatalf("got %d runs, want %d: %+v", len(runs), len(want), runs)
	}
	for i := range want {
		if runs[i] != want[i] {
			t.Fatalf("run %d: got %+v, want %+v", i, runs[i], want[i])
		}
	}
}

func TestODF_WhitespaceElements(t *testing.T) {
	content := `<?xml version="1.0"?>
<office:document-content xmlns:office="u:o" xmlns:text="u:t">
<office:body><office:text>
<text:p>a<text:tab/>b<text:line-break/>c<text:s text:c="3"/>d</text:p>
</office:text></office:body></office:document-content>`

	paras, err := parseContent([]byte(content))
	if err != nil {
		t.Fatal(err)
	}
	got := paras[0].spans[0].text
	if got != "a\tb\nc   d" {
		t.Fatalf("whitespace folding: %q", got)
	}
}

func TestODF_PlainTextRoundTrip(t *testing.T) {
	ctx := context.Background()
	odf := NewODF()

	doc, _ := odf.Create(ctx, "txt")
	doc.AppendParagraph("line one")
	doc.AppendParagraph("line two")

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := doc.SaveAs(path, "txt"); err != nil {
		t.Fatal(err)
	}
	doc.Close()

	got, err := odf.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer got.Close()
	texts := RunTexts(got)
	if len(texts) != 2 || texts[0] != "line one" || texts[1] != "line two" {
		t.Fatalf("round trip: %q", texts)
	}
}

func TestODF_OpenMissing(t *testing.T) {
	odf := NewODF()
	_, err := odf.Open(context.Background(), filepath.Join(t.TempDir(), "absent.odt"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestODF_UnsupportedExtension(t *testing.T) {
	odf := NewODF()
	if _, err := odf.Open(context.Background(), "sheet.xlsx"); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
