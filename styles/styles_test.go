package styles

import (
	"context"
	"testing"

	"github.com/hazyhaar/docsmith/bridge"
)

func putStyled(t *testing.T, mem *bridge.Memory, path string, styles map[bridge.StyleCategory]map[string]map[string]string, runs ...bridge.Run) {
	t.Helper()
	mem.Put(path, runs...)
	doc, err := mem.Open(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	for cat, byName := range styles {
		for name, props := range byName {
			if err := doc.SetStyle(cat, name, props); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := doc.SaveAs(path, "memory"); err != nil {
		t.Fatal(err)
	}
	doc.Close()
}

func targetStyles(t *testing.T, mem *bridge.Memory, path string, cat bridge.StyleCategory) map[string]map[string]string {
	t.Helper()
	doc, err := mem.Open(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()
	out := map[string]map[string]string{}
	for _, def := range doc.Styles(cat) {
		out[def.Name] = def.Properties
	}
	return out
}

func TestTransferCopiesAllCategories(t *testing.T) {
	mem := bridge.NewMemory()
	putStyled(t, mem, "src", map[bridge.StyleCategory]map[string]map[string]string{
		bridge.StyleParagraph: {"Quote": {"margin-left": "1cm"}},
		bridge.StyleCharacter: {"Emphasis": {"font-style": "italic"}},
		bridge.StyleTable:     {"Grid": {"border": "0.5pt"}},
	})
	mem.Put("tgt", bridge.Run{Text: "hello"})

	res, err := New(mem, nil).Transfer(context.Background(), Params{
		SourcePath: "src", TargetPath: "tgt",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.State != StateDone {
		t.Fatalf("state %q, want done", res.State)
	}
	if len(res.Completed) != len(bridge.AllCategories()) {
		t.Fatalf("completed %v", res.Completed)
	}
	total := 0
	for _, cr := range res.Categories {
		total += cr.Copied
	}
	if total != 3 {
		t.Fatalf("copied %d styles, want 3", total)
	}

	got := targetStyles(t, mem, "tgt", bridge.StyleParagraph)
	if got["Quote"]["margin-left"] != "1cm" {
		t.Fatalf("paragraph styles: %+v", got)
	}
}

func TestTransferCategorySubset(t *testing.T) {
	mem := bridge.NewMemory()
	putStyled(t, mem, "src", map[bridge.StyleCategory]map[string]map[string]string{
		bridge.StyleParagraph: {"Quote": {"margin-left": "1cm"}},
		bridge.StyleCharacter: {"Emphasis": {"font-style": "italic"}},
	})
	mem.Put("tgt", bridge.Run{Text: "hello"})

	res, err := New(mem, nil).Transfer(context.Background(), Params{
		SourcePath: "src", TargetPath: "tgt",
		Categories: []bridge.StyleCategory{bridge.StyleCharacter},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Completed) != 1 || res.Completed[0] != bridge.StyleCharacter {
		t.Fatalf("completed %v", res.Completed)
	}
	if para := targetStyles(t, mem, "tgt", bridge.StyleParagraph); len(para) != 0 {
		t.Fatalf("paragraph styles leaked: %+v", para)
	}
	if ch := targetStyles(t, mem, "tgt", bridge.StyleCharacter); ch["Emphasis"]["font-style"] != "italic" {
		t.Fatalf("character styles: %+v", ch)
	}
}

func TestTransferProtectedNamesSkipped(t *testing.T) {
	mem := bridge.NewMemory()
	putStyled(t, mem, "src", map[bridge.StyleCategory]map[string]map[string]string{
		bridge.StyleParagraph: {"Standard": {"font-size": "14pt"}, "Quote": {"margin-left": "1cm"}},
	})
	putStyled(t, mem, "tgt", map[bridge.StyleCategory]map[string]map[string]string{
		bridge.StyleParagraph: {"Standard": {"font-size": "11pt"}},
	})

	res, err := New(mem, nil).Transfer(context.Background(), Params{
		SourcePath: "src", TargetPath: "tgt",
		Categories: []bridge.StyleCategory{bridge.StyleParagraph},
	})
	if err != nil {
		t.Fatal(err)
	}
	cr := res.Categories[0]
	if cr.Copied != 1 || cr.Skipped != 1 {
		t.Fatalf("copied %d skipped %d, want 1/1", cr.Copied, cr.Skipped)
	}
	got := targetStyles(t, mem, "tgt", bridge.StyleParagraph)
	if got["Standard"]["font-size"] != "11pt" {
		t.Fatalf("built-in style overwritten: %+v", got["Standard"])
	}
}

func TestTransferPreserveContent(t *testing.T) {
	mem := bridge.NewMemory()
	putStyled(t, mem, "src", map[bridge.StyleCategory]map[string]map[string]string{
		bridge.StyleParagraph: {
			"Numbered": {"font-size": "12pt"},
			"Plain":    {"font-size": "12pt"},
		},
	})
	putStyled(t, mem, "tgt", map[bridge.StyleCategory]map[string]map[string]string{
		bridge.StyleParagraph: {
			// Carries a content-bearing property, so preserve_content skips it.
			"Numbered": {"list-style-name": "Outline", "font-size": "10pt"},
			"Plain":    {"font-size": "10pt"},
		},
	})

	res, err := New(mem, nil).Transfer(context.Background(), Params{
		SourcePath: "src", TargetPath: "tgt",
		Categories:      []bridge.StyleCategory{bridge.StyleParagraph},
		PreserveContent: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	cr := res.Categories[0]
	if cr.Copied != 1 || cr.Skipped != 1 {
		t.Fatalf("copied %d skipped %d, want 1/1", cr.Copied, cr.Skipped)
	}
	got := targetStyles(t, mem, "tgt", bridge.StyleParagraph)
	if got["Numbered"]["font-size"] != "10pt" {
		t.Fatalf("content-bearing style overwritten: %+v", got["Numbered"])
	}
	if got["Plain"]["font-size"] != "12pt" {
		t.Fatalf("plain style not overwritten: %+v", got["Plain"])
	}
}

func TestTransferWithoutPreserveContentOverwrites(t *testing.T) {
	mem := bridge.NewMemory()
	putStyled(t, mem, "src", map[bridge.StyleCategory]map[string]map[string]string{
		bridge.StyleParagraph: {"Numbered": {"font-size": "12pt"}},
	})
	putStyled(t, mem, "tgt", map[bridge.StyleCategory]map[string]map[string]string{
		bridge.StyleParagraph: {"Numbered": {"list-style-name": "Outline", "font-size": "10pt"}},
	})

	res, err := New(mem, nil).Transfer(context.Background(), Params{
		SourcePath: "src", TargetPath: "tgt",
		Categories: []bridge.StyleCategory{bridge.StyleParagraph},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Categories[0].Copied != 1 {
		t.Fatalf("copied %d, want 1", res.Categories[0].Copied)
	}
	got := targetStyles(t, mem, "tgt", bridge.StyleParagraph)
	if got["Numbered"]["font-size"] != "12pt" {
		t.Fatalf("style not overwritten: %+v", got["Numbered"])
	}
}

func TestTransferMapping(t *testing.T) {
	mem := bridge.NewMemory()
	putStyled(t, mem, "src", map[bridge.StyleCategory]map[string]map[string]string{
		bridge.StyleParagraph: {"CorpBody": {"font-family": "Inter"}},
	})
	mem.Put("tgt", bridge.Run{Text: "x"})

	_, err := New(mem, nil).Transfer(context.Background(), Params{
		SourcePath: "src", TargetPath: "tgt",
		Categories: []bridge.StyleCategory{bridge.StyleParagraph},
		Mapping:    map[string]string{"CorpBody": "House Body"},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := targetStyles(t, mem, "tgt", bridge.StyleParagraph)
	if _, ok := got["CorpBody"]; ok {
		t.Fatalf("unmapped name used: %+v", got)
	}
	if got["House Body"]["font-family"] != "Inter" {
		t.Fatalf("mapped style: %+v", got)
	}
}

func TestTransferStripsLinkageProperties(t *testing.T) {
	mem := bridge.NewMemory()
	putStyled(t, mem, "src", map[bridge.StyleCategory]map[string]map[string]string{
		bridge.StyleParagraph: {"Quote": {
			"margin-left":       "1cm",
			"parent-style-name": "SourceParent",
		}},
	})
	putStyled(t, mem, "tgt", map[bridge.StyleCategory]map[string]map[string]string{
		bridge.StyleParagraph: {"Quote": {
			"parent-style-name": "TargetParent",
			"font-size":         "10pt",
		}},
	})

	if _, err := New(mem, nil).Transfer(context.Background(), Params{
		SourcePath: "src", TargetPath: "tgt",
		Categories: []bridge.StyleCategory{bridge.StyleParagraph},
	}); err != nil {
		t.Fatal(err)
	}
	got := targetStyles(t, mem, "tgt", bridge.StyleParagraph)["Quote"]
	if got["parent-style-name"] != "TargetParent" {
		t.Fatalf("target linkage lost: %+v", got)
	}
	if got["margin-left"] != "1cm" {
		t.Fatalf("source formatting not applied: %+v", got)
	}
}

// WHAT: template mode reports exactly the target's token count as verified.
// WHY: style application must never fragment a placeholder token.
func TestTransferTemplateModeVerifiesTokens(t *testing.T) {
	mem := bridge.NewMemory()
	putStyled(t, mem, "src", map[bridge.StyleCategory]map[string]map[string]string{
		bridge.StyleParagraph: {"Quote": {"margin-left": "1cm"}},
	})
	mem.Put("tgt",
		bridge.Run{Text: "Dear {{CLIENT}},"},
		bridge.Run{Text: "Amount due: %TOTAL% by $DUE_DATE$."},
	)

	res, err := New(mem, nil).Transfer(context.Background(), Params{
		SourcePath: "src", TargetPath: "tgt",
		TemplateMode: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Verified {
		t.Fatal("not verified")
	}
	if res.PlaceholdersVerified != 3 {
		t.Fatalf("verified %d tokens, want 3", res.PlaceholdersVerified)
	}
}

func TestTransferValidation(t *testing.T) {
	mem := bridge.NewMemory()
	mem.Put("a", bridge.Run{Text: "x"})

	e := New(mem, nil)
	if _, err := e.Transfer(context.Background(), Params{SourcePath: "a", TargetPath: "a"}); err == nil {
		t.Fatal("same source and target accepted")
	}
	if _, err := e.Transfer(context.Background(), Params{
		SourcePath: "a", TargetPath: "b",
		Categories: []bridge.StyleCategory{"celestial"},
	}); err == nil {
		t.Fatal("unknown category accepted")
	}
	if _, err := e.Transfer(context.Background(), Params{
		SourcePath: "a", TargetPath: "b",
		Categories: []bridge.StyleCategory{bridge.StyleParagraph, bridge.StyleParagraph},
	}); err == nil {
		t.Fatal("duplicate category accepted")
	}
}
