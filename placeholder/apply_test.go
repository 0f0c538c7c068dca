package placeholder

import (
	"reflect"
	"testing"
)

func TestSubstitute_Basic(t *testing.T) {
	texts := []string{"Dear {{CLIENT}},", "Regards, {{CLIENT}}"}
	res := Substitute(texts, SchemeMustache, map[string]string{"CLIENT": "Acme Corp"}, nil)

	want := []string{"Dear Acme Corp,", "Regards, Acme Corp"}
	if !reflect.DeepEqual(res.Texts, want) {
		t.Fatalf("Texts = %v, want %v", res.Texts, want)
	}
	if res.Occurrences != 2 || !reflect.DeepEqual(res.Resolved, []string{"CLIENT"}) {
		t.Fatalf("Occurrences/Resolved = %d/%v, want 2/[CLIENT]", res.Occurrences, res.Resolved)
	}
	if len(res.Unresolved) != 0 {
		t.Fatalf("Unresolved = %v, want none", res.Unresolved)
	}
}

func TestSubstitute_DefaultValue(t *testing.T) {
	texts := []string{"Due: {{DUE_DATE}}"}
	res := Substitute(texts, SchemeMustache, nil, map[string]string{"DUE_DATE": "on receipt"})

	if res.Texts[0] != "Due: on receipt" {
		t.Fatalf("text = %q", res.Texts[0])
	}
	if !reflect.DeepEqual(res.Defaulted, []string{"DUE_DATE"}) {
		t.Fatalf("Defaulted = %v, want [DUE_DATE]", res.Defaulted)
	}
}

func TestSubstitute_ValueBeatsDefault(t *testing.T) {
	texts := []string{"Due: {{DUE_DATE}}"}
	res := Substitute(texts, SchemeMustache,
		map[string]string{"DUE_DATE": "2026-09-30"},
		map[string]string{"DUE_DATE": "on receipt"})

	if res.Texts[0] != "Due: 2026-09-30" {
		t.Fatalf("text = %q", res.Texts[0])
	}
	if len(res.Defaulted) != 0 {
		t.Fatalf("Defaulted = %v, want none", res.Defaulted)
	}
}

func TestSubstitute_UnresolvedLeftLiteral(t *testing.T) {
	// WHAT: A token with no value and no default stays in the document.
	// WHY: Partial resolution is a warning, not data loss.
	texts := []string{"{{NAME}} owes {{AMOUNT}} by {{DUE_DATE}}"}
	res := Substitute(texts, SchemeMustache, map[string]string{"NAME": "Acme", "AMOUNT": "40 EUR"}, nil)

	if res.Texts[0] != "Acme owes 40 EUR by {{DUE_DATE}}" {
		t.Fatalf("text = %q", res.Texts[0])
	}
	if !reflect.DeepEqual(res.Unresolved, []string{"DUE_DATE"}) {
		t.Fatalf("Unresolved = %v", res.Unresolved)
	}
	if !reflect.DeepEqual(res.Resolved, []string{"NAME", "AMOUNT"}) || res.Occurrences != 3 {
		t.Fatalf("Resolved/Occurrences = %v/%d, want [NAME AMOUNT]/3", res.Resolved, res.Occurrences)
	}
}

func TestSubstitute_ExtraKeysIgnored(t *testing.T) {
	texts := []string{"Hello {{NAME}}"}
	res := Substitute(texts, SchemeMustache, map[string]string{"NAME": "Ada", "UNUSED": "x"}, nil)
	if res.Texts[0] != "Hello Ada" {
		t.Fatalf("text = %q", res.Texts[0])
	}
	if res.Occurrences != 1 {
		t.Fatalf("Occurrences = %d, want 1", res.Occurrences)
	}
}

func TestSubstitute_ValueLooksLikeToken(t *testing.T) {
	// Replacement values are literal text; they are never rescanned.
	texts := []string{"x {{A}} y"}
	res := Substitute(texts, SchemeMustache, map[string]string{"A": "{{B}}"}, nil)
	if res.Texts[0] != "x {{B}} y" {
		t.Fatalf("text = %q", res.Texts[0])
	}
	if res.Occurrences != 1 || len(res.Resolved) != 1 {
		t.Fatalf("Occurrences/Resolved = %d/%v", res.Occurrences, res.Resolved)
	}
}

func TestSubstitute_ZeroOccurrences(t *testing.T) {
	res := Substitute([]string{"plain text"}, SchemeMustache, map[string]string{"A": "b"}, nil)
	if res.Occurrences != 0 {
		t.Fatalf("Occurrences = %d, want 0", res.Occurrences)
	}
	if res.Texts[0] != "plain text" {
		t.Fatalf("text mutated: %q", res.Texts[0])
	}
}

func TestRoundTrip_CreateThenApply(t *testing.T) {
	// WHAT: create with marker M then apply {name: M} reproduces the
	// original text byte for byte.
	original := []string{"Dear Acme Corp,", "Acme Corp — thank you.", "no markers here"}
	for _, scheme := range AllSchemes() {
		scan, err := ScanMarkers(original, []string{"Acme Corp"}, scheme)
		if err != nil {
			t.Fatal(err)
		}
		sub := Substitute(scan.Texts, scheme, map[string]string{"ACME_CORP": "Acme Corp"}, nil)
		if !reflect.DeepEqual(sub.Texts, original) {
			t.Errorf("%s: round trip = %v, want %v", scheme, sub.Texts, original)
		}
	}
}

func TestCrossSchemeEquivalence(t *testing.T) {
	// WHAT: Templating with mustache vs percent then applying identical
	// values yields identical run text and run count.
	original := []string{"Invoice for Acme Corp", "Total due 2026-09-30"}
	markers := []string{"Acme Corp", "2026-09-30"}
	values := map[string]string{"ACME_CORP": "Globex", "2026_09_30": "2026-12-01"}

	var results [][]string
	for _, scheme := range []Scheme{SchemeMustache, SchemePercent} {
		scan, err := ScanMarkers(original, markers, scheme)
		if err != nil {
			t.Fatal(err)
		}
		sub := Substitute(scan.Texts, scheme, values, nil)
		results = append(results, sub.Texts)
	}
	if !reflect.DeepEqual(results[0], results[1]) {
		t.Fatalf("mustache and percent diverge: %v vs %v", results[0], results[1])
	}
}
