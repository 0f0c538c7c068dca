// Package placeholder locates literal marker text in a document's ordered
// run texts and rewrites it as delimited placeholder tokens, and performs
// the inverse substitution of tokens with caller-supplied values.
//
// The package operates on plain run texts. Callers write the updated text
// back through their document adapter run by run, which is what keeps every
// run's style handle untouched across both directions.
//
// Matching guarantees:
//   - case-sensitive, leftmost-first, non-overlapping
//   - spans already shaped like a token of the active scheme are opaque:
//     they are never matched as new marker text, which makes the
//     create-direction scan idempotent
package placeholder

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Location pinpoints one marker occurrence.
type Location struct {
	Run    int `json:"run"`
	Offset int `json:"offset"` // byte offset in the run's pre-scan text
}

// MarkerResult reports what happened to a single marker.
type MarkerResult struct {
	Marker    string     `json:"marker"`
	Name      string     `json:"name"`
	Count     int        `json:"count"`
	Locations []Location `json:"locations,omitempty"`
}

// ScanResult is the outcome of a create-direction scan.
type ScanResult struct {
	Texts     []string       `json:"-"` // updated run texts, same length and order as input
	Markers   []MarkerResult `json:"markers"`
	Unmatched []string       `json:"unmatched,omitempty"`
	Replaced  int            `json:"replaced"` // total replacements across all markers
}

// segment is a piece of one run's text. Locked segments are placeholder
// tokens (pre-existing or freshly written) and are opaque to marker matching.
type segment struct {
	text    string
	locked  bool
	origOff int // offset of the segment's first byte in the run's original text
}

// ScanMarkers replaces every occurrence of each marker with the wrapped
// placeholder token derived from it. Markers are processed in caller order;
// a span consumed by one match is never re-matched by a later marker.
// Markers with zero occurrences are reported in Unmatched, not failed.
func ScanMarkers(texts []string, markers []string, scheme Scheme) (*ScanResult, error) {
	if len(markers) == 0 {
		return nil, errors.New("placeholder: empty marker list")
	}
	for _, m := range markers {
		if m == "" {
			return nil, errors.New("placeholder: empty marker string")
		}
	}

	re := scheme.pattern()
	runs := make([][]segment, len(texts))
	for i, t := range texts {
		runs[i] = lockTokens(t, re)
	}

	names := assignNames(markers)
	res := &ScanResult{}
	for mi, marker := range markers {
		mr := MarkerResult{Marker: marker, Name: names[mi]}
		token := scheme.Wrap(names[mi])
		for ri := range runs {
			runs[ri] = replaceInRun(runs[ri], marker, token, ri, &mr)
		}
		if mr.Count == 0 {
			res.Unmatched = append(res.Unmatched, marker)
		}
		res.Replaced += mr.Count
		res.Markers = append(res.Markers, mr)
	}

	out := make([]string, len(texts))
	for i, segs := range runs {
		var b strings.Builder
		for _, s := range segs {
			b.WriteString(s.text)
		}
		out[i] = b.String()
	}
	res.Texts = out
	return res, nil
}

// lockTokens splits a run's text into segments, marking spans that already
// match the scheme's token syntax as locked.
func lockTokens(text string, re *regexp.Regexp) []segment {
	var segs []segment
	last := 0
	for _, m := range re.FindAllStringIndex(text, -1) {
		if m[0] > last {
			segs = append(segs, segment{text: text[last:m[0]], origOff: last})
		}
		segs = append(segs, segment{text: text[m[0]:m[1]], locked: true, origOff: m[0]})
		last = m[1]
	}
	if last < len(text) {
		segs = append(segs, segment{text: text[last:], origOff: last})
	}
	return segs
}

// replaceInRun rewrites marker occurrences inside unlocked segments,
// leftmost-first, locking each replacement.
func replaceInRun(segs []segment, marker, token string, runIdx int, mr *MarkerResult) []segment {
	var out []segment
	for _, seg := range segs {
		if seg.locked {
			out = append(out, seg)
			continue
		}
		text, off := seg.text, seg.origOff
		for {
			i := strings.Index(text, marker)
			if i < 0 {
				if text != "" {
					out = append(out, segment{text: text, origOff: off})
				}
				break
			}
			if i > 0 {
				out = append(out, segment{text: text[:i], origOff: off})
			}
			out = append(out, segment{text: token, locked: true, origOff: off + i})
			mr.Count++
			mr.Locations = append(mr.Locations, Location{Run: runIdx, Offset: off + i})
			text = text[i+len(marker):]
			off += i + len(marker)
		}
	}
	return out
}

// assignNames derives a unique placeholder name for each marker. Distinct
// markers that sanitize to the same name get a numeric suffix, so names
// stay unique within one template.
func assignNames(markers []string) []string {
	names := make([]string, len(markers))
	used := make(map[string]bool, len(markers))
	for i, m := range markers {
		base := DeriveName(m, i+1)
		name := base
		for n := 2; used[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

// Token is one placeholder occurrence found in a document.
type Token struct {
	Scheme Scheme `json:"scheme"`
	Name   string `json:"name"`
	Run    int    `json:"run"`
}

// Inventory lists every token of the given scheme, in document order.
func Inventory(texts []string, scheme Scheme) []Token {
	re := scheme.pattern()
	var tokens []Token
	for ri, t := range texts {
		for _, m := range re.FindAllStringSubmatch(t, -1) {
			tokens = append(tokens, Token{Scheme: scheme, Name: m[1], Run: ri})
		}
	}
	return tokens
}

// InventoryAll lists tokens of every scheme. The three token syntaxes are
// mutually exclusive, so no span is reported twice.
func InventoryAll(texts []string) []Token {
	var tokens []Token
	for _, s := range AllSchemes() {
		tokens = append(tokens, Inventory(texts, s)...)
	}
	return tokens
}

// String implements fmt.Stringer for diagnostics.
func (t Token) String() string {
	return fmt.Sprintf("%s@run%d", t.Scheme.Wrap(t.Name), t.Run)
}
