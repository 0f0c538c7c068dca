// Package docops holds the document operations that work on whole
// documents rather than templates: creation, reading, search, summaries,
// structure analysis, comparison, merging, splitting and conversion.
//
// Everything goes through the bridge adapter except PDF input, which is
// read-only and handled by the pdfcpu-based reader in pdf.go.
package docops

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hazyhaar/docsmith/bridge"
	"github.com/hazyhaar/docsmith/kit"
)

// ValidationError reports a request rejected before any document was
// touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Service runs document operations over one adapter.
type Service struct {
	adapter bridge.Adapter
	logger  *slog.Logger
	mw      kit.Middleware
}

func New(adapter bridge.Adapter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{adapter: adapter, logger: logger}
}

// readParagraphs returns a document's block-level view. PDF files are
// routed to the read-only pdfcpu reader, one paragraph per page.
func (s *Service) readParagraphs(ctx context.Context, path string) ([]bridge.Paragraph, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		title, pages, err := readPDF(path)
		if err != nil {
			return nil, err
		}
		var paras []bridge.Paragraph
		if title != "" {
			paras = append(paras, bridge.Paragraph{Text: title, Heading: true, Level: 1})
		}
		for _, p := range pages {
			paras = append(paras, bridge.Paragraph{Text: p})
		}
		return paras, nil
	}
	var paras []bridge.Paragraph
	err := bridge.WithDocument(ctx, s.adapter, path, func(doc bridge.Document) error {
		paras = doc.Paragraphs()
		return nil
	})
	return paras, err
}

// --- create ---

// CreateParams describes a new text document.
type CreateParams struct {
	Path       string
	Title      string
	Paragraphs []string
}

// Create writes a fresh document with an optional title heading.
func (s *Service) Create(ctx context.Context, p CreateParams) error {
	if p.Path == "" {
		return &ValidationError{Field: "path", Reason: "must not be empty"}
	}
	format := formatFromPath(p.Path, s.adapter)
	doc, err := s.adapter.Create(ctx, format)
	if err != nil {
		return err
	}
	defer doc.Close()
	if p.Title != "" {
		doc.AppendHeading(p.Title, 1)
	}
	for _, text := range p.Paragraphs {
		doc.AppendParagraph(text)
	}
	if err := doc.SaveAs(p.Path, format); err != nil {
		return err
	}
	s.logger.Info("document created", "path", p.Path, "paragraphs", len(p.Paragraphs))
	return nil
}

// --- read ---

// Read modes.
const (
	ReadText       = "text"
	ReadStructured = "structured"
	ReadMetadata   = "metadata"
)

// ReadResult carries one of the three read views.
type ReadResult struct {
	Path       string             `json:"path"`
	Mode       string             `json:"mode"`
	Text       string             `json:"text,omitempty"`
	Paragraphs []bridge.Paragraph `json:"paragraphs,omitempty"`
	Metadata   *Metadata          `json:"metadata,omitempty"`
}

// Metadata is the summary view of a document's size and shape.
type Metadata struct {
	Paragraphs int `json:"paragraphs"`
	Headings   int `json:"headings"`
	Words      int `json:"words"`
	Characters int `json:"characters"`
}

// Read returns a document as plain text, structured paragraphs, or
// counted metadata.
func (s *Service) Read(ctx context.Context, path, mode string) (*ReadResult, error) {
	if mode == "" {
		mode = ReadText
	}
	paras, err := s.readParagraphs(ctx, path)
	if err != nil {
		return nil, err
	}
	res := &ReadResult{Path: path, Mode: mode}
	switch mode {
	case ReadText:
		res.Text = joinParagraphs(paras)
	case ReadStructured:
		res.Paragraphs = paras
	case ReadMetadata:
		res.Metadata = countMetadata(paras)
	default:
		return nil, &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown read mode %q", mode)}
	}
	return res, nil
}

func joinParagraphs(paras []bridge.Paragraph) string {
	var b strings.Builder
	for i, p := range paras {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// --- search ---

// Search types.
const (
	SearchExact = "exact"
	SearchRegex = "regex"
	SearchFuzzy = "fuzzy"
)

// fuzzyThreshold is the minimum word-overlap ratio for a fuzzy hit.
const fuzzyThreshold = 0.6

// maxFuzzyMatches caps fuzzy results after relevance sorting.
const maxFuzzyMatches = 10

// Match is one search hit.
type Match struct {
	Paragraph int     `json:"paragraph"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
}

// SearchResult lists hits in document order.
type SearchResult struct {
	Path    string  `json:"path"`
	Query   string  `json:"query"`
	Type    string  `json:"type"`
	Matches []Match `json:"matches"`
}

// Search scans a document paragraph by paragraph. Exact matching is a
// case-insensitive substring test; fuzzy matching scores the share of
// query words present in the paragraph, keeps hits at or above 60%, and
// returns the ten most relevant.
func (s *Service) Search(ctx context.Context, path, query, searchType string) (*SearchResult, error) {
	if query == "" {
		return nil, &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if searchType == "" {
		searchType = SearchExact
	}
	var re *regexp.Regexp
	if searchType == SearchRegex {
		var err error
		if re, err = regexp.Compile(query); err != nil {
			return nil, &ValidationError{Field: "query", Reason: fmt.Sprintf("invalid pattern: %v", err)}
		}
	}

	paras, err := s.readParagraphs(ctx, path)
	if err != nil {
		return nil, err
	}
	res := &SearchResult{Path: path, Query: query, Type: searchType}
	for i, p := range paras {
		switch searchType {
		case SearchExact:
			if strings.Contains(strings.ToLower(p.Text), strings.ToLower(query)) {
				res.Matches = append(res.Matches, Match{Paragraph: i, Text: p.Text, Score: 1})
			}
		case SearchRegex:
			if re.MatchString(p.Text) {
				res.Matches = append(res.Matches, Match{Paragraph: i, Text: p.Text, Score: 1})
			}
		case SearchFuzzy:
			if score := wordOverlap(query, p.Text); score >= fuzzyThreshold {
				res.Matches = append(res.Matches, Match{Paragraph: i, Text: p.Text, Score: score})
			}
		default:
			return nil, &ValidationError{Field: "search_type", Reason: fmt.Sprintf("unknown search type %q", searchType)}
		}
	}
	if searchType == SearchFuzzy {
		// Stable sort keeps document order among equal scores.
		sort.SliceStable(res.Matches, func(i, j int) bool {
			return res.Matches[i].Score > res.Matches[j].Score
		})
		if len(res.Matches) > maxFuzzyMatches {
			res.Matches = res.Matches[:maxFuzzyMatches]
		}
	}
	return res, nil
}

// wordOverlap is the fraction of query words that appear in text,
// case-insensitive.
func wordOverlap(query, text string) float64 {
	qWords := strings.Fields(strings.ToLower(query))
	if len(qWords) == 0 {
		return 0
	}
	tWords := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		tWords[strings.Trim(w, ".,;:!?()\"'")] = true
	}
	hits := 0
	for _, w := range qWords {
		if tWords[strings.Trim(w, ".,;:!?()\"'")] {
			hits++
		}
	}
	return float64(hits) / float64(len(qWords))
}

// --- summary ---

// Summary types.
const (
	SummaryBrief    = "brief"
	SummaryDetailed = "detailed"
	SummaryBullets  = "bullet_points"
)

// SummaryResult is a condensed rendering of a document.
type SummaryResult struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Summary string `json:"summary"`
}

// Summarize condenses a document. Brief keeps the first few sentences,
// detailed walks headings with their leading sentence, bullet_points
// lists one line per paragraph. maxLength caps the result in characters
// (0 means no cap), cut at a word boundary.
func (s *Service) Summarize(ctx context.Context, path, summaryType string, maxLength int) (*SummaryResult, error) {
	if summaryType == "" {
		summaryType = SummaryBrief
	}
	if maxLength < 0 {
		return nil, &ValidationError{Field: "max_length", Reason: "must not be negative"}
	}
	paras, err := s.readParagraphs(ctx, path)
	if err != nil {
		return nil, err
	}
	res := &SummaryResult{Path: path, Type: summaryType}
	switch summaryType {
	case SummaryBrief:
		res.Summary = briefSummary(paras, 3)
	case SummaryDetailed:
		res.Summary = detailedSummary(paras)
	case SummaryBullets:
		res.Summary = bulletSummary(paras, 10)
	default:
		return nil, &ValidationError{Field: "summary_type", Reason: fmt.Sprintf("unknown summary type %q", summaryType)}
	}
	if maxLength > 0 {
		res.Summary = truncateAtWord(res.Summary, maxLength)
	}
	return res, nil
}

// truncateAtWord cuts s to at most max runes, backing up to the last
// whitespace so no word is split, and marks the cut with an ellipsis.
func truncateAtWord(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := string(runes[:max])
	if i := strings.LastIndexAny(cut, " \t\n"); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \t\n") + "..."
}

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

func firstSentence(text string) string {
	if loc := sentenceEnd.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[:loc[0]+1])
	}
	return strings.TrimSpace(text)
}

func briefSummary(paras []bridge.Paragraph, maxSentences int) string {
	var out []string
	for _, p := range paras {
		if p.Heading || strings.TrimSpace(p.Text) == "" {
			continue
		}
		out = append(out, firstSentence(p.Text))
		if len(out) >= maxSentences {
			break
		}
	}
	return strings.Join(out, " ")
}

func detailedSummary(paras []bridge.Paragraph) string {
	var b strings.Builder
	for i, p := range paras {
		if p.Heading {
			fmt.Fprintf(&b, "%s%s\n", strings.Repeat("  ", p.Level-1), p.Text)
			// First body paragraph under the heading, condensed.
			for j := i + 1; j < len(paras) && !paras[j].Heading; j++ {
				if strings.TrimSpace(paras[j].Text) != "" {
					fmt.Fprintf(&b, "%s%s\n", strings.Repeat("  ", p.Level), firstSentence(paras[j].Text))
					break
				}
			}
		}
	}
	if b.Len() == 0 {
		return briefSummary(paras, 5)
	}
	return strings.TrimRight(b.String(), "\n")
}

func bulletSummary(paras []bridge.Paragraph, max int) string {
	var out []string
	for _, p := range paras {
		if p.Heading || strings.TrimSpace(p.Text) == "" {
			continue
		}
		out = append(out, "- "+firstSentence(p.Text))
		if len(out) >= max {
			break
		}
	}
	return strings.Join(out, "\n")
}

// --- structure ---

// HeadingNode is one heading with its position.
type HeadingNode struct {
	Text      string `json:"text"`
	Level     int    `json:"level"`
	Paragraph int    `json:"paragraph"`
}

// Analysis depths.
const (
	DepthBasic         = "basic"
	DepthDetailed      = "detailed"
	DepthComprehensive = "comprehensive"
)

// ContentProfile classifies a document's prose by crude lexical signals.
type ContentProfile struct {
	// TechnicalScore is the share of words carrying digits, symbols or
	// acronym casing (0..1).
	TechnicalScore float64 `json:"technical_score"`
	// NarrativeScore is the share of personal pronouns (0..1).
	NarrativeScore float64 `json:"narrative_score"`
	Classification string  `json:"classification"` // technical | narrative | mixed
}

// StructureResult describes the document's outline and bulk.
type StructureResult struct {
	Path              string          `json:"path"`
	Depth             string          `json:"depth"`
	Headings          []HeadingNode   `json:"headings,omitempty"`
	HeadingsPerLevel  map[int]int     `json:"headings_per_level"`
	Paragraphs        int             `json:"paragraphs"`
	Words             int             `json:"words"`
	AvgParagraphWords float64         `json:"avg_paragraph_words"`
	Profile           *ContentProfile `json:"profile,omitempty"`
}

// AnalyzeStructure extracts size statistics; detailed adds the heading
// outline, comprehensive additionally profiles the prose.
func (s *Service) AnalyzeStructure(ctx context.Context, path, depth string) (*StructureResult, error) {
	if depth == "" {
		depth = DepthDetailed
	}
	switch depth {
	case DepthBasic, DepthDetailed, DepthComprehensive:
	default:
		return nil, &ValidationError{Field: "analysis_depth", Reason: fmt.Sprintf("unknown depth %q", depth)}
	}
	paras, err := s.readParagraphs(ctx, path)
	if err != nil {
		return nil, err
	}
	res := &StructureResult{Path: path, Depth: depth, HeadingsPerLevel: map[int]int{}}
	bodyParas, bodyWords := 0, 0
	for i, p := range paras {
		words := len(strings.Fields(p.Text))
		res.Words += words
		if p.Heading {
			if depth != DepthBasic {
				res.Headings = append(res.Headings, HeadingNode{Text: p.Text, Level: p.Level, Paragraph: i})
			}
			res.HeadingsPerLevel[p.Level]++
			continue
		}
		bodyParas++
		bodyWords += words
	}
	res.Paragraphs = bodyParas
	if bodyParas > 0 {
		res.AvgParagraphWords = float64(bodyWords) / float64(bodyParas)
	}
	if depth == DepthComprehensive {
		res.Profile = profileContent(paras)
	}
	return res, nil
}

var pronouns = map[string]bool{
	"i": true, "we": true, "you": true, "he": true, "she": true,
	"they": true, "me": true, "us": true, "him": true, "her": true,
	"them": true, "my": true, "our": true, "your": true, "his": true,
	"their": true,
}

func profileContent(paras []bridge.Paragraph) *ContentProfile {
	total, technical, narrative := 0, 0, 0
	for _, p := range paras {
		if p.Heading {
			continue
		}
		for _, w := range strings.Fields(p.Text) {
			total++
			trimmed := strings.Trim(w, ".,;:!?()\"'")
			if isTechnicalWord(trimmed) {
				technical++
			}
			if pronouns[strings.ToLower(trimmed)] {
				narrative++
			}
		}
	}
	prof := &ContentProfile{}
	if total > 0 {
		prof.TechnicalScore = float64(technical) / float64(total)
		prof.NarrativeScore = float64(narrative) / float64(total)
	}
	switch {
	case prof.TechnicalScore > prof.NarrativeScore:
		prof.Classification = "technical"
	case prof.NarrativeScore > prof.TechnicalScore:
		prof.Classification = "narrative"
	default:
		prof.Classification = "mixed"
	}
	return prof
}

// isTechnicalWord flags digits, symbol-bearing tokens and acronyms.
func isTechnicalWord(w string) bool {
	if w == "" {
		return false
	}
	upper := 0
	for _, r := range w {
		switch {
		case r >= '0' && r <= '9', r == '%', r == '/', r == '=':
			return true
		case r >= 'A' && r <= 'Z':
			upper++
		}
	}
	return upper > 1 && upper == len(w)
}

// --- compare ---

// Comparison types.
const (
	CompareContent       = "content"
	CompareStructure     = "structure"
	CompareMetadata      = "metadata"
	CompareComprehensive = "comprehensive"
)

// StructureDiff compares the two heading outlines.
type StructureDiff struct {
	Headings1      int  `json:"headings1"`
	Headings2      int  `json:"headings2"`
	SharedHeadings int  `json:"shared_headings"`
	SameOutline    bool `json:"same_outline"`
}

// CompareResult reports differences between two documents. Content fields
// are filled for content and comprehensive comparisons; Structure and
// Metadata for their respective types.
type CompareResult struct {
	Path1      string   `json:"path1"`
	Path2      string   `json:"path2"`
	Type       string   `json:"type"`
	Common     int      `json:"common"`
	OnlyFirst  []string `json:"only_first,omitempty"`
	OnlySecond []string `json:"only_second,omitempty"`
	// Similarity is the word-set overlap of the two full texts, 0..1.
	Similarity float64        `json:"similarity"`
	Structure  *StructureDiff `json:"structure,omitempty"`
	Metadata1  *Metadata      `json:"metadata1,omitempty"`
	Metadata2  *Metadata      `json:"metadata2,omitempty"`
}

// Compare diffs two documents. Content diffs at paragraph granularity and
// scores overall word overlap; structure compares heading outlines;
// metadata compares size counts; comprehensive does all three.
func (s *Service) Compare(ctx context.Context, path1, path2, compareType string) (*CompareResult, error) {
	if compareType == "" {
		compareType = CompareContent
	}
	switch compareType {
	case CompareContent, CompareStructure, CompareMetadata, CompareComprehensive:
	default:
		return nil, &ValidationError{Field: "comparison_type", Reason: fmt.Sprintf("unknown comparison type %q", compareType)}
	}
	p1, err := s.readParagraphs(ctx, path1)
	if err != nil {
		return nil, err
	}
	p2, err := s.readParagraphs(ctx, path2)
	if err != nil {
		return nil, err
	}
	res := &CompareResult{Path1: path1, Path2: path2, Type: compareType}

	if compareType == CompareContent || compareType == CompareComprehensive {
		set1 := paragraphSet(p1)
		set2 := paragraphSet(p2)
		for text := range set1 {
			if set2[text] {
				res.Common++
			} else {
				res.OnlyFirst = append(res.OnlyFirst, text)
			}
		}
		for text := range set2 {
			if !set1[text] {
				res.OnlySecond = append(res.OnlySecond, text)
			}
		}
		sort.Strings(res.OnlyFirst)
		sort.Strings(res.OnlySecond)
		res.Similarity = textSimilarity(joinParagraphs(p1), joinParagraphs(p2))
	}
	if compareType == CompareStructure || compareType == CompareComprehensive {
		res.Structure = diffStructure(p1, p2)
	}
	if compareType == CompareMetadata || compareType == CompareComprehensive {
		res.Metadata1 = countMetadata(p1)
		res.Metadata2 = countMetadata(p2)
	}
	return res, nil
}

func diffStructure(p1, p2 []bridge.Paragraph) *StructureDiff {
	o1 := outline(p1)
	o2 := outline(p2)
	d := &StructureDiff{Headings1: len(o1), Headings2: len(o2)}
	seen := map[string]bool{}
	for _, h := range o1 {
		seen[h] = true
	}
	for _, h := range o2 {
		if seen[h] {
			d.SharedHeadings++
		}
	}
	d.SameOutline = len(o1) == len(o2) && d.SharedHeadings == len(o1)
	return d
}

// outline renders each heading as "level:text" so level changes count as
// structural differences.
func outline(paras []bridge.Paragraph) []string {
	var out []string
	for _, p := range paras {
		if p.Heading {
			out = append(out, fmt.Sprintf("%d:%s", p.Level, p.Text))
		}
	}
	return out
}

func countMetadata(paras []bridge.Paragraph) *Metadata {
	md := &Metadata{Paragraphs: len(paras)}
	for _, p := range paras {
		if p.Heading {
			md.Headings++
		}
		md.Words += len(strings.Fields(p.Text))
		md.Characters += len([]rune(p.Text))
	}
	return md
}

func paragraphSet(paras []bridge.Paragraph) map[string]bool {
	set := map[string]bool{}
	for _, p := range paras {
		if t := strings.TrimSpace(p.Text); t != "" {
			set[t] = true
		}
	}
	return set
}

// textSimilarity is the Jaccard index of the two texts' word sets.
func textSimilarity(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 && len(wb) == 0 {
		return 1
	}
	inter := 0
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func wordSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[strings.Trim(w, ".,;:!?()\"'")] = true
	}
	return set
}

// formatFromPath derives a save format from a path extension, falling
// back to the adapter's first supported format.
func formatFromPath(path string, a bridge.Adapter) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); ext != "" {
		return ext
	}
	if formats := a.Formats(); len(formats) > 0 {
		return formats[0]
	}
	return "odt"
}
