package docops

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/docsmith/bridge"
)

// Merge strategies.
const (
	MergeSequential  = "sequential"
	MergeInterleaved = "interleaved"
	MergeSmart       = "smart"
)

// MergeParams describes a merge of two or more documents.
type MergeParams struct {
	Paths      []string
	OutputPath string
	// Strategy: sequential appends documents one after another under
	// their source headings; interleaved round-robins paragraphs; smart
	// appends sequentially while dropping paragraphs already merged.
	Strategy string
}

// MergeResult reports what went into the output.
type MergeResult struct {
	OutputPath string `json:"output_path"`
	Strategy   string `json:"strategy"`
	Sources    int    `json:"sources"`
	Paragraphs int    `json:"paragraphs"`
	Dropped    int    `json:"dropped,omitempty"`
}

// Merge combines documents into one.
func (s *Service) Merge(ctx context.Context, p MergeParams) (*MergeResult, error) {
	if len(p.Paths) < 2 {
		return nil, &ValidationError{Field: "paths", Reason: "merge needs at least two documents"}
	}
	if p.OutputPath == "" {
		return nil, &ValidationError{Field: "output_path", Reason: "must not be empty"}
	}
	strategy := p.Strategy
	if strategy == "" {
		strategy = MergeSequential
	}
	switch strategy {
	case MergeSequential, MergeInterleaved, MergeSmart:
	default:
		return nil, &ValidationError{Field: "strategy", Reason: fmt.Sprintf("unknown merge strategy %q", strategy)}
	}

	sources := make([][]bridge.Paragraph, len(p.Paths))
	for i, path := range p.Paths {
		paras, err := s.readParagraphs(ctx, path)
		if err != nil {
			return nil, err
		}
		sources[i] = paras
	}

	format := formatFromPath(p.OutputPath, s.adapter)
	out, err := s.adapter.Create(ctx, format)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	res := &MergeResult{OutputPath: p.OutputPath, Strategy: strategy, Sources: len(p.Paths)}
	appendPara := func(para bridge.Paragraph) {
		if para.Heading {
			out.AppendHeading(para.Text, para.Level)
		} else {
			out.AppendParagraph(para.Text)
		}
		res.Paragraphs++
	}

	switch strategy {
	case MergeSequential:
		for i, paras := range sources {
			out.AppendHeading(sourceTitle(p.Paths[i]), 1)
			res.Paragraphs++
			for _, para := range paras {
				appendPara(para)
			}
		}
	case MergeInterleaved:
		for round := 0; ; round++ {
			any := false
			for _, paras := range sources {
				if round < len(paras) {
					appendPara(paras[round])
					any = true
				}
			}
			if !any {
				break
			}
		}
	case MergeSmart:
		seen := map[string]bool{}
		for i, paras := range sources {
			out.AppendHeading(sourceTitle(p.Paths[i]), 1)
			res.Paragraphs++
			for _, para := range paras {
				key := strings.TrimSpace(para.Text)
				if key != "" && seen[key] {
					res.Dropped++
					continue
				}
				seen[key] = true
				appendPara(para)
			}
		}
	}

	if err := out.SaveAs(p.OutputPath, format); err != nil {
		return nil, err
	}
	s.logger.Info("documents merged",
		"output", p.OutputPath, "strategy", strategy, "sources", res.Sources, "dropped", res.Dropped)
	return res, nil
}

// sourceTitle turns a path into a section heading for merged output.
func sourceTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Split methods.
const (
	SplitByHeadings = "by_headings"
	SplitBySections = "by_sections"
	SplitBySize     = "by_size"
	SplitByPages    = "by_pages"
)

// SplitParams describes cutting one document into parts.
type SplitParams struct {
	Path      string
	OutputDir string
	// Method: by_headings cuts at level-1 headings, by_sections at any
	// heading, by_size after MaxChars of body text, by_pages per PDF page.
	Method string
	// MaxChars bounds each part for by_size (default 4000).
	MaxChars int
}

// SplitResult lists the written parts.
type SplitResult struct {
	Path   string   `json:"path"`
	Method string   `json:"method"`
	Parts  []string `json:"parts"`
}

// Split cuts a document into numbered part files in OutputDir, keeping
// the source format (PDF parts are written as plain text).
func (s *Service) Split(ctx context.Context, p SplitParams) (*SplitResult, error) {
	if p.OutputDir == "" {
		return nil, &ValidationError{Field: "output_dir", Reason: "must not be empty"}
	}
	method := p.Method
	if method == "" {
		method = SplitByHeadings
	}
	maxChars := p.MaxChars
	if maxChars <= 0 {
		maxChars = 4000
	}

	isPDF := strings.EqualFold(filepath.Ext(p.Path), ".pdf")
	if method == SplitByPages && !isPDF {
		return nil, &ValidationError{Field: "method", Reason: "by_pages splitting needs a PDF source"}
	}

	paras, err := s.readParagraphs(ctx, p.Path)
	if err != nil {
		return nil, err
	}

	var groups [][]bridge.Paragraph
	switch method {
	case SplitByHeadings:
		groups = groupAtHeadings(paras, 1)
	case SplitBySections:
		groups = groupAtHeadings(paras, 0)
	case SplitBySize:
		groups = groupBySize(paras, maxChars)
	case SplitByPages:
		// The PDF reader yields one paragraph per page already.
		for _, para := range paras {
			if para.Heading {
				continue
			}
			groups = append(groups, []bridge.Paragraph{para})
		}
	default:
		return nil, &ValidationError{Field: "method", Reason: fmt.Sprintf("unknown split method %q", method)}
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("nothing to split in %s", p.Path)
	}

	format := formatFromPath(p.Path, s.adapter)
	if isPDF {
		format = "txt"
	}
	base := sourceTitle(p.Path)
	res := &SplitResult{Path: p.Path, Method: method}
	for i, group := range groups {
		part := filepath.Join(p.OutputDir, fmt.Sprintf("%s-%03d.%s", base, i+1, format))
		doc, err := s.adapter.Create(ctx, format)
		if err != nil {
			return nil, err
		}
		for _, para := range group {
			if para.Heading {
				doc.AppendHeading(para.Text, para.Level)
			} else {
				doc.AppendParagraph(para.Text)
			}
		}
		err = doc.SaveAs(part, format)
		doc.Close()
		if err != nil {
			return nil, err
		}
		res.Parts = append(res.Parts, part)
	}
	s.logger.Info("document split", "path", p.Path, "method", method, "parts", len(res.Parts))
	return res, nil
}

// groupAtHeadings starts a new group at each heading of the given level
// (0 means any). Leading body text before the first heading forms its
// own group.
func groupAtHeadings(paras []bridge.Paragraph, level int) [][]bridge.Paragraph {
	var groups [][]bridge.Paragraph
	var cur []bridge.Paragraph
	for _, p := range paras {
		cut := p.Heading && (level == 0 || p.Level == level)
		if cut && len(cur) > 0 {
			groups = append(groups, cur)
			cur = nil
		}
		cur = append(cur, p)
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

func groupBySize(paras []bridge.Paragraph, maxChars int) [][]bridge.Paragraph {
	var groups [][]bridge.Paragraph
	var cur []bridge.Paragraph
	size := 0
	for _, p := range paras {
		n := len([]rune(p.Text))
		if size > 0 && size+n > maxChars {
			groups = append(groups, cur)
			cur, size = nil, 0
		}
		cur = append(cur, p)
		size += n
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// Convert rewrites a document in another format. PDF input converts to
// plain text only; the output format comes from the output extension.
func (s *Service) Convert(ctx context.Context, path, outputPath string) error {
	if outputPath == "" {
		return &ValidationError{Field: "output_path", Reason: "must not be empty"}
	}
	outFormat := formatFromPath(outputPath, s.adapter)

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		if outFormat != "txt" {
			return &ValidationError{Field: "format", Reason: fmt.Sprintf("pdf input can only convert to txt, not %q", outFormat)}
		}
		paras, err := s.readParagraphs(ctx, path)
		if err != nil {
			return err
		}
		doc, err := s.adapter.Create(ctx, outFormat)
		if err != nil {
			return err
		}
		defer doc.Close()
		for _, para := range paras {
			doc.AppendParagraph(para.Text)
		}
		return doc.SaveAs(outputPath, outFormat)
	}

	err := bridge.WithDocument(ctx, s.adapter, path, func(doc bridge.Document) error {
		return doc.SaveAs(outputPath, outFormat)
	})
	if err != nil {
		return err
	}
	s.logger.Info("document converted", "from", path, "to", outputPath, "format", outFormat)
	return nil
}
