// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdiddy/litwatch/pkg/types"
)

const exportLimit = 100000

// ExportJSON writes the archive to dir/index/export.json. It supports the
// same filters as List.
func (s *Store) ExportJSON(ctx context.Context, opts ListOptions) (string, error) {
	papers, err := s.exportEntries(ctx, opts)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, indexDir, "export.json")
	data, err := json.MarshalIndent(papers, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

// ExportCSV writes the archive to dir/index/export.csv.
func (s *Store) ExportCSV(ctx context.Context, opts ListOptions) (string, error) {
	papers, err := s.exportEntries(ctx, opts)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, indexDir, "export.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"title", "authors", "published", "source", "journal",
		"volume", "issue", "doi", "pmid", "url", "matched_keywords", "relevance_score"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("writing CSV header: %w", err)
	}
	for _, p := range papers {
		row := []string{p.Title, strings.Join(p.Authors, "; "),
			p.Published.Format("2006-01-02"), p.Source, p.Journal,
			p.Volume, p.Issue, p.DOI, p.PMID, p.URL,
			strings.Join(p.MatchedKeywords, "; "),
			strconv.FormatFloat(p.RelevanceScore, 'f', 1, 64)}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("writing CSV row: %w", err)
		}
	}
	w.Flush()
	return path, w.Error()
}

// ExportBibTeX writes the archive to dir/index/export.bib.
func (s *Store) ExportBibTeX(ctx context.Context, opts ListOptions) (string, error) {
	papers, err := s.exportEntries(ctx, opts)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, indexDir, "export.bib")
	var b strings.Builder
	for _, p := range papers {
		writeBibTeXEntry(&b, p)
	}
	return path, os.WriteFile(path, []byte(b.String()), 0o644)
}

func (s *Store) exportEntries(ctx context.Context, opts ListOptions) ([]types.Paper, error) {
	if opts.Limit <= 0 {
		opts.Limit = exportLimit
	}
	papers, err := s.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	return papers, nil
}

// writeBibTeXEntry emits one @article block. Preprints without a journal
// keep the entry type for citation-manager compatibility and carry the
// source in the note field.
func writeBibTeXEntry(b *strings.Builder, p types.Paper) {
	fmt.Fprintf(b, "@article{%s,\n", bibKey(p))
	fmt.Fprintf(b, "  title = {%s},\n", p.Title)
	if len(p.Authors) > 0 {
		fmt.Fprintf(b, "  author = {%s},\n", strings.Join(p.Authors, " and "))
	}
	if p.Journal != "" {
		fmt.Fprintf(b, "  journal = {%s},\n", p.Journal)
	} else {
		fmt.Fprintf(b, "  note = {%s preprint},\n", p.Source)
	}
	if p.Volume != "" {
		fmt.Fprintf(b, "  volume = {%s},\n", p.Volume)
	}
	if p.Issue != "" {
		fmt.Fprintf(b, "  number = {%s},\n", p.Issue)
	}
	if !p.Published.IsZero() {
		fmt.Fprintf(b, "  year = {%d},\n", p.Published.Year())
	}
	if p.DOI != "" {
		fmt.Fprintf(b, "  doi = {%s},\n", p.DOI)
	}
	if p.URL != "" {
		fmt.Fprintf(b, "  url = {%s},\n", p.URL)
	}
	b.WriteString("}\n\n")
}

// bibKey derives a citation key from the first author's last name, the
// year, and the first title word.
func bibKey(p types.Paper) string {
	var parts []string
	if len(p.Authors) > 0 {
		fields := strings.Fields(p.Authors[0])
		if len(fields) > 0 {
			parts = append(parts, fields[len(fields)-1])
		}
	}
	if !p.Published.IsZero() {
		parts = append(parts, strconv.Itoa(p.Published.Year()))
	}
	if fields := strings.Fields(p.Title); len(fields) > 0 {
		parts = append(parts, fields[0])
	}
	key := strings.Join(parts, "")

	var clean strings.Builder
	for _, r := range key {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			clean.WriteRune(r)
		}
	}
	if clean.Len() == 0 {
		return "paper"
	}
	return strings.ToLower(clean.String())
}
