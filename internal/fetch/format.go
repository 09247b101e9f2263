// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/litwatch/pkg/types"
)

// FormatTable writes ranked papers as a human-readable table to w.
func FormatTable(out Output, w io.Writer) {
	if len(out.Papers) == 0 {
		fmt.Fprintln(w, "No results found.")
		for _, e := range out.Errors {
			fmt.Fprintln(w, "  "+e)
		}
		return
	}

	fmt.Fprintf(w, "%-4s  %-56s  %-18s  %-10s  %-6s  %-8s  %s\n",
		"Rank", "Title", "Authors", "Published", "Score", "Source", "Matched")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for i, p := range out.Papers {
		title := p.Title
		if len(title) > 56 {
			title = title[:53] + "..."
		}
		fmt.Fprintf(w, "%-4d  %-56s  %-18s  %-10s  %-6.1f  %-8s  %s\n",
			i+1, title, formatAuthors(p.Authors), p.Published.Format("2006-01-02"),
			p.RelevanceScore, p.Source, strings.Join(p.MatchedKeywords, ","))
	}

	fmt.Fprintf(w, "\n%d results\n", len(out.Papers))
	for _, e := range out.Errors {
		fmt.Fprintln(w, "warning: "+e)
	}
}

// FormatJSON writes ranked papers as indented JSON to w.
func FormatJSON(out Output, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Papers []types.Paper `json:"papers"`
		Errors []string      `json:"errors,omitempty"`
	}{Papers: out.Papers, Errors: out.Errors})
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 18)
	default:
		return truncate(authors[0], 12) + " et al."
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
