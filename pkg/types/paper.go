// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the litwatch pipeline:
// the normalized Paper record, search modes, and stage configuration.
package types

import "time"

// Source names for the supported bibliographic APIs.
const (
	SourcePubMed  = "pubmed"
	SourceArxiv   = "arxiv"
	SourceBiorxiv = "biorxiv"
	SourceMedrxiv = "medrxiv"
)

// SourceNames lists all supported source names in display order.
var SourceNames = []string{SourcePubMed, SourceArxiv, SourceBiorxiv, SourceMedrxiv}

// Paper is the normalized record every source adapter produces. A Paper is
// immutable once the adapter returns it; only the scorer attaches the derived
// MatchedKeywords and RelevanceScore fields. Papers carry no cross-run
// identity — they are rebuilt on every query.
type Paper struct {
	// Title is the paper title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Abstract is the paper abstract or summary.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Published is the publication or preprint date, normalized to a day.
	// Partial source dates default missing fields to the earliest plausible
	// value; unparseable dates fall back to the fetch time.
	Published time.Time `json:"published" yaml:"published"`

	// Source identifies which adapter produced this record
	// (pubmed, arxiv, biorxiv, medrxiv).
	Source string `json:"source" yaml:"source"`

	// URL is a resolvable link to the paper; empty when the source
	// provides none.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Journal, Volume, and Issue are set by the PubMed adapter only.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`
	Volume  string `json:"volume,omitempty" yaml:"volume,omitempty"`
	Issue   string `json:"issue,omitempty" yaml:"issue,omitempty"`

	// DOI and PMID may be empty depending on the source.
	DOI  string `json:"doi,omitempty" yaml:"doi,omitempty"`
	PMID string `json:"pmid,omitempty" yaml:"pmid,omitempty"`

	// Categories holds source-specific taxonomy tags: MeSH descriptors for
	// PubMed, arXiv categories, bioRxiv subject areas.
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`

	// MatchedKeywords is filled by the scorer with the query keywords found
	// in the paper's searchable text, in query order.
	MatchedKeywords []string `json:"matched_keywords,omitempty" yaml:"matched_keywords,omitempty"`

	// RelevanceScore is filled by the scorer.
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`
}

// SearchMode names a search-depth preset controlling per-source result caps.
type SearchMode string

const (
	ModeBrief    SearchMode = "Brief"
	ModeStandard SearchMode = "Standard"
	ModeExtended SearchMode = "Extended"
)

// ParseSearchMode matches a mode label by case-sensitive prefix, so UI
// labels like "Brief (fast)" still resolve. Unrecognized labels fall back
// to Standard.
func ParseSearchMode(s string) SearchMode {
	for _, m := range []SearchMode{ModeBrief, ModeStandard, ModeExtended} {
		if len(s) >= len(m) && s[:len(m)] == string(m) {
			return m
		}
	}
	return ModeStandard
}

// Cap returns the per-source result cap for this mode. Caps are
// source-dependent: PubMed tolerates deeper fetches than the preprint
// servers in Brief and Standard modes.
func (m SearchMode) Cap(source string) int {
	type caps struct{ brief, standard, extended int }
	c := caps{brief: 500, standard: 1000, extended: 5000}
	if source == SourcePubMed {
		c = caps{brief: 1000, standard: 2500, extended: 5000}
	}
	switch m {
	case ModeBrief:
		return c.brief
	case ModeExtended:
		return c.extended
	default:
		return c.standard
	}
}
