// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by the source adapters.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "litwatch/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// FetchConfig holds settings for the fetch stage.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Sources enables or disables individual source adapters, keyed by
	// source name (pubmed, arxiv, biorxiv, medrxiv).
	Sources map[string]bool `json:"sources" yaml:"sources"`

	// Mode selects the search-depth preset (Brief, Standard, Extended).
	Mode SearchMode `json:"mode" yaml:"mode"`

	// NCBIAPIKey raises the PubMed rate allowance from 3 to 10 req/s.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty"`

	// ContactEmail is sent to APIs that ask for a contact address.
	ContactEmail string `json:"contact_email,omitempty" yaml:"contact_email,omitempty"`

	// ScoreWorkers bounds the per-paper scoring fan-out (default 8).
	ScoreWorkers int `json:"score_workers" yaml:"score_workers"`
}

// KeywordTier groups keywords that share a score multiplier.
type KeywordTier struct {
	// Keywords belonging to this tier, matched case-insensitively.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// Boost multiplies every score contribution of a tier keyword.
	Boost float64 `json:"boost" yaml:"boost"`
}

// JournalScoring controls the journal-quality boost applied to PubMed papers.
type JournalScoring struct {
	// Enabled turns journal boosting on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MatchTypeBoost is the base boost per journal match type
	// (exact, family, specific).
	MatchTypeBoost map[string]float64 `json:"match_type_boost" yaml:"match_type_boost"`

	// KeywordCountBoost maps a matched-keyword-count bucket ("5", "4", "3",
	// "2", "1") to an additive boost. The "5" bucket applies to five or
	// more matches.
	KeywordCountBoost map[string]float64 `json:"keyword_count_boost" yaml:"keyword_count_boost"`
}

// TargetJournals lists the journal patterns that qualify for boosting, in
// decreasing specificity.
type TargetJournals struct {
	// ExactMatches are compared by trimmed, case-insensitive equality.
	ExactMatches []string `json:"exact_matches" yaml:"exact_matches"`

	// FamilyMatches are prefix patterns; a trailing space in the pattern
	// keeps "nature " from matching "naturejournal".
	FamilyMatches []string `json:"family_matches" yaml:"family_matches"`

	// SpecificJournals are substring patterns.
	SpecificJournals []string `json:"specific_journals" yaml:"specific_journals"`
}

// ScoringConfig is the interest profile consumed by the scorer and the
// journal classifier. It is supplied by the caller as plain data; neither
// component reads or writes persistent storage.
type ScoringConfig struct {
	// KeywordTiers maps a tier name (e.g. "high", "medium") to its
	// keywords and boost.
	KeywordTiers map[string]KeywordTier `json:"keyword_scoring" yaml:"keyword_scoring"`

	// Journal controls journal-quality boosting.
	Journal JournalScoring `json:"journal_scoring" yaml:"journal_scoring"`

	// Targets lists the journals that qualify for boosting.
	Targets TargetJournals `json:"target_journals" yaml:"target_journals"`

	// JournalExclusions are substrings that veto a journal match
	// regardless of target-list membership.
	JournalExclusions []string `json:"journal_exclusions" yaml:"journal_exclusions"`
}

// ArchiveConfig holds settings for the archive store.
type ArchiveConfig struct {
	// Dir is the base directory for the archive database (contains index/).
	Dir string `json:"dir" yaml:"dir"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Fetch   FetchConfig   `json:"fetch" yaml:"fetch"`
	Scoring ScoringConfig `json:"scoring" yaml:"scoring"`
	Archive ArchiveConfig `json:"archive" yaml:"archive"`
}
