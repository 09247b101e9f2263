// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"strconv"
	"strings"

	"github.com/pdiddy/litwatch/pkg/types"
)

// MatchType classifies a journal name against the target pattern lists.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchFamily   MatchType = "family"
	MatchSpecific MatchType = "specific"
	MatchNone     MatchType = "none"
)

// Classify determines the match type for a journal name. Exclusion
// substrings always win over target-list membership. The remaining tiers
// are checked in priority order: exact (trimmed equality), family (prefix;
// patterns usually carry a trailing space so "nature " does not match
// "naturejournal"), then specific (substring). An empty name is never a
// match.
func Classify(journal string, exclusions []string, targets types.TargetJournals) MatchType {
	name := strings.ToLower(strings.TrimSpace(journal))
	if name == "" {
		return MatchNone
	}

	for _, excl := range exclusions {
		excl = strings.ToLower(strings.TrimSpace(excl))
		if excl != "" && strings.Contains(name, excl) {
			return MatchNone
		}
	}

	for _, exact := range targets.ExactMatches {
		if name == strings.ToLower(strings.TrimSpace(exact)) {
			return MatchExact
		}
	}

	for _, family := range targets.FamilyMatches {
		pattern := strings.ToLower(family)
		if pattern != "" && strings.HasPrefix(name, pattern) {
			return MatchFamily
		}
	}

	for _, specific := range targets.SpecificJournals {
		pattern := strings.ToLower(strings.TrimSpace(specific))
		if pattern != "" && strings.Contains(name, pattern) {
			return MatchSpecific
		}
	}

	return MatchNone
}

// JournalBoost computes the additive journal-quality boost for a scored
// paper: a base boost keyed by match specificity plus a second boost keyed
// by the matched-keyword count bucket. It applies only to PubMed papers
// with a non-empty journal, and only when journal scoring is enabled.
func JournalBoost(p types.Paper, matchedCount int, cfg types.ScoringConfig) float64 {
	if !cfg.Journal.Enabled || p.Source != types.SourcePubMed || strings.TrimSpace(p.Journal) == "" {
		return 0
	}

	mt := Classify(p.Journal, cfg.JournalExclusions, cfg.Targets)
	if mt == MatchNone {
		return 0
	}

	boost := cfg.Journal.MatchTypeBoost[string(mt)]
	if matchedCount > 0 {
		bucket := matchedCount
		if bucket > 5 {
			bucket = 5
		}
		boost += cfg.Journal.KeywordCountBoost[strconv.Itoa(bucket)]
	}
	return boost
}
