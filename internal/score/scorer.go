// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package score computes a deterministic relevance score for a paper
// against a keyword interest profile, and classifies journal names for
// quality boosting.
package score

import (
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/pdiddy/litwatch/pkg/types"
)

// highValueKeywords get a flat bonus per match.
var highValueKeywords = map[string]bool{"pet": true, "mri": true}

// Scorer scores papers against keyword sets. The zero-value Scorer is not
// usable; NewScorer wires the compiled-pattern cache and the memo cache.
// Both caches are owned by the instance — nothing is shared across
// unrelated Scorers. Score is a pure function of its inputs; the caches
// only matter for repeated queries in a long-lived process.
type Scorer struct {
	memo *gocache.Cache

	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
}

// NewScorer creates a Scorer with an hour-long memo TTL.
func NewScorer() *Scorer {
	return &Scorer{
		memo:     gocache.New(1*time.Hour, 10*time.Minute),
		patterns: make(map[string]*regexp.Regexp),
	}
}

// scored is the memoized result pair.
type scored struct {
	score   float64
	matched []string
}

// Score computes the relevance score and the matched keywords for one
// paper. Matched keywords preserve the input keyword order. A paper whose
// searchable text contains none of the keywords scores exactly 0.0.
//
// Per matched keyword the score accumulates: a base contribution of
// 1.0 x tier boost, an occurrence bonus of min(count-1, 2) x boost, a
// title bonus of 1.0 x boost scaled by 0.2 in the final sum, and a flat
// 0.5 x boost for the fixed high-value set. The result is rounded to one
// decimal.
func (s *Scorer) Score(p types.Paper, keywords []string, cfg types.ScoringConfig) (float64, []string) {
	key := memoKey(p, keywords, cfg)
	if v, ok := s.memo.Get(key); ok {
		r := v.(scored)
		return r.score, append([]string(nil), r.matched...)
	}

	// Title repeated three times weights title matches in the blob;
	// the separate title text drives the explicit title bonus.
	title := strings.ToLower(p.Title)
	blob := strings.Join([]string{
		title, title, title,
		strings.ToLower(p.Abstract),
		strings.ToLower(strings.Join(p.Authors, " ")),
		strings.ToLower(strings.Join(p.Categories, " ")),
	}, " ")

	var base, occBonus, titleBonus, kwBonus float64
	var matched []string

	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		folded := strings.ToLower(kw)

		count := s.countOccurrences(blob, folded)
		if count == 0 {
			continue
		}
		matched = append(matched, kw)

		boost := tierBoost(folded, cfg)
		base += 1.0 * boost
		occBonus += math.Min(float64(count-1), 2) * boost
		if s.countOccurrences(title, folded) > 0 {
			titleBonus += 1.0 * boost
		}
		if highValueKeywords[folded] {
			kwBonus += 0.5 * boost
		}
	}

	var score float64
	if len(matched) > 0 {
		score = math.Round((base+occBonus+0.2*titleBonus+kwBonus)*10) / 10
	}

	s.memo.Set(key, scored{score: score, matched: matched}, gocache.DefaultExpiration)
	return score, append([]string(nil), matched...)
}

// countOccurrences counts keyword hits in folded text. Single words use
// whole-word boundary matching; multi-word phrases match literally, with a
// plain substring fallback when the boundary pattern yields zero so
// punctuation adjacency cannot defeat a phrase.
func (s *Scorer) countOccurrences(text, keyword string) int {
	re := s.pattern(keyword)
	n := len(re.FindAllStringIndex(text, -1))
	if n == 0 && strings.ContainsRune(keyword, ' ') {
		n = strings.Count(text, keyword)
	}
	return n
}

// pattern returns the compiled boundary pattern for a keyword, building it
// on first use.
func (s *Scorer) pattern(keyword string) *regexp.Regexp {
	s.mu.RLock()
	re, ok := s.patterns[keyword]
	s.mu.RUnlock()
	if ok {
		return re
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if re, ok := s.patterns[keyword]; ok {
		return re
	}
	re = regexp.MustCompile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
	s.patterns[keyword] = re
	return re
}

// tierBoost looks the keyword up in the configured tiers; a keyword in no
// tier gets the neutral boost 1.0.
func tierBoost(keyword string, cfg types.ScoringConfig) float64 {
	for _, tier := range cfg.KeywordTiers {
		for _, kw := range tier.Keywords {
			if strings.EqualFold(strings.TrimSpace(kw), keyword) {
				if tier.Boost > 0 {
					return tier.Boost
				}
				return 1.0
			}
		}
	}
	return 1.0
}

// memoKey builds the cache key: paper identity, keyword-list hash, and a
// fingerprint of the scoring profile so a profile change never replays a
// stale result.
func memoKey(p types.Paper, keywords []string, cfg types.ScoringConfig) string {
	id := p.PMID
	if id == "" {
		id = p.DOI
	}
	if id == "" {
		id = p.Title
	}

	h := fnv.New64a()
	for _, kw := range keywords {
		h.Write([]byte(kw))
		h.Write([]byte{0})
	}
	writeConfigFingerprint(h, cfg)
	return fmt.Sprintf("%s|%x", id, h.Sum64())
}

func writeConfigFingerprint(h interface{ Write(p []byte) (int, error) }, cfg types.ScoringConfig) {
	names := make([]string, 0, len(cfg.KeywordTiers))
	for name := range cfg.KeywordTiers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tier := cfg.KeywordTiers[name]
		fmt.Fprintf(h, "%s=%g:%s;", name, tier.Boost, strings.Join(tier.Keywords, ","))
	}
}
