// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch orchestrates the source adapters: it fans the query out to
// every active source concurrently, merges whatever succeeds, fans
// per-paper scoring out on a worker pool, and ranks the merged collection
// by descending relevance.
package fetch

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/pdiddy/litwatch/internal/score"
	"github.com/pdiddy/litwatch/internal/sources"
	"github.com/pdiddy/litwatch/pkg/types"
)

// Output holds the merged papers and one human-readable error string per
// failed source. A run with zero papers and populated Errors is "no
// results, here's why" — never a hard failure.
type Output struct {
	Papers []types.Paper
	Errors []string
}

// Fetch dispatches the query to all given sources concurrently and merges
// the non-error results by concatenation. A source that returns an error
// or panics contributes a "<name>_error: ..." entry instead of results.
// Fetch itself never fails: total wall-clock time is bounded by the
// slowest source, and one source's failure is isolated from the rest.
func Fetch(ctx context.Context, query sources.Query, srcs []sources.Source, w io.Writer) Output {
	if len(srcs) == 0 {
		return Output{Errors: []string{"no active sources: enable at least one of " + strings.Join(types.SourceNames, ", ")}}
	}

	type sourceResult struct {
		papers []types.Paper
		err    error
		name   string
	}

	ch := make(chan sourceResult, len(srcs))
	var wg sync.WaitGroup

	for _, src := range srcs {
		wg.Add(1)
		go func(src sources.Source) {
			defer wg.Done()
			papers, err := callSource(ctx, src, query)
			ch <- sourceResult{papers: papers, err: err, name: src.Name()}
		}(src)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	var out Output
	for sr := range ch {
		if sr.err != nil {
			msg := fmt.Sprintf("%s_error: %v", sr.name, sr.err)
			out.Errors = append(out.Errors, msg)
			fmt.Fprintf(w, "warning: source %s failed: %v\n", sr.name, sr.err)
			continue
		}
		out.Papers = append(out.Papers, sr.papers...)
	}
	return out
}

// callSource invokes one adapter, demoting a panic to an error so a
// programmer error in one source cannot crash the whole query.
func callSource(ctx context.Context, src sources.Source, query sources.Query) (papers []types.Paper, err error) {
	defer func() {
		if r := recover(); r != nil {
			papers = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return src.Fetch(ctx, query)
}

// Rank scores every paper against the keywords on a bounded worker pool
// and sorts the collection by descending relevance score. Scoring is
// embarrassingly parallel; each worker writes only its own slice element.
// Ties keep score-only comparison. The journal-quality boost is added on
// top of the keyword score for qualifying PubMed papers.
func Rank(papers []types.Paper, keywords []string, scorer *score.Scorer, cfg types.ScoringConfig, workers int) []types.Paper {
	if workers <= 0 {
		workers = 8
	}

	scoreOne := func(i int) {
		s, matched := scorer.Score(papers[i], keywords, cfg)
		s += score.JournalBoost(papers[i], len(matched), cfg)
		papers[i].RelevanceScore = s
		papers[i].MatchedKeywords = matched
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		// Pool creation only fails on invalid size; score serially.
		for i := range papers {
			scoreOne(i)
		}
	} else {
		defer pool.Release()
		var wg sync.WaitGroup
		for i := range papers {
			wg.Add(1)
			n := i
			if err := pool.Submit(func() {
				defer wg.Done()
				scoreOne(n)
			}); err != nil {
				wg.Done()
				scoreOne(n)
			}
		}
		wg.Wait()
	}

	sort.Slice(papers, func(i, j int) bool {
		return papers[i].RelevanceScore > papers[j].RelevanceScore
	})
	return papers
}

// Run executes the full pipeline: fetch, score, rank.
func Run(ctx context.Context, query sources.Query, srcs []sources.Source, scorer *score.Scorer, cfg types.ScoringConfig, workers int, w io.Writer) Output {
	out := Fetch(ctx, query, srcs, w)
	out.Papers = Rank(out.Papers, query.Keywords, scorer, cfg, workers)
	return out
}

// FilterMinMatched keeps papers with at least min matched keywords. This
// is a presentation-layer decision, not a scorer decision.
func FilterMinMatched(papers []types.Paper, min int) []types.Paper {
	if min <= 0 {
		return papers
	}
	kept := papers[:0:0]
	for _, p := range papers {
		if len(p.MatchedKeywords) >= min {
			kept = append(kept, p)
		}
	}
	return kept
}

// FilterMustHave keeps papers whose matched keywords include at least one
// entry of the allow-list (case-insensitive). An empty allow-list keeps
// everything.
func FilterMustHave(papers []types.Paper, mustHave []string) []types.Paper {
	if len(mustHave) == 0 {
		return papers
	}
	want := make(map[string]bool, len(mustHave))
	for _, kw := range mustHave {
		want[strings.ToLower(strings.TrimSpace(kw))] = true
	}

	kept := papers[:0:0]
	for _, p := range papers {
		for _, m := range p.MatchedKeywords {
			if want[strings.ToLower(m)] {
				kept = append(kept, p)
				break
			}
		}
	}
	return kept
}
