// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources implements one fetch-and-normalize adapter per
// bibliographic API: PubMed (NCBI E-utilities), arXiv, and the
// bioRxiv/medRxiv preprint servers.
//
// Adapters share one contract: ordinary network and parse failures are
// logged and demoted to partial (possibly empty) results; an error return
// means the source produced nothing usable. Date-range semantics are
// source-native and documented on each adapter.
package sources

import (
	"context"
	"time"

	"github.com/pdiddy/litwatch/pkg/types"
)

// Source fetches and normalizes papers from a single bibliographic API.
// Each adapter implements this interface per the Strategy pattern.
type Source interface {
	Name() string
	Fetch(ctx context.Context, query Query) ([]types.Paper, error)
}

// Query holds the fetch parameters shared by all adapters.
type Query struct {
	// Keywords to match; an empty list disables keyword filtering where an
	// adapter filters client-side.
	Keywords []string

	// From and To bound the publication date range. Whether To is
	// inclusive follows each source's native convention.
	From time.Time
	To   time.Time

	// Mode selects the per-source result cap.
	Mode types.SearchMode
}

const dateFmt = "2006-01-02"

// clampDate normalizes a year/month/day triple defensively: month > 12
// clamps to 12, day > 31 clamps to 1, missing fields default to the
// earliest plausible value. A non-positive year yields the zero time so
// callers can fall back.
func clampDate(year, month, day int) time.Time {
	if year <= 0 {
		return time.Time{}
	}
	if month <= 0 {
		month = 1
	} else if month > 12 {
		month = 12
	}
	if day <= 0 || day > 31 {
		day = 1
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// truncateToDay drops the time-of-day component.
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
