// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litwatch/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(types.ArchiveConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testPapers() []types.Paper {
	return []types.Paper{
		{
			Title:           "Tau pathology in early Alzheimer's disease",
			Abstract:        "Longitudinal tau study.",
			Authors:         []string{"Adaeze Okafor", "Maja Lindqvist"},
			Published:       time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC),
			Source:          types.SourcePubMed,
			Journal:         "Nature Neuroscience",
			Volume:          "29",
			Issue:           "8",
			DOI:             "10.1038/s41593-026-0001-x",
			PMID:            "40000001",
			URL:             "https://pubmed.ncbi.nlm.nih.gov/40000001/",
			MatchedKeywords: []string{"tau"},
			RelevanceScore:  6.1,
		},
		{
			Title:          "Tau seeding assays in organoids",
			Authors:        []string{"Nakamura, K."},
			Published:      time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
			Source:         types.SourceBiorxiv,
			DOI:            "10.1101/2026.08.20.123456",
			RelevanceScore: 3.2,
		},
	}
}

func TestStoreAddAndList(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	summary, err := store.Add(ctx, testPapers())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Added)
	assert.Equal(t, 0, summary.Skipped)

	papers, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, papers, 2)

	// Ordered by relevance score descending.
	assert.Equal(t, "Tau pathology in early Alzheimer's disease", papers[0].Title)
	assert.Equal(t, []string{"Adaeze Okafor", "Maja Lindqvist"}, papers[0].Authors)
	assert.Equal(t, []string{"tau"}, papers[0].MatchedKeywords)
	assert.Equal(t, 6.1, papers[0].RelevanceScore)
	assert.Equal(t, time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC), papers[0].Published)
}

func TestStoreDeduplicatesByTitleAndAuthors(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, testPapers())
	require.NoError(t, err)

	// Re-adding the same papers is a no-op; a same-title paper with
	// different authors is a new row.
	again := testPapers()
	again = append(again, types.Paper{
		Title:   "Tau seeding assays in organoids",
		Authors: []string{"Different Author"},
		Source:  types.SourceBiorxiv,
	})
	summary, err := store.Add(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, 2, summary.Skipped)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStoreListFilters(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	_, err := store.Add(ctx, testPapers())
	require.NoError(t, err)

	bySource, err := store.List(ctx, ListOptions{Source: types.SourceBiorxiv})
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Equal(t, types.SourceBiorxiv, bySource[0].Source)

	since, err := store.List(ctx, ListOptions{Since: time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "Tau seeding assays in organoids", since[0].Title)

	limited, err := store.List(ctx, ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStoreExportJSON(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	_, err := store.Add(ctx, testPapers())
	require.NoError(t, err)

	path, err := store.ExportJSON(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "export.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var papers []types.Paper
	require.NoError(t, json.Unmarshal(data, &papers))
	assert.Len(t, papers, 2)
}

func TestStoreExportCSV(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	_, err := store.Add(ctx, testPapers())
	require.NoError(t, err)

	path, err := store.ExportCSV(ctx, ListOptions{})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3, "header plus two rows")
	assert.True(t, strings.HasPrefix(lines[0], "title,authors,published"), lines[0])
	assert.Contains(t, lines[1], "Adaeze Okafor; Maja Lindqvist")
}

func TestStoreExportBibTeX(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	_, err := store.Add(ctx, testPapers())
	require.NoError(t, err)

	path, err := store.ExportBibTeX(ctx, ListOptions{})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got := string(data)

	assert.Contains(t, got, "@article{okafor2026tau,")
	assert.Contains(t, got, "author = {Adaeze Okafor and Maja Lindqvist},")
	assert.Contains(t, got, "journal = {Nature Neuroscience},")
	assert.Contains(t, got, "doi = {10.1038/s41593-026-0001-x},")

	// The preprint has no journal; the source lands in the note field.
	assert.Contains(t, got, "note = {biorxiv preprint},")
}

func TestBibKey(t *testing.T) {
	p := types.Paper{
		Title:     "Tau pathology in aging",
		Authors:   []string{"Adaeze Okafor"},
		Published: time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "okafor2026tau", bibKey(p))

	assert.Equal(t, "paper", bibKey(types.Paper{}))
}
