// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litwatch/pkg/types"
)

func sampleOutput() Output {
	return Output{
		Papers: []types.Paper{
			{
				Title:           "Tau propagation across cortical networks",
				Authors:         []string{"Priya Raman", "Tomás Herrera"},
				Published:       time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
				Source:          types.SourceArxiv,
				RelevanceScore:  3.2,
				MatchedKeywords: []string{"tau"},
			},
		},
		Errors: []string{"pubmed_error: connection refused"},
	}
}

func TestFormatTable(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(sampleOutput(), &buf)
	got := buf.String()

	assert.Contains(t, got, "Tau propagation across cortical networks")
	assert.Contains(t, got, "et al.")
	assert.Contains(t, got, "2026-08-20")
	assert.Contains(t, got, "3.2")
	assert.Contains(t, got, "1 results")
	assert.Contains(t, got, "warning: pubmed_error: connection refused")
}

func TestFormatTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(Output{Errors: []string{"arxiv_error: timeout"}}, &buf)
	got := buf.String()

	assert.Contains(t, got, "No results found.")
	assert.Contains(t, got, "arxiv_error: timeout")
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatJSON(sampleOutput(), &buf))

	var decoded struct {
		Papers []types.Paper `json:"papers"`
		Errors []string      `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Papers, 1)
	assert.Equal(t, "Tau propagation across cortical networks", decoded.Papers[0].Title)
	assert.Equal(t, 3.2, decoded.Papers[0].RelevanceScore)
	assert.Equal(t, []string{"pubmed_error: connection refused"}, decoded.Errors)
}

func TestFormatAuthors(t *testing.T) {
	assert.Equal(t, "", formatAuthors(nil))
	assert.Equal(t, "Priya Raman", formatAuthors([]string{"Priya Raman"}))
	got := formatAuthors([]string{"Priya Raman", "Tomás Herrera"})
	assert.True(t, strings.HasSuffix(got, " et al."), got)
}
