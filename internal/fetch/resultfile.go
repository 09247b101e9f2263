// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/litwatch/internal/sources"
	"github.com/pdiddy/litwatch/pkg/types"
)

// ResultFile is the on-disk representation of one fetch run. A run can be
// saved and reloaded later without re-querying the APIs.
type ResultFile struct {
	Query   ResultQuery   `yaml:"query"`
	Papers  []types.Paper `yaml:"papers"`
	Summary ResultSummary `yaml:"summary"`
}

// ResultQuery stores the query parameters in a serializable form.
type ResultQuery struct {
	Keywords []string `yaml:"keywords,omitempty"`
	From     string   `yaml:"from,omitempty"`
	To       string   `yaml:"to,omitempty"`
	Mode     string   `yaml:"mode"`
	Sources  []string `yaml:"sources,omitempty"`
}

// ResultSummary stores run statistics and a timestamp.
type ResultSummary struct {
	Total     int       `yaml:"total"`
	Errors    []string  `yaml:"errors,omitempty"`
	Timestamp time.Time `yaml:"timestamp"`
}

const dateFmt = "2006-01-02"

// WriteResultFile saves a fetch run to a YAML file.
func WriteResultFile(path string, query sources.Query, sourceNames []string, out Output) error {
	rf := ResultFile{
		Query: ResultQuery{
			Keywords: query.Keywords,
			Mode:     string(query.Mode),
			Sources:  sourceNames,
		},
		Papers: out.Papers,
		Summary: ResultSummary{
			Total:     len(out.Papers),
			Errors:    out.Errors,
			Timestamp: time.Now(),
		},
	}
	if !query.From.IsZero() {
		rf.Query.From = query.From.Format(dateFmt)
	}
	if !query.To.IsZero() {
		rf.Query.To = query.To.Format(dateFmt)
	}

	data, err := yaml.Marshal(&rf)
	if err != nil {
		return fmt.Errorf("marshaling result file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadResultFile loads a previously saved run from disk.
func ReadResultFile(path string) (*ResultFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result file: %w", err)
	}
	var rf ResultFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing result file: %w", err)
	}
	return &rf, nil
}
