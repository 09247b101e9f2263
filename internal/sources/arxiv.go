// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pdiddy/litwatch/internal/httputil"
	"github.com/pdiddy/litwatch/pkg/types"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests can
// substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// Arxiv fetches papers through a single paginated Atom query against the
// arXiv API. The server-side submittedDate range (00:00 to 23:59 on the
// bounds, both inclusive) is imprecise, so a defensive client-side date
// filter runs after parsing; entries whose date fails to parse are kept.
type Arxiv struct {
	Client    *http.Client
	UserAgent string

	// Log receives warnings about skipped entries.
	Log io.Writer
}

// NewArxiv builds an arXiv adapter.
func NewArxiv(client *http.Client, cfg types.FetchConfig) *Arxiv {
	return &Arxiv{Client: client, UserAgent: cfg.UserAgent, Log: io.Discard}
}

// Name returns the source identifier.
func (s *Arxiv) Name() string { return types.SourceArxiv }

// Fetch issues the query and normalizes the returned entries.
func (s *Arxiv) Fetch(ctx context.Context, query Query) ([]types.Paper, error) {
	params := url.Values{
		"search_query": {buildArxivQuery(query)},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(query.Mode.Cap(types.SourceArxiv))},
		"sortBy":       {"submittedDate"},
		"sortOrder":    {"descending"},
	}
	reqURL := arxivAPIBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing arXiv feed: %w", err)
	}

	var papers []types.Paper
	for _, entry := range feed.Items {
		arxivID := extractArxivID(entry.GUID)
		if arxivID == "" {
			continue
		}

		p := types.Paper{
			Title:      strings.Join(strings.Fields(entry.Title), " "),
			Abstract:   strings.Join(strings.Fields(entry.Description), " "),
			Source:     types.SourceArxiv,
			URL:        "https://arxiv.org/abs/" + arxivID,
			Categories: entry.Categories,
		}

		for _, a := range entry.Authors {
			if name := strings.TrimSpace(a.Name); name != "" {
				p.Authors = append(p.Authors, name)
			}
		}

		if entry.PublishedParsed != nil {
			p.Published = truncateToDay(entry.PublishedParsed.UTC())
			// The server-side date query is advisory; drop entries
			// outside the requested window here.
			if p.Published.Before(truncateToDay(query.From)) || p.Published.After(truncateToDay(query.To)) {
				continue
			}
		} else {
			// Unparseable date: keep the entry, stamp the fetch time.
			p.Published = truncateToDay(time.Now().UTC())
		}

		papers = append(papers, p)
	}
	return papers, nil
}

// buildArxivQuery combines per-keyword title/abstract clauses with the
// submitted-date range.
func buildArxivQuery(q Query) string {
	var clauses []string
	for _, kw := range q.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("(ti:%q OR abs:%q)", kw, kw))
	}

	dateClause := fmt.Sprintf("submittedDate:[%s0000 TO %s2359]",
		q.From.Format("20060102"), q.To.Format("20060102"))

	if len(clauses) == 0 {
		return dateClause
	}
	return "(" + strings.Join(clauses, " OR ") + ") AND " + dateClause
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
