// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/litwatch/internal/httputil"
	"github.com/pdiddy/litwatch/pkg/types"
)

// rxivAPIBase is the bioRxiv/medRxiv details endpoint. Declared as a var
// so tests can substitute an httptest server.
var rxivAPIBase = "https://api.biorxiv.org/details"

// rxivPageSize is the fixed page size of the details endpoint.
const rxivPageSize = 100

// rxivServerDelay is the politeness delay between the two server calls.
// Tests shrink it.
var rxivServerDelay = 1 * time.Second

// Rxiv fetches preprints from the bioRxiv and medRxiv servers through one
// adapter call. Both servers share the listing API; results are tagged
// biorxiv or medrxiv per server so downstream consumers can filter them
// independently. The date interval is inclusive on both ends.
type Rxiv struct {
	Client    *http.Client
	UserAgent string

	// Log receives warnings when one server fails; the other server's
	// results are still returned.
	Log io.Writer

	servers []string
}

// NewRxiv builds an adapter over the given preprint servers (biorxiv,
// medrxiv); with none given it queries both.
func NewRxiv(client *http.Client, cfg types.FetchConfig, servers ...string) *Rxiv {
	if len(servers) == 0 {
		servers = []string{types.SourceBiorxiv, types.SourceMedrxiv}
	}
	return &Rxiv{Client: client, UserAgent: cfg.UserAgent, Log: io.Discard, servers: servers}
}

// Name returns the source identifier for the adapter family.
func (s *Rxiv) Name() string { return "rxiv" }

// Servers returns the individual source names this adapter produces.
func (s *Rxiv) Servers() []string { return s.servers }

// Fetch queries both servers in turn. A failing server is logged and
// skipped; only two failing servers surface as an error.
func (s *Rxiv) Fetch(ctx context.Context, query Query) ([]types.Paper, error) {
	var papers []types.Paper
	var firstErr error
	failed := 0

	for i, server := range s.Servers() {
		if i > 0 {
			if err := sleepCtx(ctx, rxivServerDelay); err != nil {
				return papers, err
			}
		}
		got, err := s.fetchServer(ctx, server, query)
		if err != nil {
			if ctx.Err() != nil {
				return papers, ctx.Err()
			}
			failed++
			if firstErr == nil {
				firstErr = err
			}
			fmt.Fprintf(s.Log, "warning: %s fetch failed: %v\n", server, err)
			continue
		}
		papers = append(papers, got...)
	}

	if failed == len(s.Servers()) {
		return nil, firstErr
	}
	return papers, nil
}

// fetchServer pages through one server's date-ranged listing up to the
// mode cap, applying the keyword pre-filter per entry.
func (s *Rxiv) fetchServer(ctx context.Context, server string, query Query) ([]types.Paper, error) {
	modeCap := query.Mode.Cap(server)
	interval := query.From.Format(dateFmt) + "/" + query.To.Format(dateFmt)

	keywords := make([]string, 0, len(query.Keywords))
	for _, kw := range query.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	var papers []types.Paper
	seen := 0
	for cursor := 0; seen < modeCap; cursor += rxivPageSize {
		page, err := s.fetchPage(ctx, server, interval, cursor)
		if err != nil {
			// Keep whatever earlier pages produced.
			if len(papers) > 0 {
				fmt.Fprintf(s.Log, "warning: %s page at cursor %d dropped: %v\n", server, cursor, err)
				break
			}
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		for _, entry := range page {
			if seen >= modeCap {
				break
			}
			seen++
			if !matchesAnyKeyword(entry, keywords) {
				continue
			}
			papers = append(papers, normalizeRxivEntry(entry, server))
		}

		if len(page) < rxivPageSize {
			break
		}
	}
	return papers, nil
}

// rxivResponse is the JSON envelope of the details endpoint.
type rxivResponse struct {
	Collection []rxivEntry `json:"collection"`
}

type rxivEntry struct {
	DOI      string `json:"doi"`
	Title    string `json:"title"`
	Authors  string `json:"authors"`
	Date     string `json:"date"`
	Category string `json:"category"`
	Abstract string `json:"abstract"`
}

func (s *Rxiv) fetchPage(ctx context.Context, server, interval string, cursor int) ([]rxivEntry, error) {
	reqURL := rxivAPIBase + "/" + server + "/" + interval + "/" + strconv.Itoa(cursor)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%s API request: %w", server, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s API returned HTTP %d", server, resp.StatusCode)
	}

	var rr rxivResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", server, err)
	}
	return rr.Collection, nil
}

// matchesAnyKeyword is the pre-filter: with keywords present, an entry
// survives only when its lowercased title, abstract, or author string
// contains at least one keyword as a substring. No keywords keeps all.
func matchesAnyKeyword(entry rxivEntry, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	blob := strings.ToLower(entry.Title + " " + entry.Abstract + " " + entry.Authors)
	for _, kw := range keywords {
		if strings.Contains(blob, kw) {
			return true
		}
	}
	return false
}

// normalizeRxivEntry maps one listing entry into a Paper tagged with the
// originating server.
func normalizeRxivEntry(entry rxivEntry, server string) types.Paper {
	p := types.Paper{
		Title:    strings.TrimSpace(entry.Title),
		Abstract: strings.TrimSpace(entry.Abstract),
		Source:   server,
		DOI:      strings.TrimSpace(entry.DOI),
	}

	for _, a := range strings.Split(entry.Authors, ";") {
		if name := strings.TrimSpace(a); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}

	if c := strings.TrimSpace(entry.Category); c != "" {
		p.Categories = []string{c}
	}

	if t, err := time.Parse(dateFmt, entry.Date); err == nil {
		p.Published = t
	} else {
		p.Published = truncateToDay(time.Now().UTC())
	}

	if p.DOI != "" {
		p.URL = "https://doi.org/" + p.DOI
	}
	return p
}
