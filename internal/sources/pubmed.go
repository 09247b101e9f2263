// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/litwatch/pkg/types"
)

// E-utilities endpoints. Declared as vars so tests can substitute an
// httptest server.
var (
	pubmedSearchBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	pubmedFetchBase  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"
)

// pubmedBatchSize is the number of PMIDs fetched per efetch call.
const pubmedBatchSize = 200

// connRetryWaits are the fixed escalating waits applied to connection
// errors before giving up.
var connRetryWaits = []time.Duration{3 * time.Second, 10 * time.Second, 30 * time.Second}

// max429Retries bounds retries of a single request on HTTP 429; beyond
// this the pacer's cooldown has already kicked in and the batch is dropped.
const max429Retries = 5

// PubMed fetches papers through the NCBI E-utilities three-step protocol:
// a count-only esearch, an ID-list esearch, and batched efetch calls.
// The publication-date range is inclusive on both ends ([dp] semantics).
type PubMed struct {
	Client    *http.Client
	APIKey    string
	UserAgent string

	// Log receives warnings about dropped batches and fallbacks.
	Log io.Writer

	pacer *pacer
}

// NewPubMed builds a PubMed adapter. An API key raises the request rate
// from NCBI's keyless 3 req/s allowance to 10 req/s.
func NewPubMed(client *http.Client, cfg types.FetchConfig) *PubMed {
	reqPerSec := 3.0
	if cfg.NCBIAPIKey != "" {
		reqPerSec = 10.0
	}
	return &PubMed{
		Client:    client,
		APIKey:    cfg.NCBIAPIKey,
		UserAgent: cfg.UserAgent,
		Log:       io.Discard,
		pacer:     newPacer(reqPerSec),
	}
}

// Name returns the source identifier.
func (s *PubMed) Name() string { return types.SourcePubMed }

// Fetch runs the two-phase search plus batched detail fetch. Failed
// batches are logged and skipped; the papers from surviving batches are
// returned.
func (s *PubMed) Fetch(ctx context.Context, query Query) ([]types.Paper, error) {
	term := buildPubMedTerm(query.Keywords, query.From, query.To)
	modeCap := query.Mode.Cap(types.SourcePubMed)

	// Phase A: count. On failure fall open to the mode cap rather than
	// aborting the whole fetch.
	size := modeCap
	if total, err := s.count(ctx, term); err != nil {
		fmt.Fprintf(s.Log, "warning: pubmed count failed, using mode cap %d: %v\n", modeCap, err)
	} else if total < size {
		size = total
	}
	if size <= 0 {
		return nil, nil
	}

	// Phase B: ID list, newest publications first.
	ids, err := s.searchIDs(ctx, term, size)
	if err != nil {
		return nil, fmt.Errorf("pubmed search: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// Phase C: batched detail fetch. A failed batch aborts that batch
	// only.
	var papers []types.Paper
	for start := 0; start < len(ids); start += pubmedBatchSize {
		end := start + pubmedBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := s.fetchBatch(ctx, ids[start:end])
		if err != nil {
			if ctx.Err() != nil {
				return papers, ctx.Err()
			}
			fmt.Fprintf(s.Log, "warning: pubmed batch %d-%d dropped: %v\n", start, end, err)
			continue
		}
		papers = append(papers, batch...)
	}
	return papers, nil
}

// buildPubMedTerm constructs the boolean esearch term: an OR of
// title/abstract and MeSH clauses per keyword, ANDed with the
// publication-date range.
func buildPubMedTerm(keywords []string, from, to time.Time) string {
	var clauses []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("(%q[Title/Abstract] OR %q[MeSH Terms])", kw, kw))
	}

	term := strings.Join(clauses, " OR ")
	if len(clauses) > 1 {
		term = "(" + term + ")"
	}

	dateClause := fmt.Sprintf("(%q[Date - Publication] : %q[Date - Publication])",
		from.Format("2006/01/02"), to.Format("2006/01/02"))
	if term == "" {
		return dateClause
	}
	return term + " AND " + dateClause
}

// esearchResult is the JSON envelope returned by esearch.
type esearchResult struct {
	Result struct {
		Count string   `json:"count"`
		IDs   []string `json:"idlist"`
	} `json:"esearchresult"`
}

// count issues a count-only esearch to learn the total hits for the term.
func (s *PubMed) count(ctx context.Context, term string) (int, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {term},
		"rettype": {"count"},
		"retmode": {"json"},
	}
	body, err := s.get(ctx, pubmedSearchBase, params)
	if err != nil {
		return 0, err
	}

	var er esearchResult
	if err := json.Unmarshal(body, &er); err != nil {
		return 0, fmt.Errorf("parsing count response: %w", err)
	}
	n, err := strconv.Atoi(er.Result.Count)
	if err != nil {
		return 0, fmt.Errorf("parsing count %q: %w", er.Result.Count, err)
	}
	return n, nil
}

// searchIDs issues the full esearch and returns up to retmax PMIDs sorted
// by publication date descending.
func (s *PubMed) searchIDs(ctx context.Context, term string, retmax int) ([]string, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {term},
		"retmax":  {strconv.Itoa(retmax)},
		"retmode": {"json"},
		"sort":    {"pub_date"},
	}
	body, err := s.get(ctx, pubmedSearchBase, params)
	if err != nil {
		return nil, err
	}

	var er esearchResult
	if err := json.Unmarshal(body, &er); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	return er.Result.IDs, nil
}

// fetchBatch retrieves full records for one batch of PMIDs via efetch and
// normalizes them. Records that fail to normalize are skipped, never the
// whole batch.
func (s *PubMed) fetchBatch(ctx context.Context, ids []string) ([]types.Paper, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"xml"},
	}
	body, err := s.get(ctx, pubmedFetchBase, params)
	if err != nil {
		return nil, err
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("parsing efetch response: %w", err)
	}

	papers := make([]types.Paper, 0, len(set.Articles))
	for _, a := range set.Articles {
		p := normalizePubMedArticle(a)
		if p.Title == "" && p.PMID == "" {
			continue
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// get performs one paced E-utilities request with 429 backoff and
// fixed-schedule retries on connection errors.
func (s *PubMed) get(ctx context.Context, base string, params url.Values) ([]byte, error) {
	if s.APIKey != "" {
		params.Set("api_key", s.APIKey)
	}
	reqURL := base + "?" + params.Encode()

	connAttempt := 0
	rateAttempt := 0
	for {
		if err := s.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", s.UserAgent)

		resp, err := s.Client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if connAttempt >= len(connRetryWaits) {
				return nil, fmt.Errorf("pubmed request: %w", err)
			}
			wait := connRetryWaits[connAttempt]
			connAttempt++
			fmt.Fprintf(s.Log, "warning: pubmed connection error, retrying in %v: %v\n", wait, err)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if rateAttempt >= max429Retries {
				return nil, fmt.Errorf("pubmed rate limited after %d retries", rateAttempt)
			}
			rateAttempt++
			d := s.pacer.OnRateLimited()
			if err := sleepCtx(ctx, d); err != nil {
				return nil, err
			}
			continue
		}

		s.pacer.OnSuccess()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("pubmed returned HTTP %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		return body, nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// --- efetch XML structures ---

type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation pubmedCitation `xml:"MedlineCitation"`
	Data     pubmedData     `xml:"PubmedData"`
}

type pubmedCitation struct {
	PMID        string            `xml:"PMID"`
	Article     pubmedArticleBody `xml:"Article"`
	JournalInfo struct {
		MedlineTA string `xml:"MedlineTA"`
	} `xml:"MedlineJournalInfo"`
	MeshHeadings []struct {
		Descriptor string `xml:"DescriptorName"`
	} `xml:"MeshHeadingList>MeshHeading"`
}

type pubmedArticleBody struct {
	Title    string `xml:"ArticleTitle"`
	Abstract struct {
		Sections []string `xml:"AbstractText"`
	} `xml:"Abstract"`
	Authors []pubmedAuthor `xml:"AuthorList>Author"`
	Journal pubmedJournal  `xml:"Journal"`
}

type pubmedAuthor struct {
	LastName       string `xml:"LastName"`
	ForeName       string `xml:"ForeName"`
	CollectiveName string `xml:"CollectiveName"`
}

type pubmedJournal struct {
	Title           string `xml:"Title"`
	ISOAbbreviation string `xml:"ISOAbbreviation"`
	Issue           struct {
		Volume  string        `xml:"Volume"`
		Issue   string        `xml:"Issue"`
		PubDate pubmedPubDate `xml:"PubDate"`
	} `xml:"JournalIssue"`
}

type pubmedPubDate struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

type pubmedData struct {
	ArticleIDs []pubmedArticleID `xml:"ArticleIdList>ArticleId"`
}

type pubmedArticleID struct {
	Type  string `xml:"IdType,attr"`
	Value string `xml:",chardata"`
}

// normalizePubMedArticle maps one efetch record into a Paper.
func normalizePubMedArticle(a pubmedArticle) types.Paper {
	body := a.Citation.Article

	p := types.Paper{
		Title:    strings.TrimSpace(body.Title),
		Abstract: strings.TrimSpace(strings.Join(body.Abstract.Sections, " ")),
		Source:   types.SourcePubMed,
		PMID:     strings.TrimSpace(a.Citation.PMID),
		Volume:   body.Journal.Issue.Volume,
		Issue:    body.Journal.Issue.Issue,
	}

	for _, au := range body.Authors {
		name := au.CollectiveName
		if name == "" {
			name = strings.TrimSpace(au.ForeName + " " + au.LastName)
		}
		if name != "" {
			p.Authors = append(p.Authors, name)
		}
	}

	// Journal name fallback chain: explicit title, then ISO abbreviation,
	// then Medline abbreviation.
	switch {
	case body.Journal.Title != "":
		p.Journal = body.Journal.Title
	case body.Journal.ISOAbbreviation != "":
		p.Journal = body.Journal.ISOAbbreviation
	default:
		p.Journal = a.Citation.JournalInfo.MedlineTA
	}

	p.Published = parsePubMedDate(body.Journal.Issue.PubDate)

	if p.PMID != "" {
		p.URL = "https://pubmed.ncbi.nlm.nih.gov/" + p.PMID + "/"
	}

	for _, id := range a.Data.ArticleIDs {
		if strings.EqualFold(id.Type, "doi") {
			p.DOI = strings.TrimSpace(id.Value)
			break
		}
	}

	for i, mh := range a.Citation.MeshHeadings {
		if i >= 5 {
			break
		}
		if d := strings.TrimSpace(mh.Descriptor); d != "" {
			p.Categories = append(p.Categories, d)
		}
	}

	return p
}

// parsePubMedDate resolves PubMed's year/month/day fields, where month may
// be a name ("Jan") or a number, with defensive clamping. A missing or
// malformed year falls back to the current date.
func parsePubMedDate(pd pubmedPubDate) time.Time {
	year, err := strconv.Atoi(strings.TrimSpace(pd.Year))
	if err != nil {
		return truncateToDay(time.Now().UTC())
	}
	month := parseMonth(pd.Month)
	day, _ := strconv.Atoi(strings.TrimSpace(pd.Day))

	if t := clampDate(year, month, day); !t.IsZero() {
		return t
	}
	return truncateToDay(time.Now().UTC())
}

var monthsByName = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// parseMonth accepts numeric months and English month names or
// abbreviations. Unknown values yield 0 (caller defaults to January).
func parseMonth(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if len(s) >= 3 {
		return monthsByName[s[:3]]
	}
	return 0
}
