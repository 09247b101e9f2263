// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/litwatch/pkg/types"
)

func init() {
	// Shrink waits so rate-limit tests finish quickly.
	pacerBackoffBase = 1 * time.Millisecond
	connRetryWaits = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
}

func testPubMed(ts *httptest.Server) *PubMed {
	s := NewPubMed(ts.Client(), types.FetchConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 10 * time.Second, UserAgent: "test/0.1"},
		// An API key lifts the pacer to 10 req/s, keeping tests fast.
		NCBIAPIKey: "test-key",
	})
	return s
}

func testQuery() Query {
	return Query{
		Keywords: []string{"tau", "amyloid imaging"},
		From:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		Mode:     types.ModeBrief,
	}
}

// --- query building ---

func TestBuildPubMedTerm(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	term := buildPubMedTerm([]string{"tau", "amyloid imaging"}, from, to)

	for _, want := range []string{
		`"tau"[Title/Abstract]`,
		`"tau"[MeSH Terms]`,
		`"amyloid imaging"[Title/Abstract]`,
		`"2026/08/01"[Date - Publication]`,
		`"2026/08/28"[Date - Publication]`,
	} {
		if !strings.Contains(term, want) {
			t.Errorf("term missing %q:\n%s", want, term)
		}
	}
	if !strings.Contains(term, ") AND (") {
		t.Errorf("keyword and date clauses should be ANDed:\n%s", term)
	}
}

func TestBuildPubMedTermNoKeywords(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	term := buildPubMedTerm(nil, from, to)
	if !strings.HasPrefix(term, `("2026/08/01"`) {
		t.Errorf("keywordless term should be the bare date clause, got %q", term)
	}
}

// --- date handling ---

func TestParsePubMedDate(t *testing.T) {
	tests := []struct {
		name string
		pd   pubmedPubDate
		want time.Time
	}{
		{"full numeric", pubmedPubDate{Year: "2026", Month: "4", Day: "17"}, time.Date(2026, 4, 17, 0, 0, 0, 0, time.UTC)},
		{"month name", pubmedPubDate{Year: "2026", Month: "Apr", Day: "17"}, time.Date(2026, 4, 17, 0, 0, 0, 0, time.UTC)},
		{"full month name", pubmedPubDate{Year: "2026", Month: "December", Day: "2"}, time.Date(2026, 12, 2, 0, 0, 0, 0, time.UTC)},
		{"missing month and day", pubmedPubDate{Year: "2026"}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"month clamped high", pubmedPubDate{Year: "2026", Month: "14", Day: "10"}, time.Date(2026, 12, 10, 0, 0, 0, 0, time.UTC)},
		{"day clamped high", pubmedPubDate{Year: "2026", Month: "6", Day: "99"}, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parsePubMedDate(tt.pd); !got.Equal(tt.want) {
				t.Errorf("parsePubMedDate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParsePubMedDateMalformedYearFallsBackToToday(t *testing.T) {
	got := parsePubMedDate(pubmedPubDate{Year: "n/a"})
	if got.IsZero() {
		t.Fatal("malformed year should fall back to the current date, got zero time")
	}
	if time.Since(got) > 48*time.Hour {
		t.Errorf("fallback date %v should be close to now", got)
	}
}

// --- fetch protocol ---

const sampleEfetchXML = `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>40000001</PMID>
      <Article>
        <ArticleTitle>Tau pathology in early Alzheimer's disease</ArticleTitle>
        <Abstract>
          <AbstractText>Background text.</AbstractText>
          <AbstractText>Results text.</AbstractText>
        </Abstract>
        <AuthorList>
          <Author><LastName>Okafor</LastName><ForeName>Adaeze</ForeName></Author>
          <Author><LastName>Lindqvist</LastName><ForeName>Maja</ForeName></Author>
          <Author><CollectiveName>ADNI Consortium</CollectiveName></Author>
        </AuthorList>
        <Journal>
          <Title>Nature Neuroscience</Title>
          <ISOAbbreviation>Nat. Neurosci.</ISOAbbreviation>
          <JournalIssue>
            <Volume>29</Volume>
            <Issue>8</Issue>
            <PubDate><Year>2026</Year><Month>Aug</Month><Day>12</Day></PubDate>
          </JournalIssue>
        </Journal>
      </Article>
      <MedlineJournalInfo><MedlineTA>Nat Neurosci</MedlineTA></MedlineJournalInfo>
      <MeshHeadingList>
        <MeshHeading><DescriptorName>Alzheimer Disease</DescriptorName></MeshHeading>
        <MeshHeading><DescriptorName>tau Proteins</DescriptorName></MeshHeading>
        <MeshHeading><DescriptorName>Humans</DescriptorName></MeshHeading>
        <MeshHeading><DescriptorName>Brain</DescriptorName></MeshHeading>
        <MeshHeading><DescriptorName>Aged</DescriptorName></MeshHeading>
        <MeshHeading><DescriptorName>Neuroimaging</DescriptorName></MeshHeading>
      </MeshHeadingList>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList>
        <ArticleId IdType="pubmed">40000001</ArticleId>
        <ArticleId IdType="doi">10.1038/s41593-026-0001-x</ArticleId>
      </ArticleIdList>
    </PubmedData>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>40000002</PMID>
      <Article>
        <ArticleTitle>Amyloid imaging without a journal title</ArticleTitle>
        <AuthorList>
          <Author><LastName>Duarte</LastName><ForeName>Rui</ForeName></Author>
        </AuthorList>
        <Journal>
          <JournalIssue>
            <PubDate><Year>2026</Year><Month>14</Month><Day>99</Day></PubDate>
          </JournalIssue>
        </Journal>
      </Article>
      <MedlineJournalInfo><MedlineTA>J Nucl Med</MedlineTA></MedlineJournalInfo>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList>
        <ArticleId IdType="pubmed">40000002</ArticleId>
      </ArticleIdList>
    </PubmedData>
  </PubmedArticle>
</PubmedArticleSet>`

func pubmedTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "esearch") && r.URL.Query().Get("rettype") == "count":
			fmt.Fprint(w, `{"esearchresult":{"count":"2"}}`)
		case strings.Contains(r.URL.Path, "esearch"):
			if r.URL.Query().Get("sort") != "pub_date" {
				t.Errorf("ID search should sort by pub_date, got %q", r.URL.Query().Get("sort"))
			}
			fmt.Fprint(w, `{"esearchresult":{"count":"2","idlist":["40000001","40000002"]}}`)
		case strings.Contains(r.URL.Path, "efetch"):
			fmt.Fprint(w, sampleEfetchXML)
		default:
			http.NotFound(w, r)
		}
	}))

	oldSearch, oldFetch := pubmedSearchBase, pubmedFetchBase
	pubmedSearchBase = ts.URL + "/esearch"
	pubmedFetchBase = ts.URL + "/efetch"
	t.Cleanup(func() {
		pubmedSearchBase, pubmedFetchBase = oldSearch, oldFetch
		ts.Close()
	})
	return ts
}

func TestPubMedFetch(t *testing.T) {
	ts := pubmedTestServer(t)
	s := testPubMed(ts)

	papers, err := s.Fetch(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(papers) != 2 {
		t.Fatalf("len(papers) = %d, want 2", len(papers))
	}

	p := papers[0]
	if p.Title != "Tau pathology in early Alzheimer's disease" {
		t.Errorf("title = %q", p.Title)
	}
	if p.Abstract != "Background text. Results text." {
		t.Errorf("abstract = %q", p.Abstract)
	}
	if len(p.Authors) != 3 || p.Authors[0] != "Adaeze Okafor" || p.Authors[2] != "ADNI Consortium" {
		t.Errorf("authors = %v", p.Authors)
	}
	if p.Journal != "Nature Neuroscience" {
		t.Errorf("journal = %q, want explicit title", p.Journal)
	}
	if p.Volume != "29" || p.Issue != "8" {
		t.Errorf("volume/issue = %q/%q", p.Volume, p.Issue)
	}
	if want := time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC); !p.Published.Equal(want) {
		t.Errorf("published = %v, want %v", p.Published, want)
	}
	if p.URL != "https://pubmed.ncbi.nlm.nih.gov/40000001/" {
		t.Errorf("url = %q", p.URL)
	}
	if p.DOI != "10.1038/s41593-026-0001-x" {
		t.Errorf("doi = %q", p.DOI)
	}
	if p.Source != types.SourcePubMed {
		t.Errorf("source = %q", p.Source)
	}
	if len(p.Categories) != 5 {
		t.Errorf("MeSH categories should cap at 5, got %d: %v", len(p.Categories), p.Categories)
	}

	// Second article exercises the fallback paths.
	q := papers[1]
	if q.Journal != "J Nucl Med" {
		t.Errorf("journal fallback = %q, want MedlineTA", q.Journal)
	}
	if want := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC); !q.Published.Equal(want) {
		t.Errorf("clamped date = %v, want %v", q.Published, want)
	}
	if q.DOI != "" {
		t.Errorf("doi should be empty, got %q", q.DOI)
	}
}

func TestPubMedCountFailureFallsOpen(t *testing.T) {
	var countCalls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "esearch") && r.URL.Query().Get("rettype") == "count":
			atomic.AddInt32(&countCalls, 1)
			http.Error(w, "boom", http.StatusInternalServerError)
		case strings.Contains(r.URL.Path, "esearch"):
			if got := r.URL.Query().Get("retmax"); got != "1000" {
				t.Errorf("retmax = %q, want mode cap 1000 after count failure", got)
			}
			fmt.Fprint(w, `{"esearchresult":{"count":"0","idlist":[]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	oldSearch := pubmedSearchBase
	pubmedSearchBase = ts.URL + "/esearch"
	defer func() { pubmedSearchBase = oldSearch }()

	s := testPubMed(ts)
	papers, err := s.Fetch(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(papers) != 0 {
		t.Errorf("len(papers) = %d, want 0", len(papers))
	}
	if atomic.LoadInt32(&countCalls) != 1 {
		t.Errorf("count endpoint called %d times, want 1", countCalls)
	}
}

func TestPubMedFailedBatchKeepsOthers(t *testing.T) {
	// 250 IDs make two efetch batches; the second batch fails.
	ids := make([]string, 250)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", 40000000+i)
	}
	idList := `"` + strings.Join(ids, `","`) + `"`

	var fetchCalls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "esearch") && r.URL.Query().Get("rettype") == "count":
			fmt.Fprint(w, `{"esearchresult":{"count":"250"}}`)
		case strings.Contains(r.URL.Path, "esearch"):
			fmt.Fprint(w, `{"esearchresult":{"count":"250","idlist":[`+idList+`]}}`)
		case strings.Contains(r.URL.Path, "efetch"):
			if atomic.AddInt32(&fetchCalls, 1) == 2 {
				http.Error(w, "bad gateway", http.StatusBadGateway)
				return
			}
			fmt.Fprint(w, sampleEfetchXML)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	oldSearch, oldFetch := pubmedSearchBase, pubmedFetchBase
	pubmedSearchBase = ts.URL + "/esearch"
	pubmedFetchBase = ts.URL + "/efetch"
	defer func() { pubmedSearchBase, pubmedFetchBase = oldSearch, oldFetch }()

	s := testPubMed(ts)
	papers, err := s.Fetch(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(papers) != 2 {
		t.Errorf("len(papers) = %d, want the first batch's 2 papers", len(papers))
	}
	if atomic.LoadInt32(&fetchCalls) != 2 {
		t.Errorf("efetch called %d times, want 2", fetchCalls)
	}
}

func TestPubMedRetriesOn429(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"esearchresult":{"count":"0","idlist":[]}}`)
	}))
	defer ts.Close()

	oldSearch := pubmedSearchBase
	pubmedSearchBase = ts.URL + "/esearch"
	defer func() { pubmedSearchBase = oldSearch }()

	s := testPubMed(ts)
	if _, err := s.count(context.Background(), "tau"); err != nil {
		t.Fatalf("count() error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want retry after 429", calls)
	}
}
