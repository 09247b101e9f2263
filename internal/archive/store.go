// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive persists fetched papers in a SQLite database so runs can
// be accumulated, deduplicated, and exported. Deduplication is by exact
// title plus author strings — papers carry no stable cross-run key.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/litwatch/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "litwatch.db"
)

// Store manages the archive SQLite database.
type Store struct {
	db  *sql.DB
	dir string
}

// NewStore opens or creates the archive database at dir/index/litwatch.db,
// creating the schema if needed.
func NewStore(cfg types.ArchiveConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.Dir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: cfg.Dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			dedup_key TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			abstract TEXT,
			authors TEXT,
			published TEXT,
			source TEXT,
			url TEXT,
			journal TEXT,
			volume TEXT,
			issue TEXT,
			doi TEXT,
			pmid TEXT,
			categories TEXT,
			matched_keywords TEXT,
			relevance_score REAL,
			archived_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_source ON papers(source)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_published ON papers(published)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// dedupKey is the archive identity of a paper: exact title plus the joined
// author strings.
func dedupKey(p types.Paper) string {
	return p.Title + "|" + strings.Join(p.Authors, ";")
}

// AddSummary holds counts from an archive run.
type AddSummary struct {
	Added   int
	Skipped int
}

// Add inserts papers that are not yet archived; papers whose title+authors
// key already exists are skipped.
func (s *Store) Add(ctx context.Context, papers []types.Paper) (AddSummary, error) {
	stmt, err := s.db.PrepareContext(ctx, `INSERT OR IGNORE INTO papers
		(dedup_key, title, abstract, authors, published, source, url,
		 journal, volume, issue, doi, pmid, categories, matched_keywords,
		 relevance_score, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return AddSummary{}, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	var summary AddSummary
	for _, p := range papers {
		authors, _ := json.Marshal(p.Authors)
		categories, _ := json.Marshal(p.Categories)
		matched, _ := json.Marshal(p.MatchedKeywords)

		res, err := stmt.ExecContext(ctx, dedupKey(p), p.Title, p.Abstract,
			string(authors), p.Published.Format("2006-01-02"), p.Source,
			p.URL, p.Journal, p.Volume, p.Issue, p.DOI, p.PMID,
			string(categories), string(matched), p.RelevanceScore, now)
		if err != nil {
			return summary, fmt.Errorf("inserting %q: %w", p.Title, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			summary.Added++
		} else {
			summary.Skipped++
		}
	}
	return summary, nil
}

// ListOptions filters archive listings.
type ListOptions struct {
	// Source keeps only papers from one source when non-empty.
	Source string

	// Since keeps papers published on or after this date when set.
	Since time.Time

	// Limit bounds the number of rows (0 means no bound).
	Limit int
}

// List returns archived papers, most relevant first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]types.Paper, error) {
	query := `SELECT title, abstract, authors, published, source, url,
		journal, volume, issue, doi, pmid, categories, matched_keywords,
		relevance_score FROM papers`
	var conds []string
	var args []any
	if opts.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, opts.Source)
	}
	if !opts.Since.IsZero() {
		conds = append(conds, "published >= ?")
		args = append(args, opts.Since.Format("2006-01-02"))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY relevance_score DESC, published DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var papers []types.Paper
	for rows.Next() {
		var p types.Paper
		var authors, published, categories, matched string
		if err := rows.Scan(&p.Title, &p.Abstract, &authors, &published,
			&p.Source, &p.URL, &p.Journal, &p.Volume, &p.Issue, &p.DOI,
			&p.PMID, &categories, &matched, &p.RelevanceScore); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		json.Unmarshal([]byte(authors), &p.Authors)
		json.Unmarshal([]byte(categories), &p.Categories)
		json.Unmarshal([]byte(matched), &p.MatchedKeywords)
		if t, err := time.Parse("2006-01-02", published); err == nil {
			p.Published = t
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// Count returns the number of archived papers.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM papers`).Scan(&n)
	return n, err
}
