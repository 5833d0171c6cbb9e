// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package projectstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/figurescout/pkg/types"
)

// DefaultDBPath is the SQLite database used when none is configured.
const DefaultDBPath = ".figurescout/projects.db"

// projectIDLen is the length of generated project ids.
const projectIDLen = 8

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and creates the
// schema if it does not exist.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultDBPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer; WAL lets readers proceed.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			project_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			keyword TEXT NOT NULL,
			years INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			total_articles INTEGER DEFAULT 0,
			processed_articles INTEGER DEFAULT 0,
			fulltext_articles INTEGER DEFAULT 0,
			search_method TEXT,
			description TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT NOT NULL REFERENCES projects(project_id) ON DELETE CASCADE,
			pmid TEXT NOT NULL,
			original_index INTEGER NOT NULL DEFAULT -1,
			pmc_id TEXT,
			title TEXT NOT NULL,
			abstract TEXT,
			journal TEXT,
			year TEXT,
			date TEXT,
			authors TEXT,
			doi TEXT,
			keyword TEXT,
			relevance_data TEXT,
			figures_data TEXT,
			has_fulltext BOOLEAN DEFAULT 0,
			pmc_available BOOLEAN DEFAULT 0,
			fulltext_processed BOOLEAN DEFAULT 0,
			fulltext_data TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(project_id, pmid)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_project_id ON articles(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_pmid ON articles(pmid)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_updated_at ON projects(updated_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func timestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func (s *SQLiteStore) CreateProject(ctx context.Context, np types.NewProject) (types.Project, error) {
	if err := validateNew(np); err != nil {
		return types.Project{}, err
	}
	now := time.Now().UTC()
	p := types.Project{
		ID:           uuid.NewString()[:projectIDLen],
		Name:         np.Name,
		Keyword:      np.Keyword,
		Years:        np.Years,
		Description:  np.Description,
		SearchMethod: np.SearchMethod,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (project_id, name, keyword, years, created_at, updated_at, description, search_method)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Keyword, p.Years, timestamp(now), timestamp(now), p.Description, p.SearchMethod)
	if err != nil {
		return types.Project{}, fmt.Errorf("inserting project: %w", err)
	}
	return p, nil
}

const upsertArticle = `
INSERT INTO articles
	(project_id, pmid, original_index, pmc_id, title, abstract, journal, year, date,
	 authors, doi, keyword, relevance_data, figures_data, has_fulltext, pmc_available,
	 fulltext_processed, fulltext_data, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(project_id, pmid) DO UPDATE SET
	original_index = CASE WHEN articles.original_index < 0 THEN excluded.original_index ELSE articles.original_index END,
	pmc_id = excluded.pmc_id,
	title = excluded.title,
	abstract = excluded.abstract,
	journal = excluded.journal,
	year = excluded.year,
	date = excluded.date,
	authors = excluded.authors,
	doi = excluded.doi,
	relevance_data = excluded.relevance_data,
	figures_data = excluded.figures_data,
	has_fulltext = excluded.has_fulltext,
	pmc_available = excluded.pmc_available,
	fulltext_processed = excluded.fulltext_processed,
	fulltext_data = COALESCE(excluded.fulltext_data, articles.fulltext_data),
	updated_at = excluded.updated_at`

const refreshCounters = `
UPDATE projects SET
	total_articles = (SELECT COUNT(*) FROM articles WHERE project_id = ?1),
	processed_articles = (SELECT COUNT(*) FROM articles WHERE project_id = ?1
		AND (fulltext_processed = 1 OR fulltext_data IS NOT NULL)),
	fulltext_articles = (SELECT COUNT(*) FROM articles WHERE project_id = ?1 AND fulltext_data IS NOT NULL),
	updated_at = ?2
WHERE project_id = ?1`

// SaveProjectArticles upserts recs by PMID inside one transaction and
// recomputes the project's counters with COUNT queries. A stored ordinal is
// never overwritten and stored full text is never cleared.
func (s *SQLiteStore) SaveProjectArticles(ctx context.Context, projectID string, recs []types.Record) (types.SaveResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.SaveResult{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := projectExists(ctx, tx, projectID); err != nil {
		return types.SaveResult{}, err
	}

	stmt, err := tx.PrepareContext(ctx, upsertArticle)
	if err != nil {
		return types.SaveResult{}, fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	now := timestamp(time.Now())
	saved := 0
	for _, r := range recs {
		if r.PMID == "" {
			continue
		}
		authors, relevance, figures, fulltext, err := encodeColumns(r)
		if err != nil {
			return types.SaveResult{}, fmt.Errorf("encoding record %s: %w", r.PMID, err)
		}
		_, err = stmt.ExecContext(ctx,
			projectID, r.PMID, r.Ordinal, nullable(r.PMCID), r.Title, r.Abstract, r.Journal, r.Year, r.Date,
			authors, r.DOI, r.Keyword, relevance, figures, r.HasFulltext, r.PMCAvailable,
			r.Attempted(), fulltext, now, now)
		if err != nil {
			return types.SaveResult{}, fmt.Errorf("upserting record %s: %w", r.PMID, err)
		}
		saved++
	}

	if _, err := tx.ExecContext(ctx, refreshCounters, projectID, now); err != nil {
		return types.SaveResult{}, fmt.Errorf("updating counters: %w", err)
	}
	p, err := scanProject(tx.QueryRowContext(ctx, selectProject+` WHERE project_id = ?`, projectID))
	if err != nil {
		return types.SaveResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.SaveResult{}, fmt.Errorf("committing: %w", err)
	}
	return types.SaveResult{SavedCount: saved, Stats: p.Counters()}, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func projectExists(ctx context.Context, q queryer, projectID string) error {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT count(*) FROM projects WHERE project_id = ?`, projectID).Scan(&n); err != nil {
		return fmt.Errorf("checking project: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func encodeColumns(r types.Record) (authors, relevance, figures string, fulltext sql.NullString, err error) {
	a, err := json.Marshal(nonNil(r.Authors))
	if err != nil {
		return
	}
	rel, err := json.Marshal(r.Relevance)
	if err != nil {
		return
	}
	fig, err := json.Marshal(r.Figures)
	if err != nil {
		return
	}
	if r.Fulltext != nil {
		ft, ferr := json.Marshal(r.Fulltext)
		if ferr != nil {
			err = ferr
			return
		}
		fulltext = sql.NullString{String: string(ft), Valid: true}
	}
	return string(a), string(rel), string(fig), fulltext, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

const selectProject = `SELECT project_id, name, keyword, years, created_at, updated_at,
	total_articles, processed_articles, fulltext_articles,
	COALESCE(search_method, ''), COALESCE(description, '') FROM projects`

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (types.Project, error) {
	var p types.Project
	var created, updated string
	err := row.Scan(&p.ID, &p.Name, &p.Keyword, &p.Years, &created, &updated,
		&p.TotalArticles, &p.ProcessedArticles, &p.FulltextArticles, &p.SearchMethod, &p.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Project{}, ErrProjectNotFound
	}
	if err != nil {
		return types.Project{}, fmt.Errorf("scanning project: %w", err)
	}
	p.CreatedAt, _ = time.Parse(timeLayout, created)
	p.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return p, nil
}

// LoadProject returns the project and its records ordered by stored ordinal.
// Records saved without an ordinal follow the others in insertion order.
func (s *SQLiteStore) LoadProject(ctx context.Context, projectID string) (types.ProjectBundle, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, selectProject+` WHERE project_id = ?`, projectID))
	if errors.Is(err, ErrProjectNotFound) {
		return types.ProjectBundle{}, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	if err != nil {
		return types.ProjectBundle{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT pmid, original_index, COALESCE(pmc_id, ''), title, COALESCE(abstract, ''),
			COALESCE(journal, ''), COALESCE(year, ''), COALESCE(date, ''), COALESCE(authors, ''),
			COALESCE(doi, ''), COALESCE(keyword, ''), COALESCE(relevance_data, ''),
			COALESCE(figures_data, ''), has_fulltext, pmc_available, fulltext_processed, fulltext_data
		FROM articles WHERE project_id = ?
		ORDER BY original_index < 0, original_index, id`, projectID)
	if err != nil {
		return types.ProjectBundle{}, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var recs []types.Record
	for rows.Next() {
		var (
			r                           types.Record
			authors, relevance, figures string
			fulltext                    sql.NullString
		)
		if err := rows.Scan(&r.PMID, &r.Ordinal, &r.PMCID, &r.Title, &r.Abstract,
			&r.Journal, &r.Year, &r.Date, &authors,
			&r.DOI, &r.Keyword, &relevance,
			&figures, &r.HasFulltext, &r.PMCAvailable, &r.FulltextProcessed, &fulltext); err != nil {
			return types.ProjectBundle{}, fmt.Errorf("scanning record: %w", err)
		}
		if err := decodeColumns(&r, authors, relevance, figures, fulltext); err != nil {
			return types.ProjectBundle{}, fmt.Errorf("decoding record %s: %w", r.PMID, err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return types.ProjectBundle{}, fmt.Errorf("iterating records: %w", err)
	}
	return types.ProjectBundle{Project: p, Records: recs}, nil
}

func decodeColumns(r *types.Record, authors, relevance, figures string, fulltext sql.NullString) error {
	if authors != "" {
		if err := json.Unmarshal([]byte(authors), &r.Authors); err != nil {
			return err
		}
	}
	if relevance != "" {
		if err := json.Unmarshal([]byte(relevance), &r.Relevance); err != nil {
			return err
		}
	}
	if figures != "" && figures != "null" {
		if err := json.Unmarshal([]byte(figures), &r.Figures); err != nil {
			return err
		}
	}
	if fulltext.Valid {
		r.Fulltext = &types.FullText{}
		if err := json.Unmarshal([]byte(fulltext.String), r.Fulltext); err != nil {
			return err
		}
	}
	return nil
}

// ListProjects returns projects most recently updated first.
func (s *SQLiteStore) ListProjects(ctx context.Context, limit, offset int) ([]types.Project, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		selectProject+` ORDER BY updated_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var out []types.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProject removes the project; its records go with it by cascade.
func (s *SQLiteStore) DeleteProject(ctx context.Context, projectID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE project_id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	return nil
}

// UpdateProject sets the non-nil fields of u and bumps updated_at.
func (s *SQLiteStore) UpdateProject(ctx context.Context, projectID string, u Update) error {
	if u.IsZero() {
		return nil
	}
	var (
		sets []string
		args []any
	)
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, timestamp(time.Now()), projectID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET `+strings.Join(sets, ", ")+` WHERE project_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	return nil
}
