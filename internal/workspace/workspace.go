// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workspace holds the active project and its record store and
// wires the enrichment driver, the retry pass, the session coordinator,
// the side-cache, and the project store together. Navigation (search,
// load, home) replaces the record store wholesale and revokes the write
// authority of any running session.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pdiddy/figurescout/internal/enrich"
	"github.com/pdiddy/figurescout/internal/logging"
	"github.com/pdiddy/figurescout/internal/projectstore"
	"github.com/pdiddy/figurescout/internal/records"
	"github.com/pdiddy/figurescout/internal/session"
	"github.com/pdiddy/figurescout/internal/sidecache"
	"github.com/pdiddy/figurescout/pkg/types"
)

// ErrNoActiveProject is returned by operations that need a loaded project.
var ErrNoActiveProject = errors.New("no active project; search or load a project first")

// Backend is the search and extraction service.
type Backend interface {
	Search(ctx context.Context, keyword string, years int) (*types.SearchResponse, error)
	enrich.Enricher
}

// Options configure a Workspace.
type Options struct {
	Backend  Backend
	Projects projectstore.Store
	Cache    sidecache.Cache
	Enrich   types.EnrichConfig
	Log      logging.Logger
}

// Workspace is the client-side state of one user.
type Workspace struct {
	backend  Backend
	projects projectstore.Store
	cache    sidecache.Cache
	coord    *session.Coordinator
	cfg      types.EnrichConfig
	log      logging.Logger

	mu      sync.Mutex
	project types.Project
	store   *records.Store
}

// New returns a workspace at home, with no active project.
func New(o Options) *Workspace {
	if o.Cache == nil {
		o.Cache = sidecache.Nop{}
	}
	if o.Log == nil {
		o.Log = logging.NewNop()
	}
	return &Workspace{
		backend:  o.Backend,
		projects: o.Projects,
		cache:    o.Cache,
		coord:    session.New(),
		cfg:      o.Enrich,
		log:      o.Log,
	}
}

func (w *Workspace) deps() enrich.Deps {
	return enrich.Deps{
		Client:   w.backend,
		Coord:    w.coord,
		Cache:    w.cache,
		Projects: w.projects,
		Log:      w.log,
	}
}

// activate makes p the active project. The coordinator is told first so a
// running session loses its authority before the store is replaced.
func (w *Workspace) activate(p types.Project, store *records.Store) {
	w.coord.Navigate(p.ID)
	w.mu.Lock()
	w.project = p
	w.store = store
	w.mu.Unlock()
}

// Target returns the active project and its store.
func (w *Workspace) Target() (enrich.Target, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.store == nil {
		return enrich.Target{}, ErrNoActiveProject
	}
	return enrich.Target{Project: w.project, Records: w.store}, nil
}

// Project returns the active project with counters recomputed from the
// in-memory records.
func (w *Workspace) Project() (types.Project, error) {
	t, err := w.Target()
	if err != nil {
		return types.Project{}, err
	}
	return withCounters(t.Project, t.Records.Counters()), nil
}

func withCounters(p types.Project, c types.Counters) types.Project {
	p.TotalArticles = c.Total
	p.ProcessedArticles = c.Processed
	p.FulltextArticles = c.Fulltext
	return p
}

// IsRunning reports whether an enrichment session is running for the
// active project.
func (w *Workspace) IsRunning() bool {
	return w.coord.IsRunning(w.coord.Active())
}

// Abort stops the running session at its next batch boundary.
func (w *Workspace) Abort() {
	w.coord.Abort()
}

// Search runs a keyword search and makes its result the active project.
// A new project is created for every search. Records take their ordinal
// from their position in the response.
func (w *Workspace) Search(ctx context.Context, keyword string, years int) (types.Project, error) {
	resp, err := w.backend.Search(ctx, keyword, years)
	if err != nil {
		return types.Project{}, fmt.Errorf("searching %q: %w", keyword, err)
	}
	store := records.New(resp.Results)
	if n := store.Rejected(); n > 0 {
		w.log.Warn("dropped search results without a unique pmid", logging.Int("dropped", n))
	}

	p, err := w.projects.CreateProject(ctx, types.NewProject{
		Name:         fmt.Sprintf("%s %s", keyword, time.Now().Format("2006-01-02 15:04")),
		Keyword:      keyword,
		Years:        years,
		SearchMethod: resp.SearchMethod,
	})
	if err != nil {
		return types.Project{}, fmt.Errorf("creating project: %w", err)
	}

	w.activate(p, store)
	snap := store.Snapshot()
	if _, err := w.projects.SaveProjectArticles(ctx, p.ID, snap); err != nil {
		w.log.Warn("saving search results failed", logging.String("project_id", p.ID), logging.Err(err))
	}
	w.writeCache(ctx, p, snap)

	w.log.Info("search complete",
		logging.String("project_id", p.ID),
		logging.String("keyword", keyword),
		logging.Int("records", store.Len()),
		logging.Bool("truncated", resp.IsTruncated))
	return withCounters(p, store.Counters()), nil
}

// LoadProject replaces the active record store with the project's stored
// records. Any running session is aborted first, including one for the
// same project.
func (w *Workspace) LoadProject(ctx context.Context, projectID string) (types.Project, error) {
	b, err := w.projects.LoadProject(ctx, projectID)
	if err != nil {
		return types.Project{}, fmt.Errorf("loading project %s: %w", projectID, err)
	}
	store := records.FromProject(b.Records)
	if n := store.Rejected(); n > 0 {
		w.log.Warn("dropped stored records without a unique pmid",
			logging.String("project_id", projectID), logging.Int("dropped", n))
	}

	w.activate(b.Project, store)
	w.writeCache(ctx, b.Project, store.Snapshot())
	return withCounters(b.Project, store.Counters()), nil
}

// Resume restores the last active project from the side-cache if the
// snapshot is fresh. When projectID is set the snapshot must belong to it.
// It returns sidecache.ErrMiss when there is nothing to restore.
func (w *Workspace) Resume(ctx context.Context, projectID string) (types.Project, error) {
	entry, err := w.cache.Load(ctx)
	if err != nil {
		return types.Project{}, err
	}
	if entry.ProjectID == "" || (projectID != "" && entry.ProjectID != projectID) {
		return types.Project{}, sidecache.ErrMiss
	}

	store := records.FromProject(entry.Results)
	p := types.Project{ID: entry.ProjectID, Keyword: entry.Keyword, Years: entry.Years}
	w.activate(p, store)
	w.log.Info("resumed from side-cache",
		logging.String("project_id", p.ID),
		logging.Int("records", store.Len()))
	return withCounters(p, store.Counters()), nil
}

// Home leaves the active project. A running session is aborted and the
// side-cache is cleared.
func (w *Workspace) Home(ctx context.Context) error {
	w.coord.Navigate("")
	w.mu.Lock()
	w.project = types.Project{}
	w.store = nil
	w.mu.Unlock()
	return w.cache.Clear(ctx)
}

func (w *Workspace) writeCache(ctx context.Context, p types.Project, snap []types.Record) {
	if err := w.cache.Save(ctx, sidecache.Entry(p, snap)); err != nil {
		w.log.Warn("side-cache write failed", logging.String("project_id", p.ID), logging.Err(err))
	}
}

// EnrichResult is the outcome of Enrich.
type EnrichResult struct {
	Run enrich.RunReport
	// Retry is set when the retry pass ran.
	Retry *enrich.RetryReport
	// RetryErr holds a retry pass failure. The driver's results stand.
	RetryErr error
}

// Enrich runs the batch driver over the active project and, when the run
// completes and retries are enabled, one retry pass over failed records.
// progress may be nil.
func (w *Workspace) Enrich(ctx context.Context, progress func(enrich.Progress)) (EnrichResult, error) {
	t, err := w.Target()
	if err != nil {
		return EnrichResult{}, err
	}
	sess, err := w.coord.Begin(t.Project.ID)
	if err != nil {
		return EnrichResult{}, err
	}

	driver := enrich.NewDriver(w.deps(), w.cfg)
	driver.Progress = progress

	var res EnrichResult
	res.Run, err = driver.Run(ctx, sess, t)
	if err != nil {
		w.coord.Finish(sess, session.Errored)
		return res, err
	}

	if res.Run.Outcome == enrich.OutcomeCompleted && w.cfg.Retry {
		rr, rerr := enrich.NewRetryPass(w.deps()).Run(ctx, sess, t)
		if errors.Is(rerr, enrich.ErrFatalRun) {
			w.coord.Finish(sess, session.Errored)
			return res, rerr
		}
		if rerr != nil {
			w.log.Warn("retry pass failed", logging.Err(rerr))
			res.RetryErr = rerr
		}
		if !rr.Skipped() {
			res.Retry = &rr
		}
		if rr.Aborted {
			res.Run.Outcome = enrich.OutcomeAborted
		}
	}

	state := session.Completed
	if res.Run.Outcome == enrich.OutcomeAborted {
		state = session.Aborted
	}
	w.coord.Finish(sess, state)
	return res, nil
}

// Retry runs the retry pass alone over the active project.
func (w *Workspace) Retry(ctx context.Context) (enrich.RetryReport, error) {
	t, err := w.Target()
	if err != nil {
		return enrich.RetryReport{}, err
	}
	sess, err := w.coord.Begin(t.Project.ID)
	if err != nil {
		return enrich.RetryReport{}, err
	}

	rr, err := enrich.NewRetryPass(w.deps()).Run(ctx, sess, t)
	switch {
	case err != nil:
		w.coord.Finish(sess, session.Errored)
	case rr.Aborted:
		w.coord.Finish(sess, session.Aborted)
	default:
		w.coord.Finish(sess, session.Completed)
	}
	return rr, err
}
