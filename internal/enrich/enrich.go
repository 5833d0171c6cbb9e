// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich walks a project's records through full-text extraction.
//
// Driver submits unprocessed records in fixed-size batches in ordinal
// order, merging each response into the record store and persisting the
// result before the next batch. RetryPass resubmits records that were
// attempted without usable full text. Both commit through the session
// coordinator, so results for a session that lost its project are dropped.
package enrich

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/figurescout/internal/logging"
	"github.com/pdiddy/figurescout/internal/records"
	"github.com/pdiddy/figurescout/internal/session"
	"github.com/pdiddy/figurescout/internal/sidecache"
	"github.com/pdiddy/figurescout/pkg/types"
)

// ErrFatalRun marks an unexpected failure outside the per-batch error
// handling. Batches committed before it remain merged and persisted.
var ErrFatalRun = errors.New("enrichment run failed; reload the project to continue")

// Enricher is the extraction backend.
type Enricher interface {
	EnrichBatch(ctx context.Context, batch []types.Record, keyword string) ([]types.Record, error)
	RetryFailed(ctx context.Context, failed []types.Record, keyword string) (types.RetryResult, error)
}

// ArticleSaver persists a project's records.
type ArticleSaver interface {
	SaveProjectArticles(ctx context.Context, projectID string, recs []types.Record) (types.SaveResult, error)
}

// Target is the project a run writes to and its record store.
type Target struct {
	Project types.Project
	Records *records.Store
}

// Deps are the collaborators shared by Driver and RetryPass.
type Deps struct {
	Client   Enricher
	Coord    *session.Coordinator
	Cache    sidecache.Cache
	Projects ArticleSaver
	Log      logging.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Cache == nil {
		d.Cache = sidecache.Nop{}
	}
	if d.Log == nil {
		d.Log = logging.NewNop()
	}
	return d
}

// stopped reports whether the run must stop at this batch boundary.
func (d Deps) stopped(ctx context.Context, sess *session.Session) bool {
	return ctx.Err() != nil || sess.Aborted() || !d.Coord.Owns(sess)
}

// commit merges incoming into the target and rewrites the side-cache while
// holding the coordinator lock. Every returned record counts as attempted. It returns session.ErrStale when the
// session no longer owns the active project; nothing is written then.
func (d Deps) commit(ctx context.Context, sess *session.Session, t Target, incoming []types.Record) (records.MergeResult, []types.Record, error) {
	var (
		res  records.MergeResult
		snap []types.Record
	)
	err := d.Coord.Commit(sess, func() error {
		res = t.Records.MergeAttempted(incoming)
		snap = t.Records.Snapshot()
		if err := d.Cache.Save(ctx, sidecache.Entry(t.Project, snap)); err != nil {
			d.Log.Warn("side-cache write failed", logging.String("project_id", t.Project.ID), logging.Err(err))
		}
		return nil
	})
	if err != nil {
		return records.MergeResult{}, nil, err
	}
	if res.Unknown > 0 {
		d.Log.Warn("ignored results for unknown records",
			logging.String("project_id", t.Project.ID), logging.Int("unknown", res.Unknown))
	}
	return res, snap, nil
}

// persist writes the snapshot to the project store. A failure is logged and
// not returned: memory stays authoritative and the next save carries the
// full snapshot again.
func (d Deps) persist(ctx context.Context, t Target, snap []types.Record) {
	if d.Projects == nil {
		return
	}
	if _, err := d.Projects.SaveProjectArticles(ctx, t.Project.ID, snap); err != nil {
		d.Log.Warn("saving project records failed",
			logging.String("project_id", t.Project.ID), logging.Err(err))
	}
}

// recoverFatal converts a panic into ErrFatalRun.
func recoverFatal(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrFatalRun, r)
	}
}
