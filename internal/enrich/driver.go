// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/pdiddy/figurescout/internal/logging"
	"github.com/pdiddy/figurescout/internal/session"
	"github.com/pdiddy/figurescout/pkg/types"
)

// DefaultBatchSize is the number of records per enrichBatch call.
const DefaultBatchSize = 10

// Outcome is how a driver run ended.
type Outcome string

const (
	// OutcomeCompleted means every planned batch was tried.
	OutcomeCompleted Outcome = "completed"
	// OutcomeAborted means the session was aborted or lost its project.
	OutcomeAborted Outcome = "aborted"
	// OutcomeAlreadyComplete means there was nothing to submit.
	OutcomeAlreadyComplete Outcome = "already_complete"
)

// RunReport summarizes a driver run.
type RunReport struct {
	Outcome Outcome
	// Planned is the number of batches planned at the start of the run.
	Planned int
	// Committed is the number of batches whose results were merged.
	Committed int
	// FailedBatches is the number of batches whose call failed.
	FailedBatches int
	// Discarded is the number of responses dropped because the session
	// lost its project while the call was in flight.
	Discarded int
	// Attempted and Succeeded count records that changed state in this run.
	Attempted int
	Succeeded int
	// Counters are recomputed from the store when the run ended.
	Counters types.Counters
}

// Total returns the number of batches that were submitted.
func (r RunReport) Total() int {
	return r.Committed + r.FailedBatches + r.Discarded
}

// HasFailures reports whether any batch failed.
func (r RunReport) HasFailures() bool {
	return r.FailedBatches > 0
}

// Progress is reported after each committed batch.
type Progress struct {
	Batch    int
	Batches  int
	Counters types.Counters
}

// Driver submits unprocessed records for extraction in ordinal order.
type Driver struct {
	Deps
	BatchSize  int
	BatchDelay time.Duration
	// Progress, when set, is called after each committed batch.
	Progress func(Progress)
}

// NewDriver returns a driver configured by cfg.
func NewDriver(deps Deps, cfg types.EnrichConfig) *Driver {
	size := cfg.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Driver{
		Deps:       deps.withDefaults(),
		BatchSize:  size,
		BatchDelay: cfg.BatchDelay,
	}
}

// plan partitions the ids of the unprocessed records into batches.
func plan(recs []types.Record, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(recs); start += size {
		end := min(start+size, len(recs))
		ids := make([]string, 0, end-start)
		for _, r := range recs[start:end] {
			ids = append(ids, r.PMID)
		}
		batches = append(batches, ids)
	}
	return batches
}

// Run drives sess over the target's unprocessed records. Batches are fixed
// when the run starts; each is re-filtered before submission so a record
// attempted in the meantime is never resubmitted. A failed batch is logged
// and skipped; its records stay unprocessed for a later run. An abort, a
// lost project, or a cancelled ctx ends the run at the next batch boundary
// with OutcomeAborted and no error.
func (d *Driver) Run(ctx context.Context, sess *session.Session, t Target) (report RunReport, err error) {
	defer recoverFatal(&err)
	defer func() { report.Counters = t.Records.Counters() }()

	log := d.Log.With(
		logging.String("session_id", sess.ID()),
		logging.String("project_id", t.Project.ID),
	)

	batches := plan(t.Records.Unprocessed(), d.BatchSize)
	report.Planned = len(batches)
	if len(batches) == 0 {
		report.Outcome = OutcomeAlreadyComplete
		return report, nil
	}
	log.Info("enrichment started", logging.Int("batches", len(batches)), logging.Int("batch_size", d.BatchSize))

	for i, ids := range batches {
		if d.stopped(ctx, sess) {
			report.Outcome = OutcomeAborted
			log.Info("enrichment aborted", logging.Int("batch", i+1))
			return report, nil
		}

		batch := t.Records.PickUnprocessed(ids)
		if len(batch) == 0 {
			continue
		}

		results, callErr := d.Client.EnrichBatch(ctx, batch, t.Project.Keyword)
		if callErr != nil {
			if ctx.Err() != nil {
				report.Outcome = OutcomeAborted
				return report, nil
			}
			report.FailedBatches++
			log.Warn("batch failed",
				logging.Int("batch", i+1),
				logging.Int("records", len(batch)),
				logging.Err(callErr))
			continue
		}

		merged, snap, commitErr := d.commit(ctx, sess, t, results)
		if errors.Is(commitErr, session.ErrStale) {
			report.Discarded++
			report.Outcome = OutcomeAborted
			log.Info("discarded late batch result", logging.Int("batch", i+1))
			return report, nil
		}
		if commitErr != nil {
			return report, commitErr
		}
		d.persist(ctx, t, snap)

		report.Committed++
		report.Attempted += len(merged.Attempted)
		report.Succeeded += len(merged.Succeeded)
		counters := types.CountRecords(snap)
		log.Debug("batch committed",
			logging.Int("batch", i+1),
			logging.Int("attempted", len(merged.Attempted)),
			logging.Int("processed", counters.Processed),
			logging.Int("total", counters.Total))
		if d.Progress != nil {
			d.Progress(Progress{Batch: i + 1, Batches: len(batches), Counters: counters})
		}

		if i < len(batches)-1 && !d.pause(ctx) {
			report.Outcome = OutcomeAborted
			return report, nil
		}
	}

	report.Outcome = OutcomeCompleted
	log.Info("enrichment completed",
		logging.Int("committed", report.Committed),
		logging.Int("failed_batches", report.FailedBatches))
	return report, nil
}

// pause waits BatchDelay. It returns false if ctx ends first.
func (d *Driver) pause(ctx context.Context) bool {
	if d.BatchDelay <= 0 {
		return true
	}
	t := time.NewTimer(d.BatchDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
