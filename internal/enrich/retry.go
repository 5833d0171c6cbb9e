// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/figurescout/internal/logging"
	"github.com/pdiddy/figurescout/internal/session"
	"github.com/pdiddy/figurescout/pkg/types"
)

// RetryReport summarizes a retry pass.
type RetryReport struct {
	// Submitted is the number of failed records sent.
	Submitted int
	// NewlySucceeded gained full text.
	NewlySucceeded int
	// StillFailed came back without full text.
	StillFailed int
	// Unchanged were absent from the response and keep their failed state.
	Unchanged int
	// ServerProcessed and ServerFailed echo the counts the endpoint reported.
	ServerProcessed int
	ServerFailed    int
	// Aborted is set when the session lost its project and the response
	// was discarded.
	Aborted bool
	// Counters are recomputed from the store after the pass.
	Counters types.Counters
}

// Processed returns the number of records that succeeded on retry.
func (r RetryReport) Processed() int { return r.NewlySucceeded }

// Failed returns the number of submitted records that are still failed.
func (r RetryReport) Failed() int { return r.StillFailed + r.Unchanged }

// Skipped reports whether there was nothing to retry.
func (r RetryReport) Skipped() bool { return r.Submitted == 0 && !r.Aborted }

// RetryPass resubmits failed records in one combined request.
type RetryPass struct {
	Deps
}

// NewRetryPass returns a retry pass over deps.
func NewRetryPass(deps Deps) *RetryPass {
	return &RetryPass{Deps: deps.withDefaults()}
}

// Run collects the target's failed records in ordinal order, submits them
// once, and merges the response. A record never regresses: one that comes
// back without full text stays failed, and one absent from the response is
// left untouched. A transport failure is returned and changes nothing.
func (p *RetryPass) Run(ctx context.Context, sess *session.Session, t Target) (report RetryReport, err error) {
	defer recoverFatal(&err)
	defer func() { report.Counters = t.Records.Counters() }()

	failed := t.Records.Failed()
	if len(failed) == 0 {
		return report, nil
	}
	if p.stopped(ctx, sess) {
		report.Aborted = true
		return report, nil
	}
	report.Submitted = len(failed)

	log := p.Log.With(
		logging.String("session_id", sess.ID()),
		logging.String("project_id", t.Project.ID),
	)
	log.Info("retrying failed records", logging.Int("records", len(failed)))

	res, err := p.Client.RetryFailed(ctx, failed, t.Project.Keyword)
	if err != nil {
		return report, fmt.Errorf("retrying failed records: %w", err)
	}
	report.ServerProcessed = res.Processed
	report.ServerFailed = res.Failed

	returned := make(map[string]bool, len(res.Results))
	for _, r := range res.Results {
		returned[r.PMID] = true
	}

	merged, snap, err := p.commit(ctx, sess, t, res.Results)
	if errors.Is(err, session.ErrStale) {
		report.Aborted = true
		log.Info("discarded late retry result")
		return report, nil
	}
	if err != nil {
		return report, err
	}
	p.persist(ctx, t, snap)

	succeeded := make(map[string]bool, len(merged.Succeeded))
	for _, id := range merged.Succeeded {
		succeeded[id] = true
	}
	for _, r := range failed {
		switch {
		case succeeded[r.PMID]:
			report.NewlySucceeded++
		case returned[r.PMID]:
			report.StillFailed++
		default:
			report.Unchanged++
		}
	}

	log.Info("retry finished",
		logging.Int("succeeded", report.NewlySucceeded),
		logging.Int("still_failed", report.StillFailed),
		logging.Int("unchanged", report.Unchanged))
	return report, nil
}
