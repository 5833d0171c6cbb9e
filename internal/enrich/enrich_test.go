// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/figurescout/internal/records"
	"github.com/pdiddy/figurescout/internal/scout"
	"github.com/pdiddy/figurescout/internal/session"
	"github.com/pdiddy/figurescout/internal/sidecache"
	"github.com/pdiddy/figurescout/pkg/types"
)

// fakeBackend records every call and answers through the supplied funcs.
type fakeBackend struct {
	mu      sync.Mutex
	batches [][]string
	retries [][]string

	batch func(call int, batch []types.Record) ([]types.Record, error)
	retry func(failed []types.Record) (types.RetryResult, error)
}

func ids(recs []types.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.PMID
	}
	return out
}

func (f *fakeBackend) EnrichBatch(_ context.Context, batch []types.Record, _ string) ([]types.Record, error) {
	f.mu.Lock()
	f.batches = append(f.batches, ids(batch))
	call := len(f.batches)
	f.mu.Unlock()
	if f.batch == nil {
		return succeedAll(batch), nil
	}
	return f.batch(call, batch)
}

func (f *fakeBackend) RetryFailed(_ context.Context, failed []types.Record, _ string) (types.RetryResult, error) {
	f.mu.Lock()
	f.retries = append(f.retries, ids(failed))
	f.mu.Unlock()
	if f.retry == nil {
		return types.RetryResult{}, nil
	}
	return f.retry(failed)
}

func (f *fakeBackend) batchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.batches))
	for i, b := range f.batches {
		out[i] = len(b)
	}
	return out
}

// fakeSaver records project store writes.
type fakeSaver struct {
	mu    sync.Mutex
	saves map[string]int
	last  map[string][]types.Record
	err   error
}

func newFakeSaver() *fakeSaver {
	return &fakeSaver{saves: map[string]int{}, last: map[string][]types.Record{}}
}

func (s *fakeSaver) SaveProjectArticles(_ context.Context, id string, recs []types.Record) (types.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return types.SaveResult{}, s.err
	}
	s.saves[id]++
	s.last[id] = recs
	return types.SaveResult{SavedCount: len(recs), Stats: types.CountRecords(recs)}, nil
}

func succeeded(r types.Record) types.Record {
	return types.Record{PMID: r.PMID, FulltextProcessed: true, HasFulltext: true,
		Fulltext: &types.FullText{Methods: "methods of " + r.PMID, TotalMentions: 1}}
}

func failed(r types.Record) types.Record {
	return types.Record{PMID: r.PMID, FulltextProcessed: true}
}

func succeedAll(batch []types.Record) []types.Record {
	out := make([]types.Record, len(batch))
	for i, r := range batch {
		out[i] = succeeded(r)
	}
	return out
}

func failAll(batch []types.Record) []types.Record {
	out := make([]types.Record, len(batch))
	for i, r := range batch {
		out[i] = failed(r)
	}
	return out
}

func newTarget(projectID string, n int) Target {
	recs := make([]types.Record, n)
	for i := range recs {
		recs[i] = types.Record{PMID: fmt.Sprintf("%s-%02d", projectID, i+1), Title: "t"}
	}
	return Target{
		Project: types.Project{ID: projectID, Keyword: "DepMap"},
		Records: records.New(recs),
	}
}

type harness struct {
	backend *fakeBackend
	saver   *fakeSaver
	cache   *sidecache.FileCache
	coord   *session.Coordinator
	driver  *Driver
	retry   *RetryPass
}

func newHarness(t *testing.T, backend *fakeBackend) *harness {
	t.Helper()
	h := &harness{
		backend: backend,
		saver:   newFakeSaver(),
		cache:   sidecache.NewFileCache(t.TempDir(), time.Hour),
		coord:   session.New(),
	}
	deps := Deps{Client: backend, Coord: h.coord, Cache: h.cache, Projects: h.saver}
	h.driver = NewDriver(deps, types.EnrichConfig{BatchSize: 10})
	h.retry = NewRetryPass(deps)
	return h
}

func (h *harness) begin(t *testing.T, projectID string) *session.Session {
	t.Helper()
	h.coord.Navigate(projectID)
	s, err := h.coord.Begin(projectID)
	require.NoError(t, err)
	return s
}

func TestDriverAllSucceed(t *testing.T) {
	h := newHarness(t, &fakeBackend{})
	target := newTarget("A", 25)
	sess := h.begin(t, "A")

	report, err := h.driver.Run(context.Background(), sess, target)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, report.Outcome)
	assert.Equal(t, []int{10, 10, 5}, h.backend.batchSizes())
	assert.Equal(t, 3, report.Committed)
	assert.Equal(t, 25, report.Attempted)
	assert.Equal(t, 25, report.Counters.Processed)
	assert.Equal(t, 0, report.Counters.Failed)
	assert.Equal(t, 3, h.saver.saves["A"])

	entry, err := h.cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", entry.ProjectID)
	assert.Equal(t, 25, entry.ProcessedCount)

	retry, err := h.retry.Run(context.Background(), sess, target)
	require.NoError(t, err)
	assert.True(t, retry.Skipped())
	assert.Empty(t, h.backend.retries)
}

func TestDriverFailedBatchLeavesRecordsUnprocessed(t *testing.T) {
	backend := &fakeBackend{}
	backend.batch = func(call int, batch []types.Record) ([]types.Record, error) {
		if call == 2 {
			return nil, &scout.TransportError{Method: "POST", Path: "/api/fulltext/batch", StatusCode: 502}
		}
		return succeedAll(batch), nil
	}
	h := newHarness(t, backend)
	target := newTarget("A", 12)

	report, err := h.driver.Run(context.Background(), h.begin(t, "A"), target)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, report.Outcome)
	assert.Equal(t, 1, report.FailedBatches)
	assert.True(t, report.HasFailures())
	assert.Equal(t, 10, report.Counters.Processed)
	assert.Equal(t, 2, report.Counters.Unprocessed())

	snap := target.Records.Snapshot()
	for _, r := range snap[:10] {
		assert.True(t, r.Attempted(), r.PMID)
	}
	for _, r := range snap[10:] {
		assert.Equal(t, types.StateUnprocessed, r.State(), r.PMID)
	}

	// A second run submits only the two left over.
	report, err = h.driver.Run(context.Background(), h.begin(t, "A"), target)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, report.Outcome)
	require.Len(t, h.backend.batches, 3)
	assert.Equal(t, []string{"A-11", "A-12"}, h.backend.batches[2])
	assert.Equal(t, 12, report.Counters.Processed)
}

func TestDriverAlreadyComplete(t *testing.T) {
	h := newHarness(t, &fakeBackend{})
	target := newTarget("A", 3)
	target.Records.Merge(succeedAll(target.Records.Snapshot()))

	report, err := h.driver.Run(context.Background(), h.begin(t, "A"), target)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyComplete, report.Outcome)
	assert.Empty(t, h.backend.batches)
}

func TestDriverNeverResubmitsAttempted(t *testing.T) {
	h := newHarness(t, &fakeBackend{})
	target := newTarget("A", 30)
	snap := target.Records.Snapshot()
	target.Records.Merge(failAll(snap[0:5]))
	target.Records.Merge(succeedAll(snap[12:15]))

	_, err := h.driver.Run(context.Background(), h.begin(t, "A"), target)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, b := range h.backend.batches {
		for _, id := range b {
			assert.False(t, seen[id], "resubmitted %s", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 22)
	assert.False(t, seen["A-01"])
	assert.False(t, seen["A-13"])
}

func TestDriverSubmitsInOrdinalOrder(t *testing.T) {
	h := newHarness(t, &fakeBackend{})
	// Reloaded records arrive in display order, not rank order.
	loaded := []types.Record{
		{PMID: "c", Ordinal: 2}, {PMID: "a", Ordinal: 0}, {PMID: "e", Ordinal: 4},
		{PMID: "b", Ordinal: 1}, {PMID: "d", Ordinal: 3},
	}
	target := Target{Project: types.Project{ID: "A"}, Records: records.FromProject(loaded)}
	h.driver.BatchSize = 2

	_, err := h.driver.Run(context.Background(), h.begin(t, "A"), target)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, h.backend.batches)
}

func TestDriverMissingResultsStayUnprocessed(t *testing.T) {
	backend := &fakeBackend{}
	backend.batch = func(_ int, batch []types.Record) ([]types.Record, error) {
		// Only every other record comes back; one unknown identity is mixed in.
		var out []types.Record
		for i, r := range batch {
			if i%2 == 0 {
				out = append(out, succeeded(r))
			}
		}
		return append(out, types.Record{PMID: "stranger", FulltextProcessed: true}), nil
	}
	h := newHarness(t, backend)
	target := newTarget("A", 10)

	report, err := h.driver.Run(context.Background(), h.begin(t, "A"), target)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Counters.Processed)
	assert.Equal(t, 10, target.Records.Len(), "enrichment never adds records")
	_, ok := target.Records.Get("stranger")
	assert.False(t, ok)
	assert.Equal(t, types.StateUnprocessed, must(target.Records.Get("A-02")).State())
}

func must(r types.Record, ok bool) types.Record {
	if !ok {
		panic("record not found")
	}
	return r
}

func TestDriverReturnedRecordWithoutFlagsIsFailed(t *testing.T) {
	backend := &fakeBackend{batch: func(_ int, batch []types.Record) ([]types.Record, error) {
		out := make([]types.Record, len(batch))
		for i, r := range batch {
			out[i] = types.Record{PMID: r.PMID, HasFulltext: false}
		}
		return out, nil
	}}
	h := newHarness(t, backend)
	target := newTarget("A", 5)
	ctx := context.Background()

	sess := h.begin(t, "A")
	report, err := h.driver.Run(ctx, sess, target)
	require.NoError(t, err)
	h.coord.Finish(sess, session.Completed)

	assert.Equal(t, OutcomeCompleted, report.Outcome)
	assert.Equal(t, 5, report.Attempted)
	assert.Equal(t, types.Counters{Total: 5, Processed: 5, Fulltext: 0, Failed: 5}, report.Counters)
	for _, r := range target.Records.Snapshot() {
		assert.Equal(t, types.StateFailed, r.State(), r.PMID)
	}

	// A second run has nothing to submit.
	sess = h.begin(t, "A")
	report, err = h.driver.Run(ctx, sess, target)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyComplete, report.Outcome)
	assert.Equal(t, []int{5}, h.backend.batchSizes())

	// The failures are handed to the retry pass.
	rr, err := h.retry.Run(ctx, sess, target)
	require.NoError(t, err)
	assert.Equal(t, 5, rr.Submitted)
	require.Len(t, backend.retries, 1)
	assert.Len(t, backend.retries[0], 5)
}

func TestDriverAbortAfterBatch(t *testing.T) {
	h := newHarness(t, &fakeBackend{})
	target := newTarget("A", 50)
	sess := h.begin(t, "A")
	h.driver.Progress = func(p Progress) {
		if p.Batch == 2 {
			h.coord.Abort()
		}
	}

	report, err := h.driver.Run(context.Background(), sess, target)
	require.NoError(t, err)

	assert.Equal(t, OutcomeAborted, report.Outcome)
	assert.Equal(t, 2, report.Committed)
	assert.Len(t, h.backend.batches, 2)
	assert.Equal(t, 20, report.Counters.Processed)
	assert.Equal(t, 30, report.Counters.Unprocessed())
	assert.Equal(t, 2, h.saver.saves["A"])
	assert.Equal(t, 20, types.CountRecords(h.saver.last["A"]).Processed)

	snap := target.Records.Snapshot()
	for i, r := range snap {
		assert.Equal(t, i < 20, r.Attempted(), r.PMID)
	}
}

func TestLateBatchFromOldProjectIsDiscarded(t *testing.T) {
	h := newHarness(t, nil)
	projectA := newTarget("A", 30)
	projectB := newTarget("B", 5)
	bBefore := projectB.Records.Snapshot()

	backend := &fakeBackend{}
	backend.batch = func(call int, batch []types.Record) ([]types.Record, error) {
		if call == 2 {
			// The user loads project B while this call is in flight.
			h.coord.Navigate("B")
			require.NoError(t, h.cache.Save(context.Background(), sidecache.Entry(projectB.Project, projectB.Records.Snapshot())))
		}
		return succeedAll(batch), nil
	}
	h.backend = backend
	h.driver.Client = backend

	report, err := h.driver.Run(context.Background(), h.begin(t, "A"), projectA)
	require.NoError(t, err)

	assert.Equal(t, OutcomeAborted, report.Outcome)
	assert.Equal(t, 1, report.Committed)
	assert.Equal(t, 1, report.Discarded)
	assert.Len(t, backend.batches, 2, "no batch is submitted after navigation")

	assert.Equal(t, bBefore, projectB.Records.Snapshot())
	for _, r := range projectB.Records.Snapshot() {
		assert.Contains(t, r.PMID, "B-")
	}
	assert.Equal(t, 10, projectA.Records.Counters().Processed, "late result is not merged")
	assert.Equal(t, 1, h.saver.saves["A"])
	assert.Zero(t, h.saver.saves["B"])

	entry, err := h.cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "B", entry.ProjectID, "side-cache still holds the active project")
}

func TestDriverContextCancelledIsAbort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := &fakeBackend{}
	backend.batch = func(call int, batch []types.Record) ([]types.Record, error) {
		if call == 2 {
			cancel()
			return nil, ctx.Err()
		}
		return succeedAll(batch), nil
	}
	h := newHarness(t, backend)
	target := newTarget("A", 30)

	report, err := h.driver.Run(ctx, h.begin(t, "A"), target)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, report.Outcome)
	assert.Zero(t, report.FailedBatches)
	assert.Equal(t, 10, report.Counters.Processed)
}

func TestDriverBatchDelayObservesContext(t *testing.T) {
	h := newHarness(t, &fakeBackend{})
	h.driver.BatchDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	h.driver.Progress = func(Progress) { cancel() }

	report, err := h.driver.Run(ctx, h.begin(t, "A"), newTarget("A", 20))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, report.Outcome)
	assert.Equal(t, 1, report.Committed)
}

func TestDriverPanicIsFatalButKeepsProgress(t *testing.T) {
	backend := &fakeBackend{}
	backend.batch = func(call int, batch []types.Record) ([]types.Record, error) {
		if call == 2 {
			panic("decoder blew up")
		}
		return succeedAll(batch), nil
	}
	h := newHarness(t, backend)
	target := newTarget("A", 25)

	report, err := h.driver.Run(context.Background(), h.begin(t, "A"), target)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFatalRun)
	assert.Contains(t, err.Error(), "decoder blew up")
	assert.Equal(t, 10, report.Counters.Processed)
	assert.Equal(t, 1, h.saver.saves["A"])
}

func TestDriverPersistFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, &fakeBackend{})
	h.saver.err = errors.New("database is locked")

	report, err := h.driver.Run(context.Background(), h.begin(t, "A"), newTarget("A", 15))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, report.Outcome)
	assert.Equal(t, 15, report.Counters.Processed)
}

func TestRetryPassPartialSuccess(t *testing.T) {
	backend := &fakeBackend{}
	backend.retry = func(failedRecs []types.Record) (types.RetryResult, error) {
		res := types.RetryResult{Processed: 3, Failed: 2}
		for i, r := range failedRecs {
			if i < 3 {
				res.Results = append(res.Results, succeeded(r))
			} else {
				res.Results = append(res.Results, failed(r))
			}
		}
		return res, nil
	}
	h := newHarness(t, backend)
	target := newTarget("A", 5)
	target.Records.Merge(failAll(target.Records.Snapshot()))
	sess := h.begin(t, "A")

	report, err := h.retry.Run(context.Background(), sess, target)
	require.NoError(t, err)

	require.Len(t, backend.retries, 1, "one combined request")
	assert.Equal(t, []string{"A-01", "A-02", "A-03", "A-04", "A-05"}, backend.retries[0])
	assert.Equal(t, 3, report.Processed())
	assert.Equal(t, 2, report.Failed())
	assert.Equal(t, 2, report.StillFailed)
	assert.Equal(t, 3, report.ServerProcessed)
	assert.Equal(t, types.Counters{Total: 5, Processed: 5, Fulltext: 3, Failed: 2}, report.Counters)
	assert.Equal(t, 1, h.saver.saves["A"])
}

func TestRetryPassAbsentRecordsUnchanged(t *testing.T) {
	backend := &fakeBackend{}
	backend.retry = func(failedRecs []types.Record) (types.RetryResult, error) {
		return types.RetryResult{Results: []types.Record{succeeded(failedRecs[0])}, Processed: 1}, nil
	}
	h := newHarness(t, backend)
	target := newTarget("A", 4)
	target.Records.Merge(failAll(target.Records.Snapshot()))

	report, err := h.retry.Run(context.Background(), h.begin(t, "A"), target)
	require.NoError(t, err)
	assert.Equal(t, 1, report.NewlySucceeded)
	assert.Equal(t, 3, report.Unchanged)
	assert.Zero(t, report.StillFailed)
	assert.Equal(t, 3, report.Counters.Failed)
}

func TestRetryPassNeverRegresses(t *testing.T) {
	backend := &fakeBackend{}
	backend.retry = func(failedRecs []types.Record) (types.RetryResult, error) {
		// The endpoint echoes records back with every flag cleared.
		var out []types.Record
		for _, r := range failedRecs {
			out = append(out, types.Record{PMID: r.PMID})
		}
		return types.RetryResult{Results: out, Failed: len(out)}, nil
	}
	h := newHarness(t, backend)
	target := newTarget("A", 3)
	target.Records.Merge(failAll(target.Records.Snapshot()))

	report, err := h.retry.Run(context.Background(), h.begin(t, "A"), target)
	require.NoError(t, err)
	assert.Equal(t, 3, report.StillFailed)
	assert.Equal(t, 3, target.Records.Counters().Failed)
}

func TestRetryPassTransportErrorChangesNothing(t *testing.T) {
	backend := &fakeBackend{}
	backend.retry = func([]types.Record) (types.RetryResult, error) {
		return types.RetryResult{}, &scout.TransportError{Method: "POST", Path: "/api/fulltext/retry", StatusCode: 500}
	}
	h := newHarness(t, backend)
	target := newTarget("A", 3)
	target.Records.Merge(failAll(target.Records.Snapshot()))

	_, err := h.retry.Run(context.Background(), h.begin(t, "A"), target)
	require.Error(t, err)
	assert.True(t, scout.IsTransport(err))
	assert.Equal(t, 3, target.Records.Counters().Failed)
	assert.Zero(t, h.saver.saves["A"])
}

func TestRetryPassAfterNavigationIsDiscarded(t *testing.T) {
	h := newHarness(t, nil)
	backend := &fakeBackend{}
	backend.retry = func(failedRecs []types.Record) (types.RetryResult, error) {
		h.coord.Navigate("B")
		var out []types.Record
		for _, r := range failedRecs {
			out = append(out, succeeded(r))
		}
		return types.RetryResult{Results: out}, nil
	}
	h.retry.Client = backend
	target := newTarget("A", 3)
	target.Records.Merge(failAll(target.Records.Snapshot()))

	report, err := h.retry.Run(context.Background(), h.begin(t, "A"), target)
	require.NoError(t, err)
	assert.True(t, report.Aborted)
	assert.Equal(t, 3, target.Records.Counters().Failed)
}
