// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package records holds the ordered record set of the active project and
// reconciles enrichment results into it by identity.
//
// Records are kept in Ordinal order. Ordinal is assigned once at ingestion
// and never derived from a display position, so the unprocessed subset can
// always be recovered in original rank order regardless of how the records
// are sorted for display.
package records

import (
	"sort"
	"sync"

	"github.com/pdiddy/figurescout/pkg/types"
)

// Store is a concurrency-safe, ordinal-ordered set of records keyed by PMID.
// After construction records are only ever updated in place through Merge;
// none are inserted, removed, or reordered.
type Store struct {
	mu       sync.RWMutex
	recs     []types.Record
	index    map[string]int
	rejected int
}

// New builds a store from a search response. Each record gets Ordinal equal
// to its position in results. Records without an identity, and repeats of
// an identity already seen, are rejected; their positions stay unused so the
// remaining ordinals still match the response.
func New(results []types.Record) *Store {
	s := &Store{index: make(map[string]int, len(results))}
	for i, r := range results {
		r.Ordinal = i
		s.add(r)
	}
	return s
}

// FromProject builds a store from a project reload. A record keeps its
// stored Ordinal when present; otherwise it falls back to its position in
// the returned list. Ties are broken by list position.
func FromProject(loaded []types.Record) *Store {
	s := &Store{index: make(map[string]int, len(loaded))}
	type positioned struct {
		rec types.Record
		pos int
	}
	ordered := make([]positioned, 0, len(loaded))
	for i, r := range loaded {
		if r.Ordinal < 0 {
			r.Ordinal = i
		}
		ordered = append(ordered, positioned{rec: r, pos: i})
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].rec.Ordinal != ordered[j].rec.Ordinal {
			return ordered[i].rec.Ordinal < ordered[j].rec.Ordinal
		}
		return ordered[i].pos < ordered[j].pos
	})
	for _, p := range ordered {
		s.add(p.rec)
	}
	return s
}

func (s *Store) add(r types.Record) {
	if r.PMID == "" {
		s.rejected++
		return
	}
	if _, dup := s.index[r.PMID]; dup {
		s.rejected++
		return
	}
	normalize(&r)
	s.index[r.PMID] = len(s.recs)
	s.recs = append(s.recs, r)
}

// normalize makes the flags agree with the payload: a record carrying full
// text has been processed and has full text.
func normalize(r *types.Record) {
	if r.Fulltext != nil {
		r.FulltextProcessed = true
		r.HasFulltext = true
	}
}

// Rejected returns how many input records were dropped at construction
// for a missing or duplicate identity.
func (s *Store) Rejected() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rejected
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

// Get returns the record with the given identity.
func (s *Store) Get(pmid string) (types.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[pmid]
	if !ok {
		return types.Record{}, false
	}
	return s.recs[i], true
}

// Snapshot returns a copy of all records in Ordinal order. Merge replaces
// slices and payload pointers rather than mutating them, so the copy is
// safe to read while enrichment continues.
func (s *Store) Snapshot() []types.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Record, len(s.recs))
	copy(out, s.recs)
	return out
}

// Unprocessed returns the records not yet attempted, in Ordinal order.
func (s *Store) Unprocessed() []types.Record {
	return s.filter(func(r types.Record) bool { return r.State() == types.StateUnprocessed })
}

// Failed returns the records attempted without usable full text, in Ordinal order.
func (s *Store) Failed() []types.Record {
	return s.filter(func(r types.Record) bool { return r.State() == types.StateFailed })
}

func (s *Store) filter(keep func(types.Record) bool) []types.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Record
	for _, r := range s.recs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// PickUnprocessed returns the records among ids that are still unprocessed,
// in Ordinal order. Unknown identities are skipped.
func (s *Store) PickUnprocessed(ids []string) []types.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := make([]int, 0, len(ids))
	for _, id := range ids {
		if i, ok := s.index[id]; ok && s.recs[i].State() == types.StateUnprocessed {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	out := make([]types.Record, len(idx))
	for k, i := range idx {
		out[k] = s.recs[i]
	}
	return out
}

// Counters recomputes the aggregate counters from the current records.
func (s *Store) Counters() types.Counters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.CountRecords(s.recs)
}
