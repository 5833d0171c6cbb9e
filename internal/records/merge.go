// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package records

import "github.com/pdiddy/figurescout/pkg/types"

// MergeResult summarizes one Merge call.
type MergeResult struct {
	// Matched is the number of incoming records whose identity exists in the store.
	Matched int
	// Unknown is the number of incoming records ignored because their
	// identity is not in the store. Enrichment never adds records.
	Unknown int
	// Attempted lists identities that moved out of Unprocessed.
	Attempted []string
	// Succeeded lists identities that gained a full-text payload.
	Succeeded []string
}

// Merge folds incoming records into the store by PMID. Every stored record
// is either updated from its match or left untouched. Ordinal and identity
// are never taken from the incoming copy, fields the incoming copy leaves
// empty keep their stored value, and state never moves backwards.
func (s *Store) Merge(incoming []types.Record) MergeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res MergeResult
	for _, in := range incoming {
		i, ok := s.index[in.PMID]
		if !ok || in.PMID == "" {
			res.Unknown++
			continue
		}
		res.Matched++

		before := s.recs[i].State()
		mergeRecord(&s.recs[i], in)
		after := s.recs[i].State()

		if before == types.StateUnprocessed && after.Attempted() {
			res.Attempted = append(res.Attempted, in.PMID)
		}
		if before != types.StateSucceeded && after == types.StateSucceeded {
			res.Succeeded = append(res.Succeeded, in.PMID)
		}
	}
	return res
}

// MergeAttempted folds an extraction response into the store. Every known
// identity present in incoming has been attempted, whatever flags the
// service set: with a full-text payload it succeeds, without one it fails.
// Identities absent from incoming are left untouched.
func (s *Store) MergeAttempted(incoming []types.Record) MergeResult {
	marked := make([]types.Record, len(incoming))
	for i, r := range incoming {
		r.FulltextProcessed = true
		marked[i] = r
	}
	return s.Merge(marked)
}

func mergeRecord(dst *types.Record, src types.Record) {
	setString(&dst.Title, src.Title)
	setString(&dst.Abstract, src.Abstract)
	setString(&dst.Journal, src.Journal)
	setString(&dst.Year, src.Year)
	setString(&dst.Date, src.Date)
	setString(&dst.DOI, src.DOI)
	setString(&dst.Keyword, src.Keyword)
	setString(&dst.PMCID, src.PMCID)

	if len(src.Authors) > 0 {
		dst.Authors = src.Authors
	}
	if !src.Relevance.IsZero() {
		dst.Relevance = src.Relevance
	}
	if len(src.Figures) > 0 {
		dst.Figures = src.Figures
	}

	dst.PMCAvailable = dst.PMCAvailable || src.PMCAvailable
	dst.HasFulltext = dst.HasFulltext || src.HasFulltext

	if src.Fulltext != nil {
		dst.Fulltext = src.Fulltext
	}
	if src.FulltextProcessed || src.Fulltext != nil {
		dst.FulltextProcessed = true
	}
	normalize(dst)
}

func setString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}
