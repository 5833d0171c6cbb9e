// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package records

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/figurescout/pkg/types"
)

// SortBy selects a display order. Display sorting works on a copy and never
// touches the store's Ordinal order.
type SortBy string

const (
	SortOrdinal   SortBy = "ordinal"
	SortRelevance SortBy = "relevance"
	SortDate      SortBy = "date"
	SortJournal   SortBy = "journal"
)

// ParseSortBy validates a sort option name. The empty string means ordinal.
func ParseSortBy(s string) (SortBy, error) {
	switch SortBy(strings.ToLower(s)) {
	case "", SortOrdinal:
		return SortOrdinal, nil
	case SortRelevance:
		return SortRelevance, nil
	case SortDate:
		return SortDate, nil
	case SortJournal:
		return SortJournal, nil
	}
	return "", fmt.Errorf("unknown sort option %q: use ordinal, relevance, date, or journal", s)
}

// Sorted returns a display copy of the records. Relevance sorts by score
// descending, date newest first (date, falling back to year), journal
// alphabetically. Ties keep Ordinal order.
func (s *Store) Sorted(by SortBy) []types.Record {
	out := s.Snapshot()
	var less func(a, b types.Record) bool
	switch by {
	case SortRelevance:
		less = func(a, b types.Record) bool { return a.Relevance.Score > b.Relevance.Score }
	case SortDate:
		less = func(a, b types.Record) bool { return dateKey(a) > dateKey(b) }
	case SortJournal:
		less = func(a, b types.Record) bool { return a.Journal < b.Journal }
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func dateKey(r types.Record) string {
	if r.Date != "" {
		return r.Date
	}
	if r.Year != "" {
		return r.Year
	}
	return "0"
}
