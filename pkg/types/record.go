// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for figurescout: literature
// records and their full-text payloads, projects, counters, the side-cache
// snapshot, and per-component configuration.
package types

import "encoding/json"

// NoOrdinal marks a record whose original rank was not supplied by the
// source (for example a project reload from a server that omits it).
const NoOrdinal = -1

// ProcessingState is the enrichment state of a record. It only moves
// forward: Unprocessed, then Failed or Succeeded. A Failed record may later
// become Succeeded through the retry pass; nothing moves back to Unprocessed
// short of a full project reload.
type ProcessingState string

const (
	StateUnprocessed ProcessingState = "unprocessed"
	StateSucceeded   ProcessingState = "succeeded"
	StateFailed      ProcessingState = "failed"
)

// Attempted reports whether the state is Succeeded or Failed.
func (s ProcessingState) Attempted() bool {
	return s == StateSucceeded || s == StateFailed
}

// Relevance holds the keyword relevance score computed by the search endpoint.
type Relevance struct {
	Score    float64  `json:"score" yaml:"score"`
	Mentions []string `json:"mentions,omitempty" yaml:"mentions,omitempty"`
	Contexts []string `json:"contexts,omitempty" yaml:"contexts,omitempty"`
}

// IsZero reports whether no relevance data is present.
func (r Relevance) IsZero() bool {
	return r.Score == 0 && len(r.Mentions) == 0 && len(r.Contexts) == 0
}

// Figure is a figure extracted from a full-text article.
type Figure struct {
	ID              string `json:"id" yaml:"id"`
	Label           string `json:"label" yaml:"label"`
	Caption         string `json:"caption" yaml:"caption"`
	MentionsKeyword bool   `json:"mentions_keyword" yaml:"mentions_keyword"`
	ImageURL        string `json:"imageUrl,omitempty" yaml:"image_url,omitempty"`
	Description     string `json:"description,omitempty" yaml:"description,omitempty"`
}

// KeywordMention is one occurrence of the search keyword inside a section
// of the full text, with surrounding context.
type KeywordMention struct {
	Section   string `json:"section" yaml:"section"`
	Context   string `json:"context" yaml:"context"`
	Paragraph string `json:"paragraph" yaml:"paragraph"`
	Position  int    `json:"position" yaml:"position"`
}

// FullText is the structured content returned by the extraction service
// for a record whose full text could be parsed.
type FullText struct {
	Methods         string           `json:"methods,omitempty" yaml:"methods,omitempty"`
	Results         string           `json:"results,omitempty" yaml:"results,omitempty"`
	Discussion      string           `json:"discussion,omitempty" yaml:"discussion,omitempty"`
	KeywordMentions []KeywordMention `json:"keyword_mentions" yaml:"keyword_mentions"`
	TotalMentions   int              `json:"total_mentions" yaml:"total_mentions"`
	Figures         []Figure         `json:"figures" yaml:"figures"`
}

// Record is one literature item tracked through search and enrichment.
// PMID is the stable identity; Ordinal is the rank assigned when the search
// response was received and never changes afterwards.
type Record struct {
	PMID     string   `json:"pmid" yaml:"pmid"`
	Ordinal  int      `json:"originalIndex" yaml:"original_index"`
	Title    string   `json:"title" yaml:"title"`
	Abstract string   `json:"abstract" yaml:"abstract"`
	Journal  string   `json:"journal" yaml:"journal"`
	Year     string   `json:"year" yaml:"year"`
	Date     string   `json:"date,omitempty" yaml:"date,omitempty"`
	Authors  []string `json:"authors" yaml:"authors"`
	DOI      string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	Keyword  string   `json:"keyword" yaml:"keyword"`

	Relevance Relevance `json:"relevance" yaml:"relevance"`
	Figures   []Figure  `json:"figures,omitempty" yaml:"figures,omitempty"`

	PMCID             string    `json:"pmc_id,omitempty" yaml:"pmc_id,omitempty"`
	PMCAvailable      bool      `json:"pmc_available" yaml:"pmc_available"`
	HasFulltext       bool      `json:"has_fulltext" yaml:"has_fulltext"`
	FulltextProcessed bool      `json:"fulltext_processed" yaml:"fulltext_processed"`
	Fulltext          *FullText `json:"fulltext,omitempty" yaml:"fulltext,omitempty"`
}

// UnmarshalJSON decodes a record and leaves Ordinal at NoOrdinal when the
// payload carries no originalIndex, so callers can tell "rank 0" from
// "rank unknown".
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	p := plain{Ordinal: NoOrdinal}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Record(p)
	return nil
}

// State derives the processing state. A full-text payload means the record
// succeeded; the processed flag without a payload means it was attempted and
// failed. HasFulltext is informational and does not drive the state, since
// search endpoints set it to advertise availability before any extraction.
func (r Record) State() ProcessingState {
	switch {
	case r.Fulltext != nil:
		return StateSucceeded
	case r.FulltextProcessed:
		return StateFailed
	default:
		return StateUnprocessed
	}
}

// Attempted reports whether the extraction service has produced an answer
// for this record, with or without usable full text.
func (r Record) Attempted() bool {
	return r.State().Attempted()
}
