// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Counters are the aggregate figures of a record set. They are always
// recomputed from the records themselves, never maintained incrementally.
type Counters struct {
	Total     int `json:"total" yaml:"total"`
	Processed int `json:"processed" yaml:"processed"`
	Fulltext  int `json:"fulltext" yaml:"fulltext"`
	Failed    int `json:"failed" yaml:"failed"`
}

// Unprocessed returns the number of records not yet attempted.
func (c Counters) Unprocessed() int {
	return c.Total - c.Processed
}

// Percent returns processed/total as an integer percentage.
func (c Counters) Percent() int {
	if c.Total == 0 {
		return 0
	}
	return c.Processed * 100 / c.Total
}

// CountRecords derives counters from a record set by processing state.
func CountRecords(records []Record) Counters {
	c := Counters{Total: len(records)}
	for _, r := range records {
		switch r.State() {
		case StateSucceeded:
			c.Processed++
			c.Fulltext++
		case StateFailed:
			c.Processed++
			c.Failed++
		}
	}
	return c
}

// Project is the server-side grouping of a search keyword, a years filter,
// and the records found for it. One project is created per search.
type Project struct {
	ID           string    `json:"project_id" yaml:"project_id"`
	Name         string    `json:"name" yaml:"name"`
	Keyword      string    `json:"keyword" yaml:"keyword"`
	Years        int       `json:"years" yaml:"years"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	SearchMethod string    `json:"search_method,omitempty" yaml:"search_method,omitempty"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`

	TotalArticles     int `json:"total_articles" yaml:"total_articles"`
	ProcessedArticles int `json:"processed_articles" yaml:"processed_articles"`
	FulltextArticles  int `json:"fulltext_articles" yaml:"fulltext_articles"`
}

// Counters returns the stored aggregate counters of the project.
func (p Project) Counters() Counters {
	return Counters{
		Total:     p.TotalArticles,
		Processed: p.ProcessedArticles,
		Fulltext:  p.FulltextArticles,
		Failed:    p.ProcessedArticles - p.FulltextArticles,
	}
}

// NewProject holds the fields needed to create a project.
type NewProject struct {
	Name         string `json:"name"`
	Keyword      string `json:"keyword"`
	Years        int    `json:"years"`
	Description  string `json:"description"`
	SearchMethod string `json:"search_method,omitempty"`
}

// ProjectBundle is a project with all of its records, as returned by a load.
type ProjectBundle struct {
	Project Project  `json:"project"`
	Records []Record `json:"articles"`
}

// SaveResult is the outcome of an idempotent article upsert.
type SaveResult struct {
	SavedCount int      `json:"saved_count"`
	Stats      Counters `json:"stats"`
}

// SearchResponse is the initial ordered record set for a keyword search.
type SearchResponse struct {
	Keyword           string   `json:"keyword"`
	Total             int      `json:"total"`
	Processed         int      `json:"processed"`
	FulltextAvailable int      `json:"fulltext_available"`
	SearchMethod      string   `json:"search_method,omitempty"`
	IsTruncated       bool     `json:"is_truncated,omitempty"`
	Results           []Record `json:"results"`
}

// RetryResult is the response of the failed-record retry endpoint.
type RetryResult struct {
	Results   []Record `json:"results"`
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
}

// CacheEntry is the side-cache snapshot of the active project. Timestamp is
// Unix milliseconds at write time and gates freshness on read.
type CacheEntry struct {
	Keyword        string   `json:"keyword"`
	Years          int      `json:"years"`
	ProjectID      string   `json:"project_id"`
	Results        []Record `json:"results"`
	TotalArticles  int      `json:"totalArticles"`
	ProcessedCount int      `json:"processedCount"`
	FulltextCount  int      `json:"fulltextCount"`
	Timestamp      int64    `json:"timestamp"`
}

// WrittenAt returns the entry timestamp as a time.Time.
func (e CacheEntry) WrittenAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}
