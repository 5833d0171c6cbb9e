// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes a project and its records as YAML, JSON, or a
// CSL-YAML bibliography.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/figurescout/pkg/types"
)

// Format selects the export encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCSL  Format = "csl"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatYAML, FormatJSON, FormatCSL:
		return f, nil
	case "":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want yaml, json, or csl)", s)
	}
}

// Document is the YAML/JSON export of a project.
type Document struct {
	Project  types.Project  `json:"project" yaml:"project"`
	Counters types.Counters `json:"counters" yaml:"counters"`
	Records  []Record       `json:"records" yaml:"records"`
}

// Record is the exported view of one record. Full-text bodies are left
// out; mention and figure counts summarize them.
type Record struct {
	PMID      string                `json:"pmid" yaml:"pmid"`
	Ordinal   int                   `json:"ordinal" yaml:"ordinal"`
	Title     string                `json:"title" yaml:"title"`
	Authors   []string              `json:"authors,omitempty" yaml:"authors,omitempty"`
	Journal   string                `json:"journal,omitempty" yaml:"journal,omitempty"`
	Year      string                `json:"year,omitempty" yaml:"year,omitempty"`
	DOI       string                `json:"doi,omitempty" yaml:"doi,omitempty"`
	PMCID     string                `json:"pmc_id,omitempty" yaml:"pmc_id,omitempty"`
	State     types.ProcessingState `json:"state" yaml:"state"`
	Relevance float64               `json:"relevance" yaml:"relevance"`
	Mentions  int                   `json:"mentions" yaml:"mentions"`
	Figures   int                   `json:"figures" yaml:"figures"`
}

// NewDocument builds the export document. Counters are recomputed from recs.
func NewDocument(p types.Project, recs []types.Record) Document {
	doc := Document{Project: p, Counters: types.CountRecords(recs)}
	for _, r := range recs {
		er := Record{
			PMID:      r.PMID,
			Ordinal:   r.Ordinal,
			Title:     r.Title,
			Authors:   r.Authors,
			Journal:   r.Journal,
			Year:      r.Year,
			DOI:       r.DOI,
			PMCID:     r.PMCID,
			State:     r.State(),
			Relevance: r.Relevance.Score,
			Figures:   len(r.Figures),
		}
		if r.Fulltext != nil {
			er.Mentions = r.Fulltext.TotalMentions
			if len(r.Fulltext.Figures) > er.Figures {
				er.Figures = len(r.Fulltext.Figures)
			}
		}
		doc.Records = append(doc.Records, er)
	}
	return doc
}

// Write encodes the project in format f to w.
func Write(w io.Writer, f Format, p types.Project, recs []types.Record) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(NewDocument(p, recs)); err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		return nil
	case FormatCSL:
		return WriteCSL(w, recs)
	default:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		if err := enc.Encode(NewDocument(p, recs)); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return nil
	}
}
