// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/figurescout/pkg/types"
)

// CSLItem is a bibliographic entry in CSL (Citation Style Language) form,
// consumable by Pandoc and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	PMID           string    `yaml:"PMID,omitempty"`
	PMCID          string    `yaml:"PMCID,omitempty"`
}

// CSLName is a person's name in CSL form.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate is a date in CSL date-parts form.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// WriteCSL writes records as a CSL-YAML list.
func WriteCSL(w io.Writer, recs []types.Record) error {
	items := make([]CSLItem, len(recs))
	for i, r := range recs {
		items[i] = toCSLItem(r)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encoding CSL: %w", err)
	}
	return nil
}

func toCSLItem(r types.Record) CSLItem {
	item := CSLItem{
		ID:             "pmid:" + r.PMID,
		Type:           "article-journal",
		Title:          r.Title,
		ContainerTitle: r.Journal,
		Abstract:       r.Abstract,
		DOI:            r.DOI,
		PMID:           r.PMID,
		PMCID:          r.PMCID,
	}
	for _, a := range r.Authors {
		if n := parseAuthorName(a); n != (CSLName{}) {
			item.Author = append(item.Author, n)
		}
	}
	if parts := dateParts(r); len(parts) > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{parts}}
	}
	return item
}

// dateParts reads the publication date as year[-month[-day]], falling
// back to the year field.
func dateParts(r types.Record) []int {
	var parts []int
	for _, field := range strings.FieldsFunc(r.Date, func(c rune) bool { return c == '-' || c == '/' }) {
		n, err := strconv.Atoi(field)
		if err != nil {
			break
		}
		parts = append(parts, n)
	}
	if len(parts) > 0 {
		return parts[:min(len(parts), 3)]
	}
	if y, err := strconv.Atoi(strings.TrimSpace(r.Year)); err == nil {
		return []int{y}
	}
	return nil
}

// parseAuthorName splits "Given Family" on the last space. PubMed's
// "Family Initials" form ("Smith JA") keeps the initials as given names.
// Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	head, tail := name[:idx], name[idx+1:]
	if isInitials(tail) {
		return CSLName{Family: head, Given: tail}
	}
	return CSLName{Given: head, Family: tail}
}

func isInitials(s string) bool {
	if len(s) == 0 || len(s) > 3 {
		return false
	}
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
