// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package projectstore persists projects and their records. The store is
// authoritative: a project reload replaces the in-memory record set with
// what it returns. Two backends exist: the FigureScout server (HTTPStore)
// and a local SQLite database (SQLiteStore).
package projectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/figurescout/internal/scout"
	"github.com/pdiddy/figurescout/pkg/types"
)

// DefaultListLimit is the page size used when ListProjects gets limit <= 0.
const DefaultListLimit = 50

// ErrProjectNotFound is returned for operations on an unknown project id.
var ErrProjectNotFound = errors.New("project not found")

// Update changes project metadata. Nil fields are left as they are.
type Update struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// IsZero reports whether the update changes nothing.
func (u Update) IsZero() bool {
	return u.Name == nil && u.Description == nil
}

// Store is the project persistence contract.
type Store interface {
	// CreateProject creates a new project. One project is created per search.
	CreateProject(ctx context.Context, p types.NewProject) (types.Project, error)
	// SaveProjectArticles upserts records by PMID and recomputes the
	// project's counters. Saving the same records twice is a no-op.
	SaveProjectArticles(ctx context.Context, projectID string, recs []types.Record) (types.SaveResult, error)
	// LoadProject returns the project with all of its records.
	LoadProject(ctx context.Context, projectID string) (types.ProjectBundle, error)
	// ListProjects returns projects, most recently updated first.
	ListProjects(ctx context.Context, limit, offset int) ([]types.Project, error)
	// DeleteProject removes a project and its records.
	DeleteProject(ctx context.Context, projectID string) error
	// UpdateProject changes project metadata.
	UpdateProject(ctx context.Context, projectID string, u Update) error
	// Close releases backend resources.
	Close() error
}

// New returns the Store selected by cfg. The http backend shares the
// backend client used for search and enrichment.
func New(cfg types.ProjectStoreConfig, client *scout.Client) (Store, error) {
	switch cfg.Backend {
	case types.ProjectStoreHTTP, "":
		if client == nil {
			return nil, fmt.Errorf("http project store needs a backend client")
		}
		return NewHTTPStore(client), nil
	case types.ProjectStoreSQLite:
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown project store backend %q", cfg.Backend)
	}
}

func validateNew(p types.NewProject) error {
	if p.Name == "" || p.Keyword == "" {
		return fmt.Errorf("project name and keyword are required")
	}
	return nil
}
