// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package projectstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pdiddy/figurescout/internal/scout"
	"github.com/pdiddy/figurescout/pkg/types"
)

const projectsPath = "/api/projects"

// HTTPStore is a Store backed by the FigureScout server's project endpoints.
type HTTPStore struct {
	client *scout.Client
}

// NewHTTPStore wraps a backend client.
func NewHTTPStore(client *scout.Client) *HTTPStore {
	return &HTTPStore{client: client}
}

func projectPath(id string) string {
	return projectsPath + "/" + url.PathEscape(id)
}

// notFound maps a 404 from the server onto ErrProjectNotFound.
func notFound(id string, err error) error {
	if scout.StatusCode(err) == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return err
}

func (s *HTTPStore) CreateProject(ctx context.Context, p types.NewProject) (types.Project, error) {
	if err := validateNew(p); err != nil {
		return types.Project{}, err
	}
	var resp struct {
		ProjectID string `json:"project_id"`
	}
	if err := s.client.Do(ctx, http.MethodPost, projectsPath, p, &resp); err != nil {
		return types.Project{}, fmt.Errorf("creating project: %w", err)
	}
	if resp.ProjectID == "" {
		return types.Project{}, fmt.Errorf("creating project: server returned no project_id")
	}
	created := time.Now().UTC()
	return types.Project{
		ID:           resp.ProjectID,
		Name:         p.Name,
		Keyword:      p.Keyword,
		Years:        p.Years,
		Description:  p.Description,
		SearchMethod: p.SearchMethod,
		CreatedAt:    created,
		UpdatedAt:    created,
	}, nil
}

func (s *HTTPStore) SaveProjectArticles(ctx context.Context, projectID string, recs []types.Record) (types.SaveResult, error) {
	req := struct {
		Articles []types.Record `json:"articles"`
	}{recs}
	var res types.SaveResult
	if err := s.client.Do(ctx, http.MethodPost, projectPath(projectID)+"/articles", req, &res); err != nil {
		return types.SaveResult{}, notFound(projectID, err)
	}
	return res, nil
}

func (s *HTTPStore) LoadProject(ctx context.Context, projectID string) (types.ProjectBundle, error) {
	var b types.ProjectBundle
	if err := s.client.Do(ctx, http.MethodGet, projectPath(projectID), nil, &b); err != nil {
		return types.ProjectBundle{}, notFound(projectID, err)
	}
	return b, nil
}

func (s *HTTPStore) ListProjects(ctx context.Context, limit, offset int) ([]types.Project, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var resp struct {
		Projects []types.Project `json:"projects"`
	}
	if err := s.client.Do(ctx, http.MethodGet, projectsPath+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return resp.Projects, nil
}

func (s *HTTPStore) DeleteProject(ctx context.Context, projectID string) error {
	return notFound(projectID, s.client.Do(ctx, http.MethodDelete, projectPath(projectID), nil, nil))
}

func (s *HTTPStore) UpdateProject(ctx context.Context, projectID string, u Update) error {
	if u.IsZero() {
		return nil
	}
	return notFound(projectID, s.client.Do(ctx, http.MethodPut, projectPath(projectID), u, nil))
}

// Close is a no-op; the client is owned by the caller.
func (s *HTTPStore) Close() error { return nil }
