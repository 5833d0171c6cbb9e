// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package projectstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/figurescout/pkg/types"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "projects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestProject(t *testing.T, s Store, keyword string) types.Project {
	t.Helper()
	p, err := s.CreateProject(context.Background(), types.NewProject{
		Name: keyword + " study", Keyword: keyword, Years: 3, Description: "test",
	})
	require.NoError(t, err)
	return p
}

func sampleRecords() []types.Record {
	return []types.Record{
		{PMID: "100", Ordinal: 0, Title: "first", Authors: []string{"Ada"}, Year: "2024",
			FulltextProcessed: true, HasFulltext: true,
			Relevance: types.Relevance{Score: 3, Mentions: []string{"DepMap"}},
			Fulltext:  &types.FullText{Methods: "methods", TotalMentions: 2}},
		{PMID: "200", Ordinal: 1, Title: "second", FulltextProcessed: true},
		{PMID: "300", Ordinal: 2, Title: "third", PMCID: "PMC3", PMCAvailable: true},
	}
}

func TestCreateProject(t *testing.T) {
	s := openTestStore(t)
	p := createTestProject(t, s, "DepMap")

	assert.Len(t, p.ID, projectIDLen)
	assert.Equal(t, "DepMap", p.Keyword)
	assert.False(t, p.CreatedAt.IsZero())

	_, err := s.CreateProject(context.Background(), types.NewProject{Name: "x"})
	assert.Error(t, err)
}

func TestCreateProjectPersistsSearchMethod(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p, err := s.CreateProject(ctx, types.NewProject{Name: "n", Keyword: "GTEx", Years: 2, SearchMethod: "pubmed"})
	require.NoError(t, err)
	assert.Equal(t, "pubmed", p.SearchMethod)

	b, err := s.LoadProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "pubmed", b.Project.SearchMethod)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "DepMap")

	res, err := s.SaveProjectArticles(ctx, p.ID, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, 3, res.SavedCount)
	assert.Equal(t, types.Counters{Total: 3, Processed: 2, Fulltext: 1, Failed: 1}, res.Stats)

	b, err := s.LoadProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Project.TotalArticles)
	assert.Equal(t, 2, b.Project.ProcessedArticles)
	assert.Equal(t, 1, b.Project.FulltextArticles)
	require.Len(t, b.Records, 3)

	first := b.Records[0]
	assert.Equal(t, "100", first.PMID)
	assert.Equal(t, 0, first.Ordinal)
	assert.Equal(t, []string{"Ada"}, first.Authors)
	assert.Equal(t, 3.0, first.Relevance.Score)
	require.NotNil(t, first.Fulltext)
	assert.Equal(t, "methods", first.Fulltext.Methods)
	assert.Equal(t, types.StateSucceeded, first.State())

	assert.Equal(t, types.StateFailed, b.Records[1].State())
	assert.Equal(t, types.StateUnprocessed, b.Records[2].State())
	assert.Equal(t, "PMC3", b.Records[2].PMCID)
	assert.True(t, b.Records[2].PMCAvailable)
}

func TestSaveIsIdempotentUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "GTEx")

	_, err := s.SaveProjectArticles(ctx, p.ID, sampleRecords())
	require.NoError(t, err)
	res, err := s.SaveProjectArticles(ctx, p.ID, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stats.Total)

	b, err := s.LoadProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, b.Records, 3)
}

func TestSaveKeepsOrdinalAndFulltext(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "TCGA")

	_, err := s.SaveProjectArticles(ctx, p.ID, sampleRecords())
	require.NoError(t, err)

	// A later copy with a different ordinal and no payload changes neither.
	stale := types.Record{PMID: "100", Ordinal: 9, Title: "first (renamed)", FulltextProcessed: true}
	_, err = s.SaveProjectArticles(ctx, p.ID, []types.Record{stale})
	require.NoError(t, err)

	b, err := s.LoadProject(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "100", b.Records[0].PMID)
	assert.Equal(t, 0, b.Records[0].Ordinal)
	assert.Equal(t, "first (renamed)", b.Records[0].Title)
	require.NotNil(t, b.Records[0].Fulltext)
}

func TestLoadOrdersByOrdinal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, s, "UKB")

	recs := []types.Record{
		{PMID: "c", Ordinal: 2, Title: "c"},
		{PMID: "x", Ordinal: types.NoOrdinal, Title: "x"},
		{PMID: "a", Ordinal: 0, Title: "a"},
		{PMID: "b", Ordinal: 1, Title: "b"},
	}
	_, err := s.SaveProjectArticles(ctx, p.ID, recs)
	require.NoError(t, err)

	b, err := s.LoadProject(ctx, p.ID)
	require.NoError(t, err)
	var got []string
	for _, r := range b.Records {
		got = append(got, r.PMID)
	}
	assert.Equal(t, []string{"a", "b", "c", "x"}, got)
	assert.Equal(t, types.NoOrdinal, b.Records[3].Ordinal)
}

func TestUnknownProject(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LoadProject(ctx, "nope")
	assert.ErrorIs(t, err, ErrProjectNotFound)
	_, err = s.SaveProjectArticles(ctx, "nope", sampleRecords())
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.ErrorIs(t, s.DeleteProject(ctx, "nope"), ErrProjectNotFound)
	name := "n"
	assert.ErrorIs(t, s.UpdateProject(ctx, "nope", Update{Name: &name}), ErrProjectNotFound)
}

func TestListDeleteUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := createTestProject(t, s, "A")
	time.Sleep(2 * time.Millisecond)
	newer := createTestProject(t, s, "B")

	list, err := s.ListProjects(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	time.Sleep(2 * time.Millisecond)
	name, desc := "renamed", "new description"
	require.NoError(t, s.UpdateProject(ctx, older.ID, Update{Name: &name, Description: &desc}))
	require.NoError(t, s.UpdateProject(ctx, older.ID, Update{}))

	list, err = s.ListProjects(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, older.ID, list[0].ID)
	assert.Equal(t, "renamed", list[0].Name)
	assert.Equal(t, "new description", list[0].Description)

	_, err = s.SaveProjectArticles(ctx, older.ID, sampleRecords())
	require.NoError(t, err)
	require.NoError(t, s.DeleteProject(ctx, older.ID))

	_, err = s.LoadProject(ctx, older.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)

	var orphans int
	require.NoError(t, s.db.QueryRow(`SELECT count(*) FROM articles WHERE project_id = ?`, older.ID).Scan(&orphans))
	assert.Zero(t, orphans)
}

func TestNewSelectsBackend(t *testing.T) {
	st, err := New(types.ProjectStoreConfig{
		Backend: types.ProjectStoreSQLite,
		Path:    filepath.Join(t.TempDir(), "p.db"),
	}, nil)
	require.NoError(t, err)
	defer st.Close()
	assert.IsType(t, &SQLiteStore{}, st)

	_, err = New(types.ProjectStoreConfig{Backend: types.ProjectStoreHTTP}, nil)
	assert.Error(t, err)

	_, err = New(types.ProjectStoreConfig{Backend: "mongo"}, nil)
	assert.Error(t, err)
}
