// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/figurescout/internal/httputil"
	"github.com/pdiddy/figurescout/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	c := New(types.APIConfig{
		BaseURL:    ts.URL + "/",
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "figurescout-test", MaxRetries: 2},
		Token:      "secret",
	}, nil)
	c.HTTP = ts.Client()
	return c
}

func TestNewDefaultsBaseURL(t *testing.T) {
	c := New(types.APIConfig{}, nil)
	assert.Equal(t, DefaultBaseURL, c.BaseURL)
}

func TestSearch(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, searchPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "figurescout-test", r.Header.Get("User-Agent"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "DepMap", body["keyword"])
		assert.Equal(t, float64(3), body["years"])

		w.Write([]byte(`{"keyword":"DepMap","total":2,"processed":0,"fulltext_available":1,
			"results":[{"pmid":"11","title":"A"},{"pmid":"22","title":"B","originalIndex":7}]}`))
	})

	resp, err := c.Search(context.Background(), "DepMap", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, types.NoOrdinal, resp.Results[0].Ordinal)
	assert.Equal(t, 7, resp.Results[1].Ordinal)
}

func TestSearchRejectsEmptyKeyword(t *testing.T) {
	c := New(types.APIConfig{}, nil)
	_, err := c.Search(context.Background(), "  ", 3)
	assert.Error(t, err)
}

func TestEnrichBatch(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, enrichBatchPath, r.URL.Path)
		var req fulltextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "TCGA", req.Keyword)
		require.Len(t, req.Articles, 2)

		json.NewEncoder(w).Encode(map[string]any{
			"results": []types.Record{{
				PMID:              req.Articles[0].PMID,
				FulltextProcessed: true,
				Fulltext:          &types.FullText{Methods: "m"},
			}},
		})
	})

	got, err := c.EnrichBatch(context.Background(), []types.Record{{PMID: "1"}, {PMID: "2"}}, "TCGA")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].PMID)
	assert.Equal(t, types.StateSucceeded, got[0].State())
}

func TestRetryFailed(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, retryPath, r.URL.Path)
		w.Write([]byte(`{"results":[{"pmid":"1","fulltext_processed":true}],"processed":0,"failed":1}`))
	})

	got, err := c.RetryFailed(context.Background(), []types.Record{{PMID: "1"}}, "GTEx")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Failed)
	require.Len(t, got.Results, 1)
	assert.Equal(t, types.StateFailed, got.Results[0].State())
}

func TestDoReturnsTransportErrorOnStatus(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"extractor down"}`))
	})

	_, err := c.EnrichBatch(context.Background(), []types.Record{{PMID: "1"}}, "k")
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
	assert.Contains(t, err.Error(), "extractor down")
}

func TestDoReturnsTransportErrorOnNetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := ts.URL
	ts.Close()

	c := New(types.APIConfig{BaseURL: url}, nil)
	_, err := c.Search(context.Background(), "DepMap", 1)
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Zero(t, te.StatusCode)
}

func TestDoRetriesThrottledRequests(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"results":[]}`))
	})

	_, err := c.EnrichBatch(context.Background(), []types.Record{{PMID: "1"}}, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoReportsUndecodableBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	})

	_, err := c.Search(context.Background(), "DepMap", 1)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
}
