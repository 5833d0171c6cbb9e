// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scout is the HTTP client for the FigureScout backend: keyword
// search, full-text batch enrichment, and the failed-record retry endpoint.
// The project endpoints are served by the same backend and reuse Client.Do
// (see internal/projectstore).
package scout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/figurescout/internal/httputil"
	"github.com/pdiddy/figurescout/internal/logging"
	"github.com/pdiddy/figurescout/pkg/types"
)

// DefaultBaseURL is the backend root used when none is configured.
const DefaultBaseURL = "http://localhost:5000"

const (
	searchPath      = "/api/search"
	enrichBatchPath = "/api/fulltext/batch"
	retryPath       = "/api/fulltext/retry"
)

// maxErrorBody bounds how much of a failed response body is kept in errors.
const maxErrorBody = 512

// TransportError reports a network failure or a non-2xx response from the
// backend. StatusCode is zero for network failures.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	msg := fmt.Sprintf("%s %s returned HTTP %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// StatusCode returns the HTTP status carried by a TransportError in err's
// chain, or zero.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// Client talks to the FigureScout backend.
type Client struct {
	BaseURL    string
	HTTP       *http.Client
	UserAgent  string
	Token      string
	MaxRetries int
	Log        logging.Logger
}

// New creates a Client from configuration. A zero timeout leaves the
// http.Client without one.
func New(cfg types.APIConfig, log logging.Logger) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Client{
		BaseURL:    base,
		HTTP:       &http.Client{Timeout: cfg.Timeout},
		UserAgent:  cfg.UserAgent,
		Token:      cfg.Token,
		MaxRetries: cfg.MaxRetries,
		Log:        log,
	}
}

// Do sends a JSON request to path and decodes a JSON response into out.
// in and out may be nil. Network failures and non-2xx statuses are
// returned as *TransportError; throttled responses are retried first.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, httputil.Policy{MaxRetries: c.MaxRetries, Log: c.Log})
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       errorMessage(snippet),
		}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Method: method, Path: path, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// errorMessage prefers the backend's {"error": "..."} field over raw bytes.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

// Search runs a keyword search over the last years years and returns the
// ordered result set.
func (c *Client) Search(ctx context.Context, keyword string, years int) (*types.SearchResponse, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, fmt.Errorf("keyword is empty")
	}
	req := struct {
		Keyword string `json:"keyword"`
		Years   int    `json:"years"`
	}{keyword, years}

	var resp types.SearchResponse
	if err := c.Do(ctx, http.MethodPost, searchPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type fulltextRequest struct {
	Articles []types.Record `json:"articles"`
	Keyword  string         `json:"keyword"`
}

// EnrichBatch submits records for full-text extraction. The response holds
// results keyed by PMID; identities missing from it were not processed.
func (c *Client) EnrichBatch(ctx context.Context, batch []types.Record, keyword string) ([]types.Record, error) {
	var resp struct {
		Results []types.Record `json:"results"`
	}
	if err := c.Do(ctx, http.MethodPost, enrichBatchPath, fulltextRequest{batch, keyword}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// RetryFailed resubmits records that were attempted without usable full text.
func (c *Client) RetryFailed(ctx context.Context, failed []types.Record, keyword string) (types.RetryResult, error) {
	var resp types.RetryResult
	if err := c.Do(ctx, http.MethodPost, retryPath, fulltextRequest{failed, keyword}, &resp); err != nil {
		return types.RetryResult{}, err
	}
	return resp, nil
}
