// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the backend clients.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/pdiddy/figurescout/internal/logging"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// throttled responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// maxRetryAfter caps a server-supplied Retry-After so a misbehaving server
// cannot park a batch indefinitely.
const maxRetryAfter = 2 * time.Minute

const defaultMaxRetries = 5

// Policy configures DoWithRetry.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt (default 5).
	MaxRetries int
	// Log receives one warning per retry. Nil means no logging.
	Log logging.Logger
}

// Retryable reports whether a response status is worth retrying: 429 Too
// Many Requests and 503 Service Unavailable. Other failures are returned
// to the caller, which decides whether the batch failed.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// DoWithRetry executes an HTTP request and retries throttled responses
// with exponential backoff starting at RetryBaseDelay. A Retry-After header
// in seconds overrides the computed delay.
//
// Requests with a body are replayed through req.GetBody, which
// http.NewRequestWithContext sets for bytes and strings readers. If the
// context is cancelled during a backoff wait the function returns
// ctx.Err(). After exhausting retries the last throttled response is
// returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, p Policy) (*http.Response, error) {
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}

		if !Retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := retryAfter(resp.Header.Get("Retry-After"))
		if backoff <= 0 {
			backoff = time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		}
		if p.Log != nil {
			p.Log.Warn("backend throttled, retrying",
				logging.String("url", req.URL.String()),
				logging.Int("status", resp.StatusCode),
				logging.String("backoff", backoff.String()),
				logging.Int("attempt", attempt+1),
				logging.Int("max_retries", maxRetries),
			)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// retryAfter parses a Retry-After header given in seconds. HTTP-date
// values and garbage yield zero.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}
