// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package transport is the HTTP collaborator used by the bulk job backends.
// It issues a request, reads the whole response and hands back status, headers
// and body. Non-2xx statuses are not errors at this layer; callers decide.
// Connection failures surface as transport errors and context cancellation as
// cancelled errors, both typed through internal/errors.
package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"bulkctl/cli/internal/errors"

	"github.com/pterm/pterm"
	"golang.org/x/time/rate"
)

// Request is a single remote call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully read remote response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports whether the status is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Doer executes requests. Implementations must be safe for concurrent use.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Config configures the HTTP transport.
type Config struct {
	Timeout    time.Duration
	MaxRetries int
	// RateLimit is requests per second shared by all callers; 0 disables it.
	RateLimit float64
	RateBurst int
	UserAgent string
	// Client overrides the underlying client (tests use httptest clients).
	Client *http.Client
	Logger *pterm.Logger
}

// HTTP implements Doer over net/http.
type HTTP struct {
	client    *http.Client
	limiter   *rate.Limiter
	retry     retryPolicy
	userAgent string
	logger    *pterm.Logger
}

// New creates an HTTP transport. Zero values fall back to a 60s timeout and no
// rate limit.
func New(cfg Config) *HTTP {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
	}

	return &HTTP{
		client:    client,
		limiter:   limiter,
		retry:     newRetryPolicy(cfg.MaxRetries),
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Do sends the request, retrying safe methods on transient failures.
func (h *HTTP) Do(ctx context.Context, req *Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	attempts := 1
	if isSafeMethod(method) {
		attempts += h.retry.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := h.retry.delay(attempt)
			h.logger.Debug("retrying request", h.logger.Args(
				"method", method, "url", req.URL, "attempt", attempt, "wait", delay.String()))
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if h.limiter != nil {
			if err := h.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil, errors.Wrap(errors.Cancelled, "request cancelled", ctx.Err())
				}
				return nil, errors.Wrap(errors.Transport, "rate limiter", err)
			}
		}

		resp, err := h.once(ctx, method, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(errors.Cancelled, "request cancelled", ctx.Err())
			}
			lastErr = errors.Wrap(errors.Transport, method+" "+req.URL, err)
			continue
		}
		if attempt < attempts-1 && isRetryableStatus(resp.StatusCode) {
			lastErr = nil
			continue
		}
		return resp, nil
	}
	if lastErr == nil {
		lastErr = errors.New(errors.Transport, method+" "+req.URL+": retries exhausted")
	}
	return nil, lastErr
}

func (h *HTTP) once(ctx context.Context, method string, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if h.userAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return errors.Wrap(errors.Cancelled, "request cancelled", ctx.Err())
	}
}
