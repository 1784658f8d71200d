package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cinema6/beeswax-client/internal/metrics"
	"github.com/cinema6/beeswax-client/internal/rate"
)

// ErrorHandler turns a non-2xx response into an API-specific error.
type ErrorHandler func(req *http.Request, status int, body []byte) error

// Executor handles rate-limited, instrumented HTTP execution with JSON decoding.
// It sends every request exactly once; retry policy belongs to the caller.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	venueTag     string
	errorHandler ErrorHandler
}

// New creates an Executor. errorHandler is called on non-2xx responses to produce an
// API-specific error. If nil, a default error is returned. rateMgr may be nil.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	venueTag string,
	errorHandler ErrorHandler,
) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		venueTag:     venueTag,
		errorHandler: errorHandler,
	}
}

// Send waits on the rate limiter, performs req and records metrics under endpoint.
// An empty endpoint is derived from the request path; callers reaching hosts other
// than the API should pass a fixed label. The caller owns the returned response
// body. Status codes are not interpreted.
func (e *Executor) Send(ctx context.Context, req *http.Request, rateLimitKey, endpoint string) (*http.Response, error) {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if endpoint == "" {
		endpoint = metrics.EndpointLabel(req.URL.Path)
	}
	start := time.Now()
	resp, err := e.http.Do(req)
	metrics.ObserveDuration(metrics.RequestDuration, start, endpoint, req.Method)
	if err != nil {
		metrics.IncRequest(endpoint, req.Method, 0)
		e.logger.Warn(e.venueTag+".http_failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return nil, err
	}
	metrics.IncRequest(endpoint, req.Method, resp.StatusCode)
	return resp, nil
}

// Do executes req and returns the raw response body. Non-2xx statuses are mapped
// through the error handler.
func (e *Executor) Do(ctx context.Context, req *http.Request, rateLimitKey string) ([]byte, error) {
	start := time.Now()
	resp, err := e.Send(ctx, req, rateLimitKey, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", e.venueTag, err)
	}
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.logger.Debug(e.venueTag+".non_2xx",
			zap.Int("status", resp.StatusCode),
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Duration("latency", elapsed))
		if e.errorHandler != nil {
			return nil, e.errorHandler(req, resp.StatusCode, body)
		}
		return nil, fmt.Errorf("%s returned %d", e.venueTag, resp.StatusCode)
	}

	e.logger.Debug(e.venueTag+".http_success",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))

	return body, nil
}

// DoJSON executes req, then JSON-decodes the response into out.
// rateLimitKey scopes the rate limiter per credential set.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) error {
	body, err := e.Do(ctx, req, rateLimitKey)
	if err != nil {
		return err
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			e.logger.Warn(e.venueTag+".decode_failed",
				zap.Error(err),
				zap.String("url", req.URL.String()),
				zap.String("body", string(body)))
			return fmt.Errorf("decode failed: %w", err)
		}
	}
	return nil
}
