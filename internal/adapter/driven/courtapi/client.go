// Package courtapi implements the CaseDataProvider port against the external
// court case data service. Each court family has its own endpoint and request
// body; all of them answer with a JSON object describing the case.
package courtapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CaseDataProvider = (*Client)(nil)

// ErrProvider is returned when the service answers but refuses or cannot
// serve the request.
var ErrProvider = errors.New("court data provider failure")

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 8 << 20

	// DefaultRate is the steady request rate allowed against the provider.
	DefaultRate = rate.Limit(5)
	// DefaultBurst is the number of requests allowed to exceed DefaultRate.
	DefaultBurst = 5
)

var endpoints = map[model.CourtKind]string{
	model.CourtHigh:     "/high-court/case/",
	model.CourtDistrict: "/district-court/case/",
	model.CourtNCLT:     "/national-company-law-tribunal/filing-number/",
	model.CourtCAT:      "/central-administrative-tribunal/diary-number/",
	model.CourtConsumer: "/consumer-forum/case/",
}

// Client fetches case data over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit sets the steady request rate and burst.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, burst) }
}

// WithBackOff sets the retry policy used for 5xx and 429 responses.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = newBackOff }
}

// NewClient creates a Client for the service at baseURL.
func NewClient(baseURL, apiKey string, logger *zap.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid court api base url %q", baseURL)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(DefaultRate, DefaultBurst),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = time.Minute
			return backoff.WithMaxRetries(b, 4)
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchCase retrieves the current record of the case identified by id.
func (c *Client) FetchCase(ctx context.Context, id model.CaseIdentifier) (*model.Object, error) {
	path, ok := endpoints[id.Kind]
	if !ok {
		return nil, fmt.Errorf("no endpoint for court kind %s", id.Kind)
	}

	body, err := json.Marshal(id.RequestBody())
	if err != nil {
		return nil, fmt.Errorf("marshal case request: %w", err)
	}

	attempt := 0
	op := func() (*model.Object, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("wait for rate limiter: %w", err))
		}
		obj, err := c.post(ctx, path, body)
		if err != nil && attempt > 1 {
			c.logger.Debug("court api attempt failed",
				zap.String("court", id.Kind.String()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return obj, err
	}

	obj, err := backoff.RetryWithData(op, backoff.WithContext(c.newBackOff(), ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch %s case: %w", id.Kind, err)
	}
	return obj, nil
}

// post performs one request. Errors worth retrying are returned bare; all
// others are wrapped with backoff.Permanent.
func (c *Client) post(ctx context.Context, path string, body []byte) (*model.Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrProvider, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, truncate(raw)))
	}

	v, err := model.ParseValue(raw)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: decode response: %v", ErrProvider, err))
	}
	obj, ok := model.AsObject(v)
	if !ok {
		return nil, backoff.Permanent(fmt.Errorf("%w: response is not a JSON object", ErrProvider))
	}
	if success, ok := obj.Get("success"); ok && success == model.Bool(false) {
		msg := obj.StringField("error")
		if msg == "" {
			msg = "request unsuccessful"
		}
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrProvider, msg))
	}
	return obj, nil
}

func truncate(b []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
