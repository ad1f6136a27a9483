// Package dataservice is the REST client for the collection data service.
package dataservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"collections/internal/domain/collection"
	"collections/internal/metrics"
	"collections/pkg/errors"
	"collections/pkg/logger"
	"collections/pkg/options"
)

// StatusError is a non-2xx response
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("data service returned %d: %s", e.Code, e.Body)
}

// Unwrap maps the status to the shared error vocabulary
func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusNotFound:
		return errors.ErrNotFound
	case e.Code == http.StatusTooManyRequests:
		return errors.ErrRateLimitExceeded
	case e.Code >= 500:
		return errors.ErrUnavailable
	default:
		return errors.ErrInvalidInput
	}
}

// Config configures the client
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
	PageSize  int
	Retry     RetryConfig
}

// Client implements collection.Repository over HTTP
type Client struct {
	base     *url.URL
	apiKey   string
	http     *http.Client
	limiter  *Limiter
	retry    *retrier
	pageSize int
	log      *logger.Logger
}

var _ collection.Repository = (*Client)(nil)

// New creates a data service client
func New(cfg Config, log *logger.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "data service url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}

	return &Client{
		base:     base,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  NewLimiter("data-service", cfg.RateLimit, cfg.Burst),
		retry:    newRetrier(cfg.Retry),
		pageSize: cfg.PageSize,
		log:      log.Component("data_service"),
	}, nil
}

// List fetches one page of entities of kind
func (c *Client) List(ctx context.Context, kind collection.EntityKind, q collection.ListQuery) (options.EntityPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = c.pageSize
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("pageSize", strconv.Itoa(q.PageSize))
	if text := strings.TrimSpace(q.Text); text != "" && kind.SearchParam != "" {
		params.Set(kind.SearchParam, text)
	}
	if q.ParentID != "" && kind.ParentKey != "" {
		params.Set(kind.ParentKey.String(), q.ParentID)
	}

	var page options.EntityPage
	err := c.call(ctx, kind.Name, "list", c.endpoint(params, kind.Path), &page)
	if err != nil {
		return options.EntityPage{}, errors.Wrapf(err, "list %s", kind.Name)
	}
	if page.CurrentPage == 0 {
		page.CurrentPage = q.Page
	}
	return page, nil
}

// GetByID fetches a single entity
func (c *Client) GetByID(ctx context.Context, kind collection.EntityKind, id string) (options.Entity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return options.Entity{}, errors.NewValidationError("id", "must not be empty", id)
	}

	// Some resources wrap the record in {"data": ...}.
	var body struct {
		options.Entity
		Data *options.Entity `json:"data"`
	}
	if err := c.call(ctx, kind.Name, "get", c.endpoint(nil, kind.Path, id), &body); err != nil {
		return options.Entity{}, errors.Wrapf(err, "get %s %s", kind.Name, id)
	}
	if body.Data != nil {
		return *body.Data, nil
	}
	return body.Entity, nil
}

// Ping checks that the data service answers a minimal list request
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.List(ctx, collection.Country, collection.ListQuery{Page: 1, PageSize: 1})
	return err
}

func (c *Client) endpoint(params url.Values, segments ...string) string {
	u := *c.base
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(escaped, "/")
	u.RawPath = ""
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func (c *Client) call(ctx context.Context, kind, operation, endpoint string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			metrics.RecordRateLimited(kind, operation)
		}
		return err
	}

	start := time.Now()
	err := c.retry.do(ctx, func() error {
		return c.get(ctx, endpoint, out)
	})
	metrics.RecordDataServiceCall(kind, operation, time.Since(start), err)

	if err != nil {
		c.log.Debugw("Data service call failed",
			"kind", kind,
			"operation", operation,
			"url", endpoint,
			"error", err,
		)
	}
	return err
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "request aborted")
		}
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
