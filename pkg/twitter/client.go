package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tweetharvest/pkg/config"
	errs "tweetharvest/pkg/errors"
	"tweetharvest/pkg/logger"
	"tweetharvest/pkg/retry"
)

const (
	searchOp = "search"

	// maxErrorBody bounds how much of a non-2xx body is read
	maxErrorBody = 64 << 10
)

// RequestObserver receives the outcome of every HTTP attempt.
// status is 0 when no response was received.
type RequestObserver interface {
	ObserveRequest(status int, duration time.Duration)
}

// ClientOptions configures a Client
type ClientOptions struct {
	BaseURL     string
	SearchPath  string
	BearerToken string
	UserAgent   string
	// Timeout bounds a single HTTP attempt, including reading the body
	Timeout time.Duration
	// Retry is applied around each Search call; nil means a single attempt
	Retry      *retry.Config
	Observer   RequestObserver
	HTTPClient *http.Client
}

// Client calls the full-archive search endpoint
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	searchURL  string
	timeout    time.Duration
	retry      *retry.Config
	observer   RequestObserver
	logger     logger.Logger
}

// NewClient creates a new search client
func NewClient(opts ClientOptions, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "tweetharvest/1.0"
	}

	retryCfg := opts.Retry
	if retryCfg == nil {
		retryCfg = retry.Disabled()
	}

	return &Client{
		httpClient: httpClient,
		headers: map[string]string{
			"Authorization": "Bearer " + opts.BearerToken,
			"User-Agent":    userAgent,
			"Accept":        "application/json",
		},
		searchURL: SearchURL(opts.BaseURL, opts.SearchPath),
		timeout:   opts.Timeout,
		retry:     retryCfg,
		observer:  opts.Observer,
		logger:    log,
	}
}

// NewClientFromConfig builds a client from the run configuration and a
// resolved bearer token
func NewClientFromConfig(cfg *config.Config, token string, observer RequestObserver, log logger.Logger) *Client {
	return NewClient(ClientOptions{
		BaseURL:     cfg.API.BaseURL,
		SearchPath:  cfg.API.SearchPath,
		BearerToken: token,
		UserAgent:   cfg.API.UserAgent,
		Timeout:     cfg.Request.Timeout,
		Retry:       retry.FromSettings(cfg.Retry, log),
		Observer:    observer,
	}, log)
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Search fetches one page. A response without a data array or without a
// meta object is a missing_payload error, never an empty page.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*ResultPage, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (*ResultPage, error) {
		return c.searchOnce(ctx, req)
	}, c.retry)
}

func (c *Client) searchOnce(ctx context.Context, sr SearchRequest) (*ResultPage, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	url := c.searchURL + "?" + sr.Values().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, searchOp, fmt.Errorf("failed to create request: %w", err))
	}

	start := time.Now()
	resp, err := c.doRequest(req, sr)
	if err != nil {
		c.observe(0, time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		c.observe(resp.StatusCode, time.Since(start))
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	c.observe(resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, errs.Network(searchOp, fmt.Errorf("failed to read response body: %w", err))
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.logger.ErrorWithFields("failed to parse search response", map[string]interface{}{
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview(body),
		})
		return nil, errs.Decode(searchOp, resp.StatusCode, err)
	}

	if decoded.Data == nil {
		c.logger.ErrorWithFields("search response has no data", map[string]interface{}{
			"body_preview": preview(body),
		})
		return nil, errs.MissingPayload(searchOp, "data")
	}
	if decoded.Meta == nil {
		c.logger.ErrorWithFields("search response has no meta", map[string]interface{}{
			"body_preview": preview(body),
		})
		return nil, errs.MissingPayload(searchOp, "meta")
	}

	page := &ResultPage{Records: *decoded.Data, Meta: *decoded.Meta}
	c.logger.DebugWithFields("search page received", map[string]interface{}{
		"records":    len(page.Records),
		"has_next":   page.HasNext(),
		"next_token": page.NextToken(),
	})
	return page, nil
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request, sr SearchRequest) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	fields := map[string]interface{}{
		"max_results":    sr.MaxResults,
		"has_next_token": sr.NextToken != "",
	}

	start := time.Now()
	c.logger.DebugWithFields("sending search request", fields)

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("search request failed", map[string]interface{}{
			"max_results": sr.MaxResults,
			"error":       err.Error(),
			"duration":    duration,
		})
		return nil, errs.Network(searchOp, err)
	}

	c.logger.DebugWithFields("search request completed", map[string]interface{}{
		"status":   resp.StatusCode,
		"duration": duration,
	})
	return resp, nil
}

// checkResponseStatus maps non-2xx responses onto typed errors, carrying the
// API problem title/detail in the message when the body has one
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := http.StatusText(resp.StatusCode)

	var problem APIError
	if err := json.Unmarshal(body, &problem); err == nil && problem.Title != "" {
		message = problem.Title
		if problem.Detail != "" {
			message += ": " + problem.Detail
		}
	}

	fields := map[string]interface{}{
		"status":  resp.StatusCode,
		"message": message,
	}
	if reset := resp.Header.Get("x-rate-limit-reset"); reset != "" {
		fields["rate_limit_reset"] = reset
	}

	switch errs.TypeForStatus(resp.StatusCode) {
	case errs.ErrorTypeServerError:
		c.logger.ErrorWithFields("search API server error", fields)
	default:
		c.logger.WarnWithFields("search API rejected request", fields)
	}

	return errs.FromStatus(searchOp, resp.StatusCode, message)
}

func (c *Client) observe(status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(status, d)
	}
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
