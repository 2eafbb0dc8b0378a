// Package client is the HTTP transport to the order data service used by
// the order list loader.
package client

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

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/ordermonitor/config"
	"example.com/backstage/services/ordermonitor/internal/models"
)

const (
	defaultRetries = 3
	defaultBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
	noticeLength   = 19
)

// FetchError is returned when the service answers with a non-zero error
// code or a client error status
type FetchError struct {
	Page    int
	Status  int
	Code    int
	Message string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page %d: status %d, code %d: %s", e.Page, e.Status, e.Code, e.Message)
}

// Client fetches order pages over HTTP
type Client struct {
	baseURL string
	http    *http.Client
	retries int
	backoff time.Duration
	app     *newrelic.Application
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRetries sets how many times a failed request is retried
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the base delay between retries; it doubles per attempt
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = d
	}
}

// WithNewRelic records each page fetch as a transaction with the HTTP
// calls as external segments. It must follow WithHTTPClient.
func WithNewRelic(app *newrelic.Application) Option {
	return func(c *Client) {
		if app == nil {
			return
		}
		c.app = app
		c.http.Transport = newrelic.NewRoundTripper(c.http.Transport)
	}
}

// New creates a client for the service at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		retries: defaultRetries,
		backoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig creates a client from the loader configuration
func NewFromConfig(cfg config.ClientConfig, opts ...Option) *Client {
	base := []Option{
		WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		WithRetries(cfg.Retries),
	}
	return New(cfg.BaseURL, append(base, opts...)...)
}

// FetchPage requests one page of orders. Pages below 1 are clamped to 1.
// Transport errors and 5xx responses are retried; a non-zero error code in
// the envelope yields a *FetchError.
func (c *Client) FetchPage(ctx context.Context, page int) (*models.PageResult, error) {
	page = models.ClampPage(page)

	if c.app != nil {
		txn := c.app.StartTransaction("FetchOrdersPage")
		txn.AddAttribute("page", page)
		defer txn.End()
		ctx = newrelic.NewContext(ctx, txn)
	}

	var (
		res *models.PageResult
		err error
	)
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if werr := c.wait(ctx, attempt); werr != nil {
				err = werr
				break
			}
		}

		var retryable bool
		res, retryable, err = c.do(ctx, page)
		if err == nil || !retryable {
			break
		}
		log.Debug().Err(err).Int("page", page).Int("attempt", attempt+1).Msg("Retrying order page request")
	}

	if err != nil {
		log.Warn().Int("page", page).Str("notice", notice(err.Error())).Msg("Order page request failed")
		return nil, err
	}
	return res, nil
}

func (c *Client) wait(ctx context.Context, attempt int) error {
	d := c.backoff << (attempt - 1)
	if d > maxBackoff {
		d = maxBackoff
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting to retry")
	}
}

func (c *Client) do(ctx context.Context, page int) (*models.PageResult, bool, error) {
	u := c.baseURL + "/orders?" + url.Values{"page": {strconv.Itoa(page)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// a cancelled caller is not worth retrying
		return nil, ctx.Err() == nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, errors.Wrap(err, "failed to read response")
	}

	retryable := resp.StatusCode >= http.StatusInternalServerError

	var result models.PageResult
	if jerr := json.Unmarshal(body, &result); jerr != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, retryable, &FetchError{Page: page, Status: resp.StatusCode, Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
		return nil, false, errors.Wrap(jerr, "failed to decode page result")
	}

	if resp.StatusCode >= http.StatusBadRequest || result.Error != models.CodeOK {
		code := result.Error
		if code == models.CodeOK {
			code = resp.StatusCode
		}
		return nil, retryable, &FetchError{Page: page, Status: resp.StatusCode, Code: code, Message: result.Message}
	}
	return &result, false, nil
}

// notice shortens a failure message for display
func notice(msg string) string {
	runes := []rune(msg)
	if len(runes) <= noticeLength {
		return msg
	}
	return string(runes[:noticeLength]) + "..."
}
