package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "center-onboarding/internal/common/errors"

	"github.com/sethvargo/go-retry"
)

// Client is a timeout-bounded HTTP client that retries transient failures.
type Client struct {
	httpClient *http.Client
	service    string
	maxRetries uint64
	backoff    time.Duration
}

func NewClient(service string, timeout time.Duration, maxRetries int) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		service:    service,
		maxRetries: uint64(maxRetries),
		backoff:    100 * time.Millisecond,
	}
}

// WithHTTPClient swaps the underlying transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// GetJSON issues a GET and decodes a 2xx JSON body into out. Network errors,
// 429 and 5xx responses are retried with exponential backoff; any other
// status returns *errors.StatusError immediately.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out interface{}) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.WithJitter(20*time.Millisecond, retry.NewExponential(c.backoff)))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			statusErr := &apperrors.StatusError{Service: c.service, StatusCode: resp.StatusCode, Body: string(body)}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return retry.RetryableError(statusErr)
			}
			return statusErr
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", c.service, err)
		}
		return nil
	})
}
