// Package planet is a typed client for the imagery provider's Data,
// Orders and Basemaps APIs.
package planet

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RetryPolicy bounds how request retries behave. Only transport errors
// and 5xx responses are retried; any 4xx is returned immediately.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy retries twice after the first failure, waiting 2s
// then 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     10 * time.Second,
	}
}

type Client struct {
	baseURL         string
	apiKey          string
	httpClient      *http.Client
	downloadClient  *http.Client
	retry           RetryPolicy
	paginationDelay time.Duration

	// sleep is swapped out in tests to avoid real waits.
	sleep func(time.Duration)
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d, body: %s", e.StatusCode, e.Body)
}

func NewClient(baseURL, apiKey string, timeout time.Duration, retry RetryPolicy, paginationDelay time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		// Downloads can run far longer than API calls; the caller's
		// context bounds them instead.
		downloadClient:  &http.Client{},
		retry:           retry,
		paginationDelay: paginationDelay,
		sleep:           time.Sleep,
	}
}

// do sends one request with retries per the client's policy and returns
// the response body. The caller owns URL construction; body may be nil
// for GETs.
func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	backoff := c.retry.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			c.sleep(backoff)
			backoff *= 2
			if backoff > c.retry.MaxBackoff {
				backoff = c.retry.MaxBackoff
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		respBody, retryable, err := c.doOnce(ctx, method, url, body)
		if err == nil {
			return respBody, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.retry.MaxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, url string, body []byte) (respBody []byte, retryable bool, err error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, true, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, false, nil
}

// Fetch streams the content at url, authenticating like every other
// call. The caller must close the returned reader. Result locations are
// pre-signed and large, so no retry wraps the body transfer.
func (c *Client) Fetch(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, 0, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp.Body, resp.ContentLength, nil
}
