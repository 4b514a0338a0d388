package maps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/atomic"

	"delivery-sequencer-service/internal/platform/health"
	"delivery-sequencer-service/internal/platform/retry"
)

const (
	defaultBaseURL   = "https://maps.googleapis.com"
	breakerThreshold = 5
	breakerCooldown  = time.Minute
)

// Client talks to the Google-style maps collaborator: geocoding, distance
// matrix and directions endpoints.
//
// Transport failures (timeouts, refused connections, 429/5xx) are retried
// per the configured policy; well-formed collaborator errors such as
// ZERO_RESULTS are surfaced immediately. A per-client health breaker skips
// live calls while the collaborator is known to be down.
//
// The client is safe for concurrent use.
type Client struct {
	session *http.Client
	apiKey  string
	baseURL string
	retry   retry.Policy
	breaker *health.Breaker
	retries atomic.Int64
}

// NewClient builds a client against baseURL (the production endpoint when
// empty).
func NewClient(apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("maps api key is empty")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	c := &Client{
		session: &http.Client{Timeout: 10 * time.Second},
		apiKey:  apiKey,
		baseURL: baseURL,
		breaker: health.NewBreaker(breakerThreshold, breakerCooldown),
	}
	c.retry = retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Retryable:   isRetryable,
		OnRetry: func(int, error) {
			c.retries.Inc()
		},
	}

	return c, nil
}

// Retries reports how many backoff retries the client has performed.
func (c *Client) Retries() int64 { return c.retries.Load() }

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

func (c *Client) newRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

// doWithRetry retries transient failures using the client's policy while
// respecting context cancellation and the health breaker.
func (c *Client) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	if !c.breaker.ShouldAttempt() {
		return nil, errors.New("maps collaborator cooling down after repeated failures")
	}

	var resp *http.Response
	err := c.retry.Do(ctx, func() error {
		req, err := makeReq()
		if err != nil {
			return fmt.Errorf("make request: %w", err)
		}

		r, err := c.do(req)
		if err != nil {
			return err
		}

		resp = r
		return nil
	})
	if err != nil {
		if isRetryable(err) {
			c.breaker.RecordFailure()
		}
		return nil, err
	}

	c.breaker.Reset()
	return resp, nil
}

func isRetryable(err error) bool {
	var he *httpStatusError
	if errors.As(err, &he) {
		switch he.Code {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
