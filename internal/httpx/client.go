// Package httpx provides the resilient HTTP client shared by all upstream
// API clients: bounded retries with exponential backoff around a circuit
// breaker, so a flapping weather or geocoding API neither hangs the app nor
// gets hammered while it is down.
package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrUpstreamOpen is returned while the circuit breaker refuses calls to a
// failing upstream.
var ErrUpstreamOpen = errors.New("upstream circuit open")

// Config holds tuning for one upstream client.
type Config struct {
	// Name identifies the upstream for breaker state and logging.
	Name string

	// Timeout bounds each individual HTTP call. Default: 10s.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts after the first call.
	// Default: 3.
	MaxRetries uint64

	// RetryInterval is the initial backoff delay. Default: 100ms.
	RetryInterval time.Duration

	// MaxRetryInterval caps the backoff delay. Default: 5s.
	MaxRetryInterval time.Duration
}

// DefaultConfig returns the tuning used by all clients unless overridden.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		Timeout:          10 * time.Second,
		MaxRetries:       3,
		RetryInterval:    100 * time.Millisecond,
		MaxRetryInterval: 5 * time.Second,
	}
}

// Client wraps http.Client with retry and circuit breaker behaviour.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	cfg     Config
}

// New creates a resilient client for one upstream.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}
	if cfg.MaxRetryInterval == 0 {
		cfg.MaxRetryInterval = 5 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		cfg:     cfg,
	}
}

// Do executes the request, retrying transient failures (network errors and
// 5xx responses) with exponential backoff. A 5xx that survives all retries is
// returned as a response so callers can report the status code.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryInterval
	policy.MaxInterval = c.cfg.MaxRetryInterval
	policy.MaxElapsedTime = 0

	var last *http.Response

	attempt := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.http.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 {
				return r, &StatusError{Code: r.StatusCode}
			}
			return r, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrUpstreamOpen)
			}
			if resp != nil {
				last = resp
			}
			return err
		}
		last = resp
		return nil
	}

	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, c.cfg.MaxRetries), ctx))
	if err != nil {
		if last != nil {
			return last, nil
		}
		return nil, err
	}
	return last, nil
}

// Get issues a GET request for the given URL.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// State returns the current circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// StatusError represents an HTTP 5xx response treated as a failure.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return "server error: " + http.StatusText(e.Code)
}
