// Package client talks to the Open-Meteo geocoding and forecast APIs.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/observability"
)

// Geocoder resolves free text to candidate locations.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]models.GeoResult, error)
}

// Forecaster fetches current temperature and daily series for coordinates.
type Forecaster interface {
	Forecast(ctx context.Context, coords models.Coordinates, window models.DateWindow) (models.Forecast, error)
}

var (
	ErrBadRequest        = errors.New("bad request")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrCircuitOpen       = errors.New("circuit breaker open")
	ErrMalformedResponse = errors.New("malformed response")
)

const maxBodyBytes = 4 << 20

// Options configures transport behavior shared by both API clients.
type Options struct {
	Timeout        time.Duration // per attempt
	RetryAttempts  int           // total attempts, including the first
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// Limiter, when set, throttles outbound calls.
	Limiter *rate.Limiter
	// Breaker, when set, short-circuits calls while the upstream is failing.
	Breaker    *gobreaker.CircuitBreaker
	HTTPClient *http.Client
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 100 * time.Millisecond
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = 2 * time.Second
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	return o
}

// upstream performs GET requests against one API endpoint with retries, rate limiting
// and an optional circuit breaker.
type upstream struct {
	api     string
	baseURL *url.URL
	opts    Options
}

func newUpstream(api, rawURL string, opts Options) (*upstream, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid %s API URL: %w", api, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid %s API URL %q: scheme and host required", api, rawURL)
	}
	return &upstream{api: api, baseURL: u, opts: opts.withDefaults()}, nil
}

// get issues the request with retries and returns the raw response body.
func (u *upstream) get(ctx context.Context, params url.Values) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = u.opts.RetryBaseDelay
	b.MaxInterval = u.opts.RetryMaxDelay
	b.RandomizationFactor = 0.1
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(u.opts.RetryAttempts-1)), ctx)

	operation := func() ([]byte, error) {
		body, err := u.call(ctx, params)
		if err != nil && !isRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return body, err
	}
	notify := func(err error, next time.Duration) {
		observability.UpstreamRetriesTotal.WithLabelValues(u.api).Inc()
	}

	body, err := backoff.RetryNotifyWithData(operation, policy, notify)
	if err != nil {
		observability.UpstreamErrorsTotal.WithLabelValues(u.api, string(CategorizeError(err))).Inc()
		return nil, err
	}
	return body, nil
}

func (u *upstream) call(ctx context.Context, params url.Values) ([]byte, error) {
	if u.opts.Limiter != nil {
		if err := u.opts.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}
	if u.opts.Breaker == nil {
		return u.do(ctx, params)
	}
	// Bad requests count as breaker successes.
	var rejected error
	res, err := u.opts.Breaker.Execute(func() (interface{}, error) {
		body, err := u.do(ctx, params)
		if errors.Is(err, ErrBadRequest) {
			rejected = err
			return nil, nil
		}
		return body, err
	})
	if rejected != nil {
		return nil, rejected
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

func (u *upstream) do(ctx context.Context, params url.Values) ([]byte, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, u.opts.Timeout)
	defer cancel()

	req, err := u.buildRequest(reqCtx, params)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(u.api, "error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := u.opts.HTTPClient.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(u.api, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(u.api, "error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(u.api, status).Inc()
	observability.UpstreamDuration.WithLabelValues(u.api, status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func (u *upstream) buildRequest(ctx context.Context, params url.Values) (*http.Request, error) {
	target := *u.baseURL
	target.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, upstreamReason(resp))
	default:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
}

// upstreamReason extracts Open-Meteo's {"error":true,"reason":"..."} message.
func upstreamReason(resp *http.Response) string {
	var body struct {
		Reason string `json:"reason"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) == nil && body.Reason != "" {
		return body.Reason
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
