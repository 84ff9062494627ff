// Package power implements the HTTP client for the NASA POWER daily point
// API. Requests are context-aware, share a rate limiter, retry on transient
// errors (429, 5xx) and pass through a circuit breaker so a failing upstream
// is not hammered by repeated analyses.
package power

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/derickschaefer/atmosight/internal/model"
)

const (
	DefaultBaseURL = "https://power.larc.nasa.gov/api/temporal/daily/point"
	community      = "RE"
	maxRetries     = 4
	defaultBackoff = 500 * time.Millisecond
	userAgent      = "atmosight-cli/1.0"
)

// ErrCircuitOpen is returned when the breaker refuses a request.
var ErrCircuitOpen = errors.New("power: circuit breaker open")

// errTransient marks failures worth another attempt.
var errTransient = errors.New("transient upstream failure")

// Client is the NASA POWER API HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	backoff    time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithBackoff sets the initial retry delay; it doubles on each attempt.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, timeout time.Duration, ratePerSec float64, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), burst),
		backoff:    defaultBackoff,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "nasa-power",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 2*maxRetries
			},
		}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ─── Daily Point Series ───────────────────────────────────────────────────────

// Request identifies one daily series at a point.
type Request struct {
	Lat       float64
	Lon       float64
	StartYear int
	EndYear   int
	Variable  string
}

func (r Request) validate() error {
	if r.Variable == "" {
		return errors.New("variable is required")
	}
	if r.StartYear <= 0 || r.EndYear < r.StartYear {
		return fmt.Errorf("invalid year range %d-%d", r.StartYear, r.EndYear)
	}
	if r.Lat < -90 || r.Lat > 90 || r.Lon < -180 || r.Lon > 180 {
		return fmt.Errorf("coordinates out of range: %g,%g", r.Lat, r.Lon)
	}
	return nil
}

// DefaultFillValue marks missing data when the response header names none.
const DefaultFillValue = -999.0

type pointResponse struct {
	Header struct {
		FillValue *float64 `json:"fill_value"`
	} `json:"header"`
	Properties struct {
		Parameter map[string]map[string]json.Number `json:"parameter"`
	} `json:"properties"`
}

// FetchSeries retrieves Jan 1 of StartYear through Dec 31 of EndYear for one
// variable. Values equal to the upstream fill value, or null, come back as
// empty strings so the normalizer treats them as missing.
func (c *Client) FetchSeries(ctx context.Context, r Request) (model.RawSeries, error) {
	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("power request: %w", err)
	}
	code := strings.ToUpper(r.Variable)

	params := url.Values{}
	params.Set("parameters", code)
	params.Set("community", community)
	params.Set("longitude", strconv.FormatFloat(r.Lon, 'f', -1, 64))
	params.Set("latitude", strconv.FormatFloat(r.Lat, 'f', -1, 64))
	params.Set("start", fmt.Sprintf("%04d0101", r.StartYear))
	params.Set("end", fmt.Sprintf("%04d1231", r.EndYear))
	params.Set("format", "JSON")

	var resp pointResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("series %s: %w", code, err)
	}

	values, ok := resp.Properties.Parameter[code]
	if !ok {
		return nil, fmt.Errorf("series %s: parameter missing from response", code)
	}

	fill := DefaultFillValue
	if resp.Header.FillValue != nil {
		fill = *resp.Header.FillValue
	}
	raw := make(model.RawSeries, len(values))
	for date, num := range values {
		text := num.String()
		if v, err := strconv.ParseFloat(text, 64); err == nil && v == fill {
			text = ""
		}
		raw[date] = text
	}
	return raw, nil
}

// ─── Low-level HTTP ───────────────────────────────────────────────────────────

type httpResult struct {
	status int
	body   []byte
}

// get performs a GET against the point endpoint, handling rate limiting,
// retries and the circuit breaker.
func (c *Client) get(ctx context.Context, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := c.baseURL + "?" + params.Encode()
	slog.Debug("power request", "url", reqURL)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.backoff
			slog.Debug("retrying after backoff", "attempt", attempt, "backoff", backoff)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		res, err := c.breaker.Execute(func() (interface{}, error) {
			return c.do(ctx, reqURL)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		hr := res.(httpResult)
		slog.Debug("power response", "status", hr.status, "bytes", len(hr.body))
		if hr.status != http.StatusOK {
			return apiError(hr)
		}
		if err := json.Unmarshal(hr.body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("after %d attempts: %w", maxRetries, lastErr)
}

// do runs one HTTP round trip. Transport failures, 429 and 5xx are errors so
// the breaker counts them; any other status is handed back to the caller.
func (c *Client) do(ctx context.Context, reqURL string) (httpResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return httpResult{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return httpResult{}, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return httpResult{}, fmt.Errorf("reading body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return httpResult{}, fmt.Errorf("%w: HTTP %d: %s", errTransient, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return httpResult{status: resp.StatusCode, body: body}, nil
}

func apiError(hr httpResult) error {
	var e struct {
		Messages []string `json:"messages"`
		Detail   string   `json:"detail"`
	}
	_ = json.Unmarshal(hr.body, &e)
	switch {
	case len(e.Messages) > 0:
		return fmt.Errorf("API error: %s", strings.Join(e.Messages, "; "))
	case e.Detail != "":
		return fmt.Errorf("API error: %s", e.Detail)
	}
	return fmt.Errorf("HTTP %d: %s", hr.status, strings.TrimSpace(string(hr.body)))
}
