// Package climacell fetches the three ClimaCell v3 horizons for a location.
// Each horizon is an independent single-attempt request; a failed call is
// reported as a *Failure and never affects the other two.
package climacell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stevenhcau/snowReport/internal/forecast"
	"github.com/stevenhcau/snowReport/internal/httputil"
	"github.com/stevenhcau/snowReport/internal/logging"
	"github.com/stevenhcau/snowReport/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.climacell.co/v3/weather"
	unitSystem     = "si"
	errBodyLimit   = 512
)

var realtimeFields = []string{
	"precipitation", "precipitation_type", "temp", "feels_like",
	"wind_speed", "wind_direction", "sunrise", "sunset", "visibility",
	"cloud_cover", "cloud_base", "weather_code",
}

type endpoint struct {
	path     string
	fields   []string
	timestep int           // minutes between samples, 0 to omit
	window   time.Duration // how far ahead to request, 0 for realtime
}

var endpoints = map[forecast.Horizon]endpoint{
	forecast.Now: {
		path:   "/realtime",
		fields: realtimeFields,
	},
	forecast.ShortRange: {
		path:     "/nowcast",
		fields:   append(append([]string{}, realtimeFields...), "humidity"),
		timestep: 5,
		window:   360 * time.Minute,
	},
	forecast.MediumRange: {
		path:   "/forecast/hourly",
		fields: append(append([]string{}, realtimeFields...), "humidity", "precipitation_probability"),
		window: 96 * time.Hour,
	},
}

// Fields returns the field list requested for a horizon.
func Fields(h forecast.Horizon) []string {
	return append([]string(nil), endpoints[h].fields...)
}

// Result describes one horizon request. It is returned even when the request
// fails so callers can audit the attempt.
type Result struct {
	Horizon    forecast.Horizon
	Endpoint   string
	StatusCode int
	Body       []byte
	Samples    forecast.Sequence
	Elapsed    time.Duration
}

// Failure is the outcome of a horizon request that produced no samples: a
// non-2xx status, a transport fault or timeout (StatusCode 0), or a body
// that could not be decoded.
type Failure struct {
	Horizon    forecast.Horizon
	StatusCode int
	Err        error
}

func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", f.Horizon, f.StatusCode, f.Err)
	}
	return fmt.Sprintf("fetch %s: %v", f.Horizon, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Client talks to the ClimaCell v3 weather API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewClient creates a client. An empty baseURL uses DefaultBaseURL; timeout
// bounds each request and defaults to httputil.DefaultTimeout.
func NewClient(apiKey, baseURL string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = httputil.DefaultTimeout
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httputil.NewClient(timeout),
		timeout: timeout,
		logger:  logger.Named("climacell"),
		now:     time.Now,
	}
}

// FetchNow requests the realtime observation; Samples holds exactly one sample.
func (c *Client) FetchNow(ctx context.Context, lat, lon string) (*Result, error) {
	return c.Fetch(ctx, forecast.Now, lat, lon)
}

// FetchShortRange requests the 5-minute nowcast for the next 360 minutes.
func (c *Client) FetchShortRange(ctx context.Context, lat, lon string) (*Result, error) {
	return c.Fetch(ctx, forecast.ShortRange, lat, lon)
}

// FetchMediumRange requests the hourly forecast for the next 96 hours.
func (c *Client) FetchMediumRange(ctx context.Context, lat, lon string) (*Result, error) {
	return c.Fetch(ctx, forecast.MediumRange, lat, lon)
}

// Fetch requests one horizon. Any error returned is a *Failure.
func (c *Client) Fetch(ctx context.Context, h forecast.Horizon, lat, lon string) (*Result, error) {
	ep, ok := endpoints[h]
	if !ok {
		return &Result{Horizon: h}, &Failure{Horizon: h, Err: fmt.Errorf("unknown horizon %d", int(h))}
	}
	result := &Result{Horizon: h, Endpoint: ep.path}

	start := c.now()
	defer func() {
		result.Elapsed = time.Since(start)
		metrics.ProviderLatency.WithLabelValues(h.String()).Observe(result.Elapsed.Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+ep.path+"?"+c.query(ep, lat, lon, start).Encode(), nil)
	if err != nil {
		return result, c.fail(result, 0, "request", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "snowReport/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return result, c.fail(result, 0, "transport", fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		result.Body = body
		return result, c.fail(result, resp.StatusCode, strconv.Itoa(resp.StatusCode),
			fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, c.fail(result, resp.StatusCode, "transport", fmt.Errorf("read body: %w", err))
	}
	result.Body = body

	samples, err := forecast.DecodeSequence(body)
	if err != nil {
		return result, c.fail(result, resp.StatusCode, "decode", err)
	}
	if h == forecast.Now && len(samples) != 1 {
		return result, c.fail(result, resp.StatusCode, "decode",
			&forecast.ParseError{What: "payload", Err: fmt.Errorf("realtime returned %d samples", len(samples))})
	}
	result.Samples = samples

	metrics.ProviderCallsTotal.WithLabelValues(h.String(), strconv.Itoa(resp.StatusCode)).Inc()
	metrics.SamplesFetched.WithLabelValues(h.String()).Add(float64(len(samples)))
	c.logger.Debugw("fetched horizon", "horizon", h, "samples", len(samples), "bytes", len(body))
	return result, nil
}

func (c *Client) fail(result *Result, status int, label string, err error) error {
	metrics.ProviderCallsTotal.WithLabelValues(result.Horizon.String(), label).Inc()
	f := &Failure{Horizon: result.Horizon, StatusCode: status, Err: err}
	if errors.Is(err, context.DeadlineExceeded) {
		c.logger.Debugw("horizon timed out", "horizon", result.Horizon, "timeout", c.timeout)
	}
	return f
}

func (c *Client) query(ep endpoint, lat, lon string, now time.Time) url.Values {
	q := url.Values{}
	q.Set("lat", lat)
	q.Set("lon", lon)
	q.Set("unit_system", unitSystem)
	q.Set("fields", strings.Join(ep.fields, ","))
	if ep.timestep > 0 {
		q.Set("timestep", strconv.Itoa(ep.timestep))
	}
	if ep.window > 0 {
		q.Set("start_time", "now")
		q.Set("end_time", now.UTC().Add(ep.window).Format(time.RFC3339))
	}
	q.Set("apikey", c.apiKey)
	return q
}
