package climacell

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stevenhcau/snowReport/internal/forecast"
)

const realtimeBody = `{
	"lat": 51.0447, "lon": -114.0719,
	"temp": {"value": -7.5, "units": "C"},
	"feels_like": {"value": -12.1, "units": "C"},
	"precipitation": {"value": 0, "units": "mm/hr"},
	"precipitation_type": {"value": "none"},
	"wind_speed": {"value": 3.4, "units": "m/s"},
	"wind_direction": {"value": 270, "units": "degrees"},
	"cloud_cover": {"value": 40, "units": "%"},
	"observation_time": {"value": "2020-12-01T18:00:00.000Z"}
}`

const hourlyBody = `[
	{"observation_time": {"value": "2020-12-01T18:00:00.000Z"}, "precipitation": {"value": 1.2}, "precipitation_type": {"value": "snow"}},
	{"observation_time": {"value": "2020-12-01T19:00:00.000Z"}, "precipitation": {"value": 0.4}, "precipitation_type": {"value": "rain"}}
]`

func TestFetch_QueryParameters(t *testing.T) {
	tests := []struct {
		horizon   forecast.Horizon
		path      string
		timestep  string
		hasWindow bool
		body      string
	}{
		{forecast.Now, "/realtime", "", false, realtimeBody},
		{forecast.ShortRange, "/nowcast", "5", true, hourlyBody},
		{forecast.MediumRange, "/forecast/hourly", "", true, hourlyBody},
	}

	for _, tt := range tests {
		t.Run(tt.horizon.String(), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.path {
					t.Errorf("path = %s, want %s", r.URL.Path, tt.path)
				}
				q := r.URL.Query()
				if q.Get("lat") != "51.0447" || q.Get("lon") != "-114.0719" {
					t.Errorf("lat/lon = %s/%s", q.Get("lat"), q.Get("lon"))
				}
				if q.Get("unit_system") != "si" {
					t.Errorf("unit_system = %q", q.Get("unit_system"))
				}
				if q.Get("apikey") != "test-key" {
					t.Errorf("apikey = %q", q.Get("apikey"))
				}
				if q.Get("fields") != strings.Join(Fields(tt.horizon), ",") {
					t.Errorf("fields = %q", q.Get("fields"))
				}
				if q.Get("timestep") != tt.timestep {
					t.Errorf("timestep = %q, want %q", q.Get("timestep"), tt.timestep)
				}
				if got := q.Get("end_time") != ""; got != tt.hasWindow {
					t.Errorf("end_time present = %v, want %v", got, tt.hasWindow)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient("test-key", srv.URL, time.Second, nil)
			res, err := c.Fetch(context.Background(), tt.horizon, "51.0447", "-114.0719")
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if res.StatusCode != http.StatusOK {
				t.Errorf("StatusCode = %d", res.StatusCode)
			}
			if len(res.Samples) == 0 {
				t.Error("no samples decoded")
			}
		})
	}
}

func TestFetchNow_SingleSample(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(realtimeBody))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, time.Second, nil)
	res, err := c.FetchNow(context.Background(), "51.0447", "-114.0719")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Samples) != 1 {
		t.Fatalf("samples = %d, want 1", len(res.Samples))
	}
	v, ok := res.Samples[0].Value(forecast.Temperature)
	if !ok {
		t.Fatal("temp missing")
	}
	if f, _ := v.Float(); f != -7.5 {
		t.Errorf("temp = %v, want -7.5", f)
	}
}

func TestFetchMediumRange_KeepsOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(hourlyBody))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, time.Second, nil)
	res, err := c.FetchMediumRange(context.Background(), "1", "2")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(res.Samples))
	}
	ts, err := res.Samples[1].ObservationTime(time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if ts.Hour() != 19 {
		t.Errorf("second sample hour = %d, want 19", ts.Hour())
	}
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusBadGateway} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				http.Error(w, `{"message":"nope"}`, status)
			}))
			defer srv.Close()

			c := NewClient("k", srv.URL, time.Second, nil)
			res, err := c.FetchShortRange(context.Background(), "1", "2")
			var f *Failure
			if !errors.As(err, &f) {
				t.Fatalf("error = %v, want *Failure", err)
			}
			if f.StatusCode != status || f.Horizon != forecast.ShortRange {
				t.Errorf("Failure = %+v", f)
			}
			if res == nil || res.Samples != nil {
				t.Errorf("result = %+v, want no samples", res)
			}
			if calls != 1 {
				t.Errorf("server called %d times, want exactly 1", calls)
			}
		})
	}
}

func TestFetch_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, time.Second, nil)
	_, err := c.FetchMediumRange(context.Background(), "1", "2")
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("error = %v, want *Failure", err)
	}
	var pe *forecast.ParseError
	if !errors.As(err, &pe) {
		t.Errorf("error = %v, want wrapped *forecast.ParseError", err)
	}
	if f.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", f.StatusCode)
	}
}

func TestFetchNow_RejectsArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(hourlyBody))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, time.Second, nil)
	if _, err := c.FetchNow(context.Background(), "1", "2"); err == nil {
		t.Error("expected error for multi-sample realtime payload")
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient("k", srv.URL, 50*time.Millisecond, nil)
	start := time.Now()
	_, err := c.FetchNow(context.Background(), "1", "2")
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("error = %v, want *Failure", err)
	}
	if f.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for timeout", f.StatusCode)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestFetch_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient("k", url, time.Second, nil)
	_, err := c.FetchNow(context.Background(), "1", "2")
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("error = %v, want *Failure", err)
	}
	if f.Horizon != forecast.Now {
		t.Errorf("Horizon = %v, want now", f.Horizon)
	}
}

func TestFetch_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	key := os.Getenv("CLIMACELL_API_KEY")
	if key == "" {
		t.Skip("CLIMACELL_API_KEY not set")
	}

	c := NewClient(key, "", 0, nil)
	res, err := c.FetchNow(context.Background(), "51.0447", "-114.0719")
	if err != nil {
		t.Fatalf("FetchNow: %v", err)
	}
	if _, err := res.Samples[0].ObservationTime(time.UTC); err != nil {
		t.Errorf("observation_time: %v", err)
	}
}
