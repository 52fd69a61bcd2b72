package report

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stevenhcau/snowReport/internal/climacell"
	"github.com/stevenhcau/snowReport/internal/forecast"
	"github.com/stevenhcau/snowReport/internal/registry"
	"github.com/stevenhcau/snowReport/internal/resort"
	"github.com/stevenhcau/snowReport/internal/store"
)

type stubFetcher map[forecast.Horizon]string

func (f stubFetcher) Fetch(ctx context.Context, h forecast.Horizon, lat, lon string) (*climacell.Result, error) {
	body, ok := f[h]
	if !ok {
		return &climacell.Result{Horizon: h}, &climacell.Failure{Horizon: h, Err: errors.New("connection refused")}
	}
	seq, err := forecast.DecodeSequence([]byte(body))
	if err != nil {
		return nil, err
	}
	return &climacell.Result{Horizon: h, StatusCode: 200, Samples: seq}, nil
}

var sunshine = registry.Location{Key: "sunshine", Name: "Sunshine Village", Country: "Canada"}

func TestWriteSnow(t *testing.T) {
	tests := []struct {
		name   string
		report resort.SnowReport
		want   string
	}{
		{
			name:   "snow",
			report: resort.SnowReport{Location: sunshine, Available: true, Accumulated: 12.345, Present: true},
			want:   "Sunshine Village: SNOW IN THE NEXT 4 DAYS\n12.35 mm of snow\n\n",
		},
		{
			name:   "no snow",
			report: resort.SnowReport{Location: sunshine, Available: true},
			want:   "Sunshine Village: NO SNOW IN THE NEXT 4 DAYS\n\n",
		},
		{
			name:   "unavailable",
			report: resort.SnowReport{Location: sunshine, Reason: "fetch medium: status 503: down"},
			want:   "Sunshine Village: FORECAST UNAVAILABLE (fetch medium: status 503: down)\n\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteSnow(&buf, tt.report); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestWriteRealtime(t *testing.T) {
	body := `{
		"observation_time": {"value": "2020-12-01T18:00:00.000Z"},
		"temp": {"value": -7.5},
		"feels_like": {"value": -12},
		"precipitation": {"value": 0},
		"precipitation_type": {"value": "none"},
		"wind_speed": {"value": 3.4},
		"wind_direction": {"value": 270},
		"cloud_cover": {"value": null},
		"weather_code": {"value": "snow_light"}
	}`
	s := resort.NewSession(sunshine, stubFetcher{forecast.Now: body})
	s.Fetch(context.Background(), forecast.Now)

	var buf bytes.Buffer
	if err := WriteRealtime(&buf, s, time.FixedZone("MST", -7*60*60)); err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"Location: Sunshine Village",
		"Time: 2020-12-01 11:00:00 -07:00",
		"Temperature: -7.5°C",
		"Feels Like: -12°C",
		"Precipitation: 0mm",
		"Precipitation Type: none",
		"Wind Speed: 3.4m/s",
		"Wind Direction: 270° (0° is North)",
		"Cloud Cover: n/a",
		"Conditions: Light snow (snow)",
		"", "",
	}, "\n")
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteRealtime_Unavailable(t *testing.T) {
	s := resort.NewSession(sunshine, stubFetcher{})
	s.Fetch(context.Background(), forecast.Now)

	var buf bytes.Buffer
	if err := WriteRealtime(&buf, s, time.UTC); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "Sunshine Village: REALTIME UNAVAILABLE (") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteSeries(t *testing.T) {
	seq, err := forecast.DecodeSequence([]byte(`[
		{"observation_time": {"value": "2020-12-01T18:00:00Z"}, "temp": {"value": -3}},
		{"observation_time": {"value": "2020-12-01T19:00:00Z"}, "temp": {"value": null}}
	]`))
	if err != nil {
		t.Fatal(err)
	}
	series, err := forecast.Extract(seq, forecast.Temperature, time.UTC)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteSeries(&buf, series); err != nil {
		t.Fatal(err)
	}
	want := "2020-12-01 18:00:00 +00:00\t-3\n2020-12-01 19:00:00 +00:00\tn/a\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteLocations(t *testing.T) {
	var buf bytes.Buffer
	locs := []registry.Location{
		{Key: "fernie", Name: "Fernie", Country: "Canada", Lat: "49.46", Lon: "-115.09"},
		{Key: "sunshine", Name: "Sunshine Village", Country: "Canada", Lat: "51.08", Lon: "-115.77"},
	}
	if err := WriteLocations(&buf, locs); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if !strings.HasPrefix(lines[1], "fernie") || !strings.Contains(lines[2], "Sunshine Village") {
		t.Errorf("unexpected table:\n%s", buf.String())
	}
}

func TestWriteFailures(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFailures(&buf, nil, time.UTC); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "no failed fetches\n" {
		t.Errorf("got %q", buf.String())
	}

	buf.Reset()
	runs := []store.FetchRun{{
		FetchedAt:    time.Date(2020, 12, 1, 18, 0, 0, 0, time.UTC),
		LocationKey:  "whistler",
		Horizon:      "medium",
		HTTPStatus:   sql.NullInt64{Int64: 429, Valid: true},
		ErrorMessage: sql.NullString{String: "rate limited", Valid: true},
	}}
	if err := WriteFailures(&buf, runs, time.UTC); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"whistler", "medium", "429", "rate limited"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
