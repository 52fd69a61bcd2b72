package scheduler

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stevenhcau/snowReport/internal/climacell"
	"github.com/stevenhcau/snowReport/internal/forecast"
	"github.com/stevenhcau/snowReport/internal/registry"
	"github.com/stevenhcau/snowReport/internal/resort"
)

type byLat map[string]string

func (f byLat) Fetch(ctx context.Context, h forecast.Horizon, lat, lon string) (*climacell.Result, error) {
	body, ok := f[lat]
	if !ok {
		return &climacell.Result{Horizon: h, StatusCode: 500}, &climacell.Failure{Horizon: h, StatusCode: 500, Err: errors.New("boom")}
	}
	seq, err := forecast.DecodeSequence([]byte(body))
	if err != nil {
		return nil, err
	}
	return &climacell.Result{Horizon: h, StatusCode: 200, Samples: seq}, nil
}

type countingPruner struct {
	mu    sync.Mutex
	calls int
}

func (p *countingPruner) CleanupOldRawPayloads(days int) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return 0, nil
}

var locs = []registry.Location{
	{Key: "fernie", Name: "Fernie", Lat: "1"},
	{Key: "whistler", Name: "Whistler", Lat: "2"},
	{Key: "norquay", Name: "Norquay", Lat: "3"},
}

func newTestScheduler(out *bytes.Buffer) *Scheduler {
	fetcher := byLat{
		"1": `[{"observation_time":{"value":"2020-12-01T00:00:00Z"},"precipitation":{"value":4},"precipitation_type":{"value":"snow"}}]`,
		"2": `[{"observation_time":{"value":"2020-12-01T00:00:00Z"},"precipitation":{"value":4},"precipitation_type":{"value":"rain"}}]`,
	}
	runner := &resort.Runner{Fetcher: fetcher, Horizons: []forecast.Horizon{forecast.MediumRange}}
	return New(runner, func() ([]registry.Location, error) { return locs, nil }, out, time.Hour, nil)
}

func TestRunOnce(t *testing.T) {
	var out bytes.Buffer
	s := newTestScheduler(&out)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{
		"Fernie: SNOW IN THE NEXT 4 DAYS\n4.00 mm of snow\n",
		"Whistler: NO SNOW IN THE NEXT 4 DAYS\n",
		"Norquay: FORECAST UNAVAILABLE (",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "Fernie") > strings.Index(got, "Whistler") {
		t.Error("reports out of input order")
	}
}

func TestRunOnce_LocationError(t *testing.T) {
	var out bytes.Buffer
	s := New(&resort.Runner{}, func() ([]registry.Location, error) {
		return nil, registry.ErrNotFound
	}, &out, 0, nil)
	if err := s.RunOnce(context.Background()); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	var out bytes.Buffer
	s := newTestScheduler(&out)
	p := &countingPruner{}
	s.SetPruner(p, 30)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		s.mu.Lock()
		n := out.Len()
		s.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no report written")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if p.calls != 1 {
		t.Errorf("pruner called %d times, want 1", p.calls)
	}
}
