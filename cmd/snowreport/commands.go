package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/stevenhcau/snowReport/internal/api"
	"github.com/stevenhcau/snowReport/internal/forecast"
	"github.com/stevenhcau/snowReport/internal/registry"
	"github.com/stevenhcau/snowReport/internal/report"
	"github.com/stevenhcau/snowReport/internal/scheduler"
)

// SelectionFlags picks locations: explicit keys, then --group, then
// --country, otherwise the whole registry.
type SelectionFlags struct {
	Keys    []string `arg:"" optional:"" help:"Location keys."`
	Group   string   `short:"g" help:"Named group (e.g. starred, alberta)."`
	Country string   `short:"c" help:"Country, case-insensitive."`
}

func (s SelectionFlags) selection() registry.Selection {
	return registry.Selection{Keys: s.Keys, Group: s.Group, Country: s.Country}
}

type SnowCmd struct {
	SelectionFlags
}

func (c *SnowCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	locs, err := a.registry.Resolve(c.selection(), a.groups)
	if err != nil {
		return err
	}
	runner, err := a.runner(forecast.MediumRange)
	if err != nil {
		return err
	}

	for _, sess := range runner.Run(ctx, locs) {
		r, err := sess.SnowReport()
		if err != nil {
			a.logger.Warnw("bad forecast data", "location", sess.Location().Key, "error", err)
			r.Reason = err.Error()
		}
		if err := report.WriteSnow(os.Stdout, r); err != nil {
			return err
		}
	}
	return nil
}

type RealtimeCmd struct {
	SelectionFlags
}

func (c *RealtimeCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	locs, err := a.registry.Resolve(c.selection(), a.groups)
	if err != nil {
		return err
	}
	runner, err := a.runner(forecast.Now)
	if err != nil {
		return err
	}

	for _, sess := range runner.Run(ctx, locs) {
		if err := report.WriteRealtime(os.Stdout, sess, a.zone); err != nil {
			return err
		}
	}
	return nil
}

type SeriesCmd struct {
	Key      string `arg:"" help:"Location key."`
	Horizon  string `short:"H" default:"medium" help:"now, short (360min) or medium (96hr)."`
	Quantity string `short:"q" default:"temperature" help:"Field to print: ${quantities}, or any other provider field."`
}

func (c *SeriesCmd) Run(ctx context.Context, g *Globals) error {
	h, err := forecast.ParseHorizon(c.Horizon)
	if err != nil {
		return err
	}
	q, err := forecast.ParseQuantity(c.Quantity)
	if err != nil {
		return err
	}

	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	loc, err := a.registry.Get(c.Key)
	if err != nil {
		return err
	}
	runner, err := a.runner(h)
	if err != nil {
		return err
	}

	sess := runner.Run(ctx, []registry.Location{loc})[0]
	series, err := sess.SeriesFor(h, q)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "# %s %s (%s)\n", loc.Name, q, h)
	return report.WriteSeries(os.Stdout, series)
}

type AddCmd struct {
	Key     string `arg:"" help:"Unique location key, e.g. calgary."`
	Name    string `arg:"" help:"Display name."`
	Country string `arg:"" help:"Country."`
	Lat     string `arg:"" help:"Latitude."`
	Lon     string `arg:"" help:"Longitude."`
}

func (c *AddCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	loc := registry.Location{Key: c.Key, Name: c.Name, Country: c.Country, Lat: c.Lat, Lon: c.Lon}
	if err := a.registry.Add(loc); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Added %s successfully\n", c.Name)
	return nil
}

type ListCmd struct {
	Country    string `short:"c" help:"Only locations in this country."`
	ShowGroups bool   `name:"show-groups" help:"List groups and their members instead of locations."`
}

func (c *ListCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	if c.ShowGroups {
		for _, name := range a.groups.Names() {
			keys, _ := a.groups.Members(name)
			fmt.Fprintf(os.Stdout, "%s: %v\n", name, keys)
		}
		return nil
	}

	locs, err := a.registry.Resolve(registry.Selection{Country: c.Country}, a.groups)
	if err != nil {
		return err
	}
	return report.WriteLocations(os.Stdout, locs)
}

type RunsCmd struct {
	Limit  int   `short:"n" default:"20" help:"Failures to show."`
	Health int   `help:"Show per-day fetch health for this many days instead."`
	Raw    int64 `help:"Print the archived payload for this fetch run ID."`
}

func (c *RunsCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireArchive(); err != nil {
		return err
	}

	switch {
	case c.Raw > 0:
		body, err := a.archive.RawPayloadForRun(c.Raw)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(body, '\n'))
		return err
	case c.Health > 0:
		health, err := a.archive.FetchHealth(c.Health)
		if err != nil {
			return err
		}
		return report.WriteHealth(os.Stdout, health)
	}

	runs, err := a.archive.RecentFailures(c.Limit)
	if err != nil {
		return err
	}
	return report.WriteFailures(os.Stdout, runs, a.zone)
}

type WatchCmd struct {
	SelectionFlags

	Interval      time.Duration `default:"1h" help:"Time between reports."`
	MetricsAddr   string        `default:":9090" help:"Address for /metrics, /health and /api/snow (empty to disable)."`
	RetentionDays int           `default:"30" help:"Days of archived payloads to keep."`
}

func (c *WatchCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner(forecast.MediumRange)
	if err != nil {
		return err
	}
	sel := c.selection()
	sched := scheduler.New(runner, func() ([]registry.Location, error) {
		// Groups are re-read so edits apply on the next pass.
		groups, err := registry.LoadGroups(g.Groups)
		if err != nil {
			return nil, err
		}
		return a.registry.Resolve(sel, groups)
	}, os.Stdout, c.Interval, a.logger)

	var archive api.Archive
	if a.archive != nil {
		sched.SetPruner(a.archive, c.RetentionDays)
		archive = a.archive
	}

	errc := make(chan error, 1)
	if c.MetricsAddr != "" {
		srv := api.NewServer(c.MetricsAddr, archive, c.Interval, a.logger)
		sched.OnReport(srv.Publish)
		go func() { errc <- srv.Run(ctx) }()
	}

	a.logger.Infow("watching", "interval", c.Interval, "metrics_addr", c.MetricsAddr)
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
		return nil
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		<-done
		return nil
	}
}
