package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	"go.uber.org/zap"

	"github.com/stevenhcau/snowReport/internal/climacell"
	"github.com/stevenhcau/snowReport/internal/forecast"
	"github.com/stevenhcau/snowReport/internal/logging"
	"github.com/stevenhcau/snowReport/internal/registry"
	"github.com/stevenhcau/snowReport/internal/resort"
	"github.com/stevenhcau/snowReport/internal/store"
)

type Globals struct {
	APIKey      string        `name:"api-key" env:"CLIMACELL_API_KEY" help:"ClimaCell API key."`
	Registry    string        `env:"SNOWREPORT_REGISTRY" default:"data/skiResorts.json" type:"path" help:"Location registry file."`
	Groups      string        `env:"SNOWREPORT_GROUPS" default:"data/groups.json" type:"path" help:"Named location groups file."`
	Archive     string        `env:"SNOWREPORT_ARCHIVE" help:"SQLite file to archive fetch runs in (disabled when empty)."`
	BaseURL     string        `name:"base-url" env:"SNOWREPORT_BASE_URL" default:"https://api.climacell.co/v3/weather" help:"Provider base URL."`
	Timeout     time.Duration `env:"SNOWREPORT_TIMEOUT" default:"30s" help:"Per-request timeout."`
	Concurrency int           `env:"SNOWREPORT_CONCURRENCY" default:"4" help:"Locations fetched in parallel."`
	TZ          string        `name:"tz" env:"SNOWREPORT_TZ" help:"Zone for displayed times (default: system local)."`
	LogLevel    string        `env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error" help:"Log level."`
	LogFormat   string        `env:"LOG_FORMAT" default:"console" enum:"console,json" help:"Log format."`
}

type CLI struct {
	Globals

	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file.'"`

	Snow     SnowCmd     `cmd:"" default:"withargs" help:"Report snow expected in the next 4 days."`
	Realtime RealtimeCmd `cmd:"" help:"Show current conditions."`
	Series   SeriesCmd   `cmd:"" help:"Print one quantity over a forecast horizon."`
	Add      AddCmd      `cmd:"" help:"Add a location to the registry."`
	List     ListCmd     `cmd:"" help:"List registered locations."`
	Runs     RunsCmd     `cmd:"" help:"Show failed fetches from the archive."`
	Watch    WatchCmd    `cmd:"" help:"Repeat the snow report on an interval and serve metrics."`
}

func main() {
	var cli CLI
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kctx := kong.Parse(&cli,
		kong.Name("snowreport"),
		kong.Description("Snow forecasts for ski resorts."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Vars{"quantities": quantityNames()},
	)
	err := kctx.Run(&cli.Globals)
	var ce *registry.CollisionError
	if errors.As(err, &ce) {
		fmt.Fprintln(os.Stderr, "error:", ce)
		os.Exit(2)
	}
	kctx.FatalIfErrorf(err)
}

func quantityNames() string {
	names := make([]string, len(forecast.Quantities))
	for i, q := range forecast.Quantities {
		names[i] = string(q)
	}
	return strings.Join(names, ", ")
}

// app is the shared state commands are built from.
type app struct {
	globals  *Globals
	logger   *zap.SugaredLogger
	registry *registry.Registry
	groups   registry.Groups
	zone     *time.Location
	archive  *store.Store
}

func (g *Globals) open() (*app, error) {
	logger, err := logging.New(g.LogLevel, g.LogFormat)
	if err != nil {
		return nil, err
	}

	zone := time.Local
	if g.TZ != "" {
		zone, err = time.LoadLocation(g.TZ)
		if err != nil {
			return nil, fmt.Errorf("load zone %q: %w", g.TZ, err)
		}
	}

	groups, err := registry.LoadGroups(g.Groups)
	if err != nil {
		return nil, err
	}

	a := &app{
		globals:  g,
		logger:   logger,
		registry: registry.New(g.Registry),
		groups:   groups,
		zone:     zone,
	}

	if g.Archive != "" {
		a.archive, err = store.Open(g.Archive, logger)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) Close() {
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.logger.Warnw("close archive", "error", err)
		}
	}
	a.logger.Sync()
}

func (a *app) runner(horizons ...forecast.Horizon) (*resort.Runner, error) {
	if a.globals.APIKey == "" {
		return nil, errors.New("CLIMACELL_API_KEY is required (or --api-key)")
	}
	r := &resort.Runner{
		Fetcher:     climacell.NewClient(a.globals.APIKey, a.globals.BaseURL, a.globals.Timeout, a.logger),
		Logger:      a.logger,
		Zone:        a.zone,
		Concurrency: a.globals.Concurrency,
		Horizons:    horizons,
	}
	if a.archive != nil {
		r.Recorder = a.archive
	}
	return r, nil
}

func (a *app) requireArchive() error {
	if a.archive == nil {
		return errors.New("no fetch archive configured (set SNOWREPORT_ARCHIVE or --archive)")
	}
	return nil
}
