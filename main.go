package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pthm-cable/mudtrack/config"
	"github.com/pthm-cable/mudtrack/scenario"
	"github.com/pthm-cable/mudtrack/sim"
	"github.com/pthm-cable/mudtrack/storage"
	"github.com/pthm-cable/mudtrack/telemetry"
	"github.com/pthm-cable/mudtrack/terrain"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	scenarioName := flag.String("scenario", "mud-run", "Built-in scenario name or path to a scenario YAML file")
	list := flag.Bool("list", false, "List built-in scenarios and exit")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, config and bookmark snapshots")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = scenario length)")
	storePath := flag.String("store", "", "SQLite snapshot store (empty = use config)")
	resume := flag.Bool("resume", false, "Resume from the latest snapshot in the store")
	influx := flag.Bool("influx", false, "Stream wheel points to InfluxDB (overrides config)")
	seed := flag.Int64("seed", 0, "Terrain seed (0 = use scenario)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *list {
		fmt.Println(strings.Join(scenario.Builtins(), "\n"))
		return
	}

	if err := run(options{
		configPath:  *configPath,
		scenario:    *scenarioName,
		logStats:    *logStats,
		statsWindow: *statsWindow,
		outputDir:   *outputDir,
		maxTicks:    *maxTicks,
		storePath:   *storePath,
		resume:      *resume,
		influx:      *influx,
		seed:        *seed,
	}); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	scenario    string
	logStats    bool
	statsWindow float64
	outputDir   string
	maxTicks    int
	storePath   string
	resume      bool
	influx      bool
	seed        int64
}

func run(o options) error {
	// Initialize config before anything else
	if err := config.Init(o.configPath); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := terrain.Validate(); err != nil {
		return fmt.Errorf("property tables: %w", err)
	}
	cfg := config.Cfg()

	sc, err := scenario.Resolve(o.scenario, cfg)
	if err != nil {
		return err
	}
	if o.maxTicks > 0 {
		sc.Ticks = o.maxTicks
	}
	if o.seed != 0 {
		sc.Ground.Seed = o.seed
	}

	opts := scenario.RunOptions{
		Config:         cfg,
		LogStats:       o.logStats,
		StatsWindowSec: o.statsWindow,
		OutputDir:      o.outputDir,
	}

	path := cfg.Storage.Path
	if o.storePath != "" {
		path = o.storePath
	}
	if path != "" {
		store, err := storage.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Store = store

		if o.resume {
			tick, err := store.Latest()
			switch {
			case errors.Is(err, storage.ErrNoSnapshots):
				slog.Warn("no snapshot to resume from, starting fresh", "store", path)
			case err != nil:
				return err
			default:
				states, err := store.Load(tick)
				if err != nil {
					return err
				}
				slog.Info("resuming", "tick", tick, "wheels", len(states))
				opts.Restore = func(s *sim.Sim) error { return s.Restore(tick, states) }
			}
		}
	} else if o.resume {
		return errors.New("-resume needs a snapshot store")
	}

	icfg := cfg.Influx
	if o.influx {
		icfg.Enabled = true
	}
	sink, err := telemetry.NewInfluxSink(context.Background(), icfg)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Close()
		opts.Influx = sink
	}

	slog.Info("starting simulation",
		"scenario", sc.Name,
		"ticks", sc.Ticks,
		"vehicles", len(sc.Vehicles),
		"ground", sc.Ground.Kind,
		"surface", sc.Ground.Surface,
		"weather", sc.Weather.Default,
	)

	res, err := scenario.Run(sc, opts)
	if err != nil {
		return err
	}

	slog.Info("simulation finished",
		"scenario", res.Name,
		"tick", res.Ticks,
		"wheels", len(res.Final),
		"windows", len(res.Windows),
		"rejected", len(res.Rejections),
	)
	for _, w := range res.Final {
		out := &w.Record.Output
		slog.Info("wheel",
			"vehicle", w.VehicleID,
			"wheel", w.Index,
			"grounded", out.Grounded,
			"slip_ratio", out.SlipRatio,
			"traction", out.TractionCoefficient,
			"pressure", out.Pressure,
			"tread_wear", out.TreadWear,
			"mud_particles", out.MudParticles,
			"condition", out.Condition.String(),
		)
	}
	return nil
}
