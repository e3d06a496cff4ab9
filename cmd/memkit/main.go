// memkit replays allocation workloads against the arena and block pool
// allocators and reports slab and arena statistics.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pavanmanishd/memkit/blockpool"
	"github.com/pavanmanishd/memkit/internal/workload"
)

const workloadCategory = "WORKLOAD"

var (
	configFlag = &cli.PathFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "TOML workload file; flags override its values",
	}
	scenarioFlag = &cli.StringSliceFlag{
		Name:     "scenario",
		Aliases:  []string{"s"},
		Usage:    "scenario to run, repeatable (request, virtual, safe-arena, pool-lifo, pool-mixed, pool-shared)",
		Category: workloadCategory,
	}
	iterationsFlag = &cli.IntFlag{
		Name:     "iterations",
		Usage:    "operations per scenario",
		Category: workloadCategory,
	}
	workersFlag = &cli.IntFlag{
		Name:     "workers",
		Usage:    "goroutines for the concurrent scenarios",
		Category: workloadCategory,
	}
	seedFlag = &cli.Uint64Flag{
		Name:     "seed",
		Usage:    "random seed",
		Category: workloadCategory,
	}
	arenaSizeFlag = &cli.IntFlag{
		Name:     "arena-size",
		Usage:    "usable bytes of the fixed arenas",
		Category: workloadCategory,
	}
	slabCapacityFlag = &cli.IntFlag{
		Name:     "slab-capacity",
		Usage:    "elements per block pool slab",
		Category: workloadCategory,
	}
	maxCountFlag = &cli.IntFlag{
		Name:     "max-count",
		Usage:    "largest regular request, in elements",
		Category: workloadCategory,
	}
	verboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "log allocator lifecycle events",
	}
	metricsAddrFlag = &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "listen address for the Prometheus endpoint",
		Value: "127.0.0.1:9464",
	}
	intervalFlag = &cli.DurationFlag{
		Name:  "interval",
		Usage: "pause between workload rounds",
		Value: defaultInterval,
	}
)

var workloadFlags = []cli.Flag{
	configFlag,
	scenarioFlag,
	iterationsFlag,
	workersFlag,
	seedFlag,
	arenaSizeFlag,
	slabCapacityFlag,
	maxCountFlag,
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "memkit",
		Usage: "exercise arena and block pool allocators",
		Flags: []cli.Flag{verboseFlag},
		Commands: []*cli.Command{
			runCommand,
			serveCommand,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelInfo
	if c.Bool(verboseFlag.Name) {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
}

// loadConfig builds the workload configuration from the optional file and
// any explicitly set flags.
func loadConfig(c *cli.Context) (workload.Config, error) {
	cfg := workload.DefaultConfig()
	if path := c.Path(configFlag.Name); path != "" {
		var err error
		if cfg, err = workload.LoadFile(path); err != nil {
			return workload.Config{}, err
		}
	}
	if c.IsSet(scenarioFlag.Name) {
		cfg.Scenarios = c.StringSlice(scenarioFlag.Name)
	}
	if c.IsSet(iterationsFlag.Name) {
		cfg.Iterations = c.Int(iterationsFlag.Name)
	}
	if c.IsSet(workersFlag.Name) {
		cfg.Workers = c.Int(workersFlag.Name)
	}
	if c.IsSet(seedFlag.Name) {
		cfg.Seed = c.Uint64(seedFlag.Name)
	}
	if c.IsSet(arenaSizeFlag.Name) {
		cfg.ArenaSize = c.Int(arenaSizeFlag.Name)
	}
	if c.IsSet(slabCapacityFlag.Name) {
		cfg.SlabCapacity = c.Int(slabCapacityFlag.Name)
	}
	if c.IsSet(maxCountFlag.Name) {
		cfg.MaxCount = c.Int(maxCountFlag.Name)
	}
	return cfg, nil
}

func newRunner(c *cli.Context, log *slog.Logger) (*workload.Runner, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	reg := blockpool.NewRegistry(blockpool.WithLogger(log))
	return workload.New(cfg, workload.WithRegistry(reg), workload.WithLogger(log))
}
