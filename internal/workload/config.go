package workload

import (
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

// Scenario names accepted in Config.Scenarios.
const (
	ScenarioRequest    = "request"
	ScenarioVirtual    = "virtual"
	ScenarioSafeArena  = "safe-arena"
	ScenarioPoolLIFO   = "pool-lifo"
	ScenarioPoolMixed  = "pool-mixed"
	ScenarioPoolShared = "pool-shared"
)

// Scenarios lists every scenario in the order Run executes them.
var Scenarios = []string{
	ScenarioRequest,
	ScenarioVirtual,
	ScenarioSafeArena,
	ScenarioPoolLIFO,
	ScenarioPoolMixed,
	ScenarioPoolShared,
}

// Config describes one workload run. It decodes from TOML.
type Config struct {
	Scenarios      []string `toml:"scenarios"`
	Iterations     int      `toml:"iterations"`
	Workers        int      `toml:"workers"`
	Seed           uint64   `toml:"seed"`
	ArenaSize      int      `toml:"arena_size"`
	ArenaAlignment int      `toml:"arena_alignment"`
	VirtualReserve int      `toml:"virtual_reserve"`
	SlabCapacity   int      `toml:"slab_capacity"`
	MaxCount       int      `toml:"max_count"`
}

// DefaultConfig returns a configuration that runs every scenario briefly.
func DefaultConfig() Config {
	return Config{
		Scenarios:      slices.Clone(Scenarios),
		Iterations:     1000,
		Workers:        4,
		Seed:           1,
		ArenaSize:      8 << 10,
		ArenaAlignment: 16,
		VirtualReserve: 1 << 20,
		SlabCapacity:   256,
		MaxCount:       64,
	}
}

// LoadFile overlays the TOML file at path on the defaults.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrapf(err, "decoding workload file %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.Newf("workload file %s: unknown keys %v", path, undecoded)
	}
	return cfg, nil
}

// Validate reports the first problem with c.
func (c Config) Validate() error {
	if len(c.Scenarios) == 0 {
		return errors.New("no scenarios selected")
	}
	for _, s := range c.Scenarios {
		if !slices.Contains(Scenarios, s) {
			return errors.Newf("unknown scenario %q", s)
		}
	}
	switch {
	case c.Iterations <= 0:
		return errors.Newf("iterations must be positive, got %d", c.Iterations)
	case c.Workers <= 0:
		return errors.Newf("workers must be positive, got %d", c.Workers)
	case c.ArenaSize <= 0:
		return errors.Newf("arena_size must be positive, got %d", c.ArenaSize)
	case c.ArenaAlignment <= 0 || c.ArenaAlignment&(c.ArenaAlignment-1) != 0:
		return errors.Newf("arena_alignment must be a power of two, got %d", c.ArenaAlignment)
	case c.VirtualReserve <= 0:
		return errors.Newf("virtual_reserve must be positive, got %d", c.VirtualReserve)
	case c.SlabCapacity <= 0:
		return errors.Newf("slab_capacity must be positive, got %d", c.SlabCapacity)
	case c.MaxCount <= 0:
		return errors.Newf("max_count must be positive, got %d", c.MaxCount)
	}
	return nil
}
