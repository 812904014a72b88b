package builder

import (
	"fmt"

	"github.com/tksuoran/bvh/parallel"
	"github.com/tksuoran/bvh/sah"
)

// Settings shared by all builders.
type Config struct {
	// Nodes with at most this many primitives become leaves without
	// evaluating any split. Must be >= 1.
	MinLeafSize int

	// Nodes with more primitives than this are split even if the best split
	// costs more than a leaf. Must be >= MinLeafSize.
	//
	// The bottom-up builders always emit single-primitive leaves and ignore
	// both leaf size settings.
	MaxLeafSize int

	// SAH constants and tie-break policy.
	Cost sah.Config

	// Max number of goroutines per parallel step. Zero selects GOMAXPROCS.
	Workers int

	// Work below this number of primitives runs sequentially. Zero selects
	// parallel.DefaultGrain.
	ParallelThreshold int
}

// Default shared settings.
func DefaultConfig() Config {
	return Config{
		MinLeafSize:       1,
		MaxLeafSize:       8,
		Cost:              sah.DefaultConfig(),
		ParallelThreshold: parallel.DefaultGrain,
	}
}

func (c Config) Validate() error {
	if c.MinLeafSize < 1 {
		return fmt.Errorf("%w: min leaf size %d must be >= 1", ErrInvalidConfig, c.MinLeafSize)
	}
	if c.MaxLeafSize < c.MinLeafSize {
		return fmt.Errorf("%w: max leaf size %d must be >= min leaf size %d", ErrInvalidConfig, c.MaxLeafSize, c.MinLeafSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: worker count %d must be >= 0", ErrInvalidConfig, c.Workers)
	}
	if c.ParallelThreshold < 0 {
		return fmt.Errorf("%w: parallel threshold %d must be >= 0", ErrInvalidConfig, c.ParallelThreshold)
	}
	if err := c.Cost.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) executor() *parallel.Executor {
	return parallel.New(c.Workers, c.ParallelThreshold)
}

type BinnedConfig struct {
	Config

	// Number of centroid bins per axis. Must be >= 2.
	BinCount int
}

func DefaultBinnedConfig() BinnedConfig {
	return BinnedConfig{Config: DefaultConfig(), BinCount: 16}
}

func (c BinnedConfig) Validate() error {
	if c.BinCount < 2 {
		return fmt.Errorf("%w: bin count %d must be >= 2", ErrInvalidConfig, c.BinCount)
	}
	return c.Config.Validate()
}

type SweepConfig struct {
	Config
}

func DefaultSweepConfig() SweepConfig {
	return SweepConfig{Config: DefaultConfig()}
}

// Settings for BuildClustered. Every leaf of a clustered tree holds exactly one
// primitive; MinLeafSize and MaxLeafSize are validated but have no effect.
type ClusterConfig struct {
	Config

	// Number of neighbors on each side of a cluster (in Morton order) that
	// are searched for a merge partner. Zero merges adjacent pairs.
	SearchRadius int

	// Morton code width; 32 or 64.
	MortonBits int
}

func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{Config: DefaultConfig(), SearchRadius: 14, MortonBits: 32}
}

func (c ClusterConfig) Validate() error {
	if c.SearchRadius < 0 {
		return fmt.Errorf("%w: search radius %d must be >= 0", ErrInvalidConfig, c.SearchRadius)
	}
	if err := validateMortonBits(c.MortonBits); err != nil {
		return err
	}
	return c.Config.Validate()
}

// Settings for BuildLinear. Every leaf of a linear tree holds exactly one
// primitive; MinLeafSize and MaxLeafSize are validated but have no effect.
type LinearConfig struct {
	Config

	// Morton code width; 32 or 64.
	MortonBits int
}

func DefaultLinearConfig() LinearConfig {
	return LinearConfig{Config: DefaultConfig(), MortonBits: 64}
}

func (c LinearConfig) Validate() error {
	if err := validateMortonBits(c.MortonBits); err != nil {
		return err
	}
	return c.Config.Validate()
}

func validateMortonBits(bits int) error {
	if bits != 32 && bits != 64 {
		return fmt.Errorf("%w: morton code width %d must be 32 or 64", ErrInvalidConfig, bits)
	}
	return nil
}
