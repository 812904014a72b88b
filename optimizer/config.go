package optimizer

import (
	"errors"
	"fmt"

	"github.com/tksuoran/bvh/sah"
)

var (
	ErrInvalidConfig = errors.New("bvh optimizer: invalid configuration")
)

type Config struct {
	// Max number of iterations that commit moves. Must be >= 1.
	MaxIterations int

	// Number of candidate nodes evaluated per iteration. Zero selects 5% of
	// the node count.
	BatchSize int

	// The optimizer stops once a sweep over all candidates improves the tree
	// cost by less than this fraction.
	ConvergenceThreshold float64

	// Max number of goroutines used for evaluating candidates. Zero selects
	// GOMAXPROCS.
	Workers int

	// SAH constants used for the tree cost.
	Cost sah.Config
}

func DefaultConfig() Config {
	return Config{
		MaxIterations:        32,
		ConvergenceThreshold: 1e-5,
		Cost:                 sah.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: max iterations %d must be >= 1", ErrInvalidConfig, c.MaxIterations)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: batch size %d must be >= 0", ErrInvalidConfig, c.BatchSize)
	}
	if !(c.ConvergenceThreshold >= 0) {
		return fmt.Errorf("%w: convergence threshold %f must be >= 0", ErrInvalidConfig, c.ConvergenceThreshold)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: worker count %d must be >= 0", ErrInvalidConfig, c.Workers)
	}
	if err := c.Cost.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
