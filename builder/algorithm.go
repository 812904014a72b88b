package builder

import (
	"fmt"
	"strings"

	"github.com/tksuoran/bvh/tree"
)

// Algorithm selects a bvh construction strategy.
type Algorithm uint8

const (
	Binned Algorithm = iota
	Sweep
	Clustered
	Linear
)

var algorithmNames = [...]string{"binned", "sweep", "ploc", "lbvh"}

func (a Algorithm) String() string {
	if int(a) < len(algorithmNames) {
		return algorithmNames[a]
	}
	return "unknown"
}

// Parse an algorithm name as returned by Algorithm.String.
func ParseAlgorithm(name string) (Algorithm, error) {
	for index, algoName := range algorithmNames {
		if strings.EqualFold(name, algoName) {
			return Algorithm(index), nil
		}
	}
	return Binned, fmt.Errorf("%w %q; supported algorithms: %s", ErrUnknownAlgorithm, name, strings.Join(algorithmNames[:], ", "))
}

// Options carries the settings of every algorithm so a caller can pick one at
// runtime. Settings that do not apply to the selected algorithm are ignored.
type Options struct {
	Config

	BinCount     int
	SearchRadius int
	MortonBits   int
}

func DefaultOptions() Options {
	return Options{
		Config:       DefaultConfig(),
		BinCount:     DefaultBinnedConfig().BinCount,
		SearchRadius: DefaultClusterConfig().SearchRadius,
		MortonBits:   DefaultLinearConfig().MortonBits,
	}
}

// Build runs the selected algorithm.
func Build(algo Algorithm, prims BoundedVolumeSet, opts Options) (*tree.Tree, error) {
	switch algo {
	case Binned:
		return BuildBinned(prims, BinnedConfig{Config: opts.Config, BinCount: opts.BinCount})
	case Sweep:
		return BuildSweep(prims, SweepConfig{Config: opts.Config})
	case Clustered:
		return BuildClustered(prims, ClusterConfig{Config: opts.Config, SearchRadius: opts.SearchRadius, MortonBits: opts.MortonBits})
	case Linear:
		return BuildLinear(prims, LinearConfig{Config: opts.Config, MortonBits: opts.MortonBits})
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, algo)
}
