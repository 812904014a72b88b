package cmd

import (
	"fmt"
	"math"

	"github.com/tksuoran/bvh/builder"
	"github.com/tksuoran/bvh/optimizer"
	"github.com/tksuoran/bvh/sah"
	"github.com/tksuoran/bvh/synth"
	"github.com/urfave/cli"
)

// Map the build flags to builder options.
func builderOptions(ctx *cli.Context) (builder.Options, error) {
	tieBreak, err := sah.ParseTieBreak(ctx.String("tie-break"))
	if err != nil {
		return builder.Options{}, err
	}

	return builder.Options{
		Config: builder.Config{
			MinLeafSize: ctx.Int("min-leaf"),
			MaxLeafSize: ctx.Int("max-leaf"),
			Cost: sah.Config{
				TraversalCost:    float32(ctx.Float64("traversal-cost")),
				IntersectionCost: float32(ctx.Float64("intersection-cost")),
				TieBreak:         tieBreak,
			},
			Workers:           ctx.GlobalInt("workers"),
			ParallelThreshold: ctx.Int("grain"),
		},
		BinCount:     ctx.Int("bins"),
		SearchRadius: ctx.Int("radius"),
		MortonBits:   ctx.Int("morton-bits"),
	}, nil
}

// Map the optimizer flags to an optimizer config.
func optimizerConfig(ctx *cli.Context, cost sah.Config) optimizer.Config {
	return optimizer.Config{
		MaxIterations:        ctx.Int("opt-iterations"),
		BatchSize:            ctx.Int("opt-batch"),
		ConvergenceThreshold: ctx.Float64("opt-threshold"),
		Workers:              ctx.GlobalInt("workers"),
		Cost:                 cost,
	}
}

// Generate the synthetic scene selected by the scene flags.
func generateScene(ctx *cli.Context) (synth.BoxSet, error) {
	count := ctx.Int("count")
	if count < 0 {
		return nil, fmt.Errorf("primitive count %d must be >= 0", count)
	}

	switch name := ctx.String("scene"); name {
	case "grid":
		side := int(math.Ceil(math.Cbrt(float64(count))))
		return synth.Grid(side, side, side, 0.8, 1), nil
	case "random":
		extent := float32(math.Cbrt(float64(count))) * 4
		return synth.Random(count, ctx.Int64("seed"), extent, 2), nil
	default:
		return nil, fmt.Errorf("unknown scene type %q; supported types: grid, random", name)
	}
}
