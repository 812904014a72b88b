package main

import (
	"fmt"
	"os"

	"github.com/tksuoran/bvh/builder"
	"github.com/tksuoran/bvh/cmd"
	"github.com/tksuoran/bvh/optimizer"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	defaults := builder.DefaultOptions()
	optDefaults := optimizer.DefaultConfig()

	sceneFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "scene",
			Value: "random",
			Usage: "synthetic scene type (grid, random)",
		},
		cli.IntFlag{
			Name:  "count, n",
			Value: 100000,
			Usage: "number of primitives; grids are rounded up to the next cube",
		},
		cli.Int64Flag{
			Name:  "seed",
			Value: 1,
			Usage: "random seed for scenes and rays",
		},
	}
	buildFlags := []cli.Flag{
		cli.IntFlag{
			Name:  "min-leaf",
			Value: defaults.MinLeafSize,
			Usage: "nodes with at most this many primitives become leaves",
		},
		cli.IntFlag{
			Name:  "max-leaf",
			Value: defaults.MaxLeafSize,
			Usage: "nodes with more primitives than this are always split",
		},
		cli.Float64Flag{
			Name:  "traversal-cost",
			Value: float64(defaults.Cost.TraversalCost),
			Usage: "SAH cost of visiting an internal node",
		},
		cli.Float64Flag{
			Name:  "intersection-cost",
			Value: float64(defaults.Cost.IntersectionCost),
			Usage: "SAH cost of a primitive intersection",
		},
		cli.StringFlag{
			Name:  "tie-break",
			Value: defaults.Cost.TieBreak.String(),
			Usage: "policy for splits with equal cost (first, last, balanced)",
		},
		cli.IntFlag{
			Name:  "grain",
			Value: defaults.ParallelThreshold,
			Usage: "primitive count below which build steps run sequentially",
		},
		cli.IntFlag{
			Name:  "bins",
			Value: defaults.BinCount,
			Usage: "number of bins per axis for the binned builder",
		},
		cli.IntFlag{
			Name:  "radius",
			Value: defaults.SearchRadius,
			Usage: "neighbor search radius for the clustering builder",
		},
		cli.IntFlag{
			Name:  "morton-bits",
			Value: defaults.MortonBits,
			Usage: "morton code width for the clustering and linear builders (32, 64)",
		},
		cli.BoolFlag{
			Name:  "optimize",
			Usage: "run the reinsertion optimizer after building",
		},
		cli.IntFlag{
			Name:  "opt-iterations",
			Value: optDefaults.MaxIterations,
			Usage: "max optimizer iterations",
		},
		cli.IntFlag{
			Name:  "opt-batch",
			Value: optDefaults.BatchSize,
			Usage: "candidates evaluated per optimizer iteration (0 = 5% of the nodes)",
		},
		cli.Float64Flag{
			Name:  "opt-threshold",
			Value: optDefaults.ConvergenceThreshold,
			Usage: "stop optimizing once the relative cost improvement drops below this value",
		},
		cli.BoolFlag{
			Name:  "verify",
			Usage: "validate the tree structure (and hits for bench)",
		},
	}

	app := cli.NewApp()
	app.Name = "bvh"
	app.Usage = "build, optimize and benchmark bounding volume hierarchies"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringSliceFlag{
			Name:  "log-level",
			Usage: "override the log level of a single module (module=level)",
		},
		cli.IntFlag{
			Name:  "workers",
			Value: 0,
			Usage: "max number of worker goroutines (0 = GOMAXPROCS)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "build",
			Usage: "build a BVH over a synthetic scene",
			Description: `
Generate a synthetic box scene, build a BVH with the selected algorithm and
print the tree statistics. The tree can optionally be optimized and written to
a zip archive that can be inspected with the info command.`,
			Flags: append(append([]cli.Flag{
				cli.StringFlag{
					Name:  "algo, a",
					Value: builder.Binned.String(),
					Usage: "construction algorithm (binned, sweep, ploc, lbvh)",
				},
				cli.StringFlag{
					Name:  "out, o",
					Usage: "write the tree to this zip archive",
				},
			}, sceneFlags...), buildFlags...),
			Action: cmd.BuildTree,
		},
		{
			Name:  "bench",
			Usage: "compare all construction algorithms",
			Description: `
Build a BVH with every algorithm over the same synthetic scene and trace random
rays through each of them in closest-hit and any-hit mode.`,
			Flags: append(append([]cli.Flag{
				cli.IntFlag{
					Name:  "rays",
					Value: 100000,
					Usage: "number of random rays to trace",
				},
			}, sceneFlags...), buildFlags...),
			Action: cmd.Bench,
		},
		{
			Name:      "info",
			Usage:     "display statistics of a stored tree",
			ArgsUsage: "tree.zip",
			Action:    cmd.TreeInfo,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
