package cmd

import (
	"bytes"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/tksuoran/bvh/builder"
	"github.com/tksuoran/bvh/optimizer"
	"github.com/tksuoran/bvh/sah"
	"github.com/tksuoran/bvh/tree"
	"github.com/tksuoran/bvh/treeio"
	"github.com/urfave/cli"
)

// Build a tree over a synthetic scene.
func BuildTree(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	algo, err := builder.ParseAlgorithm(ctx.String("algo"))
	if err != nil {
		return err
	}
	opts, err := builderOptions(ctx)
	if err != nil {
		return err
	}
	set, err := generateScene(ctx)
	if err != nil {
		return err
	}

	logger.Noticef("building %s BVH over %d primitives", algo, set.Len())
	start := time.Now()
	t, err := builder.Build(algo, set, opts)
	if err != nil {
		return err
	}
	buildTime := time.Since(start)

	var optStats *optimizer.Stats
	if ctx.Bool("optimize") {
		stats, err := optimizer.Optimize(t, optimizerConfig(ctx, opts.Cost))
		if err != nil {
			return err
		}
		optStats = &stats
	}

	if ctx.Bool("verify") {
		if err = t.Verify(set.Box); err != nil {
			return err
		}
		logger.Notice("tree verified")
	}

	displayTreeStats(fmt.Sprintf("%s BVH (built in %s)", algo, buildTime), t, opts.Cost, optStats)

	if out := ctx.String("out"); out != "" {
		return treeio.Write(t, out)
	}
	return nil
}

// Print tree statistics.
func displayTreeStats(title string, t *tree.Tree, cost sah.Config, optStats *optimizer.Stats) {
	stats := t.Stats()

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Metric", "Value"})
	table.AppendBulk([][]string{
		{"Primitives", fmt.Sprintf("%d", len(t.PrimIndices))},
		{"Nodes", fmt.Sprintf("%d", stats.Nodes)},
		{"Leaves", fmt.Sprintf("%d", stats.Leaves)},
		{"Max depth", fmt.Sprintf("%d", stats.MaxDepth)},
		{"Leaf size (min/avg/max)", fmt.Sprintf("%d / %.2f / %d", stats.MinLeafSize, stats.AvgLeafSize, stats.MaxLeafSize)},
		{"SAH cost", fmt.Sprintf("%.4f", t.Cost(cost))},
	})
	if optStats != nil {
		table.AppendBulk([][]string{
			{"Optimizer iterations", fmt.Sprintf("%d", optStats.Iterations)},
			{"Optimizer moves", fmt.Sprintf("%d", optStats.Moves)},
			{"Cost before optimizing", fmt.Sprintf("%.4f", optStats.InitialCost)},
		})
	}

	table.Render()
	logger.Noticef("%s\n%s", title, buf.String())
}
