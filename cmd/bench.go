package cmd

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/tksuoran/bvh/builder"
	"github.com/tksuoran/bvh/optimizer"
	"github.com/tksuoran/bvh/parallel"
	"github.com/tksuoran/bvh/synth"
	"github.com/tksuoran/bvh/traverse"
	"github.com/tksuoran/bvh/tree"
	"github.com/tksuoran/bvh/types"
	"github.com/urfave/cli"
)

type benchResult struct {
	algo      builder.Algorithm
	buildTime time.Duration
	optTime   time.Duration
	stats     tree.Stats
	cost      float64

	closestHit, anyHit traceResult
}

type traceResult struct {
	elapsed time.Duration
	hits    int64
	leaves  int64
}

// Build trees with every algorithm, trace random rays through them and
// compare the results.
func Bench(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
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
	rays := synth.Rays(ctx.Int("rays"), ctx.Int64("seed")+1, set.Bounds())
	exec := parallel.New(ctx.GlobalInt("workers"), 256)

	var results []benchResult
	for _, algo := range []builder.Algorithm{builder.Binned, builder.Sweep, builder.Clustered, builder.Linear} {
		logger.Noticef("benchmarking %s BVH over %d primitives", algo, set.Len())
		res := benchResult{algo: algo}

		start := time.Now()
		t, err := builder.Build(algo, set, opts)
		if err != nil {
			return err
		}
		res.buildTime = time.Since(start)

		if ctx.Bool("optimize") {
			start = time.Now()
			if _, err = optimizer.Optimize(t, optimizerConfig(ctx, opts.Cost)); err != nil {
				return err
			}
			res.optTime = time.Since(start)
		}
		res.stats = t.Stats()
		res.cost = t.Cost(opts.Cost)

		traverser := traverse.New(t, set.Clone())
		res.closestHit = traceAll(exec, traverser, rays, traverse.ClosestHit)
		res.anyHit = traceAll(exec, traverser, rays, traverse.AnyHit)

		if ctx.Bool("verify") {
			if err = t.Verify(set.Box); err != nil {
				return err
			}
			if err = verifyClosestHits(exec, traverser, set, rays); err != nil {
				return fmt.Errorf("%s: %w", algo, err)
			}
		}
		results = append(results, res)
	}

	displayBenchResults(results, len(rays))
	return nil
}

func traceAll(exec *parallel.Executor, traverser *traverse.Traverser, rays []types.Ray, mode traverse.Mode) traceResult {
	var hits, leaves int64
	start := time.Now()
	exec.For(len(rays), func(r parallel.Range) {
		var localHits, localLeaves int64
		for _, ray := range rays[r.Begin:r.End] {
			_, ok, stats := traverser.TraceStats(ray, mode)
			if ok {
				localHits++
			}
			localLeaves += int64(stats.LeavesVisited)
		}
		atomic.AddInt64(&hits, localHits)
		atomic.AddInt64(&leaves, localLeaves)
	})
	return traceResult{elapsed: time.Since(start), hits: hits, leaves: leaves}
}

func verifyClosestHits(exec *parallel.Executor, traverser *traverse.Traverser, set synth.BoxSet, rays []types.Ray) error {
	var mismatches int64
	exec.For(len(rays), func(r parallel.Range) {
		for _, ray := range rays[r.Begin:r.End] {
			exp, expOk := traverse.BruteForce(set, set.Len(), ray, traverse.ClosestHit)
			got, gotOk := traverser.Trace(ray, traverse.ClosestHit)
			if expOk != gotOk || exp.Dist != got.Dist {
				atomic.AddInt64(&mismatches, 1)
			}
		}
	})
	if mismatches != 0 {
		return fmt.Errorf("%d of %d closest hits differ from a brute force scan", mismatches, len(rays))
	}
	logger.Info("closest hits match a brute force scan")
	return nil
}

func displayBenchResults(results []benchResult, rayCount int) {
	mrays := func(tr traceResult) string {
		secs := tr.elapsed.Seconds()
		if secs == 0 {
			return "-"
		}
		return fmt.Sprintf("%.2f", float64(rayCount)/secs/1e6)
	}
	avgLeaves := func(tr traceResult) string {
		if rayCount == 0 {
			return "-"
		}
		return fmt.Sprintf("%.1f", float64(tr.leaves)/float64(rayCount))
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Algorithm", "Build time", "Opt time", "Nodes", "Depth", "SAH cost", "Closest Mrays/s", "Any Mrays/s", "Leaves/ray (closest/any)", "Hits"})
	for _, res := range results {
		table.Append([]string{
			res.algo.String(),
			fmt.Sprintf("%s", res.buildTime),
			fmt.Sprintf("%s", res.optTime),
			fmt.Sprintf("%d", res.stats.Nodes),
			fmt.Sprintf("%d", res.stats.MaxDepth),
			fmt.Sprintf("%.4f", res.cost),
			mrays(res.closestHit),
			mrays(res.anyHit),
			fmt.Sprintf("%s / %s", avgLeaves(res.closestHit), avgLeaves(res.anyHit)),
			fmt.Sprintf("%d", res.closestHit.hits),
		})
	}

	table.Render()
	logger.Noticef("benchmark results for %d rays\n%s", rayCount, buf.String())
}
