package cmd

import (
	"errors"

	"github.com/tksuoran/bvh/sah"
	"github.com/tksuoran/bvh/treeio"
	"github.com/urfave/cli"
)

// Display the statistics of a persisted tree.
func TreeInfo(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return errors.New("missing tree file argument")
	}

	t, err := treeio.Read(ctx.Args().First())
	if err != nil {
		return err
	}

	displayTreeStats(ctx.Args().First(), t, sah.DefaultConfig(), nil)
	return nil
}
