package cmd

import (
	"fmt"
	"strings"

	"github.com/tksuoran/bvh/log"
	"github.com/urfave/cli"
)

var logger = log.New("bvh")

func setupLogging(ctx *cli.Context) error {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}

	// Per module overrides, e.g. --log-level optimizer=debug
	for _, override := range ctx.GlobalStringSlice("log-level") {
		module, levelName, found := strings.Cut(override, "=")
		if !found {
			return fmt.Errorf("invalid log level override %q; expected module=level", override)
		}
		level, err := log.ParseLevel(levelName)
		if err != nil {
			return err
		}
		log.SetModuleLevel(module, level)
	}
	return nil
}
