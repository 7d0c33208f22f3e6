package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
)

func runDrop(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("drop", "")
	var common commonFlags
	common.register(fs)
	yes := fs.Bool("yes", false, "confirm dropping the collection")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		fs.Usage()
		return fmt.Errorf("%w: drop needs -yes", errUsage)
	}

	cfg, backend, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	existed, err := backend.DB.Delete(ctx)
	if err != nil {
		return err
	}
	if !existed {
		color.New(color.FgYellow).Fprintf(stdout, "Collection %q did not exist\n", cfg.Backend.Collection)
		return nil
	}
	color.New(color.FgGreen).Fprintf(stdout, "✓ Dropped collection %q\n", cfg.Backend.Collection)
	return nil
}
