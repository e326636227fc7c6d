package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:     "build [file ...]",
	Aliases: []string{"b"},
	Short:   "Generate all outputs once",
	Long: `Process the source tree once and write every output, then exit.
With file arguments only those sources are processed, each together with
the files that reference it.

Examples:
  weft build                 # Generate the whole project
  weft build index.weft      # Regenerate one page and its referencers`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	p, err := openProject(args)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	var written int
	p.scheduler.OnCascade(func(outputs []string) {
		written += len(outputs)
	})

	if len(args) > 0 {
		var failed bool
		for _, path := range args {
			if err := p.scheduler.HandleChange(ctx, path); err != nil {
				fmt.Fprintf(os.Stderr, "weft: %v\n", err)
				failed = true
			}
		}
		if failed {
			return fmt.Errorf("build finished with failures")
		}
	} else if err := p.scheduler.GenerateAll(ctx); err != nil {
		return err
	}

	fmt.Printf("wrote %d output file(s)\n", written)

	return nil
}

// signalContext returns a context canceled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
