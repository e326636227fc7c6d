package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weft-dev/weft/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Regenerate outputs as sources change",
	Long: `Generate the whole project, then keep watching the source tree and
regenerate outputs as files change. Editing a partial regenerates every
page built on it.

Examples:
  weft watch                    # Watch with settings from .weft.yml
  weft watch --log-level debug  # Show every processed file`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	p, err := openProject(args)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := p.scheduler.GenerateAll(ctx); err != nil {
		fmt.Printf("initial generation: %v\n", err)
	}

	w, err := newWatcher(p)
	if err != nil {
		return err
	}
	defer w.Stop()

	w.AddHandler(func(event watcher.Event) error {
		return p.scheduler.HandleChange(ctx, event.Path)
	})
	w.Start(ctx)

	fmt.Printf("watching %s, press Ctrl+C to stop\n", p.tracker.Root())

	<-ctx.Done()
	fmt.Println("stopping")

	return nil
}
