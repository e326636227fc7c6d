package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/weft-dev/weft/internal/server"
	"github.com/weft-dev/weft/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve outputs with live reload",
	Long: `Run the watch loop and serve the generated output tree over HTTP.
Served HTML pages carry a reload client: when a cascade finishes, open
browser tabs refresh themselves, and stylesheet-only changes swap CSS
in place without a full reload.

Examples:
  weft serve                   # Serve on the configured address
  weft serve -p 3000           # Override the port
  weft serve --no-open         # Don't open a browser`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "port to serve on")
	serveCmd.Flags().String("host", "localhost", "host to bind to")
	serveCmd.Flags().Bool("no-open", false, "don't open the browser automatically")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.no-open", serveCmd.Flags().Lookup("no-open"))
}

func runServe(cmd *cobra.Command, args []string) error {
	p, err := openProject(args)
	if err != nil {
		return err
	}

	srv, err := server.New(p.cfg, p.logger)
	if err != nil {
		return fmt.Errorf("cannot create server: %w", err)
	}

	p.scheduler.OnCascade(srv.Reload)

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

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("shutdown: %v\n", err)
		}
	}()

	fmt.Printf("serving %s at http://%s\n", srv.Root(), srv.Addr())

	return srv.Start(ctx)
}
