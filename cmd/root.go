// Package cmd provides the weft command-line interface.
//
// Configuration is resolved from multiple sources with clear precedence:
//
//  1. Command-line flags (--port, --log-level, ...) - highest priority
//  2. WEFT_ environment variables (WEFT_SERVER_PORT, WEFT_LOGGING_LEVEL, ...)
//  3. The configuration file (.weft.yml, or --config / WEFT_CONFIG_FILE)
//  4. Built-in defaults - lowest priority
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/weft-dev/weft/internal/config"
	"github.com/weft-dev/weft/internal/engine"
	"github.com/weft-dev/weft/internal/logging"
	"github.com/weft-dev/weft/internal/scheduler"
	"github.com/weft-dev/weft/internal/tracker"
	"github.com/weft-dev/weft/internal/watcher"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Comment-directive templating for static web projects",
	Long: `Weft turns annotated source files into static outputs. Directives ride
in ordinary comments, so sources stay valid HTML the whole time: pages
include shared partials, data blocks declare variables, and $$name$$
tokens substitute them per output profile.

Quick start:
  weft init                 Scaffold a project in the current directory
  weft build                Generate every output once
  weft watch                Regenerate outputs as sources change
  weft serve                Watch plus a live-reloading preview server
  weft list                 Show sources, outputs and variables

Command aliases: init (i), build (b), watch (w), serve (s), list (l),
interactive (m).`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default .weft.yml, or the WEFT_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig points viper at the right config file and enables WEFT_
// environment overrides. A missing config file is not an error; defaults
// apply.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("WEFT_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".weft")
	}

	viper.SetEnvPrefix("WEFT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	_ = viper.ReadInConfig()
}

// project bundles the wired processing stack the generation commands share.
type project struct {
	cfg       *config.Config
	logger    logging.Logger
	processor *engine.Processor
	engines   *engine.Set
	tracker   *tracker.Tracker
	scheduler *scheduler.Scheduler
}

// openProject loads configuration and wires the engines, reference tracker
// and scheduler over it. Positional arguments become target files.
func openProject(args []string) (*project, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("cannot load configuration: %w", err)
	}
	cfg.TargetFiles = args

	logger := newLogger(cfg)

	return wireProject(cfg, logger)
}

func wireProject(cfg *config.Config, logger logging.Logger) (*project, error) {
	p, err := engine.NewProcessor(cfg, logger)
	if err != nil {
		return nil, err
	}

	engines := []engine.Engine{
		engine.NewPageEngine(p),
		engine.NewCodeEngine(p),
		engine.NewSassEngine(p, cfg.Sass.Command, cfg.Sass.Args, logger),
	}
	if cfg.Output.Static {
		engines = append(engines, engine.NewStaticEngine(p))
	}
	set := engine.NewSet(engines...)

	tr, err := tracker.New(cfg, set, logger)
	if err != nil {
		return nil, err
	}

	return &project{
		cfg:       cfg,
		logger:    logger,
		processor: p,
		engines:   set,
		tracker:   tr,
		scheduler: scheduler.New(set, tr, logger),
	}, nil
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
}

// newWatcher builds the filesystem watcher for a project: dotfiles, ignored
// paths and the output tree are filtered out so generated files never feed
// back into generation.
func newWatcher(p *project) (*watcher.FileWatcher, error) {
	w, err := watcher.New(time.Duration(p.cfg.Watch.Debounce)*time.Millisecond, p.logger)
	if err != nil {
		return nil, err
	}

	w.AddFilter(watcher.NoDotfileFilter)
	if out := p.processor.OutputDir(); out != "" {
		w.AddFilter(watcher.NotUnderFilter(out))
	}

	ignore := append(append([]string{}, p.cfg.Source.Ignore...), p.cfg.Watch.Ignore...)
	if len(ignore) > 0 {
		w.AddFilter(watcher.IgnoreFilter(p.tracker.Root(), ignore))
	}

	if err := w.AddRecursive(p.tracker.Root()); err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", p.tracker.Root(), err)
	}

	return w, nil
}
