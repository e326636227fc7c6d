package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/weft-dev/weft/internal/logging"
	"github.com/weft-dev/weft/internal/scaffolding"
)

var (
	initName  string
	initForce bool
)

var initCmd = &cobra.Command{
	Use:     "init [directory]",
	Aliases: []string{"i"},
	Short:   "Scaffold a new weft project",
	Long: `Create a starter project: configuration, an index page, a shared
header partial, a base stylesheet, and a sample Go code source. Without
a directory argument the current directory is used.

Examples:
  weft init                   # Scaffold into the current directory
  weft init mysite            # Create and scaffold ./mysite
  weft init --name "My Site"  # Override the project name`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initName, "name", "", "project name (default: the directory name)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("cannot create project directory: %w", err)
	}

	name := initName
	if name == "" {
		name = filepath.Base(root)
	}

	g := scaffolding.New(root, name, logging.NewLogger(nil))

	written, err := g.InitProject(cmd.Context(), scaffolding.InitOptions{Force: initForce})
	if err != nil {
		return err
	}

	fmt.Printf("initialized %s\n", name)
	for _, path := range written {
		if rel, relErr := filepath.Rel(root, path); relErr == nil {
			path = rel
		}
		fmt.Printf("  %s\n", path)
	}
	fmt.Println("\nnext steps:")
	if dir != "." {
		fmt.Printf("  cd %s\n", dir)
	}
	fmt.Println("  weft serve")

	return nil
}
