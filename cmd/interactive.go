package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weft-dev/weft/internal/scaffolding"
	"github.com/weft-dev/weft/internal/validation"
	"github.com/weft-dev/weft/internal/version"
)

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"m"},
	Short:   "Interactive shell for project tasks",
	Long: `A small shell for common project tasks without remembering flags:
create pages and partials, check the version, quit. Type help inside
the shell for the command list.`,
	RunE: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	p, err := openProject(nil)
	if err != nil {
		return err
	}

	root := p.tracker.Root()
	g := scaffolding.New(root, filepath.Base(root), p.logger)

	return interactiveSession(cmd.Context(), os.Stdin, os.Stdout, g)
}

// interactiveSession runs the shell loop over the given streams. Input runs
// through SanitizeInput first; pasted control characters must not reach file
// names or the terminal.
func interactiveSession(ctx context.Context, in io.Reader, out io.Writer, g *scaffolding.Generator) error {
	fmt.Fprintf(out, "weft %s interactive shell, type help for commands\n", version.Short())

	reader := bufio.NewReader(in)

	for {
		fmt.Fprint(out, "weft> ")

		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(validation.SanitizeInput(line))
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit", "q":
			fmt.Fprintln(out, "bye")
			return nil

		case "version":
			fmt.Fprintln(out, version.Short())

		case "help", "?":
			printInteractiveHelp(out)

		case "new":
			if len(fields) != 3 {
				fmt.Fprintln(out, "usage: new page NAME | new partial NAME")
				continue
			}
			handleInteractiveNew(ctx, out, g, fields[1], fields[2])

		default:
			fmt.Fprintf(out, "unknown command %q, type help for commands\n", fields[0])
		}
	}
}

func handleInteractiveNew(ctx context.Context, out io.Writer, g *scaffolding.Generator, kind, name string) {
	var path string
	var err error

	switch kind {
	case "page":
		path, err = g.NewPage(ctx, name)
	case "partial":
		path, err = g.NewPartial(ctx, name)
	default:
		fmt.Fprintln(out, "usage: new page NAME | new partial NAME")
		return
	}

	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}

	fmt.Fprintf(out, "created %s\n", path)
}

func printInteractiveHelp(out io.Writer) {
	fmt.Fprint(out, `commands:
  new page NAME      create a page source (NAME.weft)
  new partial NAME   create a partial (_partials/_NAME.weft)
  version            show the weft version
  help               show this help
  quit               leave the shell
`)
}
