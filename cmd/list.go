package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List sources, outputs and variables",
	Long: `Run discovery over the source tree and list every claimed source with
its outputs, profiles and declared variables. Nothing is written; sass
sources are listed from their default output name without invoking the
compiler.

Examples:
  weft list                   # Table of all sources
  weft list -f json           # Machine-readable listing
  weft list --with-vars       # Show variable names instead of counts
  weft list --with-refs       # Show referenced files`,
	RunE: runList,
}

var (
	listFormat   = newOutputFormat("table", listFormats)
	listWithVars bool
	listWithRefs bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().VarP(listFormat, "format", "f", "output format (table, json, yaml)")
	listCmd.Flags().BoolVar(&listWithVars, "with-vars", false, "list variable names instead of counts")
	listCmd.Flags().BoolVar(&listWithRefs, "with-refs", false, "include referenced files")
}

// listRow is one source in the listing.
type listRow struct {
	Source     string   `json:"source" yaml:"source"`
	Engine     string   `json:"engine" yaml:"engine"`
	Partial    bool     `json:"partial" yaml:"partial"`
	Outputs    []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Profiles   []string `json:"profiles,omitempty" yaml:"profiles,omitempty"`
	Variables  []string `json:"variables,omitempty" yaml:"variables,omitempty"`
	References []string `json:"references,omitempty" yaml:"references,omitempty"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	p, err := openProject(args)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	rows, err := listRows(ctx, p, listWithRefs)
	if err != nil {
		return err
	}

	return renderList(os.Stdout, rows, listFormat.String(), listWithVars)
}

// listRows runs a dry discovery pass: every source is processed in memory,
// except sass sources, which are described by their default output so the
// external compiler never runs for a listing.
func listRows(ctx context.Context, p *project, withRefs bool) ([]listRow, error) {
	if withRefs {
		if err := p.tracker.Rebuild(ctx); err != nil {
			return nil, err
		}
	}

	sources, err := p.tracker.Sources(ctx)
	if err != nil {
		return nil, err
	}

	root := p.tracker.Root()
	rows := make([]listRow, 0, len(sources))

	for _, path := range sources {
		eng, ok := p.engines.ForPath(path)
		if !ok {
			continue
		}

		row := listRow{Source: relTo(root, path), Engine: eng.Name()}

		if eng.Name() == "sass" {
			target, err := p.processor.DefaultOutput(path, eng.OutputExt())
			if err != nil {
				row.Error = err.Error()
			} else {
				row.Outputs = []string{relTo(root, target.Path)}
				row.Profiles = profileNames([]string{target.Profile})
			}
			rows = append(rows, row)
			continue
		}

		file := eng.Process(ctx, path)
		row.Partial = file.Partial
		if file.Err != nil {
			row.Error = file.Err.Error()
		}

		var profiles []string
		seenVars := map[string]bool{}
		for _, target := range file.Outputs {
			row.Outputs = append(row.Outputs, relTo(root, target.Path))
			profiles = append(profiles, target.Profile)
			for _, v := range target.Variables {
				if !seenVars[strings.ToLower(v.Name)] {
					seenVars[strings.ToLower(v.Name)] = true
					row.Variables = append(row.Variables, v.Name)
				}
			}
		}
		row.Profiles = profileNames(profiles)

		if withRefs {
			for _, ref := range p.tracker.References(path) {
				row.References = append(row.References, relTo(root, ref))
			}
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func renderList(w io.Writer, rows []listRow, format string, withVars bool) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)

	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(rows)

	default:
		return renderListTable(w, rows, withVars)
	}
}

func renderListTable(w io.Writer, rows []listRow, withVars bool) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "no sources found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	varHeader := "VARS"
	if withVars {
		varHeader = "VARIABLES"
	}
	fmt.Fprintf(tw, "SOURCE\tENGINE\tOUTPUTS\tPROFILES\t%s\tSTATUS\n", varHeader)

	for _, row := range rows {
		outputs := strings.Join(row.Outputs, ", ")
		if row.Partial {
			outputs = "(partial)"
		}

		vars := fmt.Sprintf("%d", len(row.Variables))
		if withVars {
			vars = strings.Join(row.Variables, ", ")
		}

		status := "ok"
		if row.Error != "" {
			status = "error: " + row.Error
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Source, row.Engine, outputs, strings.Join(row.Profiles, ", "), vars, status)
	}

	fmt.Fprintf(tw, "\nTotal: %d source(s)\n", len(rows))

	return nil
}

// profileNames renders profile values for display, naming the empty default
// explicitly.
func profileNames(profiles []string) []string {
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		if p == "" {
			p = "(default)"
		}
		out = append(out, p)
	}

	return out
}

func relTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}

	return path
}
