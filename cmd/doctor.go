package cmd

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	yamlv2 "gopkg.in/yaml.v2"

	"github.com/weft-dev/weft/internal/config"
	"github.com/weft-dev/weft/internal/engine"
	"github.com/weft-dev/weft/internal/validation"
	"github.com/weft-dev/weft/internal/version"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the project environment",
	Long: `Inspect the configuration, source tree, sass compiler and folder
settings files, and report anything that would break generation. The
report is printed as YAML; a failing check makes the command exit
non-zero.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

const (
	statusOK   = "ok"
	statusWarn = "warn"
	statusFail = "fail"
)

type doctorCheck struct {
	Name   string `yaml:"name"`
	Status string `yaml:"status"`
	Detail string `yaml:"detail,omitempty"`
}

type doctorReport struct {
	Version string        `yaml:"version"`
	Config  string        `yaml:"config"`
	Checks  []doctorCheck `yaml:"checks"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	report := doctorReport{
		Version: version.Short(),
		Config:  viper.ConfigFileUsed(),
	}
	if report.Config == "" {
		report.Config = "built-in defaults"
	}

	cfg, err := config.Load()
	if err != nil {
		report.Checks = append(report.Checks, doctorCheck{
			Name:   "configuration",
			Status: statusFail,
			Detail: err.Error(),
		})
		if renderErr := renderDoctor(os.Stdout, report); renderErr != nil {
			return renderErr
		}
		return fmt.Errorf("doctor found 1 problem")
	}

	p, err := wireProject(cfg, newLogger(cfg))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	report.Checks = runDoctorChecks(ctx, p)

	if err := renderDoctor(os.Stdout, report); err != nil {
		return err
	}

	failures := 0
	for _, check := range report.Checks {
		if check.Status == statusFail {
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("doctor found %d problem(s)", failures)
	}

	return nil
}

func runDoctorChecks(ctx context.Context, p *project) []doctorCheck {
	return []doctorCheck{
		checkConfigPath(),
		checkSourceRoot(ctx, p),
		checkOutputDir(p),
		checkSassCompiler(p.cfg),
		checkFolderSettings(p),
		checkServerAddress(p.cfg),
	}
}

// checkConfigPath vets an explicitly given config path the same way every
// other user-supplied path is vetted.
func checkConfigPath() doctorCheck {
	check := doctorCheck{Name: "configuration", Status: statusOK, Detail: "loaded"}

	if used := viper.ConfigFileUsed(); used != "" {
		check.Detail = used
		if err := validation.ValidatePath(used); err != nil {
			check.Status = statusWarn
			check.Detail = fmt.Sprintf("%s: %v", used, err)
		}
	}

	return check
}

func checkSourceRoot(ctx context.Context, p *project) doctorCheck {
	check := doctorCheck{Name: "source root", Status: statusOK}
	root := p.tracker.Root()

	info, err := os.Stat(root)
	switch {
	case err != nil:
		check.Status = statusFail
		check.Detail = fmt.Sprintf("%s: %v", root, err)
	case !info.IsDir():
		check.Status = statusFail
		check.Detail = root + " is not a directory"
	default:
		sources, err := p.tracker.Sources(ctx)
		if err != nil {
			check.Status = statusFail
			check.Detail = err.Error()
		} else {
			check.Detail = fmt.Sprintf("%s (%d source file(s))", root, len(sources))
		}
	}

	return check
}

func checkOutputDir(p *project) doctorCheck {
	check := doctorCheck{Name: "output directory", Status: statusOK}

	out := p.processor.OutputDir()
	if out == "" {
		check.Status = statusWarn
		check.Detail = "not set, outputs land beside their sources"
		return check
	}

	check.Detail = out
	if out == p.tracker.Root() {
		check.Status = statusWarn
		check.Detail = out + " equals the source root"
	}

	return check
}

func checkSassCompiler(cfg *config.Config) doctorCheck {
	check := doctorCheck{Name: "sass compiler", Status: statusOK}

	if err := engine.ValidateSassCommand(cfg.Sass.Command); err != nil {
		check.Status = statusFail
		check.Detail = fmt.Sprintf("%q: %v", cfg.Sass.Command, err)
		return check
	}

	path, err := exec.LookPath(cfg.Sass.Command)
	if err != nil {
		check.Status = statusWarn
		check.Detail = fmt.Sprintf("%q not found in PATH, .scss and .sass sources will fail", cfg.Sass.Command)
		return check
	}

	check.Detail = path

	return check
}

// checkFolderSettings parses every folder settings file under the source
// root so a bad override surfaces here instead of mid-generation.
func checkFolderSettings(p *project) doctorCheck {
	check := doctorCheck{Name: "folder settings", Status: statusOK}
	root := p.tracker.Root()
	outDir := p.processor.OutputDir()

	var valid int
	var broken []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || path == outDir) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != config.FolderSettingsFile {
			return nil
		}

		if _, loadErr := config.LoadFolderSettings(filepath.Dir(path)); loadErr != nil {
			broken = append(broken, fmt.Sprintf("%s: %v", relTo(root, path), loadErr))
		} else {
			valid++
		}

		return nil
	})
	if err != nil {
		check.Status = statusFail
		check.Detail = err.Error()
		return check
	}

	if len(broken) > 0 {
		check.Status = statusFail
		check.Detail = strings.Join(broken, "; ")
		return check
	}

	check.Detail = fmt.Sprintf("%d file(s)", valid)

	return check
}

func checkServerAddress(cfg *config.Config) doctorCheck {
	check := doctorCheck{
		Name:   "server address",
		Status: statusOK,
		Detail: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
	}

	if cfg.Server.Port < 1024 {
		check.Status = statusWarn
		check.Detail += " (privileged port, may need elevated rights)"
	}

	return check
}

func renderDoctor(w io.Writer, report doctorReport) error {
	data, err := yamlv2.Marshal(report)
	if err != nil {
		return err
	}

	_, err = w.Write(data)

	return err
}
