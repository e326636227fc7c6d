package engine

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/weft-dev/weft/internal/errors"
	"github.com/weft-dev/weft/internal/logging"
	"github.com/weft-dev/weft/internal/types"
	"github.com/weft-dev/weft/internal/validation"
)

// allowedSassCommands lists the binaries the sass engine may launch.
var allowedSassCommands = map[string]bool{
	"sass":      true,
	"dart-sass": true,
	"sassc":     true,
	"npx":       true,
}

// ValidateSassCommand reports whether a configured compiler command would be
// accepted at compile time, for callers that vet configuration up front.
func ValidateSassCommand(command string) error {
	return validation.ValidateCommand(command, allowedSassCommands)
}

var sassUsePattern = regexp.MustCompile(`(?m)^\s*@(?:use|import|forward)\s+['"]([^'"]+)['"]`)

// SassEngine delegates stylesheet compilation entirely to an external sass
// binary. Sheets with an underscore-prefixed base name are partials,
// consumed only through @use or @import from other sheets. The compiler's
// stdout is the artifact; its stderr is parsed for diagnostics.
type SassEngine struct {
	processor *Processor
	command   string
	args      []string
	parser    *errors.OutputParser
	logger    logging.Logger
}

// NewSassEngine creates the sass engine. Command and args come from the
// sass section of the project configuration.
func NewSassEngine(p *Processor, command string, args []string, logger logging.Logger) *SassEngine {
	return &SassEngine{
		processor: p,
		command:   command,
		args:      args,
		parser:    errors.NewOutputParser(),
		logger:    logger.WithComponent("sass"),
	}
}

func (e *SassEngine) Name() string {
	return "sass"
}

func (e *SassEngine) Match(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".scss", ".sass":
		return true
	}

	return false
}

func (e *SassEngine) OutputExt() string {
	return ".css"
}

func (e *SassEngine) Process(ctx context.Context, path string) *types.SourceFile {
	abs := absPath(path)
	file := &types.SourceFile{Path: abs}

	if strings.HasPrefix(filepath.Base(abs), "_") {
		file.Partial = true
		return file
	}

	target, err := e.processor.DefaultOutput(abs, e.OutputExt())
	if err != nil {
		file.AddError(err)
		return file
	}
	file.Outputs = append(file.Outputs, target)

	compiled, err := e.compile(ctx, abs)
	if err != nil {
		target.Fail(err)
		file.AddError(err)
		return file
	}

	target.Contents = compiled
	target.Compiled = compiled

	return file
}

// compile runs the external binary on one sheet and returns its stdout.
func (e *SassEngine) compile(ctx context.Context, path string) (string, error) {
	if err := validation.ValidateCommand(e.command, allowedSassCommands); err != nil {
		logging.LogSecurityEvent(e.logger, ctx, "sass command rejected", map[string]interface{}{
			"command": e.command,
			"reason":  err.Error(),
		})
		return "", errors.ErrCommandInjection(e.command)
	}
	for _, arg := range e.args {
		if err := validation.ValidateArgument(arg); err != nil {
			logging.LogSecurityEvent(e.logger, ctx, "sass argument rejected", map[string]interface{}{
				"argument": arg,
				"reason":   err.Error(),
			})
			return "", errors.ErrCommandInjection(arg)
		}
	}

	args := append(append([]string{}, e.args...), path)
	cmd := exec.CommandContext(ctx, e.command, args...)

	e.logger.Debug(ctx, "compiling stylesheet", "path", path, "command", e.command)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.NewToolError(errors.ErrCodeToolFailed, "sass compilation canceled", ctx.Err())
		}

		stderr := ""
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = string(exitErr.Stderr)
		}
		if parsed := e.parser.ToError(stderr, path); parsed != nil {
			return "", parsed
		}

		return "", errors.NewToolError(errors.ErrCodeToolFailed, "sass compilation failed for "+path, err)
	}

	return string(out), nil
}

// References resolves @use, @import and @forward targets so that editing a
// partial recompiles every sheet built on it. Bare module names resolve the
// way sass does: underscore-prefixed partial first, then the plain name,
// then a directory index, with sass: built-ins skipped.
func (e *SassEngine) References(path, contents string) []string {
	dir := filepath.Dir(absPath(path))

	var refs []string
	for _, m := range sassUsePattern.FindAllStringSubmatch(contents, -1) {
		name := m[1]
		if strings.HasPrefix(name, "sass:") {
			continue
		}

		if ref := resolveSassRef(dir, name); ref != "" {
			refs = append(refs, ref)
		}
	}

	return refs
}

func resolveSassRef(dir, name string) string {
	name = filepath.FromSlash(name)
	sub, base := filepath.Split(name)

	ext := strings.ToLower(filepath.Ext(base))
	if ext == ".scss" || ext == ".sass" {
		for _, prefix := range []string{"", "_"} {
			if candidate := filepath.Join(dir, sub, prefix+base); fileExists(candidate) {
				return candidate
			}
		}
		return ""
	}

	for _, suffix := range []string{".scss", ".sass"} {
		for _, prefix := range []string{"_", ""} {
			if candidate := filepath.Join(dir, sub, prefix+base+suffix); fileExists(candidate) {
				return candidate
			}
		}
	}
	for _, suffix := range []string{".scss", ".sass"} {
		if candidate := filepath.Join(dir, name, "_index"+suffix); fileExists(candidate) {
			return candidate
		}
	}

	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
