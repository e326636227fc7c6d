package engine

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/weft-dev/weft/internal/types"
)

// StaticEngine mirrors plain assets into the output tree unchanged. It is
// registered last, so it only sees files no other engine claimed. With no
// output directory or folder override in effect the mirror destination would
// be the source itself, and the engine produces no outputs.
type StaticEngine struct {
	processor *Processor
}

// NewStaticEngine creates the static mirror engine.
func NewStaticEngine(p *Processor) *StaticEngine {
	return &StaticEngine{processor: p}
}

func (e *StaticEngine) Name() string {
	return "static"
}

// Match accepts everything except dotfiles, which covers the project and
// folder settings files as well as editor droppings.
func (e *StaticEngine) Match(path string) bool {
	return !strings.HasPrefix(filepath.Base(path), ".")
}

// OutputExt returns the empty string: mirrored files keep their extension.
func (e *StaticEngine) OutputExt() string {
	return ""
}

func (e *StaticEngine) Process(ctx context.Context, path string) *types.SourceFile {
	abs := absPath(path)
	file := &types.SourceFile{Path: abs}

	target, err := e.processor.DefaultOutput(abs, filepath.Ext(abs))
	if err != nil {
		file.AddError(err)
		return file
	}
	if target.Path == abs {
		return file
	}

	contents, err := ReadSourceFile(ctx, abs)
	if err != nil {
		file.AddError(err)
		return file
	}

	target.Contents = contents
	target.Compiled = contents
	file.Outputs = append(file.Outputs, target)

	return file
}

// References returns nothing: mirrored assets depend on no other sources.
func (e *StaticEngine) References(path, contents string) []string {
	return nil
}
