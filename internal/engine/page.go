package engine

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/weft-dev/weft/internal/tags"
	"github.com/weft-dev/weft/internal/types"
)

// PageEngine generates HTML pages from .weft sources through the full
// directive pipeline.
type PageEngine struct {
	processor *Processor
}

// NewPageEngine creates the page engine on top of a shared processor.
func NewPageEngine(p *Processor) *PageEngine {
	return &PageEngine{processor: p}
}

func (e *PageEngine) Name() string {
	return "page"
}

func (e *PageEngine) Match(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".weft")
}

func (e *PageEngine) OutputExt() string {
	return ".html"
}

func (e *PageEngine) Process(ctx context.Context, path string) *types.SourceFile {
	return e.processor.Process(ctx, path, e.OutputExt(), nil)
}

func (e *PageEngine) References(path, contents string) []string {
	return directiveReferences(path, contents)
}

// directiveReferences extracts the resolved absolute path of every include
// directive, gates and profiles ignored: the dependency tracker treats any
// include as a reference regardless of which profile would apply it.
func directiveReferences(path, contents string) []string {
	dir := filepath.Dir(absPath(path))

	var refs []string
	for _, m := range tags.Directive.All(contents) {
		if m.Keyword != "include" {
			continue
		}

		pathArg, _ := splitPathProfile(strings.TrimSpace(m.Arg))
		if pathArg == "" {
			continue
		}

		resolved := filepath.FromSlash(pathArg)
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(dir, resolved)
		}
		refs = append(refs, resolved)
	}

	return refs
}
