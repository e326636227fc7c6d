// Package tracker maintains the include-reference graph between source
// files. The graph is one-directional: it answers "who references me" so a
// change to a partial regenerates the pages built on it. Nothing else is
// derived from it.
package tracker

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/weft-dev/weft/internal/config"
	"github.com/weft-dev/weft/internal/engine"
	"github.com/weft-dev/weft/internal/logging"
)

// Tracker scans the source tree and records, per source file, the resolved
// absolute paths of the files it references. References are extracted by the
// owning engine at the text level; they are recorded whether or not the
// referenced file exists, so creating a missing include later still
// regenerates its referencers.
type Tracker struct {
	root    string
	outDir  string
	ignore  []string
	engines *engine.Set
	logger  logging.Logger

	mu   sync.RWMutex
	refs map[string][]string
	back map[string][]string
}

// New creates a tracker over the configured source tree.
func New(cfg *config.Config, engines *engine.Set, logger logging.Logger) (*Tracker, error) {
	root, err := filepath.Abs(cfg.Source.Root)
	if err != nil {
		return nil, err
	}

	outDir := ""
	if cfg.Output.Dir != "" {
		outDir = filepath.Clean(cfg.Output.Dir)
		if !filepath.IsAbs(outDir) {
			outDir = filepath.Join(root, outDir)
		}
	}

	return &Tracker{
		root:    root,
		outDir:  outDir,
		ignore:  cfg.Source.Ignore,
		engines: engines,
		logger:  logger.WithComponent("tracker"),
		refs:    map[string][]string{},
		back:    map[string][]string{},
	}, nil
}

// Root returns the absolute source root the tracker walks.
func (t *Tracker) Root() string {
	return t.root
}

// Sources walks the source tree and returns every file an engine claims, in
// lexical order. Dot-directories, the output directory and ignored paths are
// skipped.
func (t *Tracker) Sources(ctx context.Context) ([]string, error) {
	var sources []string

	err := filepath.WalkDir(t.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			if path == t.root {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || path == t.outDir || t.ignored(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if t.ignored(path) {
			return nil
		}
		if _, ok := t.engines.ForPath(path); !ok {
			return nil
		}

		sources = append(sources, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return sources, nil
}

// Rebuild rescans the whole tree and replaces the reference graph. A file
// that cannot be read drops out of the graph until the next rebuild; the
// walk itself keeps going.
func (t *Tracker) Rebuild(ctx context.Context) error {
	sources, err := t.Sources(ctx)
	if err != nil {
		return err
	}

	refs := make(map[string][]string, len(sources))
	back := map[string][]string{}

	for _, path := range sources {
		eng, ok := t.engines.ForPath(path)
		if !ok {
			continue
		}

		contents, err := engine.ReadSourceFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			t.logger.Debug(ctx, "skipping unreadable source", "path", path, "error", err.Error())
			continue
		}

		deps := eng.References(path, contents)
		if len(deps) == 0 {
			continue
		}

		refs[path] = deps
		for _, dep := range deps {
			back[dep] = append(back[dep], path)
		}
	}

	t.mu.Lock()
	t.refs = refs
	t.back = back
	t.mu.Unlock()

	t.logger.Debug(ctx, "reference graph rebuilt",
		"sources", len(sources), "referencing", len(refs))

	return nil
}

// References returns the files path references, in extraction order.
func (t *Tracker) References(path string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return append([]string(nil), t.refs[normalize(path)]...)
}

// Referencers returns the files referencing path, sorted.
func (t *Tracker) Referencers(path string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := append([]string(nil), t.back[normalize(path)]...)
	sort.Strings(out)

	return out
}

// ignored reports whether a path matches a configured ignore pattern.
// Patterns match the root-relative slashed path or the base name.
func (t *Tracker) ignored(path string) bool {
	rel, err := filepath.Rel(t.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(path)

	for _, pattern := range t.ignore {
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}

func normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}

	return abs
}
