// Package engine implements the processing engines that turn source files
// into output files.
//
// Every source file is claimed by exactly one engine. Page and code sources
// run the full directive pipeline (output discovery, tag processing, data
// extraction, variable substitution); sass sources are handed to the sass
// compiler; everything else is mirrored into the output tree by the static
// engine. Engines produce a types.SourceFile describing the pass; saving the
// produced outputs is a separate step so processing stays testable without a
// writable output tree.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/weft-dev/weft/internal/errors"
	"github.com/weft-dev/weft/internal/types"
)

// Engine turns one source file into its outputs.
type Engine interface {
	// Name identifies the engine in logs.
	Name() string
	// Match reports whether this engine claims the source file.
	Match(path string) bool
	// OutputExt is the destination extension for default-named outputs.
	OutputExt() string
	// Process runs one pass over the source file. The returned SourceFile is
	// never nil; failures are recorded on it rather than returned.
	Process(ctx context.Context, path string) *types.SourceFile
	// References lists the source files this file depends on, given its
	// contents. The dependency tracker regenerates referencing files when a
	// referenced one changes.
	References(path, contents string) []string
}

// Set dispatches source files to engines in registration order.
type Set struct {
	engines []Engine
}

// NewSet creates an engine set. Order matters: the first engine whose Match
// accepts a path claims it.
func NewSet(engines ...Engine) *Set {
	return &Set{engines: engines}
}

// ForPath returns the engine claiming the path.
func (s *Set) ForPath(path string) (Engine, bool) {
	for _, e := range s.engines {
		if e.Match(path) {
			return e, true
		}
	}

	return nil, false
}

// Engines returns the registered engines in dispatch order.
func (s *Set) Engines() []Engine {
	return s.engines
}

const (
	readAttempts   = 3
	readRetryDelay = 100 * time.Millisecond
)

// ReadSourceFile reads a source file, retrying a fixed number of times with
// a fixed delay. Editors replace files non-atomically on some platforms, so
// the first read after a change notification can catch the file mid-write or
// still locked.
func ReadSourceFile(ctx context.Context, path string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < readAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(readRetryDelay):
			case <-ctx.Done():
				return "", errors.NewIOError(errors.ErrCodeReadFailed, "read canceled: "+path, ctx.Err())
			}
		}

		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), nil
		}
		lastErr = err
	}

	return "", errors.NewIOError(errors.ErrCodeReadFailed, "cannot read "+path, lastErr)
}

// SaveOutputs writes the file's targets to disk. A file that failed
// processing writes nothing. Write failures are recorded on the target and
// joined onto the file's error but never abort the remaining outputs.
func SaveOutputs(file *types.SourceFile) {
	if file.Failed() {
		return
	}

	for _, target := range file.Outputs {
		if err := os.MkdirAll(filepath.Dir(target.Path), 0o755); err != nil {
			saveErr := errors.NewIOError(errors.ErrCodeWriteFailed, "cannot create output directory for "+target.Path, err)
			target.Err = saveErr
			file.AddError(saveErr)
			continue
		}

		if err := os.WriteFile(target.Path, []byte(target.Compiled), 0o644); err != nil {
			saveErr := errors.NewIOError(errors.ErrCodeWriteFailed, "cannot write "+target.Path, err)
			target.Err = saveErr
			file.AddError(saveErr)
		}
	}
}
