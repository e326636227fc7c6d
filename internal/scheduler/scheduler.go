// Package scheduler coordinates processing passes over the source tree. It
// owns the ordering rules of watch mode: when a file changes, every file that
// references it is regenerated too, transitively, with circular reference
// chains detected and reported instead of looping forever.
//
// All passes serialize behind a single mutex. A burst of change events from
// the watcher therefore becomes a sequence of cascades, each seeing the
// reference graph as rebuilt at its own start.
package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/weft-dev/weft/internal/engine"
	"github.com/weft-dev/weft/internal/errors"
	"github.com/weft-dev/weft/internal/logging"
	"github.com/weft-dev/weft/internal/tracker"
	"github.com/weft-dev/weft/internal/types"
)

// CascadeFunc receives the output paths written by one completed pass.
// Callbacks run after the pass releases the scheduler lock, so they may call
// back into the scheduler without deadlocking.
type CascadeFunc func(outputs []string)

// Scheduler runs processing cascades over the reference graph maintained by
// the tracker. It is safe for concurrent use; passes never overlap.
type Scheduler struct {
	engines *engine.Set
	tracker *tracker.Tracker
	logger  logging.Logger

	// mu serializes passes and guards the per-pass state they build.
	mu sync.Mutex

	cbMu      sync.RWMutex
	callbacks []CascadeFunc
}

// pass accumulates the state of one cascade batch. processed keys are source
// paths already handled in this pass, generated keys are output paths already
// written, so overlapping cascades within one batch do not duplicate work.
type pass struct {
	processed map[string]bool
	generated map[string]bool
	written   []string
	failures  int
}

func newPass() *pass {
	return &pass{
		processed: make(map[string]bool),
		generated: make(map[string]bool),
	}
}

// New returns a scheduler that dispatches to the given engine set and walks
// the given tracker's reference graph.
func New(engines *engine.Set, tr *tracker.Tracker, logger logging.Logger) *Scheduler {
	return &Scheduler{
		engines: engines,
		tracker: tr,
		logger:  logger.WithComponent("scheduler"),
	}
}

// OnCascade registers a callback invoked with the outputs written by each
// pass that wrote anything. Callbacks run in registration order on the
// goroutine that ran the pass.
func (s *Scheduler) OnCascade(fn CascadeFunc) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// GenerateAll processes every source file under the tracker root exactly
// once, cascading through referencers as it goes. Individual file failures
// are logged and counted without stopping the pass; the returned error
// reports the total. Context cancellation aborts the pass.
func (s *Scheduler) GenerateAll(ctx context.Context) error {
	s.mu.Lock()

	op := s.startOperation("generate all")

	if err := s.tracker.Rebuild(ctx); err != nil {
		s.endOperation(ctx, op, err)
		s.mu.Unlock()
		return err
	}
	sources, err := s.tracker.Sources(ctx)
	if err != nil {
		s.endOperation(ctx, op, err)
		s.mu.Unlock()
		return err
	}

	p := newPass()
	for _, src := range sources {
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
		if p.processed[src] {
			continue
		}
		if cascadeErr := s.cascade(ctx, p, src, map[string]bool{}, 0); cascadeErr != nil {
			// A reference cycle aborts its own cascade. The remaining
			// sources still generate.
			s.logger.Error(ctx, cascadeErr, "cascade aborted", "path", src)
			p.failures++
		}
	}

	s.endOperation(ctx, op, err)
	written, failures := p.written, p.failures
	s.mu.Unlock()

	s.notify(written)

	if err != nil {
		return err
	}
	if failures > 0 {
		return fmt.Errorf("generation finished with %d failure(s)", failures)
	}
	s.logger.Info(ctx, "generation complete", "outputs", len(written))
	return nil
}

// HandleChange runs one cascade rooted at the changed path: the file itself
// is reprocessed, then every file that references it, transitively. The
// reference graph is rebuilt first so edges added or removed by the change
// are already visible.
func (s *Scheduler) HandleChange(ctx context.Context, path string) error {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	s.mu.Lock()

	op := s.startOperation("cascade")

	if err := s.tracker.Rebuild(ctx); err != nil {
		s.endOperation(ctx, op, err)
		s.mu.Unlock()
		return err
	}

	p := newPass()
	err := s.cascade(ctx, p, path, map[string]bool{}, 0)

	s.endOperation(ctx, op, err)
	written, failures := p.written, p.failures
	s.mu.Unlock()

	s.notify(written)

	if err != nil {
		return err
	}
	if failures > 0 {
		return fmt.Errorf("cascade finished with %d failure(s)", failures)
	}
	return nil
}

// cascade processes path and recurses into its referencers. ancestors holds
// the chain from the cascade root down to the current file; meeting a member
// of the chain again means the reference graph is circular, which aborts the
// cascade with an error naming the repeated file.
//
// The ancestor check runs before the processed check. Files legitimately
// reached twice along different branches are skipped by the processed set,
// but a file reached twice along one chain must surface as a cycle even when
// an earlier branch already handled it.
func (s *Scheduler) cascade(ctx context.Context, p *pass, path string, ancestors map[string]bool, depth int) error {
	if ancestors[path] {
		return errors.ErrCircularReference(path)
	}
	if p.processed[path] {
		return nil
	}
	p.processed[path] = true

	logger := s.logger.WithIndent(depth)

	file := s.processFile(ctx, path)
	switch {
	case file == nil:
		logger.Debug(ctx, "no engine claims path", "path", path)
	case file.Failed():
		p.failures++
		logger.Error(ctx, file.Err, "processing failed", "path", path)
	case file.Partial:
		logger.Debug(ctx, "partial produces no output", "path", path)
	default:
		s.save(ctx, p, file, logger)
	}

	// A failed file still cascades: its referencers splice in whatever the
	// include resolves to now, and their own errors are what the user needs
	// to see next.
	ancestors[path] = true
	defer delete(ancestors, path)

	for _, ref := range s.tracker.Referencers(path) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Debug(ctx, "regenerating referencer", "path", ref, "referenced", path)
		if err := s.cascade(ctx, p, ref, ancestors, depth+1); err != nil {
			return err
		}
	}

	return nil
}

// processFile dispatches the path to its engine. A panic inside an engine is
// converted into an internal error on the file result so one malformed input
// cannot take down a long-running watch session.
func (s *Scheduler) processFile(ctx context.Context, path string) (file *types.SourceFile) {
	eng, ok := s.engines.ForPath(path)
	if !ok {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			file = &types.SourceFile{Path: path}
			file.AddError(errors.NewInternalError(errors.ErrCodeInternalError,
				fmt.Sprintf("panic while processing %s: %v", path, r), nil))
		}
	}()

	return eng.Process(ctx, path)
}

// save writes the file's outputs, skipping any target whose path was already
// generated earlier in this pass. Write failures are counted per target and
// do not stop the remaining targets.
func (s *Scheduler) save(ctx context.Context, p *pass, file *types.SourceFile, logger logging.Logger) {
	var targets []*types.OutputTarget
	for _, target := range file.Outputs {
		if p.generated[target.Path] {
			logger.Debug(ctx, "output already generated this pass", "output", target.Path)
			continue
		}
		p.generated[target.Path] = true
		targets = append(targets, target)
	}
	if len(targets) == 0 {
		return
	}

	pending := &types.SourceFile{Path: file.Path, Outputs: targets}
	engine.SaveOutputs(pending)

	for _, target := range targets {
		if target.Err != nil {
			p.failures++
			logger.Error(ctx, target.Err, "write failed", "output", target.Path)
			continue
		}
		p.written = append(p.written, target.Path)
		logger.Info(ctx, "generated", "output", target.Path, "source", file.Path)
	}
}

// notify fans the written outputs out to registered callbacks. Runs outside
// the pass lock.
func (s *Scheduler) notify(outputs []string) {
	if len(outputs) == 0 {
		return
	}
	s.cbMu.RLock()
	callbacks := make([]CascadeFunc, len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.cbMu.RUnlock()

	for _, fn := range callbacks {
		fn(outputs)
	}
}

func (s *Scheduler) startOperation(name string) *logging.PerfLogger {
	if wl, ok := s.logger.(*logging.WeftLogger); ok {
		return wl.StartOperation(name)
	}
	return nil
}

func (s *Scheduler) endOperation(ctx context.Context, op *logging.PerfLogger, err error) {
	if op == nil {
		return
	}
	if err != nil {
		op.EndWithError(ctx, err)
		return
	}
	op.End(ctx)
}
