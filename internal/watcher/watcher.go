// Package watcher delivers debounced filesystem change events for the
// watched source tree. Each path debounces independently: a burst of writes
// to one file collapses into a single event carrying the last operation,
// while unrelated files are not held back.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/weft-dev/weft/internal/logging"
)

// Op is the kind of change observed on a path.
type Op int

const (
	OpCreated Op = iota
	OpModified
	OpRemoved
	OpRenamed
)

func (o Op) String() string {
	switch o {
	case OpCreated:
		return "created"
	case OpModified:
		return "modified"
	case OpRemoved:
		return "removed"
	case OpRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is one debounced change.
type Event struct {
	Path string
	Op   Op
}

// Filter reports whether a changed path is interesting. Every registered
// filter must accept a path for it to pass.
type Filter func(path string) bool

// Handler consumes debounced events.
type Handler func(event Event) error

// FileWatcher watches directories recursively and forwards filtered,
// debounced change events to its handlers.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	logger    logging.Logger

	mu       sync.RWMutex
	filters  []Filter
	handlers []Handler
}

// New creates a watcher with the given debounce window.
func New(debounce time.Duration, logger logging.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		watcher:   w,
		debouncer: NewDebouncer(debounce),
		logger:    logger.WithComponent("watcher"),
	}, nil
}

// AddFilter registers a path filter.
func (w *FileWatcher) AddFilter(filter Filter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.filters = append(w.filters, filter)
}

// AddHandler registers an event handler.
func (w *FileWatcher) AddHandler(handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// AddRecursive watches root and every directory under it, skipping
// dot-directories.
func (w *FileWatcher) AddRecursive(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	return filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != abs && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		return w.watcher.Add(path)
	})
}

// Start launches the watch loops. They run until ctx is canceled.
func (w *FileWatcher) Start(ctx context.Context) {
	go w.watchLoop(ctx)
	go w.deliverLoop(ctx)
}

// Stop closes the underlying watcher and stops all pending timers.
func (w *FileWatcher) Stop() error {
	w.debouncer.Stop()
	return w.watcher.Close()
}

func (w *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFsnotifyEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, err, "watch error")
		}
	}
}

func (w *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	// Chmod-only notifications carry no content change and fire constantly
	// on some platforms.
	if event.Op == fsnotify.Chmod {
		return
	}

	// A freshly created directory needs its own watch before events inside
	// it can be seen.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.AddRecursive(event.Name); err != nil {
				w.logger.Warn(ctx, err, "cannot watch new directory", "path", event.Name)
			}
			return
		}
	}

	w.mu.RLock()
	filters := w.filters
	w.mu.RUnlock()

	for _, filter := range filters {
		if !filter(event.Name) {
			return
		}
	}

	var op Op
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreated
	case event.Op&fsnotify.Write != 0:
		op = OpModified
	case event.Op&fsnotify.Remove != 0:
		op = OpRemoved
	case event.Op&fsnotify.Rename != 0:
		op = OpRenamed
	default:
		op = OpModified
	}

	w.debouncer.Add(Event{Path: event.Name, Op: op})
}

func (w *FileWatcher) deliverLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.debouncer.Events():
			w.mu.RLock()
			handlers := w.handlers
			w.mu.RUnlock()

			for _, handler := range handlers {
				if err := handler(event); err != nil {
					w.logger.Error(ctx, err, "change handler failed", "path", event.Path)
				}
			}
		}
	}
}

// Debouncer holds back events per path: every new event for a path restarts
// that path's timer, and only the last event within the window is delivered.
type Debouncer struct {
	delay  time.Duration
	output chan Event

	mu     sync.Mutex
	timers map[string]*time.Timer
	latest map[string]Event
}

// NewDebouncer creates a per-path debouncer with the given quiet window.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:  delay,
		output: make(chan Event, 64),
		timers: map[string]*time.Timer{},
		latest: map[string]Event{},
	}
}

// Add records an event and (re)starts its path's timer.
func (d *Debouncer) Add(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.latest[event.Path] = event
	if timer, ok := d.timers[event.Path]; ok {
		timer.Stop()
	}
	d.timers[event.Path] = time.AfterFunc(d.delay, func() {
		d.fire(event.Path)
	})
}

// Events is the stream of debounced events.
func (d *Debouncer) Events() <-chan Event {
	return d.output
}

// Stop cancels all pending timers. Events already past their window may
// still be delivered.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for path, timer := range d.timers {
		timer.Stop()
		delete(d.timers, path)
		delete(d.latest, path)
	}
}

func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	event, ok := d.latest[path]
	delete(d.latest, path)
	delete(d.timers, path)
	d.mu.Unlock()

	if !ok {
		return
	}

	select {
	case d.output <- event:
	default:
		// A wedged consumer loses the event; the next change to the path
		// will deliver again.
	}
}

// NoDotfileFilter rejects dotfiles and anything inside a dot-directory.
func NoDotfileFilter(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}

	slashed := filepath.ToSlash(path)
	return !strings.Contains(slashed, "/.")
}

// NotUnderFilter rejects paths inside dir, so the generated output tree does
// not feed back into the watcher.
func NotUnderFilter(dir string) Filter {
	clean := filepath.Clean(dir)

	return func(path string) bool {
		rel, err := filepath.Rel(clean, path)
		if err != nil {
			return true
		}

		return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
	}
}

// IgnoreFilter rejects paths matching any pattern against the root-relative
// slashed path or the base name.
func IgnoreFilter(root string, patterns []string) Filter {
	return func(path string) bool {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return true
		}
		rel = filepath.ToSlash(rel)
		base := filepath.Base(path)

		for _, pattern := range patterns {
			if matched, _ := filepath.Match(pattern, rel); matched {
				return false
			}
			if matched, _ := filepath.Match(pattern, base); matched {
				return false
			}
		}

		return true
	}
}
