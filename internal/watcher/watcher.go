// Package watcher reports console log files that have finished changing.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"github.com/newhook/pipereport/internal/logging"
)

// DefaultDebounce is the quiet period used when none is given.
const DefaultDebounce = 250 * time.Millisecond

// Event is emitted once a matching file has been quiet for the debounce window.
type Event struct {
	Path string
}

// Watcher watches one directory for files matching a glob pattern.
type Watcher struct {
	fs       *fsnotify.Watcher
	dir      string
	pattern  string
	glob     glob.Glob
	debounce time.Duration

	events chan Event
	ready  chan string

	mu     sync.Mutex
	timers map[string]*time.Timer

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher on dir for file names matching pattern. Patterns
// support "*", "?", character classes and "{a,b}" alternatives.
func New(dir, pattern string, debounce time.Duration) (*Watcher, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{
		fs:       fsw,
		dir:      dir,
		pattern:  pattern,
		glob:     g,
		debounce: debounce,
		events:   make(chan Event, 64),
		ready:    make(chan string, 64),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}, nil
}

// Events returns the channel of settled files. It is closed after Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins watching until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if w.cancel != nil {
		return fmt.Errorf("watcher already started")
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	go w.loop()
	logging.Info("watching for console logs", "dir", w.dir, "pattern", w.pattern)
	return nil
}

// Stop ends watching and closes the Events channel.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
			<-w.done
		} else {
			close(w.events)
		}
		err = w.fs.Close()
	})
	return err
}

// Matches reports whether path's base name matches the watch pattern.
func (w *Watcher) Matches(path string) bool {
	return w.glob.Match(filepath.Base(path))
}

func (w *Watcher) loop() {
	defer close(w.done)
	defer close(w.events)
	defer w.stopTimers()

	for {
		select {
		case <-w.ctx.Done():
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !w.Matches(ev.Name) {
				continue
			}
			w.touch(ev.Name)

		case path := <-w.ready:
			select {
			case w.events <- Event{Path: path}:
			case <-w.ctx.Done():
				return
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Warn("file watcher error", "error", err)
		}
	}
}

// touch restarts the debounce timer for path.
func (w *Watcher) touch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case w.ready <- path:
		case <-w.ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}
