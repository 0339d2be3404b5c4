package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/assetwatch/internal/build"
	"github.com/conneroisu/assetwatch/internal/logging"
)

// TransformFunc handles an added or changed source file.
type TransformFunc func(ctx context.Context, path string) <-chan build.Result

// RemoveFunc handles a removed source file.
type RemoveFunc func(ctx context.Context, path string) error

// Binding ties a glob to the transform for one asset class. A binding with
// an empty pattern matches nothing.
type Binding struct {
	Class     build.Class
	Pattern   string
	Transform TransformFunc
}

// Matches reports whether path is selected by the binding's glob.
func (b Binding) Matches(path string) bool {
	if b.Pattern == "" {
		return false
	}

	ok, err := doublestar.Match(normalizePattern(b.Pattern), filepath.ToSlash(filepath.Clean(path)))
	return err == nil && ok
}

// Base returns the static directory prefix of the binding's glob.
func (b Binding) Base() string {
	base, _ := doublestar.SplitPattern(normalizePattern(b.Pattern))
	return filepath.FromSlash(base)
}

func normalizePattern(p string) string {
	p = filepath.ToSlash(p)
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}

	return p
}

// Dispatcher watches the bound globs and routes each event to the bound
// transform, or to the remover on unlink. It never debounces; every event
// is handled on its own and failures stay inside the handler.
type Dispatcher struct {
	watcher  *fsnotify.Watcher
	bindings []Binding
	remove   RemoveFunc
	logger   logging.Logger

	// known holds matched files seen so far, so removing a directory can
	// report each file under it.
	known map[string]struct{}
	mutex sync.Mutex

	stopOnce sync.Once
	done     chan struct{}
}

// NewDispatcher creates a dispatcher for bindings. remove is called for
// unlink events.
func NewDispatcher(bindings []Binding, remove RemoveFunc, logger logging.Logger) (*Dispatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Dispatcher{
		watcher:  watcher,
		bindings: bindings,
		remove:   remove,
		logger:   logger.WithComponent("dispatcher"),
		known:    make(map[string]struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start registers watches for every binding base directory, then reports
// every existing matching file as added and keeps watching until ctx is
// cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) error {
	bases := make(map[string]bool)
	for _, b := range d.bindings {
		if b.Pattern == "" {
			d.logger.Debug(ctx, "No pattern bound", "class", b.Class)
			continue
		}
		base := b.Base()
		if bases[base] {
			continue
		}
		bases[base] = true

		if err := addRecursive(d.watcher, base, nil); err != nil {
			d.logger.Warn(ctx, err, "Unable to watch directory", "class", b.Class, "path", base)
			continue
		}
		d.logger.Info(ctx, "Watching", "class", b.Class, "pattern", b.Pattern)
	}

	initial := d.scan(ctx)

	go func() {
		defer close(d.done)
		for _, path := range initial {
			d.dispatch(ctx, FileEvent{Path: path, Kind: EventAdded})
		}
		d.loop(ctx)
	}()

	return nil
}

// Stop closes the underlying watcher.
func (d *Dispatcher) Stop() error {
	var err error
	d.stopOnce.Do(func() {
		err = d.watcher.Close()
	})

	return err
}

// Done is closed once the event loop has exited.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) scan(ctx context.Context) []string {
	seen := make(map[string]bool)
	var files []string

	for _, b := range d.bindings {
		if b.Pattern == "" {
			continue
		}
		matches, err := doublestar.FilepathGlob(filepath.FromSlash(normalizePattern(b.Pattern)), doublestar.WithFilesOnly())
		if err != nil {
			d.logger.Warn(ctx, err, "Invalid pattern", "class", b.Class, "pattern", b.Pattern)
			continue
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}

	sort.Strings(files)
	return files
}

func (d *Dispatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			d.handle(ctx, event)
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, event fsnotify.Event) {
	kind, ok := kindOf(event.Op)
	if !ok {
		return
	}
	path := filepath.Clean(event.Name)

	if kind == EventRemoved {
		for _, p := range d.forget(path) {
			d.dispatch(ctx, FileEvent{Path: p, Kind: EventRemoved})
		}
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		// Gone again before we looked; a Remove event follows.
		return
	}

	if info.IsDir() {
		if kind == EventAdded {
			d.addDirectory(ctx, path)
		}
		return
	}

	if kind == EventAdded && d.isKnown(path) {
		// Atomic saves replace the file; report it as a change.
		kind = EventChanged
	}

	d.dispatch(ctx, FileEvent{Path: path, Kind: kind})
}

// addDirectory watches a newly created directory and reports files that
// were already inside it when it appeared.
func (d *Dispatcher) addDirectory(ctx context.Context, dir string) {
	if err := addRecursive(d.watcher, dir, nil); err != nil {
		d.logger.Warn(ctx, err, "Unable to watch new directory", "path", dir)
		return
	}

	files := walkFiles(dir, nil)
	for _, f := range files {
		d.dispatch(ctx, FileEvent{Path: f, Kind: EventAdded})
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, event FileEvent) {
	removed := false

	for _, b := range d.bindings {
		if !b.Matches(event.Path) {
			continue
		}

		switch event.Kind {
		case EventAdded, EventChanged:
			d.remember(event.Path)
			d.logger.Debug(ctx, "Dispatching", "class", b.Class, "event", event.Kind.String(), "path", event.Path)
			if b.Transform != nil {
				b.Transform(ctx, event.Path)
			}
		case EventRemoved:
			if removed || d.remove == nil {
				continue
			}
			removed = true
			// Failures are logged by the remover; the loop keeps going.
			_ = d.remove(ctx, event.Path)
		}
	}
}

func (d *Dispatcher) remember(path string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.known[path] = struct{}{}
}

func (d *Dispatcher) isKnown(path string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	_, ok := d.known[path]
	return ok
}

// forget drops path, or every known file beneath it when path was a
// directory, and returns what was dropped. An unknown file path is still
// returned so the remover gets a chance at it.
func (d *Dispatcher) forget(path string) []string {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, ok := d.known[path]; ok {
		delete(d.known, path)
		return []string{path}
	}

	prefix := path + string(filepath.Separator)
	var dropped []string
	for p := range d.known {
		if strings.HasPrefix(p, prefix) {
			dropped = append(dropped, p)
			delete(d.known, p)
		}
	}
	if len(dropped) == 0 {
		return []string{path}
	}

	sort.Strings(dropped)
	return dropped
}
