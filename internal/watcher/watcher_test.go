package watcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetwatch/internal/logging"
)

func TestNewFileWatcher(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NotNil(t, watcher.watcher)
	assert.NotNil(t, watcher.debouncer)
	assert.Empty(t, watcher.filters)
	assert.Empty(t, watcher.handlers)
}

func TestFileWatcherAddFilterAndHandler(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	watcher.AddFilter(NoHiddenFilter)
	watcher.AddFilter(NoEditorTempFilter)
	assert.Len(t, watcher.filters, 2)

	watcher.AddHandler(func(events []ChangeEvent) error { return nil })
	assert.Len(t, watcher.handlers, 1)
}

func TestFileWatcherAddRecursiveMissing(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.Error(t, watcher.AddRecursive(filepath.Join(t.TempDir(), "missing")))
}

func TestFileWatcherDebouncesBatch(t *testing.T) {
	dir := t.TempDir()

	watcher, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	watcher.AddFilter(NoHiddenFilter)

	var mu sync.Mutex
	var batches [][]ChangeEvent
	watcher.AddHandler(func(events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, events)
		return nil
	})

	require.NoError(t, watcher.AddRecursive(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	target := filepath.Join(dir, "index.html")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(target, []byte("v"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".index.html.tmp-1"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) > 0
	}, 2*time.Second, 10*time.Millisecond)

	// Let any straggling timer fire.
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	seen := map[string]int{}
	for _, batch := range batches {
		for _, ev := range batch {
			seen[ev.Path]++
		}
	}
	assert.Contains(t, seen, target)
	assert.NotContains(t, seen, filepath.Join(dir, ".index.html.tmp-1"))
	assert.Less(t, seen[target], 5, "rapid writes should be coalesced")
}

func TestFileWatcherWatchesNewDirectories(t *testing.T) {
	dir := t.TempDir()

	watcher, err := NewFileWatcher(20*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	paths := make(chan string, 16)
	watcher.AddHandler(func(events []ChangeEvent) error {
		for _, ev := range events {
			paths <- ev.Path
		}
		return nil
	})
	require.NoError(t, watcher.AddRecursive(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	nested := filepath.Join(dir, "views", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	time.Sleep(100 * time.Millisecond)

	target := filepath.Join(nested, "page.html")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case p := <-paths:
			if p == target {
				return
			}
		case <-deadline:
			t.Fatal("change in new directory was not reported")
		}
	}
}

func TestFileWatcherReportsFilesInNewDirectory(t *testing.T) {
	dir := t.TempDir()

	watcher, err := NewFileWatcher(20*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()
	watcher.AddFilter(NoHiddenFilter)

	paths := make(chan string, 16)
	watcher.AddHandler(func(events []ChangeEvent) error {
		for _, ev := range events {
			paths <- ev.Path
		}
		return nil
	})
	require.NoError(t, watcher.AddRecursive(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	// Build the tree aside and move it in, so the file exists before any
	// watch on its directory can be registered.
	staging := t.TempDir()
	target := filepath.Join(staging, "views", "deep", "index.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte("<p>hi</p>"), 0o644))
	require.NoError(t, os.Rename(filepath.Join(staging, "views"), filepath.Join(dir, "views")))

	want := filepath.Join(dir, "views", "deep", "index.html")
	deadline := time.After(2 * time.Second)
	for {
		select {
		case p := <-paths:
			if p == want {
				return
			}
		case <-deadline:
			t.Fatal("file inside new directory was not reported")
		}
	}
}

func TestDebouncerLogsDroppedBatch(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelWarn, Format: "text", Output: &buf})

	d := &Debouncer{output: make(chan []ChangeEvent, 1), logger: logger}
	d.output <- []ChangeEvent{{Path: "build/old.css"}}

	d.pending = append(d.pending, ChangeEvent{Path: "build/app.css"}, ChangeEvent{Path: "build/app.js"})
	d.flush()

	assert.Contains(t, buf.String(), "Batch queue full")
	assert.Contains(t, buf.String(), "count=2")
	assert.Empty(t, d.pending)
}

func TestSkipHiddenDirs(t *testing.T) {
	assert.True(t, SkipHiddenDirs(".git"))
	assert.True(t, SkipHiddenDirs("node_modules"))
	assert.False(t, SkipHiddenDirs("views"))
}

func TestFilters(t *testing.T) {
	assert.True(t, NoHiddenFilter("build/app.css"))
	assert.False(t, NoHiddenFilter("build/.app.css.tmp-123"))
	assert.True(t, NoEditorTempFilter("views/index.jade"))
	assert.False(t, NoEditorTempFilter("views/index.jade~"))
	assert.False(t, NoEditorTempFilter("views/.index.jade.swp"))
}
