package build

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelineerrors "github.com/conneroisu/assetwatch/internal/errors"
	"github.com/conneroisu/assetwatch/internal/logging"
	"github.com/conneroisu/assetwatch/internal/output"
)

func newProject(t *testing.T) (*output.Writer, *bytes.Buffer) {
	t.Helper()

	t.Chdir(t.TempDir())
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Output: &buf})

	return output.NewWriter("build", logger), &buf
}

func writeSource(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func await(t *testing.T, done <-chan Result) Result {
	t.Helper()
	select {
	case r, ok := <-done:
		require.True(t, ok, "completion channel closed without a result")
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("transform did not complete")
		return Result{}
	}
}

func TestTemplateTransformIsSynchronous(t *testing.T) {
	writer, buf := newProject(t)
	source := filepath.Join("views", "index.jade")
	writeSource(t, source, "irrelevant")

	compiler := CompilerFunc(func(ctx context.Context, src string) ([]byte, error) {
		return []byte("<h1>Hello</h1>\n"), nil
	})
	tr := NewTransformer(ClassTemplate, compiler, writer, nil, logging.NewLogger(&logging.LoggerConfig{Output: buf}))

	done := tr.Run(context.Background(), source)

	// Synchronous: the result is already buffered when Run returns.
	require.Len(t, done, 1)
	result := await(t, done)
	require.NoError(t, result.Err)
	assert.Equal(t, filepath.Join("build", "views", "index.html"), result.Destination)

	data, err := os.ReadFile(result.Destination)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hello</h1>\n", string(data))
	assert.Contains(t, buf.String(), "Rendering template")
	assert.Contains(t, buf.String(), source)

	_, open := <-done
	assert.False(t, open)
}

func TestAsyncTransformWritesAfterCompile(t *testing.T) {
	writer, _ := newProject(t)
	source := filepath.Join("styles", "app.scss")
	release := make(chan struct{})

	compiler := CompilerFunc(func(ctx context.Context, src string) ([]byte, error) {
		<-release
		return []byte("a{color:red}"), nil
	})
	tr := NewTransformer(ClassStylesheet, compiler, writer, nil, nil)

	done := tr.Run(context.Background(), source)

	dest := filepath.Join("build", "styles", "app.css")
	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err), "nothing is written before compilation completes")

	close(release)
	result := await(t, done)
	require.NoError(t, result.Err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "a{color:red}", string(data))
}

func TestCompileErrorWritesNothing(t *testing.T) {
	writer, buf := newProject(t)
	source := filepath.Join("styles", "app.scss")

	compiler := CompilerFunc(func(ctx context.Context, src string) ([]byte, error) {
		return nil, errors.New(`expected "{"`)
	})
	metrics := NewMetrics()
	logger := logging.NewLogger(&logging.LoggerConfig{Output: buf})
	tr := NewTransformer(ClassStylesheet, compiler, writer, metrics, logger)

	result := await(t, tr.Run(context.Background(), source))
	require.Error(t, result.Err)
	assert.True(t, pipelineerrors.IsCompileError(result.Err))

	_, err := os.Stat(filepath.Join("build", "styles", "app.css"))
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, buf.String(), "Unable to process stylesheet")
	assert.Contains(t, buf.String(), source)

	snap := metrics.Snapshot()[ClassStylesheet]
	assert.Equal(t, int64(1), snap.Failed)
	assert.Equal(t, int64(0), snap.Succeeded)
}

func TestConcurrentTransformsOfDifferentFiles(t *testing.T) {
	writer, _ := newProject(t)
	var calls atomic.Int32

	compiler := CompilerFunc(func(ctx context.Context, src string) ([]byte, error) {
		calls.Add(1)
		return []byte("// " + src), nil
	})
	tr := NewTransformer(ClassScript, compiler, writer, nil, nil)

	sources := []string{"a.js", filepath.Join("lib", "b.jsx"), filepath.Join("lib", "deep", "c.ts")}
	var pending []<-chan Result
	for _, s := range sources {
		pending = append(pending, tr.Run(context.Background(), s))
	}

	for i, done := range pending {
		result := await(t, done)
		require.NoError(t, result.Err, sources[i])
		_, err := os.Stat(result.Destination)
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestWriteFailureIsReported(t *testing.T) {
	writer, _ := newProject(t)
	// "build" is a file, so no directory can be created beneath it.
	require.NoError(t, os.WriteFile("build", []byte("x"), 0o644))

	compiler := CompilerFunc(func(ctx context.Context, src string) ([]byte, error) {
		return []byte("ok"), nil
	})
	tr := NewTransformer(ClassTemplate, compiler, writer, nil, nil)

	result := await(t, tr.Run(context.Background(), "index.jade"))
	require.Error(t, result.Err)
	assert.True(t, pipelineerrors.IsIOError(result.Err))
}

func TestOutputExt(t *testing.T) {
	assert.Equal(t, ".html", OutputExt(ClassTemplate))
	assert.Equal(t, ".css", OutputExt(ClassStylesheet))
	assert.Equal(t, ".js", OutputExt(ClassScript))
}

func TestNewSet(t *testing.T) {
	writer, _ := newProject(t)
	set := NewSet(Options{IncludePaths: []string{"vendor/bourbon"}}, writer, nil, nil)

	require.Len(t, set, 3)
	for _, class := range Classes {
		require.Contains(t, set, class)
		assert.Equal(t, class, set[class].Class())
	}
}
