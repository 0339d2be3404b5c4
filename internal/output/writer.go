// Package output mirrors transformed assets into the destination tree.
package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/assetwatch/internal/errors"
	"github.com/conneroisu/assetwatch/internal/logging"
	"github.com/conneroisu/assetwatch/internal/paths"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Writer writes compiled output under a fixed destination root and removes
// mirrored files when their sources disappear.
type Writer struct {
	root   string
	logger logging.Logger
}

// NewWriter creates a writer rooted at destRoot.
func NewWriter(destRoot string, logger logging.Logger) *Writer {
	if logger == nil {
		logger = logging.Nop()
	}

	return &Writer{
		root:   destRoot,
		logger: logger.WithComponent("output"),
	}
}

// Root returns the destination root.
func (w *Writer) Root() string {
	return w.root
}

// Write stores content at dest, creating any missing parent directories.
// The data lands in a temporary sibling first and is renamed into place so
// readers never observe a partial file. Failures are logged and returned;
// they are terminal for this write only.
func (w *Writer) Write(ctx context.Context, dest string, content []byte) error {
	if err := w.write(dest, content); err != nil {
		w.logger.Error(ctx, err, "unable to write", "path", dest)
		return err
	}

	w.logger.Debug(ctx, "wrote output", "path", dest, "bytes", len(content))
	return nil
}

func (w *Writer) write(dest string, content []byte) error {
	if dest == "" {
		return errors.NewIOError(errors.CodeWriteFailed, "empty destination path", nil)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return errors.NewIOError(errors.CodeWriteFailed, "creating parent directories", err).WithPath(dest)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return errors.NewIOError(errors.CodeWriteFailed, "creating temporary file", err).WithPath(dest)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.NewIOError(errors.CodeWriteFailed, "writing output", err).WithPath(dest)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.NewIOError(errors.CodeWriteFailed, "closing output", err).WithPath(dest)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName)
		return errors.NewIOError(errors.CodeWriteFailed, "setting permissions", err).WithPath(dest)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return errors.NewIOError(errors.CodeWriteFailed, "renaming into place", err).WithPath(dest)
	}

	return nil
}

// Remove deletes the mirror of source from the destination tree. The mirror
// keeps the source file name exactly; no extension is swapped.
func (w *Writer) Remove(ctx context.Context, source string) error {
	dest := paths.Rebase(source, w.root)

	if err := os.Remove(dest); err != nil {
		wrapped := errors.NewIOError(errors.CodeRemoveFailed, "unable to delete destination file", err).WithPath(source)
		w.logger.Error(ctx, err, "unable to delete destination file", "source", source, "path", dest)
		return wrapped
	}

	w.logger.Info(ctx, fmt.Sprintf("Removed %s", dest), "source", source)
	return nil
}
