// Package watcher turns filesystem notifications into asset events. The
// Dispatcher binds source globs to transforms; the FileWatcher observes the
// destination tree for the reload server.
package watcher

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// EventKind represents the type of file change
type EventKind int

const (
	EventAdded EventKind = iota
	EventChanged
	EventRemoved
)

// String returns the string representation of the EventKind
func (e EventKind) String() string {
	switch e {
	case EventAdded:
		return "added"
	case EventChanged:
		return "changed"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// FileEvent is a single filesystem change for a source path.
type FileEvent struct {
	Path string
	Kind EventKind
}

// kindOf maps an fsnotify operation onto an EventKind. Chmod-only events
// are not reported.
func kindOf(op fsnotify.Op) (EventKind, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return EventRemoved, true
	case op.Has(fsnotify.Create):
		return EventAdded, true
	case op.Has(fsnotify.Write):
		return EventChanged, true
	default:
		return 0, false
	}
}

// DirSkipper reports whether a directory below the watch root is left out.
type DirSkipper func(name string) bool

// SkipHiddenDirs leaves out dot-directories and node_modules. The reload
// server uses it for the destination tree; source globs are watched in full
// so every file the startup scan finds keeps being watched.
func SkipHiddenDirs(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules"
}

// addRecursive walks root and adds all directories to the watcher. A nil
// skip watches every directory.
func addRecursive(watcher *fsnotify.Watcher, root string, skip DirSkipper) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != root && skip != nil && skip(d.Name()) {
			return filepath.SkipDir
		}

		return watcher.Add(path)
	})
}

// walkFiles lists the regular files below root, honouring skip for
// directories the same way addRecursive does.
func walkFiles(root string, skip DirSkipper) []string {
	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && skip != nil && skip(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, path)
		return nil
	})

	return files
}
