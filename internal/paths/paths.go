// Package paths maps source asset paths onto the destination tree.
package paths

import (
	"path/filepath"
	"strings"
)

// Rebase joins source under destRoot without touching the file name.
func Rebase(source, destRoot string) string {
	return filepath.Join(destRoot, source)
}

// MapDestination rebases source under destRoot and swaps the extension of
// the final path element for newExt. Only the suffix is replaced, so
// directories whose names contain the old extension are left alone.
func MapDestination(source, destRoot, newExt string) string {
	rebased := Rebase(source, destRoot)

	return ReplaceExt(rebased, newExt)
}

// ReplaceExt replaces the extension of the last element of p with ext. A path
// without an extension gets ext appended.
func ReplaceExt(p, ext string) string {
	old := filepath.Ext(p)

	return strings.TrimSuffix(p, old) + ext
}
