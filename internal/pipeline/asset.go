// Package pipeline runs asset tasks: resolve sources, fold a chain of stages
// over the file buffers, write the results. Tasks compose with Series and
// Parallel into the named entry points the CLI exposes.
package pipeline

import (
	"path/filepath"
	"strings"
	"time"
)

// Asset is one in-memory file flowing through a chain. Path is relative to
// the task's destination once written.
type Asset struct {
	Path     string
	Source   string
	Contents []byte
	ModTime  time.Time
}

// Ext returns the lower-cased extension of the asset path, including the dot.
func (a *Asset) Ext() string {
	return strings.ToLower(filepath.Ext(a.Path))
}

// Clone returns a copy of the asset sharing no mutable state.
func (a *Asset) Clone() *Asset {
	clone := *a
	clone.Contents = append([]byte(nil), a.Contents...)
	return &clone
}

// WithExt returns a copy of the asset renamed to the given extension and
// carrying contents.
func (a *Asset) WithExt(ext string, contents []byte) *Asset {
	return &Asset{
		Path:     ReplaceExt(a.Path, ext),
		Source:   a.Source,
		Contents: contents,
		ModTime:  a.ModTime,
	}
}

// ReplaceExt swaps the extension of path for ext.
func ReplaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
