package pipeline

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conneroisu/assetflow/internal/glob"
)

// Newer skips sources whose output in Dest is at least as recent as the
// source. Ext, when set, replaces the source extension to find the output,
// so every format variant is judged against its own prior artifact.
type Newer struct {
	Dest string
	Ext  string
}

// NewNewer returns a skip-if-newer filter for outputs written under dest.
func NewNewer(dest, ext string) *Newer {
	return &Newer{Dest: dest, Ext: ext}
}

// Output returns the artifact path a source maps to.
func (n *Newer) Output(m glob.Match) string {
	rel := m.Rel()
	if n.Ext != "" {
		rel = ReplaceExt(rel, n.Ext)
	}
	return filepath.Join(n.Dest, rel)
}

// ShouldProcess reports whether the source is newer than its output or the
// output does not exist yet.
func (n *Newer) ShouldProcess(m glob.Match) (bool, error) {
	src, err := os.Stat(m.Path)
	if err != nil {
		return false, err
	}

	out, err := os.Stat(n.Output(m))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, err
	}

	return src.ModTime().After(out.ModTime()), nil
}
