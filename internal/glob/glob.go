// Package glob expands file patterns into concrete source lists.
//
// Patterns use doublestar syntax (`*`, `**`, `?`, `[...]`, `{a,b}`) with `/`
// separators. A pattern prefixed with `!` excludes matches of every inclusion
// pattern listed before it, so a later inclusion can re-admit a file an
// earlier exclusion dropped:
//
//	app/images/*.*, !app/images/*.svg, app/images/sprite.svg
//
// selects every image except SVGs, plus the sprite.
package glob

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Match is one resolved file together with the base directory its relative
// output path is computed from.
type Match struct {
	Path string
	Base string
}

// Rel returns the path of the match relative to its base.
func (m Match) Rel() string {
	rel, err := filepath.Rel(m.Base, m.Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(m.Path)
	}
	return rel
}

type pattern struct {
	glob    string
	negated bool
}

// Resolve expands patterns, deriving each match's base from the static
// prefix of the pattern that produced it.
func Resolve(patterns ...string) ([]Match, error) {
	return ResolveWithBase("", patterns...)
}

// ResolveWithBase expands patterns using base as the base directory of every
// match. An empty base falls back to each pattern's static prefix.
//
// A pattern that matches nothing is not an error. Directories are never
// returned. Results keep pattern order, then lexical walk order, without
// duplicates.
func ResolveWithBase(base string, patterns ...string) ([]Match, error) {
	parsed := make([]pattern, 0, len(patterns))
	for _, p := range patterns {
		if strings.HasPrefix(p, "!") {
			parsed = append(parsed, pattern{glob: normalize(p[1:]), negated: true})
			continue
		}
		parsed = append(parsed, pattern{glob: normalize(p)})
	}

	seen := make(map[string]bool)
	var matches []Match

	for i, p := range parsed {
		if p.negated {
			continue
		}

		root, rest := Split(p.glob)
		found, err := expand(root, rest)
		if err != nil {
			return nil, err
		}

		for _, candidate := range found {
			if seen[candidate] || excluded(candidate, parsed[i+1:]) {
				continue
			}
			seen[candidate] = true

			matchBase := base
			if matchBase == "" {
				matchBase = root
			}
			matches = append(matches, Match{
				Path: filepath.FromSlash(candidate),
				Base: filepath.FromSlash(matchBase),
			})
		}
	}

	return matches, nil
}

// MatchPath reports whether name is selected by pattern. A pattern without
// glob syntax also matches everything beneath it, so a directory pattern
// covers the files it contains.
func MatchPath(pattern, name string) bool {
	p := normalize(pattern)
	n := normalize(name)

	if !HasMeta(p) {
		return n == p || strings.HasPrefix(n, strings.TrimSuffix(p, "/")+"/")
	}

	ok, err := doublestar.Match(p, n)
	return err == nil && ok
}

// HasMeta reports whether p contains glob syntax.
func HasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

// Split separates a slash pattern into its static directory prefix and the
// remaining pattern relative to that prefix. A pattern without glob syntax is
// split into its directory and file name.
func Split(p string) (root, rest string) {
	p = normalize(p)
	if !HasMeta(p) {
		return path.Dir(p), path.Base(p)
	}

	segments := strings.Split(p, "/")
	for i, segment := range segments {
		if HasMeta(segment) {
			root = strings.Join(segments[:i], "/")
			rest = strings.Join(segments[i:], "/")
			break
		}
	}

	switch {
	case root == "" && strings.HasPrefix(p, "/"):
		root = "/"
	case root == "":
		root = "."
	}
	return root, rest
}

func expand(root, rest string) ([]string, error) {
	info, err := os.Stat(filepath.FromSlash(root))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	fsys := os.DirFS(filepath.FromSlash(root))
	found, err := doublestar.Glob(fsys, rest)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(found))
	for _, rel := range found {
		st, err := fs.Stat(fsys, rel)
		if err != nil || st.IsDir() {
			continue
		}
		files = append(files, path.Join(root, rel))
	}
	return files, nil
}

func excluded(candidate string, later []pattern) bool {
	for _, p := range later {
		if !p.negated {
			continue
		}
		if ok, err := doublestar.Match(p.glob, candidate); err == nil && ok {
			return true
		}
	}
	return false
}

func normalize(p string) string {
	p = filepath.ToSlash(p)
	if p == "" {
		return p
	}
	return path.Clean(p)
}
