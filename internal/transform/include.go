package transform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/assetflow/internal/errors"
	"github.com/conneroisu/assetflow/internal/glob"
	"github.com/conneroisu/assetflow/internal/pipeline"
	"golang.org/x/net/html"
)

// Directive is an include instruction embedded in an HTML comment:
//
//	<!--=include partials/header.html -->
//	<!--=require scripts.html -->
type Directive struct {
	Kind string
	Path string
}

func (d Directive) String() string {
	return "=" + d.Kind + " " + d.Path
}

// ParseDirective extracts a directive from comment text.
func ParseDirective(comment string) (Directive, bool) {
	text := strings.TrimSpace(comment)
	for _, kind := range []string{"include", "require"} {
		prefix := "=" + kind
		if !strings.HasPrefix(text, prefix) {
			continue
		}
		rest := strings.TrimPrefix(text, prefix)
		if rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
			return Directive{}, false
		}
		target := strings.Trim(strings.TrimSpace(rest), `"'`)
		if target == "" {
			return Directive{}, false
		}
		return Directive{Kind: kind, Path: target}, true
	}
	return Directive{}, false
}

// Include replaces include directives in HTML assets with the referenced
// files. Targets are looked up next to the including file first, then in
// each of includePaths. Inclusion is recursive; a require directive inlines
// its file at most once per page. Cycles and missing targets fail the page.
func Include(includePaths ...string) pipeline.Stage {
	return pipeline.PerFile("include", func(ctx context.Context, a *pipeline.Asset) (*pipeline.Asset, error) {
		r := &includer{
			paths: includePaths,
			seen:  make(map[string]bool),
		}
		src, err := filepath.Abs(a.Source)
		if err != nil {
			src = a.Source
		}
		out, err := r.expand(ctx, a.Contents, src, []string{src})
		if err != nil {
			return nil, err
		}
		next := a.Clone()
		next.Contents = out
		return next, nil
	})
}

type includer struct {
	paths []string
	seen  map[string]bool
}

func (r *includer) expand(ctx context.Context, data []byte, file string, chain []string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	z := html.NewTokenizer(bytes.NewReader(data))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				break
			}
			return nil, errors.NewIOError(errors.ErrCodeDecodeFailed, "cannot tokenize html", z.Err()).WithPath(file)
		}

		raw := append([]byte(nil), z.Raw()...)
		if tt != html.CommentToken {
			out.Write(raw)
			continue
		}

		d, ok := ParseDirective(z.Token().Data)
		if !ok {
			out.Write(raw)
			continue
		}

		targets, err := r.locate(d, filepath.Dir(file))
		if err != nil {
			return nil, err.WithPath(file)
		}

		for _, target := range targets {
			if d.Kind == "require" && r.seen[target] {
				continue
			}
			if contains(chain, target) {
				return nil, errors.NewIncludeError(errors.ErrCodeIncludeCycle,
					fmt.Sprintf("include cycle: %s", describeChain(append(chain, target)))).WithPath(file)
			}
			r.seen[target] = true

			body, readErr := os.ReadFile(target)
			if readErr != nil {
				return nil, errors.NewIOError(errors.ErrCodeReadFailed, "cannot read include", readErr).WithPath(target)
			}
			expanded, err := r.expand(ctx, body, target, append(chain[:len(chain):len(chain)], target))
			if err != nil {
				return nil, err
			}
			out.Write(expanded)
		}
	}
	return out.Bytes(), nil
}

// locate resolves a directive to files. Glob targets may match several
// files; a literal target must exist in one of the search directories.
func (r *includer) locate(d Directive, dir string) ([]string, *errors.PipelineError) {
	search := append([]string{dir}, r.paths...)
	if filepath.IsAbs(d.Path) {
		search = []string{""}
	}

	for _, root := range search {
		candidate := filepath.Join(root, filepath.FromSlash(d.Path))
		if glob.HasMeta(d.Path) {
			matches, err := glob.Resolve(candidate)
			if err != nil {
				return nil, errors.NewIOError(errors.ErrCodeGlobFailed, "cannot resolve include", err)
			}
			if len(matches) == 0 {
				continue
			}
			files := make([]string, 0, len(matches))
			for _, m := range matches {
				files = append(files, absolute(m.Path))
			}
			return files, nil
		}

		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return []string{absolute(candidate)}, nil
		}
	}

	return nil, errors.NewIncludeError(errors.ErrCodeIncludeMissing,
		fmt.Sprintf("%s: file not found in %s", d, strings.Join(search, ", ")))
}

func absolute(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func contains(chain []string, target string) bool {
	for _, c := range chain {
		if c == target {
			return true
		}
	}
	return false
}

func describeChain(chain []string) string {
	names := make([]string, len(chain))
	for i, c := range chain {
		names[i] = filepath.Base(c)
	}
	return strings.Join(names, " -> ")
}
