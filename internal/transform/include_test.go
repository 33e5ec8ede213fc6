package transform

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/conneroisu/assetflow/internal/errors"
	"github.com/conneroisu/assetflow/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func page(t *testing.T, path, content string) *pipeline.Asset {
	writeFile(t, path, content)
	return &pipeline.Asset{Path: filepath.Base(path), Source: path, Contents: []byte(content)}
}

func TestParseDirective(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		want    Directive
		ok      bool
	}{
		{"include", "=include header.html ", Directive{Kind: "include", Path: "header.html"}, true},
		{"require", " =require 'nav.html'", Directive{Kind: "require", Path: "nav.html"}, true},
		{"quoted", `=include "parts/footer.html"`, Directive{Kind: "include", Path: "parts/footer.html"}, true},
		{"plain comment", " just a note ", Directive{}, false},
		{"no target", "=include ", Directive{}, false},
		{"glued", "=includeheader.html", Directive{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDirective(tt.comment)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIncludeResolvesComponents(t *testing.T) {
	dir := t.TempDir()
	components := filepath.Join(dir, "components")
	writeFile(t, filepath.Join(components, "header.html"), "<header><!--=include logo.html --></header>")
	writeFile(t, filepath.Join(components, "logo.html"), `<img src="logo.svg">`)

	index := page(t, filepath.Join(dir, "pages", "index.html"),
		"<body>\n<!--=include header.html -->\n<!-- keep me -->\n<script>if (a < b) {}</script></body>")

	out := apply(t, Include(components), index)

	require.Len(t, out, 1)
	assert.Equal(t,
		"<body>\n<header><img src=\"logo.svg\"></header>\n<!-- keep me -->\n<script>if (a < b) {}</script></body>",
		string(out[0].Contents))
}

func TestIncludePrefersPageDirectory(t *testing.T) {
	dir := t.TempDir()
	components := filepath.Join(dir, "components")
	writeFile(t, filepath.Join(components, "nav.html"), "shared")
	writeFile(t, filepath.Join(dir, "pages", "nav.html"), "local")

	out := apply(t, Include(components), page(t, filepath.Join(dir, "pages", "index.html"), "<!--=include nav.html -->"))
	assert.Equal(t, "local", string(out[0].Contents))
}

func TestRequireInlinesOnce(t *testing.T) {
	dir := t.TempDir()
	components := filepath.Join(dir, "components")
	writeFile(t, filepath.Join(components, "icons.html"), "<svg></svg>")

	index := page(t, filepath.Join(dir, "pages", "index.html"),
		"<!--=require icons.html --><!--=require icons.html --><!--=include icons.html -->")
	out := apply(t, Include(components), index)

	assert.Equal(t, "<svg></svg><svg></svg>", string(out[0].Contents))
}

func TestRequireIsPerPage(t *testing.T) {
	dir := t.TempDir()
	components := filepath.Join(dir, "components")
	writeFile(t, filepath.Join(components, "icons.html"), "<svg></svg>")

	a := page(t, filepath.Join(dir, "pages", "a.html"), "<!--=require icons.html -->")
	b := page(t, filepath.Join(dir, "pages", "b.html"), "<!--=require icons.html -->")
	out := apply(t, Include(components), a, b)

	require.Len(t, out, 2)
	assert.Equal(t, "<svg></svg>", string(out[0].Contents))
	assert.Equal(t, "<svg></svg>", string(out[1].Contents))
}

func TestIncludeGlob(t *testing.T) {
	dir := t.TempDir()
	components := filepath.Join(dir, "components")
	writeFile(t, filepath.Join(components, "cards", "b.html"), "B")
	writeFile(t, filepath.Join(components, "cards", "a.html"), "A")

	out := apply(t, Include(components), page(t, filepath.Join(dir, "pages", "index.html"), "<!--=include cards/*.html -->"))
	assert.Equal(t, "AB", string(out[0].Contents))
}

func TestIncludeMissing(t *testing.T) {
	dir := t.TempDir()
	index := page(t, filepath.Join(dir, "pages", "index.html"), "<!--=include nope.html -->")

	_, err := Include(filepath.Join(dir, "components")).Apply(context.Background(), []*pipeline.Asset{index})

	require.Error(t, err)
	assert.True(t, errors.IsIncludeError(err))
	assert.Contains(t, err.Error(), "=include nope.html")
	assert.Equal(t, "include", errors.StageOf(err))
}

func TestIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	components := filepath.Join(dir, "components")
	writeFile(t, filepath.Join(components, "a.html"), "<!--=include b.html -->")
	writeFile(t, filepath.Join(components, "b.html"), "<!--=include a.html -->")

	index := page(t, filepath.Join(dir, "pages", "index.html"), "<!--=include a.html -->")
	_, err := Include(components).Apply(context.Background(), []*pipeline.Asset{index})

	require.Error(t, err)
	assert.True(t, errors.IsIncludeError(err))
	assert.Contains(t, err.Error(), "index.html -> a.html -> b.html -> a.html")
}
