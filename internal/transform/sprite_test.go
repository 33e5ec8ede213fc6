package transform

import (
	"context"
	"encoding/xml"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/conneroisu/assetflow/internal/errors"
	"github.com/conneroisu/assetflow/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	arrowSVG = `<?xml version="1.0"?>
<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24" width="24" height="24">
  <!-- arrow -->
  <path d="M0 12 L24 12"/>
</svg>`
	circleSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="16" height="16"><circle cx="8" cy="8" r="8"/></svg>`
)

func TestSpriteBuildsStack(t *testing.T) {
	out := apply(t, Sprite(), asset("zoom-in.svg", circleSVG), asset("arrow.svg", arrowSVG))

	require.Len(t, out, 2)
	assert.Equal(t, SpriteName, out[0].Path)
	assert.Equal(t, filepath.FromSlash(SpriteExampleName), out[1].Path)

	sprite := string(out[0].Contents)
	assert.Contains(t, sprite, "<style>:root>svg{display:none}:root>svg:target{display:block}</style>")
	assert.Contains(t, sprite, `id="arrow"`)
	assert.Contains(t, sprite, `id="zoom-in"`)
	assert.Less(t, strings.Index(sprite, `id="arrow"`), strings.Index(sprite, `id="zoom-in"`), "shapes sorted by id")
	assert.Contains(t, sprite, `viewBox="0 0 16 16"`, "viewBox derived from width and height")
	assert.NotContains(t, sprite, "<!-- arrow -->")

	page := string(out[1].Contents)
	assert.Contains(t, page, `../sprite.svg#arrow`)
	assert.Contains(t, page, "Zoom In")
}

func TestSpriteIsDeterministic(t *testing.T) {
	first := apply(t, Sprite(), asset("b.svg", circleSVG), asset("a.svg", arrowSVG))
	second := apply(t, Sprite(), asset("a.svg", arrowSVG), asset("b.svg", circleSVG))

	assert.Equal(t, first[0].Contents, second[0].Contents)
	assert.Equal(t, first[1].Contents, second[1].Contents)
}

func TestSpriteNoInput(t *testing.T) {
	assert.Empty(t, apply(t, Sprite()))
}

func TestSpriteRejectsNonSVG(t *testing.T) {
	_, err := Sprite().Apply(context.Background(), []*pipeline.Asset{asset("bad.svg", "<html></html>")})
	require.Error(t, err)
	assert.Equal(t, "sprite", errors.StageOf(err))
}

func TestSpriteExampleEscapes(t *testing.T) {
	page, err := RenderSpriteExample(context.Background(), "../sprite.svg", []Shape{{ID: `x"><script>`}})
	require.NoError(t, err)
	assert.NotContains(t, string(page), "<script>")
}

func TestShapeID(t *testing.T) {
	assert.Equal(t, "arrow-left", shapeID(filepath.Join("icons", "arrow left.svg")))
	assert.Equal(t, "logo", shapeID("logo.svg"))
}

const strokeSVG = `<svg xmlns="http://www.w3.org/2000/svg" id="orig" x="4" y="4" width="24" height="24" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" class="feather"><circle cx="12" cy="12" r="10"/></svg>`

func TestSpriteKeepsRootAttributes(t *testing.T) {
	out := apply(t, Sprite(), asset("ring.svg", strokeSVG))
	sprite := string(out[0].Contents)

	start := strings.Index(sprite, `<svg id="ring"`)
	require.GreaterOrEqual(t, start, 0)
	nested := sprite[start : start+strings.Index(sprite[start:], ">")]

	assert.Contains(t, nested, `fill="none"`)
	assert.Contains(t, strings.ToLower(nested), `stroke="currentcolor"`)
	assert.Contains(t, nested, `stroke-width="2"`)
	assert.Contains(t, nested, `class="feather"`)
	assert.NotContains(t, nested, `x="4"`)
	assert.NotContains(t, nested, `y="4"`)
	assert.NotContains(t, sprite, `id="orig"`)
}

func TestSpriteHoistsNamespaces(t *testing.T) {
	shape, err := parseShape("tagged", []byte(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:foo="urn:foo" foo:role="icon" viewBox="0 0 4 4"><rect foo:bar="1" width="4" height="4"/></svg>`))
	require.NoError(t, err)
	clash, err := parseShape("clash", []byte(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:foo="urn:other" viewBox="0 0 4 4"><rect foo:bar="2"/></svg>`))
	require.NoError(t, err)

	sprite := string(BuildStack([]Shape{shape, clash}))
	root := sprite[:strings.Index(sprite, "<style>")]
	assert.Contains(t, root, `xmlns:foo="urn:foo"`)
	assert.Contains(t, sprite, `<svg id="tagged" viewBox="0 0 4 4" foo:role="icon">`)
	assert.Contains(t, sprite, `<svg id="clash" viewBox="0 0 4 4" xmlns:foo="urn:other">`)
	assert.Contains(t, sprite, `foo:bar="1"`)

	// Every prefix used in the sprite resolves.
	dec := xml.NewDecoder(strings.NewReader(sprite))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if el, ok := tok.(xml.StartElement); ok {
			for _, a := range el.Attr {
				assert.NotEqual(t, "foo", a.Name.Space, "unresolved prefix on %s", el.Name.Local)
			}
		}
	}
}
