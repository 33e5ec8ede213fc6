package transform

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/conneroisu/assetflow/internal/errors"
	"github.com/conneroisu/assetflow/internal/pipeline"
	"github.com/conneroisu/assetflow/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asset(path, contents string) *pipeline.Asset {
	return &pipeline.Asset{Path: path, Source: "/src/" + path, Contents: []byte(contents)}
}

func apply(t *testing.T, stage pipeline.Stage, assets ...*pipeline.Asset) []*pipeline.Asset {
	t.Helper()
	out, err := stage.Apply(context.Background(), assets)
	require.NoError(t, err)
	return out
}

func TestConcat(t *testing.T) {
	older := asset("reset.scss", "*{margin:0}")
	older.ModTime = time.Unix(100, 0)
	newer := asset("styles.scss", "body{color:red}")
	newer.ModTime = time.Unix(200, 0)

	out := apply(t, Concat("styles.min.css"), older, newer)

	require.Len(t, out, 1)
	assert.Equal(t, "styles.min.css", out[0].Path)
	assert.Equal(t, "*{margin:0}\nbody{color:red}", string(out[0].Contents))
	assert.Equal(t, time.Unix(200, 0), out[0].ModTime)
}

func TestConcatNoInput(t *testing.T) {
	assert.Empty(t, apply(t, Concat("main.min.js")))
}

func TestBranch(t *testing.T) {
	toWOFF := pipeline.PerFile("woff", func(_ context.Context, a *pipeline.Asset) (*pipeline.Asset, error) {
		return a.WithExt(".woff", []byte("woff:"+string(a.Contents))), nil
	})
	toTTF := pipeline.PerFile("ttf", func(_ context.Context, a *pipeline.Asset) (*pipeline.Asset, error) {
		return a.WithExt(".ttf", []byte("ttf:"+string(a.Contents))), nil
	})

	out := apply(t, Branch("fonts", toWOFF, toTTF), asset("Inter.otf", "glyphs"))

	require.Len(t, out, 2)
	assert.Equal(t, "Inter.woff", out[0].Path)
	assert.Equal(t, "woff:glyphs", string(out[0].Contents))
	assert.Equal(t, "Inter.ttf", out[1].Path)
	assert.Equal(t, "ttf:glyphs", string(out[1].Contents))
}

func TestMinifyJS(t *testing.T) {
	src := "function add(first, second) {\n  // sum\n  return first + second;\n}\n"
	out := apply(t, MinifyJS(), asset("main.min.js", src))

	require.Len(t, out, 1)
	assert.Less(t, len(out[0].Contents), len(src))
	assert.NotContains(t, string(out[0].Contents), "// sum")
	assert.Contains(t, string(out[0].Contents), "function add")
}

func TestMinifyInvalidJS(t *testing.T) {
	_, err := MinifyJS().Apply(context.Background(), []*pipeline.Asset{asset("main.js", "function (")})
	require.Error(t, err)
	assert.True(t, errors.IsToolError(err))
	assert.Equal(t, "minify", errors.StageOf(err))
}

func TestFilterStage(t *testing.T) {
	stage := Filter("prefix", tool.New("prefix", []string{"sed", "s/flex/-webkit-flex/"}), nil)
	out := apply(t, stage, asset("styles.scss", "a{display:flex}"))

	require.Len(t, out, 1)
	assert.Equal(t, "styles.scss", out[0].Path)
	assert.Equal(t, "a{display:-webkit-flex}", string(out[0].Contents))
}

func TestConvertStage(t *testing.T) {
	stage := Convert("webp", tool.New("webp", []string{"cp", "{in}", "{out}"}), ".webp", nil)
	out := apply(t, stage, asset("photo.jpg", "pixels"))

	require.Len(t, out, 1)
	assert.Equal(t, "photo.webp", out[0].Path)
	assert.Equal(t, "pixels", string(out[0].Contents))
}

func TestConvertStageFailure(t *testing.T) {
	stage := Convert("avif", tool.New("avif", []string{"sh", "-c", "echo bad input >&2; exit 1", "{in}", "{out}"}), ".avif", nil)
	_, err := stage.Apply(context.Background(), []*pipeline.Asset{asset("photo.jpg", "x")})

	require.Error(t, err)
	assert.True(t, errors.IsToolError(err))
	assert.Equal(t, "avif", errors.StageOf(err))
	assert.Contains(t, err.Error(), "bad input")
	assert.Contains(t, err.Error(), "photo.jpg")
}

func gradient() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255})
		}
	}
	return img
}

func TestCompressPNG(t *testing.T) {
	var raw bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	require.NoError(t, enc.Encode(&raw, gradient()))

	out := apply(t, Compress(75), asset("logo.png", raw.String()))

	require.Len(t, out, 1)
	assert.Less(t, len(out[0].Contents), raw.Len())
	_, err := png.Decode(bytes.NewReader(out[0].Contents))
	assert.NoError(t, err)
}

func TestCompressJPEG(t *testing.T) {
	var raw bytes.Buffer
	require.NoError(t, jpeg.Encode(&raw, gradient(), &jpeg.Options{Quality: 100}))

	out := apply(t, Compress(50), asset("photo.jpg", raw.String()))

	require.Len(t, out, 1)
	assert.Less(t, len(out[0].Contents), raw.Len())
}

func TestCompressKeepsSmallerOriginal(t *testing.T) {
	var small bytes.Buffer
	require.NoError(t, jpeg.Encode(&small, gradient(), &jpeg.Options{Quality: 10}))

	out := apply(t, Compress(100), asset("thumb.jpeg", small.String()))

	require.Len(t, out, 1)
	assert.Equal(t, small.Bytes(), out[0].Contents)
}

func TestCompressPassesThroughOtherFormats(t *testing.T) {
	out := apply(t, Compress(75), asset("anim.webp", "RIFF"))
	require.Len(t, out, 1)
	assert.Equal(t, "RIFF", string(out[0].Contents))
}

func TestCompressCorruptImage(t *testing.T) {
	_, err := Compress(75).Apply(context.Background(), []*pipeline.Asset{asset("broken.png", "not a png")})
	require.Error(t, err)
	assert.True(t, errors.IsToolError(err))
	assert.Contains(t, err.Error(), "broken.png")
}
