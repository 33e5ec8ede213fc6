package transform

import (
	"context"
	"fmt"

	"github.com/conneroisu/assetflow/internal/errors"
	"github.com/conneroisu/assetflow/internal/pipeline"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

const (
	MediaTypeJS  = "application/javascript"
	MediaTypeCSS = "text/css"
	MediaTypeSVG = "image/svg+xml"
)

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(MediaTypeJS, js.Minify)
	m.AddFunc(MediaTypeCSS, css.Minify)
	m.AddFunc(MediaTypeSVG, svg.Minify)
	return m
}

// Minify compresses every asset as the given media type.
func Minify(mediatype string) pipeline.Stage {
	m := newMinifier()
	return pipeline.PerFile("minify", func(_ context.Context, a *pipeline.Asset) (*pipeline.Asset, error) {
		out, err := m.Bytes(mediatype, a.Contents)
		if err != nil {
			return nil, errors.NewToolError(errors.ErrCodeToolFailed,
				fmt.Sprintf("cannot minify %s", mediatype), err)
		}
		next := a.Clone()
		next.Contents = out
		return next, nil
	})
}

// MinifyJS is Minify for JavaScript bundles.
func MinifyJS() pipeline.Stage {
	return Minify(MediaTypeJS)
}
