package transform

import (
	"bytes"
	"context"
	"fmt"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/conneroisu/assetflow/internal/errors"
	"github.com/conneroisu/assetflow/internal/pipeline"
)

// Compress re-encodes JPEG, PNG and GIF assets losslessly where possible and
// at jpegQuality for JPEG. A result larger than the input is discarded in
// favour of the original bytes. Other formats pass through untouched.
func Compress(jpegQuality int) pipeline.Stage {
	return pipeline.PerFile("compress", func(_ context.Context, a *pipeline.Asset) (*pipeline.Asset, error) {
		var (
			out []byte
			err error
		)
		switch a.Ext() {
		case ".jpg", ".jpeg":
			out, err = recompressJPEG(a.Contents, jpegQuality)
		case ".png":
			out, err = recompressPNG(a.Contents)
		case ".gif":
			out, err = recompressGIF(a.Contents)
		default:
			return a, nil
		}
		if err != nil {
			return nil, errors.NewToolError(errors.ErrCodeDecodeFailed,
				fmt.Sprintf("cannot recompress %s image", a.Ext()), err)
		}

		if len(out) >= len(a.Contents) {
			return a, nil
		}
		next := a.Clone()
		next.Contents = out
		return next, nil
	})
}

func recompressJPEG(data []byte, quality int) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func recompressPNG(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func recompressGIF(data []byte) ([]byte, error) {
	anim, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
