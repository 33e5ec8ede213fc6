// Package transform holds the stages task chains are built from. Stages that
// call an external converter live in tool.go; the rest run in process.
package transform

import (
	"bytes"
	"context"
	"time"

	"github.com/conneroisu/assetflow/internal/pipeline"
)

// Concat merges every asset into a single bundle called name, joined with a
// newline in input order. No inputs produce no bundle.
func Concat(name string) pipeline.Stage {
	return pipeline.NewStage("concat", func(_ context.Context, assets []*pipeline.Asset) ([]*pipeline.Asset, error) {
		if len(assets) == 0 {
			return nil, nil
		}

		var buf bytes.Buffer
		var newest time.Time
		for i, a := range assets {
			if i > 0 {
				buf.WriteByte('\n')
			}
			buf.Write(a.Contents)
			if a.ModTime.After(newest) {
				newest = a.ModTime
			}
		}

		return []*pipeline.Asset{{
			Path:     name,
			Source:   assets[0].Source,
			Contents: buf.Bytes(),
			ModTime:  newest,
		}}, nil
	})
}

// Branch feeds the same input to each stage and emits all their outputs,
// turning one source into several formats.
func Branch(name string, stages ...pipeline.Stage) pipeline.Stage {
	return pipeline.NewStage(name, func(ctx context.Context, assets []*pipeline.Asset) ([]*pipeline.Asset, error) {
		var out []*pipeline.Asset
		for _, stage := range stages {
			input := make([]*pipeline.Asset, len(assets))
			for i, a := range assets {
				input[i] = a.Clone()
			}
			produced, err := pipeline.Fold(ctx, []pipeline.Stage{stage}, input)
			if err != nil {
				return nil, err
			}
			out = append(out, produced...)
		}
		return out, nil
	})
}
