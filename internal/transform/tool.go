package transform

import (
	"context"

	"github.com/conneroisu/assetflow/internal/pipeline"
	"github.com/conneroisu/assetflow/internal/tool"
)

// Filter pipes each asset through an external tool, keeping its name.
func Filter(name string, t *tool.Tool, vars tool.Vars) pipeline.Stage {
	return pipeline.PerFile(name, func(ctx context.Context, a *pipeline.Asset) (*pipeline.Asset, error) {
		out, err := t.Convert(ctx, a.Contents, a.Ext(), a.Ext(), vars)
		if err != nil {
			return nil, err
		}
		next := a.Clone()
		next.Contents = out
		return next, nil
	})
}

// Convert runs an external converter per asset and renames the result to ext.
func Convert(name string, t *tool.Tool, ext string, vars tool.Vars) pipeline.Stage {
	return pipeline.PerFile(name, func(ctx context.Context, a *pipeline.Asset) (*pipeline.Asset, error) {
		out, err := t.Convert(ctx, a.Contents, a.Ext(), ext, vars)
		if err != nil {
			return nil, err
		}
		return a.WithExt(ext, out), nil
	})
}
