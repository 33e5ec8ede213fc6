package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/conneroisu/assetflow/internal/errors"
)

// Stage is one transformation in a task chain. A stage receives every asset
// the previous stage produced, so it may rewrite, merge or fan out files.
type Stage interface {
	Name() string
	Apply(ctx context.Context, assets []*Asset) ([]*Asset, error)
}

type stageFunc struct {
	name string
	fn   func(ctx context.Context, assets []*Asset) ([]*Asset, error)
}

func (s *stageFunc) Name() string { return s.name }

func (s *stageFunc) Apply(ctx context.Context, assets []*Asset) ([]*Asset, error) {
	return s.fn(ctx, assets)
}

// NewStage builds a Stage operating on the full asset set.
func NewStage(name string, fn func(ctx context.Context, assets []*Asset) ([]*Asset, error)) Stage {
	return &stageFunc{name: name, fn: fn}
}

// PerFile builds a Stage that maps every asset independently. Returning a nil
// asset drops the file from the chain.
func PerFile(name string, fn func(ctx context.Context, asset *Asset) (*Asset, error)) Stage {
	return NewStage(name, func(ctx context.Context, assets []*Asset) ([]*Asset, error) {
		out := make([]*Asset, 0, len(assets))
		for _, asset := range assets {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			next, err := fn(ctx, asset)
			if err != nil {
				return nil, stageError(name, asset.Source, err)
			}
			if next != nil {
				out = append(out, next)
			}
		}
		return out, nil
	})
}

// Fold applies chain to assets in order, feeding each stage's output into the
// next. The first failing stage aborts the rest.
func Fold(ctx context.Context, chain []Stage, assets []*Asset) ([]*Asset, error) {
	current := assets
	for _, stage := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, err := stage.Apply(ctx, current)
		if err != nil {
			return nil, stageError(stage.Name(), "", err)
		}
		current = next
	}
	return current, nil
}

func stageError(stage, path string, err error) error {
	if isContextErr(err) {
		return err
	}

	pe := errors.Wrap(err, errors.ErrCodeStageFailed, fmt.Sprintf("stage %s failed", stage))
	pe.WithStage(stage)
	if pe.Path == "" && path != "" {
		pe.WithPath(path)
	}
	return pe
}

func isContextErr(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
