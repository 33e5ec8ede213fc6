package pipeline

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// Group is a composite runner. Members of a series group run one after the
// other; members of a parallel group start together.
type Group struct {
	name     string
	parallel bool
	members  []Runner
}

// Series runs members strictly in order. Member N+1 starts only after member
// N returned, so it observes every file N wrote. The first error stops the
// series.
func Series(name string, members ...Runner) *Group {
	return &Group{name: name, members: members}
}

// Parallel starts every member concurrently and waits for all of them. A
// failing member does not cancel its siblings; all errors are joined.
func Parallel(name string, members ...Runner) *Group {
	return &Group{name: name, parallel: true, members: members}
}

func (g *Group) Name() string { return g.name }

// Members returns the runners in the group.
func (g *Group) Members() []Runner { return g.members }

// IsParallel reports whether the group runs its members concurrently.
func (g *Group) IsParallel() bool { return g.parallel }

func (g *Group) Run(ctx context.Context) error {
	if g.parallel {
		return g.runParallel(ctx)
	}
	return g.runSeries(ctx)
}

func (g *Group) runSeries(ctx context.Context) error {
	for _, member := range g.members {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := member.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (g *Group) runParallel(ctx context.Context) error {
	p := pool.New().WithContext(ctx)
	for _, member := range g.members {
		member := member
		p.Go(func(ctx context.Context) error {
			return member.Run(ctx)
		})
	}
	return p.Wait()
}

type funcRunner struct {
	name string
	fn   func(ctx context.Context) error
}

func (f *funcRunner) Name() string                  { return f.name }
func (f *funcRunner) Run(ctx context.Context) error { return f.fn(ctx) }

// Func adapts a plain function into a Runner.
func Func(name string, fn func(ctx context.Context) error) Runner {
	return &funcRunner{name: name, fn: fn}
}

// Noop is a runner that does nothing.
func Noop(name string) Runner {
	return Func(name, func(context.Context) error { return nil })
}
