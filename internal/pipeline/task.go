package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/assetflow/internal/errors"
	"github.com/conneroisu/assetflow/internal/glob"
	"github.com/conneroisu/assetflow/internal/logging"
)

// Runner is anything the composer can schedule: a single task or a group.
type Runner interface {
	Name() string
	Run(ctx context.Context) error
}

// Notifier receives the files a live task wrote so connected browsers can
// refresh. Inject is used when only stylesheets changed.
type Notifier interface {
	Reload(paths ...string)
	Inject(paths ...string)
}

// Filter decides per source whether it needs processing at all.
type Filter interface {
	ShouldProcess(m glob.Match) (bool, error)
}

// Task reads the files matching its sources, folds its chain over them and
// writes the result beneath its destination.
type Task struct {
	name     string
	sources  []string
	base     string
	filter   Filter
	chain    []Stage
	dest     string
	notifier Notifier
	logger   logging.Logger
}

// NewTask creates a task. Sources are glob patterns; `!` excludes.
func NewTask(name string, sources []string, dest string, chain ...Stage) *Task {
	return &Task{
		name:    name,
		sources: sources,
		chain:   chain,
		dest:    dest,
		logger:  logging.NewNopLogger(),
	}
}

// WithBase fixes the base directory output paths are computed from.
func (t *Task) WithBase(base string) *Task {
	t.base = base
	return t
}

// WithFilter installs a per-source filter such as Newer.
func (t *Task) WithFilter(filter Filter) *Task {
	t.filter = filter
	return t
}

// Live makes the task notify n after every run that wrote files. A nil
// notifier leaves the task silent.
func (t *Task) Live(n Notifier) *Task {
	t.notifier = n
	return t
}

// WithLogger sets the logger used for progress output.
func (t *Task) WithLogger(logger logging.Logger) *Task {
	if logger != nil {
		t.logger = logger
	}
	return t
}

func (t *Task) Name() string      { return t.name }
func (t *Task) Sources() []string { return t.sources }
func (t *Task) Dest() string      { return t.dest }

// Stages returns the names of the chain stages in order.
func (t *Task) Stages() []string {
	names := make([]string, 0, len(t.chain))
	for _, s := range t.chain {
		names = append(names, s.Name())
	}
	return names
}

// Run executes the task once.
func (t *Task) Run(ctx context.Context) error {
	op := logging.StartOperation(t.logger.With("task", t.name), t.name)

	written, skipped, err := t.run(ctx)
	if err != nil {
		op.EndWithError(ctx, err)
		return err
	}

	op.End(ctx, "written", len(written), "skipped", skipped)

	if t.notifier != nil && len(written) > 0 {
		if allStylesheets(written) {
			t.notifier.Inject(written...)
		} else {
			t.notifier.Reload(written...)
		}
	}
	return nil
}

func (t *Task) run(ctx context.Context) ([]string, int, error) {
	matches, err := glob.ResolveWithBase(t.base, t.sources...)
	if err != nil {
		return nil, 0, errors.NewIOError(errors.ErrCodeGlobFailed, "cannot resolve sources", err).WithTask(t.name)
	}

	assets := make([]*Asset, 0, len(matches))
	skipped := 0
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		if t.filter != nil {
			ok, err := t.filter.ShouldProcess(m)
			if err != nil {
				return nil, 0, errors.NewIOError(errors.ErrCodeReadFailed, "cannot compare with output", err).
					WithTask(t.name).WithPath(m.Path)
			}
			if !ok {
				skipped++
				continue
			}
		}

		asset, err := readAsset(m)
		if err != nil {
			return nil, 0, errors.NewIOError(errors.ErrCodeReadFailed, "cannot read source", err).
				WithTask(t.name).WithPath(m.Path)
		}
		assets = append(assets, asset)
	}

	if len(assets) == 0 {
		t.logger.Debug(ctx, "No sources to process", "task", t.name, "skipped", skipped)
		return nil, skipped, nil
	}

	out, err := Fold(ctx, t.chain, assets)
	if err != nil {
		return nil, 0, withTask(err, t.name)
	}

	written := make([]string, 0, len(out))
	producedBy := make(map[string]string, len(out))
	for _, asset := range out {
		target := filepath.Join(t.dest, asset.Path)
		if prev, ok := producedBy[target]; ok {
			t.logger.Warn(ctx, nil, "Output overwritten by another source",
				"task", t.name, "output", target, "source", asset.Source, "previous", prev)
		}
		producedBy[target] = asset.Source
		if err := writeFile(target, asset.Contents); err != nil {
			return written, 0, errors.NewIOError(errors.ErrCodeWriteFailed, "cannot write output", err).
				WithTask(t.name).WithPath(target)
		}
		written = append(written, target)
	}

	return written, skipped, nil
}

func readAsset(m glob.Match) (*Asset, error) {
	info, err := os.Stat(m.Path)
	if err != nil {
		return nil, err
	}
	contents, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, err
	}
	return &Asset{
		Path:     m.Rel(),
		Source:   m.Path,
		Contents: contents,
		ModTime:  info.ModTime(),
	}, nil
}

func writeFile(target string, contents []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	return os.WriteFile(target, contents, 0644)
}

func allStylesheets(paths []string) bool {
	for _, p := range paths {
		if !strings.EqualFold(filepath.Ext(p), ".css") {
			return false
		}
	}
	return true
}

func withTask(err error, task string) error {
	if isContextErr(err) {
		return err
	}
	return errors.Wrap(err, errors.ErrCodeStageFailed, fmt.Sprintf("task %s failed", task)).WithTask(task)
}
