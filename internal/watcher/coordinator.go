package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/assetflow/internal/glob"
	"github.com/conneroisu/assetflow/internal/logging"
	"github.com/conneroisu/assetflow/internal/pipeline"
)

// Binding maps watched paths to the runner that rebuilds them. A binding
// without a runner only asks connected browsers to reload.
type Binding struct {
	Paths  []string
	Runner pipeline.Runner
}

// Name identifies the binding in logs.
func (b Binding) Name() string {
	if b.Runner == nil {
		return "reload"
	}
	return b.Runner.Name()
}

// Coordinator owns a FileWatcher and dispatches every debounced batch to the
// bindings whose paths it touches. Each matching binding runs once per batch
// regardless of how many of its files changed.
type Coordinator struct {
	watcher  *FileWatcher
	bindings []Binding
	notifier pipeline.Notifier
	logger   logging.Logger
}

// NewCoordinator creates a coordinator. The notifier receives reload
// requests from reload-only bindings and may be nil.
func NewCoordinator(debounce time.Duration, notifier pipeline.Notifier, logger logging.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	fw, err := NewFileWatcher(debounce, logger)
	if err != nil {
		return nil, err
	}
	fw.AddFilter(NoGitFilter)
	fw.AddFilter(NoEditorTempFilter)

	return &Coordinator{
		watcher:  fw,
		notifier: notifier,
		logger:   logger.WithComponent("watch"),
	}, nil
}

// Bind runs r whenever a file under paths changes. Paths may be files,
// directories or glob patterns.
func (c *Coordinator) Bind(paths []string, r pipeline.Runner) {
	c.bindings = append(c.bindings, Binding{Paths: absolutePatterns(paths), Runner: r})
}

// BindReload reloads the browser whenever a file under paths changes.
func (c *Coordinator) BindReload(paths []string) {
	c.bindings = append(c.bindings, Binding{Paths: absolutePatterns(paths)})
}

// Bindings returns the registered bindings in registration order.
func (c *Coordinator) Bindings() []Binding {
	return c.bindings
}

// Run watches until ctx is cancelled. Task failures are logged and do not
// end the session.
func (c *Coordinator) Run(ctx context.Context) error {
	for _, b := range c.bindings {
		for _, p := range b.Paths {
			if err := c.watch(p); err != nil {
				c.logger.Warn(ctx, err, "Cannot watch path", "path", p, "binding", b.Name())
			}
		}
	}

	c.watcher.AddHandler(c.Dispatch)
	if err := c.watcher.Start(ctx); err != nil {
		return err
	}
	c.logger.Info(ctx, "Watching for changes", "bindings", len(c.bindings), "directories", len(c.watcher.WatchList()))

	<-ctx.Done()
	return c.watcher.Stop()
}

func (c *Coordinator) watch(p string) error {
	if glob.HasMeta(p) {
		root, rest := glob.Split(p)
		if strings.Contains(rest, "**") {
			return c.watcher.AddRecursive(filepath.FromSlash(root))
		}
		return c.watcher.AddPath(filepath.FromSlash(root))
	}

	info, err := os.Stat(p)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return c.watcher.AddRecursive(p)
	}
	// Editors often replace files on save, so watch the directory.
	return c.watcher.AddPath(filepath.Dir(p))
}

// Dispatch runs every binding touched by events, in registration order.
func (c *Coordinator) Dispatch(ctx context.Context, events []ChangeEvent) error {
	for _, b := range c.bindings {
		matched := b.match(events)
		if len(matched) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if b.Runner == nil {
			c.logger.Debug(ctx, "Reloading browsers", "paths", matched)
			if c.notifier != nil {
				c.notifier.Reload(matched...)
			}
			continue
		}

		c.logger.Info(ctx, "Change detected", "task", b.Runner.Name(), "files", len(matched))
		if err := b.Runner.Run(ctx); err != nil {
			c.logger.Error(ctx, err, "Task failed, still watching", "task", b.Runner.Name())
		}
	}
	return nil
}

func (b Binding) match(events []ChangeEvent) []string {
	var matched []string
	for _, e := range events {
		for _, p := range b.Paths {
			if glob.MatchPath(p, e.Path) {
				matched = append(matched, e.Path)
				break
			}
		}
	}
	return matched
}

func absolutePatterns(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		out = append(out, p)
	}
	return out
}
