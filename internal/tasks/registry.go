// Package tasks wires the configured project layout into named runners: one
// per asset class, the clean and copy steps, and the composed build,
// default and watch entry points.
package tasks

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/conneroisu/assetflow/internal/config"
	"github.com/conneroisu/assetflow/internal/errors"
	"github.com/conneroisu/assetflow/internal/logging"
	"github.com/conneroisu/assetflow/internal/pipeline"
	"github.com/conneroisu/assetflow/internal/server"
	"github.com/conneroisu/assetflow/internal/tool"
	"github.com/conneroisu/assetflow/internal/transform"
	"github.com/conneroisu/assetflow/internal/watcher"
	"github.com/sourcegraph/conc/pool"
)

// Task names.
const (
	Styles      = "styles"
	Scripts     = "scripts"
	Images      = "images"
	Sprite      = "sprite"
	Fonts       = "fonts"
	HTMLInclude = "html-include"
	Watch       = "watch"
	Copy        = "copy"
	Clean       = "clean"
	Build       = "build"
	Default     = "default"
	Browse      = "browse"
)

// Info describes a registered runner for listings.
type Info struct {
	Name        string   `json:"name" yaml:"name"`
	Aliases     []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Kind        string   `json:"kind" yaml:"kind"`
	Members     []string `json:"members,omitempty" yaml:"members,omitempty"`
	Description string   `json:"description" yaml:"description"`
}

type entry struct {
	runner      pipeline.Runner
	aliases     []string
	description string
}

// Registry holds every runner of one session. Live tasks notify the
// session's preview server, which only forwards messages while it serves.
type Registry struct {
	cfg     *config.Config
	logger  logging.Logger
	server  *server.PreviewServer
	entries map[string]*entry
	aliases map[string]string
}

// New builds the runners for cfg.
func New(cfg *config.Config, logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := &Registry{
		cfg:     cfg,
		logger:  logger,
		server:  server.New(cfg, logger),
		entries: make(map[string]*entry),
		aliases: make(map[string]string),
	}
	r.register()
	return r
}

// Server returns the session's preview server.
func (r *Registry) Server() *server.PreviewServer {
	return r.server
}

// Get resolves a task name or alias.
func (r *Registry) Get(name string) (pipeline.Runner, bool) {
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.runner, true
}

// Run executes the named runner.
func (r *Registry) Run(ctx context.Context, name string) error {
	runner, ok := r.Get(name)
	if !ok {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown task %q (known: %s)", name, strings.Join(r.Names(), ", ")))
	}
	return runner.Run(ctx)
}

// Names returns the canonical task names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List describes every runner, sorted by name.
func (r *Registry) List() []Info {
	infos := make([]Info, 0, len(r.entries))
	for _, name := range r.Names() {
		e := r.entries[name]
		info := Info{Name: name, Aliases: e.aliases, Kind: "task", Description: e.description}
		if g, ok := e.runner.(*pipeline.Group); ok {
			info.Kind = "series"
			if g.IsParallel() {
				info.Kind = "parallel"
			}
			for _, m := range g.Members() {
				info.Members = append(info.Members, m.Name())
			}
		}
		infos = append(infos, info)
	}
	return infos
}

func (r *Registry) add(runner pipeline.Runner, description string, aliases ...string) pipeline.Runner {
	r.entries[runner.Name()] = &entry{runner: runner, aliases: aliases, description: description}
	for _, a := range aliases {
		r.aliases[a] = runner.Name()
	}
	return runner
}

func (r *Registry) register() {
	styles := r.add(r.styles(), "Prefix, bundle and compile SCSS into the minified stylesheet")
	scripts := r.add(r.scripts(), "Bundle and minify JavaScript")
	images := r.add(r.images(), "Encode AVIF and WebP variants and recompress source images")
	sprite := r.add(r.sprite(), "Build the stack SVG sprite and its example page")
	fonts := r.add(r.fonts(), "Convert source fonts to woff and ttf, then ttf to woff2")
	htmlInclude := r.add(r.htmlInclude(), "Resolve HTML include directives in pages", "includeHtmls")
	clean := r.add(r.clean(), "Remove the dist directory")
	cp := r.add(r.copy(), "Copy final artifacts from app into dist", "building")
	watch := r.add(r.watch(styles, scripts, images, htmlInclude), "Serve app with live reload and rebuild on change", "watching")

	r.add(pipeline.Series(Build,
		clean,
		pipeline.Parallel("generate", styles, scripts, images, sprite, fonts, htmlInclude),
		cp,
	), "Clean, regenerate every asset and assemble dist")
	r.add(pipeline.Parallel(Default, styles, images, scripts, sprite, htmlInclude, watch),
		"Generate assets, then serve and watch")
	r.add(pipeline.Noop(Browse), "Reserved, does nothing", "browsing")
}

func (r *Registry) task(name string, sources []string, dest string, chain ...pipeline.Stage) *pipeline.Task {
	return pipeline.NewTask(name, sources, dest, chain...).WithLogger(r.logger)
}

func (r *Registry) styles() pipeline.Runner {
	tools := r.cfg.Tools
	browsers := strings.Join(r.cfg.Styles.Browsers, ", ")
	prefix := tool.New("prefix", tools.Prefix, "BROWSERSLIST="+browsers)
	sass := tool.New("sass", tools.Sass)

	sources := make([]string, 0, len(r.cfg.Styles.Sources))
	for _, s := range r.cfg.Styles.Sources {
		sources = append(sources, r.cfg.App(s))
	}

	return r.task(Styles, sources, r.cfg.App("css"),
		transform.Filter("prefix", prefix, tool.Vars{"browsers": browsers}),
		transform.Concat(r.cfg.Styles.Bundle),
		transform.Filter("sass", sass, tool.Vars{"loadpath": r.cfg.App("scss")}),
	).Live(r.server)
}

func (r *Registry) scripts() pipeline.Runner {
	sources := make([]string, 0, len(r.cfg.Scripts.Sources))
	for _, s := range r.cfg.Scripts.Sources {
		sources = append(sources, r.cfg.App(s))
	}

	return r.task(Scripts, sources, r.cfg.App("js"),
		transform.Concat(r.cfg.Scripts.Bundle),
		transform.MinifyJS(),
	).Live(r.server)
}

// images runs three passes over the same sources; each pass checks its own
// output so an up to date AVIF never suppresses a stale WebP.
func (r *Registry) images() pipeline.Runner {
	sources := []string{r.cfg.App("images", "src", "*.*"), "!" + r.cfg.App("images", "src", "*.svg")}
	dest := r.cfg.App("images")
	vars := tool.Vars{"quality": strconv.Itoa(r.cfg.Images.AVIFQuality)}

	avif := r.task("images:avif", sources, dest,
		transform.Convert("avif", tool.New("avif", r.cfg.Tools.AVIF), ".avif", vars),
	).WithFilter(pipeline.NewNewer(dest, ".avif"))

	webp := r.task("images:webp", sources, dest,
		transform.Convert("webp", tool.New("webp", r.cfg.Tools.WebP), ".webp", vars),
	).WithFilter(pipeline.NewNewer(dest, ".webp"))

	compress := r.task("images:compress", sources, dest,
		transform.Compress(r.cfg.Images.JPEGQuality),
	).WithFilter(pipeline.NewNewer(dest, ""))

	return pipeline.Series(Images, avif, webp, compress)
}

func (r *Registry) sprite() pipeline.Runner {
	return r.task(Sprite, []string{r.cfg.App("images", "src", "*.svg")}, r.cfg.App("images"), transform.Sprite())
}

// fonts converts in two dependent phases: the woff2 pass reads the ttf files
// the first phase wrote.
func (r *Registry) fonts() pipeline.Runner {
	dest := r.cfg.App("fonts")
	tools := r.cfg.Tools

	convert := r.task("fonts:convert", []string{r.cfg.App("fonts", "src", "*.*")}, dest,
		transform.Branch("convert",
			transform.Convert("woff", tool.New("woff", tools.WOFF), ".woff", nil),
			transform.Convert("ttf", tool.New("ttf", tools.TTF), ".ttf", nil),
		),
	)
	woff2 := r.task("fonts:woff2", []string{r.cfg.App("fonts", "*.ttf")}, dest,
		transform.Convert("woff2", tool.New("woff2", tools.WOFF2), ".woff2", nil),
	)

	return pipeline.Series(Fonts, convert, woff2)
}

func (r *Registry) htmlInclude() pipeline.Runner {
	return r.task(HTMLInclude, []string{r.cfg.App("pages", "*.html")}, r.cfg.App(),
		transform.Include(r.cfg.App("components")),
	).Live(r.server)
}

func (r *Registry) clean() pipeline.Runner {
	return pipeline.Func(Clean, func(ctx context.Context) error {
		dist := r.cfg.Dist()
		if err := os.RemoveAll(dist); err != nil {
			return errors.NewIOError(errors.ErrCodeRemoveFailed, "cannot remove output directory", err).
				WithTask(Clean).WithPath(dist)
		}
		r.logger.Info(ctx, "Removed output directory", "task", Clean, "path", dist)
		return nil
	})
}

// CopySources lists the artifacts copied into dist, relative to app.
func (r *Registry) CopySources() []string {
	app := r.cfg.App
	return []string{
		app("*.html"),
		app("css", r.cfg.Styles.Bundle),
		app("js", r.cfg.Scripts.Bundle),
		app("fonts", "*.*"),
		app("images", "*.*"),
		"!" + app("images", "*.svg"),
		"!" + app("images", "stack", "*.*"),
		app("images", transform.SpriteName),
	}
}

func (r *Registry) copy() pipeline.Runner {
	return r.task(Copy, r.CopySources(), r.cfg.Dist()).WithBase(r.cfg.App())
}

// watch serves the app directory and rebuilds bound tasks on change. A
// failure of either half ends the session.
func (r *Registry) watch(styles, scripts, images, htmlInclude pipeline.Runner) pipeline.Runner {
	return pipeline.Func(Watch, func(ctx context.Context) error {
		coord, err := watcher.NewCoordinator(r.cfg.Watch.Debounce, r.server, r.logger)
		if err != nil {
			return errors.NewInternalError(errors.ErrCodeInternalFailure, "cannot start file watcher", err).WithTask(Watch)
		}

		styleSources := make([]string, 0, len(r.cfg.Styles.Sources))
		for _, s := range r.cfg.Styles.Sources {
			styleSources = append(styleSources, r.cfg.App(s))
		}
		scriptSources := make([]string, 0, len(r.cfg.Scripts.Sources))
		for _, s := range r.cfg.Scripts.Sources {
			scriptSources = append(scriptSources, r.cfg.App(s))
		}

		coord.Bind(styleSources, styles)
		coord.Bind(scriptSources, scripts)
		coord.Bind([]string{r.cfg.App("images", "src")}, images)
		coord.Bind([]string{r.cfg.App("components"), r.cfg.App("pages")}, htmlInclude)
		coord.BindReload([]string{r.cfg.App("*.html")})

		p := pool.New().WithContext(ctx).WithCancelOnError()
		p.Go(r.server.Start)
		p.Go(coord.Run)
		return p.Wait()
	})
}
