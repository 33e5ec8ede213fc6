package cmd

import (
	"github.com/conneroisu/assetflow/internal/tasks"
	"github.com/spf13/cobra"
)

// taskCommands are the subcommands that run one registered task each.
var taskCommands = []struct {
	name    string
	aliases []string
	short   string
	long    string
}{
	{
		name:  tasks.Styles,
		short: "Compile SCSS into the minified stylesheet",
		long: `Prefix each stylesheet source for the configured browsers, join them into
one bundle and compile it with the SCSS compiler into app/css/styles.min.css.`,
	},
	{
		name:  tasks.Scripts,
		short: "Bundle and minify JavaScript",
		long:  `Join the script sources and minify them into app/js/main.min.js.`,
	},
	{
		name:  tasks.Images,
		short: "Encode AVIF and WebP variants and recompress images",
		long: `Encode every raster image under app/images/src as AVIF and WebP and write a
recompressed copy of the original. Outputs newer than their source are
skipped, checked separately for each format.`,
	},
	{
		name:  tasks.Sprite,
		short: "Build the SVG sprite",
		long: `Combine every SVG under app/images/src into app/images/sprite.svg and write
an example page listing each symbol to app/images/stack/.`,
	},
	{
		name:  tasks.Fonts,
		short: "Convert fonts to woff, ttf and woff2",
		long: `Convert every font under app/fonts/src into woff and ttf, then convert the
ttf files into woff2.`,
	},
	{
		name:    tasks.HTMLInclude,
		aliases: []string{"includeHtmls"},
		short:   "Resolve HTML include directives",
		long: `Expand the <!--=include file --> and <!--=require file --> directives of
every page under app/pages and write the results to app/.`,
	},
	{
		name:    tasks.Watch,
		aliases: []string{"watching"},
		short:   "Serve app/ with live reload and rebuild on change",
	},
	{
		name:    tasks.Copy,
		aliases: []string{"building"},
		short:   "Copy the final artifacts from app/ into dist/",
	},
	{
		name:  tasks.Clean,
		short: "Remove dist/",
	},
	{
		name:  tasks.Build,
		short: "Clean, regenerate every asset and assemble dist/",
		long: `Remove dist/, run styles, scripts, images, sprite, fonts and html-include
concurrently, then copy the results into dist/.`,
	},
	{
		name:  tasks.Default,
		short: "Build every asset, then serve and watch",
		long: `Run styles, images, scripts, sprite and html-include concurrently with the
watch task, so the preview server comes up while the first build runs.`,
	},
	{
		name:    tasks.Browse,
		aliases: []string{"browsing"},
		short:   "Reserved, does nothing",
	},
}

func newTaskCommand(name string, aliases []string, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:     name,
		Aliases: aliases,
		Short:   short,
		Long:    long,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(cmd, name)
		},
	}
}

func init() {
	for _, tc := range taskCommands {
		rootCmd.AddCommand(newTaskCommand(tc.name, tc.aliases, tc.short, tc.long))
	}
}
