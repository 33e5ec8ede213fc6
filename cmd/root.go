// Package cmd provides the command-line interface for assetflow.
//
// Configuration System:
//
//	Settings are resolved from several sources, highest priority first:
//	1. Command-line flags (--port, --app, ...)
//	2. Individual environment variables (ASSETFLOW_SERVER_PORT, ...)
//	3. The configuration file named by --config or ASSETFLOW_CONFIG_FILE
//	4. .assetflow.yml in the working directory
//	5. Built-in defaults
//
// Environment Variables:
//
//	ASSETFLOW_CONFIG_FILE: Path to a custom configuration file
//	ASSETFLOW_SERVER_PORT: Override the preview server port
//	ASSETFLOW_PATHS_DIST: Override the output directory
//	And the rest following the ASSETFLOW_<SECTION>_<OPTION> pattern
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/conneroisu/assetflow/internal/config"
	"github.com/conneroisu/assetflow/internal/logging"
	"github.com/conneroisu/assetflow/internal/tasks"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// configErr holds a read failure of an explicitly named or malformed
	// configuration file until a command loads the configuration.
	configErr error
)

// rootCmd runs the default task when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "assetflow",
	Short: "Build, watch and serve the assets of a static site",
	Long: `assetflow compiles the sources under app/ into the assets a static site
ships: SCSS into one minified stylesheet, JavaScript into one bundle, images
into AVIF/WebP plus recompressed originals, SVG icons into a sprite, fonts
into woff/ttf/woff2 and pages with their HTML includes resolved.

Without a subcommand it generates everything, then serves app/ with live
reload and rebuilds whatever changes.

Quick Start:
  assetflow                 Generate, serve and watch
  assetflow build           Clean dist/ and assemble a fresh build
  assetflow tasks           List every task and how they compose

Command Aliases:
  html-include (includeHtmls), watch (watching), copy (building), browse (browsing)`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTask(cmd, tasks.Default)
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running
// tasks and stop the watch session.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .assetflow.yml, can also use ASSETFLOW_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	AddStandardFlags(rootCmd, "paths", "server")

	AddFlagValidation(rootCmd, "log-format", func(format string) error {
		return ValidateFormat(format, []string{"text", "json"})
	})
}

// initConfig points Viper at the configuration file and binds the
// persistent flags.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag
//  2. ASSETFLOW_CONFIG_FILE environment variable
//  3. .assetflow.yml in the current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("ASSETFLOW_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".assetflow")
	}

	viper.SetEnvPrefix("ASSETFLOW")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	BindViperFlags(rootCmd, map[string]string{
		"log-level":  "log-level",
		"log-format": "log-format",
		"app":        "paths.app",
		"dist":       "paths.dist",
		"host":       "server.host",
		"port":       "server.port",
		"open":       "server.open",
	})

	configErr = nil
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			configErr = err
		}
		return
	}
	fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
}

func loadConfig() (*config.Config, error) {
	if configErr != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", configErr)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(out io.Writer) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(viper.GetString("log-level")),
		Format: viper.GetString("log-format"),
		Output: out,
	})
}

// runTask loads the configuration and runs one named task, logging how long
// it took.
func runTask(cmd *cobra.Command, name string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := newLogger(cmd.ErrOrStderr()).WithComponent("cli")
	registry := tasks.New(cfg, logger)

	op := logging.StartOperation(logger, name)
	if err := registry.Run(ctx, name); err != nil {
		op.EndWithError(ctx, err)
		return err
	}
	op.End(ctx)
	return nil
}
