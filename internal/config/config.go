// Package config provides configuration management for assetflow using
// Viper for flexible loading from files, environment variables, and
// command-line flags.
//
// The configuration covers the source/output directory layout, the preview
// server, the watcher debounce window, per-task options (stylesheet sources,
// bundle names, image quality) and the argv templates used to invoke the
// external converters. Environment overrides use the ASSETFLOW_ prefix.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/assetflow/internal/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Paths   PathsConfig   `yaml:"paths" mapstructure:"paths"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Watch   WatchConfig   `yaml:"watch" mapstructure:"watch"`
	Styles  StylesConfig  `yaml:"styles" mapstructure:"styles"`
	Scripts ScriptsConfig `yaml:"scripts" mapstructure:"scripts"`
	Images  ImagesConfig  `yaml:"images" mapstructure:"images"`
	Tools   ToolsConfig   `yaml:"tools" mapstructure:"tools"`
}

type PathsConfig struct {
	App  string `yaml:"app" mapstructure:"app"`
	Dist string `yaml:"dist" mapstructure:"dist"`
}

type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	Open bool   `yaml:"open" mapstructure:"open"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

type StylesConfig struct {
	Sources  []string `yaml:"sources" mapstructure:"sources"`
	Bundle   string   `yaml:"bundle" mapstructure:"bundle"`
	Browsers []string `yaml:"browsers" mapstructure:"browsers"`
}

type ScriptsConfig struct {
	Sources []string `yaml:"sources" mapstructure:"sources"`
	Bundle  string   `yaml:"bundle" mapstructure:"bundle"`
}

type ImagesConfig struct {
	AVIFQuality int `yaml:"avif_quality" mapstructure:"avif_quality"`
	JPEGQuality int `yaml:"jpeg_quality" mapstructure:"jpeg_quality"`
}

// ToolsConfig holds argv templates for the external converters. Templates
// may reference {in}, {out}, {quality}, {browsers} and {loadpath}.
type ToolsConfig struct {
	Prefix []string `yaml:"prefix" mapstructure:"prefix"`
	Sass   []string `yaml:"sass" mapstructure:"sass"`
	AVIF   []string `yaml:"avif" mapstructure:"avif"`
	WebP   []string `yaml:"webp" mapstructure:"webp"`
	WOFF   []string `yaml:"woff" mapstructure:"woff"`
	TTF    []string `yaml:"ttf" mapstructure:"ttf"`
	WOFF2  []string `yaml:"woff2" mapstructure:"woff2"`
}

// Load reads the configuration currently held by Viper, applies defaults and
// validates the result.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with every default applied, rooted at the
// conventional app/ and dist/ directories.
func Default() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

// WithRoot returns a copy of the configuration with the app and dist
// directories moved under root. Tests use it to build fixtures in a temp dir.
func (c *Config) WithRoot(root string) *Config {
	clone := *c
	clone.Paths.App = filepath.Join(root, c.Paths.App)
	clone.Paths.Dist = filepath.Join(root, c.Paths.Dist)
	return &clone
}

// App joins parts onto the app directory.
func (c *Config) App(parts ...string) string {
	return filepath.Join(append([]string{c.Paths.App}, parts...)...)
}

// Dist joins parts onto the dist directory.
func (c *Config) Dist(parts ...string) string {
	return filepath.Join(append([]string{c.Paths.Dist}, parts...)...)
}

func applyDefaults(config *Config) {
	if config.Paths.App == "" {
		config.Paths.App = "app"
	}
	if config.Paths.Dist == "" {
		config.Paths.Dist = "dist"
	}

	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 3000
	}

	if config.Watch.Debounce <= 0 {
		config.Watch.Debounce = 300 * time.Millisecond
	}

	if len(config.Styles.Sources) == 0 {
		config.Styles.Sources = []string{"scss/stylesReset.scss", "scss/styles.scss"}
	}
	if config.Styles.Bundle == "" {
		config.Styles.Bundle = "styles.min.css"
	}
	if len(config.Styles.Browsers) == 0 {
		config.Styles.Browsers = []string{"last 10 versions"}
	}

	if len(config.Scripts.Sources) == 0 {
		config.Scripts.Sources = []string{"js/main.js"}
	}
	if config.Scripts.Bundle == "" {
		config.Scripts.Bundle = "main.min.js"
	}

	if config.Images.AVIFQuality == 0 {
		config.Images.AVIFQuality = 50
	}
	if config.Images.JPEGQuality == 0 {
		config.Images.JPEGQuality = 75
	}

	if len(config.Tools.Prefix) == 0 {
		config.Tools.Prefix = []string{"npx", "postcss", "--no-map", "--syntax", "postcss-scss", "--use", "autoprefixer"}
	}
	if len(config.Tools.Sass) == 0 {
		config.Tools.Sass = []string{"sass", "--stdin", "--style=compressed", "--no-source-map", "--load-path={loadpath}"}
	}
	if len(config.Tools.AVIF) == 0 {
		config.Tools.AVIF = []string{"avifenc", "-q", "{quality}", "{in}", "{out}"}
	}
	if len(config.Tools.WebP) == 0 {
		config.Tools.WebP = []string{"cwebp", "-quiet", "{in}", "-o", "{out}"}
	}
	if len(config.Tools.WOFF) == 0 {
		config.Tools.WOFF = []string{"fonttools", "ttLib", "--flavor", "woff", "-o", "{out}", "{in}"}
	}
	if len(config.Tools.TTF) == 0 {
		config.Tools.TTF = []string{"fonttools", "ttLib", "-o", "{out}", "{in}"}
	}
	if len(config.Tools.WOFF2) == 0 {
		config.Tools.WOFF2 = []string{"fonttools", "ttLib", "--flavor", "woff2", "-o", "{out}", "{in}"}
	}
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validatePath(config.Paths.App); err != nil {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("paths.app: %v", err))
	}
	if err := validatePath(config.Paths.Dist); err != nil {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("paths.dist: %v", err))
	}
	if filepath.Clean(config.Paths.App) == filepath.Clean(config.Paths.Dist) {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "paths.dist must differ from paths.app")
	}

	// Allow 0 for system-assigned ports in testing
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("server.port %d is not in valid range 0-65535", config.Server.Port))
	}

	for _, src := range append(append([]string{}, config.Styles.Sources...), config.Scripts.Sources...) {
		if err := validatePath(src); err != nil {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("source %q: %v", src, err))
		}
	}

	if config.Images.AVIFQuality < 0 || config.Images.AVIFQuality > 100 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "images.avif_quality must be within 0-100")
	}
	if config.Images.JPEGQuality < 1 || config.Images.JPEGQuality > 100 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "images.jpeg_quality must be within 1-100")
	}

	tools := map[string][]string{
		"prefix": config.Tools.Prefix,
		"sass":   config.Tools.Sass,
		"avif":   config.Tools.AVIF,
		"webp":   config.Tools.WebP,
		"woff":   config.Tools.WOFF,
		"ttf":    config.Tools.TTF,
		"woff2":  config.Tools.WOFF2,
	}
	for name, argv := range tools {
		if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("tools.%s needs a command", name))
		}
	}

	return nil
}

// validatePath validates a configured path
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	for _, segment := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if segment == ".." {
			return fmt.Errorf("path contains traversal: %s", path)
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
