package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// configPtr holds the current config for thread-safe access.
var configPtr atomic.Pointer[Config]

// loadedConfigFile stores the path of the config file used by the last successful Load.
var loadedConfigFile atomic.Value

// Get returns the current Config. It is safe for concurrent use. If no
// config has been loaded yet, it returns the default config.
func Get() *Config {
	if c := configPtr.Load(); c != nil {
		return c
	}
	d := DefaultConfig()
	configPtr.Store(d)
	return d
}

func set(cfg *Config) {
	configPtr.Store(cfg)
}

// Config is the top-level kiln configuration: everything the external
// config collaborator loads on the core's behalf.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"    toml:"site"`
	Hooks   HooksConfig   `mapstructure:"hooks"   toml:"hooks"`
	Log     LogConfig     `mapstructure:"log"     toml:"log"`
	Tracing TracingConfig `mapstructure:"tracing" toml:"tracing"`
}

// SiteConfig holds the site-level keys the core consumes read-only,
// plus a few implementation-level knobs (ignore list, templating
// extension, data directory) left to the config collaborator's
// discretion.
type SiteConfig struct {
	// URL is passed to templates; not interpreted by the core.
	URL string `mapstructure:"url" toml:"url"`
	// Root is the source-tree root for the Discoverer.
	Root string `mapstructure:"root" toml:"root"`
	// OutputPath is the destination root for the Writer.
	OutputPath string `mapstructure:"output_path" toml:"output_path"`
	// Development surfaces to templates; core behavior is unchanged by it.
	Development bool `mapstructure:"development" toml:"development"`
	// SyntaxTheme and SyntaxThemePath are forwarded to the Markdown renderer.
	SyntaxTheme     string `mapstructure:"syntax_theme"      toml:"syntax_theme"`
	SyntaxThemePath string `mapstructure:"syntax_theme_path" toml:"syntax_theme_path"`
	// IgnorePatterns are doublestar glob patterns excluded from discovery.
	IgnorePatterns []string `mapstructure:"ignore" toml:"ignore"`
	// TemplateExtension is the templating engine's recognized extension.
	TemplateExtension string `mapstructure:"template_extension" toml:"template_extension"`
	// DataDir holds the fingerprint store file and its lock file.
	DataDir string `mapstructure:"data_dir" toml:"data_dir"`
}

// HookConfig is a single `hooks.post` record: a shell command plus an
// optional human-readable description.
type HookConfig struct {
	Cmd  string `mapstructure:"cmd"  toml:"cmd"`
	Help string `mapstructure:"help" toml:"help"`
}

// HooksConfig groups the post-run hook list.
type HooksConfig struct {
	Post []HookConfig `mapstructure:"post" toml:"post"`
}

// LogConfig controls structured logging: a level plus a file/console
// multi-writer split.
type LogConfig struct {
	Level   string `mapstructure:"level"   toml:"level"`
	File    string `mapstructure:"file"    toml:"file"`
	Console bool   `mapstructure:"console" toml:"console"`
}

// TracingConfig controls OpenTelemetry tracing of build phases.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"     toml:"enabled"`
	Exporter   string  `mapstructure:"exporter"    toml:"exporter"`
	Endpoint   string  `mapstructure:"endpoint"    toml:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate" toml:"sample_rate"`
	Insecure   bool    `mapstructure:"insecure"    toml:"insecure"`
}

// StorePath returns the path of the single fingerprint database file
// under the site's data directory.
func (c *Config) StorePath() string {
	return filepath.Join(c.Site.DataDir, DefaultStoreFilename)
}

// Load reads configuration from disk with the following precedence:
//  1. Environment variables (KILN_ prefix, _ as separator)
//  2. The file at explicitPath if non-empty
//  3. ~/.kiln/kiln.toml
//  4. ./kiln.toml
//  5. Built-in defaults
//
// The loaded config is validated and stored in the global atomic pointer.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	setViperDefaults(v)

	v.SetEnvPrefix("KILN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".kiln"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("kiln")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config: %w", err)
		}
	}

	if cf := v.ConfigFileUsed(); cf != "" {
		loadedConfigFile.Store(cf)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("config: unmarshalling config: %w", err)
	}

	cfg.Site.Root = expandHome(cfg.Site.Root)
	cfg.Site.OutputPath = expandHome(cfg.Site.OutputPath)
	cfg.Site.DataDir = expandHome(cfg.Site.DataDir)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	set(cfg)
	return cfg, nil
}

// InitConfig writes the default configuration file to path. If the file
// already exists it is not overwritten.
func InitConfig(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: creating config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists: %s\n", path)
		return nil
	}

	cfg := DefaultConfig()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshalling default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing config: %w", err)
	}

	fmt.Printf("Config written to %s\n", path)
	return nil
}

// ExportConfig writes the current config to path in TOML format.
func ExportConfig(path string) error {
	cfg := Get()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing config: %w", err)
	}
	return nil
}

// ConfigFilePath returns the path of the config file that was loaded, or
// empty if no file was found.
func ConfigFilePath() string {
	if v, ok := loadedConfigFile.Load().(string); ok {
		return v
	}
	return ""
}

// setViperDefaults registers every known key with viper so env var
// binding works for all fields even when no config file is present.
func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("site.url", d.Site.URL)
	v.SetDefault("site.root", d.Site.Root)
	v.SetDefault("site.output_path", d.Site.OutputPath)
	v.SetDefault("site.development", d.Site.Development)
	v.SetDefault("site.syntax_theme", d.Site.SyntaxTheme)
	v.SetDefault("site.syntax_theme_path", d.Site.SyntaxThemePath)
	v.SetDefault("site.ignore", d.Site.IgnorePatterns)
	v.SetDefault("site.template_extension", d.Site.TemplateExtension)
	v.SetDefault("site.data_dir", d.Site.DataDir)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.console", d.Log.Console)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
