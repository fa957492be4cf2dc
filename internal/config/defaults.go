package config

// DefaultStoreFilename is the fingerprint database's filename within
// SiteConfig.DataDir.
const DefaultStoreFilename = "site.db"

// DefaultConfigFilename is the name of the config file.
const DefaultConfigFilename = "kiln.toml"

const (
	DefaultSiteRoot          = "."
	DefaultOutputPath        = "dist"
	DefaultDataDir           = "."
	DefaultSyntaxTheme       = "github"
	DefaultTemplateExtension = ".tmpl.html"
)

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// ValidLogLevels lists the allowed log level values.
var ValidLogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal"}

// DefaultTracingExporter is the default tracing exporter type.
const DefaultTracingExporter = "none"

// DefaultTracingSampleRate is the default sampling rate (1.0 = 100%).
const DefaultTracingSampleRate = 1.0

// ValidTracingExporters lists the allowed tracing exporter values.
var ValidTracingExporters = []string{"none", "stdout", "otlp-grpc", "otlp-http"}

// DefaultIgnorePatterns are doublestar glob patterns excluded from
// discovery by default: VCS metadata, dependency directories, and
// kiln's own working files (config, log, store sidecars), which live
// in the site root under the default layout and must never be
// published.
var DefaultIgnorePatterns = []string{
	".git/**",
	"node_modules/**",
	"*.kiln-tmp-*",
	"kiln.toml",
	"kiln.log",
	"kiln.lock",
	"site.db*",
}

// DefaultConfig returns a Config populated with every built-in default:
// a complete, valid configuration usable with no file on disk at all.
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			URL:               "",
			Root:              DefaultSiteRoot,
			OutputPath:        DefaultOutputPath,
			Development:       false,
			SyntaxTheme:       DefaultSyntaxTheme,
			SyntaxThemePath:   "",
			IgnorePatterns:    append([]string(nil), DefaultIgnorePatterns...),
			TemplateExtension: DefaultTemplateExtension,
			DataDir:           DefaultDataDir,
		},
		Hooks: HooksConfig{
			Post: nil,
		},
		Log: LogConfig{
			Level:   DefaultLogLevel,
			File:    "",
			Console: true,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   DefaultTracingExporter,
			Endpoint:   "",
			SampleRate: DefaultTracingSampleRate,
			Insecure:   false,
		},
	}
}
