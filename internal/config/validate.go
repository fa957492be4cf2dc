package config

import (
	"fmt"
	"strings"
)

// validate checks the Config for invalid or out-of-range values. It
// returns a combined error listing every failing field at once.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Site.Root == "" {
		errs = append(errs, "site.root must not be empty")
	}
	if cfg.Site.OutputPath == "" {
		errs = append(errs, "site.output_path must not be empty")
	}
	if cfg.Site.DataDir == "" {
		errs = append(errs, "site.data_dir must not be empty")
	}
	for i, h := range cfg.Hooks.Post {
		if strings.TrimSpace(h.Cmd) == "" {
			errs = append(errs, fmt.Sprintf("hooks.post[%d].cmd must not be empty", i))
		}
	}

	if !isValidEnum(cfg.Log.Level, ValidLogLevels) {
		errs = append(errs, fmt.Sprintf("log.level must be one of %v, got %q", ValidLogLevels, cfg.Log.Level))
	}

	if cfg.Tracing.Enabled && !isValidEnum(cfg.Tracing.Exporter, ValidTracingExporters) {
		errs = append(errs, fmt.Sprintf("tracing.exporter must be one of %v, got %q", ValidTracingExporters, cfg.Tracing.Exporter))
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %f", cfg.Tracing.SampleRate))
	}
	if cfg.Tracing.Enabled && (cfg.Tracing.Exporter == "otlp-grpc" || cfg.Tracing.Exporter == "otlp-http") && cfg.Tracing.Endpoint == "" {
		errs = append(errs, fmt.Sprintf("tracing.endpoint must be set when tracing.exporter is %q", cfg.Tracing.Exporter))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isValidEnum returns true if val is in the allowed list (case-insensitive).
func isValidEnum(val string, allowed []string) bool {
	lower := strings.ToLower(val)
	for _, a := range allowed {
		if strings.ToLower(a) == lower {
			return true
		}
	}
	return false
}
