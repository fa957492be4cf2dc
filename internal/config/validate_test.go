package config

import "testing"

func TestValidate_DefaultConfigIsValid(t *testing.T) {
	if err := validate(DefaultConfig()); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidate_EmptyRootFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Site.Root = ""
	if err := validate(cfg); err == nil {
		t.Fatal("expected an error for empty site.root")
	}
}

func TestValidate_EmptyHookCmdFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hooks.Post = []HookConfig{{Cmd: "  ", Help: "noop"}}
	if err := validate(cfg); err == nil {
		t.Fatal("expected an error for a blank hooks.post cmd")
	}
}

func TestValidate_UnknownLogLevelFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "verbose"
	if err := validate(cfg); err == nil {
		t.Fatal("expected an error for an unrecognized log.level")
	}
}

func TestValidate_TracingEndpointRequiredForOTLP(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "otlp-grpc"
	cfg.Tracing.Endpoint = ""
	if err := validate(cfg); err == nil {
		t.Fatal("expected an error for a missing otlp endpoint")
	}
}

func TestValidate_SampleRateOutOfRangeFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracing.SampleRate = 1.5
	if err := validate(cfg); err == nil {
		t.Fatal("expected an error for an out-of-range sample rate")
	}
}
