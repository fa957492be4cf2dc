package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/kilnbuild/kiln/internal/buildtrace"
	"github.com/kilnbuild/kiln/internal/config"
	"github.com/kilnbuild/kiln/internal/hooks"
	"github.com/kilnbuild/kiln/internal/orchestrator"
	"github.com/kilnbuild/kiln/internal/version"
)

// runBuild implements the `kiln build` (default) subcommand: load
// config, run one full orchestrator pass, and exit non-zero if any
// item failed.
func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	clean := fs.Bool("clean", false, "wipe the fingerprint store and output tree before building")
	configPath := fs.String("config", "", "path to an explicit configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	shutdownTracing, err := buildtrace.Init(context.Background(), version.Version,
		tracingExporter(cfg), cfg.Tracing.Endpoint, cfg.Tracing.SampleRate, cfg.Tracing.Insecure)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error setting up tracing: %v\n", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := orchestrator.Run(ctx, cfg, *clean, orchestrator.Deps{
		Hooks: hooks.New(cfg.Site.Root),
	})
	if err != nil {
		log.Error().Err(err).Msg("build failed")
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(os.Stderr, "build completed with %d item error(s):\n", len(result.Errors))
		for _, itemErr := range result.Errors {
			fmt.Fprintf(os.Stderr, "  %s\n", itemErr.Error())
		}
		os.Exit(1)
	}

	fmt.Printf("build complete: %d item(s) rebuilt\n", len(result.EffectiveSet))
}

// tracingExporter returns the configured exporter name, or "none" when
// tracing is disabled entirely.
func tracingExporter(cfg *config.Config) string {
	if !cfg.Tracing.Enabled {
		return "none"
	}
	return cfg.Tracing.Exporter
}
