package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kilnbuild/kiln/internal/config"
	"github.com/kilnbuild/kiln/internal/devserver"
	"github.com/kilnbuild/kiln/internal/hooks"
	"github.com/kilnbuild/kiln/internal/orchestrator"
)

// runServe implements `kiln serve`: run one full build, then serve the
// output tree over HTTP until interrupted. There is no watch-mode
// rebuild loop; a live-reload dev loop is a separate external tool.
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	clean := fs.Bool("clean", false, "wipe the fingerprint store and output tree before building")
	configPath := fs.String("config", "", "path to an explicit configuration file")
	addr := fs.String("addr", "localhost:8080", "address to serve the built site on")
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := orchestrator.Run(ctx, cfg, *clean, orchestrator.Deps{
		Hooks: hooks.New(cfg.Site.Root),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(os.Stderr, "build completed with %d item error(s); serving anyway\n", len(result.Errors))
	}

	// Hot-reload the config while serving so edits to kiln.toml (log
	// level, site values) take effect without a restart. Reloads never
	// rebuild by themselves; the next `kiln build` picks them up.
	if cf := config.ConfigFilePath(); cf != "" {
		watcher, werr := config.Watch(cf)
		if werr != nil {
			log.Warn().Err(werr).Msg("config watcher unavailable")
		} else {
			defer watcher.Close()
			watcher.OnChange(func(old, new *config.Config) {
				if old.Log.Level == new.Log.Level {
					return
				}
				if level, perr := zerolog.ParseLevel(new.Log.Level); perr == nil {
					zerolog.SetGlobalLevel(level)
					log.Info().Str("level", new.Log.Level).Msg("log level updated")
				}
			})
		}
	}

	srv := devserver.NewServer(cfg.Site.OutputPath, *addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("devserver: shutdown error")
		}
	}()

	fmt.Printf("serving %s on http://%s\n", cfg.Site.OutputPath, *addr)
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "serve failed: %v\n", err)
		os.Exit(1)
	}
}
