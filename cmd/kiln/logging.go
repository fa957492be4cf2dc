package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kilnbuild/kiln/internal/config"
)

// setupLogging configures the global zerolog logger: always to a log
// file under the site's data directory, and additionally to a
// console-formatted stdout writer for foreground runs.
func setupLogging(cfg *config.Config) (func() error, error) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	writers := []io.Writer{}

	logPath := cfg.Log.File
	if logPath == "" {
		logPath = filepath.Join(cfg.Site.DataDir, "kiln.log")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file %s: %w", logPath, err)
	}
	writers = append(writers, logFile)

	if cfg.Log.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	}

	multi := zerolog.MultiLevelWriter(writers...)
	log.Logger = zerolog.New(multi).With().Timestamp().Str("service", "kiln").Logger()

	return logFile.Close, nil
}
