// Package hooks implements the post-run hook runner: after a successful
// commit, the orchestrator's finalize phase invokes every `hooks.post`
// command in order, stopping and logging at the first failure.
package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog/log"

	"github.com/kilnbuild/kiln/internal/config"
)

// Runner executes the configured `hooks.post` commands in sequence.
type Runner struct {
	// Dir is the working directory each hook command runs in; empty
	// uses the process's own working directory.
	Dir string
}

// New returns a Runner rooted at dir.
func New(dir string) *Runner {
	return &Runner{Dir: dir}
}

// Run executes every hook in order, stopping at the first failure. A
// hook's stdout and stderr are captured and logged on failure so the
// operator can see what went wrong without re-running the command by
// hand.
func (r *Runner) Run(ctx context.Context, posts []config.HookConfig) error {
	for i, h := range posts {
		if err := ctx.Err(); err != nil {
			return err
		}

		log.Info().Int("index", i).Str("cmd", h.Cmd).Str("help", h.Help).Msg("hooks: running post-build hook")

		cmd := exec.CommandContext(ctx, "sh", "-c", h.Cmd)
		cmd.Dir = r.Dir

		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		if err := cmd.Run(); err != nil {
			log.Error().
				Int("index", i).
				Str("cmd", h.Cmd).
				Str("output", out.String()).
				Err(err).
				Msg("hooks: post-build hook failed")
			return fmt.Errorf("hooks: %q: %w", h.Cmd, err)
		}

		log.Debug().Int("index", i).Str("cmd", h.Cmd).Str("output", out.String()).Msg("hooks: post-build hook succeeded")
	}
	return nil
}
