// Package gitexec shells out to the real git binary. Every git operation
// protofetch needs (clone, fetch, revparse, worktree add, reset, merge-base)
// has no mature pure-Go equivalent with worktree support, so it is run the
// same way the rest of this codebase talks to git: exec.CommandContext with
// a scrubbed environment and buffered stdout/stderr.
package gitexec

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner executes git commands, each in the working directory given to
// Run, with a fixed set of extra environment variables (credentials, SSH
// options).
type Runner struct {
	log  *slog.Logger
	envs []string
}

// NewRunner builds a Runner. envs are appended to the child process's
// environment on every call; pass nil if no credential/SSH env is needed.
func NewRunner(log *slog.Logger, envs []string) *Runner {
	return &Runner{log: log, envs: envs}
}

// Run executes `git <args...>` in cwd and returns trimmed stdout.
func (r *Runner) Run(ctx context.Context, cwd string, args ...string) (string, error) {
	cmdStr := "git " + strings.Join(args, " ")
	r.log.Log(ctx, slog.LevelDebug-4, "running command", "cwd", cwd, "cmd", cmdStr)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.WaitDelay = 5 * time.Second
	if cwd != "" {
		cmd.Dir = cwd
	}

	var outbuf, errbuf bytes.Buffer
	cmd.Stdout = &outbuf
	cmd.Stderr = &errbuf

	cmd.Env = append([]string{"GIT_TERMINAL_PROMPT=0"}, r.envs...)

	start := time.Now()
	err := cmd.Run()
	runTime := time.Since(start)

	stdout := strings.TrimSpace(outbuf.String())
	stderr := strings.TrimSpace(errbuf.String())
	if ctx.Err() == context.DeadlineExceeded {
		err = ctx.Err()
	}
	if err != nil {
		return "", fmt.Errorf("git %s: %w {stdout: %q, stderr: %q}", strings.Join(args, " "), err, stdout, stderr)
	}
	r.log.Log(ctx, slog.LevelDebug-4, "command result", "stdout", stdout, "stderr", stderr, "time", runTime)
	return stdout, nil
}

// IsNotFound reports whether err looks like git's "object / ref not found"
// family of errors, as opposed to a transport or usage failure. git has no
// structured exit-code taxonomy for this, so it is a substring match on
// stderr the way command-line wrappers in this codebase already do.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unknown revision or path not in the working tree") ||
		strings.Contains(msg, "bad revision") ||
		strings.Contains(msg, "fatal: Needed a single revision") ||
		strings.Contains(msg, "fatal: ambiguous argument") ||
		strings.Contains(msg, "does not exist in") ||
		strings.Contains(msg, "exists on disk, but not in")
}
