// Package command executes external commands with per-attempt timeouts,
// output capture and fixed-backoff retries. Failures are reported through
// the returned Outcome, never as errors.
package command

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultBackoff is the pause between failed attempts.
	DefaultBackoff = 5 * time.Second

	defaultShell = "sh"
)

// Executor runs a Command to completion. Implemented by Runner; callers
// take the interface so tests can substitute canned outcomes.
type Executor interface {
	Run(ctx context.Context, cmd Command) Outcome
}

// Runner is the production Executor.
type Runner struct {
	// Backoff between failed attempts. Zero means DefaultBackoff;
	// tests inject something short.
	Backoff time.Duration

	// Shell interprets Shell-flagged commands. Defaults to "sh".
	Shell string
}

// NewRunner returns a Runner with default backoff.
func NewRunner() *Runner {
	return &Runner{Backoff: DefaultBackoff}
}

// Run executes cmd attempt by attempt until one succeeds or all
// attempts are used. Retries apply only to process-level failures
// (non-zero exit, timeout); interpreting the output is the caller's job.
func (r *Runner) Run(ctx context.Context, cmd Command) Outcome {
	attempts := cmd.Attempts()
	outcome := Outcome{Attempts: make([]Result, 0, attempts)}

	for attempt := 1; attempt <= attempts; attempt++ {
		slog.Debug("running command", "command", cmd.Line(), "attempt", attempt, "of", attempts)

		res := r.runOnce(ctx, cmd)
		outcome.Attempts = append(outcome.Attempts, res)

		if res.Success() {
			outcome.Ok = true
			outcome.Output = strings.TrimSpace(res.Stdout)
			return outcome
		}

		slog.Warn("command failed",
			"command", cmd.Line(),
			"attempt", attempt,
			"of", attempts,
			"reason", res.FailureReason())

		if attempt < attempts {
			if !r.pause(ctx) {
				break
			}
		}
	}

	last := outcome.Attempts[len(outcome.Attempts)-1]
	outcome.LastErr = last.FailureReason()
	slog.Error("command failed after all attempts",
		"command", cmd.Line(),
		"attempts", len(outcome.Attempts),
		"error", outcome.LastErr)
	return outcome
}

func (r *Runner) runOnce(ctx context.Context, cmd Command) Result {
	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	proc := r.buildProcess(runCtx, cmd)

	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr
	if cmd.Stdin != "" {
		proc.Stdin = strings.NewReader(cmd.Stdin)
	}

	start := time.Now()
	err := proc.Run()
	elapsed := time.Since(start)

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}

	// CommandContext kills the process on deadline, so a timed-out
	// attempt never leaves an orphan behind.
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			// Spawn failure (binary missing, bad dir). Surface it
			// where stderr would normally be inspected.
			res.ExitCode = -1
			if res.Stderr == "" {
				res.Stderr = err.Error()
			}
		}
	}

	return res
}

func (r *Runner) buildProcess(ctx context.Context, cmd Command) *exec.Cmd {
	var proc *exec.Cmd
	if cmd.Shell {
		shell := r.Shell
		if shell == "" {
			shell = defaultShell
		}
		proc = exec.CommandContext(ctx, shell, "-c", cmd.Program)
	} else {
		proc = exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	}
	proc.Dir = cmd.Dir
	return proc
}

// pause waits out the backoff, returning false when ctx is cancelled first.
func (r *Runner) pause(ctx context.Context) bool {
	backoff := r.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	select {
	case <-time.After(backoff):
		return true
	case <-ctx.Done():
		return false
	}
}
