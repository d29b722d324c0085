// Package cluster manages a local minikube-style cluster runtime through
// its CLI, with idempotent start/stop and a two-tier status parse.
package cluster

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/systemstart/deployctl/pkg/command"
	"github.com/systemstart/deployctl/pkg/readiness"
)

const runningToken = "Running"

// Config holds the lifecycle command shapes and timing.
type Config struct {
	Binary    string   // cluster CLI, e.g. "minikube"
	Kubectl   string   // control-plane CLI used for the post-start probe
	StartArgs []string // extra args for the start command

	StatusTimeout time.Duration
	StartTimeout  time.Duration
	StopTimeout   time.Duration

	// Readiness polling after start.
	WaitInterval time.Duration
	WaitDeadline time.Duration

	// Settle time between stop and start on restart.
	RestartDelay time.Duration
}

// DefaultConfig mirrors the timings the tool ships with.
func DefaultConfig() Config {
	return Config{
		Binary:        "minikube",
		Kubectl:       "kubectl",
		StartArgs:     []string{"--memory=4096", "--cpus=2", "--driver=docker"},
		StatusTimeout: 10 * time.Second,
		StartTimeout:  60 * time.Second,
		StopTimeout:   60 * time.Second,
		WaitInterval:  5 * time.Second,
		WaitDeadline:  60 * time.Second,
		RestartDelay:  5 * time.Second,
	}
}

// Lifecycle wraps the cluster CLI.
type Lifecycle struct {
	cfg    Config
	exec   command.Executor
	poller *readiness.Poller
}

// New creates a Lifecycle over the given executor.
func New(cfg Config, exec command.Executor) *Lifecycle {
	return &Lifecycle{cfg: cfg, exec: exec, poller: readiness.NewPoller(exec)}
}

// Status reports whether the cluster host is running. The query is a
// single short-timeout attempt; a failing query means not running.
func (l *Lifecycle) Status(ctx context.Context) bool {
	out := l.exec.Run(ctx, l.statusCommand())
	if !out.Ok {
		return false
	}
	return parseStatus(out.Output)
}

// Start brings the cluster up. Calling it while the cluster is already
// running is a no-op reporting success. A fresh start is not retried
// (startup is not safely re-entrant mid-failure); instead the status is
// polled until ready and a kubectl probe confirms the control plane
// answers before success is declared.
func (l *Lifecycle) Start(ctx context.Context) bool {
	if l.Status(ctx) {
		slog.Info("cluster is already running")
		return true
	}

	slog.Info("starting cluster", "timeout", l.cfg.StartTimeout)
	out := l.exec.Run(ctx, command.Command{
		Program: l.cfg.Binary,
		Args:    append([]string{"start"}, l.cfg.StartArgs...),
		Timeout: l.cfg.StartTimeout,
	})
	if !out.Ok {
		slog.Error("failed to start cluster", "error", out.LastErr)
		return false
	}

	ready := l.poller.Wait(ctx, readiness.Check{
		Name:     "cluster",
		Query:    l.statusCommand(),
		Ready:    parseStatus,
		Interval: l.cfg.WaitInterval,
		Deadline: l.cfg.WaitDeadline,
	})
	if !ready {
		slog.Error("cluster did not become ready", "deadline", l.cfg.WaitDeadline)
		return false
	}

	probe := l.exec.Run(ctx, command.Command{
		Program: l.cfg.Kubectl,
		Args:    []string{"version", "--output=yaml"},
		Timeout: l.cfg.StatusTimeout,
	})
	if !probe.Ok {
		slog.Error("control plane probe failed", "error", probe.LastErr)
		return false
	}

	slog.Info("cluster started")
	return true
}

// Stop shuts the cluster down. Calling it while already stopped is a
// no-op reporting success.
func (l *Lifecycle) Stop(ctx context.Context) bool {
	if !l.Status(ctx) {
		slog.Info("cluster is not running")
		return true
	}

	slog.Info("stopping cluster")
	out := l.exec.Run(ctx, command.Command{
		Program: l.cfg.Binary,
		Args:    []string{"stop"},
		Timeout: l.cfg.StopTimeout,
	})
	if !out.Ok {
		slog.Error("failed to stop cluster", "error", out.LastErr)
		return false
	}

	slog.Info("cluster stopped")
	return true
}

// Restart stops and starts the cluster. The result reflects the start.
func (l *Lifecycle) Restart(ctx context.Context) bool {
	l.Stop(ctx)
	if l.cfg.RestartDelay > 0 {
		select {
		case <-time.After(l.cfg.RestartDelay):
		case <-ctx.Done():
			return false
		}
	}
	return l.Start(ctx)
}

func (l *Lifecycle) statusCommand() command.Command {
	return command.Command{
		Program: l.cfg.Binary,
		Args:    []string{"status", "-o", "json"},
		Timeout: l.cfg.StatusTimeout,
	}
}

// parseStatus reads the structured status output when possible and falls
// back to a raw substring match. The status command's output shape is not
// fully trusted, so malformed output still yields an answer.
func parseStatus(output string) bool {
	var status struct {
		Host string `json:"Host"`
	}
	if err := json.Unmarshal([]byte(output), &status); err == nil {
		return status.Host == runningToken
	}
	return strings.Contains(output, runningToken)
}
