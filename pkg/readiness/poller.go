// Package readiness waits for external resources to report a success
// condition before a deadline, by repeatedly running a status query and
// evaluating a predicate against its output.
package readiness

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/systemstart/deployctl/pkg/command"
)

// Check pairs a status query with the condition that declares it ready.
type Check struct {
	Name     string
	Query    command.Command
	Ready    func(stdout string) bool
	Interval time.Duration
	Deadline time.Duration
}

// Poller runs readiness checks through an Executor.
type Poller struct {
	exec command.Executor
}

// NewPoller creates a Poller.
func NewPoller(exec command.Executor) *Poller {
	return &Poller{exec: exec}
}

// Wait polls until the check's predicate holds, its deadline elapses, or
// ctx is cancelled. At least one poll always runs. A failing query counts
// as "not yet ready"; nothing is retried within an iteration.
func (p *Poller) Wait(ctx context.Context, check Check) bool {
	start := time.Now()

	query := check.Query
	query.Retries = 1

	for {
		out := p.exec.Run(ctx, query)
		if out.Ok && check.Ready(out.Output) {
			slog.Info("ready", "check", check.Name, "elapsed", elapsedSeconds(start))
			return true
		}

		if time.Since(start) >= check.Deadline {
			slog.Error("readiness deadline exceeded",
				"check", check.Name,
				"deadline", check.Deadline,
				"elapsed", elapsedSeconds(start))
			return false
		}

		slog.Info("waiting", "check", check.Name, "elapsed", elapsedSeconds(start))

		select {
		case <-time.After(check.Interval):
		case <-ctx.Done():
			slog.Warn("readiness wait cancelled", "check", check.Name)
			return false
		}
	}
}

// WaitAll polls every check concurrently, each against its own deadline,
// and reports whether all became ready. A check that never succeeds does
// not prevent the others from being determined.
func (p *Poller) WaitAll(ctx context.Context, checks []Check) bool {
	results := make([]bool, len(checks))

	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		i, check := i, check
		go func() {
			defer wg.Done()
			results[i] = p.Wait(ctx, check)
		}()
	}
	wg.Wait()

	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}

func elapsedSeconds(start time.Time) int {
	return int(time.Since(start).Seconds())
}
