package readiness

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/systemstart/deployctl/pkg/command"
)

// scriptedExecutor returns outcomes from a script keyed by command line
// and call number, counting calls per command.
type scriptedExecutor struct {
	mu     sync.Mutex
	calls  map[string]int
	script func(cmd command.Command, call int) command.Outcome
}

func newScripted(script func(cmd command.Command, call int) command.Outcome) *scriptedExecutor {
	return &scriptedExecutor{calls: make(map[string]int), script: script}
}

func (s *scriptedExecutor) Run(_ context.Context, cmd command.Command) command.Outcome {
	s.mu.Lock()
	s.calls[cmd.Line()]++
	n := s.calls[cmd.Line()]
	s.mu.Unlock()
	return s.script(cmd, n)
}

func (s *scriptedExecutor) callCount(line string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[line]
}

func ok(output string) command.Outcome {
	return command.Outcome{Ok: true, Output: output}
}

func failed(reason string) command.Outcome {
	return command.Outcome{Ok: false, LastErr: reason}
}

func testCheck(name string) Check {
	return Check{
		Name:     name,
		Query:    command.Command{Program: "status-" + name},
		Ready:    func(stdout string) bool { return strings.Contains(stdout, "Running") },
		Interval: 2 * time.Millisecond,
		Deadline: time.Second,
	}
}

func TestPoller_ReadyStopsPolling(t *testing.T) {
	exec := newScripted(func(_ command.Command, call int) command.Outcome {
		if call >= 3 {
			return ok("Running")
		}
		return ok("Pending")
	})

	check := testCheck("app")
	if !NewPoller(exec).Wait(context.Background(), check) {
		t.Fatal("expected check to become ready")
	}
	if got := exec.callCount(check.Query.Line()); got != 3 {
		t.Errorf("expected polling to stop at the first ready result, got %d polls", got)
	}
}

func TestPoller_AtLeastOnePoll(t *testing.T) {
	exec := newScripted(func(_ command.Command, _ int) command.Outcome {
		return ok("Running")
	})

	// A zero deadline still gets one poll before any timeout decision.
	check := testCheck("app")
	check.Deadline = 0

	if !NewPoller(exec).Wait(context.Background(), check) {
		t.Fatal("expected ready on the first and only poll")
	}
	if got := exec.callCount(check.Query.Line()); got != 1 {
		t.Errorf("expected exactly 1 poll, got %d", got)
	}
}

func TestPoller_DeadlineExceeded(t *testing.T) {
	exec := newScripted(func(_ command.Command, _ int) command.Outcome {
		return ok("Pending")
	})

	check := testCheck("app")
	check.Deadline = 20 * time.Millisecond

	if NewPoller(exec).Wait(context.Background(), check) {
		t.Fatal("expected false once the deadline elapsed")
	}
	if got := exec.callCount(check.Query.Line()); got < 2 {
		t.Errorf("expected multiple polls before the deadline, got %d", got)
	}
}

func TestPoller_QueryFailureMeansNotReady(t *testing.T) {
	exec := newScripted(func(_ command.Command, call int) command.Outcome {
		if call < 3 {
			return failed("connection refused")
		}
		return ok("Running")
	})

	if !NewPoller(exec).Wait(context.Background(), testCheck("app")) {
		t.Fatal("query failures should be treated as not-yet-ready, not escalated")
	}
}

func TestPoller_QueryRunsSingleAttempt(t *testing.T) {
	var got command.Command
	exec := newScripted(func(cmd command.Command, _ int) command.Outcome {
		got = cmd
		return ok("Running")
	})

	check := testCheck("app")
	check.Query.Retries = 7
	NewPoller(exec).Wait(context.Background(), check)

	if got.Attempts() != 1 {
		t.Errorf("poll queries must not retry internally, got %d attempts", got.Attempts())
	}
}

func TestPoller_CancelledContext(t *testing.T) {
	exec := newScripted(func(_ command.Command, _ int) command.Outcome {
		return ok("Pending")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	check := testCheck("app")
	if NewPoller(exec).Wait(ctx, check) {
		t.Fatal("expected false on cancelled context")
	}
}

func TestPoller_WaitAllIndependent(t *testing.T) {
	exec := newScripted(func(cmd command.Command, call int) command.Outcome {
		if cmd.Program == "status-prometheus" {
			return ok("Running")
		}
		return ok("Pending") // grafana never becomes ready
	})

	prometheus := testCheck("prometheus")
	grafana := testCheck("grafana")
	grafana.Deadline = 20 * time.Millisecond

	if NewPoller(exec).WaitAll(context.Background(), []Check{prometheus, grafana}) {
		t.Fatal("expected overall failure when one check never becomes ready")
	}
	// The failing check must not have blocked the other's determination.
	if got := exec.callCount(prometheus.Query.Line()); got != 1 {
		t.Errorf("expected prometheus determined on first poll, got %d polls", got)
	}
	if got := exec.callCount(grafana.Query.Line()); got < 2 {
		t.Errorf("expected grafana polled until its own deadline, got %d polls", got)
	}
}

func TestPoller_WaitAllSuccess(t *testing.T) {
	exec := newScripted(func(_ command.Command, call int) command.Outcome {
		if call >= 2 {
			return ok("Running")
		}
		return ok("Pending")
	})

	checks := []Check{testCheck("prometheus"), testCheck("grafana")}
	if !NewPoller(exec).WaitAll(context.Background(), checks) {
		t.Fatal("expected all checks ready")
	}
}
