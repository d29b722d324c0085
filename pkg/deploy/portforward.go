package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// forwardSession is one running port-forward process.
type forwardSession struct {
	name string
	proc *exec.Cmd
}

// portForward starts every configured port-forward as a background
// process and blocks until ctx is cancelled, then terminates all of
// them. If any session fails to start, the ones already started are
// terminated before returning; sessions either all run or none do.
func (d *Deployer) portForward(ctx context.Context) error {
	if len(d.cfg.PortForwards) == 0 {
		slog.Info("no port forwards configured")
		return nil
	}

	var sessions []*forwardSession
	for _, pf := range d.cfg.PortForwards {
		proc := exec.Command(d.cfg.Cluster.Kubectl,
			"port-forward", pf.Resource, pf.Ports, "-n", pf.Namespace)

		if err := proc.Start(); err != nil {
			stopSessions(sessions)
			return fmt.Errorf("starting port-forward %q: %w", pf.Name, err)
		}
		sessions = append(sessions, &forwardSession{name: pf.Name, proc: proc})

		slog.Info("port forward established",
			"name", pf.Name,
			"resource", pf.Resource,
			"local", localPort(pf.Ports),
			"namespace", pf.Namespace)
	}

	slog.Info("port forwarding active, interrupt to stop")
	<-ctx.Done()

	slog.Info("stopping port forwards")
	stopSessions(sessions)
	return nil
}

// stopSessions terminates every session. A failure to kill one session
// never skips the remaining ones.
func stopSessions(sessions []*forwardSession) {
	for _, s := range sessions {
		if s.proc.Process == nil {
			continue
		}
		if err := s.proc.Process.Kill(); err != nil {
			slog.Warn("failed to terminate port forward", "name", s.name, "error", err)
		}
	}
	// Reap after signalling everyone, so one slow exit does not delay
	// the termination of the rest.
	for _, s := range sessions {
		_ = s.proc.Wait()
		slog.Info("port forward stopped", "name", s.name)
	}
}

func localPort(ports string) string {
	local, _, found := strings.Cut(ports, ":")
	if !found {
		return ports
	}
	return local
}
