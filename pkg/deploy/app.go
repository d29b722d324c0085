package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/systemstart/deployctl/pkg/api"
	"github.com/systemstart/deployctl/pkg/readiness"
)

// deployApplication applies the environment's kustomize overlay and
// waits for the workload pods to settle.
func (d *Deployer) deployApplication(ctx context.Context, env api.EnvironmentConfig) error {
	overlay := d.cfg.ResolvePath(env.Overlay)
	if err := requireDir(overlay); err != nil {
		return fmt.Errorf("overlay directory: %w", err)
	}

	slog.Info("applying application overlay", "overlay", overlay)
	apply := d.kubectl("apply", "-k", overlay)
	apply.Timeout = overlayTimeout
	apply.Retries = d.cfg.Deploy.ApplyRetries

	if out := d.exec.Run(ctx, apply); !out.Ok {
		return fmt.Errorf("applying overlay %s: %s", overlay, out.LastErr)
	}

	ready := d.poller.Wait(ctx, readiness.Check{
		Name:     "application",
		Query:    d.podPhaseQuery(env.Namespace, env.Selector, false),
		Ready:    allPodsRunning,
		Interval: d.cfg.Deploy.PollInterval.Std(),
		Deadline: d.cfg.Deploy.Timeout.Std(),
	})
	if !ready {
		return fmt.Errorf("application pods not ready within %s", d.cfg.Deploy.Timeout)
	}
	return nil
}

// allPodsRunning requires at least one running pod and no pod still in a
// pending phase. The phases arrive as one aggregate string per selector;
// per-pod diagnostics are deliberately out of scope.
func allPodsRunning(stdout string) bool {
	return strings.Contains(stdout, "Running") && !strings.Contains(stdout, "Pending")
}
