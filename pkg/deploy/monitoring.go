package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/systemstart/deployctl/pkg/manifest"
	"github.com/systemstart/deployctl/pkg/readiness"
)

// deployMonitoring applies the monitoring manifests and waits for every
// monitored service's pods independently. The stage is soft: a broken
// monitoring stack must not block the application rollout.
func (d *Deployer) deployMonitoring(ctx context.Context) error {
	dir := d.cfg.ResolvePath(d.cfg.Project.MonitoringDir)
	if err := requireDir(dir); err != nil {
		return fmt.Errorf("monitoring directory: %w", err)
	}

	filter := d.cfg.Monitoring.Manifests
	files, err := manifest.Discover(os.DirFS(dir), filter.Include, filter.Exclude)
	if err != nil {
		return fmt.Errorf("discovering monitoring manifests: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no monitoring manifests found in %s", dir)
	}

	for _, file := range files {
		if err := d.applyManifest(ctx, filepath.Join(dir, file)); err != nil {
			return err
		}
	}

	if len(d.cfg.Monitoring.Services) == 0 {
		return nil
	}

	slog.Info("waiting for monitoring stack", "services", len(d.cfg.Monitoring.Services))
	checks := make([]readiness.Check, 0, len(d.cfg.Monitoring.Services))
	for _, svc := range d.cfg.Monitoring.Services {
		checks = append(checks, readiness.Check{
			Name:     svc.Name,
			Query:    d.podPhaseQuery(d.cfg.Monitoring.Namespace, svc.Selector, true),
			Ready:    phaseRunning,
			Interval: d.cfg.Deploy.PollInterval.Std(),
			Deadline: d.cfg.Deploy.Timeout.Std(),
		})
	}

	if !d.poller.WaitAll(ctx, checks) {
		return fmt.Errorf("monitoring stack not ready within %s", d.cfg.Deploy.Timeout)
	}
	return nil
}

// applyManifest renders one manifest with the configured context and
// pipes the result into an apply.
func (d *Deployer) applyManifest(ctx context.Context, path string) error {
	rendered, err := manifest.Render(path, d.cfg.Context)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", path, err)
	}

	slog.Info("applying manifest", "path", path)
	apply := d.kubectl("apply", "-f", "-")
	apply.Stdin = string(rendered)
	apply.Timeout = applyTimeout
	apply.Retries = d.cfg.Deploy.ApplyRetries

	if out := d.exec.Run(ctx, apply); !out.Ok {
		return fmt.Errorf("applying %s: %s", path, out.LastErr)
	}
	return nil
}

// phaseRunning accepts an aggregate phase answer containing a running pod.
func phaseRunning(stdout string) bool {
	return strings.Contains(stdout, "Running")
}
