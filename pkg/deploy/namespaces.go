package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/systemstart/deployctl/pkg/command"
)

// createNamespaces ensures every configured namespace exists. Each one is
// a two-step composite: render the namespace manifest with a client-side
// dry run, then pipe the rendered text into an apply. The dry-run apply
// sequence is idempotent, so pre-existing namespaces are fine.
func (d *Deployer) createNamespaces(ctx context.Context) error {
	for _, ns := range d.cfg.Namespaces {
		rendered := d.renderNamespace(ctx, ns)
		if !rendered.Ok {
			return fmt.Errorf("rendering namespace manifest for %q: %s", ns, rendered.LastErr)
		}

		apply := d.kubectl("apply", "-f", "-")
		apply.Stdin = rendered.Output
		apply.Timeout = applyTimeout
		apply.Retries = d.cfg.Deploy.ApplyRetries

		if out := d.exec.Run(ctx, apply); !out.Ok {
			return fmt.Errorf("applying namespace %q: %s", ns, out.LastErr)
		}

		slog.Info("namespace ensured", "namespace", ns)
	}
	return nil
}

func (d *Deployer) renderNamespace(ctx context.Context, ns string) command.Outcome {
	cmd := d.kubectl("create", "namespace", ns, "--dry-run=client", "-o", "yaml")
	cmd.Timeout = renderTimeout
	return d.exec.Run(ctx, cmd)
}
