package deploy

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/systemstart/deployctl/pkg/api"
)

// fakeKubectl writes an executable script that sleeps forever, standing
// in for long-lived port-forward processes.
func fakeKubectl(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not in PATH")
	}
	path := filepath.Join(t.TempDir(), "kubectl")
	script := "#!/bin/sh\nsleep 300\n"
	if err := os.WriteFile(path, []byte(script), 0o700); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPortForward_TerminatesAllOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cluster.Kubectl = fakeKubectl(t)
	cfg.PortForwards = []api.PortForwardConfig{
		{Name: "app", Resource: "svc/dev-react-sre-app", Ports: "3000:80", Namespace: "react-sre-app"},
		{Name: "prometheus", Resource: "svc/prometheus", Ports: "9090:9090", Namespace: "monitoring"},
		{Name: "grafana", Resource: "svc/grafana", Ports: "8081:3000", Namespace: "monitoring"},
	}
	d := New(cfg, &fakeExecutor{handler: allGood}, &fakeCluster{running: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.portForward(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("portForward did not return after cancellation; sessions likely leaked")
	}
}

func TestPortForward_StartFailureCleansUp(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cluster.Kubectl = filepath.Join(t.TempDir(), "missing-kubectl")
	cfg.PortForwards = []api.PortForwardConfig{
		{Name: "app", Resource: "svc/app", Ports: "3000:80", Namespace: "app"},
	}
	d := New(cfg, &fakeExecutor{handler: allGood}, &fakeCluster{running: true}, nil)

	if err := d.portForward(context.Background()); err == nil {
		t.Error("expected error when the forward binary cannot start")
	}
}

func TestPortForward_NoForwardsConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.PortForwards = nil
	d := New(cfg, &fakeExecutor{handler: allGood}, &fakeCluster{running: true}, nil)

	// Must return immediately instead of blocking on ctx.
	if err := d.portForward(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLocalPort(t *testing.T) {
	if got := localPort("3000:80"); got != "3000" {
		t.Errorf("localPort = %q, want 3000", got)
	}
	if got := localPort("9090"); got != "9090" {
		t.Errorf("localPort = %q, want 9090", got)
	}
}
