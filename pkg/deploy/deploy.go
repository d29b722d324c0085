// Package deploy assembles the deployment pipeline: namespaces, build,
// image load, monitoring stack, application rollout and port-forwarding,
// all issued as external commands against the cluster.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/systemstart/deployctl/pkg/api"
	"github.com/systemstart/deployctl/pkg/command"
	"github.com/systemstart/deployctl/pkg/history"
	"github.com/systemstart/deployctl/pkg/pipeline"
	"github.com/systemstart/deployctl/pkg/readiness"
)

const (
	renderTimeout   = 10 * time.Second
	applyTimeout    = 30 * time.Second
	overlayTimeout  = 60 * time.Second
	podQueryTimeout = 10 * time.Second
)

// ErrClusterNotRunning gates the pipeline: nothing runs without a
// running cluster.
var ErrClusterNotRunning = errors.New("cluster is not running, start it first")

// ClusterStatus reports whether the target cluster is running.
// Satisfied by cluster.Lifecycle.
type ClusterStatus interface {
	Status(ctx context.Context) bool
}

// Options selects what a deployment run does.
type Options struct {
	Env            string
	SkipBuild      bool
	SkipMonitoring bool
	PortForward    bool
}

// Deployer runs deployment pipelines against one configured project.
type Deployer struct {
	cfg     *api.Config
	exec    command.Executor
	poller  *readiness.Poller
	cluster ClusterStatus
	store   *history.Storage // nil disables run recording
}

// New creates a Deployer. store may be nil.
func New(cfg *api.Config, exec command.Executor, cluster ClusterStatus, store *history.Storage) *Deployer {
	return &Deployer{
		cfg:     cfg,
		exec:    exec,
		poller:  readiness.NewPoller(exec),
		cluster: cluster,
		store:   store,
	}
}

// Run executes the deployment pipeline for opts and returns its record.
// With Options.PortForward set and a successful run, it then blocks
// forwarding ports until ctx is cancelled.
func (d *Deployer) Run(ctx context.Context, opts Options) (*pipeline.Run, error) {
	env, err := d.cfg.Environment(opts.Env)
	if err != nil {
		return nil, err
	}

	p := &pipeline.Pipeline{
		Precondition: func(ctx context.Context) error {
			if !d.cluster.Status(ctx) {
				return ErrClusterNotRunning
			}
			return nil
		},
		Stages: d.stages(env, opts),
	}

	slog.Info("deploying", "environment", opts.Env)
	run := p.Execute(ctx)
	d.record(opts.Env, run)

	if run.Success {
		slog.Info("deployment completed successfully", "environment", opts.Env)
	} else {
		slog.Error("deployment completed with errors",
			"environment", opts.Env, "error", run.FirstError())
	}

	if opts.PortForward && run.Success {
		if err := d.portForward(ctx); err != nil {
			return run, err
		}
	}

	return run, nil
}

// stages builds the ordered stage list for one run.
func (d *Deployer) stages(env api.EnvironmentConfig, opts Options) []pipeline.Stage {
	var stages []pipeline.Stage

	if d.cfg.Hooks.PreDeploy != "" {
		stages = append(stages, pipeline.Stage{
			Name:   "pre-deploy hook",
			Policy: pipeline.Fatal,
			Run: func(ctx context.Context) error {
				return d.runHook(ctx, d.cfg.Hooks.PreDeploy)
			},
		})
	}

	stages = append(stages, pipeline.Stage{
		Name:   "namespaces",
		Policy: pipeline.Fatal,
		Run:    d.createNamespaces,
	})

	if !opts.SkipBuild {
		stages = append(stages,
			pipeline.Stage{Name: "build", Policy: pipeline.Fatal, Run: d.buildApp},
			pipeline.Stage{Name: "image", Policy: pipeline.Fatal, Run: d.buildImage},
		)
	}

	if !opts.SkipMonitoring {
		stages = append(stages, pipeline.Stage{
			Name:   "monitoring",
			Policy: pipeline.Soft,
			Run:    d.deployMonitoring,
		})
	}

	stages = append(stages, pipeline.Stage{
		Name:   "deploy",
		Policy: pipeline.Fatal,
		Run: func(ctx context.Context) error {
			return d.deployApplication(ctx, env)
		},
	})

	if d.cfg.Hooks.PostDeploy != "" {
		stages = append(stages, pipeline.Stage{
			Name:   "post-deploy hook",
			Policy: pipeline.Soft,
			Run: func(ctx context.Context) error {
				return d.runHook(ctx, d.cfg.Hooks.PostDeploy)
			},
		})
	}

	return stages
}

// record persists the run if history is enabled. Recording failures are
// logged, never escalated: history must not fail a deployment.
func (d *Deployer) record(environment string, run *pipeline.Run) {
	if d.store == nil {
		return
	}

	rec, err := d.store.CreateRun(environment)
	if err != nil {
		slog.Warn("failed to record run", "error", err)
		return
	}
	for _, stage := range run.Stages {
		if err := d.store.RecordStage(rec.ID, stage.Name, stage.Policy.String(), stage.Err, stage.Duration); err != nil {
			slog.Warn("failed to record stage", "stage", stage.Name, "error", err)
		}
	}
	if err := d.store.FinishRun(rec.ID, run.Success, run.Duration); err != nil {
		slog.Warn("failed to finalize run record", "error", err)
	}
}

// runHook executes a configured hook command line through the shell.
// Hooks are the only shell-interpreted commands in the pipeline.
func (d *Deployer) runHook(ctx context.Context, line string) error {
	out := d.exec.Run(ctx, command.Command{
		Program: line,
		Shell:   true,
		Dir:     d.cfg.Dir,
		Timeout: d.cfg.Deploy.BuildTimeout.Std(),
	})
	if !out.Ok {
		return fmt.Errorf("hook %q failed: %s", line, out.LastErr)
	}
	return nil
}

// kubectl builds a structured kubectl command.
func (d *Deployer) kubectl(args ...string) command.Command {
	return command.Command{
		Program: d.cfg.Cluster.Kubectl,
		Args:    args,
	}
}

// podPhaseQuery queries the aggregate pod phases for a selector. With
// firstOnly the query targets only the first pod, otherwise all phases
// are returned space separated.
func (d *Deployer) podPhaseQuery(namespace, selector string, firstOnly bool) command.Command {
	jsonpath := "jsonpath={.items[*].status.phase}"
	if firstOnly {
		jsonpath = "jsonpath={.items[0].status.phase}"
	}
	cmd := d.kubectl("get", "pods", "-n", namespace, "-l", selector, "-o", jsonpath)
	cmd.Timeout = podQueryTimeout
	return cmd
}
