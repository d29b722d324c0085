// Package pipeline runs an ordered list of named stages with a
// fatal/soft failure policy and an optional precondition gate.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Policy decides what a stage failure does to the rest of the run.
type Policy int

const (
	// Fatal aborts the run; no later stage executes.
	Fatal Policy = iota
	// Soft records the failure and lets later stages run.
	Soft
)

func (p Policy) String() string {
	if p == Soft {
		return "soft"
	}
	return "fatal"
}

// Stage is one unit of work in a run.
type Stage struct {
	Name   string
	Policy Policy
	Run    func(ctx context.Context) error
}

// StageResult records one executed stage.
type StageResult struct {
	Name     string
	Policy   Policy
	Err      error
	Duration time.Duration
}

// Failed reports whether the stage failed.
func (r StageResult) Failed() bool { return r.Err != nil }

// Run is the record of one pipeline execution. Success is true iff no
// executed stage failed; Aborted marks a fatal failure that cut the run
// short.
type Run struct {
	Stages   []StageResult
	Success  bool
	Aborted  bool
	Duration time.Duration
}

// FirstError returns the first stage error, or nil.
func (r *Run) FirstError() error {
	for _, s := range r.Stages {
		if s.Err != nil {
			return s.Err
		}
	}
	return nil
}

// Pipeline is an ordered stage list behind a precondition.
type Pipeline struct {
	// Precondition runs before any stage; a non-nil error aborts the
	// run with no stage executed.
	Precondition func(ctx context.Context) error
	Stages       []Stage
}

// Execute runs the stages strictly in order. Stage N+1 never starts
// before stage N's outcome is known.
func (p *Pipeline) Execute(ctx context.Context) *Run {
	start := time.Now()
	run := &Run{Stages: make([]StageResult, 0, len(p.Stages))}

	if p.Precondition != nil {
		if err := p.Precondition(ctx); err != nil {
			slog.Error("prerequisite not met", "error", err)
			run.Aborted = true
			run.Duration = time.Since(start)
			return run
		}
	}

	run.Success = true
	for _, stage := range p.Stages {
		res := executeStage(ctx, stage)
		run.Stages = append(run.Stages, res)

		if !res.Failed() {
			continue
		}

		run.Success = false
		if stage.Policy == Fatal {
			slog.Error("fatal stage failed, aborting",
				"stage", stage.Name, "error", res.Err)
			run.Aborted = true
			break
		}
		slog.Warn("soft stage failed, continuing",
			"stage", stage.Name, "error", res.Err)
	}

	run.Duration = time.Since(start)
	return run
}

func executeStage(ctx context.Context, stage Stage) StageResult {
	slog.Info("running stage", "stage", stage.Name, "policy", stage.Policy.String())
	start := time.Now()

	err := stage.Run(ctx)
	if err != nil {
		err = fmt.Errorf("stage %q: %w", stage.Name, err)
	}

	res := StageResult{
		Name:     stage.Name,
		Policy:   stage.Policy,
		Err:      err,
		Duration: time.Since(start),
	}

	if err == nil {
		slog.Info("stage succeeded", "stage", stage.Name, "duration", res.Duration.Round(time.Millisecond))
	}
	return res
}
