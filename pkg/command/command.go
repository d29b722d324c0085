package command

import (
	"strings"
	"time"
)

// Command describes a single external command invocation. A Command is
// constructed once and never mutated; the runner copies what it needs
// per attempt.
type Command struct {
	Program string
	Args    []string
	Dir     string // working directory ("" = inherit)
	Stdin   string // piped to the process when non-empty
	Timeout time.Duration
	Retries int  // total attempts; values below 1 mean a single attempt
	Shell   bool // run Program as a shell command line via "sh -c"
}

// Line renders the command for logging.
func (c Command) Line() string {
	if c.Shell {
		return c.Program
	}
	if len(c.Args) == 0 {
		return c.Program
	}
	return c.Program + " " + strings.Join(c.Args, " ")
}

// Attempts returns the effective attempt count.
func (c Command) Attempts() int {
	if c.Retries < 1 {
		return 1
	}
	return c.Retries
}

// Result holds the captured output of one attempt.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
}

// Success reports whether the attempt exited zero within its timeout.
func (r Result) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// FailureReason describes why the attempt failed, for diagnostics.
// Timeouts yield a synthesized message since the process wrote nothing
// useful before being killed.
func (r Result) FailureReason() string {
	if r.TimedOut {
		return "timed out after " + r.Duration.Round(time.Millisecond).String()
	}
	return strings.TrimSpace(r.Stderr)
}

// Outcome is the terminal result of running a Command through all its
// attempts. Either Ok is true and Output carries the successful attempt's
// stdout, or Ok is false and LastErr carries the last attempt's failure
// reason.
type Outcome struct {
	Ok       bool
	Output   string
	LastErr  string
	Attempts []Result
}
