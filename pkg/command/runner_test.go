package command

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not in PATH")
	}
}

// testRunner returns a Runner with a backoff short enough for tests.
func testRunner() *Runner {
	return &Runner{Backoff: 10 * time.Millisecond}
}

func TestRunner_Success(t *testing.T) {
	skipWithoutShell(t)

	out := testRunner().Run(context.Background(), Command{
		Program: "sh",
		Args:    []string{"-c", "echo hello"},
		Timeout: 5 * time.Second,
	})

	if !out.Ok {
		t.Fatalf("expected success, got error: %s", out.LastErr)
	}
	if out.Output != "hello" {
		t.Errorf("expected trimmed output %q, got %q", "hello", out.Output)
	}
	if len(out.Attempts) != 1 {
		t.Errorf("expected 1 attempt, got %d", len(out.Attempts))
	}
}

func TestRunner_ExhaustsRetries(t *testing.T) {
	skipWithoutShell(t)

	out := testRunner().Run(context.Background(), Command{
		Program: "sh",
		Args:    []string{"-c", "echo boom >&2; exit 1"},
		Timeout: 5 * time.Second,
		Retries: 3,
	})

	if out.Ok {
		t.Fatal("expected failure")
	}
	if len(out.Attempts) != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", len(out.Attempts))
	}
	if !strings.Contains(out.LastErr, "boom") {
		t.Errorf("expected last stderr in LastErr, got %q", out.LastErr)
	}
}

func TestRunner_SucceedsOnLaterAttempt(t *testing.T) {
	skipWithoutShell(t)

	// Fails until the marker file exists, which the first attempt creates.
	dir := t.TempDir()
	script := "if [ -f marker ]; then echo ready; else touch marker; exit 1; fi"

	out := testRunner().Run(context.Background(), Command{
		Program: "sh",
		Args:    []string{"-c", script},
		Dir:     dir,
		Timeout: 5 * time.Second,
		Retries: 5,
	})

	if !out.Ok {
		t.Fatalf("expected success, got error: %s", out.LastErr)
	}
	if len(out.Attempts) != 2 {
		t.Errorf("expected 2 attempts, got %d", len(out.Attempts))
	}
	if out.Output != "ready" {
		t.Errorf("expected output of the successful attempt, got %q", out.Output)
	}
}

func TestRunner_TimeoutKillsProcess(t *testing.T) {
	skipWithoutShell(t)

	start := time.Now()
	out := testRunner().Run(context.Background(), Command{
		Program: "sh",
		Args:    []string{"-c", "sleep 30"},
		Timeout: 100 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if out.Ok {
		t.Fatal("expected timeout failure")
	}
	if elapsed > 5*time.Second {
		t.Fatalf("process was not terminated on timeout, run took %s", elapsed)
	}
	if len(out.Attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(out.Attempts))
	}
	if !out.Attempts[0].TimedOut {
		t.Error("attempt should be marked timed out")
	}
	if !strings.Contains(out.LastErr, "timed out") {
		t.Errorf("expected synthesized timeout message, got %q", out.LastErr)
	}
}

func TestRunner_TimeoutIsRetried(t *testing.T) {
	skipWithoutShell(t)

	out := testRunner().Run(context.Background(), Command{
		Program: "sh",
		Args:    []string{"-c", "sleep 30"},
		Timeout: 50 * time.Millisecond,
		Retries: 2,
	})

	if out.Ok {
		t.Fatal("expected failure")
	}
	if len(out.Attempts) != 2 {
		t.Errorf("expected timeout to count as a failed attempt and be retried, got %d attempts", len(out.Attempts))
	}
}

func TestRunner_PipesStdin(t *testing.T) {
	skipWithoutShell(t)

	out := testRunner().Run(context.Background(), Command{
		Program: "sh",
		Args:    []string{"-c", "cat"},
		Stdin:   "piped payload",
		Timeout: 5 * time.Second,
	})

	if !out.Ok {
		t.Fatalf("expected success, got error: %s", out.LastErr)
	}
	if out.Output != "piped payload" {
		t.Errorf("expected stdin echoed back, got %q", out.Output)
	}
}

func TestRunner_WorkingDirectory(t *testing.T) {
	skipWithoutShell(t)

	dir := t.TempDir()
	out := testRunner().Run(context.Background(), Command{
		Program: "sh",
		Args:    []string{"-c", "pwd"},
		Dir:     dir,
		Timeout: 5 * time.Second,
	})

	if !out.Ok {
		t.Fatalf("expected success, got error: %s", out.LastErr)
	}
	// TempDir may sit behind a symlink, so compare resolved paths.
	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := filepath.EvalSymlinks(out.Output)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("expected working directory %q, got %q", want, got)
	}
}

func TestRunner_ShellCommandLine(t *testing.T) {
	skipWithoutShell(t)

	out := testRunner().Run(context.Background(), Command{
		Program: "printf 'a\nb\n' | wc -l",
		Shell:   true,
		Timeout: 5 * time.Second,
	})

	if !out.Ok {
		t.Fatalf("expected success, got error: %s", out.LastErr)
	}
	if out.Output != "2" {
		t.Errorf("expected shell pipeline result %q, got %q", "2", out.Output)
	}
}

func TestRunner_MissingBinary(t *testing.T) {
	out := testRunner().Run(context.Background(), Command{
		Program: "definitely-not-a-real-binary-deployctl",
		Timeout: 5 * time.Second,
	})

	if out.Ok {
		t.Fatal("expected failure for missing binary")
	}
	if out.LastErr == "" {
		t.Error("expected spawn error surfaced in LastErr")
	}
}

func TestCommand_Line(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"plain", Command{Program: "kubectl", Args: []string{"get", "pods"}}, "kubectl get pods"},
		{"no args", Command{Program: "minikube"}, "minikube"},
		{"shell", Command{Program: "a | b", Shell: true}, "a | b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.Line(); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommand_Attempts(t *testing.T) {
	if got := (Command{}).Attempts(); got != 1 {
		t.Errorf("zero retries should mean 1 attempt, got %d", got)
	}
	if got := (Command{Retries: -2}).Attempts(); got != 1 {
		t.Errorf("negative retries should mean 1 attempt, got %d", got)
	}
	if got := (Command{Retries: 4}).Attempts(); got != 4 {
		t.Errorf("Attempts() = %d, want 4", got)
	}
}
