// Package git provides the timeout-bounded git adapter. Every operation
// shells out through a Runner, maps failures to tagged domain errors and
// honors context cancellation.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes commands. The interface exists so tests can substitute
// recorded output for real subprocesses.
type Runner interface {
	// Run executes a command in dir and returns stdout with trailing
	// newlines removed. Leading whitespace is preserved: porcelain
	// status lines carry a significant leading status column. On
	// non-zero exit the error is an *ExitError carrying stderr.
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

// ExecRunner is the default Runner using exec.CommandContext.
type ExecRunner struct{}

// NewExecRunner creates the default runner.
func NewExecRunner() *ExecRunner { return &ExecRunner{} }

// Run executes the command, honoring ctx for cancellation and timeout.
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), ctx.Err())
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = strings.TrimSpace(stdout.String())
			}
			return "", &ExitError{
				Code:   exitErr.ExitCode(),
				Stderr: msg,
				Cmd:    name + " " + strings.Join(args, " "),
			}
		}
		return "", fmt.Errorf("running %s: %w", name, err)
	}

	return strings.TrimRight(stdout.String(), "\r\n"), nil
}

// ExitError wraps a non-zero exit from a subprocess.
type ExitError struct {
	Code   int
	Stderr string
	Cmd    string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return fmt.Sprintf("%s exited with code %d", e.Cmd, e.Code)
}
