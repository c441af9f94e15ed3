package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CmdRunner is interface for executing external commands
type CmdRunner interface {
	// Run executes name with args and returns its stdout. A non-zero exit is returned as
	// *CommandError carrying the captured stderr.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandError describes an external command that failed to start or exited non-zero
type CommandError struct {
	Name     string
	ExitCode int // -1 when the command never ran
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Name, e.ExitCode)
	if e.ExitCode < 0 {
		msg = fmt.Sprintf("%s failed: %v", e.Name, e.Err)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += "\n" + stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// realCmdRunner implements CmdRunner using os/exec
type realCmdRunner struct{}

// NewCmdRunner creates a new CmdRunner
func NewCmdRunner() CmdRunner {
	return &realCmdRunner{}
}

// Run executes external command with given arguments
func (r *realCmdRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// a killed process reports "signal: killed"; surface the cancellation instead
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return nil, &CommandError{Name: name, ExitCode: code, Stderr: stderr.String(), Err: err}
	}

	return stdout.Bytes(), nil
}
