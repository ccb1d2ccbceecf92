package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

// CommandRunner abstracts command execution for testing.
type CommandRunner interface {
	// Output runs name with args and returns stdout.
	// A failed run returns a *domain.ProbeError carrying stderr and the exit code.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RealCommandRunner executes real system commands.
type RealCommandRunner struct{}

// Output executes a command and returns its stdout.
func (r *RealCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil // Prevent any interactive prompts

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		pe := &domain.ProbeError{
			Message: fmt.Sprintf("%s failed", name),
			Stderr:  stderr.String(),
			Stdout:  stdout.String(),
			Code:    -1,
			Err:     err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			pe.Code = exitErr.ExitCode()
		}
		if errors.Is(err, exec.ErrNotFound) {
			pe.Code = 127
		}
		return nil, pe
	}
	return stdout.Bytes(), nil
}

var _ CommandRunner = (*RealCommandRunner)(nil)
