package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/krrrr38/github-2-github/pkg/logger"
)

// CommandError describes a command that exited non-zero or timed out
type CommandError struct {
	Cmd      string
	ExitCode int
	Stderr   string
	TimedOut bool
	Timeout  time.Duration
}

func (e *CommandError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("command timed out after %s: %s", e.Timeout, e.Cmd)
	}
	return fmt.Sprintf("command failed with exit code %d: %s\nError: %s", e.ExitCode, e.Cmd, strings.TrimSpace(e.Stderr))
}

// ExecuteCommand runs name with args in dir and returns its trimmed stdout.
// A zero timeout means no deadline beyond ctx.
func ExecuteCommand(ctx context.Context, dir string, timeout time.Duration, name string, args ...string) (string, error) {
	cmdline := strings.TrimSpace(name + " " + strings.Join(args, " "))
	logger.Debug("Executing command", "cmd", cmdline, "dir", dir)

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c := exec.CommandContext(runCtx, name, args...)
	c.Dir = dir
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	if err == nil {
		return strings.TrimSpace(stdout.String()), nil
	}

	// parent cancellation is an interrupt, not a command failure
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("%s: %w", cmdline, ctxErr)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "", &CommandError{Cmd: cmdline, TimedOut: true, Timeout: timeout, Stderr: stderr.String(), ExitCode: -1}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return "", &CommandError{Cmd: cmdline, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
	}
	return "", fmt.Errorf("failed to run %s: %w", cmdline, err)
}
