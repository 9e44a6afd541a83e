package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Runner abstracts process execution so probing and rendering can be tested
// without the ffmpeg binaries installed.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner executes commands via os/exec and captures stdout.
type ExecRunner struct{}

// Run executes one command, returning stdout. On failure the error carries
// the tail of stderr for diagnostics.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), fmt.Errorf("%s exited with code %d: %s",
				name, exitErr.ExitCode(), tail(stderr.String(), 512))
		}
		return stdout.Bytes(), fmt.Errorf("%s failed: %v", name, err)
	}
	return stdout.Bytes(), nil
}

// tail returns at most n trailing bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
