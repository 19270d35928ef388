// Package shell implements an adapter.Adapter that shells out to an
// external renderer executable (spec.md §6.5's "external tool
// paths"). It is adapted from the teacher's
// pkg/health.ExecChecker — the same os/exec-plus-context.WithTimeout
// command-running shape, turned from a pass/fail health probe into a
// generation backend whose exit code classifies the failure.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/archi3d/archi3d/pkg/adapter"
)

// exitTempFail is the BSD sysexits.h EX_TEMPFAIL code; renderer
// binaries that exit with it are signaling a retryable condition
// (resource momentarily unavailable) rather than bad input.
const exitTempFail = 75

// Adapter shells out to a configured renderer executable, passing the
// job's used images and expecting it to write generated.glb into
// req.OutDir.
type Adapter struct {
	// ExecutablePath is the renderer binary, resolved from
	// config.Resolved.ToolPaths.
	ExecutablePath string
	// ExtraArgs are appended after the positional job arguments.
	ExtraArgs []string
	// Timeout bounds a single invocation (default 10 minutes).
	Timeout time.Duration
}

// New returns a shell Adapter invoking executablePath.
func New(executablePath string, extraArgs ...string) *Adapter {
	return &Adapter{
		ExecutablePath: executablePath,
		ExtraArgs:      extraArgs,
		Timeout:        10 * time.Minute,
	}
}

// Execute runs the renderer and classifies failures by exit code.
func (a *Adapter) Execute(ctx context.Context, req adapter.Request) (adapter.Result, error) {
	if a.ExecutablePath == "" {
		return adapter.Result{}, adapter.Permanent(fmt.Errorf("shell adapter: no executable configured for algo %q", req.Algo))
	}

	timeout := a.Timeout
	if timeout == 0 {
		timeout = 10 * time.Minute
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{
		"--job-id", req.JobID,
		"--out-dir", req.OutDir,
	}, a.ExtraArgs...)
	for _, img := range req.UsedImages {
		args = append(args, "--image", filepath.Join(req.Workspace, img))
	}

	cmd := exec.CommandContext(execCtx, a.ExecutablePath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		wrapped := fmt.Errorf("renderer %q failed: %w (stderr: %s)", a.ExecutablePath, err, stderr.String())
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == exitTempFail {
			return adapter.Result{}, adapter.Transient(wrapped)
		}
		if execCtx.Err() != nil {
			return adapter.Result{}, adapter.Transient(fmt.Errorf("renderer %q timed out: %w", a.ExecutablePath, execCtx.Err()))
		}
		return adapter.Result{}, adapter.Permanent(wrapped)
	}

	glbPath := filepath.Join(req.OutDir, "generated.glb")
	return adapter.Result{
		GeneratedGLB: glbPath,
		AlgoVersion:  "shell",
	}, nil
}
