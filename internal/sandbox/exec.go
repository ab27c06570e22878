package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// CopyArchive extracts an in-memory tar archive into a sandbox's /app over
// the Docker control channel.
func (m *Manager) CopyArchive(ctx context.Context, executionID string, tarArchive []byte) error {
	sb, ok := m.Lookup(executionID)
	if !ok {
		return &ErrNotFound{ExecutionID: executionID}
	}
	return m.client.CopyToContainer(ctx, sb.ContainerID, workDir, bytes.NewReader(tarArchive), container.CopyToContainerOptions{})
}

// StepResult is the outcome of one exec'd command inside a sandbox.
type StepResult struct {
	ExitCode int
	Output   []byte
}

// RunStep execs cmd inside the sandbox, waits for it to finish, and
// returns its combined stdout+stderr and exit code. Used for setup steps,
// which run before the final command and whose failure is logged but does
// not itself fail the request.
func (m *Manager) RunStep(ctx context.Context, executionID string, cmd []string) (StepResult, error) {
	sb, ok := m.Lookup(executionID)
	if !ok {
		return StepResult{}, &ErrNotFound{ExecutionID: executionID}
	}

	execID, err := m.client.ContainerExecCreate(ctx, sb.ContainerID, container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   workDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return StepResult{}, fmt.Errorf("sandbox: exec create: %w", err)
	}

	attach, err := m.client.ContainerExecAttach(ctx, execID.ID, container.ExecStartOptions{})
	if err != nil {
		return StepResult{}, fmt.Errorf("sandbox: exec attach: %w", err)
	}
	defer attach.Close()

	var combined bytes.Buffer
	if _, err := stdcopy.StdCopy(&combined, &combined, attach.Reader); err != nil {
		return StepResult{}, fmt.Errorf("sandbox: exec read: %w", err)
	}

	inspect, err := m.client.ContainerExecInspect(ctx, execID.ID)
	if err != nil {
		return StepResult{}, fmt.Errorf("sandbox: exec inspect: %w", err)
	}

	return StepResult{ExitCode: inspect.ExitCode, Output: combined.Bytes()}, nil
}

// StartRunExec creates and starts the exec session for the sandbox's final
// run command, with stdin attached and streamed in before being closed.
// The returned attach lets the Executor/Stream Multiplexer read the
// demuxed stdout/stderr live rather than waiting for completion, which is
// the behavior RunStep intentionally does not provide.
func (m *Manager) StartRunExec(ctx context.Context, executionID string, cmd []string, stdin []byte) (*types.HijackedResponse, string, error) {
	sb, ok := m.Lookup(executionID)
	if !ok {
		return nil, "", &ErrNotFound{ExecutionID: executionID}
	}

	execID, err := m.client.ContainerExecCreate(ctx, sb.ContainerID, container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   workDir,
		AttachStdin:  len(stdin) > 0,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("sandbox: exec create: %w", err)
	}

	attach, err := m.client.ContainerExecAttach(ctx, execID.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("sandbox: exec attach: %w", err)
	}

	if len(stdin) > 0 {
		if _, err := attach.Conn.Write(stdin); err != nil {
			attach.Close()
			return nil, "", fmt.Errorf("sandbox: exec stdin write: %w", err)
		}
		_ = attach.CloseWrite()
	}

	return &attach, execID.ID, nil
}

// ExecExitCode returns the exec session's exit code. The caller has
// already drained the attach stream to EOF, so the process is done or very
// nearly so; the daemon may still briefly report Running while it records
// the exit, hence the short bounded poll.
func (m *Manager) ExecExitCode(ctx context.Context, execID string) (int, error) {
	deadline := time.Now().Add(2 * time.Second)
	for {
		inspect, err := m.client.ContainerExecInspect(ctx, execID)
		if err != nil {
			return 0, fmt.Errorf("sandbox: exec inspect: %w", err)
		}
		if !inspect.Running || time.Now().After(deadline) {
			return inspect.ExitCode, nil
		}
		select {
		case <-ctx.Done():
			return inspect.ExitCode, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
