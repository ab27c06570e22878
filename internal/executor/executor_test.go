package executor

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"execcore/internal/config"
	"execcore/internal/registry"
	"execcore/internal/sandbox"
	"execcore/internal/stats"
)

func skipIfNoDocker(t *testing.T) {
	cmd := exec.Command("docker", "info")
	if err := cmd.Run(); err != nil {
		t.Skip("Docker not available, skipping executor integration tests")
	}
}

func TestCollectAccumulatesOutputAndTerminalEvent(t *testing.T) {
	events := make(chan ExecutionEvent, 8)
	events <- ExecutionEvent{Type: EventStart}
	events <- ExecutionEvent{Type: EventOutput, Fd: 1, Data: []byte("hello ")}
	events <- ExecutionEvent{Type: EventOutput, Fd: 1, Data: []byte("world")}
	events <- ExecutionEvent{Type: EventOutput, Fd: 2, Data: []byte("warn")}
	events <- ExecutionEvent{Type: EventExit, ExitCode: 0}
	events <- ExecutionEvent{Type: EventComplete, Duration: 2 * time.Second}
	close(events)

	res := collect("exec-1", events)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, "hello world", string(res.Stdout))
	assert.Equal(t, "warn", string(res.Stderr))
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, 2*time.Second, res.Duration)
}

func TestCollectDecodesHexTaggedOutput(t *testing.T) {
	events := make(chan ExecutionEvent, 4)
	events <- ExecutionEvent{Type: EventOutput, Fd: 1, Data: []byte("ff00"), Encoding: "hex"}
	events <- ExecutionEvent{Type: EventComplete}
	close(events)

	res := collect("exec-2", events)
	assert.Equal(t, []byte{0xff, 0x00}, res.Stdout)
}

func TestCollectSurfacesErrorStatus(t *testing.T) {
	events := make(chan ExecutionEvent, 2)
	events <- ExecutionEvent{Type: EventError, Message: "boom"}
	close(events)

	res := collect("exec-3", events)
	assert.Equal(t, StatusErrored, res.Status)
	assert.Equal(t, "boom", res.Error)
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	mgr, err := sandbox.New(sandbox.Config{ServiceTag: "execcore-executor-test", ReaperInterval: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	return New(registry.New(), mgr, config.Ceilings{
		MaxTimeout:   120 * time.Second,
		MaxMemory:    512 * 1024 * 1024,
		MaxStdinSize: 1024 * 1024,
	}, stats.New(), nil)
}

func TestExecuteRunsPythonToCompletion(t *testing.T) {
	skipIfNoDocker(t)
	ex := newTestExecutor(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	res := ex.Execute(ctx, Request{
		ExecutionID: "it-exec-1",
		Source:      "print('hello from sandbox')",
		Language:    "python",
		Timeout:     10 * time.Second,
		MemoryBytes: 128 * 1024 * 1024,
	})

	require.Equal(t, StatusCompleted, res.Status)
	require.Equal(t, 0, res.ExitCode)
	require.Contains(t, string(res.Stdout), "hello from sandbox")
}

func TestExecuteTimesOutOnInfiniteLoop(t *testing.T) {
	skipIfNoDocker(t)
	ex := newTestExecutor(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	res := ex.Execute(ctx, Request{
		ExecutionID: "it-exec-2",
		Source:      "while True:\n    pass",
		Language:    "python",
		Timeout:     2 * time.Second,
		MemoryBytes: 128 * 1024 * 1024,
	})

	require.Equal(t, StatusTimeout, res.Status)
	require.Empty(t, res.Stdout)
	require.GreaterOrEqual(t, res.Duration, 2*time.Second)
}

func TestExecuteReportsErrorForUnknownLanguage(t *testing.T) {
	ex := newTestExecutor(t)

	res := ex.Execute(context.Background(), Request{
		ExecutionID: "it-exec-3",
		Source:      "print(1)",
		Language:    "cobol",
	})

	require.Equal(t, StatusErrored, res.Status)
	require.NotEmpty(t, res.Error)
}

func TestExecuteStreamEmitsStartBeforeTerminal(t *testing.T) {
	skipIfNoDocker(t)
	ex := newTestExecutor(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	events := ex.ExecuteStream(ctx, Request{
		ExecutionID: "it-exec-4",
		Source:      "print('x')",
		Language:    "python",
		Timeout:     10 * time.Second,
		MemoryBytes: 128 * 1024 * 1024,
	})

	var seen []EventType
	for ev := range events {
		seen = append(seen, ev.Type)
	}

	require.NotEmpty(t, seen)
	assert.Equal(t, EventStart, seen[0])
	last := seen[len(seen)-1]
	assert.Contains(t, []EventType{EventComplete, EventTimeout, EventError}, last)

	terminals := 0
	for _, ty := range seen {
		if ty == EventComplete || ty == EventTimeout || ty == EventError {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
}
