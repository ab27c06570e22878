package sandbox

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"execcore/internal/registry"
)

// skipIfNoDocker skips the test if Docker is not available.
func skipIfNoDocker(t *testing.T) {
	cmd := exec.Command("docker", "info")
	if err := cmd.Run(); err != nil {
		t.Skip("Docker not available, skipping sandbox manager tests")
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(Config{ServiceTag: "execcore-test", ReaperInterval: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManagerCreateAndCleanup(t *testing.T) {
	skipIfNoDocker(t)
	m := newTestManager(t)

	reg := registry.New()
	spec, err := reg.Lookup("python")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	sb, err := m.Create(ctx, CreateOptions{ExecutionID: "it-1", Spec: spec, Timeout: 10 * time.Second, MemoryBytes: spec.DefaultMemory})
	require.NoError(t, err)
	require.NotEmpty(t, sb.ContainerID)
	require.Equal(t, 1, m.ActiveCount())

	m.Cleanup("it-1")
	require.Equal(t, 0, m.ActiveCount())

	_, ok := m.Lookup("it-1")
	require.False(t, ok)
}

func TestManagerRunStepAndStartRunExec(t *testing.T) {
	skipIfNoDocker(t)
	m := newTestManager(t)

	reg := registry.New()
	spec, err := reg.Lookup("python")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	sb, err := m.Create(ctx, CreateOptions{ExecutionID: "it-2", Spec: spec, Timeout: 10 * time.Second, MemoryBytes: spec.DefaultMemory})
	require.NoError(t, err)
	defer m.Cleanup(sb.ExecutionID)

	result, err := m.RunStep(ctx, sb.ExecutionID, []string{"echo", "setup-ok"})
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)
}

func TestManagerCleanupSessionRemovesOnlyMatchingSession(t *testing.T) {
	skipIfNoDocker(t)
	m := newTestManager(t)

	reg := registry.New()
	spec, err := reg.Lookup("python")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = m.Create(ctx, CreateOptions{ExecutionID: "sess-a-1", SessionID: "sess-a", Spec: spec, Timeout: 10 * time.Second, MemoryBytes: spec.DefaultMemory})
	require.NoError(t, err)
	_, err = m.Create(ctx, CreateOptions{ExecutionID: "sess-b-1", SessionID: "sess-b", Spec: spec, Timeout: 10 * time.Second, MemoryBytes: spec.DefaultMemory})
	require.NoError(t, err)
	defer m.CleanupAll()

	m.CleanupSession("sess-a")

	_, aOK := m.Lookup("sess-a-1")
	_, bOK := m.Lookup("sess-b-1")
	require.False(t, aOK)
	require.True(t, bOK)
}
