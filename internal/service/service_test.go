package service

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"execcore/internal/config"
	"execcore/internal/executor"
)

func skipIfNoDocker(t *testing.T) {
	cmd := exec.Command("docker", "info")
	if err := cmd.Run(); err != nil {
		t.Skip("Docker not available, skipping service integration tests")
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := config.Config{
		ServiceTag:     "execcore-service-test",
		ReaperInterval: time.Hour,
		Ceilings: config.Ceilings{
			MaxTimeout:   120 * time.Second,
			MaxMemory:    512 * 1024 * 1024,
			MaxStdinSize: 1024 * 1024,
		},
	}
	svc, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestSupportedLanguagesIncludesPython(t *testing.T) {
	svc := newTestService(t)
	langs := svc.SupportedLanguages()
	_, ok := langs["python"]
	require.True(t, ok)
}

func TestValidateGoNativeDoesNotRequireDocker(t *testing.T) {
	svc := newTestService(t)
	result, err := svc.Validate(context.Background(), "fmt.Println(1)", "go")
	require.NoError(t, err)
	require.True(t, result.Valid)
}

func TestExecuteTracksAndUntracksSession(t *testing.T) {
	skipIfNoDocker(t)
	svc := newTestService(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	res := svc.Execute(ctx, ExecuteRequest{
		Source:      "print('hi')",
		Language:    "python",
		Timeout:     10 * time.Second,
		MemoryLimit: 128 * 1024 * 1024,
		SessionID:   "sess-1",
	})

	require.Equal(t, executor.StatusCompleted, res.Status)
	require.Equal(t, 0, svc.sessions.SessionCount())
}

func TestStatsReflectsActiveContainers(t *testing.T) {
	skipIfNoDocker(t)
	svc := newTestService(t)

	before := svc.Stats(context.Background())
	require.Equal(t, 0, before.ActiveContainers)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	svc.Execute(ctx, ExecuteRequest{
		Source:      "print('hi')",
		Language:    "python",
		Timeout:     10 * time.Second,
		MemoryLimit: 128 * 1024 * 1024,
	})

	after := svc.Stats(context.Background())
	require.GreaterOrEqual(t, after.TotalExecutions, int64(1))
}

func TestCleanupSessionRemovesTrackedExecutions(t *testing.T) {
	skipIfNoDocker(t)
	svc := newTestService(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events := svc.ExecuteStream(ctx, ExecuteRequest{
		Source:      "while True:\n    pass",
		Language:    "python",
		Timeout:     30 * time.Second,
		MemoryLimit: 128 * 1024 * 1024,
		SessionID:   "sess-2",
	})

	// Consume just the start event, then disconnect as if the caller hung up.
	<-events

	svc.CleanupSession("sess-2")
	require.Equal(t, 0, svc.sessions.SessionCount())
}
