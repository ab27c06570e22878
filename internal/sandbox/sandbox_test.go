package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxExpired(t *testing.T) {
	sb := Sandbox{CreatedAt: time.Now().Add(-2 * time.Minute), Timeout: 30 * time.Second}
	assert.True(t, sb.Expired(30*time.Second))
	assert.False(t, sb.Expired(5*time.Minute))
}

func TestBuildHostConfigAppliesHardeningProfile(t *testing.T) {
	hc, err := buildHostConfig(hardeningProfile{MemoryBytes: 256 * 1024 * 1024, CPUCores: 1, PidsLimit: 64})
	require.NoError(t, err)

	assert.Equal(t, "none", string(hc.NetworkMode))
	assert.Equal(t, []string{"ALL"}, []string(hc.CapDrop))
	assert.ElementsMatch(t, []string{"CHOWN", "SETUID", "SETGID"}, hc.CapAdd)
	assert.Contains(t, hc.SecurityOpt, "no-new-privileges:true")
	assert.Equal(t, hc.Resources.Memory, hc.Resources.MemorySwap)
	assert.EqualValues(t, 256*1024*1024, hc.Resources.Memory)
	assert.EqualValues(t, 1_000_000_000, hc.Resources.NanoCPUs)
	require.NotNil(t, hc.Resources.PidsLimit)
	assert.EqualValues(t, 64, *hc.Resources.PidsLimit)
	assert.Contains(t, hc.Tmpfs, workDir)
}

func TestBuildHostConfigRejectsNonPositiveMemory(t *testing.T) {
	_, err := buildHostConfig(hardeningProfile{MemoryBytes: 0})
	assert.Error(t, err)
}

func TestBuildHostConfigDefaultsMissingLimits(t *testing.T) {
	hc, err := buildHostConfig(hardeningProfile{MemoryBytes: 128 * 1024 * 1024})
	require.NoError(t, err)
	require.NotNil(t, hc.Resources.PidsLimit)
	assert.EqualValues(t, 64, *hc.Resources.PidsLimit)
	assert.EqualValues(t, 500_000_000, hc.Resources.NanoCPUs)
}

func TestCleanupUntrackedExecutionIsNoop(t *testing.T) {
	m := &Manager{tracked: make(map[string]*tracked)}
	m.Cleanup("never-created")
	assert.Equal(t, 0, m.ActiveCount())
}

func TestCleanupSessionIgnoresBlank(t *testing.T) {
	m := &Manager{tracked: make(map[string]*tracked)}
	m.tracked["exec-1"] = &tracked{sandbox: Sandbox{ExecutionID: "exec-1", SessionID: "sess-1"}}
	m.CleanupSession("")
	assert.Equal(t, 1, m.ActiveCount())
}

func TestLookupMissingReturnsFalse(t *testing.T) {
	m := &Manager{tracked: make(map[string]*tracked)}
	_, ok := m.Lookup("missing")
	assert.False(t, ok)
}
