package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackAndExecutions(t *testing.T) {
	idx := New()
	idx.Track("sess-1", "exec-a")
	idx.Track("sess-1", "exec-b")
	idx.Track("sess-2", "exec-c")

	assert.ElementsMatch(t, []string{"exec-a", "exec-b"}, idx.Executions("sess-1"))
	assert.ElementsMatch(t, []string{"exec-c"}, idx.Executions("sess-2"))
	assert.Equal(t, 2, idx.SessionCount())
}

func TestTrackIgnoresBlankSession(t *testing.T) {
	idx := New()
	idx.Track("", "exec-a")

	assert.Equal(t, 0, idx.SessionCount())
	assert.Nil(t, idx.Executions(""))
}

func TestUntrackPrunesEmptySession(t *testing.T) {
	idx := New()
	idx.Track("sess-1", "exec-a")
	idx.Untrack("sess-1", "exec-a")

	assert.Equal(t, 0, idx.SessionCount())
	assert.Nil(t, idx.Executions("sess-1"))
}

func TestForgetReturnsAndClearsExecutions(t *testing.T) {
	idx := New()
	idx.Track("sess-1", "exec-a")
	idx.Track("sess-1", "exec-b")

	got := idx.Forget("sess-1")

	assert.ElementsMatch(t, []string{"exec-a", "exec-b"}, got)
	assert.Equal(t, 0, idx.SessionCount())
	assert.Nil(t, idx.Forget("sess-1"))
}

func TestUntrackUnknownSessionIsNoop(t *testing.T) {
	idx := New()
	idx.Untrack("missing", "exec-a")
	assert.Equal(t, 0, idx.SessionCount())
}
