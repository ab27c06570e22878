// Package session maintains a weak, non-owning index from client session
// id to the set of execution ids submitted under it, so a caller can ask to
// clean up "everything session X started" without the Container Manager or
// Executor knowing sessions exist at all.
package session

import "sync"

// Index groups execution ids by session id. It is not an ownership
// relation: removing an execution from the index does not touch the
// sandbox itself, and a session with no tracked executions simply has no
// entry.
type Index struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

// New returns an empty Index.
func New() *Index {
	return &Index{sets: make(map[string]map[string]struct{})}
}

// Track records that executionID was submitted under sessionID. A blank
// sessionID is a no-op: anonymous executions are not grouped.
func (idx *Index) Track(sessionID, executionID string) {
	if sessionID == "" {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	set, ok := idx.sets[sessionID]
	if !ok {
		set = make(map[string]struct{})
		idx.sets[sessionID] = set
	}
	set[executionID] = struct{}{}
}

// Untrack removes a single execution id from a session's set, pruning the
// session entry entirely once its set is empty.
func (idx *Index) Untrack(sessionID, executionID string) {
	if sessionID == "" {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	set, ok := idx.sets[sessionID]
	if !ok {
		return
	}
	delete(set, executionID)
	if len(set) == 0 {
		delete(idx.sets, sessionID)
	}
}

// Executions returns a snapshot of the execution ids tracked under
// sessionID.
func (idx *Index) Executions(sessionID string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	set, ok := idx.sets[sessionID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Forget removes a session's entry entirely, returning the execution ids it
// held so the caller can clean each one up.
func (idx *Index) Forget(sessionID string) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	set, ok := idx.sets[sessionID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	delete(idx.sets, sessionID)
	return out
}

// SessionCount reports how many sessions currently have tracked executions.
func (idx *Index) SessionCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.sets)
}
