package sandbox

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// reaperLoop runs the periodic two-sweep reaper: an internal sweep over the
// tracked map, then an external sweep listing every container labelled for
// this service whose created_at label is stale, using a typed Docker SDK
// ContainerList call with a label filter.
func (m *Manager) reaperLoop() {
	defer close(m.reaperDone)

	ticker := time.NewTicker(m.cfg.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.reaperStop:
			return
		case <-ticker.C:
			m.sweepInternal()
			m.sweepExternal()
		}
	}
}

func (m *Manager) sweepInternal() {
	m.mu.RLock()
	var expired []string
	for execID, t := range m.tracked {
		if t.sandbox.Expired(m.cfg.ReaperGrace) {
			expired = append(expired, execID)
		}
	}
	m.mu.RUnlock()

	for _, execID := range expired {
		m.log.Info("reaper: internal sweep removing expired sandbox", zap.String("execution_id", execID))
		m.Cleanup(execID)
		if m.metrics != nil {
			m.metrics.ObserveReap("internal")
		}
	}
}

// externalSweepAge is how old an untracked, service-labelled container must
// be before the external sweep force-removes it.
const externalSweepAge = 5 * time.Minute

func (m *Manager) sweepExternal() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	containers, err := listServiceContainers(ctx, m.client, m.cfg.ServiceTag)
	if err != nil {
		m.log.Warn("reaper: external sweep list failed", zap.Error(err))
		return
	}

	now := time.Now()
	for _, c := range containers {
		createdAtStr, ok := c.Labels[LabelCreatedAt]
		if !ok {
			continue
		}
		createdAtUnix, err := strconv.ParseInt(createdAtStr, 10, 64)
		if err != nil {
			continue
		}
		createdAt := time.Unix(createdAtUnix, 0)
		if now.Sub(createdAt) < externalSweepAge {
			continue
		}

		execID := c.Labels[LabelExecution]
		m.mu.RLock()
		_, stillTracked := m.tracked[execID]
		m.mu.RUnlock()
		if stillTracked {
			// The internal sweep owns tracked sandboxes; only remove what
			// our own bookkeeping has already lost track of.
			continue
		}

		m.log.Info("reaper: external sweep removing orphaned container",
			zap.String("container_id", c.ID), zap.String("execution_id", execID))
		m.removeContainer(c.ID)
		if m.metrics != nil {
			m.metrics.ObserveReap("external")
		}
	}
}
