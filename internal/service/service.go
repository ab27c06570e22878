// Package service is the facade: it composes the Language Registry, Code
// Preparer, Container Manager, Executor, Validator, Stats Collector, and
// Session index into the exact method set external callers are expected to
// drive (HTTP/WebSocket framing is not this repo's concern).
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"execcore/internal/config"
	"execcore/internal/executor"
	"execcore/internal/logging"
	"execcore/internal/metrics"
	"execcore/internal/registry"
	"execcore/internal/sandbox"
	"execcore/internal/session"
	"execcore/internal/stats"
	"execcore/internal/validate"
)

// containerGaugeSink is the subset of internal/metrics.Metrics the Service
// uses to publish per-container CPU/memory gauges on each Stats() call.
type containerGaugeSink interface {
	ObserveContainerUsage(containerID, language string, cpuPercent float64, memoryBytes uint64)
}

// Service is the single front door over the execution core.
type Service struct {
	registry  *registry.Registry
	manager   *sandbox.Manager
	executor  *executor.Executor
	validator *validate.Validator
	stats     *stats.Collector
	sessions  *session.Index
	ceilings  config.Ceilings
	metrics   containerGaugeSink
}

// New builds a Service from a loaded Config, constructing and wiring every
// collaborator. Callers must call Close on shutdown to stop the reaper and
// release the Docker client.
func New(cfg config.Config) (*Service, error) {
	m := metrics.Get()

	mgr, err := sandbox.New(sandbox.Config{
		DockerHost:         cfg.DockerHost,
		ServiceTag:         cfg.ServiceTag,
		ReaperInterval:     cfg.ReaperInterval,
		ReaperGrace:        cfg.ReaperGrace,
		ContainerStopGrace: cfg.ContainerStopGrace,
		Metrics:            m,
	})
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	st := stats.New()

	return &Service{
		registry:  reg,
		manager:   mgr,
		executor:  executor.New(reg, mgr, cfg.Ceilings, st, m),
		validator: validate.New(reg, mgr, m),
		stats:     st,
		sessions:  session.New(),
		ceilings:  cfg.Ceilings,
		metrics:   m,
	}, nil
}

// Close stops the reaper and releases the Docker client, forcibly removing
// any sandboxes still tracked.
func (s *Service) Close() error {
	s.manager.CleanupAll()
	return s.manager.Close()
}

// ExecuteRequest is the caller-facing shape for a single-shot or streaming
// execution request.
type ExecuteRequest struct {
	Source      string
	Language    string
	InputData   []byte
	Timeout     time.Duration
	MemoryLimit int64
	SessionID   string
}

// Execute runs source to completion and returns the collected result.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) executor.ExecutionResult {
	execID := uuid.New().String()
	s.sessions.Track(req.SessionID, execID)

	res := s.executor.Execute(ctx, executor.Request{
		ExecutionID: execID,
		SessionID:   req.SessionID,
		Source:      req.Source,
		Language:    req.Language,
		Stdin:       req.InputData,
		Timeout:     req.Timeout,
		MemoryBytes: req.MemoryLimit,
	})

	s.sessions.Untrack(req.SessionID, execID)
	return res
}

// ExecuteStream runs source and returns the ordered event stream, tracking
// the execution under req.SessionID for the duration of the run so a
// mid-stream disconnect can be cleaned up via CleanupSession.
func (s *Service) ExecuteStream(ctx context.Context, req ExecuteRequest) <-chan executor.ExecutionEvent {
	execID := uuid.New().String()
	s.sessions.Track(req.SessionID, execID)

	upstream := s.executor.ExecuteStream(ctx, executor.Request{
		ExecutionID: execID,
		SessionID:   req.SessionID,
		Source:      req.Source,
		Language:    req.Language,
		Stdin:       req.InputData,
		Timeout:     req.Timeout,
		MemoryBytes: req.MemoryLimit,
	})

	out := make(chan executor.ExecutionEvent, 64)
	go func() {
		defer close(out)
		defer s.sessions.Untrack(req.SessionID, execID)
		for ev := range upstream {
			out <- ev
		}
	}()
	return out
}

// Validate checks source's syntax without running it to completion.
func (s *Service) Validate(ctx context.Context, source, language string) (validate.Result, error) {
	return s.validator.Validate(ctx, source, language)
}

// SupportedLanguages returns the registry's full catalog summary.
func (s *Service) SupportedLanguages() map[string]registry.SupportedLanguage {
	return s.registry.SupportedLanguages()
}

// Stats is the external shape of get_stats(): monotonic counters plus
// live gauges recomputed from the Container Manager's tracked sandboxes.
type Stats struct {
	ActiveContainers     int
	TotalExecutions      int64
	AverageExecutionTime time.Duration
	MemoryUsageBytes     int64
	CPUUsagePercent      float64
}

// Stats recomputes gauges by querying the Container Manager for every live
// sandbox's resource usage, and folds in the counters from the Stats
// Collector. Non-blocking with respect to ongoing executions beyond the
// single lock acquisition inside the Manager and Collector.
func (s *Service) Stats(ctx context.Context) Stats {
	snap := s.stats.Snapshot()

	out := Stats{
		ActiveContainers: s.manager.ActiveCount(),
		TotalExecutions:  snap.TotalExecutions,
	}
	if snap.TotalExecutions > 0 {
		out.AverageExecutionTime = snap.TotalCPUTime / time.Duration(snap.TotalExecutions)
	}

	var totalMem int64
	var totalCPU float64
	var sampled int
	for _, sb := range s.manager.Snapshot() {
		cpuPct, memBytes, err := s.manager.ContainerStats(ctx, sb.ExecutionID)
		if err != nil {
			continue
		}
		totalMem += int64(memBytes)
		totalCPU += cpuPct
		sampled++
		if s.metrics != nil {
			s.metrics.ObserveContainerUsage(sb.ContainerID, sb.Language, cpuPct, memBytes)
		}
	}
	out.MemoryUsageBytes = totalMem
	if sampled > 0 {
		out.CPUUsagePercent = totalCPU / float64(sampled)
	}

	return out
}

// Logs returns the buffered stdout+stderr of a tracked execution's
// container.
func (s *Service) Logs(ctx context.Context, executionID string) ([]byte, error) {
	return s.manager.Logs(ctx, executionID)
}

// CleanupSession tears down every sandbox tracked under sessionID, for
// disconnect handling.
func (s *Service) CleanupSession(sessionID string) {
	for _, execID := range s.sessions.Forget(sessionID) {
		s.manager.Cleanup(execID)
	}
	// The session index and the Manager's own session label are kept in
	// sync, but a sandbox whose creation raced the Forget above (tracked by
	// label, not yet indexed) still gets swept here.
	s.manager.CleanupSession(sessionID)
	logging.L().Named("service").Info("session cleaned up", zap.String("session_id", sessionID))
}
