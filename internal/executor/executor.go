// Package executor implements the Executor: the central state machine that
// drives one code execution from language lookup through cleanup, exposed
// as two presentations of the same pipeline — a collected ExecutionResult
// and a lazy ExecutionEvent stream.
package executor

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"execcore/internal/archive"
	"execcore/internal/config"
	"execcore/internal/logging"
	"execcore/internal/prepare"
	"execcore/internal/registry"
	"execcore/internal/sandbox"
	"execcore/internal/stats"
	"execcore/internal/stream"
)

// Request is one execution request, already carrying a caller-assigned
// execution id (the facade owns id generation so it can correlate with
// session tracking before the Executor ever runs).
type Request struct {
	ExecutionID string
	SessionID   string
	Source      string
	Language    string
	Stdin       []byte
	Timeout     time.Duration
	MemoryBytes int64
}

// metricsSink is the subset of internal/metrics.Metrics the Executor needs,
// kept narrow so tests can supply a stub instead of a real Prometheus
// registry.
type metricsSink interface {
	ObserveExecution(language, status string, seconds float64)
	ExecutionStarted()
	ExecutionFinished()
}

// Executor runs one execution's full state machine against a Container
// Manager.
type Executor struct {
	registry *registry.Registry
	manager  *sandbox.Manager
	ceilings config.Ceilings
	stats    *stats.Collector
	metrics  metricsSink
	log      *zap.Logger
}

// New builds an Executor. metrics may be nil, in which case execution
// durations are counted in stats only, not exported to Prometheus.
func New(reg *registry.Registry, mgr *sandbox.Manager, ceilings config.Ceilings, st *stats.Collector, m metricsSink) *Executor {
	if st == nil {
		st = stats.New()
	}
	return &Executor{
		registry: reg,
		manager:  mgr,
		ceilings: ceilings,
		stats:    st,
		metrics:  m,
		log:      logging.L().Named("executor"),
	}
}

// Execute runs req to completion and returns the collected result. It never
// returns an error itself for request-level failures (language lookup,
// sandbox create, injection) — those are reported as Status ERROR in the
// result, matching the "Executor converts every internal error into an
// ExecutionResult" contract.
func (e *Executor) Execute(ctx context.Context, req Request) ExecutionResult {
	events := make(chan ExecutionEvent, 64)
	go func() {
		defer close(events)
		e.run(ctx, req, events)
	}()
	return collect(req.ExecutionID, events)
}

// ExecuteStream runs req and returns the ordered event channel. The channel
// is closed after exactly one terminal event. Cancelling ctx cascades into
// forced sandbox cleanup and no further events.
func (e *Executor) ExecuteStream(ctx context.Context, req Request) <-chan ExecutionEvent {
	events := make(chan ExecutionEvent, 64)
	go func() {
		defer close(events)
		e.run(ctx, req, events)
	}()
	return events
}

// collect drains an event stream into a single ExecutionResult, decoding
// any hex-tagged output chunks back into raw bytes.
func collect(executionID string, events <-chan ExecutionEvent) ExecutionResult {
	res := ExecutionResult{ExecutionID: executionID}
	var stdout, stderr bytes.Buffer

	for ev := range events {
		switch ev.Type {
		case EventOutput:
			data := ev.Data
			if ev.Encoding == "hex" {
				decoded, err := hex.DecodeString(string(ev.Data))
				if err == nil {
					data = decoded
				}
			}
			switch ev.Fd {
			case stream.Stdout:
				stdout.Write(data)
			case stream.Stderr:
				stderr.Write(data)
			}
		case EventExit:
			res.ExitCode = ev.ExitCode
		case EventComplete:
			res.Status = StatusCompleted
			res.Duration = ev.Duration
			res.PeakMemoryBytes = ev.PeakMemoryBytes
		case EventTimeout:
			res.Status = StatusTimeout
			res.Duration = ev.Duration
			res.PeakMemoryBytes = ev.PeakMemoryBytes
		case EventError:
			res.Status = StatusErrored
			res.Duration = ev.Duration
			res.Error = ev.Message
			res.PeakMemoryBytes = ev.PeakMemoryBytes
		}
	}

	res.Stdout = stdout.Bytes()
	res.Stderr = stderr.Bytes()
	return res
}

// run drives the state machine once, emitting events to the caller's
// channel. It guarantees the sandbox is cleaned up on every exit path and
// emits exactly one terminal event.
func (e *Executor) run(ctx context.Context, req Request, events chan<- ExecutionEvent) {
	start := time.Now()

	emit := func(ev ExecutionEvent) {
		// A cancelled consumer gets no further events, terminal included.
		if ctx.Err() != nil {
			return
		}
		ev.ExecutionID = req.ExecutionID
		ev.Timestamp = time.Now()
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	done := e.stats.Start()
	if e.metrics != nil {
		e.metrics.ExecutionStarted()
	}
	var peakMemory int64

	finish := func(status Status, exitCode int, errMsg string) {
		wall := time.Since(start)

		outcome := stats.Errored
		switch status {
		case StatusCompleted:
			outcome = stats.Collected
		case StatusTimeout:
			outcome = stats.TimedOut
		}
		done(outcome, wall, peakMemory)

		if e.metrics != nil {
			e.metrics.ExecutionFinished()
			e.metrics.ObserveExecution(req.Language, string(status), wall.Seconds())
		}

		evType := EventError
		switch status {
		case StatusCompleted:
			evType = EventComplete
		case StatusTimeout:
			evType = EventTimeout
		}
		emit(ExecutionEvent{Type: evType, Message: errMsg, ExitCode: exitCode, Duration: wall, PeakMemoryBytes: peakMemory})
	}

	emit(ExecutionEvent{Type: EventStart})

	spec, err := e.registry.Lookup(req.Language)
	if err != nil {
		finish(StatusErrored, 0, err.Error())
		return
	}

	timeout := e.ceilings.ClampTimeout(req.Timeout)
	memBytes := e.ceilings.ClampMemory(req.MemoryBytes)
	if err := e.ceilings.ValidateStdin(int64(len(req.Stdin))); err != nil {
		finish(StatusErrored, 0, err.Error())
		return
	}

	content, fileName := prepare.Prepare(req.Source, spec)
	emit(ExecutionEvent{Type: EventStatus, Message: string(statePrepared)})

	sb, err := e.manager.Create(ctx, sandbox.CreateOptions{
		ExecutionID: req.ExecutionID,
		SessionID:   req.SessionID,
		Spec:        spec,
		Timeout:     timeout,
		MemoryBytes: memBytes,
	})
	if err != nil {
		finish(StatusErrored, 0, err.Error())
		return
	}
	defer e.manager.Cleanup(sb.ExecutionID)
	emit(ExecutionEvent{Type: EventStatus, Message: string(stateCreated)})

	files := []archive.File{{Name: fileName, Data: content}}
	for _, aux := range spec.AuxFiles {
		files = append(files, archive.File{Name: aux.Name, Data: []byte(aux.Content)})
	}
	tarBytes, err := archive.Build(files...)
	if err != nil {
		finish(StatusErrored, 0, err.Error())
		return
	}
	if err := e.manager.CopyArchive(ctx, sb.ExecutionID, tarBytes); err != nil {
		finish(StatusErrored, 0, err.Error())
		return
	}
	emit(ExecutionEvent{Type: EventStatus, Message: string(stateInjected)})

	for _, step := range spec.Setup {
		cmd := registry.Render(step.Command, fileName)
		emit(ExecutionEvent{Type: EventSetup, Command: cmd})
		result, stepErr := e.manager.RunStep(ctx, sb.ExecutionID, cmd)
		if stepErr != nil {
			e.log.Warn("setup step failed", zap.String("execution_id", req.ExecutionID), zap.Error(stepErr))
			continue
		}
		if result.ExitCode != 0 {
			e.log.Warn("setup step exited non-zero",
				zap.String("execution_id", req.ExecutionID),
				zap.Int("exit_code", result.ExitCode))
		}
	}
	emit(ExecutionEvent{Type: EventStatus, Message: string(stateSetup)})

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attach, execID, err := e.manager.StartRunExec(runCtx, sb.ExecutionID, registry.Render(spec.RunCommand, fileName), req.Stdin)
	if err != nil {
		finish(StatusErrored, 0, err.Error())
		return
	}
	defer attach.Close()
	emit(ExecutionEvent{Type: EventStatus, Message: string(stateRunning)})

	demux := stream.NewDemuxer(attach.Reader)
	readDone := make(chan error, 1)
	go func() {
		for {
			ev, err := demux.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					readDone <- nil
					return
				}
				readDone <- err
				return
			}
			if len(ev.Data) == 0 {
				continue
			}
			emit(ExecutionEvent{Type: EventOutput, Fd: ev.Fd, Data: ev.Data, Encoding: ev.Encoding})
		}
	}()

	select {
	case readErr := <-readDone:
		flushStream(demux, emit)
		if readErr != nil {
			finish(StatusErrored, 0, readErr.Error())
			return
		}
		exitCode, _ := e.manager.ExecExitCode(context.Background(), execID)
		peakMemory = e.peakMemory(sb.ExecutionID)
		emit(ExecutionEvent{Type: EventExit, ExitCode: exitCode})
		finish(StatusCompleted, exitCode, "")

	case <-runCtx.Done():
		// Tear the attach down and wait for the reader goroutine before
		// touching the events channel again: the terminal event must be
		// last, and the channel is closed as soon as run returns.
		attach.Close()
		<-readDone
		peakMemory = e.peakMemory(sb.ExecutionID)
		if ctx.Err() != nil {
			finish(StatusErrored, 0, "execution cancelled")
			return
		}
		finish(StatusTimeout, 0, "execution exceeded timeout")
	}
}

func (e *Executor) peakMemory(executionID string) int64 {
	_, memBytes, err := e.manager.ContainerStats(context.Background(), executionID)
	if err != nil {
		return 0
	}
	return int64(memBytes)
}

func flushStream(demux *stream.Demuxer, emit func(ExecutionEvent)) {
	for _, fd := range []stream.Fd{stream.Stdout, stream.Stderr} {
		flushed := demux.Flush(fd)
		if len(flushed.Data) == 0 {
			continue
		}
		emit(ExecutionEvent{Type: EventOutput, Fd: flushed.Fd, Data: flushed.Data, Encoding: flushed.Encoding})
	}
}
