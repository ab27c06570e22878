package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"execcore/internal/logging"
	"execcore/internal/registry"
)

// LabelService, LabelExecution, LabelSession and LabelCreatedAt are the
// container labels the reaper's external sweep treats as the authority for
// orphan detection.
const (
	LabelService   = "execcore.service"
	LabelExecution = "execcore.execution_id"
	LabelSession   = "execcore.session_id"
	LabelCreatedAt = "execcore.created_at"
)

// Config configures the Container Manager.
type Config struct {
	DockerHost         string
	ServiceTag         string
	ReaperInterval     time.Duration
	ReaperGrace        time.Duration
	ContainerStopGrace time.Duration
	Metrics            MetricsSink
}

// MetricsSink is the subset of internal/metrics.Metrics the Container
// Manager reports to. Kept narrow and optional (nil is valid) so tests can
// run without a Prometheus registry.
type MetricsSink interface {
	ObserveImagePull(image, status string)
	ObserveReap(sweep string)
}

// CreateOptions describes one sandbox creation request.
type CreateOptions struct {
	ExecutionID string
	SessionID   string
	Spec        registry.LanguageSpec
	Timeout     time.Duration
	MemoryBytes int64
}

type tracked struct {
	sandbox Sandbox
}

// Manager is the Container Manager: it owns the Docker SDK client, the
// concurrent map of live sandboxes, the image-pull barrier, and the reaper.
type Manager struct {
	cfg    Config
	client *client.Client
	log    *zap.Logger

	mu      sync.RWMutex
	tracked map[string]*tracked

	pullGroup singleflight.Group
	metrics   MetricsSink

	reaperStop chan struct{}
	reaperDone chan struct{}
}

// New constructs a Manager and starts the reaper. Callers must call Close
// to stop the reaper and release the Docker client.
func New(cfg Config) (*Manager, error) {
	if cfg.ServiceTag == "" {
		cfg.ServiceTag = "execcore"
	}
	if cfg.ReaperInterval <= 0 {
		cfg.ReaperInterval = 60 * time.Second
	}
	if cfg.ReaperGrace <= 0 {
		cfg.ReaperGrace = 30 * time.Second
	}
	if cfg.ContainerStopGrace <= 0 {
		cfg.ContainerStopGrace = 5 * time.Second
	}

	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.DockerHost != "" {
		opts = append(opts, client.WithHost(cfg.DockerHost))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("sandbox: docker client init: %w", err)
	}

	m := &Manager{
		cfg:        cfg,
		client:     cli,
		log:        logging.L().Named("sandbox"),
		tracked:    make(map[string]*tracked),
		metrics:    cfg.Metrics,
		reaperStop: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}

	go m.reaperLoop()

	return m, nil
}

// Client exposes the underlying Docker SDK client. Injection, setup steps
// and the run exec go through the Manager's own wrappers in exec.go.
func (m *Manager) Client() *client.Client {
	return m.client
}

// Create creates and starts a hardened sandbox container. The container's
// entrypoint is a long-lived placeholder process so the Executor can copy
// code into it and exec setup/run steps afterward, rather than running the
// final command as the container's own Cmd.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Sandbox, error) {
	if opts.ExecutionID == "" {
		opts.ExecutionID = uuid.New().String()
	}
	if opts.Spec.Image == "" {
		return nil, fmt.Errorf("sandbox: language spec %s has no image", opts.Spec.ID)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = opts.Spec.DefaultTimeout
	}
	if opts.MemoryBytes <= 0 {
		opts.MemoryBytes = opts.Spec.DefaultMemory
	}

	if err := m.ensureImage(ctx, opts.Spec.Image); err != nil {
		return nil, err
	}

	cacheMounts, cacheEnv := renderCacheMounts(opts.Spec.CacheMounts)

	hostCfg, err := buildHostConfig(hardeningProfile{
		MemoryBytes: opts.MemoryBytes,
		CPUCores:    opts.Spec.CPUCores,
		PidsLimit:   opts.Spec.PidsLimit,
		CacheMounts: cacheMounts,
	})
	if err != nil {
		return nil, err
	}

	createdAt := time.Now()
	labels := map[string]string{
		LabelService:   m.cfg.ServiceTag,
		LabelExecution: opts.ExecutionID,
		LabelCreatedAt: strconv.FormatInt(createdAt.Unix(), 10),
	}
	if opts.SessionID != "" {
		labels[LabelSession] = opts.SessionID
	}

	containerName := m.cfg.ServiceTag + "-" + opts.ExecutionID

	var created container.CreateResponse
	createErr := withRetryOnce(ctx, func() error {
		var err error
		created, err = m.client.ContainerCreate(ctx, &container.Config{
			Image:           opts.Spec.Image,
			User:            nonRootUser,
			WorkingDir:      workDir,
			Cmd:             []string{"sleep", strconv.Itoa(int((opts.Timeout + m.cfg.ReaperGrace).Seconds()) + 30)},
			Env:             cacheEnv,
			Labels:          labels,
			NetworkDisabled: true,
			Tty:             false,
		}, hostCfg, &network.NetworkingConfig{}, nil, containerName)
		return err
	})
	if createErr != nil {
		return nil, fmt.Errorf("sandbox: container create: %w", createErr)
	}

	if err := m.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		_ = m.client.ContainerRemove(context.Background(), created.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("sandbox: container start: %w", err)
	}

	sb := Sandbox{
		ExecutionID: opts.ExecutionID,
		ContainerID: created.ID,
		SessionID:   opts.SessionID,
		Language:    opts.Spec.ID,
		Image:       opts.Spec.Image,
		CreatedAt:   createdAt,
		Timeout:     opts.Timeout,
		State:       StateRunning,
	}

	m.mu.Lock()
	m.tracked[opts.ExecutionID] = &tracked{sandbox: sb}
	m.mu.Unlock()

	m.log.Debug("sandbox created", zap.String("execution_id", opts.ExecutionID), zap.String("container_id", created.ID))

	return &sb, nil
}

// Lookup returns a copy of the tracked sandbox for an execution id.
func (m *Manager) Lookup(executionID string) (Sandbox, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tracked[executionID]
	if !ok {
		return Sandbox{}, false
	}
	return t.sandbox, true
}

// Cleanup stops and force-removes a sandbox. It is idempotent: cleaning up
// an execution id that is not tracked is a no-op, not an error.
func (m *Manager) Cleanup(executionID string) {
	m.mu.Lock()
	t, ok := m.tracked[executionID]
	if ok {
		delete(m.tracked, executionID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	m.removeContainer(t.sandbox.ContainerID)
}

// CleanupSession cleans up every sandbox tagged with sessionID.
func (m *Manager) CleanupSession(sessionID string) {
	if sessionID == "" {
		return
	}
	m.mu.Lock()
	var match []string
	for execID, t := range m.tracked {
		if t.sandbox.SessionID == sessionID {
			match = append(match, execID)
		}
	}
	m.mu.Unlock()

	for _, execID := range match {
		m.Cleanup(execID)
	}
}

// CleanupAll tears down every tracked sandbox, for use on shutdown.
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.tracked))
	for execID := range m.tracked {
		ids = append(ids, execID)
	}
	m.mu.Unlock()

	for _, execID := range ids {
		m.Cleanup(execID)
	}
}

// Logs returns the buffered stdout+stderr of a sandbox's container.
func (m *Manager) Logs(ctx context.Context, executionID string) ([]byte, error) {
	sb, ok := m.Lookup(executionID)
	if !ok {
		return nil, &ErrNotFound{ExecutionID: executionID}
	}
	rc, err := m.client.ContainerLogs(ctx, sb.ContainerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("sandbox: logs: %w", err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ActiveCount returns the number of currently tracked sandboxes.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tracked)
}

// Snapshot returns a copy of every tracked sandbox, for the Stats Collector
// and the reaper.
func (m *Manager) Snapshot() []Sandbox {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Sandbox, 0, len(m.tracked))
	for _, t := range m.tracked {
		out = append(out, t.sandbox)
	}
	return out
}

// ContainerStats returns a sandbox's live CPU percentage and memory usage
// in bytes, queried directly from the Docker daemon, never from a cached
// value.
func (m *Manager) ContainerStats(ctx context.Context, executionID string) (cpuPercent float64, memoryBytes uint64, err error) {
	sb, ok := m.Lookup(executionID)
	if !ok {
		return 0, 0, &ErrNotFound{ExecutionID: executionID}
	}
	resp, err := m.client.ContainerStats(ctx, sb.ContainerID, false)
	if err != nil {
		return 0, 0, fmt.Errorf("sandbox: container stats: %w", err)
	}
	defer resp.Body.Close()

	var stats container.StatsResponse
	if err := decodeJSON(resp.Body, &stats); err != nil {
		return 0, 0, fmt.Errorf("sandbox: decode stats: %w", err)
	}

	memoryBytes = stats.MemoryStats.Usage
	cpuPercent = computeCPUPercent(stats)
	return cpuPercent, memoryBytes, nil
}

// Close stops the reaper and closes the Docker client. Tracked sandboxes
// are left running; call CleanupAll first if a full teardown is wanted.
func (m *Manager) Close() error {
	close(m.reaperStop)
	<-m.reaperDone
	return m.client.Close()
}

func (m *Manager) removeContainer(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ContainerStopGrace+5*time.Second)
	defer cancel()

	grace := int(m.cfg.ContainerStopGrace.Seconds())
	if err := m.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &grace}); err != nil {
		m.log.Warn("sandbox stop failed, forcing remove", zap.String("container_id", containerID), zap.Error(err))
	}
	if err := m.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		m.log.Warn("sandbox remove failed", zap.String("container_id", containerID), zap.Error(err))
	}
}

// ensureImage verifies the image is present locally, pulling it if not.
// Concurrent first-uses of the same image coalesce into a single ImagePull
// via singleflight, so a stampede of first requests for a cold image only
// triggers one pull.
func (m *Manager) ensureImage(ctx context.Context, imageName string) error {
	_, _, err := m.client.ImageInspectWithRaw(ctx, imageName)
	if err == nil {
		return nil
	}

	_, pullErr, _ := m.pullGroup.Do(imageName, func() (interface{}, error) {
		var rc io.ReadCloser
		err := withRetryOnce(ctx, func() error {
			var err error
			rc, err = m.client.ImagePull(ctx, imageName, image.PullOptions{})
			return err
		})
		if err != nil {
			err = fmt.Errorf("sandbox: pull image %s: %w", imageName, err)
		} else {
			_, _ = io.Copy(io.Discard, rc)
			rc.Close()
		}
		if m.metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			m.metrics.ObserveImagePull(imageName, status)
		}
		return nil, err
	})
	return pullErr
}

// withRetryOnce retries fn exactly once if it fails with a transient
// network error.
func withRetryOnce(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !isTransient(err) {
		return err
	}
	select {
	case <-ctx.Done():
		return err
	default:
	}
	return fn()
}

func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// renderCacheMounts turns a language's shared package-cache declarations
// into named-volume mounts plus the env vars pointing its toolchain at
// them. The volumes are shared across sandboxes of the same language by
// name, which is a toolchain download cache, not a result cache: nothing a
// run writes there is ever read back as program output.
func renderCacheMounts(mounts []registry.CacheMount) ([]mount.Mount, []string) {
	if len(mounts) == 0 {
		return nil, nil
	}
	out := make([]mount.Mount, 0, len(mounts))
	var env []string
	for _, cm := range mounts {
		out = append(out, mount.Mount{
			Type:   mount.TypeVolume,
			Source: cm.Name,
			Target: cm.ContainerPath,
		})
		for k, v := range cm.Env {
			env = append(env, k+"="+v)
		}
	}
	return out, env
}

func listServiceContainers(ctx context.Context, cli *client.Client, serviceTag string) ([]types.Container, error) {
	f := filters.NewArgs()
	f.Add("label", LabelService+"="+serviceTag)
	return cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
}
