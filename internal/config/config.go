// Package config loads service configuration and enforces the execution
// ceilings the core is required to clamp requests to.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Ceilings are the hard limits every ExecutionRequest is clamped to.
type Ceilings struct {
	MaxTimeout   time.Duration
	MaxMemory    int64 // bytes
	MaxStdinSize int64 // bytes
}

// Config is the process-wide configuration for execcore.
type Config struct {
	DockerHost         string
	ServiceTag         string
	ReaperInterval     time.Duration
	ReaperGrace        time.Duration
	ContainerStopGrace time.Duration
	Ceilings           Ceilings
}

// Load reads a .env file if present (missing is not an error) and returns a
// Config built from environment variables, falling back to production-safe
// defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DockerHost:         envOr("DOCKER_HOST", "unix:///var/run/docker.sock"),
		ServiceTag:         envOr("EXECCORE_SERVICE_TAG", "execcore"),
		ReaperInterval:     envDuration("EXECCORE_REAPER_INTERVAL", 60*time.Second),
		ReaperGrace:        envDuration("EXECCORE_REAPER_GRACE", 30*time.Second),
		ContainerStopGrace: envDuration("EXECCORE_STOP_GRACE", 5*time.Second),
		Ceilings: Ceilings{
			MaxTimeout:   envDuration("EXECCORE_MAX_TIMEOUT", 120*time.Second),
			MaxMemory:    envInt64("EXECCORE_MAX_MEMORY_BYTES", 512*1024*1024),
			MaxStdinSize: envInt64("EXECCORE_MAX_STDIN_BYTES", 1024*1024),
		},
	}
}

// ClampTimeout enforces the timeout ceiling by clamping rather than
// rejecting values above it.
func (c Ceilings) ClampTimeout(requested time.Duration) time.Duration {
	if requested <= 0 {
		return c.MaxTimeout
	}
	if requested > c.MaxTimeout {
		return c.MaxTimeout
	}
	return requested
}

// ClampMemory enforces the memory ceiling.
func (c Ceilings) ClampMemory(requested int64) int64 {
	if requested <= 0 {
		return c.MaxMemory
	}
	if requested > c.MaxMemory {
		return c.MaxMemory
	}
	return requested
}

// ValidateStdin rejects stdin payloads over the ceiling rather than
// silently truncating them — truncating user stdin would be a silent
// correctness bug, not a resource-safety one.
func (c Ceilings) ValidateStdin(size int64) error {
	if size > c.MaxStdinSize {
		return &StdinTooLargeError{Size: size, Limit: c.MaxStdinSize}
	}
	return nil
}

// StdinTooLargeError reports a stdin payload over the service ceiling.
type StdinTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *StdinTooLargeError) Error() string {
	return "stdin size " + strconv.FormatInt(e.Size, 10) + " exceeds limit " + strconv.FormatInt(e.Limit, 10)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt64(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
