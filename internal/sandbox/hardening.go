package sandbox

import (
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
)

const (
	workDir          = "/app"
	workDirTmpfsSize = 100 * 1024 * 1024 // tmpfs working dir capped at 100MiB
	shmSize          = 64 * 1024 * 1024
)

// hardeningProfile describes the per-sandbox limits the HostConfig is built
// from. Every sandbox gets the same fixed security posture; only the
// resource numbers vary per request.
type hardeningProfile struct {
	MemoryBytes int64
	CPUCores    float64
	PidsLimit   int64
	CacheMounts []mount.Mount
}

// buildHostConfig renders the Container Manager's fixed hardening profile
// (network disabled, memory==swap, capability drop, no-new-privileges,
// bounded tmpfs /app) into a Docker HostConfig. The non-root uid/gid is not
// part of the HostConfig; Create sets it on the container Config.
func buildHostConfig(p hardeningProfile) (*container.HostConfig, error) {
	if p.MemoryBytes <= 0 {
		return nil, fmt.Errorf("sandbox: memory limit must be positive")
	}
	pidsLimit := p.PidsLimit
	if pidsLimit <= 0 {
		pidsLimit = 64
	}
	cpuCores := p.CPUCores
	if cpuCores <= 0 {
		cpuCores = 0.5
	}
	nanoCPUs := int64(cpuCores * 1_000_000_000)

	mounts := append([]mount.Mount{}, p.CacheMounts...)

	return &container.HostConfig{
		AutoRemove:      false,
		ReadonlyRootfs:  false,
		NetworkMode:     "none",
		SecurityOpt:     []string{"no-new-privileges:true"},
		CapDrop:         []string{"ALL"},
		CapAdd:          []string{"CHOWN", "SETUID", "SETGID"},
		Mounts:          mounts,
		ShmSize:         shmSize,
		// exec stays allowed on /app: compiled languages run binaries they
		// just built there. nosuid still holds.
		Tmpfs: map[string]string{workDir: fmt.Sprintf("rw,nosuid,size=%d", workDirTmpfsSize)},
		Resources: container.Resources{
			Memory:     p.MemoryBytes,
			MemorySwap: p.MemoryBytes, // swap == memory: no swap escape of the cap
			NanoCPUs:   nanoCPUs,
			PidsLimit:  &pidsLimit,
		},
	}, nil
}

// nonRootUser is the uid:gid every sandbox container runs as.
const nonRootUser = "1000:1000"
