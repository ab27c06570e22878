package sandbox

import (
	"encoding/json"
	"io"

	"github.com/docker/docker/api/types/container"
)

func decodeJSON(r io.Reader, v *container.StatsResponse) error {
	return json.NewDecoder(r).Decode(v)
}

// computeCPUPercent is the standard "docker stats" CPU percentage formula:
// delta of container usage over delta of system usage, scaled by the
// number of online CPUs.
func computeCPUPercent(stats container.StatsResponse) float64 {
	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)
	if sysDelta <= 0 || cpuDelta <= 0 {
		return 0
	}
	onlineCPUs := float64(stats.CPUStats.OnlineCPUs)
	if onlineCPUs == 0 {
		onlineCPUs = float64(len(stats.CPUStats.CPUUsage.PercpuUsage))
	}
	if onlineCPUs == 0 {
		onlineCPUs = 1
	}
	return (cpuDelta / sysDelta) * onlineCPUs * 100.0
}
