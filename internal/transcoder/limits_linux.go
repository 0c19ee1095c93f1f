//go:build linux

package transcoder

import (
	"github.com/containerd/cgroups"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/amankumarsingh77/transcodebot/internal/config"
)

// limiter confines transcoder subprocesses to a cgroup with the configured
// CPU shares and memory ceiling.
type limiter struct {
	control cgroups.Cgroup
}

func newLimiter(cfg *config.Config) (*limiter, error) {
	cpuPercent := cfg.Transcoder.CPUPercent
	memoryMB := cfg.Transcoder.MemoryMB
	if cpuPercent <= 0 && memoryMB <= 0 {
		return nil, nil
	}

	res := &specs.LinuxResources{}
	if cpuPercent > 0 {
		// 100% = 1024 shares; cgroup accepts 2..262144.
		shares := uint64(1024 * cpuPercent / 100)
		if shares < 2 {
			shares = 2
		}
		res.CPU = &specs.LinuxCPU{Shares: &shares}
	}
	if memoryMB > 0 {
		limit := int64(memoryMB) << 20
		res.Memory = &specs.LinuxMemory{Limit: &limit}
	}

	control, err := cgroups.New(cgroups.V1, cgroups.StaticPath("/transcodebot"), res)
	if err != nil {
		return nil, err
	}
	return &limiter{control: control}, nil
}

func (l *limiter) Attach(pid int) error {
	if l == nil {
		return nil
	}
	return l.control.Add(cgroups.Process{Pid: pid})
}

func (l *limiter) Close() {
	if l == nil {
		return
	}
	l.control.Delete()
}
