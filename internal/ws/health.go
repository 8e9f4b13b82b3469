package ws

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Health is the body of GET /api/health.
type Health struct {
	Status        string  `json:"status"`
	State         string  `json:"state"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Clients       int     `json:"clients"`
	Goroutines    int     `json:"goroutines"`

	RSSBytes          uint64  `json:"rss_bytes,omitempty"`
	CPUPercent        float64 `json:"cpu_percent"`
	Threads           int32   `json:"threads,omitempty"`
	SystemMemoryUsed  float64 `json:"system_memory_used_percent,omitempty"`
	SystemMemoryTotal uint64  `json:"system_memory_total_bytes,omitempty"`
}

// processStats fills the host-dependent fields. Individual probe failures
// leave their field at zero; a health check never fails because of them.
func processStats(h *Health) {
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil {
			h.RSSBytes = mi.RSS
		}
		if cpu, err := p.CPUPercent(); err == nil {
			h.CPUPercent = cpu
		}
		if n, err := p.NumThreads(); err == nil {
			h.Threads = n
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		h.SystemMemoryUsed = vm.UsedPercent
		h.SystemMemoryTotal = vm.Total
	}
}

func (s *Server) health() Health {
	h := Health{
		Status:        "ok",
		State:         s.runner.State().String(),
		UptimeSeconds: time.Since(s.started).Seconds(),
		Clients:       s.broadcaster.ClientCount(),
		Goroutines:    runtime.NumGoroutine(),
	}
	processStats(&h)
	return h
}
