package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Gauge is the part of a prometheus gauge the monitor needs.
type Gauge interface {
	Set(float64)
}

// ProcessMonitorWorker samples the memory and CPU of the current process.
type ProcessMonitorWorker struct {
	log      *slog.Logger
	interval time.Duration
	rss      Gauge
	cpu      Gauge
}

func NewProcessMonitorWorker(log *slog.Logger, interval time.Duration, rss, cpu Gauge) *ProcessMonitorWorker {
	return &ProcessMonitorWorker{log: log, interval: interval, rss: rss, cpu: cpu}
}

func (w *ProcessMonitorWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.rss.Set(float64(rss))
			w.cpu.Set(cpu)
		}
	}
}

// selfStats retrieves the resident memory and CPU usage of the process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
