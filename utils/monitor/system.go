// Package monitor samples Go runtime statistics into the system
// metric group.
package monitor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/polymev/flasharb/utils/metrics"
)

// SystemMonitor periodically publishes runtime statistics.
type SystemMonitor struct {
	interval time.Duration
	metrics  *metrics.SystemMetrics
	logger   *zap.Logger

	// lastNumGC is owned by the sampling goroutine.
	lastNumGC uint32

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Snapshot is a point-in-time view of the runtime counters.
type Snapshot struct {
	Goroutines  int
	HeapAlloc   uint64
	HeapObjects uint64
	Sys         uint64
	NumGC       uint32
}

// NewSystemMonitor builds a monitor that reports into m every
// interval. A non-positive interval defaults to one second.
func NewSystemMonitor(m *metrics.SystemMetrics, logger *zap.Logger, interval time.Duration) *SystemMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &SystemMonitor{
		interval: interval,
		metrics:  m,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the sampling loop and returns immediately. The loop
// exits when ctx is cancelled or Stop is called.
func (m *SystemMonitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.logger.Debug("System monitor started", zap.Duration("interval", m.interval))
		m.collect()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.done:
				return
			case <-ticker.C:
				m.collect()
			}
		}
	}()
}

// Stop terminates the loop and waits for it to drain.
func (m *SystemMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
	m.wg.Wait()
}

func (m *SystemMonitor) collect() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	m.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))
	m.metrics.HeapAlloc.Set(float64(stats.HeapAlloc))
	m.metrics.HeapObjects.Set(float64(stats.HeapObjects))
	m.metrics.SysBytes.Set(float64(stats.Sys))

	// PauseNs is a circular buffer holding the most recent pauses.
	cycles := stats.NumGC - m.lastNumGC
	if cycles > uint32(len(stats.PauseNs)) {
		cycles = uint32(len(stats.PauseNs))
	}
	for i := uint32(0); i < cycles; i++ {
		pause := stats.PauseNs[(stats.NumGC-1-i)%uint32(len(stats.PauseNs))]
		m.metrics.GCPause.Observe(float64(pause) / float64(time.Second))
	}
	m.lastNumGC = stats.NumGC
}

// Snapshot reads the runtime counters without touching the metrics.
func (m *SystemMonitor) Snapshot() Snapshot {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return Snapshot{
		Goroutines:  runtime.NumGoroutine(),
		HeapAlloc:   stats.HeapAlloc,
		HeapObjects: stats.HeapObjects,
		Sys:         stats.Sys,
		NumGC:       stats.NumGC,
	}
}
