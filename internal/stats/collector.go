// Package stats samples process resource usage during a run and
// reports peak values at the end.
package stats

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/process"
)

// Summary holds the peak resource usage observed over a run.
type Summary struct {
	Started  time.Time
	Finished time.Time

	PeakHeapAlloc  uint64
	PeakRSS        uint64
	PeakCPUPercent float64
	AvgCPUPercent  float64
	PeakGoroutines int
	GCCycles       uint32
	Samples        int
}

func (s Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run duration:    %s\n", s.Finished.Sub(s.Started).Round(time.Millisecond))
	fmt.Fprintf(&sb, "peak heap:       %s\n", humanize.IBytes(s.PeakHeapAlloc))
	fmt.Fprintf(&sb, "peak rss:        %s\n", humanize.IBytes(s.PeakRSS))
	fmt.Fprintf(&sb, "cpu peak/avg:    %.1f%% / %.1f%%\n", s.PeakCPUPercent, s.AvgCPUPercent)
	fmt.Fprintf(&sb, "peak goroutines: %d\n", s.PeakGoroutines)
	fmt.Fprintf(&sb, "gc cycles:       %d (%d samples)\n", s.GCCycles, s.Samples)
	return sb.String()
}

// Collector periodically samples memory and cpu usage of the current
// process.
type Collector struct {
	interval time.Duration
	proc     *process.Process

	mu       sync.Mutex
	summary  Summary
	totalCPU float64

	stop chan struct{}
	done chan struct{}
}

func NewCollector(interval time.Duration) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to get process info: %w", err)
	}
	return &Collector{
		interval: interval,
		proc:     proc,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (c *Collector) Start() {
	c.summary.Started = time.Now()
	go c.loop()
}

func (c *Collector) loop() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample()
	for {
		select {
		case <-c.stop:
			c.sample()
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *Collector) sample() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.mu.Lock()
	defer c.mu.Unlock()

	s := &c.summary
	s.Samples++
	s.PeakHeapAlloc = max(s.PeakHeapAlloc, mem.HeapAlloc)
	s.GCCycles = mem.NumGC
	s.PeakGoroutines = max(s.PeakGoroutines, runtime.NumGoroutine())

	if info, err := c.proc.MemoryInfo(); err == nil && info != nil {
		s.PeakRSS = max(s.PeakRSS, info.RSS)
	}
	if pct, err := c.proc.CPUPercent(); err == nil {
		s.PeakCPUPercent = max(s.PeakCPUPercent, pct)
		c.totalCPU += pct
	}
}

// Stop ends sampling and returns the summary.
func (c *Collector) Stop() Summary {
	close(c.stop)
	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()

	c.summary.Finished = time.Now()
	if c.summary.Samples > 0 {
		c.summary.AvgCPUPercent = c.totalCPU / float64(c.summary.Samples)
	}
	return c.summary
}
