package monitor

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is short enough to catch allocations that spike and
// exit within a few tens of milliseconds.
const DefaultInterval = 10 * time.Millisecond

// Target is a process that may be sampled only while it has not been reaped.
type Target interface {
	// ObserveLive runs fn with the pid while the process cannot be reaped.
	// It reports false once the process is gone.
	ObserveLive(fn func(pid int)) bool
}

// Options configures a memory monitor.
type Options struct {
	Probe    Probe
	Interval time.Duration
	// LimitKB of zero or less disables enforcement; sampling still runs.
	LimitKB int64
	// OnExceed runs once, on the monitor goroutine, with the peak that broke the limit.
	OnExceed func(peakKB int64)
}

// Monitor samples a target until stopped or until the limit is exceeded.
type Monitor struct {
	target   Target
	probe    Probe
	interval time.Duration
	limitKB  int64
	onExceed func(int64)

	peak     atomic.Int64
	exceeded atomic.Bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Start launches the sampling loop. The first sample is taken immediately.
func Start(target Target, opts Options) *Monitor {
	if opts.Probe == nil {
		opts.Probe = DefaultProbe()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	m := &Monitor{
		target:   target,
		probe:    opts.Probe,
		interval: opts.Interval,
		limitKB:  opts.LimitKB,
		onExceed: opts.OnExceed,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.loop()
	return m
}

// Stop ends sampling and waits for the loop to exit.
// It must not be called from OnExceed.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// PeakKB returns the highest sample seen so far.
func (m *Monitor) PeakKB() int64 {
	return m.peak.Load()
}

// Exceeded reports whether the limit was broken.
func (m *Monitor) Exceeded() bool {
	return m.exceeded.Load()
}

func (m *Monitor) loop() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		if m.sample() {
			return
		}
		select {
		case <-m.stop:
			return
		case <-ticker.C:
		}
	}
}

// sample takes one reading and reports whether the limit was exceeded.
// Probe errors count as a missed tick.
func (m *Monitor) sample() bool {
	var (
		kb  int64
		err error
	)
	alive := m.target.ObserveLive(func(pid int) {
		kb, err = m.probe.SampleKB(pid)
	})
	if !alive || err != nil || kb <= 0 {
		return false
	}
	peak := m.observe(kb)
	if m.limitKB > 0 && peak > m.limitKB {
		m.exceeded.Store(true)
		if m.onExceed != nil {
			m.onExceed(peak)
		}
		return true
	}
	return false
}

func (m *Monitor) observe(kb int64) int64 {
	for {
		cur := m.peak.Load()
		if kb <= cur {
			return cur
		}
		if m.peak.CompareAndSwap(cur, kb) {
			return kb
		}
	}
}

// ResolvePeakKB merges the polled peak with the post-exit measurement.
// The post-exit value wins when present; after a memory kill the larger of
// the two is reported so the figure is never below the sample that fired.
func ResolvePeakKB(polledKB, postExitKB int64, memoryKilled bool) int64 {
	if postExitKB <= 0 {
		return polledKB
	}
	if memoryKilled && polledKB > postExitKB {
		return polledKB
	}
	return postExitKB
}
