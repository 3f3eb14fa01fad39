// Package watchdog enforces the wall-clock limit of a run.
package watchdog

import (
	"sync/atomic"
	"time"
)

// Watchdog fires onExpire once when the limit elapses, unless stopped first.
type Watchdog struct {
	timer *time.Timer
	fired atomic.Bool
}

// Start arms a watchdog. A non-positive limit never fires.
func Start(limit time.Duration, onExpire func()) *Watchdog {
	w := &Watchdog{}
	if limit <= 0 || onExpire == nil {
		return w
	}
	w.timer = time.AfterFunc(limit, func() {
		w.fired.Store(true)
		onExpire()
	})
	return w
}

// Stop disarms the watchdog and reports whether it was stopped before firing.
func (w *Watchdog) Stop() bool {
	if w.timer == nil {
		return true
	}
	return w.timer.Stop()
}

// Fired reports whether the limit elapsed.
func (w *Watchdog) Fired() bool {
	return w.fired.Load()
}
