//go:build linux

package monitor

import (
	"os"
	"syscall"
)

// PostExitPeakKB returns the kernel-reported peak RSS of a reaped process.
// Linux reports ru_maxrss in kilobytes.
func PostExitPeakKB(state *os.ProcessState) int64 {
	if state == nil {
		return 0
	}
	usage, ok := state.SysUsage().(*syscall.Rusage)
	if !ok || usage == nil {
		return 0
	}
	return usage.Maxrss
}
