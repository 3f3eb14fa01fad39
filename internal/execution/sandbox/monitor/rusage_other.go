//go:build !linux && !darwin

package monitor

import "os"

// PostExitPeakKB is unavailable here; the polled peak is used instead.
func PostExitPeakKB(state *os.ProcessState) int64 {
	return 0
}
