//go:build !linux

package monitor

// DefaultProbe polls RSS through gopsutil.
func DefaultProbe() Probe {
	return NewProcessProbe()
}
