// Package monitor samples process memory and enforces the memory ceiling.
package monitor

// Probe reads the resident memory of a live process in KB.
type Probe interface {
	SampleKB(pid int) (int64, error)
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(pid int) (int64, error)

// SampleKB implements Probe.
func (f ProbeFunc) SampleKB(pid int) (int64, error) {
	return f(pid)
}
