package monitor

import (
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessProbe samples RSS through gopsutil. It works on every platform
// gopsutil supports and is the default outside Linux.
type ProcessProbe struct{}

// NewProcessProbe creates a gopsutil backed probe.
func NewProcessProbe() ProcessProbe {
	return ProcessProbe{}
}

// SampleKB implements Probe.
func (ProcessProbe) SampleKB(pid int) (int64, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, err
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return int64(mem.RSS / 1024), nil
}
