package engine

import (
	"time"

	"codeexec/internal/execution/sandbox/monitor"
)

const (
	defaultOutputMaxBytes int64 = 8 * 1024 * 1024
	defaultWaitDelay            = 2 * time.Second
)

// Config controls process runner behavior.
type Config struct {
	// SampleInterval is the memory polling period.
	SampleInterval time.Duration
	// OutputMaxBytes caps each of stdout and stderr; the rest is drained and dropped.
	OutputMaxBytes int64
	// WaitDelay bounds how long Wait blocks on pipes held open by descendants.
	WaitDelay time.Duration
	// EnableRlimits applies backstop rlimits to the child where supported.
	EnableRlimits bool
	// InitHelper is the path of the exec-init shim. When set, every child is
	// started through it so SeccompProfile is installed before the program runs.
	InitHelper     string
	SeccompProfile string
	Probe          monitor.Probe
}

func (c Config) withDefaults() Config {
	if c.SampleInterval <= 0 {
		c.SampleInterval = monitor.DefaultInterval
	}
	if c.OutputMaxBytes <= 0 {
		c.OutputMaxBytes = defaultOutputMaxBytes
	}
	if c.WaitDelay <= 0 {
		c.WaitDelay = defaultWaitDelay
	}
	if c.Probe == nil {
		c.Probe = monitor.DefaultProbe()
	}
	return c
}
