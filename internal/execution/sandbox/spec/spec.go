// Package spec defines the execution specification and resource limits.
package spec

// Limits describes the per-run ceilings enforced by the sandbox.
type Limits struct {
	TimeLimitMs   int64
	MemoryLimitKB int64
}

// RunSpec is the unified execution specification for one child process.
type RunSpec struct {
	JobID   string
	WorkDir string
	Cmd     []string
	// Env entries are appended to the service environment.
	Env    []string
	Stdin  string
	Limits Limits
}
