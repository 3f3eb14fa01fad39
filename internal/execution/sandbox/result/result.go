// Package result defines sandbox execution results and outcome classification.
package result

// Outcome is the final classification of one execution attempt.
type Outcome string

const (
	OutcomeAccepted            Outcome = "Accepted"
	OutcomeCompilationError    Outcome = "CompilationError"
	OutcomeRuntimeError        Outcome = "RuntimeError"
	OutcomeTimeLimitExceeded   Outcome = "TimeLimitExceeded"
	OutcomeMemoryLimitExceeded Outcome = "MemoryLimitExceeded"
)

// Valid reports whether o is one of the closed set of outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeAccepted, OutcomeCompilationError, OutcomeRuntimeError,
		OutcomeTimeLimitExceeded, OutcomeMemoryLimitExceeded:
		return true
	}
	return false
}

const (
	TimeLimitExceededDetail   = "Time limit exceeded"
	MemoryLimitExceededDetail = "Memory limit exceeded"
	CompileTimeoutDetail      = "Compilation time limit exceeded"
)

// Termination identifies which terminal event ended a run.
// Exactly one is claimed per process.
type Termination int32

const (
	TerminationNone Termination = iota
	TerminationExited
	TerminationTimeLimit
	TerminationMemoryLimit
	TerminationStartFailed
	TerminationCanceled
)

func (t Termination) String() string {
	switch t {
	case TerminationExited:
		return "exited"
	case TerminationTimeLimit:
		return "time_limit"
	case TerminationMemoryLimit:
		return "memory_limit"
	case TerminationStartFailed:
		return "start_failed"
	case TerminationCanceled:
		return "canceled"
	default:
		return "none"
	}
}

// RunResult captures the raw terminal state of one child process.
type RunResult struct {
	ExitCode int
	// Signal names the signal that terminated the process, if any.
	Signal       string
	Stdout       string
	Stderr       string
	PeakMemoryKB int64
	ExecTimeMs   float64
	Termination  Termination
	// StartErr is set when the process could not be spawned.
	StartErr string
}

// CompileResult contains compilation outcomes.
type CompileResult struct {
	OK       bool
	ExitCode int
	TimeMs   int64
	// Detail is the toolchain diagnostic stream, verbatim.
	Detail string
}

// ExecutionResult is the immutable result returned to callers.
type ExecutionResult struct {
	JobID        string  `json:"jobId,omitempty"`
	Language     string  `json:"language,omitempty"`
	Stdout       string  `json:"stdout"`
	PeakMemoryKB int64   `json:"peakMemoryKB"`
	ExecTimeMs   float64 `json:"execTimeMs"`
	Outcome      Outcome `json:"outcome"`
	ErrorDetail  string  `json:"errorDetail,omitempty"`
}
