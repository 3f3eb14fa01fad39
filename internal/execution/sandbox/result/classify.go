package result

import (
	"fmt"
	"strings"

	"codeexec/internal/execution/sandbox/spec"
)

// Classify maps a raw run result onto exactly one outcome.
// Precedence: resource guard (whichever fired first) > non-zero exit > accepted.
// A natural exit whose post-exit peak exceeds the memory limit is still a
// memory violation.
func Classify(run RunResult, limits spec.Limits) ExecutionResult {
	res := ExecutionResult{
		PeakMemoryKB: run.PeakMemoryKB,
		ExecTimeMs:   run.ExecTimeMs,
	}

	switch run.Termination {
	case TerminationTimeLimit:
		res.Outcome = OutcomeTimeLimitExceeded
		res.ErrorDetail = TimeLimitExceededDetail
		res.ExecTimeMs = float64(limits.TimeLimitMs)
		return res
	case TerminationMemoryLimit:
		res.Outcome = OutcomeMemoryLimitExceeded
		res.ErrorDetail = MemoryLimitExceededDetail
		return res
	case TerminationStartFailed:
		res.Outcome = OutcomeRuntimeError
		res.ErrorDetail = run.StartErr
		return res
	case TerminationCanceled:
		res.Outcome = OutcomeRuntimeError
		res.ErrorDetail = "Execution canceled"
		return res
	}

	if limits.MemoryLimitKB > 0 && run.PeakMemoryKB > limits.MemoryLimitKB {
		res.Outcome = OutcomeMemoryLimitExceeded
		res.ErrorDetail = MemoryLimitExceededDetail
		return res
	}
	if run.ExitCode != 0 || run.Signal != "" {
		res.Outcome = OutcomeRuntimeError
		res.ErrorDetail = exitDetail(run)
		return res
	}

	res.Outcome = OutcomeAccepted
	res.Stdout = run.Stdout
	return res
}

// CompilationFailed builds the result for a rejected compilation.
// No run happened, so the counters stay zero.
func CompilationFailed(detail string) ExecutionResult {
	return ExecutionResult{
		Outcome:     OutcomeCompilationError,
		ErrorDetail: detail,
	}
}

func exitDetail(run RunResult) string {
	if strings.TrimSpace(run.Stderr) != "" {
		return run.Stderr
	}
	if run.Signal != "" {
		return fmt.Sprintf("Process terminated by signal: %s", run.Signal)
	}
	return fmt.Sprintf("Process exited with code %d", run.ExitCode)
}
