package result

import (
	"testing"

	"codeexec/internal/execution/sandbox/spec"
)

func TestClassify(t *testing.T) {
	limits := spec.Limits{TimeLimitMs: 1000, MemoryLimitKB: 65536}

	tests := []struct {
		name       string
		run        RunResult
		outcome    Outcome
		detail     string
		stdout     string
		execTimeMs float64
	}{
		{
			name:       "accepted keeps stdout",
			run:        RunResult{Termination: TerminationExited, Stdout: "Hello\n", ExecTimeMs: 12, PeakMemoryKB: 1024},
			outcome:    OutcomeAccepted,
			stdout:     "Hello\n",
			execTimeMs: 12,
		},
		{
			name:       "non-zero exit uses stderr",
			run:        RunResult{Termination: TerminationExited, ExitCode: 1, Stderr: "Traceback: boom", Stdout: "partial"},
			outcome:    OutcomeRuntimeError,
			detail:     "Traceback: boom",
			execTimeMs: 0,
		},
		{
			name:    "non-zero exit without stderr",
			run:     RunResult{Termination: TerminationExited, ExitCode: 3},
			outcome: OutcomeRuntimeError,
			detail:  "Process exited with code 3",
		},
		{
			name:    "killed by signal",
			run:     RunResult{Termination: TerminationExited, ExitCode: -1, Signal: "segmentation fault"},
			outcome: OutcomeRuntimeError,
			detail:  "Process terminated by signal: segmentation fault",
		},
		{
			name:       "time limit reports the limit",
			run:        RunResult{Termination: TerminationTimeLimit, ExecTimeMs: 1003.4, Stdout: "spin"},
			outcome:    OutcomeTimeLimitExceeded,
			detail:     TimeLimitExceededDetail,
			execTimeMs: 1000,
		},
		{
			name:    "memory guard wins over exit code",
			run:     RunResult{Termination: TerminationMemoryLimit, ExitCode: -1, PeakMemoryKB: 70000},
			outcome: OutcomeMemoryLimitExceeded,
			detail:  MemoryLimitExceededDetail,
		},
		{
			name:    "post-exit peak over limit",
			run:     RunResult{Termination: TerminationExited, ExitCode: 0, PeakMemoryKB: 70000, Stdout: "ok"},
			outcome: OutcomeMemoryLimitExceeded,
			detail:  MemoryLimitExceededDetail,
		},
		{
			name:    "post-exit peak beats runtime error",
			run:     RunResult{Termination: TerminationExited, ExitCode: 134, Stderr: "bad_alloc", PeakMemoryKB: 70000},
			outcome: OutcomeMemoryLimitExceeded,
			detail:  MemoryLimitExceededDetail,
		},
		{
			name:    "spawn failure",
			run:     RunResult{Termination: TerminationStartFailed, StartErr: "exec: \"python3\": executable file not found in $PATH"},
			outcome: OutcomeRuntimeError,
			detail:  "exec: \"python3\": executable file not found in $PATH",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify(tt.run, limits)
			if res.Outcome != tt.outcome {
				t.Fatalf("outcome = %s, want %s", res.Outcome, tt.outcome)
			}
			if res.ErrorDetail != tt.detail {
				t.Fatalf("detail = %q, want %q", res.ErrorDetail, tt.detail)
			}
			if res.Stdout != tt.stdout {
				t.Fatalf("stdout = %q, want %q", res.Stdout, tt.stdout)
			}
			if tt.execTimeMs != 0 && res.ExecTimeMs != tt.execTimeMs {
				t.Fatalf("execTimeMs = %v, want %v", res.ExecTimeMs, tt.execTimeMs)
			}
			if !res.Outcome.Valid() {
				t.Fatalf("outcome %q not in closed set", res.Outcome)
			}
		})
	}
}

func TestClassifyWithoutMemoryLimit(t *testing.T) {
	res := Classify(RunResult{Termination: TerminationExited, PeakMemoryKB: 1 << 30}, spec.Limits{TimeLimitMs: 1000})
	if res.Outcome != OutcomeAccepted {
		t.Fatalf("expected accepted when memory limit is unset, got %s", res.Outcome)
	}
}

func TestCompilationFailed(t *testing.T) {
	res := CompilationFailed("Main.cpp:1:1: error: expected ';'")
	if res.Outcome != OutcomeCompilationError {
		t.Fatalf("unexpected outcome: %s", res.Outcome)
	}
	if res.PeakMemoryKB != 0 || res.ExecTimeMs != 0 || res.Stdout != "" {
		t.Fatalf("compilation failure must carry zero counters: %+v", res)
	}
}

func TestSanitizeDetail(t *testing.T) {
	detail := "/tmp/codes/4f1c/4f1c.cpp:3:5: error: boom\n4f1c.cpp:4:1: note"
	got := SanitizeDetail(detail, []Replacement{
		{From: "4f1c.cpp", To: "Main.cpp"},
		{From: "/tmp/codes/4f1c/", To: ""},
	})
	want := "Main.cpp:3:5: error: boom\nMain.cpp:4:1: note"
	if got != want {
		t.Fatalf("sanitize = %q, want %q", got, want)
	}

	if SanitizeDetail("untouched", nil) != "untouched" {
		t.Fatalf("expected no-op without replacements")
	}
	if SanitizeDetail("keep", []Replacement{{From: "", To: "x"}}) != "keep" {
		t.Fatalf("empty From must be ignored")
	}
}
