package sandbox

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"codeexec/internal/execution/sandbox/config"
	"codeexec/internal/execution/sandbox/profile"
	"codeexec/internal/execution/sandbox/result"
	"codeexec/internal/execution/sandbox/spec"
	"codeexec/internal/execution/sandbox/stager"
	appErr "codeexec/pkg/errors"
)

type fakeEngine struct {
	mu     sync.Mutex
	spawns atomic.Int32
	specs  []spec.RunSpec
	res    result.RunResult
	err    error
	// fn, when set, derives the result from the RunSpec it was given.
	fn func(runSpec spec.RunSpec) result.RunResult
}

func (f *fakeEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	f.spawns.Add(1)
	f.mu.Lock()
	f.specs = append(f.specs, runSpec)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(runSpec), f.err
	}
	return f.res, f.err
}

func (f *fakeEngine) KillJob(ctx context.Context, jobID string) error {
	return nil
}

func (f *fakeEngine) lastSpec() spec.RunSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.specs[len(f.specs)-1]
}

type fakeCompiler struct {
	calls atomic.Int32
	res   result.CompileResult
	err   error
	// seen observes the staged source before the result is returned.
	seen func(staged stager.StagedSource)
}

func (f *fakeCompiler) Compile(ctx context.Context, lang profile.LanguageSpec, staged stager.StagedSource) (result.CompileResult, error) {
	f.calls.Add(1)
	if f.seen != nil {
		f.seen(staged)
	}
	return f.res, f.err
}

type failingStager struct{}

func (failingStager) Stage(lang profile.LanguageSpec, source string) (stager.StagedSource, error) {
	return stager.StagedSource{}, errors.New("disk full")
}

func newTestService(t *testing.T, eng *fakeEngine, comp *fakeCompiler) (*Service, string) {
	t.Helper()
	root := t.TempDir()
	svc, err := NewService(Config{}, config.NewLocalRepository(profile.DefaultLanguages()), eng, comp, stager.New(root), nil)
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	return svc, root
}

func TestExecuteCompileErrorNeverSpawns(t *testing.T) {
	eng := &fakeEngine{}
	comp := &fakeCompiler{}
	comp.seen = func(staged stager.StagedSource) {
		comp.res = result.CompileResult{
			OK:       false,
			ExitCode: 1,
			Detail:   staged.FilePath + ":1:5: error: expected ';' before '}' token",
		}
	}
	svc, _ := newTestService(t, eng, comp)

	res, err := svc.RunCpp(context.Background(), "int main(){return 0}", "", spec.Limits{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if res.Outcome != result.OutcomeCompilationError {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if eng.spawns.Load() != 0 {
		t.Fatalf("engine spawned %d processes after a compile error", eng.spawns.Load())
	}
	if res.ErrorDetail != "Main.cpp:1:5: error: expected ';' before '}' token" {
		t.Fatalf("detail not sanitized: %q", res.ErrorDetail)
	}
	if res.ExecTimeMs != 0 || res.PeakMemoryKB != 0 {
		t.Fatalf("compile error must carry zero counters: %+v", res)
	}
}

func TestExecutePythonSkipsCompiler(t *testing.T) {
	eng := &fakeEngine{res: result.RunResult{Termination: result.TerminationExited, Stdout: "Hello\n", PeakMemoryKB: 9000, ExecTimeMs: 20}}
	comp := &fakeCompiler{}
	svc, root := newTestService(t, eng, comp)

	res, err := svc.RunPython(context.Background(), "print('Hello')", "", spec.Limits{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if comp.calls.Load() != 0 {
		t.Fatalf("python must not compile")
	}
	if res.Outcome != result.OutcomeAccepted || res.Stdout != "Hello\n" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.JobID == "" || res.Language != profile.LanguagePython {
		t.Fatalf("missing job metadata: %+v", res)
	}

	runSpec := eng.lastSpec()
	if runSpec.Limits.TimeLimitMs != DefaultTimeLimitMs || runSpec.Limits.MemoryLimitKB != DefaultMemoryLimitKB {
		t.Fatalf("defaults not applied: %+v", runSpec.Limits)
	}
	if len(runSpec.Cmd) != 2 || !strings.HasSuffix(runSpec.Cmd[1], res.JobID+".py") {
		t.Fatalf("unexpected argv: %q", runSpec.Cmd)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read root failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("job dir not cleaned up: %d entries left", len(entries))
	}
}

func TestExecuteJavaRunsRewrittenClass(t *testing.T) {
	eng := &fakeEngine{res: result.RunResult{Termination: result.TerminationExited, ExitCode: 1,
		Stderr: "Exception in thread \"main\" java.lang.RuntimeException\n\tat Java_x.main"}}
	comp := &fakeCompiler{res: result.CompileResult{OK: true}}
	svc, _ := newTestService(t, eng, comp)

	res, err := svc.RunJava(context.Background(), "public class Solution { public static void main(String[] a){ throw new RuntimeException(); } }", "", spec.Limits{TimeLimitMs: 2000})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	runSpec := eng.lastSpec()
	class := runSpec.Cmd[len(runSpec.Cmd)-1]
	if class != stager.JavaClassName(res.JobID) {
		t.Fatalf("run class = %s, want %s", class, stager.JavaClassName(res.JobID))
	}
	if res.Outcome != result.OutcomeRuntimeError {
		t.Fatalf("outcome = %s", res.Outcome)
	}
}

func TestExecuteSanitizesRuntimeDetail(t *testing.T) {
	eng := &fakeEngine{fn: func(runSpec spec.RunSpec) result.RunResult {
		return result.RunResult{
			Termination: result.TerminationExited,
			ExitCode:    1,
			Stderr:      "Traceback (most recent call last):\n  File \"" + runSpec.Cmd[1] + "\", line 1\nZeroDivisionError",
		}
	}}
	svc, _ := newTestService(t, eng, &fakeCompiler{})

	res, err := svc.RunPython(context.Background(), "1/0", "", spec.Limits{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	want := "Traceback (most recent call last):\n  File \"main.py\", line 1\nZeroDivisionError"
	if res.ErrorDetail != want {
		t.Fatalf("detail = %q, want %q", res.ErrorDetail, want)
	}
}

func TestExecuteRuntimeErrorWithoutStderr(t *testing.T) {
	eng := &fakeEngine{res: result.RunResult{Termination: result.TerminationExited, ExitCode: 1}}
	svc, _ := newTestService(t, eng, &fakeCompiler{})

	res, err := svc.RunPython(context.Background(), "raise SystemExit(1)", "", spec.Limits{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if res.Outcome != result.OutcomeRuntimeError || res.ErrorDetail != "Process exited with code 1" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExecuteTimeLimitReportsLimit(t *testing.T) {
	eng := &fakeEngine{res: result.RunResult{Termination: result.TerminationTimeLimit, ExecTimeMs: 1012, PeakMemoryKB: 800}}
	svc, _ := newTestService(t, eng, &fakeCompiler{res: result.CompileResult{OK: true}})

	res, err := svc.RunCpp(context.Background(), "int main(){for(;;);}", "", spec.Limits{TimeLimitMs: 1000})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if res.Outcome != result.OutcomeTimeLimitExceeded || res.ExecTimeMs != 1000 || res.PeakMemoryKB != 800 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExecuteValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakeEngine{}, &fakeCompiler{})
	svc.cfg.MaxSourceBytes = 8

	cases := []struct {
		name string
		req  ExecutionRequest
		code appErr.ErrorCode
	}{
		{name: "missing language", req: ExecutionRequest{SourceCode: "x"}, code: appErr.ValidationFailed},
		{name: "empty source", req: ExecutionRequest{Language: "cpp"}, code: appErr.EmptySourceCode},
		{name: "too large", req: ExecutionRequest{Language: "cpp", SourceCode: "0123456789"}, code: appErr.CodeTooLarge},
		{name: "negative time", req: ExecutionRequest{Language: "cpp", SourceCode: "x", Limits: spec.Limits{TimeLimitMs: -1}}, code: appErr.ValidationFailed},
		{name: "negative memory", req: ExecutionRequest{Language: "cpp", SourceCode: "x", Limits: spec.Limits{MemoryLimitKB: -1}}, code: appErr.ValidationFailed},
		{name: "time over maximum", req: ExecutionRequest{Language: "cpp", SourceCode: "x", Limits: spec.Limits{TimeLimitMs: MaxTimeLimitMs + 1}}, code: appErr.ValidationFailed},
		{name: "time that overflows a duration", req: ExecutionRequest{Language: "cpp", SourceCode: "x", Limits: spec.Limits{TimeLimitMs: 10_000_000_000_000}}, code: appErr.ValidationFailed},
		{name: "memory over maximum", req: ExecutionRequest{Language: "cpp", SourceCode: "x", Limits: spec.Limits{MemoryLimitKB: MaxMemoryLimitKB + 1}}, code: appErr.ValidationFailed},
		{name: "unsupported", req: ExecutionRequest{Language: "cobol", SourceCode: "x"}, code: appErr.LanguageNotSupported},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Execute(context.Background(), tc.req); !appErr.Is(err, tc.code) {
				t.Fatalf("expected %d, got %v", tc.code, err)
			}
		})
	}
}

func TestExecuteStagingFailure(t *testing.T) {
	eng := &fakeEngine{}
	comp := &fakeCompiler{}
	svc, err := NewService(Config{}, config.NewLocalRepository(profile.DefaultLanguages()), eng, comp, failingStager{}, nil)
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	_, err = svc.RunCpp(context.Background(), "int main(){}", "", spec.Limits{})
	if !appErr.Is(err, appErr.StagingFailed) {
		t.Fatalf("expected staging failure, got %v", err)
	}
	if comp.calls.Load() != 0 || eng.spawns.Load() != 0 {
		t.Fatalf("nothing may run after a staging failure")
	}
}

func TestExecuteEngineFailure(t *testing.T) {
	eng := &fakeEngine{err: errors.New("work dir is required")}
	svc, _ := newTestService(t, eng, &fakeCompiler{})
	if _, err := svc.RunPython(context.Background(), "print(1)", "", spec.Limits{}); !appErr.Is(err, appErr.ExecutorSystemError) {
		t.Fatalf("expected executor system error, got %v", err)
	}
}

func TestExecuteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := &fakeEngine{res: result.RunResult{Termination: result.TerminationCanceled}}
	svc, _ := newTestService(t, eng, &fakeCompiler{})
	if _, err := svc.RunPython(ctx, "print(1)", "", spec.Limits{}); !appErr.Is(err, appErr.Timeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	repo := config.NewLocalRepository(profile.DefaultLanguages())
	if _, err := NewService(Config{}, nil, &fakeEngine{}, &fakeCompiler{}, stager.New(t.TempDir()), nil); err == nil {
		t.Fatalf("expected error without repository")
	}
	if _, err := NewService(Config{}, repo, nil, &fakeCompiler{}, stager.New(t.TempDir()), nil); err == nil {
		t.Fatalf("expected error without engine")
	}
	if _, err := NewService(Config{}, repo, &fakeEngine{}, nil, stager.New(t.TempDir()), nil); err == nil {
		t.Fatalf("expected error without compiler")
	}
	if _, err := NewService(Config{}, repo, &fakeEngine{}, &fakeCompiler{}, nil, nil); err == nil {
		t.Fatalf("expected error without stager")
	}
	if _, err := NewService(Config{DefaultTimeLimitMs: 2000, MaxTimeLimitMs: 1000}, repo, &fakeEngine{}, &fakeCompiler{}, stager.New(t.TempDir()), nil); err == nil {
		t.Fatalf("expected error for a default above the maximum")
	}
}

func TestExecuteAcceptsConfiguredMaximum(t *testing.T) {
	eng := &fakeEngine{}
	svc, err := NewService(Config{MaxTimeLimitMs: 10000, MaxMemoryLimitKB: 524288}, config.NewLocalRepository(profile.DefaultLanguages()), eng, &fakeCompiler{}, stager.New(t.TempDir()), nil)
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	limits := spec.Limits{TimeLimitMs: 10000, MemoryLimitKB: 524288}
	if _, err := svc.RunPython(context.Background(), "print(1)", "", limits); err != nil {
		t.Fatalf("limits at the maximum rejected: %v", err)
	}
	if eng.spawns.Load() != 1 {
		t.Fatalf("spawns = %d, want 1", eng.spawns.Load())
	}
	limits.TimeLimitMs++
	if _, err := svc.RunPython(context.Background(), "print(1)", "", limits); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected ValidationFailed above the configured maximum, got %v", err)
	}
	if eng.spawns.Load() != 1 {
		t.Fatalf("nothing may run for a rejected limit")
	}
}
