package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"codeexec/internal/execution/sandbox/isolation"
	"codeexec/internal/execution/sandbox/monitor"
	"codeexec/internal/execution/sandbox/result"
	"codeexec/internal/execution/sandbox/spec"
	"codeexec/internal/execution/sandbox/watchdog"
	"codeexec/pkg/utils/logger"

	"go.uber.org/zap"
)

// Engine executes a RunSpec as a supervised child process.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error)
	KillJob(ctx context.Context, jobID string) error
}

// ProcessRunner runs each RunSpec as one child process raced by a
// watchdog and a memory monitor.
type ProcessRunner struct {
	cfg       Config
	registry  map[string]*RunningProcess
	registryM sync.Mutex
}

// NewProcessRunner creates a process runner.
func NewProcessRunner(cfg Config) *ProcessRunner {
	return &ProcessRunner{
		cfg:      cfg.withDefaults(),
		registry: make(map[string]*RunningProcess),
	}
}

// Run starts the command and blocks until it has been reaped.
// Spawn failures are reported in the result, not as an error.
func (r *ProcessRunner) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.RunResult{}, err
	}

	stdout := newLimitedBuffer(r.cfg.OutputMaxBytes)
	stderr := newLimitedBuffer(r.cfg.OutputMaxBytes)

	argv := isolation.WrapCommand(r.cfg.InitHelper, r.cfg.SeccompProfile, runSpec.Cmd)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = runSpec.WorkDir
	if len(runSpec.Env) > 0 {
		cmd.Env = append(os.Environ(), runSpec.Env...)
	}
	cmd.Stdin = strings.NewReader(runSpec.Stdin)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = r.cfg.WaitDelay
	ConfigureCommand(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		logger.Warn(ctx, "start process failed", zap.Strings("cmd", runSpec.Cmd), zap.Error(err))
		return result.RunResult{
			ExitCode:    -1,
			ExecTimeMs:  elapsedMs(time.Since(start)),
			Termination: result.TerminationStartFailed,
			StartErr:    err.Error(),
		}, nil
	}

	proc := newRunningProcess(cmd, start)
	r.register(runSpec.JobID, proc)
	defer r.unregister(runSpec.JobID, proc)

	if r.cfg.EnableRlimits {
		if err := applyRlimits(cmd.Process.Pid, runSpec.Limits); err != nil {
			logger.Debug(ctx, "apply rlimits failed", zap.Int("pid", cmd.Process.Pid), zap.Error(err))
		}
	}

	wd := watchdog.Start(durationFromMs(runSpec.Limits.TimeLimitMs), func() {
		proc.Terminate(result.TerminationTimeLimit)
	})
	mon := monitor.Start(proc, monitor.Options{
		Probe:    r.cfg.Probe,
		Interval: r.cfg.SampleInterval,
		LimitKB:  runSpec.Limits.MemoryLimitKB,
		OnExceed: func(peakKB int64) {
			proc.Terminate(result.TerminationMemoryLimit)
		},
	})

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			proc.Terminate(result.TerminationCanceled)
		case <-done:
		}
	}()

	waitErr := proc.wait(func() {
		wd.Stop()
		mon.Stop()
	})
	close(done)

	if waitErr != nil && errors.Is(waitErr, exec.ErrWaitDelay) {
		logger.Debug(ctx, "output pipes held open after exit", zap.String("job_id", runSpec.JobID))
	}

	termination := proc.Termination()
	state := cmd.ProcessState
	return result.RunResult{
		ExitCode:     exitCodeFromErr(waitErr, state),
		Signal:       terminationSignal(state),
		Stdout:       stdout.String(),
		Stderr:       stderr.String(),
		PeakMemoryKB: monitor.ResolvePeakKB(mon.PeakKB(), monitor.PostExitPeakKB(state), termination == result.TerminationMemoryLimit),
		ExecTimeMs:   elapsedMs(proc.Elapsed()),
		Termination:  termination,
	}, nil
}

// KillJob force-kills the process running for jobID, if any.
func (r *ProcessRunner) KillJob(ctx context.Context, jobID string) error {
	if jobID == "" {
		return fmt.Errorf("job id is required")
	}
	r.registryM.Lock()
	proc := r.registry[jobID]
	r.registryM.Unlock()
	if proc == nil {
		return nil
	}
	proc.Terminate(result.TerminationCanceled)
	return nil
}

// KillAll force-kills every running process.
func (r *ProcessRunner) KillAll(ctx context.Context) {
	r.registryM.Lock()
	procs := make([]*RunningProcess, 0, len(r.registry))
	for _, proc := range r.registry {
		procs = append(procs, proc)
	}
	r.registryM.Unlock()
	for _, proc := range procs {
		proc.Terminate(result.TerminationCanceled)
	}
	if len(procs) > 0 {
		logger.Warn(ctx, "killed running processes", zap.Int("count", len(procs)))
	}
}

// Running returns the number of live child processes.
func (r *ProcessRunner) Running() int {
	r.registryM.Lock()
	defer r.registryM.Unlock()
	return len(r.registry)
}

func (r *ProcessRunner) register(jobID string, proc *RunningProcess) {
	if jobID == "" {
		return
	}
	r.registryM.Lock()
	defer r.registryM.Unlock()
	r.registry[jobID] = proc
}

func (r *ProcessRunner) unregister(jobID string, proc *RunningProcess) {
	if jobID == "" {
		return
	}
	r.registryM.Lock()
	defer r.registryM.Unlock()
	if r.registry[jobID] == proc {
		delete(r.registry, jobID)
	}
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if runSpec.WorkDir == "" {
		return fmt.Errorf("work dir is required")
	}
	if len(runSpec.Cmd) == 0 || runSpec.Cmd[0] == "" {
		return fmt.Errorf("command is required")
	}
	if runSpec.Limits.TimeLimitMs < 0 || runSpec.Limits.MemoryLimitKB < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	return nil
}

func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// durationFromMs saturates at the largest Duration instead of wrapping negative.
func durationFromMs(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	if ms > int64(math.MaxInt64/time.Millisecond) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms) * time.Millisecond
}

func elapsedMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
