package engine

import (
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"codeexec/internal/execution/sandbox/result"
)

// RunningProcess is the supervised child of one run.
//
// Natural exit, the watchdog and the memory monitor race to claim the
// termination; only the first claim counts. Signals and samples are only
// delivered under mu while the child has not been reaped, so a recycled pid
// is never touched.
type RunningProcess struct {
	cmd   *exec.Cmd
	start time.Time

	mu     sync.Mutex
	reaped bool

	claimed atomic.Int32
	endedAt atomic.Int64
}

func newRunningProcess(cmd *exec.Cmd, start time.Time) *RunningProcess {
	return &RunningProcess{cmd: cmd, start: start}
}

// Pid returns the child pid.
func (p *RunningProcess) Pid() int {
	return p.cmd.Process.Pid
}

// Terminate claims t and kills the process tree if the claim wins.
func (p *RunningProcess) Terminate(t result.Termination) bool {
	if !p.claim(t) {
		return false
	}
	p.kill()
	return true
}

// Termination returns the claimed terminal event.
func (p *RunningProcess) Termination() result.Termination {
	return result.Termination(p.claimed.Load())
}

// Elapsed is the time from spawn to the claimed terminal event.
func (p *RunningProcess) Elapsed() time.Duration {
	if ended := p.endedAt.Load(); ended > 0 {
		return time.Duration(ended)
	}
	return time.Since(p.start)
}

// ObserveLive implements monitor.Target.
func (p *RunningProcess) ObserveLive(fn func(pid int)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reaped {
		return false
	}
	fn(p.cmd.Process.Pid)
	return true
}

func (p *RunningProcess) claim(t result.Termination) bool {
	if !p.claimed.CompareAndSwap(int32(result.TerminationNone), int32(t)) {
		return false
	}
	p.endedAt.Store(int64(time.Since(p.start)))
	return true
}

func (p *RunningProcess) kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reaped {
		return
	}
	_ = KillTree(p.cmd.Process)
}

// wait blocks until the child exits, then reaps it. onExit runs once the
// exit is known and before reaping; it must not hold or take mu.
func (p *RunningProcess) wait(onExit func()) error {
	if err := awaitExit(p.cmd.Process.Pid); err == nil {
		// The leader is a zombie here, so its pid still names the group
		// and stray descendants can be killed without racing pid reuse.
		p.claim(result.TerminationExited)
		onExit()
		p.mu.Lock()
		_ = killGroup(p.cmd.Process.Pid)
		p.reaped = true
		p.mu.Unlock()
		return p.cmd.Wait()
	}

	err := p.cmd.Wait()
	p.claim(result.TerminationExited)
	onExit()
	p.mu.Lock()
	p.reaped = true
	p.mu.Unlock()
	return err
}
