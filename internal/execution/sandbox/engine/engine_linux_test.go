//go:build linux

package engine

import (
	"context"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"codeexec/internal/execution/sandbox/result"
	"codeexec/internal/execution/sandbox/spec"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// groupOnlyZombies reports whether every process in the group has exited
// and is only waiting to be reaped.
func groupOnlyZombies(t *testing.T, pgid int) bool {
	t.Helper()
	procs, err := procfs.AllProcs()
	if err != nil {
		t.Fatalf("list processes failed: %v", err)
	}
	members := 0
	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil || stat.PGRP != pgid {
			continue
		}
		members++
		if stat.State != "Z" && stat.State != "X" {
			return false
		}
	}
	return members > 0
}

func TestGroupOnlyZombies(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	cmd := exec.Command("sleep", "0.05")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	pgid := cmd.Process.Pid
	if groupOnlyZombies(t, pgid) {
		t.Fatalf("running group reported as zombies")
	}

	// Wait for the exit without reaping, so the leader stays a zombie.
	var info unix.Siginfo
	if err := unix.Waitid(unix.P_PID, pgid, &info, unix.WEXITED|unix.WNOWAIT, nil); err != nil {
		t.Fatalf("waitid failed: %v", err)
	}
	if err := unix.Kill(-pgid, 0); err != nil {
		t.Fatalf("zombie group should still accept signal 0: %v", err)
	}
	if !groupOnlyZombies(t, pgid) {
		t.Fatalf("exited group not reported as zombies")
	}
	_ = cmd.Wait()
	if groupOnlyZombies(t, 1<<30) {
		t.Fatalf("empty group reported as zombies")
	}
}

func TestRunReapsBackgroundChildrenOnExit(t *testing.T) {
	requireShell(t)
	probe := &pidProbe{kb: 1}
	runner := NewProcessRunner(Config{Probe: probe})

	start := time.Now()
	res, err := runner.Run(context.Background(), shellSpec(t, "sleep 30 & echo done", spec.Limits{TimeLimitMs: 10000}))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Termination != result.TerminationExited || res.Stdout != "done\n" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("leftover child held the run open for %s", time.Since(start))
	}
	assertGroupGone(t, probe.pid.Load())
}
