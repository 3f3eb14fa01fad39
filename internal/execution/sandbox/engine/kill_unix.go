//go:build unix

package engine

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// ConfigureCommand puts the child in its own process group.
func ConfigureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = buildSysProcAttr()
}

// KillTree kills the process group led by p and p itself.
func KillTree(p *os.Process) error {
	if p == nil {
		return nil
	}
	_ = killGroup(p.Pid)
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func killGroup(pid int) error {
	if pid <= 0 {
		return nil
	}
	err := unix.Kill(-pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func terminationSignal(state *os.ProcessState) string {
	if state == nil {
		return ""
	}
	status, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return ""
	}
	return status.Signal().String()
}
