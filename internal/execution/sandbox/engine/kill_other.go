//go:build !unix

package engine

import (
	"errors"
	"os"
	"os/exec"

	"codeexec/internal/execution/sandbox/spec"
)

var errAwaitUnsupported = errors.New("non-reaping wait is not supported")

// ConfigureCommand is a no-op without process groups.
func ConfigureCommand(cmd *exec.Cmd) {}

// KillTree kills p.
func KillTree(p *os.Process) error {
	if p == nil {
		return nil
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func killGroup(pid int) error {
	return nil
}

func awaitExit(pid int) error {
	return errAwaitUnsupported
}

func applyRlimits(pid int, limits spec.Limits) error {
	return nil
}

func terminationSignal(state *os.ProcessState) string {
	return ""
}
