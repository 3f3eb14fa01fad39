//go:build unix && !linux

package engine

import (
	"errors"
	"syscall"

	"codeexec/internal/execution/sandbox/spec"
)

var errAwaitUnsupported = errors.New("non-reaping wait is not supported")

func buildSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func awaitExit(pid int) error {
	return errAwaitUnsupported
}

func applyRlimits(pid int, limits spec.Limits) error {
	return nil
}
