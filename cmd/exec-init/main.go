//go:build linux

package main

import (
	"fmt"
	"os"
	"os/exec"

	"codeexec/internal/execution/sandbox/isolation"

	"github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "exec-init: "+err.Error())
		os.Exit(126)
	}
}

// run installs the filter and replaces this process with the submission,
// keeping the pid, process group and stdio set up by the engine.
func run() error {
	profilePath, argv, err := isolation.ParseArgs(os.Args[1:])
	if err != nil {
		return err
	}
	if profilePath != "" {
		profile, err := isolation.LoadProfile(profilePath)
		if err != nil {
			return err
		}
		if err := applySeccomp(profile); err != nil {
			return err
		}
	}

	cmdPath, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("resolve command: %w", err)
	}
	return unix.Exec(cmdPath, argv, os.Environ())
}

func applySeccomp(profile isolation.Profile) error {
	defaultAction, err := seccompAction(profile.DefaultAction)
	if err != nil {
		return err
	}
	filter, err := seccomp.NewFilter(defaultAction)
	if err != nil {
		return fmt.Errorf("create seccomp filter: %w", err)
	}
	defer filter.Release()
	for _, rule := range profile.Syscalls {
		action, err := seccompAction(rule.Action)
		if err != nil {
			return err
		}
		for _, name := range rule.Names {
			call, err := seccomp.GetSyscallFromName(name)
			if err != nil {
				// not present on this architecture
				continue
			}
			if err := filter.AddRule(call, action); err != nil {
				return fmt.Errorf("add seccomp rule %s: %w", name, err)
			}
		}
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set no new privs: %w", err)
	}
	if err := filter.Load(); err != nil {
		return fmt.Errorf("load seccomp filter: %w", err)
	}
	return nil
}

func seccompAction(action string) (seccomp.ScmpAction, error) {
	normalized, err := isolation.NormalizeAction(action)
	if err != nil {
		return seccomp.ActKillProcess, err
	}
	switch normalized {
	case isolation.ActionAllow:
		return seccomp.ActAllow, nil
	case isolation.ActionErrno:
		return seccomp.ActErrno.SetReturnCode(int16(unix.EPERM)), nil
	default:
		return seccomp.ActKillProcess, nil
	}
}
