// Package isolation describes the optional exec shim that installs a
// seccomp filter in the child before the submission starts.
package isolation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const (
	ActionAllow = "SCMP_ACT_ALLOW"
	ActionKill  = "SCMP_ACT_KILL_PROCESS"
	ActionErrno = "SCMP_ACT_ERRNO"

	seccompFlag = "-seccomp"
	argsSep     = "--"
)

// Profile is a seccomp policy in the OCI-like json layout.
type Profile struct {
	DefaultAction string        `json:"defaultAction"`
	Syscalls      []SyscallRule `json:"syscalls"`
}

// SyscallRule applies one action to a set of syscall names.
type SyscallRule struct {
	Names  []string `json:"names"`
	Action string   `json:"action"`
}

// LoadProfile reads and validates a profile file.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read seccomp profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse seccomp profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate rejects unknown actions and empty rules.
func (p Profile) Validate() error {
	if _, err := NormalizeAction(p.DefaultAction); err != nil {
		return err
	}
	for i, rule := range p.Syscalls {
		if len(rule.Names) == 0 {
			return fmt.Errorf("seccomp rule %d has no syscalls", i)
		}
		if _, err := NormalizeAction(rule.Action); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeAction maps accepted spellings onto the canonical action names.
func NormalizeAction(action string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(action)) {
	case ActionAllow:
		return ActionAllow, nil
	case "SCMP_ACT_KILL", ActionKill:
		return ActionKill, nil
	case ActionErrno:
		return ActionErrno, nil
	default:
		return "", fmt.Errorf("unsupported seccomp action: %s", action)
	}
}

// WrapCommand prefixes argv with the shim invocation. An empty helper leaves argv unchanged.
func WrapCommand(helper, profilePath string, argv []string) []string {
	if helper == "" {
		return argv
	}
	out := make([]string, 0, len(argv)+4)
	out = append(out, helper)
	if profilePath != "" {
		out = append(out, seccompFlag, profilePath)
	}
	out = append(out, argsSep)
	return append(out, argv...)
}

// ParseArgs is the inverse of WrapCommand for the shim's own arguments.
func ParseArgs(args []string) (profilePath string, argv []string, err error) {
	i := 0
	for i < len(args) && args[i] != argsSep {
		switch args[i] {
		case seccompFlag:
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("%s requires a value", seccompFlag)
			}
			profilePath = args[i+1]
			i += 2
		default:
			return "", nil, fmt.Errorf("unknown argument: %s", args[i])
		}
	}
	if i >= len(args) || i+1 >= len(args) {
		return "", nil, fmt.Errorf("command is required after %s", argsSep)
	}
	return profilePath, args[i+1:], nil
}
