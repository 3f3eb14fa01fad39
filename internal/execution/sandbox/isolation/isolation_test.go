package isolation

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWrapAndParseArgs(t *testing.T) {
	argv := []string{"java", "-cp", "/tmp/job", "Java_x"}
	wrapped := WrapCommand("/usr/local/bin/exec-init", "/etc/codeexec/seccomp.json", argv)
	if wrapped[0] != "/usr/local/bin/exec-init" {
		t.Fatalf("wrapped = %v", wrapped)
	}
	profile, got, err := ParseArgs(wrapped[1:])
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if profile != "/etc/codeexec/seccomp.json" || !reflect.DeepEqual(got, argv) {
		t.Fatalf("parsed %q %v", profile, got)
	}
}

func TestWrapWithoutHelper(t *testing.T) {
	argv := []string{"./a.out"}
	if got := WrapCommand("", "p.json", argv); !reflect.DeepEqual(got, argv) {
		t.Fatalf("WrapCommand = %v", got)
	}
	wrapped := WrapCommand("init", "", argv)
	profile, got, err := ParseArgs(wrapped[1:])
	if err != nil || profile != "" || !reflect.DeepEqual(got, argv) {
		t.Fatalf("parsed %q %v %v", profile, got, err)
	}
}

func TestParseArgsErrors(t *testing.T) {
	cases := [][]string{
		nil,
		{"--"},
		{"-seccomp"},
		{"-x", "--", "ls"},
		{"-seccomp", "p.json", "ls"},
	}
	for _, args := range cases {
		if _, _, err := ParseArgs(args); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(`{"defaultAction":"SCMP_ACT_ALLOW","syscalls":[{"names":["ptrace","mount"],"action":"SCMP_ACT_KILL"}]}`), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	p, err := LoadProfile(good)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if len(p.Syscalls) != 1 || len(p.Syscalls[0].Names) != 2 {
		t.Fatalf("profile = %+v", p)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"defaultAction":"SCMP_ACT_TRACE"}`), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := LoadProfile(bad); err == nil {
		t.Fatalf("expected unsupported action error")
	}
	if _, err := LoadProfile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestShippedProfileIsValid(t *testing.T) {
	if _, err := LoadProfile(filepath.Join("..", "..", "..", "..", "configs", "seccomp", "default.json")); err != nil {
		t.Fatalf("shipped profile invalid: %v", err)
	}
}

func TestNormalizeAction(t *testing.T) {
	for in, want := range map[string]string{
		"scmp_act_allow":   ActionAllow,
		"SCMP_ACT_KILL":    ActionKill,
		" SCMP_ACT_ERRNO ": ActionErrno,
	} {
		got, err := NormalizeAction(in)
		if err != nil || got != want {
			t.Fatalf("NormalizeAction(%q) = %q, %v", in, got, err)
		}
	}
}
