package profile

import (
	"reflect"
	"testing"

	appErr "codeexec/pkg/errors"
)

func TestBuildCommand(t *testing.T) {
	vars := map[string]string{
		PlaceholderSource: "/tmp/my codes/abc/abc.cpp",
		PlaceholderBinary: "/tmp/my codes/abc/abc",
		PlaceholderDir:    "/tmp/my codes/abc",
		PlaceholderClass:  "Java_abc",
	}

	got, err := BuildCommand("g++ -O2 -o {bin} {src}", vars)
	if err != nil {
		t.Fatalf("build command failed: %v", err)
	}
	want := []string{"g++", "-O2", "-o", "/tmp/my codes/abc/abc", "/tmp/my codes/abc/abc.cpp"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("argv = %q, want %q", got, want)
	}

	got, err = BuildCommand("java -cp {dir} {class}", vars)
	if err != nil {
		t.Fatalf("build command failed: %v", err)
	}
	want = []string{"java", "-cp", "/tmp/my codes/abc", "Java_abc"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("argv = %q, want %q", got, want)
	}

	got, err = BuildCommand(`sh -c 'echo "{class}"'`, vars)
	if err != nil {
		t.Fatalf("build command failed: %v", err)
	}
	want = []string{"sh", "-c", `echo "Java_abc"`}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("argv = %q, want %q", got, want)
	}
}

func TestBuildCommandErrors(t *testing.T) {
	if _, err := BuildCommand("   ", nil); !appErr.Is(err, appErr.InvalidParams) {
		t.Fatalf("expected invalid params for blank template, got %v", err)
	}
	if _, err := BuildCommand(`g++ "unterminated`, nil); !appErr.Is(err, appErr.InvalidParams) {
		t.Fatalf("expected invalid params for bad quoting, got %v", err)
	}
}

func TestDefaultLanguages(t *testing.T) {
	langs := DefaultLanguages()
	seen := make(map[string]LanguageSpec)
	for _, lang := range langs {
		seen[lang.ID] = lang
	}
	for _, id := range []string{LanguageCpp, LanguageJava, LanguagePython} {
		if _, ok := seen[id]; !ok {
			t.Fatalf("missing default language %s", id)
		}
	}
	if !seen[LanguageCpp].CompileEnabled() || !seen[LanguageJava].CompileEnabled() {
		t.Fatalf("cpp and java must compile")
	}
	if seen[LanguagePython].CompileEnabled() {
		t.Fatalf("python must not compile")
	}
	if !seen[LanguageJava].RewriteClass {
		t.Fatalf("java must rewrite its public class")
	}
}
