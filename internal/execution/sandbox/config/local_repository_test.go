package config

import (
	"context"
	"testing"

	"codeexec/internal/execution/sandbox/profile"
	appErr "codeexec/pkg/errors"
)

func TestLocalRepository(t *testing.T) {
	repo := NewLocalRepository(append(profile.DefaultLanguages(),
		profile.LanguageSpec{Name: "no id"},
		profile.LanguageSpec{ID: "python", Name: "PyPy", RunCmdTpl: "pypy3 {src}"},
	))

	lang, err := repo.GetLanguageSpec(context.Background(), "cpp")
	if err != nil {
		t.Fatalf("get cpp failed: %v", err)
	}
	if lang.SourceExt != "cpp" {
		t.Fatalf("unexpected cpp spec: %+v", lang)
	}

	lang, err = repo.GetLanguageSpec(context.Background(), "python")
	if err != nil {
		t.Fatalf("get python failed: %v", err)
	}
	if lang.Name != "PyPy" {
		t.Fatalf("expected later entry to override, got %s", lang.Name)
	}

	if _, err := repo.GetLanguageSpec(context.Background(), "rust"); !appErr.Is(err, appErr.LanguageNotSupported) {
		t.Fatalf("expected language not supported, got %v", err)
	}
	if _, err := repo.GetLanguageSpec(context.Background(), ""); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}

	list := repo.ListLanguages(context.Background())
	if len(list) != 3 {
		t.Fatalf("expected 3 languages, got %d", len(list))
	}
	if list[0].ID != "cpp" || list[1].ID != "java" || list[2].ID != "python" {
		t.Fatalf("unexpected order: %s %s %s", list[0].ID, list[1].ID, list[2].ID)
	}
}
