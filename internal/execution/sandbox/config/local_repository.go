package config

import (
	"context"
	"sort"

	"codeexec/internal/execution/sandbox/profile"
	appErr "codeexec/pkg/errors"
)

// LocalRepository serves language specs from memory.
type LocalRepository struct {
	languages map[string]profile.LanguageSpec
}

// NewLocalRepository creates a repository from a config list.
// Entries without an id are skipped; later entries override earlier ones.
func NewLocalRepository(languages []profile.LanguageSpec) *LocalRepository {
	langMap := make(map[string]profile.LanguageSpec)
	for _, lang := range languages {
		if lang.ID == "" {
			continue
		}
		langMap[lang.ID] = lang
	}
	return &LocalRepository{languages: langMap}
}

// GetLanguageSpec returns a language spec.
func (r *LocalRepository) GetLanguageSpec(ctx context.Context, id string) (profile.LanguageSpec, error) {
	if id == "" {
		return profile.LanguageSpec{}, appErr.ValidationError("language", "required")
	}
	lang, ok := r.languages[id]
	if !ok {
		return profile.LanguageSpec{}, appErr.Newf(appErr.LanguageNotSupported, "language not supported: %s", id)
	}
	return lang, nil
}

// ListLanguages returns all configured languages ordered by id.
func (r *LocalRepository) ListLanguages(ctx context.Context) []profile.LanguageSpec {
	out := make([]profile.LanguageSpec, 0, len(r.languages))
	for _, lang := range r.languages {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
