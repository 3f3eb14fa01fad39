// Package config defines interfaces for loading sandbox language configuration.
package config

import (
	"context"

	"codeexec/internal/execution/sandbox/profile"
)

// LanguageSpecRepository loads language specifications.
type LanguageSpecRepository interface {
	GetLanguageSpec(ctx context.Context, id string) (profile.LanguageSpec, error)
	ListLanguages(ctx context.Context) []profile.LanguageSpec
}
