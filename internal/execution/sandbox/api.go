// Package sandbox is the execution entrypoint: stage, compile, run and classify.
package sandbox

import (
	"context"

	"codeexec/internal/execution/sandbox/profile"
	"codeexec/internal/execution/sandbox/result"
	"codeexec/internal/execution/sandbox/spec"
	"codeexec/internal/execution/sandbox/stager"
)

// Executor runs one submission and returns its classified result.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (result.ExecutionResult, error)
}

// ExecutionRequest contains all data needed to execute one submission.
// Zero limits are replaced by the service defaults.
type ExecutionRequest struct {
	Language   string
	SourceCode string
	Stdin      string
	Limits     spec.Limits
}

// Stager writes a submission into a private job directory.
type Stager interface {
	Stage(lang profile.LanguageSpec, source string) (stager.StagedSource, error)
}

// Compiler turns a staged source into a runnable artifact.
type Compiler interface {
	Compile(ctx context.Context, lang profile.LanguageSpec, staged stager.StagedSource) (result.CompileResult, error)
}
