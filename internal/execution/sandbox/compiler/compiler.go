// Package compiler runs language toolchains against staged sources.
package compiler

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"codeexec/internal/execution/sandbox/engine"
	"codeexec/internal/execution/sandbox/profile"
	"codeexec/internal/execution/sandbox/result"
	"codeexec/internal/execution/sandbox/stager"
	"codeexec/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultDiagnosticSize = 256 * 1024
)

// Config controls toolchain invocation.
type Config struct {
	// Timeout is the ceiling for one compilation, unrelated to run limits.
	Timeout time.Duration
	// MaxDiagnosticBytes caps the captured diagnostic stream.
	MaxDiagnosticBytes int
}

// Toolchain compiles staged sources with the language's compile template.
type Toolchain struct {
	cfg Config
}

// New creates a toolchain compiler.
func New(cfg Config) *Toolchain {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxDiagnosticBytes <= 0 {
		cfg.MaxDiagnosticBytes = defaultDiagnosticSize
	}
	return &Toolchain{cfg: cfg}
}

// Compile runs the toolchain in the job directory.
// A rejected or hung compilation is reported in the result; the error return
// is reserved for a malformed template.
func (c *Toolchain) Compile(ctx context.Context, lang profile.LanguageSpec, staged stager.StagedSource) (result.CompileResult, error) {
	if !lang.CompileEnabled() {
		return result.CompileResult{OK: true}, nil
	}
	argv, err := profile.BuildCommand(lang.CompileCmdTpl, staged.Vars())
	if err != nil {
		return result.CompileResult{}, err
	}

	compileCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var output diagnosticBuffer
	output.max = c.cfg.MaxDiagnosticBytes

	cmd := exec.CommandContext(compileCtx, argv[0], argv[1:]...)
	cmd.Dir = staged.Dir
	if len(lang.Env) > 0 {
		cmd.Env = append(cmd.Environ(), lang.Env...)
	}
	cmd.Stdout = &output
	cmd.Stderr = &output
	engine.ConfigureCommand(cmd)
	cmd.Cancel = func() error {
		return engine.KillTree(cmd.Process)
	}
	cmd.WaitDelay = time.Second

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	if runErr == nil {
		return result.CompileResult{OK: true, TimeMs: elapsed}, nil
	}

	res := result.CompileResult{
		OK:       false,
		ExitCode: -1,
		TimeMs:   elapsed,
		Detail:   output.String(),
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}

	switch {
	case errors.Is(compileCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.Detail = result.CompileTimeoutDetail
		logger.Warn(ctx, "compilation hit the ceiling", zap.String("language", lang.ID), zap.Duration("timeout", c.cfg.Timeout))
	case strings.TrimSpace(res.Detail) == "":
		// Toolchain missing or killed without output.
		res.Detail = runErr.Error()
		logger.Warn(ctx, "compilation failed without diagnostics", zap.String("language", lang.ID), zap.Error(runErr))
	}
	return res, nil
}

type diagnosticBuffer struct {
	buf strings.Builder
	max int
}

func (b *diagnosticBuffer) Write(p []byte) (int, error) {
	if remain := b.max - b.buf.Len(); remain > 0 {
		if len(p) > remain {
			b.buf.Write(p[:remain])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *diagnosticBuffer) String() string {
	return b.buf.String()
}
