package sandbox

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"codeexec/internal/execution/sandbox/config"
	"codeexec/internal/execution/sandbox/engine"
	"codeexec/internal/execution/sandbox/observer"
	"codeexec/internal/execution/sandbox/profile"
	"codeexec/internal/execution/sandbox/result"
	"codeexec/internal/execution/sandbox/spec"
	"codeexec/internal/execution/sandbox/stager"
	appErr "codeexec/pkg/errors"
	"codeexec/pkg/utils/contextkey"
	"codeexec/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	DefaultTimeLimitMs   int64 = 5000
	DefaultMemoryLimitKB int64 = 262144
	MaxTimeLimitMs       int64 = 60000
	MaxMemoryLimitKB     int64 = 4194304
)

// Config holds service-level defaults.
type Config struct {
	DefaultTimeLimitMs   int64
	DefaultMemoryLimitKB int64
	// Requested limits above these are rejected. Zero uses the package maximums.
	MaxTimeLimitMs   int64
	MaxMemoryLimitKB int64
	// MaxSourceBytes rejects larger submissions; zero disables the check.
	MaxSourceBytes int
}

// Service wires stager, compiler and engine for every configured language.
type Service struct {
	cfg       Config
	languages config.LanguageSpecRepository
	engine    engine.Engine
	compiler  Compiler
	stager    Stager
	metrics   observer.MetricsRecorder
}

// NewService creates an execution service.
func NewService(cfg Config, languages config.LanguageSpecRepository, eng engine.Engine, comp Compiler, stg Stager, metrics observer.MetricsRecorder) (*Service, error) {
	if languages == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("language repository is required")
	}
	if eng == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("engine is required")
	}
	if comp == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("compiler is required")
	}
	if stg == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("stager is required")
	}
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	if cfg.DefaultTimeLimitMs <= 0 {
		cfg.DefaultTimeLimitMs = DefaultTimeLimitMs
	}
	if cfg.DefaultMemoryLimitKB <= 0 {
		cfg.DefaultMemoryLimitKB = DefaultMemoryLimitKB
	}
	if cfg.MaxTimeLimitMs <= 0 {
		cfg.MaxTimeLimitMs = MaxTimeLimitMs
	}
	if cfg.MaxMemoryLimitKB <= 0 {
		cfg.MaxMemoryLimitKB = MaxMemoryLimitKB
	}
	if cfg.DefaultTimeLimitMs > cfg.MaxTimeLimitMs || cfg.DefaultMemoryLimitKB > cfg.MaxMemoryLimitKB {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("default limits exceed the maximum limits")
	}
	return &Service{
		cfg:       cfg,
		languages: languages,
		engine:    eng,
		compiler:  comp,
		stager:    stg,
		metrics:   metrics,
	}, nil
}

// RunCpp executes C++ source.
func (s *Service) RunCpp(ctx context.Context, source, stdin string, limits spec.Limits) (result.ExecutionResult, error) {
	return s.Execute(ctx, ExecutionRequest{Language: profile.LanguageCpp, SourceCode: source, Stdin: stdin, Limits: limits})
}

// RunJava executes Java source. The first public class may have any name.
func (s *Service) RunJava(ctx context.Context, source, stdin string, limits spec.Limits) (result.ExecutionResult, error) {
	return s.Execute(ctx, ExecutionRequest{Language: profile.LanguageJava, SourceCode: source, Stdin: stdin, Limits: limits})
}

// RunPython executes Python source.
func (s *Service) RunPython(ctx context.Context, source, stdin string, limits spec.Limits) (result.ExecutionResult, error) {
	return s.Execute(ctx, ExecutionRequest{Language: profile.LanguagePython, SourceCode: source, Stdin: stdin, Limits: limits})
}

// Languages lists the configured languages.
func (s *Service) Languages(ctx context.Context) []profile.LanguageSpec {
	return s.languages.ListLanguages(ctx)
}

// Execute stages, compiles and runs one submission.
// An error is returned only when no outcome can be produced: invalid input,
// unsupported language, staging failure, or caller cancellation.
func (s *Service) Execute(ctx context.Context, req ExecutionRequest) (result.ExecutionResult, error) {
	limits, err := s.validate(req)
	if err != nil {
		return result.ExecutionResult{}, err
	}
	lang, err := s.languages.GetLanguageSpec(ctx, req.Language)
	if err != nil {
		return result.ExecutionResult{}, err
	}

	staged, err := s.stager.Stage(lang, req.SourceCode)
	if err != nil {
		logger.Error(ctx, "stage source failed", zap.String("language", lang.ID), zap.Error(err))
		return result.ExecutionResult{}, appErr.Wrap(err, appErr.StagingFailed)
	}
	ctx = context.WithValue(ctx, contextkey.JobID, staged.JobID)
	defer func() {
		if err := staged.Cleanup(); err != nil {
			logger.Warn(ctx, "cleanup job dir failed", zap.String("dir", staged.Dir), zap.Error(err))
		}
	}()

	res, err := s.compileAndRun(ctx, lang, staged, req.Stdin, limits)
	if err != nil {
		return result.ExecutionResult{}, err
	}
	res.JobID = staged.JobID
	res.Language = lang.ID
	res.ErrorDetail = result.SanitizeDetail(res.ErrorDetail, detailReplacements(lang, staged))

	logger.Info(ctx, "execution finished",
		zap.String("language", lang.ID),
		zap.String("outcome", string(res.Outcome)),
		zap.Float64("exec_time_ms", res.ExecTimeMs),
		zap.Int64("peak_memory_kb", res.PeakMemoryKB),
	)
	return res, nil
}

func (s *Service) compileAndRun(ctx context.Context, lang profile.LanguageSpec, staged stager.StagedSource, stdin string, limits spec.Limits) (result.ExecutionResult, error) {
	if lang.CompileEnabled() {
		compiled, err := s.compiler.Compile(ctx, lang, staged)
		if err != nil {
			return result.ExecutionResult{}, appErr.Wrapf(err, appErr.ExecutorSystemError, "compile %s failed", lang.ID)
		}
		if err := ctx.Err(); err != nil {
			return result.ExecutionResult{}, appErr.Wrapf(err, appErr.Timeout, "execution canceled")
		}
		s.metrics.ObserveCompile(ctx, lang.ID, compiled.OK, compiled.TimeMs)
		if !compiled.OK {
			logger.Debug(ctx, "compilation failed", zap.String("language", lang.ID), zap.Int("exit_code", compiled.ExitCode))
			res := result.CompilationFailed(compiled.Detail)
			s.metrics.ObserveRun(ctx, lang.ID, string(res.Outcome), 0, 0)
			return res, nil
		}
	}

	argv, err := profile.BuildCommand(lang.RunCmdTpl, staged.Vars())
	if err != nil {
		return result.ExecutionResult{}, err
	}
	run, err := s.engine.Run(ctx, spec.RunSpec{
		JobID:   staged.JobID,
		WorkDir: staged.Dir,
		Cmd:     argv,
		Env:     lang.Env,
		Stdin:   stdin,
		Limits:  limits,
	})
	if err != nil {
		return result.ExecutionResult{}, appErr.Wrapf(err, appErr.ExecutorSystemError, "run %s failed", lang.ID)
	}
	if run.Termination == result.TerminationCanceled && ctx.Err() != nil {
		return result.ExecutionResult{}, appErr.Wrapf(ctx.Err(), appErr.Timeout, "execution canceled")
	}

	res := result.Classify(run, limits)
	s.metrics.ObserveRun(ctx, lang.ID, string(res.Outcome), res.ExecTimeMs, res.PeakMemoryKB)
	return res, nil
}

func (s *Service) validate(req ExecutionRequest) (spec.Limits, error) {
	if strings.TrimSpace(req.Language) == "" {
		return spec.Limits{}, appErr.ValidationError("language", "required")
	}
	if req.SourceCode == "" {
		return spec.Limits{}, appErr.New(appErr.EmptySourceCode)
	}
	if s.cfg.MaxSourceBytes > 0 && len(req.SourceCode) > s.cfg.MaxSourceBytes {
		return spec.Limits{}, appErr.Newf(appErr.CodeTooLarge, "source exceeds %d bytes", s.cfg.MaxSourceBytes)
	}
	if req.Limits.TimeLimitMs < 0 {
		return spec.Limits{}, appErr.ValidationError("timeLimitMs", "must not be negative")
	}
	if req.Limits.MemoryLimitKB < 0 {
		return spec.Limits{}, appErr.ValidationError("memoryLimitKB", "must not be negative")
	}
	if req.Limits.TimeLimitMs > s.cfg.MaxTimeLimitMs {
		return spec.Limits{}, appErr.ValidationError("timeLimitMs", fmt.Sprintf("must not exceed %d", s.cfg.MaxTimeLimitMs))
	}
	if req.Limits.MemoryLimitKB > s.cfg.MaxMemoryLimitKB {
		return spec.Limits{}, appErr.ValidationError("memoryLimitKB", fmt.Sprintf("must not exceed %d", s.cfg.MaxMemoryLimitKB))
	}
	limits := req.Limits
	if limits.TimeLimitMs == 0 {
		limits.TimeLimitMs = s.cfg.DefaultTimeLimitMs
	}
	if limits.MemoryLimitKB == 0 {
		limits.MemoryLimitKB = s.cfg.DefaultMemoryLimitKB
	}
	return limits, nil
}

// detailReplacements hides the job directory and generated names behind the
// conventional ones users wrote against.
func detailReplacements(lang profile.LanguageSpec, staged stager.StagedSource) []result.Replacement {
	replacements := []result.Replacement{
		{From: staged.Dir + string(filepath.Separator), To: ""},
	}
	if lang.SourceAlias != "" {
		replacements = append(replacements, result.Replacement{From: staged.FileName, To: lang.SourceAlias})
	}
	if lang.ClassAlias != "" {
		stem := staged.JobID
		if staged.ClassName != "" {
			stem = staged.ClassName
		}
		replacements = append(replacements, result.Replacement{From: stem, To: lang.ClassAlias})
	}
	return replacements
}
