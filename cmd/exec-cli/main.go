package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	httpclient "codeexec/internal/cli/http"
	"codeexec/internal/cli/repl"
	"codeexec/internal/execution/sandbox"
	"codeexec/internal/execution/sandbox/compiler"
	"codeexec/internal/execution/sandbox/config"
	"codeexec/internal/execution/sandbox/engine"
	"codeexec/internal/execution/sandbox/observer"
	"codeexec/internal/execution/sandbox/profile"
	"codeexec/internal/execution/sandbox/spec"
	"codeexec/internal/execution/sandbox/stager"
	"codeexec/pkg/utils/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	lang := flag.String("lang", profile.LanguageCpp, "Language id (cpp, java, python)")
	file := flag.String("file", "", "Source file path")
	input := flag.String("input", "", "Stdin file path, or - to read stdin")
	timeLimit := flag.Int64("time", 0, "Time limit in milliseconds (0 uses the default)")
	memoryLimit := flag.Int64("memory", 0, "Memory limit in KB (0 uses the default)")
	workRoot := flag.String("root", filepath.Join(os.TempDir(), "codeexec"), "Staging root")
	logLevel := flag.String("log", "warn", "Log level")
	pretty := flag.Bool("pretty", false, "Pretty print JSON result")
	remote := flag.String("remote", "", "Base URL of an exec-service; runs locally when empty")
	timeout := flag.Duration("timeout", 2*time.Minute, "HTTP timeout in remote mode")
	interactive := flag.Bool("repl", false, "Start an interactive session")
	flag.Parse()

	if *file == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "-file is required")
		return 2
	}

	if err := logger.Init(logger.Config{Level: *logLevel, Format: "console", OutputPath: "stderr"}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return 2
	}
	defer func() {
		_ = logger.Sync()
	}()

	var executor sandbox.Executor
	if *remote != "" {
		executor = httpclient.New(*remote, *timeout)
	} else {
		svc, err := newLocalService(*workRoot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "init execution service failed: %v\n", err)
			return 2
		}
		executor = svc
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limits := spec.Limits{TimeLimitMs: *timeLimit, MemoryLimitKB: *memoryLimit}
	if *interactive {
		settings := repl.Settings{Language: *lang, Limits: limits}
		if *input != "-" {
			settings.InputPath = *input
		}
		repl.New(executor, settings, os.Stdout, *pretty).Run(ctx, os.Stdin)
		return 0
	}

	source, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read source failed: %v\n", err)
		return 2
	}
	stdin, err := readInput(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input failed: %v\n", err)
		return 2
	}
	res, err := executor.Execute(ctx, sandbox.ExecutionRequest{
		Language:   *lang,
		SourceCode: string(source),
		Stdin:      stdin,
		Limits:     limits,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "execute failed: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		fmt.Fprintf(os.Stderr, "encode result failed: %v\n", err)
		return 1
	}
	return 0
}

func newLocalService(workRoot string) (*sandbox.Service, error) {
	if err := os.MkdirAll(workRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create staging root failed: %w", err)
	}
	return sandbox.NewService(
		sandbox.Config{},
		config.NewLocalRepository(profile.DefaultLanguages()),
		engine.NewProcessRunner(engine.Config{EnableRlimits: true}),
		compiler.New(compiler.Config{}),
		stager.New(workRoot),
		observer.NoopMetricsRecorder{},
	)
}

func readInput(path string) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	default:
		data, err := os.ReadFile(path)
		return string(data), err
	}
}
