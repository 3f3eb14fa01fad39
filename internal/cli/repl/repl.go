package repl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"codeexec/internal/execution/sandbox"
	"codeexec/internal/execution/sandbox/result"
	"codeexec/internal/execution/sandbox/spec"

	"github.com/google/shlex"
)

// Settings are the values applied to every run in a session.
type Settings struct {
	Language  string
	InputPath string
	Limits    spec.Limits
}

// Session holds REPL state.
type Session struct {
	executor     sandbox.Executor
	settings     Settings
	prettyJSON   bool
	outputWriter *bufio.Writer
}

func New(executor sandbox.Executor, settings Settings, out io.Writer, prettyJSON bool) *Session {
	return &Session{
		executor:     executor,
		settings:     settings,
		prettyJSON:   prettyJSON,
		outputWriter: bufio.NewWriter(out),
	}
}

// Run reads commands from in until EOF, exit, or ctx is done.
func (s *Session) Run(ctx context.Context, in io.Reader) {
	reader := bufio.NewReader(in)
	for ctx.Err() == nil {
		_, _ = s.outputWriter.WriteString("codeexec> ")
		_ = s.outputWriter.Flush()
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if err != io.EOF {
				s.printLine("read input failed: %v", err)
			}
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			s.printLine("bye")
			return
		}
		if err := s.handleCommand(ctx, line); err != nil {
			s.printLine("error: %v", err)
		}
	}
}

func (s *Session) handleCommand(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}
	switch tokens[0] {
	case "help":
		s.printHelp()
	case "show":
		s.printLine("lang=%s input=%s time=%dms memory=%dKB",
			s.settings.Language, s.settings.InputPath, s.settings.Limits.TimeLimitMs, s.settings.Limits.MemoryLimitKB)
	case "set":
		return s.handleSet(tokens[1:])
	case "run":
		if len(tokens) < 2 {
			return fmt.Errorf("usage: run <source file>")
		}
		return s.runFile(ctx, tokens[1])
	default:
		return fmt.Errorf("unknown command: %s", tokens[0])
	}
	return nil
}

func (s *Session) handleSet(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: set lang|input|time|memory <value>")
	}
	value := args[1]
	switch args[0] {
	case "lang":
		s.settings.Language = value
	case "input":
		if value == "-" {
			value = ""
		}
		s.settings.InputPath = value
	case "time", "memory":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid %s: %s", args[0], value)
		}
		if args[0] == "time" {
			s.settings.Limits.TimeLimitMs = n
		} else {
			s.settings.Limits.MemoryLimitKB = n
		}
	default:
		return fmt.Errorf("unknown setting: %s", args[0])
	}
	s.printLine("%s set to %s", args[0], value)
	return nil
}

func (s *Session) runFile(ctx context.Context, path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read source failed: %w", err)
	}
	var stdin string
	if s.settings.InputPath != "" {
		data, err := os.ReadFile(s.settings.InputPath)
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}
		stdin = string(data)
	}
	res, err := s.executor.Execute(ctx, sandbox.ExecutionRequest{
		Language:   s.settings.Language,
		SourceCode: string(source),
		Stdin:      stdin,
		Limits:     s.settings.Limits,
	})
	if err != nil {
		return err
	}
	s.renderResult(res)
	return nil
}

func (s *Session) renderResult(res result.ExecutionResult) {
	var (
		data []byte
		err  error
	)
	if s.prettyJSON {
		data, err = json.MarshalIndent(res, "", "  ")
	} else {
		data, err = json.Marshal(res)
	}
	if err != nil {
		s.printLine("encode result failed: %v", err)
		return
	}
	s.printLine("%s", string(data))
}

func (s *Session) printHelp() {
	s.printLine("commands: run <file> | set lang|input|time|memory <value> | show | help | exit")
	s.printLine("examples:")
	s.printLine("  set lang python")
	s.printLine("  set input ./in.txt")
	s.printLine("  run ./main.py")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.outputWriter, format+"\n", args...)
	_ = s.outputWriter.Flush()
}
