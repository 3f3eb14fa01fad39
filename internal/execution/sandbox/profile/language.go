// Package profile defines language profiles used by the sandbox.
package profile

import (
	"runtime"
	"strings"
)

// LanguageSpec defines how to stage, compile and run a language.
type LanguageSpec struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version,omitempty"`
	// SourceExt is the extension of the staged source file, without the dot.
	SourceExt string `yaml:"sourceExt" json:"sourceExt"`
	// SourceAlias replaces the generated file name in diagnostics.
	SourceAlias string `yaml:"sourceAlias" json:"-"`
	// ClassAlias replaces the generated class name in diagnostics.
	ClassAlias    string   `yaml:"classAlias" json:"-"`
	BinaryExt     string   `yaml:"binaryExt" json:"-"`
	CompileCmdTpl string   `yaml:"compileCmd" json:"-"`
	RunCmdTpl     string   `yaml:"runCmd" json:"-"`
	RewriteClass  bool     `yaml:"rewriteClass" json:"-"`
	Env           []string `yaml:"env" json:"-"`
}

// CompileEnabled reports whether the language has a compile step.
func (l LanguageSpec) CompileEnabled() bool {
	return strings.TrimSpace(l.CompileCmdTpl) != ""
}

const (
	LanguageCpp    = "cpp"
	LanguageJava   = "java"
	LanguagePython = "python"
)

// DefaultLanguages returns the built-in toolchain profiles.
func DefaultLanguages() []LanguageSpec {
	binaryExt := ""
	python := "python3"
	if runtime.GOOS == "windows" {
		binaryExt = ".exe"
		python = "python"
	}
	return []LanguageSpec{
		{
			ID:            LanguageCpp,
			Name:          "C++",
			SourceExt:     "cpp",
			SourceAlias:   "Main.cpp",
			ClassAlias:    "Main",
			BinaryExt:     binaryExt,
			CompileCmdTpl: "g++ -O2 -o {bin} {src}",
			RunCmdTpl:     "{bin}",
		},
		{
			ID:            LanguageJava,
			Name:          "Java",
			SourceExt:     "java",
			SourceAlias:   "Main.java",
			ClassAlias:    "Main",
			CompileCmdTpl: "javac -encoding UTF-8 {src}",
			RunCmdTpl:     "java -cp {dir} {class}",
			RewriteClass:  true,
		},
		{
			ID:          LanguagePython,
			Name:        "Python 3",
			SourceExt:   "py",
			SourceAlias: "main.py",
			ClassAlias:  "main",
			RunCmdTpl:   python + " {src}",
		},
	}
}
