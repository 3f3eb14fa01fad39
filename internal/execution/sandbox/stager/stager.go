// Package stager writes submitted source into per-job working directories.
package stager

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"codeexec/internal/execution/sandbox/profile"
	appErr "codeexec/pkg/errors"

	"github.com/google/uuid"
)

const javaClassPrefix = "Java_"

var publicClassPattern = regexp.MustCompile(`public\s+class\s+([A-Za-z_][A-Za-z0-9_]*)`)

// StagedSource is the on-disk copy of one submission.
type StagedSource struct {
	JobID    string
	Language string
	// Dir is private to the job and removed by Cleanup.
	Dir      string
	FilePath string
	FileName string
	// ClassName is the rewritten Java class, empty for other languages.
	ClassName string
	BinaryExt string
}

// BinaryPath returns the native artifact path produced by compilation.
func (s StagedSource) BinaryPath() string {
	return filepath.Join(s.Dir, s.JobID+s.BinaryExt)
}

// Vars returns the command template substitutions for this job.
func (s StagedSource) Vars() map[string]string {
	return map[string]string{
		profile.PlaceholderSource: s.FilePath,
		profile.PlaceholderBinary: s.BinaryPath(),
		profile.PlaceholderDir:    s.Dir,
		profile.PlaceholderClass:  s.ClassName,
		profile.PlaceholderJobID:  s.JobID,
	}
}

// Cleanup removes the job directory and everything compiled into it.
func (s StagedSource) Cleanup() error {
	if s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}

// Stager stages sources below a fixed working root.
type Stager struct {
	root  string
	newID func() string
}

// New creates a stager rooted at root.
func New(root string) *Stager {
	return &Stager{root: root, newID: uuid.NewString}
}

// Root returns the working root.
func (s *Stager) Root() string {
	return s.root
}

// Stage writes source into a fresh job directory.
func (s *Stager) Stage(lang profile.LanguageSpec, source string) (StagedSource, error) {
	if s.root == "" {
		return StagedSource{}, appErr.ValidationError("work_root", "required")
	}
	if lang.SourceExt == "" {
		return StagedSource{}, appErr.ValidationError("source_ext", "required")
	}
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return StagedSource{}, appErr.Wrapf(err, appErr.StagingFailed, "create work root failed")
	}

	jobID := s.newID()
	dir := filepath.Join(s.root, jobID)
	// Mkdir fails on an existing directory, so two jobs never share one.
	if err := os.Mkdir(dir, 0755); err != nil {
		return StagedSource{}, appErr.Wrapf(err, appErr.StagingFailed, "create job dir failed")
	}

	staged := StagedSource{
		JobID:     jobID,
		Language:  lang.ID,
		Dir:       dir,
		BinaryExt: lang.BinaryExt,
	}
	stem := jobID
	content := source
	if lang.RewriteClass {
		staged.ClassName = JavaClassName(jobID)
		stem = staged.ClassName
		content, _ = RewritePublicClass(source, staged.ClassName)
	}
	staged.FileName = stem + "." + lang.SourceExt
	staged.FilePath = filepath.Join(dir, staged.FileName)

	if err := os.WriteFile(staged.FilePath, []byte(content), 0644); err != nil {
		_ = staged.Cleanup()
		return StagedSource{}, appErr.Wrapf(err, appErr.StagingFailed, "write source failed")
	}
	return staged, nil
}

// JavaClassName derives a valid class identifier from a job id.
func JavaClassName(jobID string) string {
	return javaClassPrefix + strings.ReplaceAll(jobID, "-", "_")
}

// RewritePublicClass renames the first public class declaration.
// Sources without one are returned unchanged with ok=false.
func RewritePublicClass(source, className string) (string, bool) {
	loc := publicClassPattern.FindStringSubmatchIndex(source)
	if loc == nil {
		return source, false
	}
	return source[:loc[2]] + className + source[loc[3]:], true
}
