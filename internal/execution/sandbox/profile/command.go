package profile

import (
	"strings"

	appErr "codeexec/pkg/errors"

	"github.com/google/shlex"
)

// Template placeholders understood by BuildCommand.
const (
	PlaceholderSource = "{src}"
	PlaceholderBinary = "{bin}"
	PlaceholderDir    = "{dir}"
	PlaceholderClass  = "{class}"
	PlaceholderJobID  = "{jobId}"
)

// BuildCommand splits a command template into argv and substitutes placeholders.
// The template is split before substitution, so paths containing spaces
// stay a single argument.
func BuildCommand(tpl string, vars map[string]string) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command template is required")
	}
	fields, err := shlex.Split(tpl)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse command template failed")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command is empty after expansion")
	}
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, key, value)
	}
	replacer := strings.NewReplacer(pairs...)
	for i, field := range fields {
		fields[i] = replacer.Replace(field)
	}
	return fields, nil
}
