package result

import (
	"sort"
	"strings"
)

// Replacement maps a generated name onto the name shown to users.
type Replacement struct {
	From string
	To   string
}

// SanitizeDetail hides generated file names and staging paths in diagnostics.
// Longer names are replaced first so a path is never half rewritten.
func SanitizeDetail(detail string, replacements []Replacement) string {
	if detail == "" || len(replacements) == 0 {
		return detail
	}
	ordered := make([]Replacement, 0, len(replacements))
	for _, r := range replacements {
		if r.From != "" {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].From) > len(ordered[j].From)
	})
	for _, r := range ordered {
		detail = strings.ReplaceAll(detail, r.From, r.To)
	}
	return detail
}
