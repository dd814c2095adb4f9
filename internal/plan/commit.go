package plan

import (
	"regexp"
	"strings"
)

// conventionalPattern matches "type(scope)?: subject" headers.
var conventionalPattern = regexp.MustCompile(
	`^(feat|fix|docs|style|refactor|perf|test|build|ci|chore|revert)(\([^)]+\))?!?: .+`)

// IsConventional reports whether the first line of msg follows the
// conventional commit format.
func IsConventional(msg string) bool {
	first := msg
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		first = msg[:idx]
	}
	return conventionalPattern.MatchString(first)
}

// EnsureConventional prefixes msg with the work type's commit type
// unless it already carries a conventional header.
func EnsureConventional(wt WorkType, msg string) string {
	if IsConventional(msg) {
		return msg
	}
	return wt.CommitType() + ": " + msg
}
