package logging

import (
	"regexp"
	"strings"
)

// Masked is the replacement used for secret values.
const Masked = "***masked***"

// sensitiveKeyParts flags structured keys whose values must never reach the
// log file.
var sensitiveKeyParts = []string{"token", "password", "secret", "key", "auth", "credential"}

var (
	ghpPattern      = regexp.MustCompile(`ghp_[A-Za-z0-9]+`)
	finePatPattern  = regexp.MustCompile(`github_pat_[A-Za-z0-9_]+`)
	tokenKVPattern  = regexp.MustCompile(`(?i)(token\s*[:=]\s*)\S+`)
	passwdKVPattern = regexp.MustCompile(`(?i)(password\s*[:=]\s*)\S+`)
)

// IsSensitiveKey reports whether a structured key must be masked.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

// MaskMessage rewrites secret-looking substrings in a free-form message.
func MaskMessage(msg string) string {
	msg = ghpPattern.ReplaceAllString(msg, "ghp_"+Masked)
	msg = finePatPattern.ReplaceAllString(msg, "github_pat_"+Masked)
	msg = tokenKVPattern.ReplaceAllString(msg, "${1}"+Masked)
	msg = passwdKVPattern.ReplaceAllString(msg, "${1}"+Masked)
	return msg
}
