// Package validate implements input validation for branch names, commit
// messages, tokens, notification channels and paths. Every validator
// returns a Result instead of an error so callers can re-prompt with the
// message.
package validate

import (
	"net/url"
	"regexp"
	"strings"
)

// Result is the outcome of a validation. When Valid, Value holds the
// normalized input (trimmed, channel prefixed, ...).
type Result struct {
	Valid bool
	Value string
	Error string
}

func ok(value string) Result     { return Result{Valid: true, Value: value} }
func fail(message string) Result { return Result{Error: message} }

var (
	classicTokenPattern = regexp.MustCompile(`^ghp_[A-Za-z0-9]{36}$`)
	fineTokenPattern    = regexp.MustCompile(`^github_pat_[A-Za-z0-9_]{82}$`)
	channelPattern      = regexp.MustCompile(`^#[a-z0-9_-]+$`)
	webhookPattern      = regexp.MustCompile(`^https://discord\.com/api/webhooks/\d+/[\w-]+$`)
	branchBadChars      = "~^:?*[]\\"
)

// BranchName validates a git branch name. The input is trimmed first and
// the trimmed value is returned on success.
func BranchName(name string) Result {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return fail(msgBranchEmpty)
	case len(name) > 100:
		return fail(msgBranchTooLong)
	case strings.ContainsAny(name, " \t\n\r"):
		return fail(msgBranchWhitespace)
	case strings.Contains(name, ".."):
		return fail(msgBranchDotDot)
	case strings.ContainsAny(name, branchBadChars):
		return fail(msgBranchInvalidChar)
	case strings.HasPrefix(name, "-"):
		return fail(msgBranchLeadingDash)
	case strings.HasSuffix(name, "-"):
		return fail(msgBranchTrailingDash)
	case strings.EqualFold(name, "HEAD"):
		return fail(msgBranchReserved)
	case strings.HasPrefix(name, "."):
		return fail(msgBranchLeadingDot)
	case strings.HasSuffix(name, "."):
		return fail(msgBranchTrailingDot)
	case strings.HasPrefix(name, "/"), strings.HasSuffix(name, "/"):
		return fail(msgBranchSlash)
	case strings.Contains(name, "//"):
		return fail(msgBranchDoubleSlash)
	}
	return ok(name)
}

// CommitMessage validates a commit message: trimmed length in [5, 200].
func CommitMessage(msg string) Result {
	msg = strings.TrimSpace(msg)
	if len(msg) < 5 {
		return fail(msgCommitTooShort)
	}
	if len(msg) > 200 {
		return fail(msgCommitTooLong)
	}
	return ok(msg)
}

// Token validates a GitHub personal access token. Exactly two shapes are
// accepted: classic (ghp_ + 36 alphanumerics) and fine-grained
// (github_pat_ + 82 word characters).
func Token(token string) Result {
	token = strings.TrimSpace(token)
	if classicTokenPattern.MatchString(token) || fineTokenPattern.MatchString(token) {
		return ok(token)
	}
	return fail(msgTokenInvalid)
}

// SlackChannel validates a Slack channel name, prepending "#" when absent.
func SlackChannel(channel string) Result {
	channel = strings.TrimSpace(channel)
	if !strings.HasPrefix(channel, "#") {
		channel = "#" + channel
	}
	if len(channel) < 2 || len(channel) > 22 {
		return fail(msgChannelLength)
	}
	if !channelPattern.MatchString(channel) {
		return fail(msgChannelPattern)
	}
	return ok(channel)
}

// URL validates a URL, optionally restricting the scheme to one of
// allowedSchemes (empty means any scheme parseable by net/url).
func URL(raw string, allowedSchemes ...string) Result {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fail(msgURLInvalid)
	}
	if len(allowedSchemes) > 0 {
		allowed := false
		for _, s := range allowedSchemes {
			if u.Scheme == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return fail(msgURLScheme)
		}
	}
	return ok(raw)
}

// DiscordWebhookURL validates a Discord webhook URL.
func DiscordWebhookURL(raw string) Result {
	res := URL(raw, "https")
	if !res.Valid {
		return fail(msgWebhookInvalid)
	}
	if !webhookPattern.MatchString(res.Value) {
		return fail(msgWebhookInvalid)
	}
	return res
}

// forbiddenPathPrefixes are never valid targets for file operations.
var forbiddenPathPrefixes = []string{"/etc", "/root", "/var/log"}

// FilePath validates a path for use in backup and repair operations.
func FilePath(path string) Result {
	path = strings.TrimSpace(path)
	if strings.Contains(path, "\x00") {
		return fail(msgPathNullByte)
	}
	if strings.Contains(path, "..") {
		return fail(msgPathTraversal)
	}
	for _, prefix := range forbiddenPathPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return fail(msgPathForbidden)
		}
	}
	return ok(path)
}
