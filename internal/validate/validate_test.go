package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBranchName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"simple", "feature/login", true},
		{"trimmed", "  feature/login  ", true},
		{"with issue", "bugfix/issue-5-login", true},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"too long", strings.Repeat("a", 101), false},
		{"exactly 100", strings.Repeat("a", 100), true},
		{"inner space", "fix login", false},
		{"dotdot", "a..b", false},
		{"tilde", "a~b", false},
		{"caret", "a^b", false},
		{"colon", "a:b", false},
		{"question", "a?b", false},
		{"asterisk", "a*b", false},
		{"bracket", "a[b", false},
		{"backslash", `a\b`, false},
		{"leading dash", "-feature", false},
		{"trailing dash", "feature-", false},
		{"head upper", "HEAD", false},
		{"head lower", "head", false},
		{"leading dot", ".feature", false},
		{"trailing dot", "feature.", false},
		{"leading slash", "/feature", false},
		{"trailing slash", "feature/", false},
		{"double slash", "feature//x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := BranchName(tt.input)
			assert.Equal(t, tt.valid, res.Valid)
			if tt.valid {
				assert.Equal(t, strings.TrimSpace(tt.input), res.Value)
				assert.Empty(t, res.Error)
			} else {
				assert.NotEmpty(t, res.Error)
			}
		})
	}
}

func TestCommitMessage(t *testing.T) {
	assert.False(t, CommitMessage("abc").Valid)
	assert.False(t, CommitMessage("  ab  ").Valid)
	assert.True(t, CommitMessage("fix: x").Valid)
	assert.True(t, CommitMessage(strings.Repeat("a", 200)).Valid)
	assert.False(t, CommitMessage(strings.Repeat("a", 201)).Valid)

	res := CommitMessage("  feat: add login  ")
	assert.True(t, res.Valid)
	assert.Equal(t, "feat: add login", res.Value)
}

func TestToken(t *testing.T) {
	classic := "ghp_" + strings.Repeat("A", 36)
	fine := "github_pat_" + strings.Repeat("a", 82)

	assert.True(t, Token(classic).Valid)
	assert.True(t, Token(fine).Valid)
	assert.False(t, Token("ghp_short").Valid)
	assert.False(t, Token("ghp_"+strings.Repeat("A", 37)).Valid)
	assert.False(t, Token("github_pat_"+strings.Repeat("a", 81)).Valid)
	assert.False(t, Token("gho_"+strings.Repeat("A", 36)).Valid)
	assert.False(t, Token("").Valid)
}

func TestSlackChannel(t *testing.T) {
	res := SlackChannel("general")
	assert.True(t, res.Valid)
	assert.Equal(t, "#general", res.Value)

	res = SlackChannel("#team-dev_1")
	assert.True(t, res.Valid)

	assert.False(t, SlackChannel("#").Valid)
	assert.False(t, SlackChannel("#"+strings.Repeat("a", 22)).Valid)
	assert.False(t, SlackChannel("#General").Valid)
	assert.False(t, SlackChannel("#team dev").Valid)
}

func TestURL(t *testing.T) {
	assert.True(t, URL("https://example.com/x").Valid)
	assert.False(t, URL("not a url").Valid)
	assert.False(t, URL("example.com").Valid)
	assert.True(t, URL("https://example.com", "https").Valid)
	assert.False(t, URL("http://example.com", "https").Valid)
}

func TestDiscordWebhookURL(t *testing.T) {
	assert.True(t, DiscordWebhookURL("https://discord.com/api/webhooks/123456/abc_DEF-123").Valid)
	assert.False(t, DiscordWebhookURL("https://discord.com/api/webhooks/abc/def").Valid)
	assert.False(t, DiscordWebhookURL("https://example.com/api/webhooks/1/a").Valid)
	assert.False(t, DiscordWebhookURL("http://discord.com/api/webhooks/1/a").Valid)
}

func TestFilePath(t *testing.T) {
	assert.True(t, FilePath("work/notes.txt").Valid)
	assert.False(t, FilePath("../secrets").Valid)
	assert.False(t, FilePath("/etc/passwd").Valid)
	assert.False(t, FilePath("/root/.ssh/id_rsa").Valid)
	assert.False(t, FilePath("/var/log/syslog").Valid)
	assert.False(t, FilePath("a\x00b").Valid)
	// Prefix match must not reject sibling directories.
	assert.True(t, FilePath("/etcetera/file").Valid)
}
