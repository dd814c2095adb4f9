package diagnose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamflowhq/teamflow/internal/config"
	"github.com/teamflowhq/teamflow/internal/git"
	"github.com/teamflowhq/teamflow/internal/logging"
)

type stubRunner struct {
	responses map[string]string
	failures  map[string]error
}

func (s *stubRunner) Run(_ context.Context, _ string, name string, args ...string) (string, error) {
	key := name + " " + strings.Join(args, " ")
	if err, ok := s.failures[key]; ok {
		return "", err
	}
	out, ok := s.responses[key]
	if !ok {
		return "", errors.New("unexpected command: " + key)
	}
	return strings.TrimSpace(out), nil
}

// healthyResponses is a baseline repository that passes every check.
func healthyResponses() map[string]string {
	return map[string]string{
		"git rev-parse --is-inside-work-tree": "true",
		"git status --porcelain=v1 --branch":  "## feature/x...origin/feature/x",
		"git config --get user.name":          "dev",
		"git config --get user.email":         "dev@example.com",
		"git remote get-url origin":           "https://github.com/acme/widgets.git",
		"git ls-remote --heads origin main":   "abc123\trefs/heads/main",
	}
}

func newDoctor(t *testing.T, responses map[string]string) *Doctor {
	t.Helper()
	cfg := config.Default()
	cfg.WorkDir = t.TempDir()
	g := git.NewWithRunner(cfg.WorkDir, &stubRunner{responses: responses})
	d := NewDoctor(cfg, g, logging.Discard())
	d.now = func() time.Time { return time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC) }
	return d
}

func TestRun_HealthyRepository(t *testing.T) {
	d := newDoctor(t, healthyResponses())
	report := d.Run(context.Background())
	assert.True(t, report.Healthy())
	assert.Empty(t, report.Findings)
}

func TestRun_NotARepositoryShortCircuits(t *testing.T) {
	d := newDoctor(t, map[string]string{})

	report := d.Run(context.Background())
	assert.False(t, report.Healthy())
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "not_git_repository", report.Findings[0].Code)
}

func TestRun_ConflictsAndDetachedHead(t *testing.T) {
	responses := healthyResponses()
	responses["git status --porcelain=v1 --branch"] = "## HEAD (no branch)\nUU a.txt\nUU b.txt"
	d := newDoctor(t, responses)

	report := d.Run(context.Background())
	codes := findingCodes(report.Problems())
	assert.Contains(t, codes, "merge_conflict")
	assert.Contains(t, codes, "detached_head")
}

func TestRun_TooManyUntracked(t *testing.T) {
	var lines []string
	lines = append(lines, "## feature/x...origin/feature/x")
	for i := 0; i < untrackedLimit+1; i++ {
		lines = append(lines, "?? file"+strings.Repeat("x", i)+".txt")
	}
	responses := healthyResponses()
	responses["git status --porcelain=v1 --branch"] = strings.Join(lines, "\n")
	d := newDoctor(t, responses)

	report := d.Run(context.Background())
	assert.Contains(t, findingCodes(report.Problems()), "too_many_untracked")
}

func TestRun_MissingIdentity(t *testing.T) {
	responses := healthyResponses()
	delete(responses, "git config --get user.email")
	d := newDoctor(t, responses)

	report := d.Run(context.Background())
	assert.Contains(t, findingCodes(report.Problems()), "missing_identity")
}

func TestRun_RemoteChecks(t *testing.T) {
	responses := healthyResponses()
	delete(responses, "git remote get-url origin")
	d := newDoctor(t, responses)
	report := d.Run(context.Background())
	assert.Contains(t, findingCodes(report.Problems()), "no_remote")

	responses = healthyResponses()
	responses["git ls-remote --heads origin main"] = ""
	d = newDoctor(t, responses)
	report = d.Run(context.Background())
	assert.Contains(t, findingCodes(report.Problems()), "remote_unreachable")

	// Offline mode skips both.
	d = newDoctor(t, responses)
	d.SkipRemoteChecks()
	report = d.Run(context.Background())
	assert.True(t, report.Healthy())
}

func TestRun_AdvisoriesDoNotBlock(t *testing.T) {
	responses := healthyResponses()
	responses["git status --porcelain=v1 --branch"] = "## main...origin/main [ahead 3]\n M a.go"
	d := newDoctor(t, responses)

	report := d.Run(context.Background())
	assert.True(t, report.Healthy())
	codes := findingCodes(report.Warnings())
	assert.Contains(t, codes, "on_default_branch")
	assert.Contains(t, codes, "unpushed_commits")
}

func TestProbeTestRunner(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, ProbeTestRunner(dir).Tool, "no marker, no probe")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x\n"), 0o644))
	probe := ProbeTestRunner(dir)
	assert.Equal(t, "go", probe.Tool)
	assert.Equal(t, []string{"go", "test", "./..."}, probe.Command)
}

func findingCodes(findings []Finding) []string {
	var out []string
	for _, f := range findings {
		out = append(out, f.Code)
	}
	return out
}
