package workstatus

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamflowhq/teamflow/internal/config"
	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
	"github.com/teamflowhq/teamflow/internal/git"
)

type stubRunner struct {
	responses map[string]string
}

func (s *stubRunner) Run(_ context.Context, _ string, name string, args ...string) (string, error) {
	key := name + " " + strings.Join(args, " ")
	out, ok := s.responses[key]
	if !ok {
		return "", errors.New("unexpected command: " + key)
	}
	return strings.TrimSpace(out), nil
}

const logFormat = "%H%x1f%an%x1f%aI%x1f%s"

func newAnalyzer(t *testing.T, status string, lastCommitAt, branchFirstAt time.Time) *Analyzer {
	t.Helper()
	responses := map[string]string{
		"git status --porcelain=v1 --branch": status,
		"git log -1 --format=" + logFormat + " HEAD": "abc\x1fdev\x1f" +
			lastCommitAt.Format(time.RFC3339) + "\x1ffeat: work",
		"git log --reverse --format=%aI main..feature/issue-5-login": branchFirstAt.Format(time.RFC3339),
	}
	cfg := config.Default()
	cfg.WorkDir = t.TempDir()
	a := NewAnalyzer(cfg, git.NewWithRunner(cfg.WorkDir, &stubRunner{responses: responses}))
	a.now = func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestAnalyze_RefusesDefaultBranch(t *testing.T) {
	cfg := config.Default()
	cfg.WorkDir = t.TempDir()
	a := NewAnalyzer(cfg, git.NewWithRunner(cfg.WorkDir, &stubRunner{responses: map[string]string{
		"git status --porcelain=v1 --branch": "## main...origin/main",
	}}))

	_, err := a.Analyze(context.Background())
	require.Error(t, err)
	assert.Equal(t, flowerrors.TagOnDefaultBranch, flowerrors.TagOf(err))
}

func TestClassifySync(t *testing.T) {
	tests := []struct {
		name   string
		status git.Status
		want   SyncState
	}{
		{"no upstream", git.Status{}, NoUpstream},
		{"synced", git.Status{Tracking: "origin/x"}, Synced},
		{"ahead", git.Status{Tracking: "origin/x", Ahead: 2}, Ahead},
		{"behind", git.Status{Tracking: "origin/x", Behind: 1}, Behind},
		{"diverged", git.Status{Tracking: "origin/x", Ahead: 2, Behind: 1}, Diverged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifySync(&tt.status))
		})
	}
}

func TestAnalyze_FreshBranch(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	a := newAnalyzer(t,
		"## feature/issue-5-login...origin/feature/issue-5-login",
		now.Add(-time.Hour), now.Add(-2*time.Hour))

	report, err := a.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Synced, report.Sync)
	assert.False(t, report.Stale)
	assert.False(t, report.LongRunning)
	assert.Empty(t, report.Recommendations)
}

func TestAnalyze_StaleAndLongRunning(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	a := newAnalyzer(t,
		"## feature/issue-5-login...origin/feature/issue-5-login",
		now.Add(-30*time.Hour), now.Add(-40*time.Hour))

	report, err := a.Analyze(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Stale, "no commit for 30h")
	assert.True(t, report.LongRunning, "branch is 40h old")
	assert.InDelta(t, 30, report.HoursSinceCommit, 0.01)

	actions := recommendedActions(report)
	assert.Equal(t, []Action{ActionUpdateIssue, ActionUpdateStatus}, actions)
}

func TestRecommend_RankedOrder(t *testing.T) {
	report := &Report{
		Sync:             Behind,
		Behind:           3,
		UncommittedCount: 2,
		Stale:            true,
		HoursSinceCommit: 25,
	}
	order := recommendedActions(report)
	assert.Equal(t, []Action{ActionCommit, ActionPull, ActionTest, ActionUpdateStatus}, order)
}

func TestRecommend_DivergedAndNoUpstream(t *testing.T) {
	div := recommend(&Report{Sync: Diverged, Ahead: 1, Behind: 1})
	require.NotEmpty(t, div)
	assert.Equal(t, ActionSync, div[0].Action)

	noUp := recommend(&Report{Sync: NoUpstream, Ahead: 0})
	require.NotEmpty(t, noUp)
	assert.Equal(t, ActionPush, noUp[0].Action)
	assert.Contains(t, noUp[0].Reason, "push -u")
}

func recommendedActions(r *Report) []Action {
	var out []Action
	for _, rec := range recommend(r) {
		out = append(out, rec.Action)
	}
	return out
}
