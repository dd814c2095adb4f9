package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamflowhq/teamflow/internal/gateway"
	"github.com/teamflowhq/teamflow/internal/git"
	"github.com/teamflowhq/teamflow/internal/phase"
)

func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd, buf
}

// isolate pins HOME and the relevant env keys so the host environment
// cannot leak into config.Load.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{"GITHUB_TOKEN", "SLACK_TOKEN", "SLACK_CHANNEL",
		"DISCORD_WEBHOOK_URL", "DEFAULT_BRANCH", "DEBUG", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := newVersionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "teamflow version")
}

func TestCheckConfig_MissingTokenFails(t *testing.T) {
	isolate(t)
	t.Chdir(t.TempDir())

	cmd, buf := newTestCmd()
	err := runCheckConfig(cmd)
	assert.ErrorIs(t, err, errPhaseFailed)
	assert.Contains(t, buf.String(), "GITHUB_TOKEN")
}

func TestCheckConfig_ValidTokenPasses(t *testing.T) {
	isolate(t)
	t.Chdir(t.TempDir())
	t.Setenv("GITHUB_TOKEN", "ghp_"+strings.Repeat("a", 36))

	cmd, buf := newTestCmd()
	require.NoError(t, runCheckConfig(cmd))
	assert.Contains(t, buf.String(), "***masked***")
	assert.NotContains(t, buf.String(), strings.Repeat("a", 36))
}

func TestFixConfig_CreatesProjectFiles(t *testing.T) {
	isolate(t)
	t.Chdir(t.TempDir())

	cmd, buf := newTestCmd()
	require.NoError(t, runFixConfig(cmd))
	assert.Contains(t, buf.String(), "作成:")

	// Running again skips everything it already created.
	cmd2, buf2 := newTestCmd()
	require.NoError(t, runFixConfig(cmd2))
	assert.NotContains(t, buf2.String(), "作成:")
}

func TestReport_StatusMapping(t *testing.T) {
	s := &session{}

	cmd, buf := newTestCmd()
	require.NoError(t, s.report(cmd, &phase.Result{Status: phase.Completed, Messages: []string{"done"}}))
	assert.Contains(t, buf.String(), "done")
	assert.Contains(t, buf.String(), "完了")

	cmd, _ = newTestCmd()
	require.NoError(t, s.report(cmd, &phase.Result{Status: phase.Aborted}))

	cmd, buf = newTestCmd()
	err := s.report(cmd, &phase.Result{Status: phase.Failed, RequiresManualAction: true})
	assert.ErrorIs(t, err, errPhaseFailed)
	assert.Contains(t, buf.String(), "手動での対応が必要")
}

func TestRenderTeamReport(t *testing.T) {
	buf := &bytes.Buffer{}
	renderTeamReport(buf, &phase.TeamReport{
		Branches: []phase.BranchActivity{
			{Name: "feature/a", LastCommit: &git.Commit{
				Author: "alice", Subject: "feat: a", Date: time.Now().Add(-2 * time.Hour),
			}},
		},
		PRs: []phase.PRStatus{
			{Number: 7, Title: "PR seven", Author: "bob", State: "要レビュー"},
		},
		Conflicts: []phase.FileConflict{
			{Path: "shared.go", Branches: []string{"feature/a", "feature/b"}},
		},
		Metrics: &gateway.Metrics{WindowDays: 7, Commits: 3, PRsMerged: 2,
			MeanReviewTime: 36 * time.Hour},
		Sampled: true,
	})

	out := buf.String()
	assert.Contains(t, out, "feature/a")
	assert.Contains(t, out, "2時間前")
	assert.Contains(t, out, "#7 PR seven")
	assert.Contains(t, out, "shared.go")
	assert.Contains(t, out, "直近7日間")
	assert.Contains(t, out, "平均レビュー時間 36.0 時間")
	assert.Contains(t, out, "先頭50件")
}
