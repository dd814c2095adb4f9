// Package workstatus analyzes the current work branch and produces a
// ranked list of next actions for the continue workflow.
package workstatus

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/teamflowhq/teamflow/internal/config"
	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
	"github.com/teamflowhq/teamflow/internal/git"
)

// SyncState classifies the branch against its upstream.
type SyncState string

const (
	Synced     SyncState = "synced"
	Ahead      SyncState = "ahead"
	Behind     SyncState = "behind"
	Diverged   SyncState = "diverged"
	NoUpstream SyncState = "no_upstream"
)

// Action is one recommended next step.
type Action string

const (
	ActionCommit       Action = "commit"
	ActionPull         Action = "pull"
	ActionPush         Action = "push"
	ActionSync         Action = "sync"
	ActionTest         Action = "test"
	ActionUpdateIssue  Action = "update_issue"
	ActionUpdateStatus Action = "update_status"
)

// actionRank is the fixed priority order of recommendations; lower runs
// first.
var actionRank = map[Action]int{
	ActionCommit:       1,
	ActionPull:         2,
	ActionPush:         3,
	ActionSync:         4,
	ActionTest:         5,
	ActionUpdateIssue:  6,
	ActionUpdateStatus: 7,
}

// Staleness thresholds in hours.
const (
	staleAfter       = 24 * time.Hour
	longRunningAfter = 8 * time.Hour
)

// Recommendation pairs an action with its reason.
type Recommendation struct {
	Action Action
	Reason string
}

// Report is the full analysis of the current branch.
type Report struct {
	Branch           string
	Sync             SyncState
	Ahead            int
	Behind           int
	UncommittedCount int
	LastCommit       *git.Commit
	BranchCreatedAt  time.Time
	HoursSinceCommit float64
	HoursSinceBranch float64
	Stale            bool
	LongRunning      bool
	Recommendations  []Recommendation
}

// Analyzer computes work-status reports for one repository.
type Analyzer struct {
	git *git.Git
	cfg *config.Config
	now func() time.Time
}

// NewAnalyzer builds an Analyzer.
func NewAnalyzer(cfg *config.Config, g *git.Git) *Analyzer {
	return &Analyzer{git: g, cfg: cfg, now: time.Now}
}

// Analyze inspects the working tree and branch history. It refuses to
// analyze the default branch: work status is a property of work
// branches.
func (a *Analyzer) Analyze(ctx context.Context) (*Report, error) {
	st, err := a.git.Status(ctx)
	if err != nil {
		return nil, err
	}
	if st.CurrentBranch == a.cfg.DefaultBranch {
		return nil, flowerrors.New(flowerrors.TagOnDefaultBranch,
			a.cfg.DefaultBranch+" ブランチには作業状態がありません").
			WithFix("teamflow start で作業ブランチを作成してください")
	}

	report := &Report{
		Branch:           st.CurrentBranch,
		Ahead:            st.Ahead,
		Behind:           st.Behind,
		UncommittedCount: st.ChangeCount(),
		Sync:             classifySync(st),
	}

	now := a.now()
	if last, err := a.git.LastCommit(ctx, "HEAD"); err == nil {
		report.LastCommit = last
		report.HoursSinceCommit = now.Sub(last.Date).Hours()
		report.Stale = now.Sub(last.Date) > staleAfter
	}
	if created, err := a.git.BranchCreatedAt(ctx, st.CurrentBranch, a.cfg.DefaultBranch); err == nil {
		report.BranchCreatedAt = created
		report.HoursSinceBranch = now.Sub(created).Hours()
		report.LongRunning = now.Sub(created) > longRunningAfter
	}

	report.Recommendations = recommend(report)
	return report, nil
}

func classifySync(st *git.Status) SyncState {
	if st.Tracking == "" {
		return NoUpstream
	}
	switch {
	case st.Ahead > 0 && st.Behind > 0:
		return Diverged
	case st.Ahead > 0:
		return Ahead
	case st.Behind > 0:
		return Behind
	default:
		return Synced
	}
}

// recommend derives the ranked action list from the report facts.
func recommend(r *Report) []Recommendation {
	var out []Recommendation
	add := func(a Action, reason string) {
		out = append(out, Recommendation{Action: a, Reason: reason})
	}

	if r.UncommittedCount > 0 {
		add(ActionCommit, fmt.Sprintf("未コミットの変更が %d 件あります", r.UncommittedCount))
	}
	switch r.Sync {
	case Behind:
		add(ActionPull, fmt.Sprintf("upstream より %d コミット遅れています", r.Behind))
	case Ahead:
		add(ActionPush, fmt.Sprintf("未プッシュのコミットが %d 件あります", r.Ahead))
	case Diverged:
		add(ActionSync, "upstream と分岐しています。pull してから push してください")
	case NoUpstream:
		add(ActionPush, "upstream が未設定です。push -u で追跡を開始してください")
	}
	if r.Ahead > 0 || r.UncommittedCount > 0 {
		add(ActionTest, "変更があるためテストの実行を推奨します")
	}
	if r.LongRunning {
		add(ActionUpdateIssue, fmt.Sprintf("ブランチ作成から %.0f 時間経過しています。Issueに進捗を記録してください", r.HoursSinceBranch))
	}
	if r.Stale {
		add(ActionUpdateStatus, fmt.Sprintf("最終コミットから %.0f 時間経過しています。状況を共有してください", r.HoursSinceCommit))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return actionRank[out[i].Action] < actionRank[out[j].Action]
	})
	return out
}
