package phase

import (
	"context"
	"fmt"
	"strconv"

	"github.com/teamflowhq/teamflow/internal/backup"
	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
	"github.com/teamflowhq/teamflow/internal/gateway"
	"github.com/teamflowhq/teamflow/internal/notify"
	"github.com/teamflowhq/teamflow/internal/plan"
	"github.com/teamflowhq/teamflow/internal/prompt"
)

// RunStart drives the start-work machine: repository checks, work-type
// and issue selection, branch-plan derivation, conflict scan, and branch
// creation from the default branch.
func RunStart(ctx context.Context, d *Deps) *Result {
	if !d.Git.IsRepository(ctx) {
		return failed("gitリポジトリではありません。git init するか、リポジトリ内で実行してください")
	}

	st, err := d.Git.Status(ctx)
	if err != nil {
		return failed(d.handle(ctx, "start: status", err).Message)
	}

	if !st.Clean() {
		stash, err := d.Prompt.Confirm(ctx,
			fmt.Sprintf("未コミットの変更が %d 件あります。stashに退避して続行しますか？", st.ChangeCount()))
		if err != nil {
			return aborted("")
		}
		if !stash {
			d.handle(ctx, "start: dirty tree",
				flowerrors.New(flowerrors.TagDirtyTree, "作業ツリーが汚れています"))
			return failed("作業ツリーに未コミットの変更があります。コミットまたはstashしてから再実行してください")
		}
		if err := d.Git.StashPush(ctx, "teamflow start"); err != nil {
			return failed(d.handle(ctx, "start: stash", err).Message)
		}
	}

	wt, err := chooseWorkType(ctx, d.Prompt)
	if err != nil {
		return aborted("")
	}

	issue, descr, res := chooseIssue(ctx, d)
	if res != nil {
		return res
	}

	branchPlan, err := buildPlan(d, wt, issue, descr)
	if err != nil {
		return failed(err.Error())
	}

	if r := scanExisting(ctx, d, branchPlan); r != nil {
		return r
	}

	base, r := confirmBase(ctx, d, st.CurrentBranch)
	if r != nil {
		return r
	}
	branchPlan.Base = base

	if _, err := d.Backups.Create(ctx, backup.Incremental, "start: before branch creation"); err != nil {
		d.logger().Warn("backup before start failed", "error", err.Error())
	}

	if err := d.Git.CreateBranch(ctx, branchPlan.FullName, branchPlan.Base); err != nil {
		return failed(d.handle(ctx, "start: create branch", err).Message)
	}

	result := completed()
	result.Artifacts.Branch = branchPlan.FullName
	result.Artifacts.IssueNumber = branchPlan.IssueNumber
	result.say("ブランチ " + branchPlan.FullName + " を作成して切り替えました")

	d.notifyTeam(ctx, notify.Message{
		Title: "作業開始",
		Body:  branchPlan.FullName + " で作業を開始しました",
		Level: notify.Info,
		Fields: []notify.Field{
			{Name: "種別", Value: string(branchPlan.WorkType)},
			{Name: "ブランチ", Value: branchPlan.FullName},
		},
	})
	return result
}

func chooseWorkType(ctx context.Context, p prompt.Prompter) (plan.WorkType, error) {
	options := make([]prompt.Option, 0, len(plan.All()))
	for _, wt := range plan.All() {
		options = append(options, prompt.Option{Key: string(wt), Label: wt.Label()})
	}
	picked, err := p.Select(ctx, "作業の種類を選んでください", options)
	if err != nil {
		return "", err
	}
	return plan.WorkType(picked), nil
}

// chooseIssue offers the open issues, a "create new issue" entry, and a
// "no issue" entry. Without a usable gateway it falls straight through
// to a free-text description.
func chooseIssue(ctx context.Context, d *Deps) (*gateway.Issue, string, *Result) {
	gh, ok := d.github()
	if !ok {
		descr, err := d.Prompt.Input(ctx, "作業内容を一行で入力してください", "例: ログイン機能を追加")
		if err != nil {
			return nil, "", aborted("")
		}
		return nil, descr, nil
	}

	issues, err := gh.ListOpenIssues(ctx)
	if err != nil {
		res := d.handle(ctx, "start: list issues", err)
		d.logger().Warn("issue list unavailable", "error", err.Error())
		if res.Retry {
			issues, err = gh.ListOpenIssues(ctx)
		}
		if err != nil {
			issues = nil
		}
	}

	options := []prompt.Option{
		{Key: "none", Label: "Issueなしで始める"},
		{Key: "new", Label: "新しいIssueを作成して始める"},
	}
	for _, is := range issues {
		options = append(options, prompt.Option{
			Key:   strconv.Itoa(is.Number),
			Label: fmt.Sprintf("#%d %s", is.Number, is.Title),
		})
	}
	picked, err := d.Prompt.Select(ctx, "対象のIssueを選んでください", options)
	if err != nil {
		return nil, "", aborted("")
	}
	if picked == "none" {
		descr, err := d.Prompt.Input(ctx, "作業内容を一行で入力してください", "例: ログイン機能を追加")
		if err != nil {
			return nil, "", aborted("")
		}
		return nil, descr, nil
	}
	if picked == "new" {
		title, err := d.Prompt.Input(ctx, "Issueのタイトルを入力してください", "例: ログイン機能を追加")
		if err != nil {
			return nil, "", aborted("")
		}
		created, err := gh.CreateIssue(ctx, title, "", nil)
		if err != nil {
			return nil, "", failed(d.handle(ctx, "start: create issue", err).Message)
		}
		return created, "", nil
	}

	number, _ := strconv.Atoi(picked)
	for i := range issues {
		if issues[i].Number == number {
			return &issues[i], "", nil
		}
	}
	return nil, "", failed("選択されたIssueを特定できません")
}

func buildPlan(d *Deps, wt plan.WorkType, issue *gateway.Issue, descr string) (*plan.BranchPlan, error) {
	if issue != nil {
		return plan.New(wt, issue, d.Cfg.DefaultBranch, d.clock())
	}
	return plan.NewFromDescription(wt, descr, d.Cfg.DefaultBranch, d.clock())
}

// scanExisting checks the plan against local and remote branches. A
// local branch with the same name offers "switch to it" instead of
// creating; a remote branch claiming the same issue requires explicit
// confirmation.
func scanExisting(ctx context.Context, d *Deps, p *plan.BranchPlan) *Result {
	if d.Git.BranchExists(ctx, p.FullName) {
		switchTo, err := d.Prompt.Confirm(ctx,
			"ブランチ "+p.FullName+" は既に存在します。切り替えますか？")
		if err != nil || !switchTo {
			return aborted("既存ブランチへの切り替えをキャンセルしました")
		}
		if err := d.Git.Checkout(ctx, p.FullName); err != nil {
			return failed(d.handle(ctx, "start: checkout existing", err).Message)
		}
		r := completed()
		r.Artifacts.Branch = p.FullName
		r.say("既存のブランチ " + p.FullName + " に切り替えました")
		return r
	}

	remote, err := d.Git.RemoteBranches(ctx)
	if err != nil {
		d.logger().Debug("remote branch scan skipped", "error", err.Error())
		return nil
	}
	for _, c := range plan.ScanConflicts(p, remote) {
		proceed, err := d.Prompt.Confirm(ctx,
			c.Reason+" ("+c.Existing+")。このまま新しいブランチを作成しますか？")
		if err != nil || !proceed {
			return aborted("ブランチ作成をキャンセルしました")
		}
	}
	return nil
}

// confirmBase enforces branching from the default branch unless the
// operator explicitly confirms the current branch as base.
func confirmBase(ctx context.Context, d *Deps, current string) (string, *Result) {
	if current == d.Cfg.DefaultBranch || current == "" {
		return d.Cfg.DefaultBranch, nil
	}
	useCurrent, err := d.Prompt.Confirm(ctx, fmt.Sprintf(
		"現在 %s にいます。既定の %s ではなくこのブランチを起点にしますか？",
		current, d.Cfg.DefaultBranch))
	if err != nil {
		return "", aborted("")
	}
	if useCurrent {
		return current, nil
	}
	return d.Cfg.DefaultBranch, nil
}
