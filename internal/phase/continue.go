package phase

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"unicode"

	"github.com/teamflowhq/teamflow/internal/diagnose"
	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
	"github.com/teamflowhq/teamflow/internal/git"
	"github.com/teamflowhq/teamflow/internal/notify"
	"github.com/teamflowhq/teamflow/internal/plan"
	"github.com/teamflowhq/teamflow/internal/prompt"
	"github.com/teamflowhq/teamflow/internal/workstatus"
)

// RunContinue analyzes the work branch and walks the ranked
// recommendations, dispatching each action the user accepts.
func RunContinue(ctx context.Context, d *Deps) *Result {
	report, err := d.Analyzer.Analyze(ctx)
	if err != nil {
		return failed(d.handle(ctx, "continue: analyze", err).Message)
	}

	if len(report.Recommendations) == 0 {
		r := completed()
		r.say("ブランチ " + report.Branch + " は同期済みです。推奨アクションはありません")
		return r
	}

	result := completed()
	result.Artifacts.Branch = report.Branch

	for _, rec := range report.Recommendations {
		ok, err := d.Prompt.Confirm(ctx, recommendationPrompt(rec))
		if err != nil {
			return aborted("")
		}
		if !ok {
			result.say("スキップ: " + string(rec.Action))
			continue
		}

		if err := dispatchAction(ctx, d, report, rec.Action); err != nil {
			hr := d.handle(ctx, "continue: "+string(rec.Action), err)
			result.say(hr.Message)
			if hr.Recovered {
				continue
			}
			result.Status = Failed
			result.RequiresManualAction = true
			return result
		}
		if d.Handler != nil {
			d.Handler.ClearRetries("continue: " + string(rec.Action))
		}
		result.say("完了: " + string(rec.Action))
	}
	return result
}

func recommendationPrompt(rec workstatus.Recommendation) string {
	return fmt.Sprintf("%s — %s を実行しますか？", rec.Reason, actionLabel(rec.Action))
}

func actionLabel(a workstatus.Action) string {
	switch a {
	case workstatus.ActionCommit:
		return "コミット"
	case workstatus.ActionPull:
		return "pull"
	case workstatus.ActionPush:
		return "push"
	case workstatus.ActionSync:
		return "同期 (rebase/merge)"
	case workstatus.ActionTest:
		return "テスト"
	case workstatus.ActionUpdateIssue:
		return "Issueへの進捗記録"
	case workstatus.ActionUpdateStatus:
		return "状況共有"
	}
	return string(a)
}

func dispatchAction(ctx context.Context, d *Deps, report *workstatus.Report, action workstatus.Action) error {
	switch action {
	case workstatus.ActionCommit:
		return actionCommit(ctx, d)
	case workstatus.ActionPull:
		return d.Git.Pull(ctx)
	case workstatus.ActionPush:
		return actionPush(ctx, d, report)
	case workstatus.ActionSync:
		return actionSync(ctx, d)
	case workstatus.ActionTest:
		return actionTest(ctx, d)
	case workstatus.ActionUpdateIssue:
		return actionUpdateIssue(ctx, d, report)
	case workstatus.ActionUpdateStatus:
		return actionUpdateStatus(ctx, d, report)
	}
	return flowerrors.New(flowerrors.TagValidation, "未知のアクションです: "+string(action))
}

// actionCommit stages everything and commits with a conventional
// message composed from a type selection and a description.
func actionCommit(ctx context.Context, d *Deps) error {
	wt, err := chooseWorkType(ctx, d.Prompt)
	if err != nil {
		return err
	}
	descr, err := d.Prompt.Input(ctx, "変更内容を一行で入力してください (小文字で開始、末尾ピリオドなし)", "add login form")
	if err != nil {
		return err
	}
	if err := validateCommitDescription(descr); err != nil {
		return err
	}
	if err := d.Git.Add(ctx, "."); err != nil {
		return err
	}
	return d.Git.Commit(ctx, plan.EnsureConventional(wt, descr))
}

// validateCommitDescription enforces the house style: non-empty, first
// character not upper-case, no trailing period.
func validateCommitDescription(descr string) error {
	descr = strings.TrimSpace(descr)
	if descr == "" {
		return flowerrors.New(flowerrors.TagValidation, "変更内容が空です")
	}
	first := []rune(descr)[0]
	if unicode.IsUpper(first) {
		return flowerrors.New(flowerrors.TagValidation, "変更内容は小文字で始めてください")
	}
	if strings.HasSuffix(descr, ".") || strings.HasSuffix(descr, "。") {
		return flowerrors.New(flowerrors.TagValidation, "変更内容の末尾にピリオドを付けないでください")
	}
	return nil
}

func actionPush(ctx context.Context, d *Deps, report *workstatus.Report) error {
	return d.Git.Push(ctx, git.PushOptions{
		Branch:      report.Branch,
		SetUpstream: report.Sync == workstatus.NoUpstream,
		Token:       d.Cfg.GitHubToken,
	})
}

// actionSync lets the user choose rebase or merge onto the default
// branch, with an explicit cancel.
func actionSync(ctx context.Context, d *Deps) error {
	choice, err := d.Prompt.Select(ctx, "同期方法を選んでください", []prompt.Option{
		{Key: "rebase", Label: "rebase (履歴を一直線に保つ)"},
		{Key: "merge", Label: "merge (マージコミットを作る)"},
		{Key: "cancel", Label: "キャンセル"},
	})
	if err != nil || choice == "cancel" {
		return err
	}

	if err := d.Git.Fetch(ctx); err != nil {
		return err
	}
	target := "origin/" + d.Cfg.DefaultBranch
	if choice == "rebase" {
		if err := d.Git.Rebase(ctx, target); err != nil {
			if flowerrors.TagOf(err) == flowerrors.TagMergeConflict {
				// Leave the tree resolvable; the handler renders steps.
				return err
			}
			if abortErr := d.Git.RebaseAbort(ctx); abortErr != nil {
				d.logger().Warn("rebase abort failed", "error", abortErr.Error())
			}
			return err
		}
		return nil
	}
	return d.Git.Merge(ctx, target)
}

// actionTest runs the probed test command of the project.
func actionTest(ctx context.Context, d *Deps) error {
	probe := diagnose.ProbeTestRunner(d.Cfg.WorkDir)
	if probe.Tool == "" {
		return flowerrors.New(flowerrors.TagOptionalFeature, "テストランナーを検出できませんでした")
	}
	if !probe.Available {
		return flowerrors.New(flowerrors.TagOptionalFeature,
			probe.Command[0]+" がインストールされていません")
	}
	return runTests(ctx, d, probe)
}

// runTests spawns the detected test command in the working tree.
var runTests = func(ctx context.Context, d *Deps, probe diagnose.TestProbe) error {
	cmd := exec.CommandContext(ctx, probe.Command[0], probe.Command[1:]...)
	cmd.Dir = d.Cfg.WorkDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return flowerrors.Wrap(flowerrors.TagValidation, "テストが失敗しました", err).
			WithWhy(tail(string(out), 800))
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// actionUpdateIssue appends a progress comment to the issue encoded in
// the branch name.
func actionUpdateIssue(ctx context.Context, d *Deps, report *workstatus.Report) error {
	gh, ok := d.github()
	if !ok {
		return flowerrors.New(flowerrors.TagNotAvailable, "GitHub連携が利用できません")
	}
	number := issueNumberFromBranch(report.Branch)
	if number == 0 {
		return flowerrors.New(flowerrors.TagValidation,
			"ブランチ名にIssue番号が含まれていません: "+report.Branch)
	}
	body, err := d.Prompt.Input(ctx, "進捗コメントを入力してください", "実装中。残りはテストのみ")
	if err != nil {
		return err
	}
	return gh.CommentIssue(ctx, number, body)
}

func actionUpdateStatus(ctx context.Context, d *Deps, report *workstatus.Report) error {
	d.notifyTeam(ctx, notify.Message{
		Title: "作業状況",
		Body: fmt.Sprintf("%s: 最終コミットから %.0f 時間経過", report.Branch,
			report.HoursSinceCommit),
		Level: notify.Warning,
		Fields: []notify.Field{
			{Name: "同期状態", Value: string(report.Sync)},
			{Name: "未コミット", Value: fmt.Sprintf("%d 件", report.UncommittedCount)},
		},
	})
	return nil
}
