package phase

import (
	"context"
	"fmt"
	"strings"

	"github.com/teamflowhq/teamflow/internal/backup"
	"github.com/teamflowhq/teamflow/internal/diagnose"
	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
	"github.com/teamflowhq/teamflow/internal/git"
	"github.com/teamflowhq/teamflow/internal/notify"
	"github.com/teamflowhq/teamflow/internal/plan"
	"github.com/teamflowhq/teamflow/internal/prompt"
)

// RunFinish drives the finish-work machine: stage, commit, optional
// tests, push, and pull-request creation. It refuses to run on the
// default branch.
func RunFinish(ctx context.Context, d *Deps) *Result {
	branch, err := d.Git.CurrentBranch(ctx)
	if err != nil {
		return failed(d.handle(ctx, "finish: current branch", err).Message)
	}
	if branch == "main" || branch == "master" || branch == d.Cfg.DefaultBranch {
		d.handle(ctx, "finish: default branch guard",
			flowerrors.New(flowerrors.TagOnDefaultBranch, branch+" ブランチでは finish を実行できません"))
		return failed(branch + " ブランチでは finish を実行できません。作業ブランチに切り替えてください")
	}

	result := completed()
	result.Artifacts.Branch = branch

	changed, err := d.Git.ChangedFiles(ctx)
	if err != nil {
		return failed(d.handle(ctx, "finish: changed files", err).Message)
	}

	if len(changed) > 0 {
		if r := stageAndCommit(ctx, d, changed, result); r != nil {
			return r
		}
	} else {
		result.say("未コミットの変更はありません")
	}

	if r := maybeRunTests(ctx, d, result); r != nil {
		return r
	}

	if _, err := d.Backups.Create(ctx, backup.Incremental, "finish: before push"); err != nil {
		d.logger().Warn("backup before push failed", "error", err.Error())
	}

	if err := d.Git.Push(ctx, git.PushOptions{
		Branch:      branch,
		SetUpstream: true,
		Token:       d.Cfg.GitHubToken,
	}); err != nil {
		return failed(d.handle(ctx, "finish: push", err).Message)
	}
	result.say("origin/" + branch + " にプッシュしました")

	if r := maybeOpenPR(ctx, d, branch, result); r != nil {
		return r
	}

	d.notifyTeam(ctx, notify.Message{
		Title:  "作業完了",
		Body:   branch + " の作業が完了しました",
		Level:  notify.Success,
		Fields: prFields(result),
	})
	return result
}

// stageAndCommit shows the changed files, lets the user pick what to
// stage, and commits with a conventional message.
func stageAndCommit(ctx context.Context, d *Deps, changed []git.ChangedFile, result *Result) *Result {
	var lines []string
	for _, f := range changed {
		lines = append(lines, fmt.Sprintf("  %-2s %s", f.Tag, f.Path))
	}
	result.say(fmt.Sprintf("変更ファイル %d 件:\n%s", len(changed), strings.Join(lines, "\n")))

	all, err := d.Prompt.Confirm(ctx, fmt.Sprintf("%d 件すべてをステージしますか？", len(changed)))
	if err != nil {
		return aborted("")
	}

	var paths []string
	if all {
		paths = []string{"."}
	} else {
		for _, f := range changed {
			pick, err := d.Prompt.Confirm(ctx, f.Path+" をステージしますか？")
			if err != nil {
				return aborted("")
			}
			if pick {
				paths = append(paths, f.Path)
			}
		}
		if len(paths) == 0 {
			return aborted("ステージ対象がないため終了します")
		}
	}

	if err := d.Git.Add(ctx, paths...); err != nil {
		return failed(d.handle(ctx, "finish: stage", err).Message)
	}

	wt, err := chooseWorkType(ctx, d.Prompt)
	if err != nil {
		return aborted("")
	}
	descr, err := d.Prompt.Input(ctx, "変更内容を一行で入力してください (空で自動生成)", "add login form")
	if err != nil {
		return aborted("")
	}

	// Empty input defers to the adapter's generated summary message.
	message := ""
	if strings.TrimSpace(descr) != "" {
		if err := validateCommitDescription(descr); err != nil {
			return failed(err.Error())
		}
		message = plan.EnsureConventional(wt, descr)
	}
	if err := d.Git.Commit(ctx, message); err != nil {
		return failed(d.handle(ctx, "finish: commit", err).Message)
	}
	if message == "" {
		result.say("コミットしました (メッセージは自動生成)")
	} else {
		result.say("コミットしました: " + message)
	}
	return nil
}

// maybeRunTests offers to run the detected test command; a failing run
// requires an explicit confirmation to continue.
func maybeRunTests(ctx context.Context, d *Deps, result *Result) *Result {
	probe := diagnose.ProbeTestRunner(d.Cfg.WorkDir)
	if probe.Tool == "" || !probe.Available {
		return nil
	}
	run, err := d.Prompt.Confirm(ctx, "プッシュ前にテストを実行しますか？ ("+strings.Join(probe.Command, " ")+")")
	if err != nil {
		return aborted("")
	}
	if !run {
		return nil
	}
	if err := runTests(ctx, d, probe); err != nil {
		result.say("テストが失敗しました")
		cont, confirmErr := d.Prompt.Confirm(ctx, "テストが失敗しています。それでも続行しますか？")
		if confirmErr != nil || !cont {
			return failed("テスト失敗のため中断しました。修正後に再実行してください")
		}
		result.say("テスト失敗を承知の上で続行します")
		return nil
	}
	result.say("テストが成功しました")
	return nil
}

// maybeOpenPR creates the pull request when the user (or AUTO_PR) wants
// one.
func maybeOpenPR(ctx context.Context, d *Deps, branch string, result *Result) *Result {
	gh, ok := d.github()
	if !ok {
		result.say("GitHub連携が無効のためPull Request作成をスキップしました")
		return nil
	}

	create := d.Cfg.AutoPR
	if !create {
		var err error
		create, err = d.Prompt.Confirm(ctx, "Pull Requestを作成しますか？")
		if err != nil {
			return aborted("")
		}
	}
	if !create {
		return nil
	}

	title, err := d.Prompt.Input(ctx, "PRタイトルを入力してください (空で自動生成)", "")
	if err != nil {
		return aborted("")
	}
	if strings.TrimSpace(title) == "" {
		title = prTitleFromBranch(branch)
	}

	summary, err := d.Prompt.Input(ctx, "変更の概要を入力してください", "")
	if err != nil {
		return aborted("")
	}

	pr, err := gh.CreatePR(ctx, title, buildPRBody(branch, summary), branch, d.Cfg.DefaultBranch, false)
	if err != nil {
		return failed(d.handle(ctx, "finish: create pr", err).Message)
	}
	result.Artifacts.PRNumber = pr.Number
	result.Artifacts.PRURL = pr.URL
	result.say(fmt.Sprintf("Pull Request #%d を作成しました: %s", pr.Number, pr.URL))

	suggestReviewers(ctx, d, gh, pr.Number, result)
	return nil
}

// buildPRBody renders the PR description; branches carrying an issue
// number link it with a closing keyword.
func buildPRBody(branch, summary string) string {
	var b strings.Builder
	b.WriteString("## 概要\n\n")
	if strings.TrimSpace(summary) != "" {
		b.WriteString(strings.TrimSpace(summary))
		b.WriteString("\n")
	} else {
		b.WriteString(branch + " の変更です。\n")
	}
	if n := issueNumberFromBranch(branch); n > 0 {
		b.WriteString(fmt.Sprintf("\nCloses #%d\n", n))
	}
	return b.String()
}

// prTitleFromBranch derives a default title from the branch slug.
func prTitleFromBranch(branch string) string {
	name := branch
	if idx := strings.Index(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = branchIssuePattern.ReplaceAllString(name, "")
	name = strings.TrimPrefix(name, "issue-")
	return strings.ReplaceAll(name, "-", " ")
}

func suggestReviewers(ctx context.Context, d *Deps, gh GitHub, prNumber int, result *Result) {
	candidates, err := gh.SuggestReviewers(ctx, nil, 3)
	if err != nil || len(candidates) == 0 {
		return
	}
	options := make([]prompt.Option, 0, len(candidates)+1)
	options = append(options, prompt.Option{Key: "skip", Label: "レビュアーを指定しない"})
	for _, c := range candidates {
		options = append(options, prompt.Option{Key: c, Label: c})
	}
	picked, err := d.Prompt.Select(ctx, "レビュアーを選んでください", options)
	if err != nil || picked == "skip" {
		return
	}
	if err := gh.RequestReviewers(ctx, prNumber, []string{picked}); err != nil {
		d.logger().Warn("reviewer request failed", "error", err.Error())
		return
	}
	result.say("レビュアーに " + picked + " を指定しました")
}

func prFields(result *Result) []notify.Field {
	fields := []notify.Field{{Name: "ブランチ", Value: result.Artifacts.Branch}}
	if result.Artifacts.PRURL != "" {
		fields = append(fields, notify.Field{Name: "PR", Value: result.Artifacts.PRURL})
	}
	return fields
}
