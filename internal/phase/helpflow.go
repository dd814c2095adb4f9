package phase

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teamflowhq/teamflow/internal/config"
	"github.com/teamflowhq/teamflow/internal/logging"
	"github.com/teamflowhq/teamflow/internal/prompt"
	"github.com/teamflowhq/teamflow/internal/recovery"
)

//go:embed content/help.yaml
var helpContent []byte

// HelpTopic is one entry of the embedded learning content.
type HelpTopic struct {
	Key   string `yaml:"key"`
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

type helpFile struct {
	Topics []HelpTopic `yaml:"topics"`
}

// LoadHelpTopics parses the embedded learning content.
func LoadHelpTopics() ([]HelpTopic, error) {
	var f helpFile
	if err := yaml.Unmarshal(helpContent, &f); err != nil {
		return nil, fmt.Errorf("parse help content: %w", err)
	}
	return f.Topics, nil
}

// RunHelpFlow routes by urgency: emergencies get destructive recovery
// actions behind confirmations, medium urgency gets repair actions, low
// urgency gets the learning content.
func RunHelpFlow(ctx context.Context, d *Deps) *Result {
	urgency, err := d.Prompt.Select(ctx, "状況の緊急度を選んでください", []prompt.Option{
		{Key: "high", Label: "高: 作業が壊れた・すぐ復旧したい"},
		{Key: "medium", Label: "中: 設定や状態を直したい"},
		{Key: "low", Label: "低: 使い方を知りたい"},
	})
	if err != nil {
		return aborted("")
	}

	switch urgency {
	case "high":
		return runEmergency(ctx, d)
	case "medium":
		return runFix(ctx, d)
	default:
		return runLearning(ctx, d)
	}
}

func runEmergency(ctx context.Context, d *Deps) *Result {
	action, err := d.Prompt.Select(ctx, "復旧アクションを選んでください", []prompt.Option{
		{Key: "restore", Label: "バックアップから復元する"},
		{Key: "abort-rebase", Label: "進行中の rebase を中止する"},
		{Key: "stash", Label: "作業中の変更をstashに退避する"},
		{Key: "cancel", Label: "キャンセル"},
	})
	if err != nil || action == "cancel" {
		return aborted("")
	}

	switch action {
	case "restore":
		return restoreFromBackup(ctx, d)
	case "abort-rebase":
		if !confirmDestructive(ctx, d, "rebase を中止して元の状態に戻します。よろしいですか？") {
			return aborted("")
		}
		if err := d.Git.RebaseAbort(ctx); err != nil {
			return failed(d.handle(ctx, "help-flow: rebase abort", err).Message)
		}
		r := completed()
		r.say("rebase を中止しました")
		return r
	default:
		if !confirmDestructive(ctx, d, "作業中の変更をすべてstashに退避します。よろしいですか？") {
			return aborted("")
		}
		if err := d.Git.StashPush(ctx, "teamflow help-flow"); err != nil {
			return failed(d.handle(ctx, "help-flow: stash", err).Message)
		}
		r := completed()
		r.say("変更をstashに退避しました。git stash pop で戻せます")
		return r
	}
}

func restoreFromBackup(ctx context.Context, d *Deps) *Result {
	snaps, err := d.Backups.List()
	if err != nil {
		return failed(d.handle(ctx, "help-flow: list backups", err).Message)
	}
	if len(snaps) == 0 {
		return failed("復元できるバックアップがありません")
	}

	options := make([]prompt.Option, 0, len(snaps))
	for _, s := range snaps {
		options = append(options, prompt.Option{
			Key: s.ID,
			Label: fmt.Sprintf("%s  %s  %s (%d files)",
				s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Type, s.Reason, len(s.Files)),
		})
	}
	picked, err := d.Prompt.Select(ctx, "復元するバックアップを選んでください", options)
	if err != nil {
		return aborted("")
	}
	if !confirmDestructive(ctx, d, "作業ツリーをバックアップの内容で上書きします。よろしいですか？") {
		return aborted("")
	}

	snap, err := d.Backups.Restore(ctx, picked)
	if err != nil {
		return failed(d.handle(ctx, "help-flow: restore", err).Message)
	}
	r := completed()
	r.say(fmt.Sprintf("バックアップ %s から %d ファイルを復元しました", snap.ID[:8], len(snap.Files)))
	return r
}

func runFix(ctx context.Context, d *Deps) *Result {
	action, err := d.Prompt.Select(ctx, "修復アクションを選んでください", []prompt.Option{
		{Key: "diagnose", Label: "リポジトリを診断する"},
		{Key: "fix-config", Label: "設定ファイルを修復する"},
		{Key: "online", Label: "オフラインモードを解除する"},
		{Key: "diagnostics", Label: "エラー集計と復旧履歴を表示する"},
		{Key: "cancel", Label: "キャンセル"},
	})
	if err != nil || action == "cancel" {
		return aborted("")
	}

	r := completed()
	switch action {
	case "diagnose":
		report := d.Doctor.Run(ctx)
		if report.Healthy() {
			r.say("問題は見つかりませんでした")
		}
		for _, f := range report.Problems() {
			r.say("問題: " + f.Message + "\n  対処: " + f.Fix)
		}
		for _, f := range report.Warnings() {
			r.say("注意: " + f.Message)
		}
	case "diagnostics":
		r.say(renderDiagnostics(d))
	case "fix-config":
		repaired, err := config.Repair(d.Cfg.WorkDir)
		if err != nil {
			return failed("設定の修復に失敗しました: " + err.Error())
		}
		for _, c := range repaired.Created {
			r.say("作成: " + c)
		}
		for _, s := range repaired.Skipped {
			r.say("既存のためスキップ: " + s)
		}
	default:
		if err := os.Remove(d.Cfg.OfflineFile()); err != nil && !os.IsNotExist(err) {
			return failed("オフラインマーカーを削除できません: " + err.Error())
		}
		r.say("オフラインモードを解除しました。次回実行からGitHub連携が有効になります")
	}
	return r
}

// renderDiagnostics joins the handler's classification counters, the
// recovery attempt history and the log tail into one report.
func renderDiagnostics(d *Deps) string {
	var b strings.Builder
	b.WriteString("エラー分類の集計:\n")
	if d.Handler != nil && len(d.Handler.Counts()) > 0 {
		b.WriteString(d.Handler.CountsReport())
	} else {
		b.WriteString("  (記録なし)\n")
	}

	b.WriteString("\n復旧試行の履歴:\n")
	attempts := []recovery.Attempt{}
	if d.Recovery != nil {
		attempts = d.Recovery.History()
	}
	if len(attempts) == 0 {
		b.WriteString("  (記録なし)\n")
	}
	for _, a := range attempts {
		status := "失敗"
		if a.Succeeded {
			status = "成功"
		}
		fmt.Fprintf(&b, "  %s  %s  %s  %s: %s\n",
			a.Time.Local().Format("15:04:05"), a.Tag, a.Strategy, status, a.Note)
	}

	if lines := logging.TailFile(d.Cfg.LogFile(), 20); len(lines) > 0 {
		b.WriteString("\nログ末尾:\n")
		for _, line := range lines {
			b.WriteString("  " + line + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func runLearning(ctx context.Context, d *Deps) *Result {
	topics, err := LoadHelpTopics()
	if err != nil {
		return failed(err.Error())
	}
	options := make([]prompt.Option, 0, len(topics))
	for _, t := range topics {
		options = append(options, prompt.Option{Key: t.Key, Label: t.Title})
	}
	picked, err := d.Prompt.Select(ctx, "知りたいトピックを選んでください", options)
	if err != nil {
		return aborted("")
	}
	for _, t := range topics {
		if t.Key == picked {
			r := completed()
			r.say(t.Title + "\n\n" + t.Body)
			return r
		}
	}
	return failed("トピックが見つかりません")
}

// confirmDestructive asks before destructive actions unless the
// configuration disables confirmations.
func confirmDestructive(ctx context.Context, d *Deps, question string) bool {
	if !d.Cfg.ConfirmDestruct {
		return true
	}
	yes, err := d.Prompt.Confirm(ctx, question)
	return err == nil && yes
}
