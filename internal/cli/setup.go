package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teamflowhq/teamflow/internal/config"
	"github.com/teamflowhq/teamflow/internal/prompt"
	"github.com/teamflowhq/teamflow/internal/validate"
)

// setupMaxAttempts bounds re-prompting for an invalid input.
const setupMaxAttempts = 3

// runSetup walks the first-run wizard: GitHub token, default branch and
// notification settings, written to the user-global config file.
func runSetup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	p := prompt.NewTerminal()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, headerStyle.Render("teamflow セットアップ"))
	fmt.Fprintln(out, "設定は "+hintStyle.Render("$HOME/.teamflow/config.json")+" に保存されます")

	cfg := config.Default()

	token, err := askValidated(ctx, p, "GitHubトークンを入力してください (ghp_... / github_pat_...)", validate.Token)
	if err != nil {
		return err
	}
	cfg.GitHubToken = token

	branch, err := askValidated(ctx, p, "デフォルトブランチ名を入力してください", validate.BranchName)
	if err != nil {
		return err
	}
	cfg.DefaultBranch = branch

	useSlack, err := p.Confirm(ctx, "Slack通知を設定しますか？")
	if err != nil {
		return err
	}
	if useSlack {
		slackToken, err := p.Input(ctx, "Slackボットトークンを入力してください", "xoxb-...")
		if err != nil {
			return err
		}
		channel, err := askValidated(ctx, p, "通知先チャンネルを入力してください", validate.SlackChannel)
		if err != nil {
			return err
		}
		cfg.SlackToken = slackToken
		cfg.SlackChannel = channel
	}

	useDiscord, err := p.Confirm(ctx, "Discord通知を設定しますか？")
	if err != nil {
		return err
	}
	if useDiscord {
		webhook, err := askValidated(ctx, p, "Discord WebhookのURLを入力してください", validate.DiscordWebhookURL)
		if err != nil {
			return err
		}
		cfg.DiscordWebhookURL = webhook
	}

	path, err := config.WriteGlobal(cfg)
	if err != nil {
		return fmt.Errorf("設定の保存に失敗しました: %w", err)
	}
	fmt.Fprintln(out, successStyle.Render("保存しました: ")+path)

	makeEnv, err := p.Confirm(ctx, "このプロジェクトに .env と状態ディレクトリも作成しますか？")
	if err != nil {
		return err
	}
	if makeEnv {
		workDir, err := os.Getwd()
		if err != nil {
			return err
		}
		repaired, err := config.Repair(workDir)
		if err != nil {
			return err
		}
		for _, c := range repaired.Created {
			fmt.Fprintln(out, successStyle.Render("作成: ")+c)
		}
	}

	fmt.Fprintln(out, "セットアップが完了しました。teamflow start で作業を開始できます")
	return nil
}

// askValidated re-prompts until the validator accepts the input, up to
// setupMaxAttempts times. The normalized value is returned.
func askValidated(ctx context.Context, p prompt.Prompter, title string, fn func(string) validate.Result) (string, error) {
	for range setupMaxAttempts {
		raw, err := p.Input(ctx, title, "")
		if err != nil {
			return "", err
		}
		res := fn(raw)
		if res.Valid {
			return res.Value, nil
		}
		title = res.Error + "。もう一度入力してください"
	}
	return "", fmt.Errorf("有効な値が入力されませんでした")
}
