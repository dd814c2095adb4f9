// Package cli implements the teamflow command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/teamflowhq/teamflow/internal/backup"
	"github.com/teamflowhq/teamflow/internal/config"
	"github.com/teamflowhq/teamflow/internal/diagnose"
	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
	"github.com/teamflowhq/teamflow/internal/gateway"
	"github.com/teamflowhq/teamflow/internal/git"
	"github.com/teamflowhq/teamflow/internal/logging"
	"github.com/teamflowhq/teamflow/internal/notify"
	"github.com/teamflowhq/teamflow/internal/phase"
	"github.com/teamflowhq/teamflow/internal/prompt"
	"github.com/teamflowhq/teamflow/internal/recovery"
	"github.com/teamflowhq/teamflow/internal/workstatus"
)

var (
	verbose     bool
	checkConfig bool
	runSetupFlg bool
	fixConfig   bool
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

// errPhaseFailed marks a phase failure whose message was already printed;
// main maps it to exit code 1 without printing anything further.
var errPhaseFailed = errors.New("phase failed")

var rootCmd = &cobra.Command{
	Use:   "teamflow",
	Short: "対話型のチーム開発ワークフロー",
	Long: `teamflow はチーム開発の日常操作を対話的に進めるCLIです。

使い方:
  teamflow start      作業ブランチを作成して作業を開始する
  teamflow continue   作業状態を分析して推奨アクションを実行する
  teamflow finish     コミット・プッシュ・Pull Request作成で作業を締める
  teamflow team       ブランチ・PR・競合リスクのチーム状況を表示する
  teamflow help-flow  困ったときの復旧・修復・学習メニュー`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		switch {
		case checkConfig:
			return runCheckConfig(cmd)
		case fixConfig:
			return runFixConfig(cmd)
		case runSetupFlg:
			return runSetup(cmd)
		}
		return cmd.Help()
	},
}

// Execute runs the root command. A non-nil return means exit code 1.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "デバッグログを有効にする")
	rootCmd.Flags().BoolVar(&checkConfig, "check-config", false, "設定の一覧と検証結果を表示して終了する")
	rootCmd.Flags().BoolVar(&runSetupFlg, "setup", false, "初回セットアップウィザードを実行する")
	rootCmd.Flags().BoolVar(&fixConfig, "fix-config", false, "不足している設定ファイルを作成して終了する")

	rootCmd.AddCommand(newStartCmd())
	rootCmd.AddCommand(newContinueCmd())
	rootCmd.AddCommand(newFinishCmd())
	rootCmd.AddCommand(newTeamCmd())
	rootCmd.AddCommand(newHelpFlowCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "バージョンを表示する",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "teamflow version 0.1.0")
		},
	}
}

// session holds everything one phase invocation needs, built once per
// command and torn down on exit.
type session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *config.Config
	log     *logging.Logger
	handler *flowerrors.Handler
	gw      *gateway.Gateway
	deps    *phase.Deps
}

// newSession loads configuration, opens the log, wires the gateway,
// backup store, recovery manager and signal handling.
func newSession() (*session, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("作業ディレクトリを取得できません: %w", err)
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Debug = true
	}

	log := logging.New(cfg)
	handler := flowerrors.NewHandler(os.Stderr, nil)
	ctx, cancel := handler.InstallSignalHandler(context.Background())
	handler.RegisterCleanup(log.Close)

	g := git.New(workDir)
	remoteURL, _ := g.RemoteURL(ctx)
	gw := gateway.New(ctx, cfg, remoteURL, log)
	handler.RegisterCleanup(gw.Close)

	store := backup.NewStore(cfg, g, log)
	prompter := prompt.NewTerminal()
	manager := recovery.NewManager(cfg, store, gw, prompter, log)
	handler.SetRecoverer(manager)

	deps := &phase.Deps{
		Cfg:      cfg,
		Git:      g,
		GitHub:   gw,
		Backups:  store,
		Notify:   notify.FromConfig(cfg, log),
		Prompt:   prompter,
		Handler:  handler,
		Recovery: manager,
		Doctor:   diagnose.NewDoctor(cfg, g, log),
		Analyzer: workstatus.NewAnalyzer(cfg, g),
		Log:      log,
	}

	return &session{
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		log:     log,
		handler: handler,
		gw:      gw,
		deps:    deps,
	}, nil
}

func (s *session) close() {
	s.cancel()
	s.gw.Close()
	s.log.Close()
}

// report prints the phase result and converts its status into the
// process outcome: completed and aborted exit 0, failed exits 1.
func (s *session) report(cmd *cobra.Command, result *phase.Result) error {
	out := cmd.OutOrStdout()
	for _, msg := range result.Messages {
		fmt.Fprintln(out, msg)
	}
	switch result.Status {
	case phase.Completed:
		fmt.Fprintln(out, successStyle.Render("✓ 完了"))
		return nil
	case phase.Aborted:
		fmt.Fprintln(out, warnStyle.Render("中断しました"))
		return nil
	default:
		fmt.Fprintln(out, failStyle.Render("✗ 失敗"))
		if result.RequiresManualAction {
			fmt.Fprintln(out, hintStyle.Render("手動での対応が必要です。解決後に再実行してください"))
		}
		return errPhaseFailed
	}
}

func runCheckConfig(cmd *cobra.Command) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	items := config.Check(cfg)
	fmt.Fprintln(cmd.OutOrStdout(), headerStyle.Render("設定チェック"))
	fmt.Fprint(cmd.OutOrStdout(), config.FormatReport(items))
	if !config.Valid(items) {
		return errPhaseFailed
	}
	return nil
}

func runFixConfig(cmd *cobra.Command) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	repaired, err := config.Repair(workDir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, c := range repaired.Created {
		fmt.Fprintln(out, successStyle.Render("作成: ")+c)
	}
	for _, s := range repaired.Skipped {
		fmt.Fprintln(out, hintStyle.Render("既存のためスキップ: "+s))
	}
	return nil
}
