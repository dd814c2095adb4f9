package cli

import (
	"github.com/spf13/cobra"

	"github.com/teamflowhq/teamflow/internal/phase"
)

func newHelpFlowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "help-flow",
		Short: "困ったときの復旧・修復・学習メニュー",
		Long: `緊急度に応じたメニューを表示します。緊急時はバックアップ復元や
rebase中止、中程度なら診断と設定修復、低ければワークフローの
学習コンテンツを提供します。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.close()
			return s.report(cmd, phase.RunHelpFlow(s.ctx, s.deps))
		},
	}
}
