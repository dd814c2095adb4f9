package cli

import (
	"github.com/spf13/cobra"

	"github.com/teamflowhq/teamflow/internal/phase"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "作業ブランチを作成して作業を開始する",
		Long: `リポジトリの状態を確認し、作業種別とIssueを対話的に選んで
命名規則に沿った作業ブランチを作成します。既存ブランチとの
重複やIssueの取り合いは作成前に検出されます。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.close()
			return s.report(cmd, phase.RunStart(s.ctx, s.deps))
		},
	}
}
