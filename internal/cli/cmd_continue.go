package cli

import (
	"github.com/spf13/cobra"

	"github.com/teamflowhq/teamflow/internal/phase"
)

func newContinueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "continue",
		Short: "作業状態を分析して推奨アクションを実行する",
		Long: `現在の作業ブランチの同期状態・未コミット変更・経過時間を分析し、
コミット / pull / push / 同期 / テスト などの推奨アクションを
優先度順に提示して、承認されたものを実行します。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.close()
			return s.report(cmd, phase.RunContinue(s.ctx, s.deps))
		},
	}
}
