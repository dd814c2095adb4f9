package cli

import (
	"github.com/spf13/cobra"

	"github.com/teamflowhq/teamflow/internal/phase"
)

func newFinishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finish",
		Short: "コミット・プッシュ・Pull Request作成で作業を締める",
		Long: `変更のステージとコミット、テストの実行、プッシュ、Pull Request
の作成までを対話的に進めます。デフォルトブランチ上では実行
できません。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.close()
			return s.report(cmd, phase.RunFinish(s.ctx, s.deps))
		},
	}
}
