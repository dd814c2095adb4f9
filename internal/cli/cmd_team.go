package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teamflowhq/teamflow/internal/phase"
)

func newTeamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "team",
		Short: "ブランチ・PR・競合リスクのチーム状況を表示する",
		Long: `アクティブなブランチと最終コミット、オープンなPull Requestと
レビュー状況、複数ブランチが触れているファイル、直近7日間の
アクティビティ指標をまとめて表示します。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.close()

			result, report := phase.RunTeam(s.ctx, s.deps)
			if report != nil {
				renderTeamReport(cmd.OutOrStdout(), report)
			}
			return s.report(cmd, result)
		},
	}
}

func renderTeamReport(w io.Writer, report *phase.TeamReport) {
	fmt.Fprintln(w, headerStyle.Render("アクティブなブランチ"))
	if len(report.Branches) == 0 {
		fmt.Fprintln(w, hintStyle.Render("  作業中のブランチはありません"))
	}
	for _, b := range report.Branches {
		line := "  " + b.Name
		if b.LastCommit != nil {
			line += fmt.Sprintf("  %s  %s (%s)",
				b.LastCommit.Author, b.LastCommit.Subject, humanAge(b.LastCommit.Date))
		}
		fmt.Fprintln(w, line)
	}
	if report.Sampled {
		fmt.Fprintln(w, hintStyle.Render("  (ブランチ数が多いため先頭50件のみ走査しました)"))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("オープンなPull Request"))
	if len(report.PRs) == 0 {
		fmt.Fprintln(w, hintStyle.Render("  オープンなPRはありません"))
	}
	for _, pr := range report.PRs {
		state := pr.State
		switch state {
		case "承認済み":
			state = successStyle.Render(state)
		case "変更要求":
			state = failStyle.Render(state)
		default:
			state = warnStyle.Render(state)
		}
		fmt.Fprintf(w, "  #%d %s  @%s  %s\n", pr.Number, pr.Title, pr.Author, state)
	}

	if len(report.Conflicts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("競合リスクのあるファイル"))
		for _, c := range report.Conflicts {
			fmt.Fprintf(w, "  %s  ← %s\n", failStyle.Render(c.Path), strings.Join(c.Branches, ", "))
		}
	}

	if m := report.Metrics; m != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("直近%d日間のアクティビティ", m.WindowDays)))
		fmt.Fprintf(w, "  コミット %d / PR作成 %d / PRマージ %d / オープンIssue %d / ブランチ %d\n",
			m.Commits, m.PRsOpened, m.PRsMerged, m.OpenIssues, m.Branches)
		if m.MeanReviewTime > 0 {
			fmt.Fprintf(w, "  平均レビュー時間 %.1f 時間\n", m.MeanReviewTime.Hours())
		}
	}
}

func humanAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%d分前", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d時間前", int(d.Hours()))
	default:
		return fmt.Sprintf("%d日前", int(d.Hours()/24))
	}
}
