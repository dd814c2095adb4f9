package phase

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/teamflowhq/teamflow/internal/gateway"
	"github.com/teamflowhq/teamflow/internal/git"
)

// metricsWindowDays is the trailing window of the team metrics.
const metricsWindowDays = 7

// branchSampleSize bounds the pairwise conflict scan.
const branchSampleSize = 50

// BranchActivity is one active branch with its last commit.
type BranchActivity struct {
	Name       string
	LastCommit *git.Commit
}

// PRStatus is one open pull request with its aggregated review state.
type PRStatus struct {
	Number int
	Title  string
	Author string
	// State is the rendered review state label.
	State string
}

// FileConflict marks a path touched by more than one active branch.
type FileConflict struct {
	Path     string
	Branches []string
}

// TeamReport aggregates the team view rendered by the team command.
type TeamReport struct {
	Branches  []BranchActivity
	PRs       []PRStatus
	Conflicts []FileConflict
	Metrics   *gateway.Metrics
	// Sampled is set when the conflict scan truncated the branch list.
	Sampled bool
}

// RunTeam fans out the independent team-view reads and assembles the
// report. GitHub-backed sections degrade to empty when the gateway is
// unavailable.
func RunTeam(ctx context.Context, d *Deps) (*Result, *TeamReport) {
	report := &TeamReport{}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		branches, conflicts, sampled, err := scanBranches(ctx, d)
		if err != nil {
			return err
		}
		report.Branches = branches
		report.Conflicts = conflicts
		report.Sampled = sampled
		return nil
	})

	if gh, ok := d.github(); ok {
		eg.Go(func() error {
			prs, err := gh.ListPRsWithReviews(ctx)
			if err != nil {
				d.logger().Warn("pr list unavailable", "error", err.Error())
				return nil
			}
			for _, pr := range prs {
				report.PRs = append(report.PRs, PRStatus{
					Number: pr.Number,
					Title:  pr.Title,
					Author: pr.Author,
					State:  reviewStateLabel(pr.Reviews),
				})
			}
			return nil
		})
		eg.Go(func() error {
			metrics, err := gh.RepoMetrics(ctx, metricsWindowDays)
			if err != nil {
				d.logger().Warn("metrics unavailable", "error", err.Error())
				return nil
			}
			report.Metrics = metrics
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return failed(d.handle(ctx, "team: aggregate", err).Message), nil
	}

	result := completed()
	return result, report
}

// scanBranches lists active non-default branches with their last commit
// and runs the pairwise file-conflict scan over the sample.
func scanBranches(ctx context.Context, d *Deps) ([]BranchActivity, []FileConflict, bool, error) {
	names, err := d.Git.RemoteBranches(ctx)
	if err != nil {
		names, err = d.Git.LocalBranches(ctx)
		if err != nil {
			return nil, nil, false, err
		}
	}

	var active []string
	for _, name := range names {
		if name == d.Cfg.DefaultBranch || name == "main" || name == "master" {
			continue
		}
		active = append(active, name)
	}

	sampled := false
	if len(active) > branchSampleSize {
		active = active[:branchSampleSize]
		sampled = true
	}

	var branches []BranchActivity
	touched := map[string][]string{}
	for _, name := range active {
		activity := BranchActivity{Name: name}
		if c, err := d.Git.LastCommit(ctx, "origin/"+name); err == nil {
			activity.LastCommit = c
		} else if c, err := d.Git.LastCommit(ctx, name); err == nil {
			activity.LastCommit = c
		}
		branches = append(branches, activity)

		files, err := d.Git.DiffNameOnly(ctx, d.Cfg.DefaultBranch, "origin/"+name)
		if err != nil {
			files, err = d.Git.DiffNameOnly(ctx, d.Cfg.DefaultBranch, name)
		}
		if err != nil {
			continue
		}
		for _, f := range files {
			touched[f] = append(touched[f], name)
		}
	}

	var conflicts []FileConflict
	for path, owners := range touched {
		if len(owners) > 1 {
			sort.Strings(owners)
			conflicts = append(conflicts, FileConflict{Path: path, Branches: owners})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Path < conflicts[j].Path })

	return branches, conflicts, sampled, nil
}

// reviewStateLabel reduces a PR's reviews to one Japanese label.
func reviewStateLabel(reviews []gateway.Review) string {
	approved := false
	for _, r := range reviews {
		switch r.State {
		case "CHANGES_REQUESTED":
			return "変更要求"
		case "APPROVED":
			approved = true
		}
	}
	if approved {
		return "承認済み"
	}
	return "要レビュー"
}
