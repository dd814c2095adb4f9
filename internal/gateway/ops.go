package gateway

import (
	"context"
	"time"

	"github.com/google/go-github/v82/github"
)

// Issue is the subset of an issue the workflows consume.
type Issue struct {
	Number    int
	Title     string
	Body      string
	State     string
	Labels    []string
	Assignees []string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PullRequest is the subset of a pull request the workflows consume.
type PullRequest struct {
	Number    int
	Title     string
	State     string
	Head      string
	Base      string
	Draft     bool
	Author    string
	URL       string
	CreatedAt time.Time
	MergedAt  *time.Time
	Reviews   []Review
}

// Review is one submitted review on a pull request.
type Review struct {
	Reviewer    string
	State       string
	SubmittedAt time.Time
}

// Branch is a remote branch head.
type Branch struct {
	Name string
	SHA  string
}

// Contributor is a repository contributor, ordered by contribution count.
type Contributor struct {
	Login         string
	Contributions int
}

// Metrics aggregates repository activity over a trailing window.
type Metrics struct {
	WindowDays int
	Commits    int
	PRsOpened  int
	PRsMerged  int
	OpenIssues int
	Branches   int
	// MeanReviewTime averages MergedAt-CreatedAt over PRs merged in the
	// window; zero when nothing merged.
	MeanReviewTime time.Duration
}

// ListOpenIssues returns the repository's open issues, excluding pull
// requests.
func (g *Gateway) ListOpenIssues(ctx context.Context) ([]Issue, error) {
	var out []Issue
	err := g.do(ctx, "list issues", func(ctx context.Context) (*github.Response, error) {
		opts := &github.IssueListByRepoOptions{
			State:       "open",
			ListOptions: github.ListOptions{PerPage: 100},
		}
		issues, resp, err := g.client.Issues.ListByRepo(ctx, g.owner, g.repo, opts)
		if err != nil {
			return resp, err
		}
		for _, is := range issues {
			if is.IsPullRequest() {
				continue
			}
			out = append(out, toIssue(is))
		}
		return resp, nil
	})
	return out, err
}

// GetIssue fetches a single issue by number.
func (g *Gateway) GetIssue(ctx context.Context, number int) (*Issue, error) {
	if err := requireNumber("Issue", number); err != nil {
		return nil, err
	}
	var out Issue
	err := g.do(ctx, "get issue", func(ctx context.Context) (*github.Response, error) {
		is, resp, err := g.client.Issues.Get(ctx, g.owner, g.repo, number)
		if err != nil {
			return resp, err
		}
		out = toIssue(is)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateIssue opens a new issue and returns it.
func (g *Gateway) CreateIssue(ctx context.Context, title, body string, labels []string) (*Issue, error) {
	var out Issue
	err := g.do(ctx, "create issue", func(ctx context.Context) (*github.Response, error) {
		req := &github.IssueRequest{Title: &title, Body: &body}
		if len(labels) > 0 {
			req.Labels = &labels
		}
		is, resp, err := g.client.Issues.Create(ctx, g.owner, g.repo, req)
		if err != nil {
			return resp, err
		}
		out = toIssue(is)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CommentIssue appends a comment to an issue.
func (g *Gateway) CommentIssue(ctx context.Context, number int, body string) error {
	if err := requireNumber("Issue", number); err != nil {
		return err
	}
	return g.do(ctx, "comment issue", func(ctx context.Context) (*github.Response, error) {
		_, resp, err := g.client.Issues.CreateComment(ctx, g.owner, g.repo, number,
			&github.IssueComment{Body: &body})
		return resp, err
	})
}

// ListOpenPRs returns the repository's open pull requests without their
// reviews.
func (g *Gateway) ListOpenPRs(ctx context.Context) ([]PullRequest, error) {
	return g.listPRs(ctx, "open")
}

// ListPRsWithReviews returns open pull requests with their submitted
// reviews attached. Each review fetch is a separate queued call.
func (g *Gateway) ListPRsWithReviews(ctx context.Context) ([]PullRequest, error) {
	prs, err := g.listPRs(ctx, "open")
	if err != nil {
		return nil, err
	}
	for i := range prs {
		reviews, err := g.listReviews(ctx, prs[i].Number)
		if err != nil {
			return nil, err
		}
		prs[i].Reviews = reviews
	}
	return prs, nil
}

func (g *Gateway) listPRs(ctx context.Context, state string) ([]PullRequest, error) {
	var out []PullRequest
	err := g.do(ctx, "list pull requests", func(ctx context.Context) (*github.Response, error) {
		opts := &github.PullRequestListOptions{
			State:       state,
			ListOptions: github.ListOptions{PerPage: 100},
		}
		prs, resp, err := g.client.PullRequests.List(ctx, g.owner, g.repo, opts)
		if err != nil {
			return resp, err
		}
		for _, pr := range prs {
			out = append(out, toPullRequest(pr))
		}
		return resp, nil
	})
	return out, err
}

func (g *Gateway) listReviews(ctx context.Context, number int) ([]Review, error) {
	var out []Review
	err := g.do(ctx, "list reviews", func(ctx context.Context) (*github.Response, error) {
		reviews, resp, err := g.client.PullRequests.ListReviews(ctx, g.owner, g.repo, number, nil)
		if err != nil {
			return resp, err
		}
		for _, r := range reviews {
			out = append(out, Review{
				Reviewer:    r.GetUser().GetLogin(),
				State:       r.GetState(),
				SubmittedAt: r.GetSubmittedAt().Time,
			})
		}
		return resp, nil
	})
	return out, err
}

// CreatePR opens a pull request from head into base.
func (g *Gateway) CreatePR(ctx context.Context, title, body, head, base string, draft bool) (*PullRequest, error) {
	var out PullRequest
	err := g.do(ctx, "create pull request", func(ctx context.Context) (*github.Response, error) {
		req := &github.NewPullRequest{
			Title: &title,
			Body:  &body,
			Head:  &head,
			Base:  &base,
			Draft: &draft,
		}
		pr, resp, err := g.client.PullRequests.Create(ctx, g.owner, g.repo, req)
		if err != nil {
			return resp, err
		}
		out = toPullRequest(pr)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestReviewers asks the listed users to review a pull request.
func (g *Gateway) RequestReviewers(ctx context.Context, number int, reviewers []string) error {
	if err := requireNumber("Pull Request", number); err != nil {
		return err
	}
	if len(reviewers) == 0 {
		return nil
	}
	return g.do(ctx, "request reviewers", func(ctx context.Context) (*github.Response, error) {
		_, resp, err := g.client.PullRequests.RequestReviewers(ctx, g.owner, g.repo, number,
			github.ReviewersRequest{Reviewers: reviewers})
		return resp, err
	})
}

// ListBranches returns the remote branch heads.
func (g *Gateway) ListBranches(ctx context.Context) ([]Branch, error) {
	var out []Branch
	err := g.do(ctx, "list branches", func(ctx context.Context) (*github.Response, error) {
		opts := &github.BranchListOptions{ListOptions: github.ListOptions{PerPage: 100}}
		branches, resp, err := g.client.Repositories.ListBranches(ctx, g.owner, g.repo, opts)
		if err != nil {
			return resp, err
		}
		for _, b := range branches {
			out = append(out, Branch{Name: b.GetName(), SHA: b.GetCommit().GetSHA()})
		}
		return resp, nil
	})
	return out, err
}

// Contributors returns contributors in descending contribution order.
func (g *Gateway) Contributors(ctx context.Context) ([]Contributor, error) {
	var out []Contributor
	err := g.do(ctx, "list contributors", func(ctx context.Context) (*github.Response, error) {
		opts := &github.ListContributorsOptions{ListOptions: github.ListOptions{PerPage: 100}}
		contribs, resp, err := g.client.Repositories.ListContributors(ctx, g.owner, g.repo, opts)
		if err != nil {
			return resp, err
		}
		for _, c := range contribs {
			out = append(out, Contributor{
				Login:         c.GetLogin(),
				Contributions: c.GetContributions(),
			})
		}
		return resp, nil
	})
	return out, err
}

// SuggestReviewers picks up to max candidate reviewers from the
// contributor list, skipping the authenticated user and any explicit
// exclusions.
func (g *Gateway) SuggestReviewers(ctx context.Context, exclude []string, max int) ([]string, error) {
	contribs, err := g.Contributors(ctx)
	if err != nil {
		return nil, err
	}
	skip := map[string]bool{g.login: true}
	for _, e := range exclude {
		skip[e] = true
	}
	var out []string
	for _, c := range contribs {
		if skip[c.Login] || c.Login == "" {
			continue
		}
		out = append(out, c.Login)
		if len(out) >= max {
			break
		}
	}
	return out, nil
}

// CountCommitsSince counts default-branch commits since the given time.
// Each page is a separate queued call so pagination stays under the
// limiter's pacing.
func (g *Gateway) CountCommitsSince(ctx context.Context, since time.Time) (int, error) {
	count := 0
	opts := &github.CommitsListOptions{
		Since:       since,
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		next := 0
		err := g.do(ctx, "count commits", func(ctx context.Context) (*github.Response, error) {
			commits, resp, err := g.client.Repositories.ListCommits(ctx, g.owner, g.repo, opts)
			if err != nil {
				return resp, err
			}
			count += len(commits)
			next = resp.NextPage
			return resp, nil
		})
		if err != nil {
			return 0, err
		}
		if next == 0 {
			return count, nil
		}
		opts.Page = next
	}
}

// RepoMetrics aggregates activity over the trailing window.
func (g *Gateway) RepoMetrics(ctx context.Context, windowDays int) (*Metrics, error) {
	since := g.now().AddDate(0, 0, -windowDays)
	m := &Metrics{WindowDays: windowDays}

	commits, err := g.CountCommitsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	m.Commits = commits

	issues, err := g.ListOpenIssues(ctx)
	if err != nil {
		return nil, err
	}
	m.OpenIssues = len(issues)

	branches, err := g.ListBranches(ctx)
	if err != nil {
		return nil, err
	}
	m.Branches = len(branches)

	open, err := g.listPRs(ctx, "open")
	if err != nil {
		return nil, err
	}
	closed, err := g.listPRs(ctx, "closed")
	if err != nil {
		return nil, err
	}
	for _, pr := range open {
		if pr.CreatedAt.After(since) {
			m.PRsOpened++
		}
	}
	for _, pr := range closed {
		if pr.CreatedAt.After(since) {
			m.PRsOpened++
		}
		if pr.MergedAt != nil && pr.MergedAt.After(since) {
			m.PRsMerged++
		}
	}
	m.MeanReviewTime = meanReviewTime(closed, since)
	return m, nil
}

// meanReviewTime averages merge latency over PRs merged after since.
func meanReviewTime(prs []PullRequest, since time.Time) time.Duration {
	var total time.Duration
	merged := 0
	for _, pr := range prs {
		if pr.MergedAt == nil || !pr.MergedAt.After(since) {
			continue
		}
		total += pr.MergedAt.Sub(pr.CreatedAt)
		merged++
	}
	if merged == 0 {
		return 0
	}
	return total / time.Duration(merged)
}

func toIssue(is *github.Issue) Issue {
	out := Issue{
		Number:    is.GetNumber(),
		Title:     is.GetTitle(),
		Body:      is.GetBody(),
		State:     is.GetState(),
		URL:       is.GetHTMLURL(),
		CreatedAt: is.GetCreatedAt().Time,
		UpdatedAt: is.GetUpdatedAt().Time,
	}
	for _, l := range is.Labels {
		out.Labels = append(out.Labels, l.GetName())
	}
	for _, a := range is.Assignees {
		out.Assignees = append(out.Assignees, a.GetLogin())
	}
	return out
}

func toPullRequest(pr *github.PullRequest) PullRequest {
	out := PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		State:     pr.GetState(),
		Head:      pr.GetHead().GetRef(),
		Base:      pr.GetBase().GetRef(),
		Draft:     pr.GetDraft(),
		Author:    pr.GetUser().GetLogin(),
		URL:       pr.GetHTMLURL(),
		CreatedAt: pr.GetCreatedAt().Time,
	}
	if pr.MergedAt != nil {
		t := pr.MergedAt.Time
		out.MergedAt = &t
	}
	return out
}
