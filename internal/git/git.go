package git

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
)

// DefaultTimeout bounds every git invocation.
const DefaultTimeout = 30 * time.Second

// Git is the adapter over a single repository working directory. All
// mutations of the working tree go through this type, one at a time.
type Git struct {
	runner  Runner
	dir     string
	timeout time.Duration
}

// New creates an adapter for the repository at dir.
func New(dir string) *Git {
	return &Git{runner: NewExecRunner(), dir: dir, timeout: DefaultTimeout}
}

// NewWithRunner creates an adapter with a custom runner, used in tests.
func NewWithRunner(dir string, r Runner) *Git {
	return &Git{runner: r, dir: dir, timeout: DefaultTimeout}
}

// Dir returns the working directory of the adapter.
func (g *Git) Dir() string { return g.dir }

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.runner.Run(ctx, g.dir, "git", args...)
}

// IsRepository reports whether dir is inside a git work tree.
func (g *Git) IsRepository(ctx context.Context) bool {
	out, err := g.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// Status returns a fresh snapshot of the working tree.
func (g *Git) Status(ctx context.Context) (*Status, error) {
	out, err := g.run(ctx, "status", "--porcelain=v1", "--branch")
	if err != nil {
		return nil, mapError("status", err)
	}
	return parseStatus(out), nil
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", mapError("rev-parse", err)
	}
	return out, nil
}

// LocalBranches lists local branch names.
func (g *Git) LocalBranches(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, mapError("for-each-ref", err)
	}
	return splitLines(out), nil
}

// RemoteBranches lists remote branch names with the remote prefix trimmed.
func (g *Git) RemoteBranches(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "for-each-ref", "--format=%(refname:short)", "refs/remotes/origin")
	if err != nil {
		return nil, mapError("for-each-ref", err)
	}
	var branches []string
	for _, ref := range splitLines(out) {
		name := strings.TrimPrefix(ref, "origin/")
		if name == "HEAD" || name == ref {
			continue
		}
		branches = append(branches, name)
	}
	return branches, nil
}

// BranchExists reports local branch existence.
func (g *Git) BranchExists(ctx context.Context, branch string) bool {
	_, err := g.run(ctx, "rev-parse", "--verify", "refs/heads/"+branch)
	return err == nil
}

// RemoteBranchExists reports remote branch existence without fetching.
func (g *Git) RemoteBranchExists(ctx context.Context, branch string) bool {
	out, err := g.run(ctx, "ls-remote", "--heads", "origin", branch)
	return err == nil && strings.TrimSpace(out) != ""
}

// ChangedFiles enumerates changed paths with their porcelain status tags.
func (g *Git) ChangedFiles(ctx context.Context) ([]ChangedFile, error) {
	out, err := g.run(ctx, "status", "--porcelain=v1")
	if err != nil {
		return nil, mapError("status", err)
	}
	return parseChangedFiles(out), nil
}

// Add stages the given paths; "." stages everything.
func (g *Git) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	if _, err := g.run(ctx, args...); err != nil {
		return mapError("add", err)
	}
	return nil
}

// Commit records staged changes. When message is empty, a summary message
// is generated from the working-tree status.
func (g *Git) Commit(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		files, err := g.ChangedFiles(ctx)
		if err != nil {
			return err
		}
		message = AutoCommitMessage(files)
	}
	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return mapError("commit", err)
	}
	return nil
}

// Pull runs git pull against origin for the current branch.
func (g *Git) Pull(ctx context.Context) error {
	if _, err := g.run(ctx, "pull"); err != nil {
		return mapError("pull", err)
	}
	return nil
}

// Fetch updates remote-tracking refs.
func (g *Git) Fetch(ctx context.Context) error {
	if _, err := g.run(ctx, "fetch", "origin", "--prune"); err != nil {
		return mapError("fetch", err)
	}
	return nil
}

// Merge merges ref into the current branch.
func (g *Git) Merge(ctx context.Context, ref string) error {
	if _, err := g.run(ctx, "merge", ref); err != nil {
		return mapError("merge", err)
	}
	return nil
}

// Rebase rebases the current branch onto ref.
func (g *Git) Rebase(ctx context.Context, ref string) error {
	if _, err := g.run(ctx, "rebase", ref); err != nil {
		return mapError("rebase", err)
	}
	return nil
}

// RebaseAbort cancels an in-progress rebase.
func (g *Git) RebaseAbort(ctx context.Context) error {
	if _, err := g.run(ctx, "rebase", "--abort"); err != nil {
		return mapError("rebase --abort", err)
	}
	return nil
}

// StashPush stashes local changes, untracked included.
func (g *Git) StashPush(ctx context.Context, message string) error {
	args := []string{"stash", "push", "--include-untracked"}
	if message != "" {
		args = append(args, "-m", message)
	}
	if _, err := g.run(ctx, args...); err != nil {
		return mapError("stash push", err)
	}
	return nil
}

// StashPop restores the most recent stash entry.
func (g *Git) StashPop(ctx context.Context) error {
	if _, err := g.run(ctx, "stash", "pop"); err != nil {
		return mapError("stash pop", err)
	}
	return nil
}

// StashList returns the stash entries.
func (g *Git) StashList(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "stash", "list")
	if err != nil {
		return nil, mapError("stash list", err)
	}
	return splitLines(out), nil
}

// CreateBranch creates branch from base and switches to it.
func (g *Git) CreateBranch(ctx context.Context, branch, base string) error {
	args := []string{"checkout", "-b", branch}
	if base != "" {
		args = append(args, base)
	}
	if _, err := g.run(ctx, args...); err != nil {
		return mapError("checkout -b", err)
	}
	return nil
}

// Checkout switches to an existing branch.
func (g *Git) Checkout(ctx context.Context, branch string) error {
	if _, err := g.run(ctx, "checkout", branch); err != nil {
		return mapError("checkout", err)
	}
	return nil
}

// DeleteBranch safely deletes a local branch. Deleting the current branch
// is refused.
func (g *Git) DeleteBranch(ctx context.Context, branch string) error {
	current, err := g.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if current == branch {
		return flowerrors.New(flowerrors.TagValidation, "現在のブランチは削除できません").
			WithWhy(fmt.Sprintf("ブランチ %s をチェックアウト中です", branch))
	}
	if _, err := g.run(ctx, "branch", "-d", branch); err != nil {
		return mapError("branch -d", err)
	}
	return nil
}

// Commit metadata for display and analysis.
type Commit struct {
	Hash    string
	Author  string
	Date    time.Time
	Subject string
}

const logFormat = "%H%x1f%an%x1f%aI%x1f%s"

// LastCommit returns the most recent commit on ref (HEAD when empty).
func (g *Git) LastCommit(ctx context.Context, ref string) (*Commit, error) {
	args := []string{"log", "-1", "--format=" + logFormat}
	if ref != "" {
		args = append(args, ref)
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, mapError("log", err)
	}
	commits := parseCommits(out)
	if len(commits) == 0 {
		return nil, flowerrors.New(flowerrors.TagBranchNotFound, "コミットが見つかりません")
	}
	return &commits[0], nil
}

// CommitsSince returns commits on the current branch since ref.
func (g *Git) CommitsSince(ctx context.Context, ref string) ([]Commit, error) {
	out, err := g.run(ctx, "log", "--format="+logFormat, ref+"..HEAD")
	if err != nil {
		return nil, mapError("log", err)
	}
	return parseCommits(out), nil
}

// CommitsInWindow returns commits on ref newer than since.
func (g *Git) CommitsInWindow(ctx context.Context, ref string, since time.Time) ([]Commit, error) {
	args := []string{"log", "--format=" + logFormat, "--since=" + since.Format(time.RFC3339)}
	if ref != "" {
		args = append(args, ref)
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, mapError("log", err)
	}
	return parseCommits(out), nil
}

// AheadBehind returns the commit counts of branch relative to its
// upstream.
func (g *Git) AheadBehind(ctx context.Context, branch, upstream string) (ahead, behind int, err error) {
	out, err := g.run(ctx, "rev-list", "--left-right", "--count", branch+"..."+upstream)
	if err != nil {
		return 0, 0, mapError("rev-list", err)
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0, flowerrors.New(flowerrors.TagUnknownGit, "rev-list の出力を解釈できません")
	}
	ahead, _ = strconv.Atoi(fields[0])
	behind, _ = strconv.Atoi(fields[1])
	return ahead, behind, nil
}

// BranchCreatedAt returns the author time of the first commit unique to
// branch relative to base. When the branch has no unique commit the last
// commit time is returned.
func (g *Git) BranchCreatedAt(ctx context.Context, branch, base string) (time.Time, error) {
	out, err := g.run(ctx, "log", "--reverse", "--format=%aI", base+".."+branch)
	if err != nil {
		return time.Time{}, mapError("log", err)
	}
	lines := splitLines(out)
	if len(lines) > 0 {
		if t, err := time.Parse(time.RFC3339, lines[0]); err == nil {
			return t, nil
		}
	}
	last, err := g.LastCommit(ctx, branch)
	if err != nil {
		return time.Time{}, err
	}
	return last.Date, nil
}

// DiffNameOnly lists paths differing between two refs.
func (g *Git) DiffNameOnly(ctx context.Context, a, b string) ([]string, error) {
	out, err := g.run(ctx, "diff", "--name-only", a+"..."+b)
	if err != nil {
		return nil, mapError("diff", err)
	}
	return splitLines(out), nil
}

// RemoteURL returns the origin remote URL.
func (g *Git) RemoteURL(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "remote", "get-url", "origin")
	if err != nil {
		return "", flowerrors.Wrap(flowerrors.TagRemoteNotFound, "origin が設定されていません", err)
	}
	return out, nil
}

// ConfigValue reads a git config value; empty when unset.
func (g *Git) ConfigValue(ctx context.Context, key string) string {
	out, err := g.run(ctx, "config", "--get", key)
	if err != nil {
		return ""
	}
	return out
}

// DefaultBranch resolves the repository default branch from
// origin/HEAD, falling back to fallback.
func (g *Git) DefaultBranch(ctx context.Context, fallback string) string {
	out, err := g.run(ctx, "symbolic-ref", "refs/remotes/origin/HEAD", "--short")
	if err != nil {
		return fallback
	}
	return strings.TrimPrefix(out, "origin/")
}

// AutoCommitMessage builds the summary message used when the user supplies
// none: "Update: add K files, modify K files, delete K files".
func AutoCommitMessage(files []ChangedFile) string {
	var added, modified, deleted int
	for _, f := range files {
		switch {
		case strings.Contains(f.Tag, "A") || f.Tag == "??":
			added++
		case strings.Contains(f.Tag, "D"):
			deleted++
		default:
			modified++
		}
	}
	var parts []string
	if added > 0 {
		parts = append(parts, fmt.Sprintf("add %d files", added))
	}
	if modified > 0 {
		parts = append(parts, fmt.Sprintf("modify %d files", modified))
	}
	if deleted > 0 {
		parts = append(parts, fmt.Sprintf("delete %d files", deleted))
	}
	if len(parts) == 0 {
		return "Update files"
	}
	return "Update: " + strings.Join(parts, ", ")
}

func parseCommits(out string) []Commit {
	var commits []Commit
	for _, line := range splitLines(out) {
		fields := strings.Split(line, "\x1f")
		if len(fields) != 4 {
			continue
		}
		date, _ := time.Parse(time.RFC3339, fields[2])
		commits = append(commits, Commit{
			Hash:    fields[0],
			Author:  fields[1],
			Date:    date,
			Subject: fields[3],
		})
	}
	return commits
}

func splitLines(out string) []string {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil
	}
	lines := strings.Split(out, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return lines
}
