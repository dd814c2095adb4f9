// Package phase implements the five user-facing workflows: Start,
// Continue, Finish, Team and Help-Flow. Each phase is a serial state
// machine over the Git adapter, the API gateway, the backup store and
// the prompter, returning a structured result.
package phase

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/teamflowhq/teamflow/internal/backup"
	"github.com/teamflowhq/teamflow/internal/config"
	"github.com/teamflowhq/teamflow/internal/diagnose"
	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
	"github.com/teamflowhq/teamflow/internal/gateway"
	"github.com/teamflowhq/teamflow/internal/git"
	"github.com/teamflowhq/teamflow/internal/logging"
	"github.com/teamflowhq/teamflow/internal/notify"
	"github.com/teamflowhq/teamflow/internal/prompt"
	"github.com/teamflowhq/teamflow/internal/recovery"
	"github.com/teamflowhq/teamflow/internal/workstatus"
)

// Status is a phase outcome.
type Status string

const (
	Completed Status = "completed"
	Aborted   Status = "aborted"
	Failed    Status = "failed"
)

// Artifacts names what a phase produced.
type Artifacts struct {
	Branch      string
	IssueNumber int
	PRNumber    int
	PRURL       string
}

// Result is the structured outcome of one phase run.
type Result struct {
	Status    Status
	Artifacts Artifacts
	Messages  []string
	// RequiresManualAction marks failures the user must resolve by hand.
	RequiresManualAction bool
}

func (r *Result) say(msg string) { r.Messages = append(r.Messages, msg) }

func completed() *Result { return &Result{Status: Completed} }
func aborted(msg string) *Result {
	r := &Result{Status: Aborted}
	if msg != "" {
		r.say(msg)
	}
	return r
}
func failed(msg string) *Result {
	r := &Result{Status: Failed}
	if msg != "" {
		r.say(msg)
	}
	return r
}

// GitHub is the slice of the gateway the phases consume.
type GitHub interface {
	Available() bool
	Login() string
	ListOpenIssues(ctx context.Context) ([]gateway.Issue, error)
	GetIssue(ctx context.Context, number int) (*gateway.Issue, error)
	CreateIssue(ctx context.Context, title, body string, labels []string) (*gateway.Issue, error)
	CommentIssue(ctx context.Context, number int, body string) error
	ListPRsWithReviews(ctx context.Context) ([]gateway.PullRequest, error)
	CreatePR(ctx context.Context, title, body, head, base string, draft bool) (*gateway.PullRequest, error)
	SuggestReviewers(ctx context.Context, exclude []string, max int) ([]string, error)
	RequestReviewers(ctx context.Context, number int, reviewers []string) error
	RepoMetrics(ctx context.Context, windowDays int) (*gateway.Metrics, error)
}

// Backups is the slice of the backup store the phases consume.
type Backups interface {
	Create(ctx context.Context, typ backup.Type, reason string) (*backup.Snapshot, error)
	List() ([]backup.Snapshot, error)
	Restore(ctx context.Context, id string) (*backup.Snapshot, error)
}

// Notifier delivers team notifications; failures never fail a phase.
type Notifier interface {
	Enabled() bool
	Send(ctx context.Context, msg notify.Message)
}

// Deps bundles everything a phase needs. All fields are required except
// GitHub and Notify, which degrade gracefully when nil or unavailable.
type Deps struct {
	Cfg      *config.Config
	Git      *git.Git
	GitHub   GitHub
	Backups  Backups
	Notify   Notifier
	Prompt   prompt.Prompter
	Handler  *flowerrors.Handler
	Recovery *recovery.Manager
	Doctor   *diagnose.Doctor
	Analyzer *workstatus.Analyzer
	Log      *logging.Logger

	now func() time.Time
}

func (d *Deps) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

func (d *Deps) logger() *logging.Logger {
	if d.Log == nil {
		return logging.Discard()
	}
	return d.Log
}

// github reports whether the gateway is usable for API calls.
func (d *Deps) github() (GitHub, bool) {
	if d.GitHub == nil || !d.GitHub.Available() {
		return nil, false
	}
	return d.GitHub, true
}

// notifyTeam sends a message when a notifier is configured.
func (d *Deps) notifyTeam(ctx context.Context, msg notify.Message) {
	if d.Notify == nil || !d.Notify.Enabled() {
		return
	}
	d.Notify.Send(ctx, msg)
}

// handle routes an operation failure through the error handler and
// reports whether the caller should retry.
func (d *Deps) handle(ctx context.Context, operation string, err error) flowerrors.HandleResult {
	if d.Handler == nil {
		return flowerrors.HandleResult{Message: err.Error()}
	}
	return d.Handler.Handle(ctx, operation, err)
}

var branchIssuePattern = regexp.MustCompile(`issue-(\d+)-`)

// issueNumberFromBranch extracts the issue number encoded in a branch
// name, zero when absent.
func issueNumberFromBranch(branch string) int {
	m := branchIssuePattern.FindStringSubmatch(branch)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
