// Package plan derives branch names and commit conventions for new work:
// work-type classification from issue labels, slug generation, and the
// conflict scan against existing branches.
package plan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/teamflowhq/teamflow/internal/gateway"
	"github.com/teamflowhq/teamflow/internal/validate"
)

// WorkType classifies what kind of change a branch carries.
type WorkType string

const (
	Feature  WorkType = "feature"
	Bugfix   WorkType = "bugfix"
	Hotfix   WorkType = "hotfix"
	Docs     WorkType = "docs"
	Refactor WorkType = "refactor"
	Test     WorkType = "test"
	Chore    WorkType = "chore"
)

// typeInfo binds a work type to its branch prefix and conventional
// commit type.
type typeInfo struct {
	prefix     string
	commitType string
	label      string
}

var workTypes = map[WorkType]typeInfo{
	Feature:  {"feature/", "feat", "新機能"},
	Bugfix:   {"bugfix/", "fix", "バグ修正"},
	Hotfix:   {"hotfix/", "fix", "緊急修正"},
	Docs:     {"docs/", "docs", "ドキュメント"},
	Refactor: {"refactor/", "refactor", "リファクタリング"},
	Test:     {"test/", "test", "テスト"},
	Chore:    {"chore/", "chore", "雑務"},
}

// All lists the selectable work types in menu order.
func All() []WorkType {
	return []WorkType{Feature, Bugfix, Hotfix, Docs, Refactor, Test, Chore}
}

// BranchPrefix returns the branch name prefix of the work type.
func (w WorkType) BranchPrefix() string { return workTypes[w].prefix }

// CommitType returns the conventional commit type of the work type.
func (w WorkType) CommitType() string { return workTypes[w].commitType }

// Label returns the Japanese menu label of the work type.
func (w WorkType) Label() string { return workTypes[w].label }

// Valid reports whether w is a known work type.
func (w WorkType) Valid() bool {
	_, ok := workTypes[w]
	return ok
}

// labelHints maps issue label substrings to work types, checked in order.
var labelHints = []struct {
	substr string
	wt     WorkType
}{
	{"hotfix", Hotfix},
	{"urgent", Hotfix},
	{"critical", Hotfix},
	{"bug", Bugfix},
	{"doc", Docs},
	{"refactor", Refactor},
	{"test", Test},
	{"chore", Chore},
	{"dependencies", Chore},
}

// DetectWorkType guesses a work type from issue labels; unlabeled issues
// default to Feature.
func DetectWorkType(labels []string) WorkType {
	for _, hint := range labelHints {
		for _, label := range labels {
			if strings.Contains(strings.ToLower(label), hint.substr) {
				return hint.wt
			}
		}
	}
	return Feature
}

// slugMaxLen bounds the slug portion of a branch name.
const slugMaxLen = 30

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns an issue title into a branch-safe slug: lowercase ASCII,
// runs of other characters collapsed to single dashes, at most 30
// characters. Titles without any ASCII alphanumerics produce an empty
// slug.
func Slug(title string) string {
	s := strings.ToLower(title)
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > slugMaxLen {
		s = s[:slugMaxLen]
		s = strings.TrimRight(s, "-")
	}
	return s
}

// BranchPlan is a fully derived branch naming decision.
type BranchPlan struct {
	WorkType    WorkType
	IssueNumber int
	Slug        string
	FullName    string
	Base        string
}

// New derives a branch plan. With an issue the name is
// "<prefix>issue-<N>-<slug>"; without one (or when the title yields no
// slug) it falls back to "<prefix>work-<yyyymmdd-hhmm>".
func New(wt WorkType, issue *gateway.Issue, base string, now time.Time) (*BranchPlan, error) {
	if !wt.Valid() {
		return nil, fmt.Errorf("unknown work type %q", wt)
	}
	p := &BranchPlan{WorkType: wt, Base: base}

	switch {
	case issue != nil && Slug(issue.Title) != "":
		p.IssueNumber = issue.Number
		p.Slug = Slug(issue.Title)
		p.FullName = fmt.Sprintf("%sissue-%d-%s", wt.BranchPrefix(), issue.Number, p.Slug)
	case issue != nil:
		p.IssueNumber = issue.Number
		p.FullName = fmt.Sprintf("%sissue-%d-work-%s", wt.BranchPrefix(), issue.Number,
			now.Format("20060102-1504"))
	default:
		p.FullName = fmt.Sprintf("%swork-%s", wt.BranchPrefix(), now.Format("20060102-1504"))
	}

	if res := validate.BranchName(p.FullName); !res.Valid {
		return nil, fmt.Errorf("derived branch name is invalid: %s", res.Error)
	}
	return p, nil
}

// NewFromDescription derives a plan from a free-text description instead
// of an issue. Descriptions that yield no slug fall back to the
// timestamped name.
func NewFromDescription(wt WorkType, description, base string, now time.Time) (*BranchPlan, error) {
	if !wt.Valid() {
		return nil, fmt.Errorf("unknown work type %q", wt)
	}
	p := &BranchPlan{WorkType: wt, Base: base, Slug: Slug(description)}
	if p.Slug != "" {
		p.FullName = wt.BranchPrefix() + p.Slug
	} else {
		p.FullName = fmt.Sprintf("%swork-%s", wt.BranchPrefix(), now.Format("20060102-1504"))
	}
	if res := validate.BranchName(p.FullName); !res.Valid {
		return nil, fmt.Errorf("derived branch name is invalid: %s", res.Error)
	}
	return p, nil
}

// conflictSampleSize bounds the pairwise scan on large branch lists.
const conflictSampleSize = 50

// Conflict describes a collision between the planned branch and an
// existing one.
type Conflict struct {
	Existing string
	Reason   string
}

var issueNumberPattern = regexp.MustCompile(`issue-(\d+)(?:-|$)`)

// ScanConflicts checks the plan against existing branch names: exact
// name collisions and other branches already claiming the same issue.
// Lists longer than the sample size are truncated before the scan.
func ScanConflicts(p *BranchPlan, existing []string) []Conflict {
	if len(existing) > conflictSampleSize {
		existing = existing[:conflictSampleSize]
	}
	var out []Conflict
	for _, name := range existing {
		if name == p.FullName {
			out = append(out, Conflict{Existing: name, Reason: "同名のブランチが既に存在します"})
			continue
		}
		if p.IssueNumber == 0 {
			continue
		}
		if m := issueNumberPattern.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n == p.IssueNumber {
				out = append(out, Conflict{
					Existing: name,
					Reason:   fmt.Sprintf("Issue #%d のブランチが既に存在します", p.IssueNumber),
				})
			}
		}
	}
	return out
}
