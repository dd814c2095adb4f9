package plan

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamflowhq/teamflow/internal/gateway"
)

func TestDetectWorkType(t *testing.T) {
	tests := []struct {
		labels []string
		want   WorkType
	}{
		{nil, Feature},
		{[]string{"enhancement"}, Feature},
		{[]string{"bug"}, Bugfix},
		{[]string{"Bug", "triage"}, Bugfix},
		{[]string{"hotfix"}, Hotfix},
		{[]string{"urgent", "bug"}, Hotfix},
		{[]string{"documentation"}, Docs},
		{[]string{"refactoring"}, Refactor},
		{[]string{"tests"}, Test},
		{[]string{"dependencies"}, Chore},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.labels), func(t *testing.T) {
			assert.Equal(t, tt.want, DetectWorkType(tt.labels))
		})
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Add login form", "add-login-form"},
		{"Fix  DOUBLE   spaces!", "fix-double-spaces"},
		{"[P1] crash on startup (macOS)", "p1-crash-on-startup-macos"},
		{"ログイン機能を追加", ""},
		{"ログイン bug を修正", "bug"},
		{"a very long issue title that keeps going and going", "a-very-long-issue-title-that-k"},
		{"---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := Slug(tt.title)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), slugMaxLen)
		})
	}
}

func TestNew_WithIssue(t *testing.T) {
	issue := &gateway.Issue{Number: 42, Title: "Add login form"}
	p, err := New(Feature, issue, "main", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "feature/issue-42-add-login-form", p.FullName)
	assert.Equal(t, 42, p.IssueNumber)
	assert.Equal(t, "main", p.Base)
}

func TestNew_FallbackNames(t *testing.T) {
	now := time.Date(2026, 8, 24, 15, 4, 0, 0, time.UTC)

	p, err := New(Bugfix, nil, "main", now)
	require.NoError(t, err)
	assert.Equal(t, "bugfix/work-20260824-1504", p.FullName)

	// Issue whose title yields no slug still carries its number.
	issue := &gateway.Issue{Number: 7, Title: "ログイン機能を追加"}
	p, err = New(Feature, issue, "main", now)
	require.NoError(t, err)
	assert.Equal(t, "feature/issue-7-work-20260824-1504", p.FullName)
}

func TestNew_RejectsUnknownWorkType(t *testing.T) {
	_, err := New(WorkType("banana"), nil, "main", time.Now())
	require.Error(t, err)
}

func TestScanConflicts(t *testing.T) {
	p := &BranchPlan{IssueNumber: 42, FullName: "feature/issue-42-add-login-form"}

	conflicts := ScanConflicts(p, []string{
		"main",
		"feature/issue-41-other",
		"bugfix/issue-42-login-crash",
		"feature/issue-42-add-login-form",
		"feature/issue-420-unrelated",
	})
	require.Len(t, conflicts, 2)
	assert.Equal(t, "bugfix/issue-42-login-crash", conflicts[0].Existing)
	assert.Equal(t, "feature/issue-42-add-login-form", conflicts[1].Existing)
}

func TestScanConflicts_SamplesLargeLists(t *testing.T) {
	p := &BranchPlan{IssueNumber: 1, FullName: "feature/issue-1-x"}
	var branches []string
	for i := 0; i < conflictSampleSize; i++ {
		branches = append(branches, fmt.Sprintf("feature/issue-%d-other", i+1000))
	}
	// The colliding branch sits beyond the sample window.
	branches = append(branches, "feature/issue-1-x")

	assert.Empty(t, ScanConflicts(p, branches))
}

func TestWorkTypeTable(t *testing.T) {
	assert.Equal(t, "feature/", Feature.BranchPrefix())
	assert.Equal(t, "feat", Feature.CommitType())
	assert.Equal(t, "fix", Hotfix.CommitType())
	assert.Len(t, All(), 7)
	for _, wt := range All() {
		assert.True(t, wt.Valid())
		assert.NotEmpty(t, wt.Label())
	}
}

func TestIsConventional(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"feat: add login", true},
		{"fix(auth): handle expired token", true},
		{"feat!: breaking change", true},
		{"chore: bump deps\n\nbody text", true},
		{"Add login", false},
		{"feat:missing space", false},
		{"unknown: type", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConventional(tt.msg))
		})
	}
}

func TestEnsureConventional(t *testing.T) {
	assert.Equal(t, "feat: add login", EnsureConventional(Feature, "add login"))
	assert.Equal(t, "fix: already tagged", EnsureConventional(Bugfix, "fix: already tagged"))
}
