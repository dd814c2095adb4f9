package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_TaggedErrors(t *testing.T) {
	tests := []struct {
		tag  Tag
		want Severity
	}{
		{TagRepoCorruption, SeverityCritical},
		{TagPermission, SeverityCritical},
		{TagDiskFull, SeverityCritical},
		{TagOutOfMemory, SeverityCritical},
		{TagAuthFailed, SeverityCritical},
		{TagNetworkTimeout, SeverityRecoverable},
		{TagConnectionRefused, SeverityRecoverable},
		{TagMergeConflict, SeverityRecoverable},
		{TagRateLimit, SeverityRecoverable},
		{TagFileNotFound, SeverityRecoverable},
		{TagConfigMissing, SeverityRecoverable},
		{TagFileBusy, SeverityRecoverable},
		{TagOptionalFeature, SeverityWarning},
		{TagDeprecated, SeverityWarning},
		{TagConfigNonfatal, SeverityWarning},
		{TagPerformance, SeverityWarning},
	}
	for _, tt := range tests {
		t.Run(string(tt.tag), func(t *testing.T) {
			cls := Classify(New(tt.tag, "x"))
			assert.Equal(t, tt.want, cls.Severity)
			assert.Equal(t, tt.tag, cls.Tag)
			assert.Equal(t, tt.want == SeverityRecoverable, cls.Recoverable)
		})
	}
}

func TestClassify_MessagePatterns(t *testing.T) {
	tests := []struct {
		msg  string
		tag  Tag
		want Severity
	}{
		{"fatal: not a git repository (or any of the parent directories)", TagNotGitRepository, SeverityCritical},
		{"open /x: permission denied", TagPermission, SeverityCritical},
		{"write: no space left on device", TagDiskFull, SeverityCritical},
		{"remote: authentication failed", TagAuthFailed, SeverityCritical},
		{"dial tcp: connection refused", TagConnectionRefused, SeverityRecoverable},
		{"request timed out", TagNetworkTimeout, SeverityRecoverable},
		{"CONFLICT (content): merge conflict in a.txt", TagMergeConflict, SeverityRecoverable},
		{"API rate limit exceeded", TagRateLimit, SeverityRecoverable},
		{"stat .env: no such file or directory", TagFileNotFound, SeverityRecoverable},
		{"command is deprecated", TagDeprecated, SeverityWarning},
		{"completely novel failure", TagUnknown, SeverityUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			cls := Classify(stderrors.New(tt.msg))
			assert.Equal(t, tt.want, cls.Severity)
			assert.Equal(t, tt.tag, cls.Tag)
		})
	}
}

func TestClassify_PlatformErrno(t *testing.T) {
	cls := Classify(fmt.Errorf("open: %w", syscall.EACCES))
	assert.Equal(t, SeverityCritical, cls.Severity)
	assert.Equal(t, TagPermission, cls.Tag)

	cls = Classify(fmt.Errorf("write: %w", syscall.ENOSPC))
	assert.Equal(t, TagDiskFull, cls.Tag)

	cls = Classify(fmt.Errorf("dial: %w", syscall.ECONNREFUSED))
	assert.Equal(t, SeverityRecoverable, cls.Severity)

	cls = Classify(fmt.Errorf("api: %w", context.DeadlineExceeded))
	assert.Equal(t, TagNetworkTimeout, cls.Tag)
}

func TestFlowError_IsByTag(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(TagMergeConflict, "rebase stopped"))
	assert.True(t, Is(err, &FlowError{Tag: TagMergeConflict}))
	assert.False(t, Is(err, &FlowError{Tag: TagRateLimit}))
	assert.Equal(t, TagMergeConflict, TagOf(err))
}

type stubRecoverer struct {
	calls int
	ok    bool
}

func (s *stubRecoverer) Recover(_ context.Context, _ Tag, _ string, _ error) (string, bool) {
	s.calls++
	return "stub", s.ok
}

func TestHandler_DispatchesRecoverableOnly(t *testing.T) {
	rec := &stubRecoverer{ok: true}
	h := NewHandler(io.Discard, rec)

	res := h.Handle(context.Background(), "pull", New(TagNetworkTimeout, "pull timed out"))
	assert.True(t, res.Recovered)
	assert.True(t, res.Retry)
	assert.Equal(t, 1, rec.calls)

	res = h.Handle(context.Background(), "push", New(TagAuthFailed, "bad token"))
	assert.False(t, res.Recovered)
	assert.Equal(t, 1, rec.calls, "critical errors never dispatch recovery")

	res = h.Handle(context.Background(), "noop", New(TagDeprecated, "old flag"))
	assert.False(t, res.Recovered)
	assert.Equal(t, 1, rec.calls, "warnings never dispatch recovery")
}

func TestHandler_RetryBound(t *testing.T) {
	rec := &stubRecoverer{ok: true}
	h := NewHandler(io.Discard, rec)

	for i := 0; i < 3; i++ {
		res := h.Handle(context.Background(), "pull", New(TagNetworkTimeout, "t"))
		assert.True(t, res.Retry, "attempt %d", i)
	}
	res := h.Handle(context.Background(), "pull", New(TagNetworkTimeout, "t"))
	assert.False(t, res.Retry, "bound exceeded surfaces failure")
	assert.Contains(t, res.Message, "リトライ上限")

	// Success clears the counter.
	h.ClearRetries("pull")
	res = h.Handle(context.Background(), "pull", New(TagNetworkTimeout, "t"))
	assert.True(t, res.Retry)
}

func TestHandler_CountsEveryClassification(t *testing.T) {
	h := NewHandler(io.Discard, nil)
	h.Handle(context.Background(), "a", New(TagRateLimit, "x"))
	h.Handle(context.Background(), "b", New(TagRateLimit, "y"))
	h.Handle(context.Background(), "c", stderrors.New("mystery"))

	counts := h.Counts()
	assert.Equal(t, 2, counts[TagRateLimit])
	assert.Equal(t, 1, counts[TagUnknown])
	assert.Contains(t, h.CountsReport(), "API_RATE_LIMIT: 2")
}

func TestHandler_CleanupOrder(t *testing.T) {
	h := NewHandler(io.Discard, nil)
	var order []int
	h.RegisterCleanup(func() { order = append(order, 1) })
	h.RegisterCleanup(func() { order = append(order, 2) })
	h.runCleanups()
	assert.Equal(t, []int{1, 2}, order)
}
