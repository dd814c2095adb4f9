package recovery

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamflowhq/teamflow/internal/backup"
	"github.com/teamflowhq/teamflow/internal/config"
	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
	"github.com/teamflowhq/teamflow/internal/gateway"
	"github.com/teamflowhq/teamflow/internal/logging"
)

type fakeStore struct {
	latest     *backup.Snapshot
	restored   []string
	restoreErr error
}

func (f *fakeStore) Latest() (*backup.Snapshot, error) { return f.latest, nil }
func (f *fakeStore) Restore(_ context.Context, id string) (*backup.Snapshot, error) {
	if f.restoreErr != nil {
		return nil, f.restoreErr
	}
	f.restored = append(f.restored, id)
	return f.latest, nil
}

type fakeQuota struct {
	state   gateway.RateLimitState
	offline bool
}

func (f *fakeQuota) RateLimit() gateway.RateLimitState { return f.state }
func (f *fakeQuota) SetOffline(v bool)                 { f.offline = v }

type fakeConfirm struct {
	answer bool
	asked  []string
}

func (f *fakeConfirm) Confirm(_ context.Context, q string) (bool, error) {
	f.asked = append(f.asked, q)
	return f.answer, nil
}

func newTestManager(t *testing.T) (*Manager, *[]time.Duration) {
	t.Helper()
	cfg := config.Default()
	cfg.WorkDir = t.TempDir()

	m := NewManager(cfg, nil, nil, nil, logging.Discard())
	m.now = func() time.Time { return time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC) }
	slept := &[]time.Duration{}
	m.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return m, slept
}

func TestBackoff_DoublesPerAttempt(t *testing.T) {
	m, slept := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, ok := m.Recover(ctx, flowerrors.TagNetworkTimeout, "git pull", errors.New("timeout"))
		assert.True(t, ok)
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *slept)

	note, ok := m.Recover(ctx, flowerrors.TagNetworkTimeout, "git pull", errors.New("timeout"))
	assert.False(t, ok, "fourth attempt exceeds the cap")
	assert.Contains(t, note, "リトライ上限")

	// The cap also resets the counter, so the next failure starts over.
	_, ok = m.Recover(ctx, flowerrors.TagNetworkTimeout, "git pull", errors.New("timeout"))
	assert.True(t, ok)
	assert.Equal(t, time.Second, (*slept)[len(*slept)-1])
}

func TestBackoff_CountersArePerOperation(t *testing.T) {
	m, slept := newTestManager(t)
	ctx := context.Background()

	m.Recover(ctx, flowerrors.TagNetworkTimeout, "git pull", errors.New("x"))
	m.Recover(ctx, flowerrors.TagNetworkTimeout, "git push", errors.New("x"))
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *slept)
}

func TestGoOffline_WritesMarkerAndFlipsGateway(t *testing.T) {
	m, _ := newTestManager(t)
	quota := &fakeQuota{}
	m.quota = quota

	note, ok := m.Recover(context.Background(), flowerrors.TagConnectionRefused, "api", errors.New("connection refused"))
	require.True(t, ok)
	assert.Contains(t, note, "オフラインモード")
	assert.True(t, quota.offline)
	assert.FileExists(t, m.cfg.OfflineFile())
}

func TestRestoreLatest_AsksBeforeRestoring(t *testing.T) {
	m, _ := newTestManager(t)
	store := &fakeStore{latest: &backup.Snapshot{ID: "snap-aaaa-bbbb", CreatedAt: time.Now()}}
	confirm := &fakeConfirm{answer: true}
	m.store = store
	m.confirm = confirm

	_, ok := m.Recover(context.Background(), flowerrors.TagMergeConflict, "merge", errors.New("conflict"))
	require.True(t, ok)
	assert.Equal(t, []string{"snap-aaaa-bbbb"}, store.restored)
	require.Len(t, confirm.asked, 1)

	confirm.answer = false
	store.restored = nil
	note, ok := m.Recover(context.Background(), flowerrors.TagMergeConflict, "merge", errors.New("conflict"))
	assert.False(t, ok)
	assert.Contains(t, note, "キャンセル")
	assert.Empty(t, store.restored)
}

func TestRestoreLatest_NoBackups(t *testing.T) {
	m, _ := newTestManager(t)
	m.store = &fakeStore{}

	note, ok := m.Recover(context.Background(), flowerrors.TagMergeConflict, "merge", errors.New("conflict"))
	assert.False(t, ok)
	assert.Contains(t, note, "バックアップがありません")
}

func TestAwaitQuota_SleepsUntilResetPlusSlack(t *testing.T) {
	m, slept := newTestManager(t)
	m.quota = &fakeQuota{state: gateway.RateLimitState{
		Remaining: 0,
		ResetAt:   m.now().Add(20 * time.Second),
	}}

	_, ok := m.Recover(context.Background(), flowerrors.TagRateLimit, "api", errors.New("rate limited"))
	require.True(t, ok)
	require.Len(t, *slept, 1)
	assert.Equal(t, 21*time.Second, (*slept)[0])
}

func TestAwaitQuota_RefusesLongWaits(t *testing.T) {
	m, slept := newTestManager(t)
	m.quota = &fakeQuota{state: gateway.RateLimitState{
		Remaining: 0,
		ResetAt:   m.now().Add(2 * time.Hour),
	}}

	_, ok := m.Recover(context.Background(), flowerrors.TagRateLimit, "api", errors.New("rate limited"))
	assert.False(t, ok)
	assert.Empty(t, *slept)
}

func TestRecreateDefault_KnownFilenames(t *testing.T) {
	m, _ := newTestManager(t)

	cause := fmt.Errorf("open %s: no such file or directory", filepath.Join(m.cfg.WorkDir, ".gitignore"))
	note, ok := m.Recover(context.Background(), flowerrors.TagFileNotFound, "read", cause)
	require.True(t, ok)
	assert.Contains(t, note, ".gitignore")
	assert.FileExists(t, filepath.Join(m.cfg.WorkDir, ".gitignore"))

	// Existing files are never overwritten.
	_, ok = m.Recover(context.Background(), flowerrors.TagFileNotFound, "read", cause)
	assert.False(t, ok)

	_, ok = m.Recover(context.Background(), flowerrors.TagFileNotFound, "read",
		errors.New("open secrets.yaml: no such file"))
	assert.False(t, ok, "unknown filenames have no default")
}

func TestRepairConfig_GeneratesEnv(t *testing.T) {
	m, _ := newTestManager(t)

	note, ok := m.Recover(context.Background(), flowerrors.TagConfigMissing, "load config", errors.New("missing"))
	require.True(t, ok)
	assert.Contains(t, note, ".env")
	assert.FileExists(t, filepath.Join(m.cfg.WorkDir, ".env"))
}

func TestHistory_RingKeepsRecentAttempts(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < historySize+5; i++ {
		m.Recover(ctx, flowerrors.TagFileNotFound, fmt.Sprintf("op-%d", i), errors.New("nope"))
	}
	attempts := m.History()
	require.Len(t, attempts, historySize)
	assert.Equal(t, "op-5", attempts[0].Operation, "oldest surviving entry")
	assert.Equal(t, fmt.Sprintf("op-%d", historySize+4), attempts[len(attempts)-1].Operation)
}

func TestRecover_UnknownTagHasNoStrategy(t *testing.T) {
	m, _ := newTestManager(t)
	note, ok := m.Recover(context.Background(), flowerrors.TagPermission, "op", errors.New("denied"))
	assert.False(t, ok)
	assert.Contains(t, note, "自動復旧はありません")
}
