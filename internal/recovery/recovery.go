// Package recovery implements the automatic strategies dispatched by the
// error handler for recoverable failures: waiting out network and quota
// windows, switching to offline mode, restoring from backup, and
// regenerating missing default files.
package recovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teamflowhq/teamflow/internal/backup"
	"github.com/teamflowhq/teamflow/internal/config"
	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
	"github.com/teamflowhq/teamflow/internal/gateway"
	"github.com/teamflowhq/teamflow/internal/logging"
)

// backoffBase is the first network-retry delay; attempt N waits
// base * 2^(N-1).
const backoffBase = time.Second

// maxBackoffAttempts caps the delays the manager will sit through per
// operation before giving up.
const maxBackoffAttempts = 3

// Restorer is the slice of the backup store the manager needs.
type Restorer interface {
	Latest() (*backup.Snapshot, error)
	Restore(ctx context.Context, id string) (*backup.Snapshot, error)
}

// QuotaReader exposes the gateway's last-seen rate-limit window.
type QuotaReader interface {
	RateLimit() gateway.RateLimitState
	SetOffline(bool)
}

// Confirmer asks the user before destructive recovery steps.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Manager implements errors.Recoverer. All strategies are safe to call
// concurrently.
type Manager struct {
	cfg     *config.Config
	store   Restorer
	quota   QuotaReader
	confirm Confirmer
	log     *logging.Logger

	mu       sync.Mutex
	attempts map[string]int

	hist *history

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager wires the recovery strategies. store, quota and confirm may
// each be nil; the corresponding strategies then report failure instead
// of acting.
func NewManager(cfg *config.Config, store Restorer, quota QuotaReader, confirm Confirmer, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Discard()
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		quota:    quota,
		confirm:  confirm,
		log:      log,
		attempts: map[string]int{},
		hist:     &history{},
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Recover dispatches the strategy registered for tag. It returns a human
// summary of what was done and whether the operation may be retried.
func (m *Manager) Recover(ctx context.Context, tag flowerrors.Tag, operation string, cause error) (string, bool) {
	var (
		note     string
		ok       bool
		strategy string
	)
	switch tag {
	case flowerrors.TagNetworkTimeout:
		strategy = "backoff-retry"
		note, ok = m.backoff(ctx, operation)
	case flowerrors.TagConnectionRefused:
		strategy = "offline-mode"
		note, ok = m.goOffline()
	case flowerrors.TagMergeConflict:
		strategy = "restore-backup"
		note, ok = m.restoreLatest(ctx)
	case flowerrors.TagRateLimit:
		strategy = "await-quota"
		note, ok = m.awaitQuota(ctx)
	case flowerrors.TagFileNotFound:
		strategy = "recreate-default"
		note, ok = m.recreateDefault(cause)
	case flowerrors.TagConfigMissing:
		strategy = "repair-config"
		note, ok = m.repairConfig()
	case flowerrors.TagFileBusy:
		strategy = "short-wait"
		note, ok = m.shortWait(ctx)
	default:
		strategy = "none"
		note, ok = "このエラーに対応する自動復旧はありません", false
	}

	m.hist.add(Attempt{
		Time:      m.now(),
		Tag:       tag,
		Operation: operation,
		Strategy:  strategy,
		Succeeded: ok,
		Note:      note,
	})
	m.log.Info("recovery attempt", "tag", string(tag), "operation", operation,
		"strategy", strategy, "succeeded", ok)
	return note, ok
}

// History returns past attempts, oldest first.
func (m *Manager) History() []Attempt {
	return m.hist.all()
}

// ResetAttempts clears the backoff counter for operation after success.
func (m *Manager) ResetAttempts(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, operation)
}

// backoff waits base * 2^(N-1) for the N-th failure of operation.
func (m *Manager) backoff(ctx context.Context, operation string) (string, bool) {
	m.mu.Lock()
	m.attempts[operation]++
	n := m.attempts[operation]
	m.mu.Unlock()

	if n > maxBackoffAttempts {
		m.ResetAttempts(operation)
		return fmt.Sprintf("リトライ上限 (%d回) に達しました", maxBackoffAttempts), false
	}
	delay := backoffBase << (n - 1)
	if err := m.sleep(ctx, delay); err != nil {
		return "待機が中断されました", false
	}
	return fmt.Sprintf("%s 待機しました (試行 %d/%d)", delay, n, maxBackoffAttempts), true
}

func (m *Manager) goOffline() (string, bool) {
	path := m.cfg.OfflineFile()
	if err := writeOfflineMarker(path, m.now()); err != nil {
		return "オフラインマーカーを書き込めませんでした: " + err.Error(), false
	}
	if m.quota != nil {
		m.quota.SetOffline(true)
	}
	return "オフラインモードに切り替えました。GitHub連携なしで続行します", true
}

func (m *Manager) restoreLatest(ctx context.Context) (string, bool) {
	if m.store == nil {
		return "バックアップストアが利用できません", false
	}
	latest, err := m.store.Latest()
	if err != nil || latest == nil {
		return "復元できるバックアップがありません", false
	}
	if m.confirm != nil {
		yes, err := m.confirm.Confirm(ctx, fmt.Sprintf(
			"競合前のバックアップ (%s, %s) から復元しますか？ 作業中の変更は退避されます",
			shortID(latest.ID), latest.CreatedAt.Local().Format("2006-01-02 15:04")))
		if err != nil || !yes {
			return "復元はキャンセルされました", false
		}
	}
	if _, err := m.store.Restore(ctx, latest.ID); err != nil {
		return "復元に失敗しました: " + err.Error(), false
	}
	return "バックアップ " + shortID(latest.ID) + " から復元しました", true
}

func (m *Manager) awaitQuota(ctx context.Context) (string, bool) {
	if m.quota == nil {
		return "レート制限情報が取得できません", false
	}
	st := m.quota.RateLimit()
	wait := st.ResetAt.Sub(m.now()) + time.Second
	if wait <= 0 {
		return "レート制限は解除済みです", true
	}
	if wait > 30*time.Minute {
		return fmt.Sprintf("リセットまで %s あります。時間をおいて再実行してください", wait.Round(time.Minute)), false
	}
	if err := m.sleep(ctx, wait); err != nil {
		return "待機が中断されました", false
	}
	return fmt.Sprintf("レート制限のリセットまで %s 待機しました", wait.Round(time.Second)), true
}

func (m *Manager) shortWait(ctx context.Context) (string, bool) {
	if err := m.sleep(ctx, 2*time.Second); err != nil {
		return "待機が中断されました", false
	}
	return "ファイル解放を2秒待機しました", true
}

func (m *Manager) repairConfig() (string, bool) {
	result, err := config.Repair(m.cfg.WorkDir)
	if err != nil {
		return "既定設定の生成に失敗しました: " + err.Error(), false
	}
	if len(result.Created) == 0 {
		return "生成すべき設定ファイルはありませんでした", false
	}
	return "既定設定を生成しました: " + result.Created[0], true
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
