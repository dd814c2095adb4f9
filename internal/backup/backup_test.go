package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamflowhq/teamflow/internal/config"
	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
	"github.com/teamflowhq/teamflow/internal/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.WorkDir = dir

	s := NewStore(cfg, nil, logging.Discard())
	seq := 0
	s.newID = func() string {
		seq++
		return fmt.Sprintf("snap-%04d", seq)
	}
	s.now = func() time.Time {
		return time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Minute)
	}
	return s
}

func writeWorkFile(t *testing.T, s *Store, rel, content string) {
	t.Helper()
	path := filepath.Join(s.workDir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCreate_FullSnapshot(t *testing.T) {
	s := newTestStore(t)
	writeWorkFile(t, s, "a.txt", "alpha")
	writeWorkFile(t, s, "sub/b.txt", "beta")

	snap, err := s.Create(context.Background(), Full, "before merge")
	require.NoError(t, err)
	assert.Equal(t, Full, snap.Type)
	assert.Len(t, snap.Files, 2)
	assert.NotEmpty(t, snap.Checksum)
	assert.Empty(t, snap.BasedOnID)
	assert.Equal(t, int64(len("alpha")+len("beta")), snap.TotalSize)

	for _, fe := range snap.Files {
		assert.FileExists(t, s.blobPath(snap.ID, fe.Path))
	}

	report, err := s.Verify(snap.ID)
	require.NoError(t, err)
	assert.True(t, report.OK())
}

func TestCreate_IncrementalRecordsOnlyChangedFiles(t *testing.T) {
	s := newTestStore(t)
	writeWorkFile(t, s, "a.txt", "alpha")
	writeWorkFile(t, s, "b.txt", "beta")

	first, err := s.Create(context.Background(), Full, "baseline")
	require.NoError(t, err)

	writeWorkFile(t, s, "b.txt", "beta v2")
	second, err := s.Create(context.Background(), Incremental, "after edit")
	require.NoError(t, err)
	assert.Equal(t, Incremental, second.Type)
	assert.Equal(t, first.ID, second.BasedOnID)

	require.Len(t, second.Files, 1, "unchanged files stay out of the record")
	assert.Equal(t, "b.txt", second.Files[0].Path)
	assert.Equal(t, int64(len("beta v2")), second.TotalSize)
	assert.FileExists(t, s.blobPath(second.ID, "b.txt"))
	assert.NoFileExists(t, s.blobPath(second.ID, "a.txt"))

	report, err := s.Verify(second.ID)
	require.NoError(t, err)
	assert.True(t, report.OK(), "digest covers unchanged files through the chain")
}

func TestCreate_NoChangeIncrementalHasEmptyFileList(t *testing.T) {
	s := newTestStore(t)
	writeWorkFile(t, s, "a.txt", "alpha")
	writeWorkFile(t, s, "b.txt", "beta")

	first, err := s.Create(context.Background(), Full, "baseline")
	require.NoError(t, err)

	snap, err := s.Create(context.Background(), Incremental, "no changes")
	require.NoError(t, err)
	assert.Equal(t, Incremental, snap.Type)
	assert.Equal(t, first.ID, snap.BasedOnID)
	assert.Empty(t, snap.Files)
	assert.Zero(t, snap.TotalSize)

	writeWorkFile(t, s, "a.txt", "clobbered")
	writeWorkFile(t, s, "b.txt", "clobbered")
	_, err = s.Restore(context.Background(), snap.ID)
	require.NoError(t, err)

	a, err := os.ReadFile(filepath.Join(s.workDir, "a.txt"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(s.workDir, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(a))
	assert.Equal(t, "beta", string(b))
}

func TestCreate_IncrementalOnEmptyStoreFallsBackToFull(t *testing.T) {
	s := newTestStore(t)
	writeWorkFile(t, s, "a.txt", "alpha")

	snap, err := s.Create(context.Background(), Incremental, "first")
	require.NoError(t, err)
	assert.Equal(t, Full, snap.Type)
}

func TestVerify_DetectsTampering(t *testing.T) {
	s := newTestStore(t)
	writeWorkFile(t, s, "a.txt", "alpha")

	snap, err := s.Create(context.Background(), Full, "baseline")
	require.NoError(t, err)

	blob := s.blobPath(snap.ID, snap.Files[0].Path)
	require.NoError(t, os.WriteFile(blob, []byte("tampered"), 0o644))

	report, err := s.Verify(snap.ID)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, []string{"a.txt"}, report.Corrupted)
}

func TestRestore_RefusesCorruptedSnapshot(t *testing.T) {
	s := newTestStore(t)
	writeWorkFile(t, s, "a.txt", "alpha")

	snap, err := s.Create(context.Background(), Full, "baseline")
	require.NoError(t, err)
	require.NoError(t, os.Remove(s.blobPath(snap.ID, snap.Files[0].Path)))

	_, err = s.Restore(context.Background(), snap.ID)
	require.Error(t, err)
	assert.Equal(t, flowerrors.TagRepoCorruption, flowerrors.TagOf(err))

	data, readErr := os.ReadFile(filepath.Join(s.workDir, "a.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "alpha", string(data), "refused restore leaves the tree untouched")
}

func TestRestore_WritesFilesBackAndKeepsSafetySnapshot(t *testing.T) {
	s := newTestStore(t)
	writeWorkFile(t, s, "a.txt", "alpha")

	snap, err := s.Create(context.Background(), Full, "baseline")
	require.NoError(t, err)

	writeWorkFile(t, s, "a.txt", "broken by merge")
	restored, err := s.Restore(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, restored.ID)

	data, err := os.ReadFile(filepath.Join(s.workDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	snaps, err := s.List()
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "pre-restore safety snapshot", snaps[0].Reason)
}

func TestPrune_KeepsRetentionCount(t *testing.T) {
	s := newTestStore(t)
	writeWorkFile(t, s, "a.txt", "alpha")

	for i := 0; i < Retention+3; i++ {
		writeWorkFile(t, s, "a.txt", fmt.Sprintf("rev %d", i))
		_, err := s.Create(context.Background(), Full, "churn")
		require.NoError(t, err)
	}

	snaps, err := s.List()
	require.NoError(t, err)
	assert.Len(t, snaps, Retention)
}

func TestGet_PrefixMatch(t *testing.T) {
	s := newTestStore(t)
	writeWorkFile(t, s, "a.txt", "alpha")

	snap, err := s.Create(context.Background(), Full, "baseline")
	require.NoError(t, err)

	got, err := s.Get(snap.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)

	_, err = s.Get("nope-nope")
	require.Error(t, err)
	assert.Equal(t, flowerrors.TagNotFound, flowerrors.TagOf(err))
}

func TestSnapshotChecksum_StableAcrossOrder(t *testing.T) {
	s := newTestStore(t)
	writeWorkFile(t, s, "a.txt", "alpha")
	writeWorkFile(t, s, "b.txt", "beta")

	snap, err := s.Create(context.Background(), Full, "baseline")
	require.NoError(t, err)

	reversed := []resolvedEntry{
		{FileEntry: snap.Files[1], snapID: snap.ID},
		{FileEntry: snap.Files[0], snapID: snap.ID},
	}
	sum, err := snapshotChecksum(reversed, s.blobPath)
	require.NoError(t, err)
	assert.Equal(t, snap.Checksum, sum)
}

func TestVerify_DegradesOrphanedIncrementalToFull(t *testing.T) {
	s := newTestStore(t)
	writeWorkFile(t, s, "a.txt", "alpha")
	writeWorkFile(t, s, "b.txt", "beta")

	first, err := s.Create(context.Background(), Full, "baseline")
	require.NoError(t, err)

	writeWorkFile(t, s, "b.txt", "beta v2")
	second, err := s.Create(context.Background(), Incremental, "after edit")
	require.NoError(t, err)

	// Drop the predecessor from index and disk.
	snaps, err := s.loadIndex()
	require.NoError(t, err)
	require.NoError(t, s.saveIndex(snaps[:1]))
	require.NoError(t, os.RemoveAll(filepath.Join(s.root, first.ID)))

	report, err := s.Verify(second.ID)
	require.NoError(t, err)
	assert.True(t, report.Degraded)
	assert.True(t, report.OK())

	got, err := s.Get(second.ID)
	require.NoError(t, err)
	assert.Equal(t, Full, got.Type)
	assert.Empty(t, got.BasedOnID)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "b.txt", got.Files[0].Path)

	// A later verify of the rewritten record is a plain full check.
	report, err = s.Verify(second.ID)
	require.NoError(t, err)
	assert.False(t, report.Degraded)
	assert.True(t, report.OK())
}
