package backup

import (
	"context"
	"os"
	"path/filepath"

	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
)

// VerifyReport lists integrity problems of one snapshot. An empty report
// means the snapshot is intact. Degraded is set when an incremental
// record lost its predecessor and was rewritten as full.
type VerifyReport struct {
	SnapshotID string
	Missing    []string
	Corrupted  []string
	Degraded   bool
}

// OK reports whether the snapshot passed verification.
func (r *VerifyReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Corrupted) == 0
}

// Verify resolves the snapshot through its predecessor chain, recomputes
// every file checksum and the whole-snapshot digest. An incremental
// record whose predecessor chain is broken degrades to full: it keeps
// only its own files and the index entry is rewritten.
func (s *Store) Verify(id string) (*VerifyReport, error) {
	snap, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	report := &VerifyReport{SnapshotID: snap.ID}

	resolved, err := s.effectiveFiles(snap)
	if err != nil {
		degraded, degErr := s.degradeToFull(snap)
		if degErr != nil {
			return nil, degErr
		}
		snap = degraded
		report.Degraded = true
		if resolved, err = s.effectiveFiles(snap); err != nil {
			return nil, err
		}
	}

	for _, fe := range resolved {
		sum, err := fileChecksum(s.blobPath(fe.snapID, fe.Path))
		if os.IsNotExist(err) {
			report.Missing = append(report.Missing, fe.Path)
			continue
		}
		if err != nil {
			return nil, err
		}
		if sum != fe.Checksum {
			report.Corrupted = append(report.Corrupted, fe.Path)
		}
	}

	if report.OK() {
		sum, err := snapshotChecksum(resolved, s.blobPath)
		if err != nil {
			return nil, err
		}
		if sum != snap.Checksum {
			report.Corrupted = append(report.Corrupted, "<snapshot digest>")
		}
	}
	return report, nil
}

// degradeToFull rewrites an incremental record whose predecessor is gone
// as a full record covering only the files it stored itself.
func (s *Store) degradeToFull(snap *Snapshot) (*Snapshot, error) {
	out := *snap
	out.Type = Full
	out.BasedOnID = ""

	own := make([]resolvedEntry, 0, len(out.Files))
	for _, fe := range out.Files {
		own = append(own, resolvedEntry{FileEntry: fe, snapID: out.ID})
	}
	sum, err := snapshotChecksum(own, s.blobPath)
	if err != nil {
		return nil, err
	}
	out.Checksum = sum

	if err := s.updateIndex(&out); err != nil {
		return nil, err
	}
	s.log.Warn("backup degraded to full, predecessor missing",
		"id", out.ID, "was_based_on", snap.BasedOnID)
	return &out, nil
}

// Restore writes a snapshot's files back into the working tree. The
// snapshot is verified first; a failed verification refuses the restore
// so a corrupted backup never clobbers the tree. The current tree is
// captured as a safety snapshot before any file is overwritten.
func (s *Store) Restore(ctx context.Context, id string) (*Snapshot, error) {
	report, err := s.Verify(id)
	if err != nil {
		return nil, err
	}
	if !report.OK() {
		return nil, flowerrors.New(flowerrors.TagRepoCorruption,
			"バックアップの検証に失敗したため復元を中止しました").
			WithWhy(verifySummary(report)).
			WithFix("他のバックアップを指定するか、手動で復旧してください")
	}
	snap, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	resolved, err := s.effectiveFiles(snap)
	if err != nil {
		return nil, err
	}

	safety, err := s.Create(ctx, Full, "pre-restore safety snapshot")
	if err != nil {
		return nil, flowerrors.Wrap(flowerrors.TagPermission, "復元前の退避バックアップに失敗しました", err)
	}

	for _, fe := range resolved {
		dst := filepath.Join(s.workDir, filepath.FromSlash(fe.Path))
		if err := copyFile(s.blobPath(fe.snapID, fe.Path), dst); err != nil {
			return nil, flowerrors.Wrap(flowerrors.TagPermission, "復元に失敗しました: "+fe.Path, err).
				WithFix("退避バックアップ " + safety.ID + " から元の状態に戻せます")
		}
	}
	s.log.Info("backup restored", "id", snap.ID, "files", len(resolved), "safety", safety.ID)
	return snap, nil
}

func verifySummary(r *VerifyReport) string {
	switch {
	case len(r.Missing) > 0 && len(r.Corrupted) > 0:
		return "欠損および破損したファイルがあります"
	case len(r.Missing) > 0:
		return "バックアップ内のファイルが欠損しています: " + r.Missing[0]
	default:
		return "チェックサムが一致しません: " + r.Corrupted[0]
	}
}
