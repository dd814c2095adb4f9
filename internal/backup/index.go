package backup

import (
	"encoding/json"
	"os"
	"path/filepath"

	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
)

const indexFile = "index.json"

// List returns all snapshots, newest first.
func (s *Store) List() ([]Snapshot, error) {
	return s.loadIndex()
}

// Latest returns the newest snapshot, or nil when the store is empty.
func (s *Store) Latest() (*Snapshot, error) {
	snaps, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

// Get returns the snapshot with the given ID. Prefix matches are
// accepted when unambiguous.
func (s *Store) Get(id string) (*Snapshot, error) {
	snaps, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	var match *Snapshot
	for i := range snaps {
		if snaps[i].ID == id {
			return &snaps[i], nil
		}
		if len(id) >= 8 && len(snaps[i].ID) > len(id) && snaps[i].ID[:len(id)] == id {
			if match != nil {
				return nil, flowerrors.New(flowerrors.TagValidation, "バックアップIDが一意に決まりません: "+id)
			}
			match = &snaps[i]
		}
	}
	if match == nil {
		return nil, flowerrors.New(flowerrors.TagNotFound, "バックアップが見つかりません: "+id)
	}
	return match, nil
}

// loadIndex reads index.json; a missing file is an empty store.
func (s *Store) loadIndex() ([]Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.root, indexFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, flowerrors.Wrap(flowerrors.TagPermission, "バックアップ索引を読み取れません", err)
	}
	var snaps []Snapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return nil, flowerrors.Wrap(flowerrors.TagRepoCorruption, "バックアップ索引が壊れています", err).
			WithFix("索引を修復できない場合は " + filepath.Join(s.root, indexFile) + " を削除してください")
	}
	return snaps, nil
}

// prependIndex writes snap as the newest entry.
func (s *Store) prependIndex(snap *Snapshot) error {
	snaps, err := s.loadIndex()
	if err != nil {
		return err
	}
	snaps = append([]Snapshot{*snap}, snaps...)
	return s.saveIndex(snaps)
}

// updateIndex rewrites the entry with snap's ID in place.
func (s *Store) updateIndex(snap *Snapshot) error {
	snaps, err := s.loadIndex()
	if err != nil {
		return err
	}
	for i := range snaps {
		if snaps[i].ID == snap.ID {
			snaps[i] = *snap
		}
	}
	return s.saveIndex(snaps)
}

func (s *Store) saveIndex(snaps []Snapshot) error {
	data, err := json.MarshalIndent(snaps, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(s.root, indexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return flowerrors.Wrap(flowerrors.TagPermission, "バックアップ索引を書き込めません", err)
	}
	return os.Rename(tmp, filepath.Join(s.root, indexFile))
}

// prune drops snapshots beyond the retention count, blobs included. An
// incremental survivor based on a dropped record degrades to full the
// next time it is verified.
func (s *Store) prune() (int, error) {
	snaps, err := s.loadIndex()
	if err != nil {
		return 0, err
	}
	if len(snaps) <= Retention {
		return 0, nil
	}

	keep := snaps[:Retention]
	dropped := snaps[Retention:]

	if err := s.saveIndex(keep); err != nil {
		return 0, err
	}
	pruned := 0
	for _, snap := range dropped {
		if err := os.RemoveAll(filepath.Join(s.root, snap.ID)); err == nil {
			pruned++
		}
	}
	return pruned, nil
}
