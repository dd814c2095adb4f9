// Package backup implements the checksummed snapshot store under
// .teamflow/backups. Snapshots capture working-tree files before
// destructive operations and can be verified and restored later.
package backup

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/teamflowhq/teamflow/internal/config"
	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
	"github.com/teamflowhq/teamflow/internal/git"
	"github.com/teamflowhq/teamflow/internal/logging"
)

// Type distinguishes full captures from delta captures.
type Type string

const (
	Full        Type = "full"
	Incremental Type = "incremental"
)

// Retention is how many snapshots the store keeps; older ones are pruned
// after each successful capture.
const Retention = 10

// defaultTargets selects which working-tree files a snapshot covers.
var defaultTargets = []string{"**/*"}

// alwaysExcluded are never captured regardless of target patterns.
var alwaysExcluded = []string{".git", config.AppDir, "node_modules", "vendor"}

// FileEntry records one captured file. The content lives in the blob
// directory of the snapshot that lists the entry.
type FileEntry struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
}

// GitState is the repository position at capture time.
type GitState struct {
	Branch     string `json:"branch"`
	Commit     string `json:"commit"`
	Dirty      int    `json:"dirty"`
	Conflicted int    `json:"conflicted"`
}

// Snapshot is one index entry. An incremental snapshot lists only the
// files that changed against its predecessor chain; BasedOnID names the
// predecessor and TotalSize sums the bytes this record stores itself.
type Snapshot struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	Reason    string      `json:"reason"`
	CreatedAt time.Time   `json:"created_at"`
	BasedOnID string      `json:"based_on_id,omitempty"`
	Checksum  string      `json:"checksum"`
	TotalSize int64       `json:"total_size"`
	Files     []FileEntry `json:"files"`
	Git       *GitState   `json:"git,omitempty"`
}

// Store manages the snapshot directory of one working tree.
type Store struct {
	workDir string
	root    string
	targets []string
	git     *git.Git
	log     *logging.Logger

	now   func() time.Time
	newID func() string
}

// NewStore builds a store rooted at cfg's backup directory. The git
// handle may be nil; snapshots then omit repository state.
func NewStore(cfg *config.Config, g *git.Git, log *logging.Logger) *Store {
	if log == nil {
		log = logging.Discard()
	}
	return &Store{
		workDir: cfg.WorkDir,
		root:    cfg.BackupDir(),
		targets: defaultTargets,
		git:     g,
		log:     log,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// SetTargets overrides the capture patterns (doublestar syntax, matched
// against slash-separated paths relative to the working tree).
func (s *Store) SetTargets(patterns []string) {
	if len(patterns) > 0 {
		s.targets = patterns
	}
}

// Create captures a snapshot. An incremental capture records only files
// whose checksum differs from the predecessor chain; with no usable
// predecessor the capture degrades to full.
func (s *Store) Create(ctx context.Context, typ Type, reason string) (*Snapshot, error) {
	snap := &Snapshot{
		ID:        s.newID(),
		Type:      typ,
		Reason:    reason,
		CreatedAt: s.now().UTC(),
	}

	baseByPath := map[string]resolvedEntry{}
	if typ == Incremental {
		latest, err := s.Latest()
		if err != nil {
			return nil, err
		}
		if latest == nil {
			// First capture is always full.
			snap.Type = Full
		} else if resolved, err := s.effectiveFiles(latest); err != nil {
			s.log.Warn("backup chain unusable, capturing full snapshot",
				"base", latest.ID, "error", err.Error())
			snap.Type = Full
		} else {
			snap.BasedOnID = latest.ID
			for _, re := range resolved {
				baseByPath[re.Path] = re
			}
		}
	}

	paths, err := s.collectTargets()
	if err != nil {
		return nil, err
	}

	blobDir := filepath.Join(s.root, snap.ID, "files")
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return nil, flowerrors.Wrap(flowerrors.TagPermission, "バックアップディレクトリを作成できません", err)
	}

	var effective []resolvedEntry
	for _, rel := range paths {
		abs := filepath.Join(s.workDir, filepath.FromSlash(rel))
		sum, err := fileChecksum(abs)
		if err != nil {
			return nil, flowerrors.Wrap(flowerrors.TagFileNotFound, "ファイルを読み取れません: "+rel, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}

		if base, ok := baseByPath[rel]; ok && base.Checksum == sum && snap.Type == Incremental {
			// Unchanged against the chain; the predecessor's blob stands.
			effective = append(effective, base)
			continue
		}
		if err := copyFile(abs, filepath.Join(blobDir, filepath.FromSlash(rel))); err != nil {
			return nil, flowerrors.Wrap(flowerrors.TagPermission, "ファイルを保存できません: "+rel, err)
		}
		entry := FileEntry{Path: rel, Checksum: sum, Size: info.Size()}
		snap.Files = append(snap.Files, entry)
		snap.TotalSize += entry.Size
		effective = append(effective, resolvedEntry{FileEntry: entry, snapID: snap.ID})
	}

	sum, err := snapshotChecksum(effective, s.blobPath)
	if err != nil {
		return nil, err
	}
	snap.Checksum = sum
	snap.Git = s.captureGitState(ctx)

	if err := s.prependIndex(snap); err != nil {
		return nil, err
	}
	if pruned, err := s.prune(); err != nil {
		s.log.Warn("backup prune failed", "error", err.Error())
	} else if pruned > 0 {
		s.log.Info("pruned old backups", "count", pruned)
	}

	s.log.Info("backup created", "id", snap.ID, "type", string(snap.Type),
		"files", len(snap.Files), "reason", reason)
	return snap, nil
}

// collectTargets walks the working tree and returns slash-relative paths
// matching the target patterns.
func (s *Store) collectTargets() ([]string, error) {
	var out []string
	err := filepath.WalkDir(s.workDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(s.workDir, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if excluded(rel) || !d.Type().IsRegular() {
			return nil
		}
		for _, pattern := range s.targets {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				out = append(out, rel)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func excluded(rel string) bool {
	top := rel
	if idx := strings.Index(rel, "/"); idx >= 0 {
		top = rel[:idx]
	}
	for _, e := range alwaysExcluded {
		if top == e {
			return true
		}
	}
	return false
}

// resolvedEntry pairs a file entry with the snapshot whose blob
// directory holds its content.
type resolvedEntry struct {
	FileEntry
	snapID string
}

// blobPath locates the blob a snapshot stored for a relative path.
func (s *Store) blobPath(snapID, rel string) string {
	return filepath.Join(s.root, snapID, "files", filepath.FromSlash(rel))
}

// chain returns snap followed by its predecessors down to the full
// record it is based on. A predecessor missing from the index is an
// error; callers degrade to full in that case.
func (s *Store) chain(snap *Snapshot) ([]Snapshot, error) {
	out := []Snapshot{*snap}
	seen := map[string]bool{snap.ID: true}
	cur := snap
	for cur.BasedOnID != "" {
		if seen[cur.BasedOnID] {
			return nil, flowerrors.New(flowerrors.TagRepoCorruption,
				"バックアップの参照が循環しています: "+cur.BasedOnID)
		}
		prev, err := s.Get(cur.BasedOnID)
		if err != nil {
			return nil, flowerrors.Wrap(flowerrors.TagNotFound,
				"ベースとなるバックアップが見つかりません: "+cur.BasedOnID, err)
		}
		seen[prev.ID] = true
		out = append(out, *prev)
		cur = prev
	}
	return out, nil
}

// effectiveFiles overlays the snapshot's chain, newest record winning,
// so every path resolves to the blob that actually holds its content.
func (s *Store) effectiveFiles(snap *Snapshot) ([]resolvedEntry, error) {
	records, err := s.chain(snap)
	if err != nil {
		return nil, err
	}
	byPath := map[string]resolvedEntry{}
	for _, rec := range records {
		for _, fe := range rec.Files {
			if _, ok := byPath[fe.Path]; !ok {
				byPath[fe.Path] = resolvedEntry{FileEntry: fe, snapID: rec.ID}
			}
		}
	}
	out := make([]resolvedEntry, 0, len(byPath))
	for _, re := range byPath {
		out = append(out, re)
	}
	return out, nil
}

func (s *Store) captureGitState(ctx context.Context) *GitState {
	if s.git == nil {
		return nil
	}
	st, err := s.git.Status(ctx)
	if err != nil {
		return nil
	}
	gs := &GitState{
		Branch:     st.CurrentBranch,
		Dirty:      st.ChangeCount(),
		Conflicted: len(st.Conflicted),
	}
	if c, err := s.git.LastCommit(ctx, "HEAD"); err == nil && c != nil {
		gs.Commit = c.Hash
	}
	return gs
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
