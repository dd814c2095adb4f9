package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// fileChecksum returns the hex SHA-256 of a file's content.
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// snapshotChecksum derives the whole-snapshot digest: SHA-256 over the
// concatenation of "<relpath>:<content>" in path order. blob locates the
// stored content of an entry. Capture order never affects the digest.
func snapshotChecksum(files []resolvedEntry, blob func(snapID, rel string) string) (string, error) {
	sorted := make([]resolvedEntry, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := sha256.New()
	for _, fe := range sorted {
		io.WriteString(h, fe.Path)
		io.WriteString(h, ":")
		f, err := os.Open(filepath.Clean(blob(fe.snapID, fe.Path)))
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(h, f); err != nil {
			f.Close()
			return "", err
		}
		f.Close()
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
