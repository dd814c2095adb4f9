package git

import (
	"strconv"
	"strings"
)

// Status is a point-in-time snapshot of the working tree. It is never
// cached across operations.
type Status struct {
	CurrentBranch   string
	Detached        bool
	Ahead           int
	Behind          int
	Staged          []string
	Modified        []string
	Untracked       []string
	Conflicted      []string
	HasRemoteOrigin bool
	Tracking        string
}

// Clean reports whether the working tree has no local changes.
func (s *Status) Clean() bool {
	return len(s.Staged) == 0 && len(s.Modified) == 0 && len(s.Untracked) == 0 && len(s.Conflicted) == 0
}

// ChangeCount returns the total number of changed paths.
func (s *Status) ChangeCount() int {
	return len(s.Staged) + len(s.Modified) + len(s.Untracked) + len(s.Conflicted)
}

// ChangedFile is one entry of the changed-files enumeration.
type ChangedFile struct {
	Path string
	// Tag is the two-letter porcelain status: M, A, D, R, ?? etc.
	Tag string
}

// parseStatus parses `git status --porcelain=v1 --branch` output.
func parseStatus(out string) *Status {
	st := &Status{}
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "## ") {
			parseBranchHeader(st, strings.TrimPrefix(line, "## "))
			continue
		}
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		path := strings.TrimSpace(line[3:])
		// Renames are listed as "old -> new"; keep the new path.
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		switch {
		case isConflictCode(code):
			st.Conflicted = append(st.Conflicted, path)
		case code == "??":
			st.Untracked = append(st.Untracked, path)
		case code[0] != ' ' && code[0] != '?':
			st.Staged = append(st.Staged, path)
			if code[1] != ' ' {
				st.Modified = append(st.Modified, path)
			}
		default:
			st.Modified = append(st.Modified, path)
		}
	}
	return st
}

// parseBranchHeader parses headers like:
//
//	main...origin/main [ahead 1, behind 2]
//	feature/x
//	HEAD (no branch)
func parseBranchHeader(st *Status, header string) {
	if strings.HasPrefix(header, "HEAD (no branch)") {
		st.Detached = true
		return
	}
	if strings.HasPrefix(header, "No commits yet on ") {
		st.CurrentBranch = strings.TrimPrefix(header, "No commits yet on ")
		return
	}

	rest := header
	if idx := strings.Index(rest, " ["); idx >= 0 {
		parseAheadBehind(st, rest[idx+2:len(rest)-1])
		rest = rest[:idx]
	}
	if idx := strings.Index(rest, "..."); idx >= 0 {
		st.CurrentBranch = rest[:idx]
		st.Tracking = rest[idx+3:]
		st.HasRemoteOrigin = strings.HasPrefix(st.Tracking, "origin/")
	} else {
		st.CurrentBranch = rest
	}
}

func parseAheadBehind(st *Status, inner string) {
	for _, part := range strings.Split(inner, ", ") {
		fields := strings.Fields(part)
		if len(fields) != 2 {
			continue
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		switch fields[0] {
		case "ahead":
			st.Ahead = n
		case "behind":
			st.Behind = n
		}
	}
}

// isConflictCode reports whether a porcelain XY code marks an unmerged path.
func isConflictCode(code string) bool {
	switch code {
	case "DD", "AU", "UD", "UA", "DU", "AA", "UU":
		return true
	}
	return false
}

// parseChangedFiles parses porcelain output (without --branch) into
// ChangedFile entries.
func parseChangedFiles(out string) []ChangedFile {
	var files []ChangedFile
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 || strings.HasPrefix(line, "## ") {
			continue
		}
		code := strings.TrimSpace(line[:2])
		path := strings.TrimSpace(line[3:])
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		if code == "" {
			continue
		}
		files = append(files, ChangedFile{Path: path, Tag: code})
	}
	return files
}
