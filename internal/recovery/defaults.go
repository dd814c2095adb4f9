package recovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// defaultContents maps well-known filenames to the content used to
// recreate them when an operation fails on a missing file. Only files
// whose defaults are safe to regenerate are listed; anything else stays
// a manual fix.
var defaultContents = map[string]string{
	".env":       "GITHUB_TOKEN=\nDEFAULT_BRANCH=main\n",
	".gitignore": ".env\n.teamflow/\n",
	"config.json": `{
  "default_branch": "main",
  "auto_push": false,
  "auto_pr": false
}
`,
}

// recreateDefault inspects the failure text for a known filename and
// writes its default content into the working tree. Existing files are
// never overwritten.
func (m *Manager) recreateDefault(cause error) (string, bool) {
	if cause == nil {
		return "対象ファイルを特定できません", false
	}
	msg := cause.Error()
	for name, content := range defaultContents {
		if !strings.Contains(msg, name) {
			continue
		}
		path := filepath.Join(m.cfg.WorkDir, name)
		if _, err := os.Stat(path); err == nil {
			return name + " は既に存在します", false
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return name + " を生成できませんでした: " + err.Error(), false
		}
		return "既定の " + name + " を生成しました", true
	}
	return "既定内容が定義されていないファイルです", false
}

// offlineMarker is the JSON written to .teamflow/offline when the tool
// switches itself into offline mode.
type offlineMarker struct {
	Since  time.Time `json:"since"`
	Reason string    `json:"reason"`
}

func writeOfflineMarker(path string, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(offlineMarker{
		Since:  now.UTC(),
		Reason: "connection refused",
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
