package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// envSkeleton is written when no .env and no .env.example exist. The keys
// mirror the recognized configuration surface; secrets stay empty.
const envSkeleton = `# teamflow configuration
GITHUB_TOKEN=
# SLACK_TOKEN=
# SLACK_CHANNEL=#general
# DISCORD_WEBHOOK_URL=
# DEFAULT_BRANCH=main
# AUTO_PUSH=false
# AUTO_PR=false
`

// RepairResult describes what Repair changed.
type RepairResult struct {
	Created []string
	Skipped []string
}

// Repair performs best-effort configuration repair: creates .env from
// .env.example when one exists (skeleton otherwise), and creates the state
// directory tree. Existing files are never overwritten.
func Repair(workDir string) (*RepairResult, error) {
	res := &RepairResult{}

	envPath := filepath.Join(workDir, EnvFileName)
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		content := []byte(envSkeleton)
		examplePath := filepath.Join(workDir, ".env.example")
		if data, readErr := os.ReadFile(examplePath); readErr == nil {
			content = data
		}
		if err := os.WriteFile(envPath, content, 0o600); err != nil {
			return nil, fmt.Errorf("write %s: %w", envPath, err)
		}
		res.Created = append(res.Created, envPath)
	} else {
		res.Skipped = append(res.Skipped, envPath)
	}

	for _, dir := range []string{
		filepath.Join(workDir, AppDir),
		filepath.Join(workDir, AppDir, "backups"),
		filepath.Join(workDir, AppDir, "state"),
		filepath.Join(workDir, AppDir, "logs"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	return res, nil
}

// WriteGlobal persists cfg as the user-global config.json. Used by the
// setup wizard; only non-secret defaults and explicitly entered values are
// written, with mode 0600 because the file may hold tokens.
func WriteGlobal(cfg *Config) (string, error) {
	path, err := GlobalConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
