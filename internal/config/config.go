// Package config provides layered configuration for teamflow.
package config

import (
	"os"
	"path/filepath"
)

const (
	// AppDir is the project-level state directory.
	AppDir = ".teamflow"
	// ConfigFileName is the user-global config file name.
	ConfigFileName = "config.json"
	// EnvFileName is the project-level dotenv file.
	EnvFileName = ".env"
)

// Environment identifies the runtime environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTest        Environment = "test"
)

// LogLevel is the configured logging verbosity.
type LogLevel string

const (
	LogError LogLevel = "error"
	LogWarn  LogLevel = "warn"
	LogInfo  LogLevel = "info"
	LogDebug LogLevel = "debug"
)

// Source identifies which layer a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceDotenv  Source = "dotenv"
	SourceGlobal  Source = "global"
	SourceEnv     Source = "env"
)

// Config is the frozen configuration tree. It is built once by Load and
// never mutated afterwards; components receive it as a read-only handle.
type Config struct {
	GitHubToken       string      `json:"github_token"`
	SlackToken        string      `json:"slack_token"`
	SlackChannel      string      `json:"slack_channel"`
	DiscordWebhookURL string      `json:"discord_webhook_url"`
	DefaultBranch     string      `json:"default_branch"`
	AutoPush          bool        `json:"auto_push"`
	AutoPR            bool        `json:"auto_pr"`
	ConfirmDestruct   bool        `json:"confirm_destructive_actions"`
	Env               Environment `json:"node_env"`
	Debug             bool        `json:"debug"`
	LogLevel          LogLevel    `json:"log_level"`

	// WorkDir is the repository root the CLI operates in.
	WorkDir string `json:"-"`

	sources map[string]Source
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		SlackChannel:    "#general",
		DefaultBranch:   "main",
		AutoPush:        false,
		AutoPR:          false,
		ConfirmDestruct: true,
		Env:             EnvDevelopment,
		LogLevel:        LogInfo,
		WorkDir:         ".",
		sources:         map[string]Source{},
	}
}

// SourceOf reports which layer supplied the named key. Keys use the
// environment-variable spelling (GITHUB_TOKEN, AUTO_PUSH, ...).
func (c *Config) SourceOf(key string) Source {
	if s, ok := c.sources[key]; ok {
		return s
	}
	return SourceDefault
}

// HasSlack reports whether the Slack transport is configured.
func (c *Config) HasSlack() bool { return c.SlackToken != "" }

// HasDiscord reports whether the Discord transport is configured.
func (c *Config) HasDiscord() bool { return c.DiscordWebhookURL != "" }

// StateDir returns the project state directory path.
func (c *Config) StateDir() string { return filepath.Join(c.WorkDir, AppDir) }

// BackupDir returns the backup directory path.
func (c *Config) BackupDir() string { return filepath.Join(c.StateDir(), "backups") }

// LogDir returns the log directory path.
func (c *Config) LogDir() string { return filepath.Join(c.StateDir(), "logs") }

// LogFile returns the append-only log file path.
func (c *Config) LogFile() string { return filepath.Join(c.LogDir(), "team-flow.log") }

// OfflineFile returns the offline-mode marker path.
func (c *Config) OfflineFile() string {
	return filepath.Join(c.StateDir(), "state", "offline-mode.json")
}

// GlobalConfigPath returns the user-global config file path.
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, AppDir, ConfigFileName), nil
}
