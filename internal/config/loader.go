package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Keys recognized across every layer, in report order.
var Keys = []string{
	"GITHUB_TOKEN",
	"SLACK_TOKEN",
	"SLACK_CHANNEL",
	"DISCORD_WEBHOOK_URL",
	"DEFAULT_BRANCH",
	"AUTO_PUSH",
	"AUTO_PR",
	"CONFIRM_DESTRUCTIVE_ACTIONS",
	"NODE_ENV",
	"DEBUG",
	"LOG_LEVEL",
}

// Load builds the configuration for workDir.
// Layer precedence (highest first):
//  1. Process environment
//  2. User-global $HOME/.teamflow/config.json
//  3. Project-level .env
//  4. Built-in defaults
func Load(workDir string) (*Config, error) {
	cfg := Default()
	cfg.WorkDir = workDir

	// 3. Project .env (lowest non-default layer).
	envPath := filepath.Join(workDir, EnvFileName)
	if _, err := os.Stat(envPath); err == nil {
		vals, err := godotenv.Read(envPath)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", envPath, err)
		}
		for key, val := range vals {
			applyValue(cfg, key, val, SourceDotenv)
		}
	}

	// 2. User-global config.json.
	if globalPath, err := GlobalConfigPath(); err == nil {
		if _, statErr := os.Stat(globalPath); statErr == nil {
			if err := mergeGlobalFile(cfg, globalPath); err != nil {
				return nil, err
			}
		}
	}

	// 1. Process environment wins over everything.
	for _, key := range Keys {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			applyValue(cfg, key, val, SourceEnv)
		}
	}

	return cfg, nil
}

// mergeGlobalFile merges the user-global JSON file via viper, so the file
// may use either JSON key style (github_token) or env style (GITHUB_TOKEN).
func mergeGlobalFile(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read global config %s: %w", path, err)
	}
	for _, key := range Keys {
		lower := strings.ToLower(key)
		if v.IsSet(lower) {
			applyValue(cfg, key, v.GetString(lower), SourceGlobal)
		} else if v.IsSet(key) {
			applyValue(cfg, key, v.GetString(key), SourceGlobal)
		}
	}
	return nil
}

// applyValue assigns a raw string to the matching config field and records
// the source layer. Unknown keys are ignored so project .env files can hold
// unrelated variables.
func applyValue(cfg *Config, key, raw string, source Source) {
	switch key {
	case "GITHUB_TOKEN":
		cfg.GitHubToken = raw
	case "SLACK_TOKEN":
		cfg.SlackToken = raw
	case "SLACK_CHANNEL":
		cfg.SlackChannel = raw
	case "DISCORD_WEBHOOK_URL":
		cfg.DiscordWebhookURL = raw
	case "DEFAULT_BRANCH":
		cfg.DefaultBranch = raw
	case "AUTO_PUSH":
		cfg.AutoPush = parseBool(raw, cfg.AutoPush)
	case "AUTO_PR":
		cfg.AutoPR = parseBool(raw, cfg.AutoPR)
	case "CONFIRM_DESTRUCTIVE_ACTIONS":
		cfg.ConfirmDestruct = parseBool(raw, cfg.ConfirmDestruct)
	case "NODE_ENV":
		switch Environment(raw) {
		case EnvDevelopment, EnvProduction, EnvTest:
			cfg.Env = Environment(raw)
		default:
			return
		}
	case "DEBUG":
		cfg.Debug = parseBool(raw, cfg.Debug)
	case "LOG_LEVEL":
		switch LogLevel(strings.ToLower(raw)) {
		case LogError, LogWarn, LogInfo, LogDebug:
			cfg.LogLevel = LogLevel(strings.ToLower(raw))
		default:
			return
		}
	default:
		return
	}
	cfg.sources[key] = source
}

func parseBool(raw string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return fallback
	}
	return b
}
