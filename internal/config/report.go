package config

import (
	"fmt"
	"strings"
)

// CheckItem is one row of the configuration report.
type CheckItem struct {
	Key    string
	Value  string // masked for secret-bearing keys
	Source Source
	OK     bool
	Detail string
}

// secretKeys are reported masked.
var secretKeys = map[string]bool{
	"GITHUB_TOKEN": true,
	"SLACK_TOKEN":  true,
}

// Check validates the loaded configuration and returns the report rows.
// The only hard requirement is GITHUB_TOKEN; everything else degrades to a
// warning detail.
func Check(cfg *Config) []CheckItem {
	items := make([]CheckItem, 0, len(Keys))
	for _, key := range Keys {
		item := CheckItem{Key: key, Source: cfg.SourceOf(key), OK: true}
		switch key {
		case "GITHUB_TOKEN":
			item.Value = maskValue(cfg.GitHubToken)
			if cfg.GitHubToken == "" {
				item.OK = false
				item.Detail = "required: set GITHUB_TOKEN in .env or the environment"
			}
		case "SLACK_TOKEN":
			item.Value = maskValue(cfg.SlackToken)
			if cfg.SlackToken == "" {
				item.Detail = "Slack notifications disabled"
			}
		case "SLACK_CHANNEL":
			item.Value = cfg.SlackChannel
		case "DISCORD_WEBHOOK_URL":
			item.Value = cfg.DiscordWebhookURL
			if cfg.DiscordWebhookURL == "" {
				item.Detail = "Discord notifications disabled"
			}
		case "DEFAULT_BRANCH":
			item.Value = cfg.DefaultBranch
		case "AUTO_PUSH":
			item.Value = fmt.Sprintf("%t", cfg.AutoPush)
		case "AUTO_PR":
			item.Value = fmt.Sprintf("%t", cfg.AutoPR)
		case "CONFIRM_DESTRUCTIVE_ACTIONS":
			item.Value = fmt.Sprintf("%t", cfg.ConfirmDestruct)
		case "NODE_ENV":
			item.Value = string(cfg.Env)
		case "DEBUG":
			item.Value = fmt.Sprintf("%t", cfg.Debug)
		case "LOG_LEVEL":
			item.Value = string(cfg.LogLevel)
		}
		items = append(items, item)
	}
	return items
}

// Valid reports whether the report contains no failing rows.
func Valid(items []CheckItem) bool {
	for _, item := range items {
		if !item.OK {
			return false
		}
	}
	return true
}

func maskValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "***masked***"
	}
	return v[:4] + "***masked***"
}

// FormatReport renders the report as an aligned text table.
func FormatReport(items []CheckItem) string {
	var b strings.Builder
	for _, item := range items {
		status := "ok"
		if !item.OK {
			status = "NG"
		}
		fmt.Fprintf(&b, "%-2s %-28s %-22s (%s)", status, item.Key, item.Value, item.Source)
		if item.Detail != "" {
			fmt.Fprintf(&b, "  %s", item.Detail)
		}
		b.WriteString("\n")
	}
	return b.String()
}
