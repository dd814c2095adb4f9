// Package notify delivers best-effort workflow notifications to Slack
// and Discord. Delivery failures are logged and never fail a workflow.
package notify

import (
	"context"

	"github.com/teamflowhq/teamflow/internal/config"
	"github.com/teamflowhq/teamflow/internal/logging"
)

// Level colors the notification in channels that support it.
type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Warning Level = "warning"
	Failure Level = "failure"
)

// Field is one structured key/value shown alongside the body.
type Field struct {
	Name  string
	Value string
}

// Message is a channel-independent notification.
type Message struct {
	Title  string
	Body   string
	Level  Level
	Fields []Field
}

// Notifier delivers a message to one channel.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Broadcast fans a message out to every configured channel.
type Broadcast struct {
	targets []Notifier
	log     *logging.Logger
}

// FromConfig builds a Broadcast with whichever channels cfg enables. An
// empty configuration yields a Broadcast that silently drops messages.
func FromConfig(cfg *config.Config, log *logging.Logger) *Broadcast {
	if log == nil {
		log = logging.Discard()
	}
	b := &Broadcast{log: log}
	if cfg.HasSlack() {
		b.targets = append(b.targets, NewSlack(cfg.SlackToken, cfg.SlackChannel))
	}
	if cfg.HasDiscord() {
		b.targets = append(b.targets, NewDiscord(cfg.DiscordWebhookURL))
	}
	return b
}

// Enabled reports whether at least one channel is configured.
func (b *Broadcast) Enabled() bool { return len(b.targets) > 0 }

// Send delivers msg to every channel. Failures are logged per channel;
// Send itself never returns an error.
func (b *Broadcast) Send(ctx context.Context, msg Message) {
	for _, n := range b.targets {
		if err := n.Send(ctx, msg); err != nil {
			b.log.Warn("notification failed", "channel", n.Name(), "error", err.Error())
			continue
		}
		b.log.Debug("notification sent", "channel", n.Name(), "title", msg.Title)
	}
}
