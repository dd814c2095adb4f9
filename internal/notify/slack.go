package notify

import (
	"context"

	"github.com/slack-go/slack"
)

// levelColors follow Slack's attachment color conventions.
var levelColors = map[Level]string{
	Info:    "#439FE0",
	Success: "good",
	Warning: "warning",
	Failure: "danger",
}

// Slack posts messages to one channel via the Web API.
type Slack struct {
	client  *slack.Client
	channel string
}

// NewSlack builds a Slack notifier for the given bot token and channel.
func NewSlack(token, channel string) *Slack {
	return &Slack{client: slack.New(token), channel: channel}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, msg Message) error {
	attachment := slack.Attachment{
		Title: msg.Title,
		Text:  msg.Body,
		Color: levelColors[msg.Level],
	}
	for _, f := range msg.Fields {
		attachment.Fields = append(attachment.Fields, slack.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: true,
		})
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionAttachments(attachment),
		slack.MsgOptionAsUser(true),
	)
	return err
}
