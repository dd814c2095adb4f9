package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// levelTints are Discord embed colors (decimal RGB).
var levelTints = map[Level]int{
	Info:    0x439fe0,
	Success: 0x2eb67d,
	Warning: 0xecb22e,
	Failure: 0xe01e5a,
}

// Discord posts messages to a webhook URL.
type Discord struct {
	url    string
	client *http.Client
}

// NewDiscord builds a Discord notifier for the given webhook URL.
func NewDiscord(url string) *Discord {
	return &Discord{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *Discord) Name() string { return "discord" }

type discordEmbed struct {
	Title  string              `json:"title"`
	Desc   string              `json:"description,omitempty"`
	Color  int                 `json:"color"`
	Fields []discordEmbedField `json:"fields,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func (d *Discord) Send(ctx context.Context, msg Message) error {
	embed := discordEmbed{
		Title: msg.Title,
		Desc:  msg.Body,
		Color: levelTints[msg.Level],
	}
	for _, f := range msg.Fields {
		embed.Fields = append(embed.Fields, discordEmbedField{
			Name: f.Name, Value: f.Value, Inline: true,
		})
	}
	payload, err := json.Marshal(map[string]any{"embeds": []discordEmbed{embed}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned %d", resp.StatusCode)
	}
	return nil
}
