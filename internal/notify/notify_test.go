package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamflowhq/teamflow/internal/config"
	"github.com/teamflowhq/teamflow/internal/logging"
)

type fakeNotifier struct {
	name string
	sent []Message
	err  error
}

func (f *fakeNotifier) Name() string { return f.name }
func (f *fakeNotifier) Send(_ context.Context, msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestBroadcast_DeliversToAllChannels(t *testing.T) {
	a := &fakeNotifier{name: "a"}
	b := &fakeNotifier{name: "b"}
	bc := &Broadcast{targets: []Notifier{a, b}, log: logging.Discard()}

	bc.Send(context.Background(), Message{Title: "done", Level: Success})
	require.Len(t, a.sent, 1)
	require.Len(t, b.sent, 1)
}

func TestBroadcast_FailureNeverPropagates(t *testing.T) {
	broken := &fakeNotifier{name: "broken", err: errors.New("boom")}
	ok := &fakeNotifier{name: "ok"}
	bc := &Broadcast{targets: []Notifier{broken, ok}, log: logging.Discard()}

	bc.Send(context.Background(), Message{Title: "x"})
	assert.Len(t, ok.sent, 1, "later channels still receive the message")
}

func TestFromConfig_ChannelSelection(t *testing.T) {
	cfg := config.Default()
	bc := FromConfig(cfg, logging.Discard())
	assert.False(t, bc.Enabled())

	cfg.SlackToken = "xoxb-test"
	cfg.DiscordWebhookURL = "https://discord.com/api/webhooks/1/x"
	bc = FromConfig(cfg, logging.Discard())
	assert.True(t, bc.Enabled())
	assert.Len(t, bc.targets, 2)
}

func TestDiscord_PostsEmbed(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL)
	err := d.Send(context.Background(), Message{
		Title:  "作業完了",
		Body:   "PR #12 を作成しました",
		Level:  Success,
		Fields: []Field{{Name: "branch", Value: "feature/issue-12-login"}},
	})
	require.NoError(t, err)

	embeds := got["embeds"].([]any)
	require.Len(t, embeds, 1)
	embed := embeds[0].(map[string]any)
	assert.Equal(t, "作業完了", embed["title"])
	assert.Equal(t, float64(levelTints[Success]), embed["color"])
}

func TestDiscord_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscord(srv.URL).Send(context.Background(), Message{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
