package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bluesky-social/chatmod/automod/platform"
	"github.com/bluesky-social/chatmod/automod/response"
	"github.com/bluesky-social/chatmod/util"
)

type SlackNotifier struct {
	SlackWebhookURL string
	Client          *http.Client
}

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		SlackWebhookURL: webhookURL,
		Client:          util.RobustHTTPClient(),
	}
}

// Notifies that a member was banned or kicked by a rule.
func (n *SlackNotifier) SendRemoval(ctx context.Context, msg *platform.Message, rule string, verbs []response.Verb) error {
	return n.sendSlackMsg(ctx, slackBody("⚠️ Chatmod Member Action ⚠️\n", msg, rule, verbs))
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	// loosely based on: https://golangcode.com/send-slack-messages-without-a-library/

	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}

func slackBody(header string, msg *platform.Message, rule string, verbs []response.Verb) string {
	out := header
	out += fmt.Sprintf("Rule `%s` in guild `%d`\n", rule, msg.GuildID)
	out += fmt.Sprintf("User `%s` (`%d`) / channel `%d` / message `%d`\n", msg.Author.Name, msg.Author.ID, msg.ChannelID, msg.ID)
	actions := make([]string, len(verbs))
	for i, v := range verbs {
		actions[i] = string(v)
	}
	out += fmt.Sprintf("Actions: `%s`\n", strings.Join(actions, ", "))
	if msg.IsEdit() {
		out += "Triggered by an edit\n"
	}
	return out
}
