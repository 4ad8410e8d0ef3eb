// Slack bot client for incident alerts.
//
// Environment:
//   - SLACK_BOT_TOKEN: bot token (xoxb-...)
//   - SLACK_CHANNEL_ID: channel ID (C...)

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cyberwatch-india/backend/internal/config"
	"github.com/cyberwatch-india/backend/internal/model"
)

type SlackClient struct {
	botToken    string
	channelID   string
	apiURL      string
	frontendURL string
	minSeverity string
	httpClient  *http.Client
}

type SlackMessage struct {
	Channel     string            `json:"channel"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

type SlackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	TitleLink string       `json:"title_link,omitempty"`
	Text      string       `json:"text"`
	Footer    string       `json:"footer,omitempty"`
	Ts        int64        `json:"ts,omitempty"`
	Fields    []SlackField `json:"fields,omitempty"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
}

func NewSlackClient(cfg config.SlackConfig) *SlackClient {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://slack.com/api"
	}
	minSeverity := cfg.MinSeverity
	if !model.IsValidSeverity(minSeverity) {
		minSeverity = model.SeverityHigh
	}
	return &SlackClient{
		botToken:    cfg.BotToken,
		channelID:   cfg.ChannelID,
		apiURL:      apiURL,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		minSeverity: minSeverity,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *SlackClient) IsConfigured() bool {
	return c.botToken != "" && c.channelID != ""
}

// SendIncident posts a new incident at or above the configured severity.
// Incidents below the threshold are skipped without error.
func (c *SlackClient) SendIncident(ctx context.Context, inc model.Incident) error {
	if !c.IsConfigured() {
		return nil
	}
	if model.SeverityRank(inc.Severity) < model.SeverityRank(c.minSeverity) {
		return nil
	}

	_, err := c.send(ctx, c.incidentMessage(inc))
	return err
}

func (c *SlackClient) incidentMessage(inc model.Incident) SlackMessage {
	att := SlackAttachment{
		Color:  severityColor(inc.Severity),
		Title:  fmt.Sprintf("[%s] %s", inc.Severity, inc.Title),
		Text:   truncateRunes(inc.Description, 500),
		Footer: "CyberWatch India",
		Ts:     inc.PublishedDate.Unix(),
		Fields: []SlackField{
			{Title: "Source", Value: inc.Source, Short: true},
			{Title: "Category", Value: inc.Category, Short: true},
			{Title: "Location", Value: inc.Location, Short: true},
		},
	}
	if inc.URL != nil && *inc.URL != "" {
		att.TitleLink = *inc.URL
	}
	if c.frontendURL != "" {
		att.Fields = append(att.Fields, SlackField{
			Title: "Dashboard",
			Value: fmt.Sprintf("<%s/incidents/%s|Open incident>", c.frontendURL, inc.ID),
		})
	}
	return SlackMessage{
		Channel:     c.channelID,
		Text:        fmt.Sprintf("New %s incident from %s", strings.ToLower(inc.Severity), inc.Source),
		Attachments: []SlackAttachment{att},
	}
}

func (c *SlackClient) send(ctx context.Context, msg SlackMessage) (*SlackResponse, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/chat.postMessage", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var slackResp SlackResponse
	if err := json.Unmarshal(body, &slackResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !slackResp.OK {
		return nil, fmt.Errorf("slack API error: %s", slackResp.Error)
	}
	return &slackResp, nil
}

func severityColor(severity string) string {
	switch severity {
	case model.SeverityCritical:
		return "#dc3545"
	case model.SeverityHigh:
		return "#fd7e14"
	case model.SeverityMedium:
		return "#ffc107"
	default:
		return "#6c757d"
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
