package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cyberwatch-india/backend/internal/config"
	"github.com/cyberwatch-india/backend/internal/model"
	tmpl "github.com/cyberwatch-india/backend/internal/template"
)

// defaultWebhookBody is used when ALERT_WEBHOOK_BODY is empty.
const defaultWebhookBody = `{"text":"[{{incident.severity}}] {{incident.title}} ({{incident.source}}) {{incident.url}}"}`

// WebhookDeliveryService posts newly stored high-severity incidents to the
// configured alert webhooks.
type WebhookDeliveryService struct {
	urls        []string
	body        string
	minSeverity string
	httpClient  *http.Client
}

func NewWebhookDeliveryService(cfg config.WebhookConfig) *WebhookDeliveryService {
	body := cfg.Body
	if strings.TrimSpace(body) == "" {
		body = defaultWebhookBody
	}
	minSeverity := cfg.MinSeverity
	if !model.IsValidSeverity(minSeverity) {
		minSeverity = model.SeverityHigh
	}
	return &WebhookDeliveryService{
		urls:        cfg.URLs,
		body:        body,
		minSeverity: minSeverity,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *WebhookDeliveryService) Enabled() bool {
	return len(s.urls) > 0
}

// Deliver renders the body for inc and posts it to every URL.
// A failing URL is logged and the rest are still attempted.
func (s *WebhookDeliveryService) Deliver(ctx context.Context, inc model.Incident) {
	if !s.Enabled() {
		return
	}
	if model.SeverityRank(inc.Severity) < model.SeverityRank(s.minSeverity) {
		return
	}

	escaped := tmpl.IncidentDataFromModel(inc).JSONEscaped()
	rendered := tmpl.RenderBody(s.body, &escaped, nil)

	for _, url := range s.urls {
		if err := s.send(ctx, url, rendered); err != nil {
			log.Printf("[WebhookDelivery] Failed to deliver incident %s to %s: %v", inc.ID, url, err)
		} else {
			log.Printf("[WebhookDelivery] Delivered incident %s to %s", inc.ID, url)
		}
	}
}

func (s *WebhookDeliveryService) send(ctx context.Context, url, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
