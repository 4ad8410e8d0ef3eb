package service

import (
	"context"
	"log"
	"time"

	"github.com/cyberwatch-india/backend/internal/model"
)

// EventPublisher - message bus sink for new incidents
type EventPublisher interface {
	PublishIncident(inc model.Incident) error
}

// ChatNotifier - chat channel alert sink (Slack)
type ChatNotifier interface {
	SendIncident(ctx context.Context, inc model.Incident) error
}

// IncidentNotifier fans a new incident out to webhooks, chat and the event
// bus. Any sink may be nil.
type IncidentNotifier struct {
	webhooks *WebhookDeliveryService
	chat     ChatNotifier
	events   EventPublisher
	timeout  time.Duration
}

func NewIncidentNotifier(webhooks *WebhookDeliveryService, chat ChatNotifier, events EventPublisher) *IncidentNotifier {
	return &IncidentNotifier{
		webhooks: webhooks,
		chat:     chat,
		events:   events,
		timeout:  30 * time.Second,
	}
}

func (n *IncidentNotifier) NotifyIncident(inc model.Incident) {
	if n.events != nil {
		if err := n.events.PublishIncident(inc); err != nil {
			log.Printf("[Notify] Failed to publish incident %s: %v", inc.ID, err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	if n.chat != nil {
		if err := n.chat.SendIncident(ctx, inc); err != nil {
			log.Printf("[Notify] Failed to send incident %s to chat: %v", inc.ID, err)
		}
	}
	if n.webhooks != nil {
		n.webhooks.Deliver(ctx, inc)
	}
}
