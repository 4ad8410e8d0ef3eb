package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cyberwatch-india/backend/internal/config"
	"github.com/cyberwatch-india/backend/internal/model"
	"github.com/nats-io/nats.go"
)

// EventPublisher publishes newly stored incidents to NATS.
type EventPublisher struct {
	nc      *nats.Conn
	subject string
}

// IncidentEvent - payload published on the incidents subject
type IncidentEvent struct {
	Type      string         `json:"type"`
	Incident  model.Incident `json:"incident"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewEventPublisher(cfg config.EventsConfig) (*EventPublisher, error) {
	if cfg.NATSURL == "" {
		return nil, fmt.Errorf("missing NATS_URL")
	}
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("cyberwatch-backend"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	subject := cfg.Subject
	if subject == "" {
		subject = "incidents.created"
	}
	return &EventPublisher{nc: nc, subject: subject}, nil
}

func (p *EventPublisher) PublishIncident(inc model.Incident) error {
	data, err := json.Marshal(IncidentEvent{
		Type:      "incident.created",
		Incident:  inc,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal incident event: %w", err)
	}
	return p.nc.Publish(p.subject, data)
}

func (p *EventPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
	}
}
