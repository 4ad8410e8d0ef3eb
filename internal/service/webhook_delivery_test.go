package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cyberwatch-india/backend/internal/config"
	"github.com/cyberwatch-india/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (r *webhookRecorder) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.bodies = append(r.bodies, string(b))
		r.mu.Unlock()
		w.WriteHeader(status)
	}
}

func TestWebhookDeliverRendersAndFiltersBySeverity(t *testing.T) {
	rec := &webhookRecorder{}
	ok := httptest.NewServer(rec.handler(http.StatusOK))
	defer ok.Close()
	failing := httptest.NewServer(rec.handler(http.StatusInternalServerError))
	defer failing.Close()

	svc := NewWebhookDeliveryService(config.WebhookConfig{
		URLs:        []string{failing.URL, ok.URL},
		MinSeverity: model.SeverityHigh,
	})
	require.True(t, svc.Enabled())

	inc := testIncident("w1")
	inc.Title = `Exploit for "CVE-2024-1234" published`
	svc.Deliver(context.Background(), inc)

	require.Len(t, rec.bodies, 2)
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(rec.bodies[1]), &payload))
	assert.Equal(t, `[High] Exploit for "CVE-2024-1234" published (CERT-In) `, payload["text"])

	low := testIncident("w2")
	low.Severity = model.SeverityMedium
	svc.Deliver(context.Background(), low)
	assert.Len(t, rec.bodies, 2)
}

func TestWebhookEscapesTagsAndSource(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK))
	defer srv.Close()

	svc := NewWebhookDeliveryService(config.WebhookConfig{
		URLs: []string{srv.URL},
		Body: `{"text":"{{incident.title}}","source":"{{incident.source}}","tags":"{{incident.tags}}"}`,
	})

	inc := testIncident("w3")
	inc.Tags = []string{`apt"41`, "ctrl\x01char"}
	svc.Deliver(context.Background(), inc)

	require.Len(t, rec.bodies, 1)
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(rec.bodies[0]), &payload), rec.bodies[0])
	assert.Equal(t, "apt\"41, ctrl\x01char", payload["tags"])
	assert.Equal(t, model.SourceCERTIn, payload["source"])
}

func TestWebhookDisabledWithoutURLs(t *testing.T) {
	svc := NewWebhookDeliveryService(config.WebhookConfig{MinSeverity: "bogus"})
	assert.False(t, svc.Enabled())
	assert.Equal(t, model.SeverityHigh, svc.minSeverity)
	svc.Deliver(context.Background(), testIncident("w1"))
}

type fakePublisher struct {
	published []model.Incident
	err       error
}

func (p *fakePublisher) PublishIncident(inc model.Incident) error {
	p.published = append(p.published, inc)
	return p.err
}

type fakeChat struct {
	sent []model.Incident
}

func (c *fakeChat) SendIncident(_ context.Context, inc model.Incident) error {
	c.sent = append(c.sent, inc)
	return errors.New("slack API error: not_in_channel")
}

func TestIncidentNotifierFansOut(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec.handler(http.StatusNoContent))
	defer srv.Close()

	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	chat := &fakeChat{}
	n := NewIncidentNotifier(NewWebhookDeliveryService(config.WebhookConfig{URLs: []string{srv.URL}}), chat, pub)

	n.NotifyIncident(testIncident("n1"))

	require.Len(t, pub.published, 1)
	assert.Equal(t, "n1", pub.published[0].ID)
	assert.Len(t, chat.sent, 1)
	assert.Len(t, rec.bodies, 1)

	NewIncidentNotifier(nil, nil, nil).NotifyIncident(testIncident("n2"))
}
