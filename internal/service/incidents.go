package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cyberwatch-india/backend/internal/db"
	"github.com/cyberwatch-india/backend/internal/metrics"
	"github.com/cyberwatch-india/backend/internal/model"
	"github.com/google/uuid"
)

const defaultSearchLimit = 20

// keywords auto-tagged when a collector sends no tags
var incidentKeywords = []string{
	"ransomware", "malware", "phishing", "ddos", "breach",
	"hack", "cyber attack", "vulnerability", "trojan",
}

// IncidentRepo - incident store used by the service
type IncidentRepo interface {
	InsertIncident(ctx context.Context, inc model.Incident) (string, bool, error)
	FindIncidents(ctx context.Context, filter model.IncidentFilter) ([]model.Incident, error)
	SearchIncidents(ctx context.Context, term string, limit int) ([]model.Incident, error)
	GetIncident(ctx context.Context, id string) (*model.Incident, error)
	SetIncidentVerified(ctx context.Context, id string, verified bool) (*model.Incident, error)
	GetIncidentStats(ctx context.Context, now time.Time) (*model.IncidentStats, error)
}

// Notifier is told about every newly stored incident.
type Notifier interface {
	NotifyIncident(inc model.Incident)
}

type IncidentService struct {
	repo     IncidentRepo
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewIncidentService(repo IncidentRepo, notifier Notifier, m *metrics.Metrics) *IncidentService {
	return &IncidentService{
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
	}
}

// CreateIncident stores a collector-submitted incident. A record with the
// same content hash is left untouched and reported as created=false.
func (s *IncidentService) CreateIncident(ctx context.Context, req model.CreateIncidentRequest) (string, bool, error) {
	inc, err := s.buildIncident(req)
	if err != nil {
		return "", false, err
	}

	id, created, err := s.repo.InsertIncident(ctx, inc)
	if err != nil {
		s.metrics.IncidentIngested("error")
		return "", false, err
	}
	if !created {
		s.metrics.IncidentIngested("duplicate")
		log.Printf("[Incidents] Duplicate incident ignored (hash=%s)", inc.Hash)
		return "", false, nil
	}
	s.metrics.IncidentIngested("created")

	if s.notifier != nil {
		inc.ID = id
		go s.notifier.NotifyIncident(inc)
	}
	return id, true, nil
}

func (s *IncidentService) buildIncident(req model.CreateIncidentRequest) (model.Incident, error) {
	title := sanitizeInput(req.Title)
	description := sanitizeInput(req.Description)
	url := strings.TrimSpace(req.URL)

	if title == "" {
		return model.Incident{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !model.IsValidSource(req.Source) {
		return model.Incident{}, fmt.Errorf("%w: unknown source %q", ErrInvalidInput, req.Source)
	}
	if !model.IsValidCategory(req.Category) {
		return model.Incident{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, req.Category)
	}

	severity := strings.TrimSpace(req.Severity)
	if severity == "" {
		severity = model.SeverityUnknown
	}
	if !model.IsValidSeverity(severity) {
		return model.Incident{}, fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, severity)
	}

	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = model.DefaultLocation
	}

	now := s.now()
	published := now
	if req.PublishedDate != nil && !req.PublishedDate.IsZero() {
		published = *req.PublishedDate
	}

	hash := strings.TrimSpace(req.Hash)
	if hash == "" {
		hash = ContentHash(title, req.Source, url)
	}

	tags := req.Tags
	if len(tags) == 0 {
		tags = extractKeywords(title + " " + description)
	}

	inc := model.Incident{
		ID:            uuid.NewString(),
		Title:         title,
		Description:   description,
		PublishedDate: published,
		Source:        req.Source,
		Category:      req.Category,
		Severity:      severity,
		Location:      location,
		Hash:          hash,
		Tags:          tags,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if url != "" {
		inc.URL = &url
	}
	return inc, nil
}

func (s *IncidentService) ListIncidents(ctx context.Context, filter model.IncidentFilter) ([]model.Incident, error) {
	return s.repo.FindIncidents(ctx, filter)
}

func (s *IncidentService) SearchIncidents(ctx context.Context, term string, limit int) ([]model.Incident, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: search term is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return s.repo.SearchIncidents(ctx, term, limit)
}

func (s *IncidentService) GetIncident(ctx context.Context, id string) (*model.Incident, error) {
	inc, err := s.repo.GetIncident(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: no incident found with ID: %s", ErrNotFound, id)
	}
	return inc, err
}

func (s *IncidentService) SetVerified(ctx context.Context, id string, verified bool) (*model.Incident, error) {
	inc, err := s.repo.SetIncidentVerified(ctx, id, verified)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: no incident found with ID: %s", ErrNotFound, id)
	}
	return inc, err
}

func (s *IncidentService) Stats(ctx context.Context) (*model.IncidentStats, error) {
	return s.repo.GetIncidentStats(ctx, s.now())
}

// ContentHash is the dedupe fingerprint shared with the scraper: hex MD5 of
// title, source and url concatenated.
func ContentHash(title, source, url string) string {
	sum := md5.Sum([]byte(title + source + url))
	return hex.EncodeToString(sum[:])
}

func sanitizeInput(s string) string {
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	return strings.TrimSpace(s)
}

func extractKeywords(text string) []string {
	lower := strings.ToLower(text)
	found := []string{}
	for _, kw := range incidentKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}
