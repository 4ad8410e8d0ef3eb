package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/cyberwatch-india/backend/internal/model"
)

var defaultCollectionSources = []string{"cert-in", "news"}

// ScraperAPI - external collection microservice
type ScraperAPI interface {
	Trigger(ctx context.Context, req model.ScrapeRequest) (json.RawMessage, error)
	Status(ctx context.Context) (json.RawMessage, error)
	Sources(ctx context.Context) (json.RawMessage, error)
}

// CollectionService proxies collection requests to the scraper service.
type CollectionService struct {
	scraper ScraperAPI
}

func NewCollectionService(scraper ScraperAPI) *CollectionService {
	return &CollectionService{scraper: scraper}
}

func (s *CollectionService) Trigger(ctx context.Context, req model.ScrapeRequest) (json.RawMessage, error) {
	sources := make([]string, 0, len(req.Sources))
	for _, src := range req.Sources {
		if src = strings.TrimSpace(src); src != "" {
			sources = append(sources, src)
		}
	}
	if len(sources) == 0 {
		sources = append(sources, defaultCollectionSources...)
	}
	req.Sources = sources

	log.Printf("[Collection] Triggering scrape (sources=%v, force_refresh=%t)", req.Sources, req.ForceRefresh)
	resp, err := s.scraper.Trigger(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCollectionFailed, err)
	}
	return resp, nil
}

func (s *CollectionService) Status(ctx context.Context) (json.RawMessage, error) {
	resp, err := s.scraper.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCollectionFailed, err)
	}
	return resp, nil
}

func (s *CollectionService) Sources(ctx context.Context) (json.RawMessage, error) {
	resp, err := s.scraper.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCollectionFailed, err)
	}
	return resp, nil
}
