// HTTP client for the scraper microservice
//
// Environment:
//   - SCRAPER_URL: scraper base URL (e.g. http://localhost:5000)
//
// Endpoints proxied:
//   - POST /scrape         trigger collection
//   - GET  /scrape/status  collection status
//   - GET  /scrape/sources available sources

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

const defaultScraperURL = "http://localhost:5000"

// ScraperClient forwards collection requests; it performs no scraping itself.
type ScraperClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewScraperClient(cfg config.ScraperConfig) *ScraperClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultScraperURL
	}

	return &ScraperClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // scraping runs synchronously on the other side
		},
	}
}

func (c *ScraperClient) BaseURL() string {
	return c.baseURL
}

// POST /scrape
func (c *ScraperClient) Trigger(ctx context.Context, req model.ScrapeRequest) (json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scrape request: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/scrape", payload)
}

// GET /scrape/status
func (c *ScraperClient) Status(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/scrape/status", nil)
}

// GET /scrape/sources - returns the "sources" field of the response
func (c *ScraperClient) Sources(ctx context.Context) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, "/scrape/sources", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Sources json.RawMessage `json:"sources"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Sources) == 0 {
		return json.RawMessage("null"), nil
	}
	return resp.Sources, nil
}

func (c *ScraperClient) do(ctx context.Context, method, path string, payload []byte) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to scraper: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("scraper returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("scraper returned invalid json")
	}

	return json.RawMessage(respBody), nil
}
