package model

import (
	"encoding/json"
	"time"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Success   bool      `json:"success"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type IncidentListResponse struct {
	Success bool       `json:"success"`
	Data    []Incident `json:"data"`
	Count   int        `json:"count"`
}

type IncidentEnvelope struct {
	Success bool      `json:"success"`
	Data    *Incident `json:"data"`
}

type IncidentCreatedData struct {
	ID string `json:"id"`
}

type IncidentCreateResponse struct {
	Success   bool                 `json:"success"`
	Duplicate bool                 `json:"duplicate"`
	Message   string               `json:"message,omitempty"`
	Data      *IncidentCreatedData `json:"data,omitempty"`
}

type CollectRedirectResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Redirect string `json:"redirect"`
}

type StatsResponse struct {
	Success bool           `json:"success"`
	Data    *IncidentStats `json:"data"`
}

type AnalyzedIncident struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Source        string    `json:"source"`
	Category      string    `json:"category"`
	Severity      string    `json:"severity"`
	PublishedDate time.Time `json:"published_date"`
}

type IncidentAnalysisResponse struct {
	Success   bool              `json:"success"`
	Incident  AnalyzedIncident  `json:"incident"`
	Analysis  *IncidentAnalysis `json:"analysis"`
	Timestamp time.Time         `json:"timestamp"`
}

type ThreatSummaryResponse struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message,omitempty"`
	IncidentCount int            `json:"incidentCount"`
	TimeRange     string         `json:"timeRange,omitempty"`
	Summary       *ThreatSummary `json:"summary"`
	Timestamp     time.Time      `json:"timestamp"`
}

type InsightsResponse struct {
	Success   bool              `json:"success"`
	Insights  *IncidentInsights `json:"insights"`
	Stats     *IncidentStats    `json:"stats"`
	Timestamp time.Time         `json:"timestamp"`
}

type AnalysisCacheStatus struct {
	Size    int   `json:"size"`
	Timeout int64 `json:"timeout"`
}

type AnalysisStatusConfiguration struct {
	MaxRetries     int   `json:"maxRetries"`
	Timeout        int64 `json:"timeout"`
	RateLimitDelay int64 `json:"rateLimitDelay"`
}

type AnalysisStatusResponse struct {
	Success         bool                        `json:"success"`
	Available       bool                        `json:"available"`
	Service         string                      `json:"service"`
	Model           string                      `json:"model"`
	Cache           AnalysisCacheStatus         `json:"cache"`
	Configuration   AnalysisStatusConfiguration `json:"configuration"`
	LastRequestTime *time.Time                  `json:"lastRequestTime"`
	Timestamp       time.Time                   `json:"timestamp"`
}

// Collection proxy responses carry the scraper payload untouched.
type CollectionTriggerResponse struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	PythonResponse json.RawMessage `json:"python_response" swaggertype:"object"`
	Timestamp      time.Time       `json:"timestamp"`
}

type CollectionStatusResponse struct {
	Success   bool            `json:"success"`
	Status    json.RawMessage `json:"status" swaggertype:"object"`
	Timestamp time.Time       `json:"timestamp"`
}

type CollectionSourcesResponse struct {
	Success   bool            `json:"success"`
	Sources   json.RawMessage `json:"sources" swaggertype:"array,string"`
	Timestamp time.Time       `json:"timestamp"`
}
