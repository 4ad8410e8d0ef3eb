package model

import (
	"time"
)

// ============================================================================
// Incident model
// ============================================================================

const DefaultLocation = "India"

// Incident sources, categories and severities accepted by the store.
const (
	SourceCERTIn           = "CERT-In"
	SourceETCISO           = "Economic Times CISO"
	SourceBusinessStandard = "Business Standard"
	SourceHackerNews       = "The Hacker News"
	SourceOther            = "Other"

	CategoryAdvisory = "Advisory"
	CategoryNews     = "News"
	CategoryAlert    = "Alert"
	CategoryReport   = "Report"

	SeverityLow      = "Low"
	SeverityMedium   = "Medium"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
	SeverityUnknown  = "Unknown"
)

var (
	Sources    = []string{SourceCERTIn, SourceETCISO, SourceBusinessStandard, SourceHackerNews, SourceOther}
	Categories = []string{CategoryAdvisory, CategoryNews, CategoryAlert, CategoryReport}
	Severities = []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical, SeverityUnknown}
)

func IsValidSource(v string) bool   { return contains(Sources, v) }
func IsValidCategory(v string) bool { return contains(Categories, v) }
func IsValidSeverity(v string) bool { return contains(Severities, v) }

// SeverityRank orders severities for threshold checks; Unknown ranks lowest.
func SeverityRank(v string) int {
	switch v {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Incident - a single reported cyber security event
type Incident struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	URL           *string   `json:"url,omitempty"`
	PublishedDate time.Time `json:"published_date"`
	Source        string    `json:"source"`
	Category      string    `json:"category"`
	Severity      string    `json:"severity"`
	Location      string    `json:"location"`
	Hash          string    `json:"hash"`
	Tags          []string  `json:"tags"`
	IsVerified    bool      `json:"is_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateIncidentRequest - collector insert payload
type CreateIncidentRequest struct {
	Title         string     `json:"title" binding:"required"`
	Description   string     `json:"description"`
	URL           string     `json:"url"`
	PublishedDate *time.Time `json:"published_date"`
	Source        string     `json:"source" binding:"required"`
	Category      string     `json:"category" binding:"required"`
	Severity      string     `json:"severity"`
	Location      string     `json:"location"`
	Hash          string     `json:"hash"`
	Tags          []string   `json:"tags"`
}

// VerifyIncidentRequest - is_verified toggle
type VerifyIncidentRequest struct {
	Verified *bool `json:"verified" binding:"required"`
}

// IncidentFilter - query specification for incident lists.
// Empty string or "all" leaves a field unconstrained.
type IncidentFilter struct {
	Source   string
	Severity string
	Category string
	FromDate *time.Time
	ToDate   *time.Time
	Search   string
	Page     int
	Limit    int
}

// ============================================================================
// Statistics
// ============================================================================

type SourceCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

type SeverityCount struct {
	Severity string `json:"severity"`
	Count    int64  `json:"count"`
}

// IncidentStats - computed per request, never stored
type IncidentStats struct {
	Total      int64           `json:"total"`
	Today      int64           `json:"today"`
	Recent     int64           `json:"recent"`
	BySource   []SourceCount   `json:"bySource"`
	BySeverity []SeverityCount `json:"bySeverity"`
}
