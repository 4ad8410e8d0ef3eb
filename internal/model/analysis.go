package model

import (
	"time"
)

// IncidentAnalysis - AI analysis of a single incident
type IncidentAnalysis struct {
	RiskAssessment     string    `json:"riskAssessment"`
	AffectedSectors    string    `json:"affectedSectors"`
	RecommendedActions string    `json:"recommendedActions"`
	ThreatLevel        string    `json:"threatLevel"`
	KeyInsights        string    `json:"keyInsights"`
	FullAnalysis       string    `json:"fullAnalysis"`
	Confidence         int       `json:"confidence"`
	GeneratedAt        time.Time `json:"generatedAt"`
}

// ThreatSummary - AI summary over a batch of recent incidents
type ThreatSummary struct {
	ThreatLandscape string    `json:"threatLandscape"`
	TrendingThreats string    `json:"trendingThreats"`
	SectorAnalysis  string    `json:"sectorAnalysis"`
	Recommendations string    `json:"recommendations"`
	FutureOutlook   string    `json:"futureOutlook"`
	FullSummary     string    `json:"fullSummary"`
	Confidence      int       `json:"confidence"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// IncidentInsights - dashboard insights, never cached
type IncidentInsights struct {
	PatternAnalysis      string    `json:"patternAnalysis"`
	RiskCorrelation      string    `json:"riskCorrelation"`
	ImpactPrediction     string    `json:"impactPrediction"`
	MitigationStrategies string    `json:"mitigationStrategies"`
	IntelligenceSummary  string    `json:"intelligenceSummary"`
	FullInsights         string    `json:"fullInsights"`
	Confidence           int       `json:"confidence"`
	GeneratedAt          time.Time `json:"generatedAt"`
}

// InsightsInput is serialized as a whole into the insights prompt.
type InsightsInput struct {
	RecentIncidents []Incident     `json:"recentIncidents"`
	Statistics      *IncidentStats `json:"statistics"`
	TimeRange       string         `json:"timeRange"`
}

type AnalysisConfiguration struct {
	MaxRetries     int   `json:"maxRetries"`
	TimeoutMS      int64 `json:"timeout"`
	CacheTimeoutMS int64 `json:"cacheTimeout"`
	RateLimitMS    int64 `json:"rateLimitDelay"`
}

// AnalysisServiceInfo - gateway diagnostics
type AnalysisServiceInfo struct {
	Available       bool                  `json:"available"`
	Model           string                `json:"model"`
	CacheSize       int                   `json:"cacheSize"`
	LastRequestTime *time.Time            `json:"lastRequestTime"`
	Configuration   AnalysisConfiguration `json:"configuration"`
}
