package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cyberwatch-india/backend/internal/db"
	"github.com/cyberwatch-india/backend/internal/model"
	"github.com/cyberwatch-india/backend/internal/service"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const insightsTimeRange = "Last 7 days"

// analysisService - AI gateway operations used by the HTTP layer
type analysisService interface {
	IsAvailable() bool
	AnalyzeIncident(ctx context.Context, inc model.Incident) (*model.IncidentAnalysis, error)
	GenerateThreatSummary(ctx context.Context, incidents []model.Incident) (*model.ThreatSummary, error)
	GenerateIncidentInsights(ctx context.Context, input model.InsightsInput) (*model.IncidentInsights, error)
	ServiceInfo() model.AnalysisServiceInfo
}

type AnalysisHandler struct {
	incidents incidentService
	analysis  analysisService
}

func NewAnalysisHandler(incidents incidentService, analysis analysisService) *AnalysisHandler {
	return &AnalysisHandler{incidents: incidents, analysis: analysis}
}

// AnalyzeIncident godoc
// @Summary AI analysis of one incident
// @Tags analysis
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} model.IncidentAnalysisResponse
// @Failure 400,404,422,429,500,503,504 {object} model.ErrorResponse
// @Router /api/analysis/incident/{id} [get]
func (h *AnalysisHandler) AnalyzeIncident(c *gin.Context) {
	id, ok := incidentID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	inc, err := h.incidents.GetIncident(ctx, id)
	if err != nil {
		writeError(c, err, "Failed to analyze incident")
		return
	}

	analysis, err := h.analysis.AnalyzeIncident(ctx, *inc)
	if err != nil {
		writeError(c, err, "Failed to analyze incident")
		return
	}

	c.JSON(http.StatusOK, model.IncidentAnalysisResponse{
		Success: true,
		Incident: model.AnalyzedIncident{
			ID:            inc.ID,
			Title:         inc.Title,
			Source:        inc.Source,
			Category:      inc.Category,
			Severity:      inc.Severity,
			PublishedDate: inc.PublishedDate,
		},
		Analysis:  analysis,
		Timestamp: time.Now().UTC(),
	})
}

// ThreatSummary godoc
// @Summary AI threat summary over recent incidents
// @Tags analysis
// @Produce json
// @Param days query int false "Look-back window in days" default(7) minimum(1) maximum(365)
// @Param limit query int false "Incidents considered" default(50) minimum(1) maximum(500)
// @Success 200 {object} model.ThreatSummaryResponse
// @Failure 400,422,429,500,503,504 {object} model.ErrorResponse
// @Router /api/analysis/threat-summary [get]
func (h *AnalysisHandler) ThreatSummary(c *gin.Context) {
	days, err := queryInt(c, "days", 7, maxDays)
	if err != nil {
		badRequest(c, "Invalid query parameters", err.Error())
		return
	}
	limit, err := queryInt(c, "limit", 50, db.MaxLimit)
	if err != nil {
		badRequest(c, "Invalid query parameters", err.Error())
		return
	}
	ctx := c.Request.Context()

	from := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	incidents, err := h.incidents.ListIncidents(ctx, model.IncidentFilter{Limit: limit, FromDate: &from})
	if err != nil {
		writeError(c, err, "Failed to generate threat summary")
		return
	}
	if len(incidents) == 0 {
		c.JSON(http.StatusOK, model.ThreatSummaryResponse{
			Success:   true,
			Message:   "No recent incidents found for analysis",
			Summary:   nil,
			Timestamp: time.Now().UTC(),
		})
		return
	}

	summary, err := h.analysis.GenerateThreatSummary(ctx, incidents)
	if err != nil {
		writeError(c, err, "Failed to generate threat summary")
		return
	}

	c.JSON(http.StatusOK, model.ThreatSummaryResponse{
		Success:       true,
		IncidentCount: len(incidents),
		TimeRange:     fmt.Sprintf("%d days", days),
		Summary:       summary,
		Timestamp:     time.Now().UTC(),
	})
}

// Insights godoc
// @Summary AI dashboard insights
// @Tags analysis
// @Produce json
// @Param limit query int false "Recent incidents considered" default(20) minimum(1) maximum(500)
// @Success 200 {object} model.InsightsResponse
// @Failure 400,422,429,500,503,504 {object} model.ErrorResponse
// @Router /api/analysis/insights [get]
func (h *AnalysisHandler) Insights(c *gin.Context) {
	limit, err := queryInt(c, "limit", 20, db.MaxLimit)
	if err != nil {
		badRequest(c, "Invalid query parameters", err.Error())
		return
	}
	if !h.analysis.IsAvailable() {
		writeError(c, service.ErrAIUnavailable, "Failed to generate insights")
		return
	}

	var (
		incidents []model.Incident
		stats     *model.IncidentStats
	)
	g, gctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		incidents, err = h.incidents.ListIncidents(gctx, model.IncidentFilter{Limit: limit})
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = h.incidents.Stats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		writeError(c, err, "Failed to generate insights")
		return
	}

	insights, err := h.analysis.GenerateIncidentInsights(c.Request.Context(), model.InsightsInput{
		RecentIncidents: incidents,
		Statistics:      stats,
		TimeRange:       insightsTimeRange,
	})
	if err != nil {
		writeError(c, err, "Failed to generate insights")
		return
	}

	c.JSON(http.StatusOK, model.InsightsResponse{
		Success:   true,
		Insights:  insights,
		Stats:     stats,
		Timestamp: time.Now().UTC(),
	})
}

// Status godoc
// @Summary AI gateway diagnostics
// @Tags analysis
// @Produce json
// @Success 200 {object} model.AnalysisStatusResponse
// @Router /api/analysis/status [get]
func (h *AnalysisHandler) Status(c *gin.Context) {
	info := h.analysis.ServiceInfo()
	c.JSON(http.StatusOK, model.AnalysisStatusResponse{
		Success:   true,
		Available: info.Available,
		Service:   "Google Gemini AI",
		Model:     info.Model,
		Cache: model.AnalysisCacheStatus{
			Size:    info.CacheSize,
			Timeout: info.Configuration.CacheTimeoutMS,
		},
		Configuration: model.AnalysisStatusConfiguration{
			MaxRetries:     info.Configuration.MaxRetries,
			Timeout:        info.Configuration.TimeoutMS,
			RateLimitDelay: info.Configuration.RateLimitMS,
		},
		LastRequestTime: info.LastRequestTime,
		Timestamp:       time.Now().UTC(),
	})
}
