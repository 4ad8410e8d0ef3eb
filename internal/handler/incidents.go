package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cyberwatch-india/backend/internal/db"
	"github.com/cyberwatch-india/backend/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// incidentService - incident operations used by the HTTP layer
type incidentService interface {
	CreateIncident(ctx context.Context, req model.CreateIncidentRequest) (string, bool, error)
	ListIncidents(ctx context.Context, filter model.IncidentFilter) ([]model.Incident, error)
	SearchIncidents(ctx context.Context, term string, limit int) ([]model.Incident, error)
	GetIncident(ctx context.Context, id string) (*model.Incident, error)
	SetVerified(ctx context.Context, id string, verified bool) (*model.Incident, error)
	Stats(ctx context.Context) (*model.IncidentStats, error)
}

type IncidentHandler struct {
	svc incidentService
}

func NewIncidentHandler(svc incidentService) *IncidentHandler {
	return &IncidentHandler{svc: svc}
}

// ListIncidents godoc
// @Summary List incidents
// @Description Incidents located in India, newest first.
// @Tags incidents
// @Produce json
// @Param source query string false "Source (or all)"
// @Param severity query string false "Severity (or all)"
// @Param category query string false "Category (or all)"
// @Param from_date query string false "Earliest published date (RFC3339 or YYYY-MM-DD)"
// @Param to_date query string false "Latest published date (RFC3339 or YYYY-MM-DD)"
// @Param search query string false "Text matched against title and description"
// @Param limit query int false "Page size" default(50) minimum(1) maximum(500)
// @Param page query int false "Page number" default(1) minimum(1) maximum(10000)
// @Success 200 {object} model.IncidentListResponse
// @Failure 400,500 {object} model.ErrorResponse
// @Router /api/incidents [get]
func (h *IncidentHandler) ListIncidents(c *gin.Context) {
	filter, err := parseIncidentFilter(c)
	if err != nil {
		badRequest(c, "Invalid query parameters", err.Error())
		return
	}

	list, err := h.svc.ListIncidents(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err, "Failed to fetch incidents")
		return
	}
	c.JSON(http.StatusOK, model.IncidentListResponse{Success: true, Data: list, Count: len(list)})
}

// CreateIncident godoc
// @Summary Store a collected incident
// @Description Insert-if-absent keyed by content hash. A duplicate returns 200 with duplicate=true.
// @Tags incidents
// @Accept json
// @Produce json
// @Security CollectorAuth
// @Param request body model.CreateIncidentRequest true "Incident payload"
// @Success 201 {object} model.IncidentCreateResponse
// @Success 200 {object} model.IncidentCreateResponse
// @Failure 400,401,500 {object} model.ErrorResponse
// @Router /api/incidents [post]
func (h *IncidentHandler) CreateIncident(c *gin.Context) {
	var req model.CreateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid incident payload", err.Error())
		return
	}

	id, created, err := h.svc.CreateIncident(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "Failed to store incident")
		return
	}
	if !created {
		c.JSON(http.StatusOK, model.IncidentCreateResponse{
			Success:   true,
			Duplicate: true,
			Message:   "Incident already exists",
		})
		return
	}
	c.JSON(http.StatusCreated, model.IncidentCreateResponse{
		Success: true,
		Data:    &model.IncidentCreatedData{ID: id},
	})
}

// SearchIncidents godoc
// @Summary Search incidents
// @Tags incidents
// @Produce json
// @Param q query string true "Search term"
// @Param limit query int false "Maximum results" default(20) minimum(1) maximum(500)
// @Success 200 {object} model.IncidentListResponse
// @Failure 400,500 {object} model.ErrorResponse
// @Router /api/incidents/search [get]
func (h *IncidentHandler) SearchIncidents(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0, db.MaxLimit)
	if err != nil {
		badRequest(c, "Invalid query parameters", err.Error())
		return
	}

	list, err := h.svc.SearchIncidents(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		writeError(c, err, "Failed to search incidents")
		return
	}
	c.JSON(http.StatusOK, model.IncidentListResponse{Success: true, Data: list, Count: len(list)})
}

// GetIncident godoc
// @Summary Get incident
// @Tags incidents
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} model.IncidentEnvelope
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/incidents/{id} [get]
func (h *IncidentHandler) GetIncident(c *gin.Context) {
	id, ok := incidentID(c)
	if !ok {
		return
	}

	inc, err := h.svc.GetIncident(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to fetch incident")
		return
	}
	c.JSON(http.StatusOK, model.IncidentEnvelope{Success: true, Data: inc})
}

// VerifyIncident godoc
// @Summary Set the verified flag
// @Tags incidents
// @Accept json
// @Produce json
// @Security CollectorAuth
// @Param id path string true "Incident ID"
// @Param request body model.VerifyIncidentRequest true "Verified flag"
// @Success 200 {object} model.IncidentEnvelope
// @Failure 400,401,404,500 {object} model.ErrorResponse
// @Router /api/incidents/{id}/verify [patch]
func (h *IncidentHandler) VerifyIncident(c *gin.Context) {
	id, ok := incidentID(c)
	if !ok {
		return
	}

	var req model.VerifyIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", err.Error())
		return
	}

	inc, err := h.svc.SetVerified(c.Request.Context(), id, *req.Verified)
	if err != nil {
		writeError(c, err, "Failed to update incident")
		return
	}
	c.JSON(http.StatusOK, model.IncidentEnvelope{Success: true, Data: inc})
}

// CollectRedirect godoc
// @Summary Legacy collection endpoint
// @Description Collection moved to the scraper proxy.
// @Tags incidents
// @Produce json
// @Success 200 {object} model.CollectRedirectResponse
// @Router /api/incidents/collect [post]
func (h *IncidentHandler) CollectRedirect(c *gin.Context) {
	c.JSON(http.StatusOK, model.CollectRedirectResponse{
		Success:  true,
		Message:  "Data collection is handled by the scraper service. Use /api/collection/trigger.",
		Redirect: "/api/collection/trigger",
	})
}

// GetStats godoc
// @Summary Incident statistics
// @Tags stats
// @Produce json
// @Success 200 {object} model.StatsResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/stats [get]
func (h *IncidentHandler) GetStats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err, "Failed to fetch statistics")
		return
	}
	c.JSON(http.StatusOK, model.StatsResponse{Success: true, Data: stats})
}

// incidentID reads and validates the :id path parameter, writing 400 on failure.
func incidentID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := uuid.Parse(id); err != nil {
		badRequest(c, "Invalid incident ID", "Incident ID must be a valid UUID")
		return "", false
	}
	return id, true
}

func parseIncidentFilter(c *gin.Context) (model.IncidentFilter, error) {
	filter := model.IncidentFilter{
		Source:   strings.TrimSpace(c.Query("source")),
		Severity: strings.TrimSpace(c.Query("severity")),
		Category: strings.TrimSpace(c.Query("category")),
		Search:   strings.TrimSpace(c.Query("search")),
	}

	if filter.Source != "" && filter.Source != "all" && !model.IsValidSource(filter.Source) {
		return filter, errInvalidParam("source", filter.Source)
	}
	if filter.Severity != "" && filter.Severity != "all" && !model.IsValidSeverity(filter.Severity) {
		return filter, errInvalidParam("severity", filter.Severity)
	}
	if filter.Category != "" && filter.Category != "all" && !model.IsValidCategory(filter.Category) {
		return filter, errInvalidParam("category", filter.Category)
	}

	var err error
	if filter.FromDate, err = queryTime(c, "from_date"); err != nil {
		return filter, err
	}
	if filter.ToDate, err = queryTime(c, "to_date"); err != nil {
		return filter, err
	}
	if filter.Limit, err = queryInt(c, "limit", 0, db.MaxLimit); err != nil {
		return filter, err
	}
	if filter.Page, err = queryInt(c, "page", 0, db.MaxPage); err != nil {
		return filter, err
	}
	return filter, nil
}

// maxDays bounds the threat-summary look-back window.
const maxDays = 365

type paramError struct {
	name  string
	value string
	upper int
}

func (e paramError) Error() string {
	msg := "invalid value for " + e.name + ": " + strconv.Quote(e.value)
	if e.upper > 0 {
		msg += " (must be between 1 and " + strconv.Itoa(e.upper) + ")"
	}
	return msg
}

func errInvalidParam(name, value string) error {
	return paramError{name: name, value: value}
}

// queryInt parses an integer query parameter in [1, upper].
func queryInt(c *gin.Context, name string, fallback, upper int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 || v > upper {
		return 0, paramError{name: name, value: raw, upper: upper}
	}
	return v, nil
}

func queryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errInvalidParam(name, raw)
}
