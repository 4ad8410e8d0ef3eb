package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cyberwatch-india/backend/internal/model"
	"github.com/gin-gonic/gin"
)

// collectionService - scraper proxy used by the HTTP layer
type collectionService interface {
	Trigger(ctx context.Context, req model.ScrapeRequest) (json.RawMessage, error)
	Status(ctx context.Context) (json.RawMessage, error)
	Sources(ctx context.Context) (json.RawMessage, error)
}

type CollectionHandler struct {
	svc collectionService
}

func NewCollectionHandler(svc collectionService) *CollectionHandler {
	return &CollectionHandler{svc: svc}
}

// TriggerCollection godoc
// @Summary Trigger a scrape
// @Description Forwards the request to the scraper service. Sources default to cert-in and news.
// @Tags collection
// @Accept json
// @Produce json
// @Security CollectorAuth
// @Param request body model.ScrapeRequest false "Scrape request"
// @Success 200 {object} model.CollectionTriggerResponse
// @Failure 400,401,500 {object} model.ErrorResponse
// @Router /api/collection/trigger [post]
func (h *CollectionHandler) TriggerCollection(c *gin.Context) {
	var req model.ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request", err.Error())
		return
	}
	if claims := GetCollector(c); claims != nil {
		log.Printf("[Collection] Scrape requested by collector %s", claims.Collector)
	}

	resp, err := h.svc.Trigger(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "Failed to trigger data collection")
		return
	}
	c.JSON(http.StatusOK, model.CollectionTriggerResponse{
		Success:        true,
		Message:        "Data collection triggered successfully",
		PythonResponse: resp,
		Timestamp:      time.Now().UTC(),
	})
}

// CollectionStatus godoc
// @Summary Scraper status
// @Tags collection
// @Produce json
// @Success 200 {object} model.CollectionStatusResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/collection/status [get]
func (h *CollectionHandler) CollectionStatus(c *gin.Context) {
	resp, err := h.svc.Status(c.Request.Context())
	if err != nil {
		writeError(c, err, "Failed to get collection status")
		return
	}
	c.JSON(http.StatusOK, model.CollectionStatusResponse{
		Success:   true,
		Status:    resp,
		Timestamp: time.Now().UTC(),
	})
}

// CollectionSources godoc
// @Summary Scraper sources
// @Tags collection
// @Produce json
// @Success 200 {object} model.CollectionSourcesResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/collection/sources [get]
func (h *CollectionHandler) CollectionSources(c *gin.Context) {
	resp, err := h.svc.Sources(c.Request.Context())
	if err != nil {
		writeError(c, err, "Failed to get scraping sources")
		return
	}
	c.JSON(http.StatusOK, model.CollectionSourcesResponse{
		Success:   true,
		Sources:   resp,
		Timestamp: time.Now().UTC(),
	})
}
