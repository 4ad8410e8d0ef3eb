package handler

import (
	"net/http"
	"time"

	"github.com/cyberwatch-india/backend/internal/model"
	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} model.HealthResponse
// @Router /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{
		Success:   true,
		Status:    "OK",
		Timestamp: time.Now().UTC(),
	})
}
