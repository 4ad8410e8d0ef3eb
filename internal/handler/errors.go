package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/cyberwatch-india/backend/internal/db"
	"github.com/cyberwatch-india/backend/internal/model"
	"github.com/cyberwatch-india/backend/internal/service"
	"github.com/gin-gonic/gin"
)

// writeError is the one place service errors become HTTP statuses.
// fallback titles the 500 response for anything unclassified.
func writeError(c *gin.Context, err error, fallback string) {
	status, title, message := classifyError(err, fallback)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %s: %v", c.Request.Method, c.Request.URL.Path, title, err)
	}
	c.AbortWithStatusJSON(status, model.ErrorResponse{
		Success: false,
		Error:   title,
		Message: message,
	})
}

func classifyError(err error, fallback string) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid request", err.Error()
	case errors.Is(err, service.ErrNotFound), errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound, "Incident not found", err.Error()
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized", "A valid collector token is required"
	case errors.Is(err, service.ErrAIUnavailable):
		return http.StatusServiceUnavailable, "AI analysis service not available", "Gemini API key not configured or service unavailable"
	case errors.Is(err, service.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "AI service quota exceeded", "Please try again later"
	case errors.Is(err, service.ErrTimeout):
		return http.StatusGatewayTimeout, "AI analysis timeout", "The analysis request timed out. Please try again."
	case errors.Is(err, service.ErrContentFiltered):
		return http.StatusUnprocessableEntity, "Content filtered", "The AI provider declined to analyze this content"
	default:
		return http.StatusInternalServerError, fallback, err.Error()
	}
}

func badRequest(c *gin.Context, title, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{
		Success: false,
		Error:   title,
		Message: message,
	})
}
