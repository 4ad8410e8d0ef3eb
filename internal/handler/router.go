package handler

import (
	"log"
	"net/http"

	"github.com/cyberwatch-india/backend/internal/metrics"
	"github.com/cyberwatch-india/backend/internal/model"
	"github.com/cyberwatch-india/backend/internal/ratelimit"
	"github.com/cyberwatch-india/backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps - everything the HTTP layer is wired to
type RouterDeps struct {
	Incidents     *service.IncidentService
	Analysis      *service.AnalysisService
	Collection    *service.CollectionService
	CollectorAuth *service.CollectorAuthService

	GeneralLimiter *ratelimit.Limiter
	AILimiter      *ratelimit.Limiter

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	CORSOrigins    []string
	TrustedProxies []string
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	// Rate limits key on ClientIP, so forwarded headers count only from listed proxies.
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		log.Printf("Invalid TRUSTED_PROXIES, trusting none: %v", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(MetricsMiddleware(deps.Metrics))
	r.Use(CORSMiddleware(deps.CORSOrigins, true))

	r.GET("/health", Health)
	r.GET("/openapi.json", OpenAPIDoc)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	incidentHandler := NewIncidentHandler(deps.Incidents)
	analysisHandler := NewAnalysisHandler(deps.Incidents, deps.Analysis)
	collectionHandler := NewCollectionHandler(deps.Collection)

	collectorAuth := CollectorAuthMiddleware(deps.CollectorAuth)
	aiLimit := RateLimitMiddleware(deps.AILimiter,
		"Too many AI analysis requests",
		"Please wait before requesting another AI analysis")

	api := r.Group("/api")
	api.Use(RateLimitMiddleware(deps.GeneralLimiter,
		"Too many requests",
		"Too many requests from this IP, please try again later."))
	{
		api.GET("/health", Health)

		api.GET("/incidents", incidentHandler.ListIncidents)
		api.POST("/incidents", collectorAuth, incidentHandler.CreateIncident)
		api.GET("/incidents/search", incidentHandler.SearchIncidents)
		api.POST("/incidents/collect", incidentHandler.CollectRedirect)
		api.GET("/incidents/:id", incidentHandler.GetIncident)
		api.PATCH("/incidents/:id/verify", collectorAuth, incidentHandler.VerifyIncident)

		api.GET("/stats", incidentHandler.GetStats)

		api.GET("/analysis/incident/:id", aiLimit, analysisHandler.AnalyzeIncident)
		api.GET("/analysis/threat-summary", aiLimit, analysisHandler.ThreatSummary)
		api.GET("/analysis/insights", aiLimit, analysisHandler.Insights)
		api.GET("/analysis/status", analysisHandler.Status)

		api.POST("/collection/trigger", collectorAuth, collectionHandler.TriggerCollection)
		api.GET("/collection/status", collectionHandler.CollectionStatus)
		api.GET("/collection/sources", collectionHandler.CollectionSources)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Error:   "Not found",
			Message: "Route " + c.Request.Method + " " + c.Request.URL.Path + " not found",
		})
	})

	return r
}
