package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyberwatch-india/backend/internal/client"
	"github.com/cyberwatch-india/backend/internal/config"
	"github.com/cyberwatch-india/backend/internal/db"
	"github.com/cyberwatch-india/backend/internal/handler"
	"github.com/cyberwatch-india/backend/internal/logging"
	"github.com/cyberwatch-india/backend/internal/metrics"
	"github.com/cyberwatch-india/backend/internal/ratelimit"
	"github.com/cyberwatch-india/backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// @title CyberWatch India API
// @version 1.0
// @description Indian cyber-incident monitoring backend: incident store, statistics, AI threat analysis and scraper proxy.
// @BasePath /
// @securityDefinitions.apikey CollectorAuth
// @in header
// @name Authorization
// @description Bearer token issued to scraper collectors.
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	cfg := config.Load()
	logging.Init(cfg.LogLevel)
	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	store := &db.Postgres{Pool: pool}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// A nil generator leaves the gateway unavailable (503) instead of failing startup.
	var generator service.TextGenerator
	if cfg.AI.APIKey == "" {
		log.Printf("GEMINI_API_KEY not set; AI analysis disabled")
	} else if genClient, err := client.NewGenAIClient(ctx, cfg.AI); err != nil {
		log.Printf("Failed to initialize Gemini client: %v", err)
	} else {
		generator = genClient
		log.Printf("Gemini AI service initialized (model=%s)", genClient.Model())
	}
	analysisService := service.NewAnalysisService(generator, cfg.AI, service.SubstringClassifier{}, m)

	var events service.EventPublisher
	if cfg.Events.NATSURL != "" {
		publisher, err := client.NewEventPublisher(cfg.Events)
		if err != nil {
			log.Printf("Incident events disabled: %v", err)
		} else {
			defer publisher.Close()
			events = publisher
		}
	}
	var chat service.ChatNotifier
	if slack := client.NewSlackClient(cfg.Slack); slack.IsConfigured() {
		chat = slack
	}
	notifier := service.NewIncidentNotifier(service.NewWebhookDeliveryService(cfg.Webhook), chat, events)

	incidentService := service.NewIncidentService(store, notifier, m)
	collectionService := service.NewCollectionService(client.NewScraperClient(cfg.Scraper))
	collectorAuth := service.NewCollectorAuthService(cfg.Collector)
	if !collectorAuth.Enabled() {
		log.Printf("COLLECTOR_JWT_SECRET not set; collector endpoints are unauthenticated")
	}

	router := handler.NewRouter(handler.RouterDeps{
		Incidents:      incidentService,
		Analysis:       analysisService,
		Collection:     collectionService,
		CollectorAuth:  collectorAuth,
		GeneralLimiter: ratelimit.New(cfg.RateLimit.General, cfg.RateLimit.Window, 0),
		AILimiter:      ratelimit.New(cfg.RateLimit.AIAnalysis, cfg.RateLimit.Window, 0),
		Metrics:        m,
		Gatherer:       reg,
		CORSOrigins:    cfg.Server.CORSOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}
