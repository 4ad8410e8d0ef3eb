package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	AI        AIConfig
	Scraper   ScraperConfig
	RateLimit RateLimitConfig
	Collector CollectorConfig
	Events    EventsConfig
	Webhook   WebhookConfig
	Slack     SlackConfig
	LogLevel  string
}

type ServerConfig struct {
	Port        string
	GinMode     string
	CORSOrigins []string
	// Empty trusts no proxy; ClientIP is then the socket address.
	TrustedProxies []string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

// AIConfig - Gemini analysis gateway settings
type AIConfig struct {
	APIKey         string
	Model          string
	MaxRetries     int
	Timeout        time.Duration
	CacheTTL       time.Duration
	CacheSize      int
	RateLimitDelay time.Duration
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

type ScraperConfig struct {
	BaseURL string
}

type RateLimitConfig struct {
	Window     time.Duration
	General    int
	AIAnalysis int
}

type CollectorConfig struct {
	JWTSecret string
}

type EventsConfig struct {
	NATSURL string
	Subject string
}

type WebhookConfig struct {
	URLs        []string
	Body        string
	MinSeverity string
}

// SlackConfig - incident alerts posted with a bot token
type SlackConfig struct {
	BotToken    string
	ChannelID   string
	MinSeverity string
	FrontendURL string
	APIURL      string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:           getenv("PORT", "3001"),
			GinMode:        os.Getenv("GIN_MODE"),
			CORSOrigins:    splitList(getenv("CORS_ORIGINS", getenv("FRONTEND_URL", "http://localhost:3000"))),
			TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		AI: AIConfig{
			APIKey:         getenv("GEMINI_API_KEY", os.Getenv("AI_API_KEY")),
			Model:          getenv("GEMINI_MODEL", "gemini-1.5-flash"),
			MaxRetries:     getenvInt("AI_MAX_RETRIES", 3),
			Timeout:        getenvMillis("AI_TIMEOUT_MS", 30*time.Second),
			CacheTTL:       getenvMillis("AI_CACHE_TTL_MS", 5*time.Minute),
			CacheSize:      100,
			RateLimitDelay: getenvMillis("AI_RATE_LIMIT_DELAY_MS", time.Second),
			RetryBaseDelay: time.Second,
			RetryMaxDelay:  10 * time.Second,
		},
		Scraper: ScraperConfig{
			BaseURL: getenv("SCRAPER_URL", getenv("PYTHON_SCRAPER_URL", "http://localhost:5000")),
		},
		RateLimit: RateLimitConfig{
			Window:     getenvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			General:    getenvInt("RATE_LIMIT_MAX", 500),
			AIAnalysis: getenvInt("AI_RATE_LIMIT_MAX", 10),
		},
		Collector: CollectorConfig{
			JWTSecret: os.Getenv("COLLECTOR_JWT_SECRET"),
		},
		Events: EventsConfig{
			NATSURL: os.Getenv("NATS_URL"),
			Subject: getenv("INCIDENT_EVENTS_SUBJECT", "incidents.created"),
		},
		Webhook: WebhookConfig{
			URLs:        splitList(os.Getenv("ALERT_WEBHOOK_URLS")),
			Body:        os.Getenv("ALERT_WEBHOOK_BODY"),
			MinSeverity: getenv("ALERT_WEBHOOK_MIN_SEVERITY", "High"),
		},
		Slack: SlackConfig{
			BotToken:    os.Getenv("SLACK_BOT_TOKEN"),
			ChannelID:   os.Getenv("SLACK_CHANNEL_ID"),
			MinSeverity: getenv("SLACK_MIN_SEVERITY", "High"),
			APIURL:      getenv("SLACK_API_URL", "https://slack.com/api"),
			FrontendURL: strings.TrimRight(getenv("FRONTEND_URL", "http://localhost:3000"), "/"),
		},
		LogLevel: getenv("LOG_LEVEL", "info"),
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

// getenvMillis reads an integer millisecond value, e.g. AI_TIMEOUT_MS=30000
func getenvMillis(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(val)); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
