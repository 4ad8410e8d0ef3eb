package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cyberwatch-india/backend/internal/config"
	"github.com/cyberwatch-india/backend/internal/db"
	"github.com/cyberwatch-india/backend/internal/metrics"
	"github.com/cyberwatch-india/backend/internal/model"
	"github.com/cyberwatch-india/backend/internal/ratelimit"
	"github.com/cyberwatch-india/backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory incident store with the same dedupe, scope and
// ordering rules as the Postgres adapter.
type memRepo struct {
	mu        sync.Mutex
	incidents []model.Incident
	failStats bool
}

func (r *memRepo) InsertIncident(_ context.Context, inc model.Incident) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.incidents {
		if existing.Hash == inc.Hash {
			return "", false, nil
		}
	}
	inc.CreatedAt = time.Now()
	inc.UpdatedAt = inc.CreatedAt
	r.incidents = append(r.incidents, inc)
	return inc.ID, true, nil
}

func (r *memRepo) india() []model.Incident {
	out := []model.Incident{}
	for _, inc := range r.incidents {
		if inc.Location == model.DefaultLocation {
			out = append(out, inc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedDate.After(out[j].PublishedDate)
	})
	return out
}

func (r *memRepo) FindIncidents(_ context.Context, f model.IncidentFilter) ([]model.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Incident{}
	for _, inc := range r.india() {
		if f.Source != "" && f.Source != "all" && inc.Source != f.Source {
			continue
		}
		if f.Severity != "" && f.Severity != "all" && inc.Severity != f.Severity {
			continue
		}
		if f.FromDate != nil && inc.PublishedDate.Before(*f.FromDate) {
			continue
		}
		out = append(out, inc)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRepo) SearchIncidents(_ context.Context, term string, limit int) ([]model.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Incident{}
	for _, inc := range r.india() {
		if strings.Contains(strings.ToLower(inc.Title+" "+inc.Description), strings.ToLower(term)) {
			out = append(out, inc)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) GetIncident(_ context.Context, id string) (*model.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inc := range r.incidents {
		if inc.ID == id {
			return &inc, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *memRepo) SetIncidentVerified(_ context.Context, id string, verified bool) (*model.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.incidents {
		if r.incidents[i].ID == id {
			r.incidents[i].IsVerified = verified
			r.incidents[i].UpdatedAt = time.Now()
			inc := r.incidents[i]
			return &inc, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *memRepo) GetIncidentStats(_ context.Context, now time.Time) (*model.IncidentStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failStats {
		return nil, db.ErrStorage
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	stats := &model.IncidentStats{BySource: []model.SourceCount{}, BySeverity: []model.SeverityCount{}}
	bySource := map[string]int64{}
	bySeverity := map[string]int64{}
	for _, inc := range r.india() {
		stats.Total++
		if !inc.CreatedAt.Before(midnight) {
			stats.Today++
		}
		if inc.CreatedAt.After(now.Add(-7 * 24 * time.Hour)) {
			stats.Recent++
		}
		bySource[inc.Source]++
		bySeverity[inc.Severity]++
	}
	for k, v := range bySource {
		stats.BySource = append(stats.BySource, model.SourceCount{Source: k, Count: v})
	}
	for k, v := range bySeverity {
		stats.BySeverity = append(stats.BySeverity, model.SeverityCount{Severity: k, Count: v})
	}
	return stats, nil
}

type stubGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *stubGenerator) GenerateText(context.Context, string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return "1. Risk Assessment: Elevated risk to Indian banks.\n2. Affected Sectors: Finance.\n" +
		"1. Overall Threat Landscape: Active.\n1. Pattern Analysis: Phishing waves.", nil
}

func (g *stubGenerator) Model() string { return "stub" }

type stubScraper struct {
	err error
}

func (s stubScraper) Trigger(context.Context, model.ScrapeRequest) (json.RawMessage, error) {
	return json.RawMessage(`{"status":"started"}`), s.err
}

func (s stubScraper) Status(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"running":true}`), s.err
}

func (s stubScraper) Sources(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`["cert-in","news"]`), s.err
}

type testServer struct {
	router *gin.Engine
	repo   *memRepo
	gen    *stubGenerator
}

type serverOpts struct {
	noAI           bool
	aiLimit        int
	collectorToken string
	scraperErr     error
	trustedProxies []string
}

func newTestServer(t *testing.T, opts serverOpts) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := &memRepo{}
	gen := &stubGenerator{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	aiCfg := config.AIConfig{
		Model:          "stub",
		MaxRetries:     1,
		Timeout:        time.Second,
		CacheTTL:       time.Minute,
		CacheSize:      100,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  time.Millisecond,
	}
	var analysis *service.AnalysisService
	if opts.noAI {
		analysis = service.NewAnalysisService(nil, aiCfg, nil, m)
	} else {
		analysis = service.NewAnalysisService(gen, aiCfg, nil, m)
	}

	aiLimit := opts.aiLimit
	if aiLimit == 0 {
		aiLimit = 100
	}

	router := NewRouter(RouterDeps{
		Incidents:      service.NewIncidentService(repo, nil, m),
		Analysis:       analysis,
		Collection:     service.NewCollectionService(stubScraper{err: opts.scraperErr}),
		CollectorAuth:  service.NewCollectorAuthService(config.CollectorConfig{JWTSecret: opts.collectorToken}),
		GeneralLimiter: ratelimit.New(500, 15*time.Minute, 0),
		AILimiter:      ratelimit.New(aiLimit, 15*time.Minute, 0),
		Metrics:        m,
		Gatherer:       reg,
		CORSOrigins:    []string{"http://localhost:3000"},
		TrustedProxies: opts.trustedProxies,
	})
	return &testServer{router: router, repo: repo, gen: gen}
}

func (s *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestIncidentLifecycleEndToEnd(t *testing.T) {
	s := newTestServer(t, serverOpts{})

	older := `{"title":"Older advisory","source":"CERT-In","category":"Advisory","severity":"Low","published_date":"2024-01-01T00:00:00Z"}`
	w := s.do(http.MethodPost, "/api/incidents", older)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	before := decode[model.StatsResponse](t, w)

	payload := `{"title":"Test Incident","source":"CERT-In","category":"Alert"}`
	w = s.do(http.MethodPost, "/api/incidents", payload)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[model.IncidentCreateResponse](t, w)
	require.NotNil(t, created.Data)
	assert.False(t, created.Duplicate)

	w = s.do(http.MethodGet, "/api/incidents", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[model.IncidentListResponse](t, w)
	require.Equal(t, 2, list.Count)
	assert.Equal(t, "Test Incident", list.Data[0].Title)
	assert.Equal(t, created.Data.ID, list.Data[0].ID)
	assert.Equal(t, model.SeverityUnknown, list.Data[0].Severity)
	assert.Equal(t, model.DefaultLocation, list.Data[0].Location)

	w = s.do(http.MethodGet, "/api/stats", "")
	after := decode[model.StatsResponse](t, w)
	assert.Equal(t, before.Data.Today+1, after.Data.Today)
	assert.Equal(t, before.Data.Total+1, after.Data.Total)

	w = s.do(http.MethodPost, "/api/incidents", payload)
	require.Equal(t, http.StatusOK, w.Code)
	dup := decode[model.IncidentCreateResponse](t, w)
	assert.True(t, dup.Success)
	assert.True(t, dup.Duplicate)

	w = s.do(http.MethodGet, "/api/stats", "")
	again := decode[model.StatsResponse](t, w)
	assert.Equal(t, after.Data.Today, again.Data.Today)
	assert.Equal(t, after.Data.Total, again.Data.Total)

	var severitySum int64
	for _, sc := range again.Data.BySeverity {
		severitySum += sc.Count
	}
	assert.Equal(t, again.Data.Total, severitySum)

	w = s.do(http.MethodGet, "/api/incidents/"+created.Data.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPatch, "/api/incidents/"+created.Data.ID+"/verify", `{"verified":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	verified := decode[model.IncidentEnvelope](t, w)
	assert.True(t, verified.Data.IsVerified)

	w = s.do(http.MethodGet, "/api/incidents/search?q=test", "")
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[model.IncidentListResponse](t, w)
	assert.Equal(t, 1, found.Count)
}

func TestRejectsBadQueryParams(t *testing.T) {
	s := newTestServer(t, serverOpts{})

	for _, path := range []string{
		"/api/incidents?from_date=yesterday",
		"/api/incidents?limit=abc",
		"/api/incidents?page=0",
		"/api/incidents?severity=Severe",
		"/api/incidents?page=9223372036854775807",
		"/api/incidents?limit=501",
		"/api/incidents/search?q=apt&limit=100000",
		"/api/analysis/threat-summary?days=106751991167301",
		"/api/analysis/threat-summary?limit=501",
	} {
		w := s.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		body := decode[model.ErrorResponse](t, w)
		assert.False(t, body.Success)
		assert.NotEmpty(t, body.Error)
	}

	w := s.do(http.MethodGet, "/api/incidents?severity=all&from_date=2024-01-01", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalyzeIncidentStatusCodes(t *testing.T) {
	s := newTestServer(t, serverOpts{})

	w := s.do(http.MethodGet, "/api/analysis/incident/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/analysis/incident/8b0d8a4e-8f8e-4c55-9d3f-1f0b1d8e2a11", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/incidents", `{"title":"Phishing wave","source":"Other","category":"News"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[model.IncidentCreateResponse](t, w).Data.ID

	w = s.do(http.MethodGet, "/api/analysis/incident/"+id, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[model.IncidentAnalysisResponse](t, w)
	assert.True(t, res.Success)
	assert.Equal(t, "Elevated risk to Indian banks.", res.Analysis.RiskAssessment)
	assert.Equal(t, id, res.Incident.ID)

	// second call is served from the cache
	w = s.do(http.MethodGet, "/api/analysis/incident/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, s.gen.calls)

	s.gen.err = errors.New("Quota exceeded for this project")
	w = s.do(http.MethodGet, "/api/analysis/threat-summary", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	s.gen.err = errors.New("request timeout")
	w = s.do(http.MethodGet, "/api/analysis/insights", "")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)

	s.gen.err = errors.New("socket hang up")
	w = s.do(http.MethodGet, "/api/analysis/insights", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[model.ErrorResponse](t, w)
	assert.Contains(t, body.Message, "socket hang up")
}

func TestAnalysisUnavailable(t *testing.T) {
	s := newTestServer(t, serverOpts{noAI: true})

	w := s.do(http.MethodPost, "/api/incidents", `{"title":"Breach","source":"Other","category":"News"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[model.IncidentCreateResponse](t, w).Data.ID

	w = s.do(http.MethodGet, "/api/analysis/incident/"+id, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = s.do(http.MethodGet, "/api/analysis/threat-summary", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = s.do(http.MethodGet, "/api/analysis/insights", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(http.MethodGet, "/api/analysis/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[model.AnalysisStatusResponse](t, w)
	assert.False(t, status.Available)
	assert.Equal(t, "Google Gemini AI", status.Service)
}

func TestThreatSummaryWithoutIncidents(t *testing.T) {
	s := newTestServer(t, serverOpts{})

	w := s.do(http.MethodGet, "/api/analysis/threat-summary?days=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[map[string]any](t, w)
	assert.Equal(t, true, res["success"])
	assert.Nil(t, res["summary"])
	assert.Equal(t, 0, s.gen.calls)
}

func TestAIRateLimit(t *testing.T) {
	s := newTestServer(t, serverOpts{aiLimit: 2})

	for i := 0; i < 2; i++ {
		w := s.do(http.MethodGet, "/api/analysis/threat-summary", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("RateLimit-Remaining"))
	}
	w := s.do(http.MethodGet, "/api/analysis/threat-summary", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("RateLimit-Remaining"))

	// status and plain endpoints are not behind the AI limiter
	w = s.do(http.MethodGet, "/api/analysis/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAIRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	s := newTestServer(t, serverOpts{aiLimit: 2})

	var codes []int
	for i := 0; i < 6; i++ {
		w := s.do(http.MethodGet, "/api/analysis/threat-summary", "",
			"X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i+1))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429, 429, 429, 429}, codes)
}

func TestAIRateLimitHonorsTrustedProxy(t *testing.T) {
	// httptest requests arrive from 192.0.2.1
	s := newTestServer(t, serverOpts{aiLimit: 1, trustedProxies: []string{"192.0.2.1"}})

	w := s.do(http.MethodGet, "/api/analysis/threat-summary", "", "X-Forwarded-For", "203.0.113.7")
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/api/analysis/threat-summary", "", "X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	w = s.do(http.MethodGet, "/api/analysis/threat-summary", "", "X-Forwarded-For", "203.0.113.8")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCollectorAuthRequiredWhenConfigured(t *testing.T) {
	s := newTestServer(t, serverOpts{collectorToken: "s3cret"})
	auth := service.NewCollectorAuthService(config.CollectorConfig{JWTSecret: "s3cret"})
	token, err := auth.IssueToken("cert-in-scraper", time.Hour)
	require.NoError(t, err)

	payload := `{"title":"Auth check","source":"CERT-In","category":"Alert"}`
	w := s.do(http.MethodPost, "/api/incidents", payload)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/incidents", payload, "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/incidents", payload, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodPost, "/api/collection/trigger", "", "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	trig := decode[model.CollectionTriggerResponse](t, w)
	assert.JSONEq(t, `{"status":"started"}`, string(trig.PythonResponse))

	// reads stay open
	w = s.do(http.MethodGet, "/api/incidents", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCollectionProxy(t *testing.T) {
	s := newTestServer(t, serverOpts{})

	w := s.do(http.MethodGet, "/api/collection/sources", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["cert-in","news"]`, string(decode[model.CollectionSourcesResponse](t, w).Sources))

	w = s.do(http.MethodPost, "/api/incidents/collect", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/collection/trigger", decode[model.CollectRedirectResponse](t, w).Redirect)

	failing := newTestServer(t, serverOpts{scraperErr: errors.New("scraper returned status 502: bad gateway")})
	w = failing.do(http.MethodGet, "/api/collection/status", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode[model.ErrorResponse](t, w).Message, "502")
}

func TestHealthMetricsAndDocs(t *testing.T) {
	s := newTestServer(t, serverOpts{})

	for _, path := range []string{"/health", "/api/health"} {
		w := s.do(http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode[model.HealthResponse](t, w).Success)
	}

	w := s.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")

	w = s.do(http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/analysis/incident/{id}")

	w = s.do(http.MethodOptions, "/api/incidents", "", "Origin", "http://localhost:3000")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
