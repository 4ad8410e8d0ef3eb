package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cyberwatch-india/backend/internal/config"
	"github.com/cyberwatch-india/backend/internal/metrics"
	"github.com/cyberwatch-india/backend/internal/model"
	tmpl "github.com/cyberwatch-india/backend/internal/template"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	maxTitleLength       = 1000
	maxDescriptionLength = 5000
	summaryIncidentLimit = 10

	defaultAICacheSize = 100
)

// TextGenerator is the generative model the gateway talks to.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	Model() string
}

// AnalysisService turns incidents into structured threat analysis.
// Every instance owns its cache, request spacing and in-flight group.
type AnalysisService struct {
	gen        TextGenerator
	cfg        config.AIConfig
	classifier ErrorClassifier
	metrics    *metrics.Metrics

	cache   *expirable.LRU[string, any]
	spacer  *requestSpacer
	flights singleflight.Group
}

// NewAnalysisService builds the gateway. gen may be nil when no API key is
// configured, in which case every operation reports ErrAIUnavailable.
func NewAnalysisService(gen TextGenerator, cfg config.AIConfig, classifier ErrorClassifier, m *metrics.Metrics) *AnalysisService {
	if classifier == nil {
		classifier = SubstringClassifier{}
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultAICacheSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &AnalysisService{
		gen:        gen,
		cfg:        cfg,
		classifier: classifier,
		metrics:    m,
		cache:      expirable.NewLRU[string, any](size, nil, cfg.CacheTTL),
		spacer:     &requestSpacer{delay: cfg.RateLimitDelay},
	}
}

func (s *AnalysisService) IsAvailable() bool {
	return s.gen != nil
}

// AnalyzeIncident produces the five-section analysis of one incident.
// Results are cached per incident id and last update time.
func (s *AnalysisService) AnalyzeIncident(ctx context.Context, inc model.Incident) (*model.IncidentAnalysis, error) {
	const op = "analyze_incident"

	if err := validateForAnalysis(inc); err != nil {
		s.metrics.AIRequest(op, "invalid")
		return nil, err
	}
	if !s.IsAvailable() {
		s.metrics.AIRequest(op, "unavailable")
		return nil, ErrAIUnavailable
	}

	key := "incident:" + inc.ID + ":" + strconv.FormatInt(inc.UpdatedAt.UnixNano(), 10)
	if cached, ok := s.cache.Peek(key); ok {
		s.metrics.AICacheHit(op)
		s.metrics.AIRequest(op, "success")
		res := cached.(model.IncidentAnalysis)
		return &res, nil
	}

	v, err := s.shared(ctx, key, func(ctx context.Context) (any, error) {
		data := tmpl.IncidentDataFromModel(inc)
		if strings.TrimSpace(data.Description) == "" {
			data.Description = "No description available"
		}
		text, err := s.generate(ctx, tmpl.RenderBody(incidentAnalysisPrompt, &data, nil))
		if err != nil {
			return nil, err
		}
		sec := extractSections(text, incidentAnalysisLabels)
		res := model.IncidentAnalysis{
			RiskAssessment:     sec[0],
			AffectedSectors:    sec[1],
			RecommendedActions: sec[2],
			ThreatLevel:        sec[3],
			KeyInsights:        sec[4],
			FullAnalysis:       text,
			Confidence:         confidence(sec),
			GeneratedAt:        time.Now().UTC(),
		}
		s.cache.Add(key, res)
		return res, nil
	})
	if err != nil {
		log.Printf("[Analysis] Failed to analyze incident %s: %v", inc.ID, err)
		s.metrics.AIRequest(op, "error")
		return nil, s.HandleError(err)
	}
	s.metrics.AIRequest(op, "success")
	res := v.(model.IncidentAnalysis)
	return &res, nil
}

// GenerateThreatSummary summarises up to the first ten incidents.
func (s *AnalysisService) GenerateThreatSummary(ctx context.Context, incidents []model.Incident) (*model.ThreatSummary, error) {
	const op = "threat_summary"

	if len(incidents) == 0 {
		s.metrics.AIRequest(op, "invalid")
		return nil, fmt.Errorf("%w: incidents must be a non-empty list", ErrInvalidInput)
	}
	if !s.IsAvailable() {
		s.metrics.AIRequest(op, "unavailable")
		return nil, ErrAIUnavailable
	}

	head := incidents
	if len(head) > summaryIncidentLimit {
		head = head[:summaryIncidentLimit]
	}

	key := summaryCacheKey(head)
	if cached, ok := s.cache.Peek(key); ok {
		s.metrics.AICacheHit(op)
		s.metrics.AIRequest(op, "success")
		res := cached.(model.ThreatSummary)
		return &res, nil
	}

	v, err := s.shared(ctx, key, func(ctx context.Context) (any, error) {
		lines := make([]string, 0, len(head))
		for _, inc := range head {
			lines = append(lines, fmt.Sprintf("- %s (%s) - %s", inc.Title, inc.Severity, inc.Source))
		}
		prompt := tmpl.RenderBody(threatSummaryPrompt, nil, map[string]string{
			"incidents": strings.Join(lines, "\n"),
		})
		text, err := s.generate(ctx, prompt)
		if err != nil {
			return nil, err
		}
		sec := extractSections(text, threatSummaryLabels)
		res := model.ThreatSummary{
			ThreatLandscape: sec[0],
			TrendingThreats: sec[1],
			SectorAnalysis:  sec[2],
			Recommendations: sec[3],
			FutureOutlook:   sec[4],
			FullSummary:     text,
			Confidence:      confidence(sec),
			GeneratedAt:     time.Now().UTC(),
		}
		s.cache.Add(key, res)
		return res, nil
	})
	if err != nil {
		log.Printf("[Analysis] Failed to generate threat summary: %v", err)
		s.metrics.AIRequest(op, "error")
		return nil, s.HandleError(err)
	}
	s.metrics.AIRequest(op, "success")
	res := v.(model.ThreatSummary)
	return &res, nil
}

// GenerateIncidentInsights always calls the model; insights are not cached.
func (s *AnalysisService) GenerateIncidentInsights(ctx context.Context, input model.InsightsInput) (*model.IncidentInsights, error) {
	const op = "insights"

	if !s.IsAvailable() {
		s.metrics.AIRequest(op, "unavailable")
		return nil, ErrAIUnavailable
	}
	if input.RecentIncidents == nil {
		input.RecentIncidents = []model.Incident{}
	}

	data, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		s.metrics.AIRequest(op, "invalid")
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	text, err := s.generate(ctx, tmpl.RenderBody(incidentInsightsPrompt, nil, map[string]string{"data": string(data)}))
	if err != nil {
		log.Printf("[Analysis] Failed to generate incident insights: %v", err)
		s.metrics.AIRequest(op, "error")
		return nil, s.HandleError(err)
	}
	s.metrics.AIRequest(op, "success")

	sec := extractSections(text, incidentInsightsLabels)
	return &model.IncidentInsights{
		PatternAnalysis:      sec[0],
		RiskCorrelation:      sec[1],
		ImpactPrediction:     sec[2],
		MitigationStrategies: sec[3],
		IntelligenceSummary:  sec[4],
		FullInsights:         text,
		Confidence:           confidence(sec),
		GeneratedAt:          time.Now().UTC(),
	}, nil
}

func (s *AnalysisService) ServiceInfo() model.AnalysisServiceInfo {
	modelName := s.cfg.Model
	if s.gen != nil {
		modelName = s.gen.Model()
	}
	return model.AnalysisServiceInfo{
		Available:       s.IsAvailable(),
		Model:           modelName,
		CacheSize:       s.cache.Len(),
		LastRequestTime: s.spacer.Last(),
		Configuration: model.AnalysisConfiguration{
			MaxRetries:     s.cfg.MaxRetries,
			TimeoutMS:      s.cfg.Timeout.Milliseconds(),
			CacheTimeoutMS: s.cfg.CacheTTL.Milliseconds(),
			RateLimitMS:    s.cfg.RateLimitDelay.Milliseconds(),
		},
	}
}

// HandleError classifies a failed model call. Errors that already carry a
// gateway kind, and caller cancellation, are returned unchanged.
func (s *AnalysisService) HandleError(err error) error {
	if err == nil || isClassified(err) {
		return err
	}
	return s.classifier.Classify(err)
}

// shared collapses concurrent calls for key into one upstream call. The call
// runs detached from any single caller, bounded by the per-attempt timeout
// and retry count; each caller stops waiting when its own context ends.
func (s *AnalysisService) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// generate waits for a request slot and calls the model with retries.
func (s *AnalysisService) generate(ctx context.Context, prompt string) (string, error) {
	if err := s.spacer.Wait(ctx); err != nil {
		return "", err
	}
	return s.withRetry(ctx, prompt)
}

func (s *AnalysisService) withRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		text, err := s.attempt(ctx, prompt)
		if err == nil {
			s.metrics.AIUpstreamCall("success")
			return text, nil
		}
		s.metrics.AIUpstreamCall("error")
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt == s.cfg.MaxRetries {
			break
		}

		wait := backoffDelay(attempt, s.cfg.RetryBaseDelay, s.cfg.RetryMaxDelay)
		log.Printf("[Analysis] Attempt %d/%d failed, retrying in %s: %v", attempt, s.cfg.MaxRetries, wait, err)
		if err := sleepContext(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

// attempt races a single model call against the per-attempt timeout.
func (s *AnalysisService) attempt(ctx context.Context, prompt string) (string, error) {
	actx := ctx
	cancel := context.CancelFunc(func() {})
	if s.cfg.Timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
	}
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := s.gen.GenerateText(actx, prompt)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-actx.Done():
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("request timeout after %s", s.cfg.Timeout)
	}
}

// backoffDelay is min(base * 2^(attempt-1), ceiling).
func backoffDelay(attempt int, base, ceiling time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if ceiling > 0 && d >= ceiling {
			return ceiling
		}
	}
	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	return d
}

func summaryCacheKey(incidents []model.Incident) string {
	ids := make([]string, 0, len(incidents))
	for _, inc := range incidents {
		ids = append(ids, inc.ID)
	}
	sort.Strings(ids)
	return "summary:" + strings.Join(ids, ",")
}

func validateForAnalysis(inc model.Incident) error {
	switch {
	case inc.ID == "":
		return fmt.Errorf("%w: incident must have an id", ErrInvalidInput)
	case strings.TrimSpace(inc.Title) == "":
		return fmt.Errorf("%w: incident title is required", ErrInvalidInput)
	case utf8.RuneCountInString(inc.Title) > maxTitleLength:
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidInput, maxTitleLength)
	case utf8.RuneCountInString(inc.Description) > maxDescriptionLength:
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidInput, maxDescriptionLength)
	}
	return nil
}

// requestSpacer keeps consecutive model requests at least delay apart.
// Each caller reserves its slot under the lock, then sleeps outside it.
type requestSpacer struct {
	mu    sync.Mutex
	delay time.Duration
	next  time.Time
	last  time.Time
}

func (r *requestSpacer) Wait(ctx context.Context) error {
	r.mu.Lock()
	at := time.Now()
	if r.next.After(at) {
		at = r.next
	}
	r.next = at.Add(r.delay)
	r.last = at
	r.mu.Unlock()

	return sleepContext(ctx, time.Until(at))
}

// Last returns the most recently reserved request time, nil before the first request.
func (r *requestSpacer) Last() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last.IsZero() {
		return nil
	}
	t := r.last
	return &t
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
