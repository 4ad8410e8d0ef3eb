package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cyberwatch-india/backend/internal/config"
	"github.com/cyberwatch-india/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAnalysis = `1. Risk Assessment: Ransomware operators are actively targeting Indian healthcare providers with double extortion.
2. Affected Sectors: Healthcare, pharmaceuticals and the insurance companies that process patient data.
3. Recommended Actions: Patch exposed VPN appliances, enforce MFA and rehearse offline backup restoration.
4. Threat Level: High
5. Key Insights: Initial access is bought from brokers, so credential hygiene is the cheapest control to improve.`

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int32
	errs    []error
	text    string
	delay   time.Duration
	prompts []string
	callAt  []time.Time
}

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	n := atomic.AddInt32(&f.calls, 1)

	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.callAt = append(f.callAt, time.Now())
	var err error
	if int(n) <= len(f.errs) {
		err = f.errs[n-1]
	}
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return f.text, nil
}

func (f *fakeGenerator) Model() string { return "fake-model" }

func (f *fakeGenerator) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

type countingClassifier struct {
	calls int32
}

func (c *countingClassifier) Classify(err error) error {
	atomic.AddInt32(&c.calls, 1)
	return SubstringClassifier{}.Classify(err)
}

func testAIConfig() config.AIConfig {
	return config.AIConfig{
		APIKey:         "test",
		Model:          "gemini-1.5-flash",
		MaxRetries:     3,
		Timeout:        time.Second,
		CacheTTL:       time.Minute,
		CacheSize:      100,
		RateLimitDelay: 0,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
	}
}

func testIncident(id string) model.Incident {
	return model.Incident{
		ID:            id,
		Title:         "Ransomware hits hospital network",
		Description:   "Systems encrypted at a tertiary care hospital.",
		Source:        model.SourceCERTIn,
		Category:      model.CategoryAlert,
		Severity:      model.SeverityHigh,
		Location:      model.DefaultLocation,
		PublishedDate: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC),
	}
}

func TestAnalyzeIncidentExtractsSections(t *testing.T) {
	gen := &fakeGenerator{text: sampleAnalysis}
	svc := NewAnalysisService(gen, testAIConfig(), nil, nil)

	res, err := svc.AnalyzeIncident(context.Background(), testIncident("a1"))
	require.NoError(t, err)

	assert.Equal(t, "High", res.ThreatLevel)
	assert.True(t, strings.HasPrefix(res.RiskAssessment, "Ransomware operators"))
	assert.True(t, strings.HasPrefix(res.AffectedSectors, "Healthcare"))
	assert.Equal(t, sampleAnalysis, res.FullAnalysis)
	// Threat Level is too short to count as complete.
	assert.Equal(t, 80, res.Confidence)
	assert.False(t, res.GeneratedAt.IsZero())

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Title: Ransomware hits hospital network")
	assert.Contains(t, gen.prompts[0], "Source: CERT-In")
	assert.Contains(t, gen.prompts[0], "Indian organizations")
}

func TestAnalyzeIncidentCachesByIdentityAndUpdateTime(t *testing.T) {
	gen := &fakeGenerator{text: sampleAnalysis}
	svc := NewAnalysisService(gen, testAIConfig(), nil, nil)
	ctx := context.Background()
	inc := testIncident("a1")

	_, err := svc.AnalyzeIncident(ctx, inc)
	require.NoError(t, err)
	_, err = svc.AnalyzeIncident(ctx, inc)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.Calls())
	assert.Equal(t, 1, svc.ServiceInfo().CacheSize)

	inc.UpdatedAt = inc.UpdatedAt.Add(time.Second)
	_, err = svc.AnalyzeIncident(ctx, inc)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.Calls())
}

func TestCancelledCallerDoesNotFailSharedAnalysis(t *testing.T) {
	gen := &fakeGenerator{text: sampleAnalysis, delay: 200 * time.Millisecond}
	svc := NewAnalysisService(gen, testAIConfig(), nil, nil)
	inc := testIncident("a1")

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.AnalyzeIncident(leaderCtx, inc)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return gen.Calls() == 1 }, time.Second, time.Millisecond)

	followerRes := make(chan *model.IncidentAnalysis, 1)
	followerErr := make(chan error, 1)
	go func() {
		res, err := svc.AnalyzeIncident(context.Background(), inc)
		followerRes <- res
		followerErr <- err
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	res := <-followerRes
	require.NoError(t, <-followerErr)
	assert.Equal(t, "High", res.ThreatLevel)
	assert.Equal(t, 1, gen.Calls())
}

func TestAnalyzeIncidentCacheExpires(t *testing.T) {
	cfg := testAIConfig()
	cfg.CacheTTL = 50 * time.Millisecond
	gen := &fakeGenerator{text: sampleAnalysis}
	svc := NewAnalysisService(gen, cfg, nil, nil)
	ctx := context.Background()
	inc := testIncident("a1")

	_, err := svc.AnalyzeIncident(ctx, inc)
	require.NoError(t, err)
	_, err = svc.AnalyzeIncident(ctx, inc)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.Calls())

	time.Sleep(120 * time.Millisecond)

	_, err = svc.AnalyzeIncident(ctx, inc)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.Calls())
}

func TestAnalysisCacheEvictsOldestFirst(t *testing.T) {
	cfg := testAIConfig()
	cfg.CacheSize = 2
	gen := &fakeGenerator{text: sampleAnalysis}
	svc := NewAnalysisService(gen, cfg, nil, nil)
	ctx := context.Background()

	for _, id := range []string{"a1", "a2"} {
		_, err := svc.AnalyzeIncident(ctx, testIncident(id))
		require.NoError(t, err)
	}
	// Reading a1 again must not protect it from eviction.
	_, err := svc.AnalyzeIncident(ctx, testIncident("a1"))
	require.NoError(t, err)
	_, err = svc.AnalyzeIncident(ctx, testIncident("a3"))
	require.NoError(t, err)
	assert.Equal(t, 3, gen.Calls())

	_, err = svc.AnalyzeIncident(ctx, testIncident("a2"))
	require.NoError(t, err)
	assert.Equal(t, 3, gen.Calls())

	_, err = svc.AnalyzeIncident(ctx, testIncident("a1"))
	require.NoError(t, err)
	assert.Equal(t, 4, gen.Calls())
}

func TestAnalyzeIncidentValidationShortCircuits(t *testing.T) {
	gen := &fakeGenerator{text: sampleAnalysis}
	svc := NewAnalysisService(gen, testAIConfig(), nil, nil)
	ctx := context.Background()

	noTitle := testIncident("a1")
	noTitle.Title = "   "
	longTitle := testIncident("a1")
	longTitle.Title = strings.Repeat("t", 1001)
	longDesc := testIncident("a1")
	longDesc.Description = strings.Repeat("d", 5001)
	noID := testIncident("")

	for _, inc := range []model.Incident{noTitle, longTitle, longDesc, noID} {
		_, err := svc.AnalyzeIncident(ctx, inc)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Equal(t, 0, gen.Calls())
}

func TestAnalysisUnavailableWithoutGenerator(t *testing.T) {
	svc := NewAnalysisService(nil, testAIConfig(), nil, nil)
	ctx := context.Background()

	assert.False(t, svc.IsAvailable())

	_, err := svc.AnalyzeIncident(ctx, testIncident("a1"))
	assert.ErrorIs(t, err, ErrAIUnavailable)
	_, err = svc.GenerateThreatSummary(ctx, []model.Incident{testIncident("a1")})
	assert.ErrorIs(t, err, ErrAIUnavailable)
	_, err = svc.GenerateIncidentInsights(ctx, model.InsightsInput{})
	assert.ErrorIs(t, err, ErrAIUnavailable)

	info := svc.ServiceInfo()
	assert.False(t, info.Available)
	assert.Equal(t, "gemini-1.5-flash", info.Model)
	assert.Nil(t, info.LastRequestTime)
}

func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	gen := &fakeGenerator{
		text: sampleAnalysis,
		errs: []error{errors.New("503 backend error"), errors.New("503 backend error")},
	}
	classifier := &countingClassifier{}
	svc := NewAnalysisService(gen, testAIConfig(), classifier, nil)

	res, err := svc.AnalyzeIncident(context.Background(), testIncident("a1"))
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 3, gen.Calls())
	assert.Equal(t, int32(0), atomic.LoadInt32(&classifier.calls))
}

func TestRetryExhaustedReturnsClassifiedLastError(t *testing.T) {
	gen := &fakeGenerator{
		errs: []error{
			errors.New("backend error"),
			errors.New("backend error"),
			errors.New("Quota exceeded for requests per minute"),
		},
	}
	classifier := &countingClassifier{}
	svc := NewAnalysisService(gen, testAIConfig(), classifier, nil)

	_, err := svc.AnalyzeIncident(context.Background(), testIncident("a1"))
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 3, gen.Calls())
	assert.Equal(t, int32(1), atomic.LoadInt32(&classifier.calls))
	assert.Equal(t, 0, svc.ServiceInfo().CacheSize)
}

func TestAttemptTimeoutIsClassifiedAsTimeout(t *testing.T) {
	cfg := testAIConfig()
	cfg.MaxRetries = 2
	cfg.Timeout = 20 * time.Millisecond
	gen := &fakeGenerator{text: sampleAnalysis, delay: time.Second}
	svc := NewAnalysisService(gen, cfg, nil, nil)

	start := time.Now()
	_, err := svc.AnalyzeIncident(context.Background(), testIncident("a1"))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 2, gen.Calls())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRequestsAreSpacedByRateLimitDelay(t *testing.T) {
	cfg := testAIConfig()
	cfg.RateLimitDelay = 80 * time.Millisecond
	gen := &fakeGenerator{text: sampleAnalysis}
	svc := NewAnalysisService(gen, cfg, nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []string{"a1", "a2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.AnalyzeIncident(ctx, testIncident(id))
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	require.Len(t, gen.callAt, 2)
	gap := gen.callAt[1].Sub(gen.callAt[0])
	if gap < 0 {
		gap = -gap
	}
	assert.GreaterOrEqual(t, gap, 75*time.Millisecond)
	assert.NotNil(t, svc.ServiceInfo().LastRequestTime)
}

func TestGenerateThreatSummary(t *testing.T) {
	text := "1. Overall Threat Landscape: Phishing campaigns against banks remain the dominant threat vector this week.\n" +
		"2. Trending Threats: Credential theft\n3. Sector Analysis: Banking\n4. Recommendations: Train staff\n5. Future Outlook: Stable"
	gen := &fakeGenerator{text: text}
	svc := NewAnalysisService(gen, testAIConfig(), nil, nil)
	ctx := context.Background()

	var incidents []model.Incident
	for _, id := range []string{"k", "j", "i", "h", "g", "f", "e", "d", "c", "b", "a"} {
		incidents = append(incidents, testIncident(id))
	}

	res, err := svc.GenerateThreatSummary(ctx, incidents)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.ThreatLandscape, "Phishing campaigns"))
	assert.Equal(t, "Credential theft", res.TrendingThreats)
	assert.Equal(t, 20, res.Confidence)

	require.Len(t, gen.prompts, 1)
	assert.Equal(t, 10, strings.Count(gen.prompts[0], "- Ransomware hits hospital network (High) - CERT-In"))

	// Same first ten in a different order hit the cache.
	reordered := append([]model.Incident{}, incidents[:10]...)
	reordered[0], reordered[9] = reordered[9], reordered[0]
	_, err = svc.GenerateThreatSummary(ctx, reordered)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.Calls())

	_, err = svc.GenerateThreatSummary(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGenerateIncidentInsightsIsNotCached(t *testing.T) {
	gen := &fakeGenerator{text: "1. Pattern Analysis: Repeated phishing.\n2. Risk Correlation: Linked"}
	svc := NewAnalysisService(gen, testAIConfig(), nil, nil)
	ctx := context.Background()

	input := model.InsightsInput{
		RecentIncidents: []model.Incident{testIncident("a1")},
		Statistics:      &model.IncidentStats{Total: 4, Today: 1, Recent: 2},
		TimeRange:       "Recent incidents",
	}

	res, err := svc.GenerateIncidentInsights(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "Repeated phishing.", res.PatternAnalysis)
	assert.Equal(t, "Linked", res.RiskCorrelation)

	_, err = svc.GenerateIncidentInsights(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.Calls())
	assert.Contains(t, gen.prompts[0], `"timeRange": "Recent incidents"`)
	assert.Contains(t, gen.prompts[0], `"total": 4`)
}

func TestBackoffDelay(t *testing.T) {
	base, ceiling := time.Second, 10*time.Second
	assert.Equal(t, time.Second, backoffDelay(1, base, ceiling))
	assert.Equal(t, 2*time.Second, backoffDelay(2, base, ceiling))
	assert.Equal(t, 4*time.Second, backoffDelay(3, base, ceiling))
	assert.Equal(t, 8*time.Second, backoffDelay(4, base, ceiling))
	assert.Equal(t, 10*time.Second, backoffDelay(5, base, ceiling))
	assert.Equal(t, 10*time.Second, backoffDelay(30, base, ceiling))
}
