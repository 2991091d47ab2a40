package core

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSender struct {
	result SenderResult
	delay  time.Duration
	panics bool
}

func (s *stubSender) AnalyzeSender(ctx context.Context, _ *EmailFacts) SenderResult {
	if s.panics {
		panic("sender analyzer fault")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	return s.result
}

type stubContent struct{ result ContentResult }

func (s *stubContent) AnalyzeContent(_ *EmailFacts) ContentResult { return s.result }

type stubURLs struct{ result UrlAnalysis }

func (s *stubURLs) AnalyzeURLs(_ context.Context, _ []string) UrlAnalysis { return s.result }

type stubAttachments struct{ result AttachmentAnalysis }

func (s *stubAttachments) ClassifyAttachments(_ []AttachmentFacts) AttachmentAnalysis {
	return s.result
}

type stubCache struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry
}

func newStubCache() *stubCache {
	return &stubCache{entries: map[string]*CacheEntry{}}
}

func (c *stubCache) Get(_ context.Context, key string) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return entry, nil
}

func (c *stubCache) Set(_ context.Context, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Key] = entry
	return nil
}

func (c *stubCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *stubCache) Cleanup(_ context.Context) error { return nil }

func newTestService(sender SenderAnalyzer, cache CacheRepository, cacheEnabled bool, timeout time.Duration) *ThreatService {
	return NewThreatService(
		sender,
		&stubContent{},
		&stubURLs{},
		&stubAttachments{},
		cache,
		zap.NewNop(),
		cacheEnabled,
		timeout,
	)
}

func testFacts() *EmailFacts {
	return &EmailFacts{
		Sender:  "alice@example.com",
		Subject: "Hello",
		Body:    "Just checking in about the meeting tomorrow.",
	}
}

func TestAnalyzeProducesStampedReport(t *testing.T) {
	svc := newTestService(&stubSender{result: SenderResult{SPF: AuthPass, DMARC: AuthPass}}, nil, false, time.Second)

	report := svc.Analyze(context.Background(), testFacts())

	require.NotNil(t, report)
	assert.Equal(t, LevelSafe, report.Verdict.Level)
	assert.NotEmpty(t, report.Verdict.ProcessingID)
	assert.False(t, report.Verdict.AnalyzedAt.IsZero())
}

func TestAnalyzeNilFactsYieldsDefaultVerdict(t *testing.T) {
	svc := newTestService(&stubSender{}, nil, false, time.Second)

	report := svc.Analyze(context.Background(), nil)

	require.NotNil(t, report)
	assert.Equal(t, 50, report.Verdict.Score)
	assert.Equal(t, LevelSuspicious, report.Verdict.Level)
	require.Len(t, report.Verdict.Reasons, 1)
	assert.True(t, strings.HasPrefix(report.Verdict.Reasons[0], "Analysis incomplete:"))
}

func TestAnalyzeTimeoutYieldsDefaultVerdict(t *testing.T) {
	slow := &stubSender{delay: 500 * time.Millisecond}
	svc := newTestService(slow, nil, false, 20*time.Millisecond)

	report := svc.Analyze(context.Background(), testFacts())

	require.NotNil(t, report)
	assert.Equal(t, 50, report.Verdict.Score)
	assert.Equal(t, LevelSuspicious, report.Verdict.Level)
	require.Len(t, report.Verdict.Reasons, 1)
	assert.True(t, strings.HasPrefix(report.Verdict.Reasons[0], "Analysis incomplete:"))
	// Partial analyzer output never leaks into a degraded report.
	assert.Empty(t, report.Sender.Address)
	assert.Empty(t, report.URLs.Results)
}

func TestAnalyzePanicInAnalyzerStillYieldsVerdict(t *testing.T) {
	svc := newTestService(&stubSender{panics: true}, nil, false, time.Second)

	report := svc.Analyze(context.Background(), testFacts())

	require.NotNil(t, report)
	assert.GreaterOrEqual(t, report.Verdict.Score, 0)
	assert.LessOrEqual(t, report.Verdict.Score, 100)
	assert.NotEmpty(t, report.Verdict.Level)
}

func TestAnalyzeVerdictIsStableAcrossRuns(t *testing.T) {
	sender := &stubSender{result: SenderResult{SPF: AuthFail, DMARC: AuthFail}}
	svc := newTestService(sender, nil, false, time.Second)

	first := svc.Analyze(context.Background(), testFacts())
	second := svc.Analyze(context.Background(), testFacts())

	// Provenance differs per run, scoring does not.
	assert.Equal(t, first.Verdict.Score, second.Verdict.Score)
	assert.Equal(t, first.Verdict.Level, second.Verdict.Level)
	assert.Equal(t, first.Verdict.Reasons, second.Verdict.Reasons)
	assert.NotEqual(t, first.Verdict.ProcessingID, second.Verdict.ProcessingID)
}

func TestAnalyzeUsesCache(t *testing.T) {
	cache := newStubCache()
	sender := &stubSender{result: SenderResult{SPF: AuthFail, DMARC: AuthFail}}
	svc := newTestService(sender, cache, true, time.Second)

	first := svc.Analyze(context.Background(), testFacts())

	// A second call must be served from the cache, identical stamp included.
	second := svc.Analyze(context.Background(), testFacts())
	assert.Equal(t, first.Verdict.ProcessingID, second.Verdict.ProcessingID)
	assert.Equal(t, first.Verdict.Score, second.Verdict.Score)
}

func TestAnalyzeCacheDisabled(t *testing.T) {
	cache := newStubCache()
	svc := newTestService(&stubSender{}, cache, false, time.Second)

	svc.Analyze(context.Background(), testFacts())

	assert.Empty(t, cache.entries)
}

func TestCacheTTLByKeyPrefix(t *testing.T) {
	tests := []struct {
		key string
		ttl time.Duration
	}{
		{"domain:example.com", 24 * time.Hour},
		{"ip:203.0.113.7", 12 * time.Hour},
		{"url:https://example.com", 6 * time.Hour},
		{"email:alice@example.com", time.Hour},
		{"something:else", time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.ttl, CacheTTL(tt.key))
		})
	}
}
