package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ThreatService orchestrates the four analyzers and the aggregator. The
// analyzers share no mutable state, so they always run concurrently; the
// whole analysis is bounded by a caller-configurable timeout and degrades
// to a default SUSPICIOUS verdict instead of hanging or failing.
type ThreatService struct {
	sender       SenderAnalyzer
	content      ContentAnalyzer
	urls         URLRiskAnalyzer
	attachments  AttachmentClassifier
	cache        CacheRepository
	logger       *zap.Logger
	cacheEnabled bool
	timeout      time.Duration
}

// NewThreatService creates a new threat scoring service.
func NewThreatService(
	sender SenderAnalyzer,
	content ContentAnalyzer,
	urls URLRiskAnalyzer,
	attachments AttachmentClassifier,
	cache CacheRepository,
	logger *zap.Logger,
	cacheEnabled bool,
	timeout time.Duration,
) *ThreatService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ThreatService{
		sender:       sender,
		content:      content,
		urls:         urls,
		attachments:  attachments,
		cache:        cache,
		logger:       logger,
		cacheEnabled: cacheEnabled,
		timeout:      timeout,
	}
}

// analyzerOutputs carries the fan-in results. Partial outputs are
// discarded on timeout, never merged into a verdict.
type analyzerOutputs struct {
	sender      SenderResult
	content     ContentResult
	urls        UrlAnalysis
	attachments AttachmentAnalysis
}

// Analyze produces a full threat report for one email. It never returns
// an error: every failure mode is converted into a well-formed verdict.
func (s *ThreatService) Analyze(ctx context.Context, facts *EmailFacts) *ThreatReport {
	if facts == nil {
		report := &ThreatReport{Verdict: DefaultVerdict("Analysis incomplete: no email data provided")}
		s.stamp(report)
		return report
	}

	cacheKey := "email:" + facts.Sender
	if cached := s.cachedReport(ctx, cacheKey); cached != nil {
		s.logger.Debug("Cache hit for sender", zap.String("sender", facts.Sender))
		return cached
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outputs, err := s.runAnalyzers(ctx, facts)
	if err != nil {
		s.logger.Warn("Analysis degraded to default verdict",
			zap.String("sender", facts.Sender),
			zap.Error(err))
		report := &ThreatReport{Verdict: DefaultVerdict(fmt.Sprintf("Analysis incomplete: %v", err))}
		s.stamp(report)
		return report
	}

	report := &ThreatReport{
		Sender:      outputs.sender,
		Content:     outputs.content,
		URLs:        outputs.urls,
		Attachments: outputs.attachments,
	}
	report.Verdict = s.aggregate(outputs, facts.Metadata)
	s.stamp(report)

	s.storeReport(ctx, cacheKey, report)

	s.logger.Info("Email analyzed",
		zap.String("sender", facts.Sender),
		zap.Int("score", report.Verdict.Score),
		zap.String("level", string(report.Verdict.Level)))

	return report
}

// runAnalyzers fans the four analyzers out on goroutines and waits for
// all of them or the context deadline, whichever comes first.
func (s *ThreatService) runAnalyzers(ctx context.Context, facts *EmailFacts) (analyzerOutputs, error) {
	var out analyzerOutputs

	done := make(chan struct{})
	go func() {
		defer close(done)

		results := make(chan func(*analyzerOutputs), 4)

		run := func(name string, fn func() func(*analyzerOutputs)) {
			go func() {
				defer func() {
					if r := recover(); r != nil {
						s.logger.Error("Analyzer panicked",
							zap.String("analyzer", name),
							zap.Any("panic", r))
						results <- func(*analyzerOutputs) {}
					}
				}()
				results <- fn()
			}()
		}

		run("sender", func() func(*analyzerOutputs) {
			r := s.sender.AnalyzeSender(ctx, facts)
			return func(o *analyzerOutputs) { o.sender = r }
		})
		run("content", func() func(*analyzerOutputs) {
			r := s.content.AnalyzeContent(facts)
			return func(o *analyzerOutputs) { o.content = r }
		})
		run("urls", func() func(*analyzerOutputs) {
			r := s.urls.AnalyzeURLs(ctx, facts.URLs)
			return func(o *analyzerOutputs) { o.urls = r }
		})
		run("attachments", func() func(*analyzerOutputs) {
			r := s.attachments.ClassifyAttachments(facts.Attachments)
			return func(o *analyzerOutputs) { o.attachments = r }
		})

		for i := 0; i < 4; i++ {
			apply := <-results
			apply(&out)
		}
	}()

	select {
	case <-done:
		return out, nil
	case <-ctx.Done():
		return analyzerOutputs{}, ctx.Err()
	}
}

// aggregate wraps the pure aggregator with panic recovery so an
// unexpected fault in scoring still yields a verdict.
func (s *ThreatService) aggregate(outputs analyzerOutputs, meta Metadata) (verdict ThreatVerdict) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Aggregation panicked", zap.Any("panic", r))
			verdict = DefaultVerdict(fmt.Sprintf("Analysis incomplete: %v", r))
		}
	}()
	return Aggregate(outputs.sender, outputs.content, outputs.urls, outputs.attachments, meta)
}

// stamp fills provenance fields on the verdict.
func (s *ThreatService) stamp(report *ThreatReport) {
	report.Verdict.ProcessingID = uuid.NewString()
	report.Verdict.AnalyzedAt = time.Now().UTC()
}

func (s *ThreatService) cachedReport(ctx context.Context, key string) *ThreatReport {
	if !s.cacheEnabled || s.cache == nil {
		return nil
	}
	entry, err := s.cache.Get(ctx, key)
	if err != nil || entry == nil {
		return nil
	}
	var report ThreatReport
	if err := json.Unmarshal(entry.Payload, &report); err != nil {
		s.logger.Warn("Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return nil
	}
	return &report
}

func (s *ThreatService) storeReport(ctx context.Context, key string, report *ThreatReport) {
	if !s.cacheEnabled || s.cache == nil {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		s.logger.Error("Failed to encode report for cache", zap.Error(err))
		return
	}
	now := time.Now()
	entry := &CacheEntry{
		Key:       key,
		Payload:   payload,
		StoredAt:  now,
		ExpiresAt: now.Add(CacheTTL(key)),
	}
	if err := s.cache.Set(ctx, entry); err != nil {
		s.logger.Error("Failed to update cache", zap.Error(err))
	}
}
