package factory

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/calloway/mailscan/internal/adapters/dnsclient"
	"github.com/calloway/mailscan/internal/adapters/urlfetch"
	"github.com/calloway/mailscan/internal/analyzer"
	"github.com/calloway/mailscan/internal/config"
	"github.com/calloway/mailscan/internal/core"
	"github.com/calloway/mailscan/internal/textutil"
	"github.com/calloway/mailscan/internal/trustedlist"
)

// EngineFactory wires the four analyzers and their network adapters
// from configuration
type EngineFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewEngineFactory creates a new engine factory
func NewEngineFactory(cfg *config.Config, logger *zap.Logger) *EngineFactory {
	return &EngineFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRecordResolver creates the DNS resolver used for SPF, DMARC and
// MX lookups
func (f *EngineFactory) CreateRecordResolver() (core.RecordResolver, error) {
	dnsTimeout, err := f.cfg.GetDuration("dns.timeout")
	if err != nil {
		return nil, fmt.Errorf("invalid DNS timeout: %w", err)
	}
	return dnsclient.New(f.logger,
		dnsclient.WithDoHURL(f.cfg.GetString("dns.doh_url")),
		dnsclient.WithFallbackResolvers(f.cfg.GetStringSlice("dns.fallback_resolvers")),
		dnsclient.WithTimeout(dnsTimeout),
	), nil
}

// CreateURLExpander creates the short-link redirect follower
func (f *EngineFactory) CreateURLExpander() (core.URLExpander, error) {
	expTimeout, err := f.cfg.GetDuration("expander.timeout")
	if err != nil {
		return nil, fmt.Errorf("invalid expander timeout: %w", err)
	}
	return urlfetch.NewExpander(f.logger, expTimeout, f.cfg.GetInt("expander.max_redirects")), nil
}

// CreateSenderAnalyzer creates the sender authentication analyzer
func (f *EngineFactory) CreateSenderAnalyzer(resolver core.RecordResolver) core.SenderAnalyzer {
	trusted := trustedlist.NewChecker(f.cfg.GetStringSlice("sender.trusted_domains"), f.logger)
	return analyzer.NewSender(resolver, trusted, f.logger)
}

// CreateContentAnalyzer creates the content pattern analyzer
func (f *EngineFactory) CreateContentAnalyzer(text *textutil.Processor) core.ContentAnalyzer {
	return analyzer.NewContent(text)
}

// CreateURLRiskAnalyzer creates the URL risk analyzer
func (f *EngineFactory) CreateURLRiskAnalyzer(expander core.URLExpander) core.URLRiskAnalyzer {
	return analyzer.NewURLRisk(expander, f.logger)
}

// CreateAttachmentClassifier creates the attachment classifier
func (f *EngineFactory) CreateAttachmentClassifier() core.AttachmentClassifier {
	return analyzer.NewAttachments()
}

// GetEngineTimeout returns the configured per-email analysis deadline
func (f *EngineFactory) GetEngineTimeout() (time.Duration, error) {
	return f.cfg.GetDuration("engine.timeout")
}
