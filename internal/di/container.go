package di

import (
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/calloway/mailscan/internal/adapters/parser"
	"github.com/calloway/mailscan/internal/config"
	"github.com/calloway/mailscan/internal/core"
	"github.com/calloway/mailscan/internal/factory"
	"github.com/calloway/mailscan/internal/logging"
	"github.com/calloway/mailscan/internal/ports"
	"github.com/calloway/mailscan/internal/textutil"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewEngineFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *textutil.Processor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register network adapters
	if err := container.Provide(func(f *factory.EngineFactory) (core.RecordResolver, error) {
		return f.CreateRecordResolver()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.EngineFactory) (core.URLExpander, error) {
		return f.CreateURLExpander()
	}); err != nil {
		return nil, err
	}

	// Register analyzers
	if err := container.Provide(func(f *factory.EngineFactory, resolver core.RecordResolver) core.SenderAnalyzer {
		return f.CreateSenderAnalyzer(resolver)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.EngineFactory, text *textutil.Processor) core.ContentAnalyzer {
		return f.CreateContentAnalyzer(text)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.EngineFactory, expander core.URLExpander) core.URLRiskAnalyzer {
		return f.CreateURLRiskAnalyzer(expander)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.EngineFactory) core.AttachmentClassifier {
		return f.CreateAttachmentClassifier()
	}); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory) bool {
		return f.IsCacheEnabled()
	}); err != nil {
		return nil, err
	}

	// Register analysis deadline
	if err := container.Provide(func(f *factory.EngineFactory) (time.Duration, error) {
		return f.GetEngineTimeout()
	}); err != nil {
		return nil, err
	}

	// Register threat service
	if err := container.Provide(core.NewThreatService); err != nil {
		return nil, err
	}

	// Register message parser
	if err := container.Provide(func(logger *zap.Logger, text *textutil.Processor) *parser.Parser {
		return parser.New(logger, text)
	}); err != nil {
		return nil, err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
