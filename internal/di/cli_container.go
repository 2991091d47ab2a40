package di

import (
	"flag"
	"strings"

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

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// DNS flags
	DoHURL            string
	FallbackResolvers string
	DNSTimeout        string

	// URL expansion flags
	ExpanderTimeout string
	MaxRedirects    int

	// Sender flags
	TrustedDomains string

	// Engine flags
	EngineTimeout string

	// Input flags
	InputFile  string
	Verbose    bool
	JSONOut    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	// DNS flags
	flag.StringVar(&flags.DoHURL, "doh-url", "https://dns.google/resolve", "DNS-over-HTTPS endpoint")
	flag.StringVar(&flags.FallbackResolvers, "fallback-resolvers", "8.8.8.8,1.1.1.1", "Comma-separated plain DNS fallback resolver IPs")
	flag.StringVar(&flags.DNSTimeout, "dns-timeout", "5s", "Timeout for each DNS lookup")

	// URL expansion flags
	flag.StringVar(&flags.ExpanderTimeout, "expander-timeout", "8s", "Timeout for short-link expansion")
	flag.IntVar(&flags.MaxRedirects, "max-redirects", 5, "Maximum redirects followed when expanding short links")

	// Sender flags
	flag.StringVar(&flags.TrustedDomains, "trusted-domains", "", "Comma-separated additional trusted sender domains")

	// Engine flags
	flag.StringVar(&flags.EngineTimeout, "timeout", "30s", "Deadline for analyzing one email")

	// Input flags
	flag.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose output and logging")
	flag.BoolVar(&flags.JSONOut, "json", false, "Print the full report as JSON")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.New()
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewEngineFactory); err != nil {
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

	// Register threat service with no cache
	if err := container.Provide(func(
		sender core.SenderAnalyzer,
		content core.ContentAnalyzer,
		urls core.URLRiskAnalyzer,
		attachments core.AttachmentClassifier,
		logger *zap.Logger,
		f *factory.EngineFactory,
	) (*core.ThreatService, error) {
		timeout, err := f.GetEngineTimeout()
		if err != nil {
			return nil, err
		}
		return core.NewThreatService(
			sender,
			content,
			urls,
			attachments,
			nil, // No cache for CLI
			logger,
			false, // Cache disabled
			timeout,
		), nil
	}); err != nil {
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

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// Set some cli specific settings
	v.Set("server.filter_type", "cli")
	v.Set("cli.verbose", flags.Verbose)
	v.Set("cli.json", flags.JSONOut)

	// DNS settings
	v.Set("dns.doh_url", flags.DoHURL)
	v.Set("dns.fallback_resolvers", splitList(flags.FallbackResolvers))
	v.Set("dns.timeout", flags.DNSTimeout)

	// URL expansion settings
	v.Set("expander.timeout", flags.ExpanderTimeout)
	v.Set("expander.max_redirects", flags.MaxRedirects)

	// Sender settings
	v.Set("sender.trusted_domains", splitList(flags.TrustedDomains))

	// Engine settings
	v.Set("engine.timeout", flags.EngineTimeout)

	return config.NewFromViper(v)
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
