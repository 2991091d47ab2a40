package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/calloway/mailscan/internal/adapters/filter"
	"github.com/calloway/mailscan/internal/adapters/parser"
	"github.com/calloway/mailscan/internal/config"
	"github.com/calloway/mailscan/internal/core"
	"github.com/calloway/mailscan/internal/ports"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.ThreatService
	parser  *parser.Parser
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *core.ThreatService, p *parser.Parser) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
		parser:  p,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	filterType := f.cfg.GetString("server.filter_type")

	switch filterType {
	case "smtp":
		return filter.NewSMTPFilter(
			f.service,
			f.parser,
			f.logger,
			filter.SMTPFilterConfig{
				ListenAddr:     f.cfg.GetString("server.listen_address"),
				BlockDangerous: f.cfg.GetBool("server.block_dangerous"),
				LevelHeader:    f.cfg.GetString("server.headers.level"),
				ScoreHeader:    f.cfg.GetString("server.headers.score"),
				ReasonsHeader:  f.cfg.GetString("server.headers.reasons"),
				RelayAddr:      f.cfg.GetString("server.relay.address"),
				RelayPort:      f.cfg.GetInt("server.relay.port"),
				RelayEnabled:   f.cfg.GetBool("server.relay.enabled"),
				SubjectPrefix:  f.cfg.GetString("server.subject_prefix"),
				TagSubject:     f.cfg.GetBool("server.tag_subject"),
			},
		), nil
	case "cli":
		return filter.NewCliFilter(
			f.service,
			f.logger,
			f.cfg.GetBool("cli.verbose"),
			f.cfg.GetBool("cli.json"),
		)
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", filterType)
	}
}
