package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/calloway/mailscan/internal/adapters/parser"
	"github.com/calloway/mailscan/internal/core"
)

// SMTPFilter is a content filter sitting in front of an MTA. It accepts
// a message over SMTP, scores it, stamps X-Threat-* headers and
// re-injects the message into the downstream MTA. DANGEROUS mail can
// optionally be rejected outright.
type SMTPFilter struct {
	service        *core.ThreatService
	parser         *parser.Parser
	logger         *zap.Logger
	server         *smtp.Server
	listenAddr     string
	blockDangerous bool
	levelHeader    string
	scoreHeader    string
	reasonsHeader  string
	relayAddr      string
	relayPort      int
	relayEnabled   bool
	subjectPrefix  string
	tagSubject     bool
}

// SMTPFilterConfig collects the knobs for NewSMTPFilter.
type SMTPFilterConfig struct {
	ListenAddr     string
	BlockDangerous bool
	LevelHeader    string
	ScoreHeader    string
	ReasonsHeader  string
	RelayAddr      string
	RelayPort      int
	RelayEnabled   bool
	SubjectPrefix  string
	TagSubject     bool
}

// NewSMTPFilter creates a new SMTP content filter.
func NewSMTPFilter(service *core.ThreatService, p *parser.Parser, logger *zap.Logger, cfg SMTPFilterConfig) *SMTPFilter {
	if cfg.SubjectPrefix == "" && cfg.TagSubject {
		cfg.SubjectPrefix = "[THREAT] "
	}
	return &SMTPFilter{
		service:        service,
		parser:         p,
		logger:         logger,
		listenAddr:     cfg.ListenAddr,
		blockDangerous: cfg.BlockDangerous,
		levelHeader:    cfg.LevelHeader,
		scoreHeader:    cfg.ScoreHeader,
		reasonsHeader:  cfg.ReasonsHeader,
		relayAddr:      cfg.RelayAddr,
		relayPort:      cfg.RelayPort,
		relayEnabled:   cfg.RelayEnabled,
		subjectPrefix:  cfg.SubjectPrefix,
		tagSubject:     cfg.TagSubject,
	}
}

// Start starts the SMTP server.
func (f *SMTPFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("SMTP threat filter starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				f.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP server.
func (f *SMTPFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail analyzes an already-parsed email. Used for testing and
// direct calls.
func (f *SMTPFilter) ProcessEmail(ctx context.Context, facts *core.EmailFacts) (*core.ThreatReport, error) {
	return f.service.Analyze(ctx, facts), nil
}

// relay hands the annotated message to the downstream MTA.
func (f *SMTPFilter) relay(sender string, recipients []string, data []byte) error {
	addr := fmt.Sprintf("%s:%d", f.relayAddr, f.relayPort)

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("relay EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("relay MAIL FROM failed: %w", err)
	}
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("relay RCPT TO failed: %w", err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("relay DATA failed: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("relay write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("relay close failed: %w", err)
	}
	return c.Quit()
}

type smtpBackend struct {
	filter *SMTPFilter
}

func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

type smtpSession struct {
	filter     *SMTPFilter
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// AuthPlain handles PLAIN authentication (not needed for this filter)
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Logout handles SMTP logout (not needed for this filter)
func (s *smtpSession) Logout() error {
	return nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	facts, err := s.filter.parser.Parse(bytes.NewReader(rawData))
	if err != nil {
		// An unparsable message still gets a verdict from whatever the
		// envelope told us.
		s.filter.logger.Warn("Failed to parse message, analyzing envelope only", zap.Error(err))
		facts = &core.EmailFacts{
			Sender:      s.sender,
			URLs:        []string{},
			Attachments: []core.AttachmentFacts{},
		}
	}
	if facts.Sender == "" {
		facts.Sender = s.sender
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report := s.filter.service.Analyze(ctx, facts)
	verdict := report.Verdict

	if verdict.Level == core.LevelDangerous && s.filter.blockDangerous {
		s.filter.logger.Info("Rejecting dangerous email",
			zap.String("from", facts.Sender),
			zap.Int("score", verdict.Score),
			zap.Strings("reasons", verdict.Reasons))
		return fmt.Errorf("550 Rejected as dangerous (threat score: %d)", verdict.Score)
	}

	annotated := s.annotate(rawData, verdict)

	if s.filter.relayEnabled {
		if err := s.filter.relay(s.sender, s.recipients, annotated); err != nil {
			s.filter.logger.Error("Failed to relay email",
				zap.Error(err),
				zap.String("sender", facts.Sender))
			return err
		}
	} else {
		s.filter.logger.Warn("Relay disabled, message not forwarded")
	}

	s.filter.logger.Info("Processed email",
		zap.String("from", facts.Sender),
		zap.String("level", string(verdict.Level)),
		zap.Int("score", verdict.Score))

	return nil
}

// annotate prepends the verdict headers to the raw message and tags the
// subject when configured. The original header block and body are
// otherwise preserved byte for byte, MIME parts included.
func (s *smtpSession) annotate(rawData []byte, verdict core.ThreatVerdict) []byte {
	var out bytes.Buffer

	fmt.Fprintf(&out, "%s: %s\r\n", s.filter.levelHeader, verdict.Level)
	fmt.Fprintf(&out, "%s: %d\r\n", s.filter.scoreHeader, verdict.Score)
	if len(verdict.Reasons) > 0 {
		fmt.Fprintf(&out, "%s: %s\r\n", s.filter.reasonsHeader, strings.Join(verdict.Reasons, "; "))
	}

	if s.filter.tagSubject && verdict.Level != core.LevelSafe {
		rawData = tagSubjectLine(rawData, s.filter.subjectPrefix)
	}

	out.Write(rawData)
	return out.Bytes()
}

// tagSubjectLine prefixes the Subject header inside the raw header
// block, leaving everything else untouched.
func tagSubjectLine(rawData []byte, prefix string) []byte {
	headerEnd := bytes.Index(rawData, []byte("\r\n\r\n"))
	sep := []byte("\r\n")
	if headerEnd == -1 {
		headerEnd = bytes.Index(rawData, []byte("\n\n"))
		sep = []byte("\n")
		if headerEnd == -1 {
			return rawData
		}
	}

	headers := rawData[:headerEnd]
	rest := rawData[headerEnd:]

	lines := bytes.Split(headers, sep)
	for i, line := range lines {
		if len(line) >= 8 && strings.EqualFold(string(line[:8]), "subject:") {
			value := strings.TrimSpace(string(line[8:]))
			if !strings.HasPrefix(value, prefix) {
				lines[i] = []byte("Subject: " + prefix + value)
			}
			break
		}
	}

	var out bytes.Buffer
	out.Write(bytes.Join(lines, sep))
	out.Write(rest)
	return out.Bytes()
}
