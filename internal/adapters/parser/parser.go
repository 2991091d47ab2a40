package parser

import (
	"fmt"
	"io"
	"net/mail"
	"regexp"
	"strings"

	"github.com/jaytaylor/html2text"
	"github.com/jhillyerd/enmime"
	"go.uber.org/zap"

	"github.com/calloway/mailscan/internal/core"
	"github.com/calloway/mailscan/internal/textutil"
)

// maxBodyBytes bounds how much body text is handed to the analyzers.
const maxBodyBytes = 64 * 1024

var (
	urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
	imgPattern = regexp.MustCompile(`(?i)<img[\s>]`)
)

// Parser turns a raw RFC 5322 message into the immutable EmailFacts the
// engine consumes.
type Parser struct {
	logger *zap.Logger
	text   *textutil.Processor
}

// New creates a message parser.
func New(logger *zap.Logger, text *textutil.Processor) *Parser {
	return &Parser{logger: logger, text: text}
}

// Parse reads one message and extracts facts and metadata. Defects in
// the MIME structure are logged and tolerated; only an unreadable
// envelope is an error.
func (p *Parser) Parse(r io.Reader) (*core.EmailFacts, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read message envelope: %w", err)
	}
	for _, defect := range env.Errors {
		p.logger.Debug("MIME defect tolerated", zap.String("defect", defect.Error()))
	}

	sender, senderName := p.senderOf(env)
	body, hasHTML := p.bodyOf(env)
	body = p.text.TruncateText(p.text.SanitizeUTF8(body), maxBodyBytes)
	subject := env.GetHeader("Subject")

	facts := &core.EmailFacts{
		Sender:      sender,
		SenderName:  senderName,
		Subject:     subject,
		Body:        body,
		URLs:        extractURLs(body, env.HTML),
		Attachments: attachmentFacts(env),
	}
	facts.Metadata = p.metadataOf(env, facts, hasHTML)
	return facts, nil
}

func (p *Parser) senderOf(env *enmime.Envelope) (address, name string) {
	from := env.GetHeader("From")
	if from == "" {
		return "", ""
	}
	parsed, err := mail.ParseAddress(from)
	if err != nil {
		return strings.TrimSpace(from), ""
	}
	return parsed.Address, parsed.Name
}

// bodyOf prefers the text part and falls back to converting the HTML
// part.
func (p *Parser) bodyOf(env *enmime.Envelope) (body string, hasHTML bool) {
	hasHTML = env.HTML != ""
	if strings.TrimSpace(env.Text) != "" {
		return env.Text, hasHTML
	}
	if hasHTML {
		converted, err := html2text.FromString(env.HTML, html2text.Options{TextOnly: true})
		if err != nil {
			p.logger.Debug("HTML conversion failed", zap.Error(err))
			return env.HTML, hasHTML
		}
		return converted, hasHTML
	}
	return env.Text, hasHTML
}

func extractURLs(body, html string) []string {
	seen := make(map[string]bool)
	urls := []string{}
	for _, source := range []string{body, html} {
		for _, u := range urlPattern.FindAllString(source, -1) {
			u = strings.TrimRight(u, ".,;:!")
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}
	return urls
}

func attachmentFacts(env *enmime.Envelope) []core.AttachmentFacts {
	facts := []core.AttachmentFacts{}
	for _, part := range env.Attachments {
		filename := part.FileName
		if filename == "" {
			filename = "unnamed"
		}
		facts = append(facts, core.AttachmentFacts{
			Filename:  filename,
			Size:      humanSize(len(part.Content)),
			Extension: extensionOf(filename),
		})
	}
	return facts
}

func (p *Parser) metadataOf(env *enmime.Envelope, facts *core.EmailFacts, hasHTML bool) core.Metadata {
	subject := strings.ToLower(strings.TrimSpace(facts.Subject))

	meta := core.Metadata{
		AttachmentCount:   len(facts.Attachments),
		URLCount:          len(facts.URLs),
		BodyLength:        len(strings.TrimSpace(facts.Body)),
		SubjectLength:     len(facts.Subject),
		HasSenderName:     facts.SenderName != "",
		HasHTMLFormatting: hasHTML,
		ImageCount:        imageCount(env),
		RecipientCount:    recipientCount(env),
		IsReply:           strings.HasPrefix(subject, "re:") || env.GetHeader("In-Reply-To") != "",
		IsForward:         strings.HasPrefix(subject, "fwd:") || strings.HasPrefix(subject, "fw:"),
		IsSpamFolder:      isSpamFlagged(env),
	}
	meta.SenderNameMatches = senderNameMatchesDomain(facts.SenderName, facts.Sender)
	return meta
}

func imageCount(env *enmime.Envelope) int {
	count := 0
	for _, part := range env.Inlines {
		if strings.HasPrefix(part.ContentType, "image/") {
			count++
		}
	}
	for _, part := range env.OtherParts {
		if strings.HasPrefix(part.ContentType, "image/") {
			count++
		}
	}
	count += len(imgPattern.FindAllString(env.HTML, -1))
	return count
}

func recipientCount(env *enmime.Envelope) int {
	count := 0
	for _, header := range []string{"To", "Cc"} {
		addresses, err := env.AddressList(header)
		if err != nil {
			continue
		}
		count += len(addresses)
	}
	return count
}

// isSpamFlagged detects upstream spam-folder placement from common
// filter headers.
func isSpamFlagged(env *enmime.Envelope) bool {
	if strings.EqualFold(env.GetHeader("X-Spam-Flag"), "yes") {
		return true
	}
	if strings.Contains(strings.ToLower(env.GetHeader("X-Folder")), "spam") {
		return true
	}
	status := strings.ToLower(env.GetHeader("X-Spam-Status"))
	return strings.HasPrefix(status, "yes")
}

func senderNameMatchesDomain(name, address string) bool {
	if name == "" {
		return false
	}
	parts := strings.Split(address, "@")
	if len(parts) != 2 {
		return false
	}
	domain := strings.ToLower(parts[1])
	for _, token := range strings.Fields(strings.ToLower(name)) {
		if len(token) >= 3 && strings.Contains(domain, token) {
			return true
		}
	}
	return false
}

func extensionOf(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

func humanSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
