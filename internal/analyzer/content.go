package analyzer

import (
	"regexp"
	"strings"

	"github.com/calloway/mailscan/internal/core"
	"github.com/calloway/mailscan/internal/textutil"
)

// contentRule is one weighted pattern in the phishing table. The table is
// data, not code: matching order and weights are auditable and testable
// in isolation.
type contentRule struct {
	pattern string
	weight  int
	label   string
}

// contentRules is scanned in order against the lower-cased subject+body.
// Every match adds its weight.
var contentRules = []contentRule{
	// Urgency and pressure
	{"urgent", 15, "Urgency: pressure language"},
	{"immediately", 15, "Urgency: demands immediate action"},
	{"act now", 20, "Urgency: act-now demand"},
	{"within 24 hours", 15, "Urgency: artificial deadline"},
	{"final notice", 20, "Urgency: final notice"},
	{"expires today", 20, "Urgency: same-day expiry"},

	// Credential harvesting
	{"verify your account", 25, "Credential harvesting: account verification request"},
	{"confirm your identity", 25, "Credential harvesting: identity confirmation request"},
	{"update your password", 25, "Credential harvesting: password update request"},
	{"reset your password", 20, "Credential harvesting: password reset lure"},
	{"unusual activity", 20, "Credential harvesting: fake security alert"},
	{"suspicious activity", 20, "Credential harvesting: fake security alert"},
	{"account has been suspended", 25, "Credential harvesting: suspension threat"},
	{"account will be closed", 20, "Credential harvesting: closure threat"},
	{"click here to login", 25, "Credential harvesting: login link"},

	// Financial pressure
	{"wire transfer", 20, "Financial: wire transfer request"},
	{"payment pending", 15, "Financial: pending payment pressure"},
	{"overdue invoice", 15, "Financial: overdue invoice pressure"},
	{"bank details", 20, "Financial: requests bank details"},
	{"social security number", 25, "Financial: requests SSN"},

	// Crypto and gift cards
	{"bitcoin", 15, "Crypto: bitcoin mention"},
	{"cryptocurrency", 15, "Crypto: cryptocurrency mention"},
	{"gift card", 20, "Gift card: purchase request"},
	{"itunes card", 25, "Gift card: iTunes card request"},
	{"google play card", 25, "Gift card: Google Play card request"},

	// Prize and advance-fee lures
	{"you have won", 25, "Prize lure: winnings claim"},
	{"congratulations", 10, "Prize lure: congratulation hook"},
	{"lottery", 20, "Prize lure: lottery"},
	{"claim your prize", 25, "Prize lure: prize claim"},
	{"inheritance", 20, "Advance fee: inheritance story"},

	// Threats
	{"legal action", 15, "Threat: legal action"},
	{"your account will be terminated", 20, "Threat: termination"},
}

// impersonatedBrands maps a brand name as it appears in text to the token
// expected in a legitimate sender domain.
var impersonatedBrands = []struct {
	name  string
	token string
}{
	{"paypal", "paypal"},
	{"amazon", "amazon"},
	{"apple", "apple"},
	{"microsoft", "microsoft"},
	{"google", "google"},
	{"netflix", "netflix"},
	{"facebook", "facebook"},
	{"instagram", "instagram"},
	{"whatsapp", "whatsapp"},
	{"docusign", "docusign"},
	{"dropbox", "dropbox"},
	{"linkedin", "linkedin"},
	{"bank of america", "bankofamerica"},
	{"wells fargo", "wellsfargo"},
	{"chase", "chase"},
	{"dhl", "dhl"},
	{"fedex", "fedex"},
	{"ups", "ups"},
}

// brandPatterns anchors each brand name on word boundaries. A bare
// substring match would count "purchase" as a chase mention and
// "groups" as a ups mention. Multi-word brands stay phrase matches
// against the folded text.
var brandPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(impersonatedBrands))
	for i, brand := range impersonatedBrands {
		patterns[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(brand.name) + `\b`)
	}
	return patterns
}()

// Content scans subject and body against the weighted rule table plus
// metadata-derived signals. Pure computation, no I/O.
type Content struct {
	text *textutil.Processor
}

// NewContent creates the content analyzer.
func NewContent(text *textutil.Processor) *Content {
	return &Content{text: text}
}

// AnalyzeContent produces the phishing score, the social-engineering
// tier and the impersonation verdict for one message.
func (a *Content) AnalyzeContent(facts *core.EmailFacts) core.ContentResult {
	result := core.ContentResult{Flags: []string{}}

	text := a.text.Fold(facts.Subject + " " + facts.Body)
	senderDomain := domainOf(facts.Sender)

	score := 0
	for _, rule := range contentRules {
		if strings.Contains(text, rule.pattern) {
			score += rule.weight
			result.Flags = append(result.Flags, rule.label)
		}
	}

	for i, brand := range impersonatedBrands {
		if !brandPatterns[i].MatchString(text) {
			continue
		}
		// Mentioning your own brand is fine; paypal.com may talk about
		// PayPal.
		if strings.Contains(senderDomain, brand.token) {
			continue
		}
		result.Impersonation = true
		score += 30
		result.Flags = append(result.Flags, "Impersonation: Mentions "+brand.name)
	}

	meta := facts.Metadata
	if meta.AttachmentCount > 3 {
		score += 5
		result.Flags = append(result.Flags, "Many attachments")
	}
	if meta.URLCount > 5 {
		score += 10
		result.Flags = append(result.Flags, "Many links")
	}
	if meta.BodyLength < 80 && meta.URLCount >= 1 {
		score += 15
		result.ShortBodyWithLinks = true
		result.Flags = append(result.Flags, "Very short body with links")
	}
	if !meta.IsReply && !meta.IsForward && meta.RecipientCount > 10 {
		score += 5
		result.Flags = append(result.Flags, "Mass-mailed to many recipients")
	}
	if meta.ImageCount > 5 {
		score += 5
		result.Flags = append(result.Flags, "Image-heavy message")
	}

	// A short body stuffed with links is inherently suspicious even
	// without keyword hits.
	if result.ShortBodyWithLinks && score < 40 {
		score = 40
	}

	result.PhishingScore = core.ClampScore(score)
	result.SocialEngineering = socialTierFor(result.PhishingScore)
	return result
}

func socialTierFor(score int) core.SocialTier {
	switch {
	case score >= 40:
		return core.SocialHigh
	case score >= 20:
		return core.SocialModerate
	default:
		return core.SocialLow
	}
}
