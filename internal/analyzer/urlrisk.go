package analyzer

import (
	"context"
	"net"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"

	"github.com/calloway/mailscan/internal/core"
)

// maxURLs caps how many URLs of one message are analyzed. Later URLs are
// ignored, not flagged.
const maxURLs = 10

// dangerousURLThreshold marks a URL dangerous once its raw accumulated
// score reaches it. The threshold test uses the raw sum; clamping is for
// display only.
const dangerousURLThreshold = 50

// shortLinkPatterns identify URL shortening services whose targets need
// expansion before analysis.
var shortLinkPatterns = []string{
	"bit.ly", "tinyurl", "goo.gl", "ow.ly", "t.co", "short.link",
}

// phishingKeywords are scanned over host+path+query of the resolved URL.
var phishingKeywords = []string{
	"login", "verify", "account", "secure", "banking", "paypal",
	"reset-password", "password-reset", "update-account", "secure-login",
	"giftcard", "crypto", "bitcoin", "wallet", "invoice",
	"payment-confirmation",
}

var (
	// ipLiteralPattern matches a dotted-quad used as a hostname.
	ipLiteralPattern = regexp.MustCompile(`https?://\d{1,3}(?:\.\d{1,3}){3}`)

	// shortLinkURLPattern matches known shortener hosts inside a URL.
	shortLinkURLPattern = regexp.MustCompile(`(?i)(?:bit\.ly|tinyurl|goo\.gl|ow\.ly|t\.co|short\.link)`)

	// riskyTLDPattern matches high-abuse TLDs at a hostname boundary.
	riskyTLDPattern = regexp.MustCompile(`(?i)\.(?:tk|ml|ga|cf|gq|top|xyz|club|work|info|click|country)(?:[/:?#]|$)`)

	// longAlphaRun matches a 30+ character letters-only token, the
	// signature of machine-generated tracking paths.
	longAlphaRun = regexp.MustCompile(`[A-Za-z]{30,}`)
)

// URLRisk runs the per-URL analysis pipeline. Each URL is independent,
// so the pipelines run in parallel up to the URL cap. A single malformed
// URL never aborts analysis of the rest.
type URLRisk struct {
	expander core.URLExpander
	logger   *zap.Logger
}

// NewURLRisk creates the URL analyzer backed by the given short-link
// expander.
func NewURLRisk(expander core.URLExpander, logger *zap.Logger) *URLRisk {
	return &URLRisk{expander: expander, logger: logger}
}

// AnalyzeURLs analyzes the first maxURLs entries and aggregates the
// dangerous ones for downstream link marking.
func (a *URLRisk) AnalyzeURLs(ctx context.Context, urls []string) core.UrlAnalysis {
	analysis := core.UrlAnalysis{
		Results:       []core.UrlResult{},
		DangerousUrls: []string{},
	}
	if len(urls) == 0 {
		return analysis
	}
	if len(urls) > maxURLs {
		urls = urls[:maxURLs]
	}

	results := make([]core.UrlResult, len(urls))
	var wg sync.WaitGroup
	for i, raw := range urls {
		wg.Add(1)
		go func(i int, raw string) {
			defer wg.Done()
			results[i] = a.analyzeOne(ctx, raw)
		}(i, raw)
	}
	wg.Wait()

	for _, result := range results {
		if result.Dangerous {
			analysis.DangerousCount++
			marked := result.Resolved
			if marked == "" {
				marked = result.Original
			}
			analysis.DangerousUrls = append(analysis.DangerousUrls, marked)
		}
		analysis.Results = append(analysis.Results, result)
	}
	return analysis
}

// analyzeOne runs the full pipeline for a single URL, recovering any
// panic into a neutral "Unable to analyze" result.
func (a *URLRisk) analyzeOne(ctx context.Context, raw string) (result core.UrlResult) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("URL analysis panicked", zap.String("url", raw), zap.Any("panic", r))
			result = unableToAnalyze(raw)
		}
	}()

	result = core.UrlResult{
		Original: raw,
		Resolved: raw,
		Flags:    []string{},
	}

	if isShortLink(raw) {
		// Best effort: a dead shortener keeps the original URL.
		if resolved, chain, err := a.expander.Expand(ctx, raw); err == nil && resolved != "" {
			result.Resolved = resolved
			result.RedirectChain = chain
		} else if err != nil {
			a.logger.Debug("Short-link expansion failed", zap.String("url", raw), zap.Error(err))
		}
	}

	parsed, err := url.Parse(result.Resolved)
	if err != nil || parsed.Hostname() == "" {
		return unableToAnalyze(raw)
	}

	score := 0

	if hasHomoglyphs(parsed.Hostname()) {
		score += 40
		result.Flags = append(result.Flags, homoglyphFlag(parsed.Hostname()))
	}

	if structuralFlags := checkStructure(parsed, result.Resolved); len(structuralFlags) > 0 {
		score += 30
		result.Flags = append(result.Flags, structuralFlags...)
	}

	if matchesDangerousPattern(result.Resolved) {
		score += 50
		result.Flags = append(result.Flags, "Matches known dangerous URL pattern")
	}

	if check := CheckDomain(parsed.Hostname()); check.Suspicious {
		score += 20
		result.Flags = append(result.Flags, check.Reasons...)
	}

	result.Dangerous = score >= dangerousURLThreshold
	result.RiskScore = core.ClampScore(score)
	return result
}

// hasHomoglyphs reports confusable characters in the hostname: any
// non-ASCII rune, or a punycode host whose decoded form is not NFKC
// stable (ligatures, fullwidth forms and similar compatibility
// characters that render like ordinary letters).
func hasHomoglyphs(host string) bool {
	for _, r := range host {
		if r > 127 {
			return true
		}
	}
	if unicode, err := idna.ToUnicode(host); err == nil && unicode != host {
		return norm.NFKC.String(unicode) != unicode
	}
	return false
}

func homoglyphFlag(host string) string {
	if ascii, err := idna.ToASCII(host); err == nil && ascii != host {
		return "Homoglyph characters in hostname (" + ascii + ")"
	}
	return "Homoglyph characters in hostname"
}

// checkStructure runs the independent structural risk checks and returns
// every matched reason.
func checkStructure(parsed *url.URL, full string) []string {
	flags := []string{}
	host := strings.ToLower(parsed.Hostname())

	if net.ParseIP(host) != nil {
		flags = append(flags, "IP address used as hostname")
	}

	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(host, tld) {
			flags = append(flags, "High-risk top-level domain ("+tld+")")
			break
		}
	}

	if strings.Contains(host, "xn--") {
		flag := "Punycode-encoded hostname"
		if unicode, err := idna.ToUnicode(host); err == nil && unicode != host {
			flag += " (" + unicode + ")"
		}
		flags = append(flags, flag)
	}

	if strings.Count(host, ".")+1 > 4 {
		flags = append(flags, "Excessive number of subdomains")
	}

	haystack := host + strings.ToLower(parsed.Path) + "?" + strings.ToLower(parsed.RawQuery)
	for _, keyword := range phishingKeywords {
		if strings.Contains(haystack, keyword) {
			flags = append(flags, "Phishing keyword in URL ("+keyword+")")
		}
	}

	if strings.Contains(full, "@") {
		flags = append(flags, "URL contains an @ sign")
	}

	if parsed.Scheme != "https" {
		flags = append(flags, "Connection is not HTTPS")
	}

	pathAndQuery := parsed.Path + parsed.RawQuery
	if len(pathAndQuery) > 80 && longAlphaRun.MatchString(pathAndQuery) {
		flags = append(flags, "Long randomized path or query")
	}

	return flags
}

// matchesDangerousPattern tests the static pattern set: shortener hosts,
// IP-literal URLs and high-risk TLDs.
func matchesDangerousPattern(full string) bool {
	return shortLinkURLPattern.MatchString(full) ||
		ipLiteralPattern.MatchString(full) ||
		riskyTLDPattern.MatchString(full)
}

func isShortLink(raw string) bool {
	lower := strings.ToLower(raw)
	for _, pattern := range shortLinkPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func unableToAnalyze(raw string) core.UrlResult {
	return core.UrlResult{
		Original: raw,
		Resolved: raw,
		Flags:    []string{"Unable to analyze"},
	}
}
