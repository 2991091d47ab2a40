package analyzer

import (
	"strings"

	"github.com/calloway/mailscan/internal/core"
	"github.com/calloway/mailscan/internal/trustedlist"
)

// DomainCheck is the result of the stateless reputation heuristics.
type DomainCheck struct {
	Suspicious bool
	Reasons    []string
}

// suspiciousTLDs are top-level domains with a high abuse rate. Matching
// order is fixed and part of the output contract.
var suspiciousTLDs = []string{
	".tk", ".ml", ".ga", ".cf", ".gq", ".top", ".xyz",
	".club", ".work", ".info", ".click", ".country",
}

// riskyNamePatterns are substrings commonly used by lookalike phishing
// domains.
var riskyNamePatterns = []string{
	"-secure", "-login", "-verify", "-account", "update-", "support-",
}

// marketingWords in a domain name suggest aggressive, short-lived
// branding.
var marketingWords = []string{
	"deal", "offer", "promo", "sale", "discount", "bonus", "winner", "prize",
}

// tldCountries maps a TLD to the country it is registered under. Static
// lookup only; no WHOIS or geolocation is performed.
var tldCountries = map[string]string{
	"us": "United States", "uk": "United Kingdom", "de": "Germany",
	"fr": "France", "nl": "Netherlands", "es": "Spain", "it": "Italy",
	"pl": "Poland", "se": "Sweden", "ch": "Switzerland", "at": "Austria",
	"ru": "Russia", "ua": "Ukraine", "cn": "China", "hk": "Hong Kong",
	"jp": "Japan", "kr": "South Korea", "in": "India", "sg": "Singapore",
	"au": "Australia", "nz": "New Zealand", "ca": "Canada", "br": "Brazil",
	"mx": "Mexico", "ar": "Argentina", "za": "South Africa", "ng": "Nigeria",
	"tk": "Tokelau", "ml": "Mali", "ga": "Gabon", "cf": "Central African Republic",
	"gq": "Equatorial Guinea", "ir": "Iran", "tr": "Turkey", "id": "Indonesia",
	"vn": "Vietnam", "th": "Thailand", "com": "Global", "org": "Global",
	"net": "Global", "io": "Global", "co": "Colombia",
}

// CheckDomain runs the pattern heuristics on a bare domain string. It is
// pure and performs no lookups. Reasons appear in fixed check order: TLD,
// length, label count, naming patterns.
func CheckDomain(domain string) DomainCheck {
	check := DomainCheck{Reasons: []string{}}
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return check
	}

	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(domain, tld) {
			check.Suspicious = true
			check.Reasons = append(check.Reasons, "High-risk top-level domain ("+tld+")")
			break
		}
	}

	if len(domain) < 5 {
		check.Suspicious = true
		check.Reasons = append(check.Reasons, "Unusually short domain name")
	}

	if strings.Count(domain, ".")+1 > 4 {
		check.Suspicious = true
		check.Reasons = append(check.Reasons, "Excessive number of subdomains")
	}

	for _, pattern := range riskyNamePatterns {
		if strings.Contains(domain, pattern) {
			check.Suspicious = true
			check.Reasons = append(check.Reasons, "Phishing-style domain name ("+pattern+")")
		}
	}

	return check
}

// GetDomainInfo estimates age, branding risk and country for a domain.
// Domains of major mail providers are never marked suspicious, whatever
// the other signals say.
func GetDomainInfo(domain string, trusted *trustedlist.Checker) core.DomainInfo {
	domain = strings.ToLower(strings.TrimSpace(domain))
	info := core.DomainInfo{
		AgeEstimate: "unknown",
		Registrar:   "unknown",
		Country:     countryForDomain(domain),
	}
	if domain == "" {
		return info
	}

	if trusted != nil && trusted.IsTrusted(domain) {
		info.AgeEstimate = "established"
		return info
	}

	name := domain
	if i := strings.Index(domain, "."); i > 0 {
		name = domain[:i]
	}

	switch {
	case strings.ContainsAny(name, "0123456789"),
		strings.Contains(name, "temp"),
		strings.Contains(name, "test"),
		strings.Contains(name, "fake"):
		info.AgeEstimate = "likely new"
	default:
		for _, word := range marketingWords {
			if strings.Contains(name, word) {
				info.AgeEstimate = "aggressive branding"
				break
			}
		}
	}

	info.Suspicious = CheckDomain(domain).Suspicious
	return info
}

func countryForDomain(domain string) string {
	i := strings.LastIndex(domain, ".")
	if i < 0 || i == len(domain)-1 {
		return "unknown"
	}
	if country, ok := tldCountries[domain[i+1:]]; ok {
		return country
	}
	return "unknown"
}
