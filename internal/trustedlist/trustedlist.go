package trustedlist

import (
	"strings"

	"go.uber.org/zap"
)

// majorProviders are mail domains that are never flagged by the domain
// reputation heuristics, whatever other signals say.
var majorProviders = []string{
	"gmail.com", "googlemail.com", "outlook.com", "hotmail.com", "live.com",
	"msn.com", "yahoo.com", "icloud.com", "me.com", "aol.com",
	"protonmail.com", "proton.me", "zoho.com", "mail.com", "gmx.com",
	"gmx.net", "yandex.com", "yandex.ru", "fastmail.com",
}

// Checker answers whether a domain belongs to a trusted mail provider.
type Checker struct {
	domains map[string]struct{}
	logger  *zap.Logger
}

// NewChecker creates a checker seeded with the major providers plus any
// extra domains from configuration.
func NewChecker(extra []string, logger *zap.Logger) *Checker {
	domains := make(map[string]struct{}, len(majorProviders)+len(extra))
	for _, d := range majorProviders {
		domains[d] = struct{}{}
	}
	for _, d := range extra {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains[d] = struct{}{}
		}
	}

	if len(extra) > 0 && logger != nil {
		logger.Info("Extended trusted provider list", zap.Strings("extra", extra))
	}

	return &Checker{domains: domains, logger: logger}
}

// IsTrusted reports whether the domain is a known major mail provider.
func (c *Checker) IsTrusted(domain string) bool {
	_, ok := c.domains[strings.ToLower(strings.TrimSpace(domain))]
	return ok
}

// IsTrustedAddress extracts the domain from an email address and checks
// it.
func (c *Checker) IsTrustedAddress(address string) bool {
	parts := strings.Split(address, "@")
	if len(parts) != 2 {
		return false
	}
	return c.IsTrusted(parts[1])
}
