package analyzer

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/calloway/mailscan/internal/core"
	"github.com/calloway/mailscan/internal/trustedlist"
)

// Sender authenticates the sender domain over DNS and estimates its
// reputation. SPF, DMARC and MX lookups are independent and issued
// concurrently. All lookups fail closed: an unverifiable domain is
// treated as non-authenticated, never as passing.
type Sender struct {
	resolver core.RecordResolver
	trusted  *trustedlist.Checker
	logger   *zap.Logger
}

// NewSender creates a sender analyzer backed by the given resolver.
func NewSender(resolver core.RecordResolver, trusted *trustedlist.Checker, logger *zap.Logger) *Sender {
	return &Sender{resolver: resolver, trusted: trusted, logger: logger}
}

// AnalyzeSender runs the SPF/DMARC/MX checks plus the domain heuristics
// for the message sender.
func (a *Sender) AnalyzeSender(ctx context.Context, facts *core.EmailFacts) core.SenderResult {
	domain := domainOf(facts.Sender)

	result := core.SenderResult{
		Address: facts.Sender,
		Domain:  domain,
		// DKIM needs the full raw headers, which the engine never sees.
		DKIM:  core.AuthNotChecked,
		Risks: []string{},
	}

	if domain == "unknown" {
		result.SPF = core.AuthFail
		result.DMARC = core.AuthFail
		result.MXRecords = []core.MXRecord{}
		result.DomainInfo = GetDomainInfo("", a.trusted)
		result.Reputation = core.ReputationPoor
		result.Risks = append(result.Risks, "Sender address has no valid domain")
		return result
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		result.SPF = a.CheckSPF(ctx, domain)
	}()
	go func() {
		defer wg.Done()
		result.DMARC = a.CheckDMARC(ctx, domain)
	}()
	go func() {
		defer wg.Done()
		result.MXRecords = a.MXRecords(ctx, domain)
	}()
	wg.Wait()

	result.DomainInfo = GetDomainInfo(domain, a.trusted)

	if result.SPF != core.AuthPass {
		result.Risks = append(result.Risks, "SPF verification failed")
	}
	if result.DMARC != core.AuthPass {
		result.Risks = append(result.Risks, "DMARC verification failed")
	}
	if len(result.MXRecords) == 0 {
		result.Risks = append(result.Risks, "Domain has no MX records")
	}
	if check := CheckDomain(domain); check.Suspicious && !a.trusted.IsTrusted(domain) {
		result.Risks = append(result.Risks, check.Reasons...)
	}

	result.Reputation = reputationFor(result)
	return result
}

// CheckSPF resolves the domain's SPF policy from TXT records. A policy
// ending in a hard or soft "all" qualifier passes; a present but
// permissive record is neutral; absence or lookup failure fails.
func (a *Sender) CheckSPF(ctx context.Context, domain string) core.AuthStatus {
	records, err := a.resolver.TXT(ctx, domain)
	if err != nil {
		a.logger.Debug("SPF lookup failed", zap.String("domain", domain), zap.Error(err))
		return core.AuthFail
	}

	for _, record := range records {
		if !strings.Contains(record, "v=spf1") {
			continue
		}
		if strings.Contains(record, "~all") || strings.Contains(record, "-all") {
			return core.AuthPass
		}
		return core.AuthNeutral
	}
	return core.AuthFail
}

// CheckDMARC resolves the _dmarc TXT record and grades the published
// policy. reject and quarantine pass; none is neutral; absence or lookup
// failure fails.
func (a *Sender) CheckDMARC(ctx context.Context, domain string) core.AuthStatus {
	records, err := a.resolver.TXT(ctx, "_dmarc."+domain)
	if err != nil {
		a.logger.Debug("DMARC lookup failed", zap.String("domain", domain), zap.Error(err))
		return core.AuthFail
	}

	for _, record := range records {
		if !strings.Contains(record, "v=DMARC1") {
			continue
		}
		switch dmarcPolicy(record) {
		case "reject", "quarantine":
			return core.AuthPass
		default:
			return core.AuthNeutral
		}
	}
	return core.AuthFail
}

// MXRecords returns the domain's mail exchangers sorted by priority.
// Lookup failure is non-fatal and yields an empty list.
func (a *Sender) MXRecords(ctx context.Context, domain string) []core.MXRecord {
	records, err := a.resolver.MX(ctx, domain)
	if err != nil {
		a.logger.Debug("MX lookup failed", zap.String("domain", domain), zap.Error(err))
		return []core.MXRecord{}
	}
	if records == nil {
		records = []core.MXRecord{}
	}
	return records
}

// dmarcPolicy extracts the p= tag from a DMARC record, defaulting to
// none when absent.
func dmarcPolicy(record string) string {
	for _, field := range strings.Split(record, ";") {
		field = strings.TrimSpace(field)
		if value, ok := strings.CutPrefix(field, "p="); ok {
			return strings.ToLower(strings.TrimSpace(value))
		}
	}
	return "none"
}

func domainOf(address string) string {
	parts := strings.Split(address, "@")
	if len(parts) != 2 || parts[1] == "" {
		return "unknown"
	}
	return strings.ToLower(strings.TrimSpace(parts[1]))
}

// reputationFor grades the sender from the authentication and heuristic
// outcomes: no negative signal is Good, one is Moderate, more is Poor.
func reputationFor(result core.SenderResult) core.ReputationTier {
	negatives := 0
	if result.SPF != core.AuthPass {
		negatives++
	}
	if result.DMARC != core.AuthPass {
		negatives++
	}
	if len(result.MXRecords) == 0 {
		negatives++
	}
	if result.DomainInfo.Suspicious {
		negatives++
	}

	switch {
	case negatives == 0:
		return core.ReputationGood
	case negatives == 1:
		return core.ReputationModerate
	default:
		return core.ReputationPoor
	}
}
