package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/calloway/mailscan/internal/core"
	"github.com/calloway/mailscan/internal/trustedlist"
)

type fakeResolver struct {
	txt    map[string][]string
	mx     map[string][]core.MXRecord
	txtErr error
	mxErr  error
}

func (r *fakeResolver) TXT(_ context.Context, name string) ([]string, error) {
	if r.txtErr != nil {
		return nil, r.txtErr
	}
	return r.txt[name], nil
}

func (r *fakeResolver) MX(_ context.Context, name string) ([]core.MXRecord, error) {
	if r.mxErr != nil {
		return nil, r.mxErr
	}
	return r.mx[name], nil
}

func newSenderAnalyzer(resolver core.RecordResolver) *Sender {
	return NewSender(resolver, trustedlist.NewChecker(nil, zap.NewNop()), zap.NewNop())
}

func TestAnalyzeSenderFullyAuthenticated(t *testing.T) {
	resolver := &fakeResolver{
		txt: map[string][]string{
			"example.com":        {"v=spf1 include:_spf.example.com -all"},
			"_dmarc.example.com": {"v=DMARC1; p=reject; rua=mailto:d@example.com"},
		},
		mx: map[string][]core.MXRecord{
			"example.com": {{Exchange: "mx1.example.com", Priority: 10}},
		},
	}
	a := newSenderAnalyzer(resolver)

	result := a.AnalyzeSender(context.Background(), &core.EmailFacts{Sender: "alice@example.com"})

	assert.Equal(t, "example.com", result.Domain)
	assert.Equal(t, core.AuthPass, result.SPF)
	assert.Equal(t, core.AuthPass, result.DMARC)
	assert.Equal(t, core.AuthNotChecked, result.DKIM)
	assert.Len(t, result.MXRecords, 1)
	assert.Equal(t, core.ReputationGood, result.Reputation)
	assert.Empty(t, result.Risks)
}

func TestAnalyzeSenderNoDomain(t *testing.T) {
	a := newSenderAnalyzer(&fakeResolver{})

	result := a.AnalyzeSender(context.Background(), &core.EmailFacts{Sender: "not-an-address"})

	assert.Equal(t, "unknown", result.Domain)
	assert.Equal(t, core.AuthFail, result.SPF)
	assert.Equal(t, core.AuthFail, result.DMARC)
	assert.Equal(t, core.ReputationPoor, result.Reputation)
	assert.Contains(t, result.Risks, "Sender address has no valid domain")
}

func TestAnalyzeSenderLookupFailuresFailClosed(t *testing.T) {
	a := newSenderAnalyzer(&fakeResolver{txtErr: errors.New("servfail"), mxErr: errors.New("servfail")})

	result := a.AnalyzeSender(context.Background(), &core.EmailFacts{Sender: "bob@nxdomain-example.org"})

	assert.Equal(t, core.AuthFail, result.SPF)
	assert.Equal(t, core.AuthFail, result.DMARC)
	assert.Empty(t, result.MXRecords)
	assert.Equal(t, core.ReputationPoor, result.Reputation)
	assert.Contains(t, result.Risks, "SPF verification failed")
	assert.Contains(t, result.Risks, "DMARC verification failed")
	assert.Contains(t, result.Risks, "Domain has no MX records")
}

func TestCheckSPF(t *testing.T) {
	tests := []struct {
		name    string
		records []string
		want    core.AuthStatus
	}{
		{"hard fail qualifier", []string{"v=spf1 ip4:192.0.2.0/24 -all"}, core.AuthPass},
		{"soft fail qualifier", []string{"v=spf1 include:spf.example.net ~all"}, core.AuthPass},
		{"permissive record", []string{"v=spf1 +all"}, core.AuthNeutral},
		{"no spf record", []string{"google-site-verification=abc"}, core.AuthFail},
		{"no records at all", nil, core.AuthFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &fakeResolver{txt: map[string][]string{"example.com": tt.records}}
			a := newSenderAnalyzer(resolver)
			assert.Equal(t, tt.want, a.CheckSPF(context.Background(), "example.com"))
		})
	}
}

func TestCheckDMARC(t *testing.T) {
	tests := []struct {
		name    string
		records []string
		want    core.AuthStatus
	}{
		{"reject policy", []string{"v=DMARC1; p=reject"}, core.AuthPass},
		{"quarantine policy", []string{"v=DMARC1; p=quarantine; pct=50"}, core.AuthPass},
		{"none policy", []string{"v=DMARC1; p=none"}, core.AuthNeutral},
		{"missing policy tag", []string{"v=DMARC1; rua=mailto:x@example.com"}, core.AuthNeutral},
		{"no dmarc record", []string{"unrelated"}, core.AuthFail},
		{"no records at all", nil, core.AuthFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &fakeResolver{txt: map[string][]string{"_dmarc.example.com": tt.records}}
			a := newSenderAnalyzer(resolver)
			assert.Equal(t, tt.want, a.CheckDMARC(context.Background(), "example.com"))
		})
	}
}

func TestReputationTiers(t *testing.T) {
	resolver := &fakeResolver{
		txt: map[string][]string{
			"example.com":        {"v=spf1 -all"},
			"_dmarc.example.com": {"v=DMARC1; p=none"},
		},
		mx: map[string][]core.MXRecord{
			"example.com": {{Exchange: "mx.example.com", Priority: 10}},
		},
	}
	a := newSenderAnalyzer(resolver)

	// One negative signal: DMARC policy is none.
	result := a.AnalyzeSender(context.Background(), &core.EmailFacts{Sender: "x@example.com"})
	assert.Equal(t, core.ReputationModerate, result.Reputation)
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "example.com", domainOf("alice@example.com"))
	assert.Equal(t, "example.com", domainOf("alice@EXAMPLE.COM"))
	assert.Equal(t, "unknown", domainOf("no-at-sign"))
	assert.Equal(t, "unknown", domainOf("trailing@"))
	assert.Equal(t, "unknown", domainOf("a@b@c"))
}

func TestDmarcPolicy(t *testing.T) {
	assert.Equal(t, "reject", dmarcPolicy("v=DMARC1; p=reject; sp=none"))
	assert.Equal(t, "quarantine", dmarcPolicy("v=DMARC1;p=quarantine"))
	assert.Equal(t, "none", dmarcPolicy("v=DMARC1"))
}
