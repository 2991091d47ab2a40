package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func passingSender() SenderResult {
	return SenderResult{SPF: AuthPass, DKIM: AuthNotChecked, DMARC: AuthPass}
}

func TestAggregateBenignEmail(t *testing.T) {
	verdict := Aggregate(passingSender(), ContentResult{}, UrlAnalysis{}, AttachmentAnalysis{}, Metadata{})

	assert.Equal(t, 0, verdict.Score)
	assert.Equal(t, LevelSafe, verdict.Level)
	assert.Empty(t, verdict.Reasons)
	assert.Contains(t, verdict.Recommendation, "appears safe")
}

func TestAggregateAuthFailureAloneStaysSafe(t *testing.T) {
	sender := SenderResult{SPF: AuthFail, DKIM: AuthNotChecked, DMARC: AuthFail}

	verdict := Aggregate(sender, ContentResult{}, UrlAnalysis{}, AttachmentAnalysis{}, Metadata{})

	// 80 sender points at 0.2 weight
	assert.Equal(t, 16, verdict.Score)
	assert.Equal(t, LevelSafe, verdict.Level)
	assert.Equal(t, []string{"Sender failed email authentication (SPF/DMARC)"}, verdict.Reasons)
}

func TestAggregateDangerousAttachmentAlone(t *testing.T) {
	attachments := AttachmentAnalysis{
		Results:        []AttachmentResult{{Filename: "payload.exe", Dangerous: true, RiskScore: 90}},
		DangerousCount: 1,
	}

	verdict := Aggregate(passingSender(), ContentResult{}, UrlAnalysis{}, attachments, Metadata{})

	// 90 attachment points at 0.4 weight
	assert.Equal(t, 36, verdict.Score)
	assert.Equal(t, LevelSuspicious, verdict.Level)
	assert.Contains(t, verdict.Reasons, "1 dangerous attachment(s) detected")
}

func TestAggregateShortBodyWithDangerousURL(t *testing.T) {
	content := ContentResult{ShortBodyWithLinks: true, PhishingScore: 40, Flags: []string{"Very short body with links"}}
	urls := UrlAnalysis{DangerousCount: 1, DangerousUrls: []string{"http://203.0.113.7/login"}}

	verdict := Aggregate(passingSender(), content, urls, AttachmentAnalysis{}, Metadata{})

	assert.GreaterOrEqual(t, verdict.Score, 75)
	assert.Equal(t, LevelDangerous, verdict.Level)
	assert.Contains(t, verdict.Reasons, "1 dangerous URL(s) detected")
	assert.Contains(t, verdict.Reasons, "Very short message body containing links")
}

func TestAggregateSpamFolderFloor(t *testing.T) {
	verdict := Aggregate(passingSender(), ContentResult{}, UrlAnalysis{}, AttachmentAnalysis{}, Metadata{IsSpamFolder: true})

	assert.Equal(t, 40, verdict.Score)
	assert.Equal(t, LevelSuspicious, verdict.Level)
	assert.Equal(t, []string{"Message was delivered to the spam folder"}, verdict.Reasons)
}

func TestAggregateImpersonationFloor(t *testing.T) {
	content := ContentResult{
		PhishingScore:     30,
		Impersonation:     true,
		SocialEngineering: SocialModerate,
		Flags:             []string{"Impersonation: Mentions paypal"},
	}

	verdict := Aggregate(passingSender(), content, UrlAnalysis{}, AttachmentAnalysis{}, Metadata{})

	assert.Equal(t, 60, verdict.Score)
	assert.Equal(t, LevelSuspicious, verdict.Level)
	assert.Contains(t, verdict.Reasons, "Message impersonates a well-known brand")
}

func TestAggregateImpersonationWithFailedAuthCombines(t *testing.T) {
	sender := SenderResult{SPF: AuthFail, DKIM: AuthNotChecked, DMARC: AuthFail}
	content := ContentResult{
		PhishingScore:     55,
		Impersonation:     true,
		SocialEngineering: SocialHigh,
		Flags:             []string{"Impersonation: Mentions paypal"},
	}

	verdict := Aggregate(sender, content, UrlAnalysis{}, AttachmentAnalysis{}, Metadata{})

	// 80*0.2 + 55*0.5 + 50*0.2 = 16 + 27.5 + 10 = 53.5 -> 54, floored to 60
	assert.Equal(t, 60, verdict.Score)
	assert.Equal(t, LevelSuspicious, verdict.Level)
}

func TestAggregateSocialEngineeringFloors(t *testing.T) {
	tests := []struct {
		tier     SocialTier
		minScore int
	}{
		{SocialHigh, 45},
		{SocialModerate, 30},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			content := ContentResult{SocialEngineering: tt.tier}
			verdict := Aggregate(passingSender(), content, UrlAnalysis{}, AttachmentAnalysis{}, Metadata{})
			assert.Equal(t, tt.minScore, verdict.Score)
		})
	}
}

func TestAggregateScoreNeverExceeds100(t *testing.T) {
	sender := SenderResult{SPF: AuthFail, DMARC: AuthFail, DomainInfo: DomainInfo{Suspicious: true}}
	content := ContentResult{
		PhishingScore:      100,
		SocialEngineering:  SocialHigh,
		Impersonation:      true,
		ShortBodyWithLinks: true,
		Flags:              []string{"many"},
	}
	urls := UrlAnalysis{DangerousCount: 3}
	attachments := AttachmentAnalysis{DangerousCount: 2}

	verdict := Aggregate(sender, content, urls, attachments, Metadata{IsSpamFolder: true})

	assert.Equal(t, 100, verdict.Score)
	assert.Equal(t, LevelDangerous, verdict.Level)
}

func TestAggregateReasonOrderAndCap(t *testing.T) {
	sender := SenderResult{SPF: AuthFail, DMARC: AuthFail}
	content := ContentResult{
		PhishingScore:      60,
		Impersonation:      true,
		ShortBodyWithLinks: true,
		Flags:              []string{"Urgency"},
	}
	urls := UrlAnalysis{DangerousCount: 2}
	attachments := AttachmentAnalysis{DangerousCount: 1}

	verdict := Aggregate(sender, content, urls, attachments, Metadata{IsSpamFolder: true})

	// Seven candidate reasons, capped to the first five in priority order.
	assert.Equal(t, []string{
		"Sender failed email authentication (SPF/DMARC)",
		"Phishing patterns in message content (score 60)",
		"2 dangerous URL(s) detected",
		"1 dangerous attachment(s) detected",
		"Message impersonates a well-known brand",
	}, verdict.Reasons)
}

func TestAggregateIsDeterministic(t *testing.T) {
	sender := SenderResult{SPF: AuthFail, DMARC: AuthNeutral, DomainInfo: DomainInfo{Suspicious: true}}
	content := ContentResult{PhishingScore: 35, SocialEngineering: SocialModerate, Flags: []string{"Urgency"}}
	urls := UrlAnalysis{DangerousCount: 1}
	meta := Metadata{IsSpamFolder: true}

	first := Aggregate(sender, content, urls, AttachmentAnalysis{}, meta)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Aggregate(sender, content, urls, AttachmentAnalysis{}, meta))
	}
}

func TestAggregateRaisingSignalNeverLowersScore(t *testing.T) {
	sender := SenderResult{SPF: AuthFail, DKIM: AuthNotChecked, DMARC: AuthPass}
	content := ContentResult{PhishingScore: 25, SocialEngineering: SocialModerate, Flags: []string{"Urgency: pressure language"}}
	baseline := Aggregate(sender, content, UrlAnalysis{}, AttachmentAnalysis{}, Metadata{}).Score

	t.Run("spam folder flag", func(t *testing.T) {
		got := Aggregate(sender, content, UrlAnalysis{}, AttachmentAnalysis{}, Metadata{IsSpamFolder: true}).Score
		assert.GreaterOrEqual(t, got, baseline)
	})
	t.Run("dangerous URL", func(t *testing.T) {
		got := Aggregate(sender, content, UrlAnalysis{DangerousCount: 1}, AttachmentAnalysis{}, Metadata{}).Score
		assert.GreaterOrEqual(t, got, baseline)
	})
	t.Run("dangerous attachment", func(t *testing.T) {
		got := Aggregate(sender, content, UrlAnalysis{}, AttachmentAnalysis{DangerousCount: 1}, Metadata{}).Score
		assert.GreaterOrEqual(t, got, baseline)
	})
	t.Run("failed DMARC", func(t *testing.T) {
		worse := SenderResult{SPF: AuthFail, DKIM: AuthNotChecked, DMARC: AuthFail}
		got := Aggregate(worse, content, UrlAnalysis{}, AttachmentAnalysis{}, Metadata{}).Score
		assert.GreaterOrEqual(t, got, baseline)
	})
	t.Run("higher phishing score", func(t *testing.T) {
		worse := ContentResult{PhishingScore: 60, SocialEngineering: SocialHigh, Flags: content.Flags}
		got := Aggregate(sender, worse, UrlAnalysis{}, AttachmentAnalysis{}, Metadata{}).Score
		assert.GreaterOrEqual(t, got, baseline)
	})
	t.Run("short body on top of dangerous URL", func(t *testing.T) {
		urls := UrlAnalysis{DangerousCount: 1}
		withURL := Aggregate(sender, content, urls, AttachmentAnalysis{}, Metadata{}).Score
		worse := content
		worse.ShortBodyWithLinks = true
		got := Aggregate(sender, worse, urls, AttachmentAnalysis{}, Metadata{}).Score
		assert.GreaterOrEqual(t, got, withURL)
	})
}

func TestLevelBands(t *testing.T) {
	tests := []struct {
		score int
		level ThreatLevel
	}{
		{0, LevelSafe},
		{30, LevelSafe},
		{31, LevelSuspicious},
		{60, LevelSuspicious},
		{61, LevelDangerous},
		{100, LevelDangerous},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("score_%d", tt.score), func(t *testing.T) {
			assert.Equal(t, tt.level, levelFor(tt.score))
		})
	}
}

func TestDefaultVerdict(t *testing.T) {
	verdict := DefaultVerdict("Analysis incomplete: analyzer timed out")

	assert.Equal(t, 50, verdict.Score)
	assert.Equal(t, LevelSuspicious, verdict.Level)
	assert.Equal(t, []string{"Analysis incomplete: analyzer timed out"}, verdict.Reasons)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, ClampScore(-10))
	assert.Equal(t, 0, ClampScore(0))
	assert.Equal(t, 57, ClampScore(57))
	assert.Equal(t, 100, ClampScore(130))
}
