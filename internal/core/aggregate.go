package core

import (
	"fmt"
	"math"
)

// Recommendation text per classification level.
const (
	recommendSafe       = "This email appears safe. No action needed, but stay alert for anything unusual."
	recommendSuspicious = "Exercise caution. Verify the sender through another channel before clicking links or replying."
	recommendDangerous  = "Do not click links, open attachments, or reply. Delete this email or report it to your security team."
)

// maxReasons caps the verdict's reason list.
const maxReasons = 5

// Aggregate combines the four analyzer outputs plus metadata into a final
// verdict. It is pure: identical inputs always produce an identical
// score, level, recommendation and reason list.
func Aggregate(sender SenderResult, content ContentResult, urls UrlAnalysis, attachments AttachmentAnalysis, meta Metadata) ThreatVerdict {
	senderScore := 0
	if sender.SPF != AuthPass {
		senderScore += 40
	}
	if sender.DMARC != AuthPass {
		senderScore += 40
	}
	if sender.DomainInfo.Suspicious {
		senderScore += 20
	}

	contentScore := content.PhishingScore

	urlScore := 0
	if urls.DangerousCount > 0 {
		urlScore = 80
	}

	attachmentScore := 0
	if attachments.DangerousCount > 0 {
		attachmentScore = 90
	}

	combinedScore := 0
	if content.Impersonation && senderScore > 30 {
		combinedScore = 50
	}
	if urls.DangerousCount > 0 {
		combinedScore += 40
		if content.ShortBodyWithLinks {
			combinedScore += 20
		}
		if meta.IsSpamFolder {
			combinedScore += 20
		}
	}

	total := int(math.Round(
		float64(senderScore)*0.2 +
			float64(contentScore)*0.5 +
			float64(urlScore)*0.4 +
			float64(attachmentScore)*0.4 +
			float64(combinedScore)*0.2))

	// Override floors, applied in this fixed order. Each only ever raises
	// the total.
	switch content.SocialEngineering {
	case SocialHigh:
		total = floor(total, 45)
	case SocialModerate:
		total = floor(total, 30)
	}
	if content.Impersonation {
		total = floor(total, 60)
	}
	if meta.IsSpamFolder {
		total = floor(total, 40)
	}
	if urls.DangerousCount > 0 && (content.ShortBodyWithLinks || meta.IsSpamFolder) {
		total = floor(total, 75)
	}

	total = ClampScore(total)

	level := levelFor(total)

	return ThreatVerdict{
		Score:          total,
		Level:          level,
		Recommendation: recommendationFor(level),
		Reasons:        collectReasons(sender, content, urls, attachments, meta),
	}
}

// DefaultVerdict is returned when a whole-email analysis fails or times
// out. A degraded analysis must still yield a usable verdict.
func DefaultVerdict(reason string) ThreatVerdict {
	return ThreatVerdict{
		Score:          50,
		Level:          LevelSuspicious,
		Recommendation: recommendSuspicious,
		Reasons:        []string{reason},
	}
}

// ClampScore bounds a score into [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func floor(total, min int) int {
	if total < min {
		return min
	}
	return total
}

func levelFor(total int) ThreatLevel {
	switch {
	case total >= 61:
		return LevelDangerous
	case total >= 31:
		return LevelSuspicious
	default:
		return LevelSafe
	}
}

func recommendationFor(level ThreatLevel) string {
	switch level {
	case LevelDangerous:
		return recommendDangerous
	case LevelSuspicious:
		return recommendSuspicious
	default:
		return recommendSafe
	}
}

// collectReasons gathers reason strings in fixed priority order and
// truncates to the first maxReasons entries. The order is part of the
// output contract.
func collectReasons(sender SenderResult, content ContentResult, urls UrlAnalysis, attachments AttachmentAnalysis, meta Metadata) []string {
	reasons := make([]string, 0, maxReasons)

	if sender.SPF == AuthFail || sender.DMARC == AuthFail {
		reasons = append(reasons, "Sender failed email authentication (SPF/DMARC)")
	}
	if content.PhishingScore > 0 && len(content.Flags) > 0 {
		reasons = append(reasons, fmt.Sprintf("Phishing patterns in message content (score %d)", content.PhishingScore))
	}
	if urls.DangerousCount > 0 {
		reasons = append(reasons, fmt.Sprintf("%d dangerous URL(s) detected", urls.DangerousCount))
	}
	if attachments.DangerousCount > 0 {
		reasons = append(reasons, fmt.Sprintf("%d dangerous attachment(s) detected", attachments.DangerousCount))
	}
	if content.Impersonation {
		reasons = append(reasons, "Message impersonates a well-known brand")
	}
	if content.ShortBodyWithLinks {
		reasons = append(reasons, "Very short message body containing links")
	}
	if meta.IsSpamFolder {
		reasons = append(reasons, "Message was delivered to the spam folder")
	}

	if len(reasons) > maxReasons {
		reasons = reasons[:maxReasons]
	}
	return reasons
}
