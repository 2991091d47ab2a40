package core

import (
	"time"
)

// AuthStatus is the outcome of an email-authentication check.
type AuthStatus string

const (
	AuthPass       AuthStatus = "pass"
	AuthNeutral    AuthStatus = "neutral"
	AuthFail       AuthStatus = "fail"
	AuthError      AuthStatus = "error"
	AuthNotChecked AuthStatus = "not_checked"
)

// ThreatLevel is the final classification band for an email.
type ThreatLevel string

const (
	LevelSafe       ThreatLevel = "SAFE"
	LevelSuspicious ThreatLevel = "SUSPICIOUS"
	LevelDangerous  ThreatLevel = "DANGEROUS"
)

// SocialTier grades the social-engineering pressure found in the content.
type SocialTier string

const (
	SocialLow      SocialTier = "Low"
	SocialModerate SocialTier = "Moderate"
	SocialHigh     SocialTier = "High"
)

// ReputationTier grades the sender domain's overall standing.
type ReputationTier string

const (
	ReputationGood     ReputationTier = "Good"
	ReputationModerate ReputationTier = "Moderate"
	ReputationPoor     ReputationTier = "Poor"
)

// EmailFacts is the structured, already-extracted view of one message.
// It is produced once by the parser and treated as immutable by every
// analyzer.
type EmailFacts struct {
	Sender      string            `json:"sender"`
	SenderName  string            `json:"sender_name"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	URLs        []string          `json:"urls"`
	Attachments []AttachmentFacts `json:"attachments"`
	Metadata    Metadata          `json:"metadata"`
}

// Metadata holds counts and booleans derived from the raw message by the
// parser. Read-only to the engine.
type Metadata struct {
	AttachmentCount   int  `json:"attachment_count"`
	URLCount          int  `json:"url_count"`
	BodyLength        int  `json:"body_length"`
	SubjectLength     int  `json:"subject_length"`
	HasSenderName     bool `json:"has_sender_name"`
	SenderNameMatches bool `json:"sender_name_matches_domain"`
	HasHTMLFormatting bool `json:"has_html_formatting"`
	ImageCount        int  `json:"image_count"`
	RecipientCount    int  `json:"recipient_count"`
	IsReply           bool `json:"is_reply"`
	IsForward         bool `json:"is_forward"`
	IsSpamFolder      bool `json:"is_spam_folder"`
}

// AttachmentFacts describes one attachment by name only; content is never
// inspected.
type AttachmentFacts struct {
	Filename  string `json:"filename"`
	Size      string `json:"size"`
	Extension string `json:"extension"`
}

// DomainInfo is the heuristic estimate for a domain. Recomputed per
// analysis; persisting it is the cache's job, not the engine's.
type DomainInfo struct {
	AgeEstimate string `json:"age_estimate"`
	Registrar   string `json:"registrar"`
	Country     string `json:"country"`
	Blacklisted bool   `json:"blacklisted"`
	Suspicious  bool   `json:"suspicious"`
}

// MXRecord is one mail exchange entry.
type MXRecord struct {
	Exchange string `json:"exchange"`
	Priority int    `json:"priority"`
}

// UrlResult is the per-URL analysis outcome. Dangerous is decided on the
// raw accumulated score; RiskScore is clamped for reporting.
type UrlResult struct {
	Original      string   `json:"original"`
	Resolved      string   `json:"resolved"`
	RiskScore     int      `json:"risk_score"`
	Dangerous     bool     `json:"dangerous"`
	Flags         []string `json:"flags"`
	RedirectChain string   `json:"redirect_chain,omitempty"`
}

// UrlAnalysis aggregates the per-URL results for one message.
type UrlAnalysis struct {
	Results        []UrlResult `json:"results"`
	DangerousCount int         `json:"dangerous_count"`
	DangerousUrls  []string    `json:"dangerous_urls"`
}

// AttachmentResult scores one attachment. RiskScore may exceed 100 when a
// dangerous extension stacks with a double extension; only the Dangerous
// flag feeds the email-level score, and a display layer is expected to
// clamp before showing it.
type AttachmentResult struct {
	Filename  string   `json:"filename"`
	Extension string   `json:"extension"`
	Dangerous bool     `json:"dangerous"`
	RiskScore int      `json:"risk_score"`
	Flags     []string `json:"flags"`
}

// AttachmentAnalysis aggregates the per-attachment results.
type AttachmentAnalysis struct {
	Results        []AttachmentResult `json:"results"`
	DangerousCount int                `json:"dangerous_count"`
}

// ContentResult is the outcome of the subject+body pattern scan.
type ContentResult struct {
	PhishingScore      int        `json:"phishing_score"`
	SocialEngineering  SocialTier `json:"social_engineering"`
	Impersonation      bool       `json:"impersonation"`
	ShortBodyWithLinks bool       `json:"short_body_with_links"`
	Flags              []string   `json:"flags"`
}

// SenderResult is the outcome of sender authentication and domain
// reputation. DKIM is always AuthNotChecked: verifying it needs the raw
// message headers, which are outside the engine's input.
type SenderResult struct {
	Address    string         `json:"address"`
	Domain     string         `json:"domain"`
	SPF        AuthStatus     `json:"spf"`
	DKIM       AuthStatus     `json:"dkim"`
	DMARC      AuthStatus     `json:"dmarc"`
	MXRecords  []MXRecord     `json:"mx_records"`
	DomainInfo DomainInfo     `json:"domain_info"`
	Reputation ReputationTier `json:"reputation"`
	Risks      []string       `json:"risks"`
}

// ThreatVerdict is the final aggregated decision for one email.
// Score is always within [0,100] and Level matches the band containing
// Score (0-30 SAFE, 31-60 SUSPICIOUS, 61-100 DANGEROUS).
type ThreatVerdict struct {
	Score          int         `json:"score"`
	Level          ThreatLevel `json:"level"`
	Recommendation string      `json:"recommendation"`
	Reasons        []string    `json:"reasons"`
	ProcessingID   string      `json:"processing_id"`
	AnalyzedAt     time.Time   `json:"analyzed_at"`
}

// ThreatReport bundles the verdict with the four analyzer sub-results,
// suitable for direct serialization to a display layer.
type ThreatReport struct {
	Verdict     ThreatVerdict      `json:"verdict"`
	Sender      SenderResult       `json:"sender"`
	Content     ContentResult      `json:"content"`
	URLs        UrlAnalysis        `json:"urls"`
	Attachments AttachmentAnalysis `json:"attachments"`
}

// CacheEntry is one expiring keyed value. Keys follow the
// "<type>:<identifier>" convention, e.g. "domain:example.com" or
// "email:alice@example.com".
type CacheEntry struct {
	Key       string
	Payload   []byte
	StoredAt  time.Time
	ExpiresAt time.Time
}
