package core

import (
	"context"
	"strings"
	"time"
)

// RecordResolver fetches DNS records for a name. Implementations must
// treat a clean "no records" answer as an empty slice with a nil error;
// transport failures return an error so callers can fail closed.
type RecordResolver interface {
	// TXT returns the TXT records for a name.
	TXT(ctx context.Context, name string) ([]string, error)

	// MX returns the MX records for a name, sorted ascending by priority.
	MX(ctx context.Context, name string) ([]MXRecord, error)
}

// URLExpander resolves a short link to its final destination by following
// redirects. The chain is a human-readable description of the hops.
type URLExpander interface {
	Expand(ctx context.Context, rawURL string) (resolved string, chain string, err error)
}

// CacheRepository stores expiring analysis byproducts. The engine never
// requires the cache to function correctly, only to avoid redundant work.
type CacheRepository interface {
	// Get retrieves an entry by key.
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores an entry.
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes an entry.
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries.
	Cleanup(ctx context.Context) error
}

// SenderAnalyzer authenticates the sender domain and estimates its
// reputation.
type SenderAnalyzer interface {
	AnalyzeSender(ctx context.Context, facts *EmailFacts) SenderResult
}

// ContentAnalyzer scans subject and body against the weighted pattern
// table.
type ContentAnalyzer interface {
	AnalyzeContent(facts *EmailFacts) ContentResult
}

// URLRiskAnalyzer runs the per-URL risk pipeline.
type URLRiskAnalyzer interface {
	AnalyzeURLs(ctx context.Context, urls []string) UrlAnalysis
}

// AttachmentClassifier scores attachments from filename and extension.
type AttachmentClassifier interface {
	ClassifyAttachments(attachments []AttachmentFacts) AttachmentAnalysis
}

// CacheTTL returns the expiry for a cache key based on its type prefix.
func CacheTTL(key string) time.Duration {
	kind, _, _ := strings.Cut(key, ":")
	switch kind {
	case "domain":
		return 24 * time.Hour
	case "ip":
		return 12 * time.Hour
	case "url":
		return 6 * time.Hour
	case "email":
		return time.Hour
	default:
		return time.Hour
	}
}
