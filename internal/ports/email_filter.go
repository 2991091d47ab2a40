package ports

import (
	"context"

	"github.com/calloway/mailscan/internal/core"
)

// EmailFilter is a delivery surface for the threat engine: something
// that accepts messages, has them analyzed and acts on the verdict.
type EmailFilter interface {
	// ProcessEmail analyzes one already-parsed email.
	ProcessEmail(ctx context.Context, facts *core.EmailFacts) (*core.ThreatReport, error)

	// Start starts the filter service.
	Start() error

	// Stop stops the filter service.
	Stop() error
}
