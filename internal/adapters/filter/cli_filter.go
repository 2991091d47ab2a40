package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/calloway/mailscan/internal/core"
)

// CliFilter implements a command-line interface for threat scoring
type CliFilter struct {
	service *core.ThreatService
	logger  *zap.Logger
	verbose bool
	asJSON  bool
}

// NewCliFilter creates a new CLI filter
func NewCliFilter(service *core.ThreatService, logger *zap.Logger, verbose, asJSON bool) (*CliFilter, error) {
	return &CliFilter{
		service: service,
		logger:  logger,
		verbose: verbose,
		asJSON:  asJSON,
	}, nil
}

// ProcessEmail analyzes an email and displays the results
func (f *CliFilter) ProcessEmail(ctx context.Context, facts *core.EmailFacts) (*core.ThreatReport, error) {
	f.logger.Debug("Processing email", zap.String("sender", facts.Sender))

	startTime := time.Now()
	report := f.service.Analyze(ctx, facts)
	duration := time.Since(startTime)

	if f.asJSON {
		encoded, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode report: %w", err)
		}
		fmt.Println(string(encoded))
		return report, nil
	}

	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", facts.Sender)
	fmt.Printf("Subject: %s\n", facts.Subject)
	fmt.Printf("Body length: %d bytes\n", len(facts.Body))
	fmt.Printf("URLs: %d, Attachments: %d\n", len(facts.URLs), len(facts.Attachments))

	if f.verbose {
		preview := facts.Body
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		fmt.Printf("\nBody preview:\n%s\n", preview)
	}

	verdict := report.Verdict
	fmt.Printf("\n=== Verdict ===\n")
	fmt.Printf("Threat level: %s\n", verdict.Level)
	fmt.Printf("Threat score: %d/100\n", verdict.Score)
	fmt.Printf("Recommendation: %s\n", verdict.Recommendation)
	for _, reason := range verdict.Reasons {
		fmt.Printf("  - %s\n", reason)
	}

	if f.verbose {
		fmt.Printf("\n=== Details ===\n")
		fmt.Printf("SPF: %s, DKIM: %s, DMARC: %s\n",
			report.Sender.SPF, report.Sender.DKIM, report.Sender.DMARC)
		fmt.Printf("Sender reputation: %s\n", report.Sender.Reputation)
		for _, risk := range report.Sender.Risks {
			fmt.Printf("  - %s\n", risk)
		}
		fmt.Printf("Content score: %d (social engineering: %s)\n",
			report.Content.PhishingScore, report.Content.SocialEngineering)
		for _, flag := range report.Content.Flags {
			fmt.Printf("  - %s\n", flag)
		}
		for _, u := range report.URLs.Results {
			fmt.Printf("URL %s: score %d, dangerous %t\n", u.Original, u.RiskScore, u.Dangerous)
			for _, flag := range u.Flags {
				fmt.Printf("  - %s\n", flag)
			}
		}
		for _, a := range report.Attachments.Results {
			fmt.Printf("Attachment %s: score %d, dangerous %t\n", a.Filename, a.RiskScore, a.Dangerous)
		}
	}

	fmt.Printf("\nProcessing time: %v\n", duration)

	return report, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
