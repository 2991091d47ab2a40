package textutil

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Processor normalizes message text before analysis.
type Processor struct {
	logger *zap.Logger
}

// NewProcessor creates a new text processor.
func NewProcessor(logger *zap.Logger) *Processor {
	return &Processor{logger: logger}
}

// Fold lower-cases text and collapses runs of whitespace, the form the
// content pattern table matches against.
func (p *Processor) Fold(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(p.SanitizeUTF8(text))), " ")
}

// TruncateText safely truncates text to maxSize bytes while keeping the
// result valid UTF-8.
func (p *Processor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	if p.logger != nil {
		p.logger.Debug("Text truncated",
			zap.Int("original_size", len(text)),
			zap.Int("truncated_size", len(truncated)))
	}

	return truncated
}

// SanitizeUTF8 strips invalid UTF-8 sequences.
func (p *Processor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	result := make([]rune, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(text[i:])
			if size == 1 {
				continue
			}
		}
		result = append(result, r)
	}
	return string(result)
}
