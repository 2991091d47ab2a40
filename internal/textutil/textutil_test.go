package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestProcessor() *Processor {
	return NewProcessor(zap.NewNop())
}

func TestFold(t *testing.T) {
	p := newTestProcessor()

	assert.Equal(t, "urgent: verify your account", p.Fold("URGENT:   Verify\n\tyour  ACCOUNT"))
	assert.Equal(t, "hello world", p.Fold("  Hello   World  "))
	assert.Equal(t, "", p.Fold("   \t\n  "))
}

func TestTruncateText(t *testing.T) {
	p := newTestProcessor()

	assert.Equal(t, "short", p.TruncateText("short", 100))
	assert.Equal(t, "abcde", p.TruncateText("abcdefgh", 5))
	assert.Equal(t, "keep", p.TruncateText("keep", 0))
}

func TestTruncateTextKeepsValidUTF8(t *testing.T) {
	p := newTestProcessor()

	// "héllo" with the cut landing inside the two-byte é.
	text := "héllo"
	truncated := p.TruncateText(text, 2)

	assert.True(t, utf8.ValidString(truncated))
	assert.Equal(t, "h", truncated)
}

func TestSanitizeUTF8(t *testing.T) {
	p := newTestProcessor()

	assert.Equal(t, "clean", p.SanitizeUTF8("clean"))

	dirty := "bad" + string([]byte{0xff, 0xfe}) + "bytes"
	cleaned := p.SanitizeUTF8(dirty)
	assert.True(t, utf8.ValidString(cleaned))
	assert.Equal(t, "badbytes", cleaned)
}

func TestFoldLargeInput(t *testing.T) {
	p := newTestProcessor()

	text := strings.Repeat("Word ", 10000)
	folded := p.Fold(text)

	assert.False(t, strings.Contains(folded, "  "))
	assert.True(t, strings.HasPrefix(folded, "word word"))
}
