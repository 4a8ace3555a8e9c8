package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/contract-ledger/internal/models"
)

func TestGuessLabel(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Room RATE table", "Pricing"},
		{"Bảng giá phòng 2025", "Pricing"},
		{"Khuyến mãi đặt sớm", "Promotion"},
		{"Stop sell from 1 July", "StopSell"},
		{"High season", "Season"},
		{"Cancellation terms", "Policy"},
		{"Điều khoản thanh toán", ""},
		// StopSell is checked before Pricing.
		{"Stop sell on all rates", "StopSell"},
		// Promotion is checked before Pricing.
		{"Promotion rate", "Promotion"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, guessLabel(tt.text), tt.text)
	}
}

func TestSegment_SplitsOnHeadingsAndTables(t *testing.T) {
	text := "intro line\n# Pricing\nrate 100\n<<<TABLE:t1>>>\nrow data"
	seg := models.TextSegment{PageRange: []int{1, 1}, Heading: "p1", RawMarkdown: text}

	parts := splitKeepingBreaks(text)
	assert.Equal(t, []string{"intro line\n", "# Pricing", "\nrate 100\n", "<<<TABLE:t1>>>", "\nrow data"}, parts)

	chunks := Segment([]models.TextSegment{seg}, 5000)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Pricing", chunks[0].Label)
	assert.Equal(t, []int{1, 1}, chunks[0].PageRange)
	assert.Equal(t, "p1", chunks[0].SourceHeading)
	assert.Contains(t, chunks[0].Markdown, "<<<TABLE:t1>>>")
}

func TestSegment_RespectsMaxChars(t *testing.T) {
	sections := []string{
		"# Pricing\n" + strings.Repeat("a", 40),
		"# Season\n" + strings.Repeat("b", 40),
		"# Cancellation\n" + strings.Repeat("c", 40),
	}
	seg := models.TextSegment{RawMarkdown: strings.Join(sections, "\n")}

	chunks := Segment([]models.TextSegment{seg}, 60)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Markdown)), 60)
	}
	assert.Equal(t, "Pricing", chunks[0].Label)
	assert.Equal(t, "Season", chunks[1].Label)
	assert.Equal(t, "Policy", chunks[2].Label)
}

func TestSegment_OversizedPartIsKept(t *testing.T) {
	long := strings.Repeat("x", 200)
	chunks := Segment([]models.TextSegment{{RawMarkdown: long}}, 50)
	require.Len(t, chunks, 1)
	assert.Equal(t, long, chunks[0].Markdown)
}

func TestSegment_EmptyInput(t *testing.T) {
	assert.Empty(t, Segment(nil, 0))
	assert.Empty(t, Segment([]models.TextSegment{{RawMarkdown: ""}}, 0))
}
