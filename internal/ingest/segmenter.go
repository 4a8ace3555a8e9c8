package ingest

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/david/contract-ledger/internal/models"
)

// DefaultMaxChars bounds a chunk unless a single part is already longer.
const DefaultMaxChars = 5000

// sectionBreak matches top-level headings and table markers on their own line.
var sectionBreak = regexp.MustCompile(`(?m)^(# .+|<<<TABLE:[^>]+>>>)$`)

// labelKeywords is checked in order; the first list with a hit names the chunk.
var labelKeywords = []struct {
	label    string
	keywords []string
}{
	{"StopSell", []string{"stop sell", "đóng bán", "ngừng bán"}},
	{"Promotion", []string{"promotion", "khuyến mãi", "ưu đãi"}},
	{"Pricing", []string{"pricing", "rate", "bảng giá", "giá phòng"}},
	{"Season", []string{"season", "mùa", "giai đoạn"}},
	{"Policy", []string{"cancellation", "no show", "non-refundable", "hoàn", "huỷ"}},
}

func guessLabel(text string) string {
	t := strings.ToLower(text)
	for _, group := range labelKeywords {
		for _, k := range group.keywords {
			if strings.Contains(t, k) {
				return group.label
			}
		}
	}
	return ""
}

// Segment cuts each segment at headings and table markers and packs the
// pieces into chunks of at most maxChars characters. A single piece longer
// than maxChars becomes its own chunk.
func Segment(segments []models.TextSegment, maxChars int) []models.Chunk {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	var chunks []models.Chunk
	for _, seg := range segments {
		emit := func(buffer string) {
			chunks = append(chunks, models.Chunk{
				Label:         guessLabel(buffer),
				Markdown:      buffer,
				PageRange:     seg.PageRange,
				SourceHeading: seg.Heading,
			})
		}

		buffer := ""
		for _, part := range splitKeepingBreaks(seg.RawMarkdown) {
			if part == "" {
				continue
			}
			candidate := part
			if buffer != "" {
				candidate = strings.TrimSpace(buffer + "\n\n" + part)
			}
			if utf8.RuneCountInString(candidate) > maxChars && buffer != "" {
				emit(buffer)
				buffer = part
				continue
			}
			buffer = candidate
		}
		if buffer != "" {
			emit(buffer)
		}
	}
	return chunks
}

// splitKeepingBreaks splits text around sectionBreak matches and keeps the
// matches as parts of their own.
func splitKeepingBreaks(text string) []string {
	var parts []string
	prev := 0
	for _, loc := range sectionBreak.FindAllStringIndex(text, -1) {
		parts = append(parts, text[prev:loc[0]], text[loc[0]:loc[1]])
		prev = loc[1]
	}
	return append(parts, text[prev:])
}
