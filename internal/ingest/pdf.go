package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	rpdf "rsc.io/pdf"

	"github.com/david/contract-ledger/internal/logger"
	"github.com/david/contract-ledger/internal/models"
)

var errNoTextLayer = errors.New("pdf has no extractable text")

// PDFExtractor reads the text layer of a PDF locally, one segment per page.
// Scanned documents without a text layer need Docling's OCR.
type PDFExtractor struct{}

func (PDFExtractor) Extract(_ context.Context, filename string, data []byte) ([]models.TextSegment, error) {
	pages, err := extractPDFPages(data)
	if err != nil {
		return nil, fmt.Errorf("read pdf %s: %w", filename, err)
	}
	var segments []models.TextSegment
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		segments = append(segments, models.TextSegment{
			PageRange:   []int{i + 1, i + 1},
			RawMarkdown: text,
			TableBlocks: []string{},
		})
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("read pdf %s: %w", filename, errNoTextLayer)
	}
	return segments, nil
}

// extractPDFPages returns the text of every page, empty for pages that could
// not be read. Glyphs on one baseline are joined into a line and a gap wider
// than a fraction of the font size becomes a space.
func extractPDFPages(content []byte) (pages []string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			pages = nil
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	pages = make([]string, reader.NumPage())
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		var builder strings.Builder
		lastY, lastEnd := math.NaN(), 0.0
		for _, fragment := range page.Content().Text {
			switch {
			case math.IsNaN(lastY):
			case math.Abs(fragment.Y-lastY) > fragment.FontSize/2:
				builder.WriteString("\n")
			case fragment.X-lastEnd > fragment.FontSize*0.2:
				builder.WriteString(" ")
			}
			builder.WriteString(fragment.S)
			lastY, lastEnd = fragment.Y, fragment.X+fragment.W
		}
		pages[pageIndex-1] = builder.String()
	}
	return pages, nil
}

// FallbackExtractor uses Primary and, when it fails, Fallback.
type FallbackExtractor struct {
	Primary  TextExtractor
	Fallback TextExtractor
	Log      *logger.Logger
}

func (f FallbackExtractor) Extract(ctx context.Context, filename string, data []byte) ([]models.TextSegment, error) {
	segments, err := f.Primary.Extract(ctx, filename, data)
	if err == nil || f.Fallback == nil {
		return segments, err
	}
	if ctx.Err() != nil {
		return nil, err
	}
	if f.Log != nil {
		f.Log.Warn("primary text extraction failed, using fallback", "file", filename, "error", err)
	}
	segments, fbErr := f.Fallback.Extract(ctx, filename, data)
	if fbErr != nil {
		return nil, errors.Join(err, fbErr)
	}
	return segments, nil
}
