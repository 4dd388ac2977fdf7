package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cliohq/statement-worker/internal/models"
)

// DefaultLanguage covers the language mix on Taiwanese statements: bank
// branding in English, line items in Traditional (sometimes Simplified)
// Chinese.
const DefaultLanguage = "chi_tra+chi_sim+eng"

// Rasterization DPI for scanned PDFs. Below 300 Tesseract accuracy on CJK
// glyphs drops off sharply.
const DefaultDPI = 300

// minTextLayerChars is the scanned-document heuristic: a PDF whose first few
// pages carry less embedded text than this is treated as image-based.
const minTextLayerChars = 100

// Service turns raw statement bytes into plain text. Native-text PDFs go
// through the embedded text layer; images and scanned PDFs go through OCR.
type Service struct {
	lang string
	dpi  int
	log  zerolog.Logger
}

// NewService builds a text extraction service. An empty lang falls back to
// DefaultLanguage; a zero dpi falls back to DefaultDPI.
func NewService(lang string, dpi int, log zerolog.Logger) *Service {
	if lang == "" {
		lang = DefaultLanguage
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Service{lang: lang, dpi: dpi, log: log.With().Str("service", "extractor").Logger()}
}

// SupportedMediaType reports whether Extract can handle the declared media
// type. Callers use this to fail unsupported uploads without retrying.
func SupportedMediaType(mediaType string) bool {
	return mediaType == "application/pdf" || strings.HasPrefix(mediaType, "image/")
}

// Extract produces plain text from statement bytes. It never panics or
// returns a Go error across this boundary: failures come back as
// Success=false with the error message captured, and the caller decides
// whether the task is retryable.
func (s *Service) Extract(ctx context.Context, data []byte, mediaType string) models.ExtractionResult {
	switch {
	case mediaType == "application/pdf":
		return s.extractPDF(ctx, data)
	case strings.HasPrefix(mediaType, "image/"):
		return s.extractImage(ctx, data)
	default:
		return failure(fmt.Sprintf("unsupported media type: %s", mediaType))
	}
}

func (s *Service) extractPDF(ctx context.Context, data []byte) models.ExtractionResult {
	pages, err := extractTextLayer(data)
	if err == nil && !isScanned(pages) {
		text := strings.Join(pages, "\n")
		s.log.Info().Int("pages", len(pages)).Int("text_length", len(text)).
			Msg("pdf_extraction_success")
		return models.ExtractionResult{
			Text:      text,
			Pages:     pages,
			PageCount: len(pages),
			Success:   true,
		}
	}

	// Near-empty text layer means a scanned statement; rasterize and OCR.
	if err != nil {
		s.log.Warn().Err(err).Msg("pdf_text_layer_failed")
	}
	result := s.ocrPDF(ctx, data)
	if !result.Success {
		s.log.Error().Str("error", result.Error).Msg("ocr_pdf_extraction_failed")
		return result
	}
	s.log.Info().Int("pages", result.PageCount).
		Float64("avg_confidence", result.Confidence).
		Msg("ocr_pdf_extraction_success")
	return result
}

func (s *Service) extractImage(ctx context.Context, data []byte) models.ExtractionResult {
	text, confidence, err := s.ocrImageBytes(ctx, data)
	if err != nil {
		s.log.Error().Err(err).Msg("ocr_extraction_failed")
		return failure(fmt.Sprintf("ocr failed: %v", err))
	}
	s.log.Info().Int("text_length", len(text)).Float64("confidence", confidence).
		Msg("ocr_extraction_success")
	return models.ExtractionResult{
		Text:       strings.TrimSpace(text),
		Pages:      []string{text},
		PageCount:  1,
		Confidence: confidence,
		Success:    true,
	}
}

// isScanned applies the text-layer heuristic over the first few pages.
func isScanned(pages []string) bool {
	chars := 0
	for i, page := range pages {
		if i >= 3 {
			break
		}
		chars += len(strings.TrimSpace(page))
	}
	return chars < minTextLayerChars
}

func failure(msg string) models.ExtractionResult {
	return models.ExtractionResult{Success: false, Error: msg}
}
