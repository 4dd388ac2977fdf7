package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/cliohq/statement-worker/internal/models"
)

// ocrPDF handles scanned PDFs: each page is rasterized to a PNG and pushed
// through the OCR path. Requires pdftoppm (poppler-utils) on the host.
func (s *Service) ocrPDF(ctx context.Context, data []byte) models.ExtractionResult {
	pageImages, err := rasterizePDF(ctx, data, s.dpi)
	if err != nil {
		return failure(fmt.Sprintf("pdf rasterization failed: %v", err))
	}

	var pages []string
	var confidences []float64
	for i, img := range pageImages {
		text, confidence, err := s.ocrImageBytes(ctx, img)
		if err != nil {
			// Some pages may still OCR; keep going
			s.log.Warn().Err(err).Int("page", i+1).Msg("ocr_page_failed")
			continue
		}
		pages = append(pages, text)
		confidences = append(confidences, confidence)
		s.log.Debug().Int("page", i+1).Float64("page_confidence", confidence).
			Msg("ocr_page_processed")
	}

	if len(pages) == 0 {
		return failure(fmt.Sprintf("ocr produced no text from %d page images", len(pageImages)))
	}

	avg := 0.0
	for _, c := range confidences {
		avg += c
	}
	avg /= float64(len(confidences))

	return models.ExtractionResult{
		Text:       strings.Join(pages, "\n"),
		Pages:      pages,
		PageCount:  len(pages),
		Confidence: avg,
		Success:    true,
	}
}

// rasterizePDF converts every PDF page to a PNG via pdftoppm and returns the
// image bytes in page order.
func rasterizePDF(ctx context.Context, data []byte, dpi int) ([][]byte, error) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return nil, fmt.Errorf("pdftoppm not available (install poppler-utils): %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "statement-pages-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	imgPrefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-r", strconv.Itoa(dpi), "-png", pdfPath, imgPrefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %v (output: %s)", err, out)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("read temp dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".png") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no page images")
	}

	var images [][]byte
	for _, name := range names {
		img, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			return nil, fmt.Errorf("read page image %s: %w", name, err)
		}
		images = append(images, img)
	}
	return images, nil
}

// ocrImageBytes preprocesses an image and runs Tesseract over it. Returns
// the recognized text and the mean word confidence in [0, 1].
func (s *Service) ocrImageBytes(ctx context.Context, data []byte) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", 0, fmt.Errorf("decode image: %w", err)
	}

	processed := preprocess(img)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, processed, imaging.PNG); err != nil {
		return "", 0, fmt.Errorf("encode preprocessed image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Split(s.lang, "+")...); err != nil {
		return "", 0, fmt.Errorf("set ocr language %q: %w", s.lang, err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", 0, fmt.Errorf("set ocr image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", 0, fmt.Errorf("ocr: %w", err)
	}

	confidence := wordConfidence(client)
	return text, confidence, nil
}

// wordConfidence averages Tesseract's per-word confidences, skipping boxes
// with empty text, scaled to [0, 1]. Zero when nothing was recognized.
func wordConfidence(client *gosseract.Client) float64 {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return 0
	}
	var confs []float64
	for _, box := range boxes {
		if strings.TrimSpace(box.Word) == "" {
			continue
		}
		confs = append(confs, box.Confidence)
	}
	return meanConfidence(confs)
}

// meanConfidence scales Tesseract's 0-100 confidences to [0, 1].
func meanConfidence(confs []float64) float64 {
	if len(confs) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range confs {
		sum += c
	}
	return sum / float64(len(confs)) / 100.0
}
