// Command statement-parse runs the extraction pipeline over a local file and
// prints the parsed bill as JSON. Useful for debugging bank pattern tables
// against real statements without the queue or database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cliohq/statement-worker/internal/extractor"
	"github.com/cliohq/statement-worker/internal/parser"
)

func main() {
	langFlag := flag.String("lang", extractor.DefaultLanguage, "Tesseract language set")
	dpiFlag := flag.Int("dpi", extractor.DefaultDPI, "Rasterization DPI for scanned PDFs")
	rawFlag := flag.Bool("raw", false, "Also print the extracted text")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Parse a credit-card statement file (PDF or image) and print the result.

Usage:
  statement-parse [flags] <statement.pdf|statement.jpg> [more files ...]

Flags:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)
	ex := extractor.NewService(*langFlag, *dpiFlag, log)
	selector := parser.NewSelector(nil)

	for _, path := range flag.Args() {
		if err := processFile(ex, selector, path, *rawFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", path, err)
			os.Exit(1)
		}
	}
}

func processFile(ex *extractor.Service, selector *parser.Selector, path string, printRaw bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	mediaType, err := mediaTypeFor(path)
	if err != nil {
		return err
	}

	result := ex.Extract(context.Background(), data, mediaType)
	if !result.Success {
		return fmt.Errorf("text extraction failed: %s", result.Error)
	}

	if printRaw {
		fmt.Fprintf(os.Stderr, "--- extracted text (%d pages) ---\n%s\n---\n",
			result.PageCount, result.Text)
	}

	p := selector.Select(result.Text)
	bill := p.Parse(result.Text)

	out, err := json.MarshalIndent(bill, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func mediaTypeFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf", nil
	case ".png":
		return "image/png", nil
	case ".jpg", ".jpeg":
		return "image/jpeg", nil
	default:
		return "", fmt.Errorf("unsupported file extension %q (expected .pdf, .png, .jpg)", filepath.Ext(path))
	}
}
