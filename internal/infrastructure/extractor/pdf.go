package extractor

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	textRunPattern = regexp.MustCompile(`BT\s*/\w+\s+\d+\s+Tf\s*(.*?)\s*ET`)
	nonWordPattern = regexp.MustCompile(`[^\w\s]`)
)

func (e *Extractor) extractPDF(data []byte) string {
	if e.pdfMode == PDFModeAuto {
		text, err := readPDF(data)
		if err != nil {
			e.logger.Debug("pdf_reader_failed", "error", err)
		} else if strings.TrimSpace(text) != "" {
			return text
		}
	}
	return scrapeTextRuns(data)
}

// scrapeTextRuns joins every BT ... Tf ... ET run found in the raw stream.
func scrapeTextRuns(data []byte) string {
	matches := textRunPattern.FindAll(data, -1)
	if len(matches) == 0 {
		return PDFPlaceholder
	}
	joined := bytes.Join(matches, []byte(" "))
	return nonWordPattern.ReplaceAllString(string(joined), " ")
}

// readPDF runs the structured reader. The parser panics on some malformed
// streams, so the panic is turned into an error.
func readPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if b.Len() > 0 && content != "" {
			b.WriteString("\n")
		}
		b.WriteString(content)
	}
	return b.String(), nil
}
