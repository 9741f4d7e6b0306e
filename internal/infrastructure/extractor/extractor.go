package extractor

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// PDFMode selects how PDF bytes are turned into text.
type PDFMode string

const (
	// PDFModeAuto tries the structured reader first and falls back to token scraping.
	PDFModeAuto PDFMode = "auto"
	// PDFModeHeuristic only scrapes BT/ET text runs.
	PDFModeHeuristic PDFMode = "heuristic"
)

const (
	PDFPlaceholder   = "PDF content could not be extracted"
	ImagePlaceholder = "This is simulated OCR text from the uploaded image. In production, this would be actual text extracted from the image using OCR technology."
)

const (
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeODT  = "application/vnd.oasis.opendocument.text"
)

type Extractor struct {
	pdfMode PDFMode
	logger  *slog.Logger
}

func New(pdfMode PDFMode, logger *slog.Logger) *Extractor {
	if pdfMode != PDFModeHeuristic {
		pdfMode = PDFModeAuto
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{pdfMode: pdfMode, logger: logger}
}

// Extract routes on the declared media type. Unknown types yield "" and no error.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.Contains(mime, "pdf"):
		return e.extractPDF(data), nil
	case strings.Contains(mime, "image"):
		return ImagePlaceholder, nil
	case strings.Contains(mime, "text"), strings.Contains(mime, "document"), strings.Contains(mime, "rtf"):
		return e.extractDocument(data, mime)
	default:
		return "", nil
	}
}

func (e *Extractor) extractDocument(data []byte, mime string) (string, error) {
	var (
		text string
		err  error
	)
	switch {
	case mime == mimeDOCX:
		text, err = extractDOCX(data)
	case strings.Contains(mime, "rtf"):
		text, err = extractWithCat(data, ".rtf")
	case mime == mimeODT:
		text, err = extractWithCat(data, ".odt")
	default:
		return decodeText(data), nil
	}
	if err != nil {
		e.logger.Warn("structured_extract_failed", "mime_type", mime, "error", err)
		return decodeText(data), nil
	}
	return text, nil
}

// decodeText keeps undecodable bytes: input that is not UTF-8 is read as
// Windows-1252, the usual encoding of legacy plain text uploads.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return string(decoded)
}
