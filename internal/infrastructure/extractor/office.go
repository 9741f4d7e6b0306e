package extractor

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/lu4p/cat"
	"github.com/nguyenthenguyen/docx"
)

var xmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func extractDOCX(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}
	defer doc.Close()

	content := xmlTagPattern.ReplaceAllString(doc.Editable().GetContent(), " ")
	return strings.Join(strings.Fields(content), " "), nil
}

// extractWithCat spools the payload to a temp file; cat dispatches on extension.
func extractWithCat(data []byte, ext string) (string, error) {
	f, err := os.CreateTemp("", "intellidocs-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	text, err := cat.File(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", ext, err)
	}
	return text, nil
}
