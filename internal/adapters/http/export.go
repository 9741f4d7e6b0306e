package httpadapter

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/intellidocs/internal/core/domain"
)

const exportSheet = "Documents"

var exportHeaders = []string{
	"ID",
	"User",
	"Filename",
	"MIME Type",
	"Size (bytes)",
	"Status",
	"Category",
	"Confidence",
	"Summary",
	"Processing Error",
	"Created At",
	"Updated At",
}

// buildDocumentsXLSX renders the compliance listing as a single-sheet workbook.
func buildDocumentsXLSX(docs []domain.Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}

	for i, doc := range docs {
		row := i + 2
		values := []any{
			doc.ID,
			doc.UserID,
			doc.Filename,
			doc.MimeType,
			doc.FileSize,
			string(doc.Status),
			string(doc.Category),
			doc.ConfidenceScore,
			truncate(doc.Summary, 500),
			doc.ProcessingError,
			doc.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			doc.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(exportSheet, cell, v)
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "B", 38)
	_ = f.SetColWidth(exportSheet, "C", "D", 28)
	_ = f.SetColWidth(exportSheet, "I", "J", 60)
	_ = f.SetColWidth(exportSheet, "K", "L", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
