// Package report renders an owner's documents as an xlsx workbook for
// handover to an accountant.
package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/mklenk/belegwerk/internal/core/domain"
	"github.com/mklenk/belegwerk/internal/core/ports"
)

const sheetName = "Documents"

var headerRow = []string{
	"Filename", "Invoice Date", "Partner", "Amount", "Currency",
	"VAT %", "Direction", "Confidence", "Status",
}

type Exporter struct {
	docs  ports.DocumentRepository
	limit int
}

func NewExporter(docs ports.DocumentRepository, limit int) *Exporter {
	if limit <= 0 {
		limit = 1000
	}
	return &Exporter{docs: docs, limit: limit}
}

// Export writes one row per document, newest first.
func (e *Exporter) Export(ctx context.Context, ownerID string) ([]byte, error) {
	docs, err := e.docs.ListByOwner(ctx, ownerID, e.limit)
	if err != nil {
		return nil, fmt.Errorf("list documents for export: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &headerRow); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, doc := range docs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("row coordinates: %w", err)
		}
		row := documentRow(doc)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func documentRow(doc domain.Document) []any {
	return []any{
		doc.Filename,
		stringOrEmpty(doc.InvoiceDate),
		stringOrEmpty(doc.ExtractedPartner),
		amountOrEmpty(doc.AmountMinor),
		stringOrEmpty(doc.Currency),
		intOrEmpty(doc.VATPercent),
		string(doc.InvoiceDirection),
		intOrEmpty(doc.Confidence),
		documentStatus(doc),
	}
}

func documentStatus(doc domain.Document) string {
	switch {
	case doc.ExtractionError != "":
		return "failed"
	case doc.IsNotInvoice:
		return "not invoice"
	case doc.ExtractionComplete:
		return "extracted"
	case doc.ClassificationComplete:
		return "classified"
	default:
		return "pending"
	}
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func intOrEmpty(value *int) any {
	if value == nil {
		return ""
	}
	return *value
}

func amountOrEmpty(minor *int64) any {
	if minor == nil {
		return ""
	}
	value := *minor
	negative := value < 0
	if negative {
		value = -value
	}
	formatted := fmt.Sprintf("%d,%02d", value/100, value%100)
	if negative {
		formatted = "-" + formatted
	}
	return formatted
}
