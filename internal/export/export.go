// Package export writes parse history to spreadsheet workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/radityaharya/workers-receipt-parser/internal/model"
	"github.com/radityaharya/workers-receipt-parser/internal/validation"
)

const (
	ReceiptsSheet = "Receipts"
	IssuesSheet   = "Issues"
)

var (
	receiptsHeader = []any{"ID", "Parsed At", "Store", "Timestamp", "Category", "Total", "Currency", "Discrepancy", "Service Charge Included", "Confidence", "Valid", "Issues"}
	issuesHeader   = []any{"Receipt ID", "Store", "Type", "Severity", "Message"}
)

// Record is one parsed receipt with its validation outcome
type Record struct {
	ID         string
	CreatedAt  time.Time
	Receipt    model.Receipt
	Validation validation.Result
}

// WriteXLSX writes records as a workbook with a Receipts sheet and an Issues sheet
func WriteXLSX(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ReceiptsSheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(IssuesSheet); err != nil {
		return fmt.Errorf("creating issues sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("creating amount style: %w", err)
	}

	if err := writeHeader(f, ReceiptsSheet, receiptsHeader, bold); err != nil {
		return err
	}
	if err := writeHeader(f, IssuesSheet, issuesHeader, bold); err != nil {
		return err
	}

	issueRow := 2
	for i, rec := range records {
		if err := setRow(f, ReceiptsSheet, i+2, receiptRow(rec)); err != nil {
			return err
		}
		for _, issue := range rec.Validation.Issues {
			row := []any{rec.ID, rec.Receipt.StoreName(), string(issue.Type), issue.Severity.String(), issue.Message}
			if err := setRow(f, IssuesSheet, issueRow, row); err != nil {
				return err
			}
			issueRow++
		}
	}

	if err := f.SetColStyle(ReceiptsSheet, "F", amount); err != nil {
		return fmt.Errorf("styling totals: %w", err)
	}
	if err := f.SetColStyle(ReceiptsSheet, "H", amount); err != nil {
		return fmt.Errorf("styling discrepancies: %w", err)
	}
	// Column styles also apply to the header row
	if err := f.SetRowStyle(ReceiptsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	if err := f.SetColWidth(ReceiptsSheet, "C", "C", 30); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}
	if err := f.SetColWidth(IssuesSheet, "E", "E", 80); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func receiptRow(rec Record) []any {
	r := rec.Receipt
	row := []any{
		rec.ID,
		rec.CreatedAt.UTC().Format(time.RFC3339),
		r.StoreName(),
		r.Timestamp(),
		string(r.Category),
		nil,
		r.Currency(),
		nil,
		nil,
		rec.Validation.ConfidenceScore,
		rec.Validation.Valid,
		len(rec.Validation.Issues),
	}
	if total := r.Total(); total.Valid {
		row[5] = total.Value
	}
	if s := r.Summary; s != nil {
		if s.Discrepancy.Valid {
			row[7] = s.Discrepancy.Value
		}
		if s.ServiceChargeIncluded != nil {
			row[8] = *s.ServiceChargeIncluded
		}
	}
	return row
}

func writeHeader(f *excelize.File, sheet string, header []any, style int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("computing header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", end, style); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}
	if err := f.AutoFilter(sheet, "A1:"+end, nil); err != nil {
		return fmt.Errorf("adding %s filter: %w", sheet, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("computing cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}
