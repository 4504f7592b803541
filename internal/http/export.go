package http

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"spendwise/internal/core"
	"spendwise/internal/sheets"
)

const contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var exportHeader = []string{"Date", "Description", "Category", "Place", "Amount"}

// csvRow renders one CSV line. Free text is escaped so spreadsheet apps
// opening the file do not evaluate it. XLSX cells are typed as strings and
// need no escaping.
func csvRow(v core.ExpenseView) []string {
	return []string{
		v.Date.UTC().Format(dateLayout),
		sheets.EscapeFormula(v.Description),
		sheets.EscapeFormula(v.Category.Name),
		sheets.EscapeFormula(v.Place),
		v.Amount.String(),
	}
}

// writeCSV writes a UTF-8 CSV with a byte order mark so spreadsheet apps
// detect the encoding.
func writeCSV(w io.Writer, views []core.ExpenseView) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, v := range views {
		if err := cw.Write(csvRow(v)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

const exportSheet = "Expenses"

// writeXLSX writes a single-sheet workbook. Amounts are numeric cells with
// two decimals.
func writeXLSX(w io.Writer, views []core.ExpenseView) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, v := range views {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			v.Date.UTC().Format(dateLayout),
			v.Description,
			v.Category.Name,
			v.Place,
			v.Amount.Float(),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if len(views) > 0 {
		style, err := f.NewStyle(&excelize.Style{NumFmt: 2})
		if err != nil {
			return fmt.Errorf("create amount style: %w", err)
		}
		if err := f.SetCellStyle(exportSheet, "E2", fmt.Sprintf("E%d", len(views)+1), style); err != nil {
			return fmt.Errorf("apply amount style: %w", err)
		}
	}
	if err := f.SetColWidth(exportSheet, "A", "E", 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	return f.Write(w)
}
