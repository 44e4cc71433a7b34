// Package report renders settlement data into downloadable spreadsheets
// for teachers and school administration.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/classpulse/classpulse-backend/internal/application/query"
)

const sheetName = "Focus Report"

// WriteClassReport renders a class day report as an xlsx workbook: one
// row per settled period per participant, roster order preserved.
func WriteClassReport(w io.Writer, report *query.GetClassReportResult) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("report: create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"No.", "Name", "Date", "Period", "Subject", "Focus Rate (%)", "Out of Seat"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("report: header: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DCE6F1"}},
	})
	if err == nil {
		lastCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheetName, "A1", lastCell, headerStyle)
	}

	row := 2
	for _, line := range report.Rows {
		if len(line.Records) == 0 {
			setRow(f, row, line.Number, line.DisplayName, report.Date.Format("2006-01-02"), "", "", "", "")
			row++
			continue
		}
		for _, rec := range line.Records {
			setRow(f, row, line.Number, line.DisplayName,
				rec.Date.Format("2006-01-02"),
				rec.PeriodNumber, rec.Subject,
				rec.FocusRatePercent, rec.OutOfSeatCount)
			row++
		}
	}

	_ = f.SetColWidth(sheetName, "B", "B", 24)
	_ = f.SetColWidth(sheetName, "C", "G", 14)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("report: write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values ...any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheetName, cell, v)
	}
}
