package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/cfdi-reporter/internal/report"
)

const (
	XLSXFilename    = "reporte_facturas.xlsx"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// ChartSheet holds the monthly series and its line chart.
	ChartSheet = "Gastos por mes"
)

const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(
	"/", "-", "\\", "-", "?", "", "*", "", ":", "", "[", "(", "]", ")",
)

// SheetName makes a table title usable as a worksheet name.
func SheetName(title string) string {
	name := sheetNameReplacer.Replace(title)
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

// WriteXLSX writes a workbook with the raw records, one sheet per summary
// table and a sheet charting the monthly totals.
func WriteXLSX(w io.Writer, s *report.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("WriteXLSX: header style: %w", err)
	}

	records := s.RecordsTable()
	if err := f.SetSheetName("Sheet1", records.Title); err != nil {
		return fmt.Errorf("WriteXLSX: rename default sheet: %w", err)
	}
	if err := writeSheet(f, records.Title, records, headerStyle); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}

	for _, t := range s.Tables() {
		name := SheetName(t.Title)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("WriteXLSX: new sheet %q: %w", name, err)
		}
		if err := writeSheet(f, name, t, headerStyle); err != nil {
			return fmt.Errorf("WriteXLSX: %w", err)
		}
	}

	if err := writeChartSheet(f, s.Chart, headerStyle); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("WriteXLSX: write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, t report.Table, headerStyle int) error {
	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writeSheet %q: header: %w", sheet, err)
	}

	last, err := excelize.CoordinatesToCellName(len(t.Columns), 1)
	if err != nil {
		return fmt.Errorf("writeSheet %q: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("writeSheet %q: style: %w", sheet, err)
	}

	for i, row := range t.Rows {
		values := make([]interface{}, len(row))
		for j, cell := range row {
			values[j] = cellValue(t.Columns[j], cell)
		}
		start, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("writeSheet %q: %w", sheet, err)
		}
		if err := f.SetSheetRow(sheet, start, &values); err != nil {
			return fmt.Errorf("writeSheet %q: row %d: %w", sheet, i+2, err)
		}
	}

	return nil
}

// cellValue stores numeric columns as numbers so spreadsheet formulas work.
func cellValue(column, cell string) interface{} {
	if !report.NumericColumn(column) {
		return cell
	}
	if n, err := strconv.Atoi(cell); err == nil {
		return n
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil {
		return v
	}
	return cell
}

func writeChartSheet(f *excelize.File, points []report.ChartPoint, headerStyle int) error {
	if _, err := f.NewSheet(ChartSheet); err != nil {
		return fmt.Errorf("writeChartSheet: new sheet: %w", err)
	}

	t := report.Table{Columns: []string{"periodo", "total"}}
	for _, p := range points {
		t.Rows = append(t.Rows, []string{p.Period, report.FormatAmount(p.Total)})
	}
	if err := writeSheet(f, ChartSheet, t, headerStyle); err != nil {
		return fmt.Errorf("writeChartSheet: %w", err)
	}

	if len(points) == 0 {
		return nil
	}

	lastRow := len(points) + 1
	ref := "'" + ChartSheet + "'!"
	err := f.AddChart(ChartSheet, "D2", &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{{
			Name:       ref + "$B$1",
			Categories: fmt.Sprintf("%s$A$2:$A$%d", ref, lastRow),
			Values:     fmt.Sprintf("%s$B$2:$B$%d", ref, lastRow),
		}},
	})
	if err != nil {
		return fmt.Errorf("writeChartSheet: add chart: %w", err)
	}
	return nil
}
