// Package render turns report tables into PDF, XLSX and terminal output.
package render

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/dvloznov/cfdi-reporter/internal/report"
)

const (
	PDFFilename    = "reporte_facturas.pdf"
	PDFContentType = "application/pdf"

	// PDFTitle heads the first page.
	PDFTitle = "Reporte de facturas"
	// NoDataMessage replaces the table of an empty section.
	NoDataMessage = "Sin datos para mostrar."
)

// Page geometry in points, Letter size.
const (
	marginLeft   = 30
	marginRight  = 30
	marginTop    = 40
	marginBottom = 30

	bodyFontSize   = 8
	cellPaddingX   = 4
	cellPaddingY   = 2
	rowHeight      = bodyFontSize*1.2 + 2*cellPaddingY
	minColumnWidth = 30
)

type rgb struct{ r, g, b int }

var (
	headerFill = rgb{0x4F, 0x81, 0xBD}
	headerText = rgb{255, 255, 255}
	bodyFill   = rgb{245, 245, 245} // whitesmoke
	bodyText   = rgb{0, 0, 0}
	gridColor  = rgb{128, 128, 128}
)

// WritePDF renders the tables as a PDF document: a title, then one titled
// section per table. Headers repeat when a table spans pages.
func WritePDF(w io.Writer, tables []report.Table) error {
	pdf := buildPDF(tables, true)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("WritePDF: %w", err)
	}
	return nil
}

func buildPDF(tables []report.Table, compress bool) *fpdf.Fpdf {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCompression(compress)
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.SetCellMargin(cellPaddingX)
	pdf.SetTitle(PDFTitle, true)

	// Core fonts are cp1252; translate so "año" renders.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 24, tr(PDFTitle), "", 1, "C", false, 0, "")
	pdf.Ln(12)

	for _, t := range tables {
		writeSection(pdf, tr, t)
	}

	return pdf
}

func writeSection(pdf *fpdf.Fpdf, tr func(string) string, t report.Table) {
	// Keep the title with at least the header and one row.
	_, pageHeight := pdf.GetPageSize()
	if pdf.GetY()+22+2*rowHeight > pageHeight-marginBottom {
		pdf.AddPage()
	}

	pdf.SetTextColor(bodyText.r, bodyText.g, bodyText.b)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 18, tr(t.Title), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if len(t.Rows) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 14, tr(NoDataMessage), "", 1, "L", false, 0, "")
		pdf.Ln(12)
		return
	}

	header := translateRow(tr, t.Columns)
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = translateRow(tr, r)
	}
	widths := columnWidths(pdf, header, rows)

	pdf.SetDrawColor(gridColor.r, gridColor.g, gridColor.b)
	pdf.SetLineWidth(0.25)

	writeHeader(pdf, header, widths)
	for _, row := range rows {
		if needsPageBreak(pdf) {
			pdf.AddPage()
			writeHeader(pdf, header, widths)
		}
		pdf.SetFont("Helvetica", "", bodyFontSize)
		pdf.SetFillColor(bodyFill.r, bodyFill.g, bodyFill.b)
		pdf.SetTextColor(bodyText.r, bodyText.g, bodyText.b)
		for i, cell := range row {
			pdf.CellFormat(widths[i], rowHeight, fitText(pdf, cell, widths[i]), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(14)
}

func writeHeader(pdf *fpdf.Fpdf, header []string, widths []float64) {
	pdf.SetFont("Helvetica", "B", bodyFontSize)
	pdf.SetFillColor(headerFill.r, headerFill.g, headerFill.b)
	pdf.SetTextColor(headerText.r, headerText.g, headerText.b)
	for i, col := range header {
		pdf.CellFormat(widths[i], rowHeight, fitText(pdf, col, widths[i]), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}

// needsPageBreak reports whether the next row would cross the bottom margin.
// Breaking by hand, rather than leaving it to fpdf, lets the header repeat.
func needsPageBreak(pdf *fpdf.Fpdf) bool {
	_, pageHeight := pdf.GetPageSize()
	return pdf.GetY()+rowHeight > pageHeight-marginBottom
}

// columnWidths sizes each column to its widest cell and scales the table down
// to the printable width when it does not fit.
func columnWidths(pdf *fpdf.Fpdf, header []string, rows [][]string) []float64 {
	widths := make([]float64, len(header))

	pdf.SetFont("Helvetica", "B", bodyFontSize)
	for i, h := range header {
		widths[i] = pdf.GetStringWidth(h)
	}
	pdf.SetFont("Helvetica", "", bodyFontSize)
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], pdf.GetStringWidth(cell))
			}
		}
	}

	total := 0.0
	for i := range widths {
		widths[i] = max(widths[i]+2*cellPaddingX, minColumnWidth)
		total += widths[i]
	}

	pageWidth, _ := pdf.GetPageSize()
	available := pageWidth - marginLeft - marginRight
	if total > available {
		scale := available / total
		for i := range widths {
			widths[i] *= scale
		}
	}

	return widths
}

// fitText shortens s with an ellipsis until it fits in a cell of width w.
// s is already cp1252, one byte per character.
func fitText(pdf *fpdf.Fpdf, s string, w float64) string {
	limit := w - 2*cellPaddingX
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	for n := len(s) - 1; n > 0; n-- {
		candidate := s[:n] + "..."
		if pdf.GetStringWidth(candidate) <= limit {
			return candidate
		}
	}
	return ""
}

func translateRow(tr func(string) string, row []string) []string {
	out := make([]string, len(row))
	for i, s := range row {
		out[i] = tr(s)
	}
	return out
}
