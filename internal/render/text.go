package render

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dvloznov/cfdi-reporter/internal/cfdi"
	"github.com/dvloznov/cfdi-reporter/internal/report"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4F81BD"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Align(lipgloss.Center)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f07070"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fb85f"))
)

// TextTable renders one table for a terminal.
func TextTable(t report.Table) string {
	if len(t.Rows) == 0 {
		return titleStyle.Render(t.Title) + "\n" + mutedStyle.Render(NoDataMessage) + "\n"
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(t.Columns...).
		Rows(t.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	return titleStyle.Render(t.Title) + "\n" + tbl.String() + "\n"
}

// WriteText prints every table, separated by blank lines.
func WriteText(w io.Writer, tables []report.Table) error {
	for _, t := range tables {
		if _, err := fmt.Fprintln(w, TextTable(t)); err != nil {
			return fmt.Errorf("WriteText: %w", err)
		}
	}
	return nil
}

// WriteBatchStatus prints one line per document of a batch, in the order the
// documents were processed.
func WriteBatchStatus(w io.Writer, res cfdi.Result) error {
	for _, name := range res.Read {
		if _, err := fmt.Fprintln(w, okStyle.Render("Archivo leído correctamente: "+name)); err != nil {
			return fmt.Errorf("WriteBatchStatus: %w", err)
		}
	}
	for _, f := range res.Failures {
		if _, err := fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("Error al leer %s: %s", f.Name, f.Message))); err != nil {
			return fmt.Errorf("WriteBatchStatus: %w", err)
		}
	}
	return nil
}

// WriteDateErrors lists the records left out of the date tables.
func WriteDateErrors(w io.Writer, errs []*report.DateParseError) error {
	for _, e := range errs {
		if _, err := fmt.Fprintln(w, errorStyle.Render("Fecha inválida: "+e.Error())); err != nil {
			return fmt.Errorf("WriteDateErrors: %w", err)
		}
	}
	return nil
}
