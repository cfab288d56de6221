package report

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Table is a titled, pre-formatted summary table ready for a renderer.
type Table struct {
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// EmptyMessage is shown when there is nothing to aggregate.
const EmptyMessage = "Todavía no hay facturas válidas para mostrar."

// ConceptSeparator joins a concept list into one cell.
const ConceptSeparator = " | "

// Tables returns the seven summary tables in report order.
func (s *Summary) Tables() []Table {
	tables := []Table{
		{Title: "Totales por año", Columns: []string{"anio", "total_anual"}},
		{Title: "Totales por mes", Columns: []string{"anio", "mes", "total_mensual"}},
		{Title: "Impuestos por año", Columns: []string{"anio", "impuestos_anual"}},
		{Title: "Impuestos por mes", Columns: []string{"anio", "mes", "impuestos_mensual"}},
		{Title: "Por RFC emisor (año/mes)", Columns: []string{"anio", "mes", "rfc_emisor", "total", "impuestos"}},
		{Title: "Por concepto (año/mes)", Columns: []string{"anio", "mes", "concepto", "total", "impuestos"}},
		{Title: "Por Uso CFDI (año/mes)", Columns: []string{"anio", "mes", "uso_cfdi", "total", "impuestos"}},
	}
	for i := range tables {
		tables[i].Rows = [][]string{}
	}

	for _, r := range s.YearTotals {
		tables[0].Rows = append(tables[0].Rows, []string{itoa(r.Year), FormatAmount(r.Total)})
	}
	for _, r := range s.MonthTotals {
		tables[1].Rows = append(tables[1].Rows, []string{itoa(r.Year), itoa(r.Month), FormatAmount(r.Total)})
	}
	for _, r := range s.YearTaxes {
		tables[2].Rows = append(tables[2].Rows, []string{itoa(r.Year), FormatAmount(r.Tax)})
	}
	for _, r := range s.MonthTaxes {
		tables[3].Rows = append(tables[3].Rows, []string{itoa(r.Year), itoa(r.Month), FormatAmount(r.Tax)})
	}
	for _, r := range s.ByIssuer {
		tables[4].Rows = append(tables[4].Rows, []string{
			itoa(r.Year), itoa(r.Month), r.IssuerTaxID, FormatAmount(r.Total), FormatAmount(r.Tax),
		})
	}
	for _, r := range s.ByConcept {
		tables[5].Rows = append(tables[5].Rows, []string{
			itoa(r.Year), itoa(r.Month), strings.Join(r.Concepts, ConceptSeparator), FormatAmount(r.Total), FormatAmount(r.Tax),
		})
	}
	for _, r := range s.ByUsage {
		tables[6].Rows = append(tables[6].Rows, []string{
			itoa(r.Year), itoa(r.Month), r.UsageCode, FormatAmount(r.Total), FormatAmount(r.Tax),
		})
	}

	return tables
}

// RecordsTable is the raw, deduplicated record listing.
func (s *Summary) RecordsTable() Table {
	t := Table{
		Title:   "Facturas",
		Columns: []string{"nombre", "rfc_emisor", "nombre_emisor", "conceptos", "total", "fecha", "impuestos_trasladados", "impuestos_retenidos", "uso_cfdi"},
		Rows:    make([][]string, 0, len(s.Records)),
	}
	for _, r := range s.Records {
		t.Rows = append(t.Rows, []string{
			r.Name,
			r.IssuerTaxID,
			r.IssuerName,
			strings.Join(r.Concepts, ConceptSeparator),
			FormatAmount(r.Total),
			r.IssueDate,
			FormatAmount(r.TaxesTransferred),
			FormatAmount(r.TaxesWithheld),
			r.UsageCode,
		})
	}
	return t
}

// FormatAmount renders an amount with two decimals, rounding half away from
// zero.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// NumericColumn reports whether a column holds numbers (years, months and
// amounts) rather than text.
func NumericColumn(name string) bool {
	switch name {
	case "anio", "mes",
		"total", "total_anual", "total_mensual",
		"impuestos", "impuestos_anual", "impuestos_mensual",
		"impuestos_trasladados", "impuestos_retenidos":
		return true
	}
	return false
}
