package report

import (
	"encoding/json"
	"testing"

	"github.com/dvloznov/cfdi-reporter/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []domain.InvoiceRecord {
	return []domain.InvoiceRecord{
		{
			Name:             "A.xml",
			IssuerTaxID:      "AAA010101AAA",
			Concepts:         []string{"Hosting"},
			Total:            500,
			IssueDate:        "2024-01-15T10:00:00",
			TaxesTransferred: 80,
			UsageCode:        "G03",
		},
		{
			Name:             "B.xml",
			IssuerTaxID:      "AAA010101AAA",
			Concepts:         []string{"Hosting"},
			Total:            300,
			IssueDate:        "2024-02-10T09:00:00",
			TaxesTransferred: 48,
			TaxesWithheld:    8,
			UsageCode:        "G03",
		},
	}
}

func TestAggregate_EndToEnd(t *testing.T) {
	s := Aggregate(sampleRecords(), Options{})

	assert.False(t, s.Empty())
	assert.Empty(t, s.DateErrors)
	assert.Equal(t, []YearTotal{{Year: 2024, Total: 800}}, s.YearTotals)
	assert.Equal(t, []MonthTotal{
		{Year: 2024, Month: 1, Total: 500},
		{Year: 2024, Month: 2, Total: 300},
	}, s.MonthTotals)
	assert.Equal(t, []YearTax{{Year: 2024, Tax: 120}}, s.YearTaxes)
	assert.Equal(t, []MonthTax{
		{Year: 2024, Month: 1, Tax: 80},
		{Year: 2024, Month: 2, Tax: 40},
	}, s.MonthTaxes)
	assert.Equal(t, []IssuerSummary{
		{Year: 2024, Month: 1, IssuerTaxID: "AAA010101AAA", Total: 500, Tax: 80},
		{Year: 2024, Month: 2, IssuerTaxID: "AAA010101AAA", Total: 300, Tax: 40},
	}, s.ByIssuer)
	assert.Equal(t, []ChartPoint{
		{Period: "2024-01", Total: 500},
		{Period: "2024-02", Total: 300},
	}, s.Chart)
}

func TestAggregate_IssuerFilter(t *testing.T) {
	tests := []struct {
		filter string
		want   int
	}{
		{filter: "", want: 2},
		{filter: "AAA", want: 2},
		{filter: "aaa0101", want: 2},
		{filter: "ZZZ", want: 0},
		{filter: ".*", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			s := Aggregate(sampleRecords(), Options{IssuerFilter: tt.filter})
			assert.Len(t, s.Records, tt.want)
			assert.Len(t, s.MonthTotals, tt.want)
			assert.Equal(t, tt.want == 0, s.Empty())
		})
	}
}

func TestAggregate_FilterSkipsRecordsWithoutIssuer(t *testing.T) {
	recs := append(sampleRecords(), domain.InvoiceRecord{Name: "C.xml", Total: 1, IssueDate: "2024-01-01"})

	assert.Len(t, Aggregate(recs, Options{}).Records, 3)
	assert.Len(t, Aggregate(recs, Options{IssuerFilter: "A"}).Records, 2)
}

func TestAggregate_NoMatchYieldsEmptyTables(t *testing.T) {
	s := Aggregate(sampleRecords(), Options{IssuerFilter: "ZZZ"})

	assert.True(t, s.Empty())
	for _, tbl := range s.Tables() {
		assert.Empty(t, tbl.Rows, tbl.Title)
	}
	assert.Empty(t, s.Chart)
}

func TestAggregate_YearSumsMatchRegroupedMonths(t *testing.T) {
	recs := []domain.InvoiceRecord{
		{Name: "1", Total: 10.10, IssueDate: "2023-11-02"},
		{Name: "2", Total: 20.20, IssueDate: "2023-12-02"},
		{Name: "3", Total: 30.30, IssueDate: "2024-01-02"},
		{Name: "4", Total: 40.40, IssueDate: "2024-01-20"},
		{Name: "5", Total: 50.50, IssueDate: "2024-03-05"},
	}
	s := Aggregate(recs, Options{})

	regrouped := map[int]float64{}
	for _, m := range s.MonthTotals {
		regrouped[m.Year] += m.Total
	}
	require.Len(t, s.YearTotals, 2)
	for _, y := range s.YearTotals {
		assert.InDelta(t, y.Total, regrouped[y.Year], 1e-9)
	}
}

func TestAggregate_DeduplicatesByNameAndTotal(t *testing.T) {
	recs := sampleRecords()
	dup := recs[0]
	dup.IssuerTaxID = "OTHER"
	dup.IssueDate = "2020-01-01"

	forward := Aggregate(append(recs, dup), Options{})
	backward := Aggregate(append([]domain.InvoiceRecord{dup}, recs...), Options{})

	assert.Len(t, forward.Records, 2)
	assert.Len(t, backward.Records, 2)
}

func TestAggregate_BadDateIsolated(t *testing.T) {
	recs := append(sampleRecords(),
		domain.InvoiceRecord{Name: "bad.xml", Total: 99, IssueDate: "15/01/2024"},
		domain.InvoiceRecord{Name: "nodate.xml", Total: 5},
	)
	s := Aggregate(recs, Options{})

	assert.Len(t, s.Records, 4)
	require.Len(t, s.DateErrors, 2)
	assert.Equal(t, "bad.xml", s.DateErrors[0].Name)
	assert.Equal(t, "15/01/2024", s.DateErrors[0].Value)
	assert.Equal(t, "nodate.xml", s.DateErrors[1].Name)
	assert.ErrorIs(t, s.DateErrors[1], ErrMissingDate)

	assert.Equal(t, []YearTotal{{Year: 2024, Total: 800}}, s.YearTotals)
}

func TestAggregate_ConceptSequenceIsOneKey(t *testing.T) {
	recs := []domain.InvoiceRecord{
		{Name: "1", Total: 10, IssueDate: "2024-05-01", Concepts: []string{"Papel", "Tinta"}},
		{Name: "2", Total: 5, IssueDate: "2024-05-03", Concepts: []string{"Papel"}},
		{Name: "3", Total: 1, IssueDate: "2024-05-04", Concepts: []string{"Papel", "Tinta"}},
		{Name: "4", Total: 2, IssueDate: "2024-05-04"},
	}
	s := Aggregate(recs, Options{})

	assert.Equal(t, []ConceptSummary{
		{Year: 2024, Month: 5, Concepts: []string{}, Total: 2},
		{Year: 2024, Month: 5, Concepts: []string{"Papel"}, Total: 5},
		{Year: 2024, Month: 5, Concepts: []string{"Papel", "Tinta"}, Total: 11},
	}, s.ByConcept)
}

func TestAggregate_RowsSortedByKey(t *testing.T) {
	recs := []domain.InvoiceRecord{
		{Name: "z", IssuerTaxID: "BBB", UsageCode: "G03", Total: 1, IssueDate: "2024-02-01"},
		{Name: "y", IssuerTaxID: "AAA", UsageCode: "S01", Total: 2, IssueDate: "2024-02-01"},
		{Name: "x", IssuerTaxID: "CCC", UsageCode: "G01", Total: 3, IssueDate: "2023-12-01"},
	}
	s := Aggregate(recs, Options{})

	var issuers, usages []string
	for _, r := range s.ByIssuer {
		issuers = append(issuers, r.IssuerTaxID)
	}
	for _, r := range s.ByUsage {
		usages = append(usages, r.UsageCode)
	}
	assert.Equal(t, []string{"CCC", "AAA", "BBB"}, issuers)
	assert.Equal(t, []string{"G01", "G03", "S01"}, usages)
	assert.Equal(t, "2023-12", s.Chart[0].Period)
}

func TestAggregate_Idempotent(t *testing.T) {
	recs := []domain.InvoiceRecord{
		{Name: "1", Total: 0.1, IssueDate: "2024-01-01", TaxesTransferred: 0.2},
		{Name: "2", Total: 0.2, IssueDate: "2024-01-02", TaxesTransferred: 0.1},
		{Name: "3", Total: 0.3, IssueDate: "2024-01-03", TaxesWithheld: 0.7},
	}

	first, err := json.Marshal(Aggregate(recs, Options{}))
	require.NoError(t, err)
	reversed := []domain.InvoiceRecord{recs[2], recs[1], recs[0]}
	second, err := json.Marshal(Aggregate(reversed, Options{}))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestSummary_Tables(t *testing.T) {
	tables := Aggregate(sampleRecords(), Options{}).Tables()
	require.Len(t, tables, 7)

	titles := make([]string, 0, len(tables))
	for _, tbl := range tables {
		titles = append(titles, tbl.Title)
		for _, row := range tbl.Rows {
			assert.Len(t, row, len(tbl.Columns), tbl.Title)
		}
	}
	assert.Equal(t, []string{
		"Totales por año",
		"Totales por mes",
		"Impuestos por año",
		"Impuestos por mes",
		"Por RFC emisor (año/mes)",
		"Por concepto (año/mes)",
		"Por Uso CFDI (año/mes)",
	}, titles)

	assert.Equal(t, []string{"anio", "total_anual"}, tables[0].Columns)
	assert.Equal(t, [][]string{{"2024", "800.00"}}, tables[0].Rows)
	assert.Equal(t, [][]string{{"2024", "1", "500.00"}, {"2024", "2", "300.00"}}, tables[1].Rows)
	assert.Equal(t, []string{"2024", "1", "Hosting", "500.00", "80.00"}, tables[5].Rows[0])
}

func TestSummary_RecordsTable(t *testing.T) {
	recs := sampleRecords()
	recs[0].Concepts = []string{"Hosting", "Dominio"}

	tbl := Aggregate(recs, Options{}).RecordsTable()
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "A.xml", tbl.Rows[0][0])
	assert.Equal(t, "Hosting | Dominio", tbl.Rows[0][3])
	assert.Equal(t, "500.00", tbl.Rows[0][4])
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.00", FormatAmount(0))
	assert.Equal(t, "70.00", FormatAmount(100-30))
	assert.Equal(t, "-12.50", FormatAmount(-12.5))
	assert.Equal(t, "1234.57", FormatAmount(1234.567))
}
