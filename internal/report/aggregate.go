// Package report turns a set of invoice records into the grouped summaries and
// the monthly series shown to the user.
package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/dvloznov/cfdi-reporter/internal/domain"
)

// Options controls a single aggregation run.
type Options struct {
	// IssuerFilter keeps records whose issuer RFC contains this text,
	// ignoring case. Empty keeps everything.
	IssuerFilter string
}

type YearTotal struct {
	Year  int     `json:"year"`
	Total float64 `json:"total"`
}

type MonthTotal struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	Total float64 `json:"total"`
}

type YearTax struct {
	Year int     `json:"year"`
	Tax  float64 `json:"tax"`
}

type MonthTax struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	Tax   float64 `json:"tax"`
}

type IssuerSummary struct {
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	IssuerTaxID string  `json:"issuer_tax_id"`
	Total       float64 `json:"total"`
	Tax         float64 `json:"tax"`
}

// ConceptSummary groups by the record's whole concept list, so an invoice
// with several line items counts once under that list.
type ConceptSummary struct {
	Year     int      `json:"year"`
	Month    int      `json:"month"`
	Concepts []string `json:"concepts"`
	Total    float64  `json:"total"`
	Tax      float64  `json:"tax"`
}

type UsageSummary struct {
	Year      int     `json:"year"`
	Month     int     `json:"month"`
	UsageCode string  `json:"usage_code"`
	Total     float64 `json:"total"`
	Tax       float64 `json:"tax"`
}

// ChartPoint is one month of the spending series, labelled "YYYY-MM".
type ChartPoint struct {
	Period string  `json:"period"`
	Total  float64 `json:"total"`
}

// Summary is everything derived from one record set. It is rebuilt from
// scratch on every call to Aggregate.
type Summary struct {
	// Records are the deduplicated, filtered records, including those with a
	// bad date.
	Records    []domain.InvoiceRecord `json:"records"`
	DateErrors []*DateParseError      `json:"date_errors"`

	YearTotals  []YearTotal      `json:"year_totals"`
	MonthTotals []MonthTotal     `json:"month_totals"`
	YearTaxes   []YearTax        `json:"year_taxes"`
	MonthTaxes  []MonthTax       `json:"month_taxes"`
	ByIssuer    []IssuerSummary  `json:"by_issuer"`
	ByConcept   []ConceptSummary `json:"by_concept"`
	ByUsage     []UsageSummary   `json:"by_usage"`

	Chart []ChartPoint `json:"chart"`
}

// Empty reports the "no valid invoices" state: nothing survived extraction
// and filtering. It is informational, not a failure.
func (s *Summary) Empty() bool {
	return len(s.Records) == 0
}

// dated is a record with its derived calendar fields.
type dated struct {
	rec    domain.InvoiceRecord
	year   int
	month  int
	netTax float64
}

type sums struct {
	total float64
	tax   float64
}

// Aggregate deduplicates, filters and groups the records. A record whose issue
// date cannot be parsed is listed in DateErrors and left out of the grouped
// tables; the rest of the set is unaffected.
//
// Rows of every table are sorted by their key in ascending order, and sums are
// accumulated in a fixed record order, so the same input always produces the
// same output.
func Aggregate(records []domain.InvoiceRecord, opts Options) *Summary {
	retained := FilterByIssuer(domain.Dedup(records), opts.IssuerFilter)

	s := &Summary{
		Records:     retained,
		DateErrors:  []*DateParseError{},
		YearTotals:  []YearTotal{},
		MonthTotals: []MonthTotal{},
		YearTaxes:   []YearTax{},
		MonthTaxes:  []MonthTax{},
		ByIssuer:    []IssuerSummary{},
		ByConcept:   []ConceptSummary{},
		ByUsage:     []UsageSummary{},
		Chart:       []ChartPoint{},
	}

	rows := make([]dated, 0, len(retained))
	for _, r := range retained {
		d, err := ParseIssueDate(r.IssueDate)
		if err != nil {
			s.DateErrors = append(s.DateErrors, &DateParseError{Name: r.Name, Value: r.IssueDate, Err: err})
			continue
		}
		rows = append(rows, dated{rec: r, year: d.Year, month: int(d.Month), netTax: r.NetTax()})
	}

	type ym struct{ year, month int }
	cmpYM := func(a, b ym) int {
		if c := cmp.Compare(a.year, b.year); c != 0 {
			return c
		}
		return cmp.Compare(a.month, b.month)
	}

	years, byYear := groupBy(rows, func(d dated) int { return d.year }, cmp.Compare[int])
	for _, y := range years {
		s.YearTotals = append(s.YearTotals, YearTotal{Year: y, Total: byYear[y].total})
		s.YearTaxes = append(s.YearTaxes, YearTax{Year: y, Tax: byYear[y].tax})
	}

	months, byMonth := groupBy(rows, func(d dated) ym { return ym{d.year, d.month} }, cmpYM)
	for _, m := range months {
		s.MonthTotals = append(s.MonthTotals, MonthTotal{Year: m.year, Month: m.month, Total: byMonth[m].total})
		s.MonthTaxes = append(s.MonthTaxes, MonthTax{Year: m.year, Month: m.month, Tax: byMonth[m].tax})
		s.Chart = append(s.Chart, ChartPoint{Period: Period(m.year, m.month), Total: byMonth[m].total})
	}

	type ymText struct {
		ym
		text string
	}
	cmpYMText := func(a, b ymText) int {
		if c := cmpYM(a.ym, b.ym); c != 0 {
			return c
		}
		return strings.Compare(a.text, b.text)
	}

	issuers, byIssuer := groupBy(rows, func(d dated) ymText {
		return ymText{ym{d.year, d.month}, d.rec.IssuerTaxID}
	}, cmpYMText)
	for _, k := range issuers {
		s.ByIssuer = append(s.ByIssuer, IssuerSummary{
			Year: k.year, Month: k.month, IssuerTaxID: k.text,
			Total: byIssuer[k].total, Tax: byIssuer[k].tax,
		})
	}

	concepts, byConcept := groupBy(rows, func(d dated) ymText {
		return ymText{ym{d.year, d.month}, conceptKey(d.rec.Concepts)}
	}, cmpYMText)
	for _, k := range concepts {
		s.ByConcept = append(s.ByConcept, ConceptSummary{
			Year: k.year, Month: k.month, Concepts: splitConceptKey(k.text),
			Total: byConcept[k].total, Tax: byConcept[k].tax,
		})
	}

	usages, byUsage := groupBy(rows, func(d dated) ymText {
		return ymText{ym{d.year, d.month}, d.rec.UsageCode}
	}, cmpYMText)
	for _, k := range usages {
		s.ByUsage = append(s.ByUsage, UsageSummary{
			Year: k.year, Month: k.month, UsageCode: k.text,
			Total: byUsage[k].total, Tax: byUsage[k].tax,
		})
	}

	return s
}

// FilterByIssuer keeps the records whose issuer RFC contains filter as a
// literal, case-insensitive substring. An empty filter keeps everything.
func FilterByIssuer(records []domain.InvoiceRecord, filter string) []domain.InvoiceRecord {
	if filter == "" {
		return records
	}

	needle := strings.ToLower(filter)
	filtered := make([]domain.InvoiceRecord, 0, len(records))
	for _, r := range records {
		if r.IssuerTaxID == "" {
			continue
		}
		if strings.Contains(strings.ToLower(r.IssuerTaxID), needle) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// Period formats a year and month as the chart label "YYYY-MM".
func Period(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// groupBy sums total and net tax per key and returns the keys in ascending
// order.
func groupBy[K comparable](rows []dated, key func(dated) K, compare func(a, b K) int) ([]K, map[K]*sums) {
	groups := make(map[K]*sums)
	keys := make([]K, 0)

	for _, d := range rows {
		k := key(d)
		g, ok := groups[k]
		if !ok {
			g = &sums{}
			groups[k] = g
			keys = append(keys, k)
		}
		g.total += d.rec.Total
		g.tax += d.netTax
	}

	slices.SortFunc(keys, compare)
	return keys, groups
}

// conceptSep joins concept lists into a map key. NUL cannot appear in XML
// text and sorts before every other character, so comparing joined keys
// orders lists element by element.
const conceptSep = "\x00"

func conceptKey(concepts []string) string {
	return strings.Join(concepts, conceptSep)
}

func splitConceptKey(key string) []string {
	if key == "" {
		return []string{}
	}
	return strings.Split(key, conceptSep)
}
