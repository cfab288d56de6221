package domain

import (
	"cmp"
	"slices"
)

// InvoiceRecord is the flat view of one CFDI document. Values are copied out of
// the XML once during extraction and never modified afterwards.
//
// Absent attributes keep their zero value: "" for text, 0 for amounts.
type InvoiceRecord struct {
	Name             string   `json:"name"`              // source file identifier
	IssuerTaxID      string   `json:"issuer_tax_id"`     // Emisor/@Rfc
	IssuerName       string   `json:"issuer_name"`       // Emisor/@Nombre
	Concepts         []string `json:"concepts"`          // Conceptos/Concepto/@Descripcion, document order
	Total            float64  `json:"total"`             // Comprobante/@Total
	IssueDate        string   `json:"issue_date"`        // Comprobante/@Fecha, ISO-8601 as written
	TaxesTransferred float64  `json:"taxes_transferred"` // Impuestos/@TotalImpuestosTrasladados
	TaxesWithheld    float64  `json:"taxes_withheld"`    // Impuestos/@TotalImpuestosRetenidos
	UsageCode        string   `json:"usage_code"`        // Receptor/@UsoCFDI
}

// Key identifies an invoice for deduplication. Only the file name and the
// total take part; every other field is ignored.
type Key struct {
	Name  string
	Total float64
}

// Key returns the deduplication identity of the record.
func (r InvoiceRecord) Key() Key {
	return Key{Name: r.Name, Total: r.Total}
}

// NetTax is the transferred tax minus the withheld tax.
func (r InvoiceRecord) NetTax() float64 {
	return r.TaxesTransferred - r.TaxesWithheld
}

// Dedup collapses records that share a Key. The first occurrence wins and the
// result is ordered by name, then total, so the output does not depend on the
// order in which documents arrived.
func Dedup(records []InvoiceRecord) []InvoiceRecord {
	seen := make(map[Key]struct{}, len(records))
	result := make([]InvoiceRecord, 0, len(records))

	for _, r := range records {
		key := r.Key()
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, r)
	}

	slices.SortStableFunc(result, func(a, b InvoiceRecord) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.Total, b.Total)
	})
	return result
}
