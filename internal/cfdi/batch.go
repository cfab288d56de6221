package cfdi

import (
	"context"
	"fmt"

	"github.com/dvloznov/cfdi-reporter/internal/domain"
	"github.com/dvloznov/cfdi-reporter/internal/logger"
)

// Document is one uploaded file: its identifier and raw bytes.
type Document struct {
	Name string
	Data []byte
}

// Failure records a document left out of the batch.
type Failure struct {
	Name    string `json:"name"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

// Result is the outcome of extracting one upload batch.
type Result struct {
	Records  []domain.InvoiceRecord `json:"records"`
	Failures []Failure              `json:"failures"`
	// Read lists the names of the documents read successfully, in input order.
	Read []string `json:"read"`
}

// Reporter is told about every document as it is processed, so that callers
// can show per-file feedback (progress bars, metrics, UI messages).
type Reporter interface {
	DocumentRead(name string)
	DocumentFailed(name string, err error)
}

// ExtractAll extracts every document in order. A failing document is reported
// and skipped; it never stops the rest of the batch. Successful records are
// deduplicated before they are returned.
//
// The only error returned is ctx.Err() when the context is cancelled between
// documents.
func ExtractAll(ctx context.Context, docs []Document, reporters ...Reporter) (Result, error) {
	log := logger.FromContext(ctx)

	result := Result{
		Failures: []Failure{},
		Read:     []string{},
	}
	records := make([]domain.InvoiceRecord, 0, len(docs))

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("ExtractAll: %w", err)
		}

		record, err := Extract(doc.Name, doc.Data)
		if err != nil {
			log.Warn().Err(err).Str("file", doc.Name).Msg("Document skipped")
			result.Failures = append(result.Failures, Failure{Name: doc.Name, Message: err.Error(), Err: err})
			for _, r := range reporters {
				r.DocumentFailed(doc.Name, err)
			}
			continue
		}

		log.Debug().Str("file", doc.Name).Float64("total", record.Total).Msg("Document read")
		records = append(records, record)
		result.Read = append(result.Read, doc.Name)
		for _, r := range reporters {
			r.DocumentRead(doc.Name)
		}
	}

	result.Records = domain.Dedup(records)

	log.Info().
		Int("documents", len(docs)).
		Int("records", len(result.Records)).
		Int("failures", len(result.Failures)).
		Msg("Batch extracted")

	return result, nil
}
