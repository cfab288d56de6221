// Package session holds the per-user state of the HTTP surface: which upload
// batch is currently being reported on.
package session

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dvloznov/cfdi-reporter/internal/cfdi"
	"github.com/dvloznov/cfdi-reporter/internal/domain"
)

// ErrNotFound is returned when a session ID is unknown or has expired.
var ErrNotFound = errors.New("session not found")

// Batch is the extraction result of one upload. A new upload replaces the
// session's batch wholesale; batches are never merged.
type Batch struct {
	// ID is the unique identifier for this batch.
	ID string `json:"batch_id"`

	// CreatedAt is when the batch was extracted.
	CreatedAt time.Time `json:"created_at"`

	// Records are the deduplicated records of the batch.
	Records []domain.InvoiceRecord `json:"records"`

	// Failures lists the documents that could not be read.
	Failures []cfdi.Failure `json:"failures"`
}

// Clone returns a deep copy of the batch.
func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	c := *b
	c.Records = make([]domain.InvoiceRecord, len(b.Records))
	for i, r := range b.Records {
		r.Concepts = slices.Clone(r.Concepts)
		c.Records[i] = r
	}
	c.Failures = slices.Clone(b.Failures)
	return &c
}

// Session groups the batches uploaded by one client.
type Session struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	// LastSeen is refreshed on every read or write and drives expiry.
	LastSeen time.Time `json:"last_seen"`
	// Batch is nil until the first upload.
	Batch *Batch `json:"batch,omitempty"`
}

// Records returns the current batch's records, or none before the first
// upload.
func (s *Session) Records() []domain.InvoiceRecord {
	if s.Batch == nil {
		return []domain.InvoiceRecord{}
	}
	return s.Batch.Records
}

// Store keeps sessions. Implementations must be safe for concurrent use and
// hand out copies, never their internal state.
type Store interface {
	// Create starts an empty session.
	Create(ctx context.Context) (*Session, error)

	// Get returns the session, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// ReplaceBatch stores batch as the session's current batch, discarding
	// the previous one.
	ReplaceBatch(ctx context.Context, id string, batch *Batch) error

	// Delete discards the session. Deleting an unknown session is ErrNotFound.
	Delete(ctx context.Context, id string) error

	// PruneIdle removes sessions not seen since cutoff and returns how many
	// were removed.
	PruneIdle(ctx context.Context, cutoff time.Time) (int, error)
}
