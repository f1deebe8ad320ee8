package driven

import (
	"context"

	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/domain"
)

// MetadataStore handles per-document processing state and the audit log
// (PostgreSQL). It is the "is this content already processed" oracle for
// the ingestion pipeline.
type MetadataStore interface {
	// InitSchema creates tables and indexes if absent.
	// Idempotent - safe to call repeatedly and concurrently.
	InitSchema(ctx context.Context) error

	// UpsertDocument inserts or overwrites a document record by doc_id,
	// refreshing processed_at and clearing is_deleted.
	UpsertDocument(ctx context.Context, rec *domain.DocumentRecord) error

	// GetDocument retrieves a record by doc_id, excluding soft-deleted rows.
	GetDocument(ctx context.Context, docID string) (*domain.DocumentRecord, error)

	// GetContentHash returns the stored content hash for a document,
	// or domain.ErrNotFound if the document has never been processed or
	// is soft-deleted.
	GetContentHash(ctx context.Context, docID string) (string, error)

	// ListDocIDsBySource returns the doc_ids of all non-deleted documents
	// for a source (for diff sync).
	ListDocIDsBySource(ctx context.Context, source string) ([]string, error)

	// MarkDeleted soft-deletes a document record.
	MarkDeleted(ctx context.Context, docID string) error

	// AppendLog appends an ingestion log entry. Entries are never mutated.
	AppendLog(ctx context.Context, entry *domain.LogEntry) error

	// Ping checks if the store is reachable.
	Ping(ctx context.Context) error
}
