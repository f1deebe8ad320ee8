package driving

import (
	"context"

	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/domain"
)

// IngestionService is the driving port of the ingestion pipeline.
//
// Pipeline failures inside one call (provider errors, store errors) are
// reported in the IngestResult, not as Go errors; the error return carries
// only boundary conditions: validation failures, unknown documents on
// reindex, and calls made before bootstrap completes.
type IngestionService interface {
	// Ingest runs one document through the full pipeline: validate,
	// fingerprint, change-check, chunk, embed, dual-write, log.
	Ingest(ctx context.Context, doc *domain.Document, forceReindex bool) (*domain.IngestResult, error)

	// Reindex looks up a previously processed document and re-runs the
	// pipeline with the hash-skip bypassed. Returns domain.ErrNotFound
	// for unknown doc_ids.
	Reindex(ctx context.Context, docID string) (*domain.IngestResult, error)

	// SyncSource performs a full synchronization for a source.
	SyncSource(ctx context.Context, source string) (*domain.SyncResult, error)

	// Health reports composite connectivity of both backing stores.
	Health(ctx context.Context) *domain.HealthStatus
}
