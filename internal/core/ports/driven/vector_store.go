package driven

import (
	"context"

	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/domain"
)

// VectorStore handles passage vector persistence and similarity search
// (Qdrant).
type VectorStore interface {
	// EnsureCollection creates the collection with the configured vector
	// dimension and cosine distance if it does not exist yet. It retries
	// against a not-yet-ready backing store; exhausting the retries is
	// fatal to pipeline startup.
	EnsureCollection(ctx context.Context) error

	// Upsert writes a batch of points in one call with overwrite-by-id
	// semantics. All-or-nothing per batch.
	Upsert(ctx context.Context, points []*domain.Point) error

	// Search returns the closest points to the query vector, ranked by
	// similarity, with payloads.
	Search(ctx context.Context, vector []float32, limit int) ([]*domain.ScoredPoint, error)

	// HealthCheck verifies the vector store is reachable (listing
	// collections must succeed).
	HealthCheck(ctx context.Context) error
}
