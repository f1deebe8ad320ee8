package driven

import (
	"context"

	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/domain"
)

// SourceConnector enumerates the documents currently present at an external
// source system. It is the pluggable half of full-source synchronization:
// the orchestrator owns the reconcile loop, the connector owns how a
// source's current document set is obtained. No connector is registered by
// default, in which case sync reports zero work.
type SourceConnector interface {
	// ListDocuments returns every live document at the source.
	ListDocuments(ctx context.Context, source string) ([]*domain.Document, error)
}
