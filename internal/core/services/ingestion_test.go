package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/domain"
	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/ports/driven/mocks"
)

// Test helper to create an IngestionOrchestrator with mocks
func createTestOrchestrator(t *testing.T) (
	*IngestionOrchestrator,
	*mocks.MockMetadataStore,
	*mocks.MockVectorStore,
	*mocks.MockEmbeddingService,
	*mocks.MockDistributedLock,
	*mocks.MockConnector,
) {
	t.Helper()

	meta := mocks.NewMockMetadataStore()
	vectors := mocks.NewMockVectorStore()
	embedder := mocks.NewMockEmbeddingService()
	lock := mocks.NewMockDistributedLock()
	connector := mocks.NewMockConnector()

	orchestrator := NewIngestionOrchestrator(IngestionOrchestratorConfig{
		MetadataStore:    meta,
		VectorStore:      vectors,
		EmbeddingService: embedder,
		Tokenizer:        mocks.NewMockTokenizer(),
		Lock:             lock,
		Connector:        connector,
		MaxTokens:        100,
		OverlapTokens:    10,
		LockPoll:         5 * time.Millisecond,
	})

	require.NoError(t, orchestrator.Bootstrap(context.Background()))
	return orchestrator, meta, vectors, embedder, lock, connector
}

func testDocument(docID, text string) *domain.Document {
	return &domain.Document{
		DocID:     docID,
		Source:    "notion",
		Title:     "Quarterly planning",
		URI:       "https://notion.so/" + docID,
		Text:      text,
		Author:    "dana",
		CreatedAt: "2026-01-10T09:00:00Z",
		UpdatedAt: "2026-01-12T16:30:00Z",
	}
}

func TestIngest_RejectsBeforeBootstrap(t *testing.T) {
	orchestrator := NewIngestionOrchestrator(IngestionOrchestratorConfig{
		MetadataStore:    mocks.NewMockMetadataStore(),
		VectorStore:      mocks.NewMockVectorStore(),
		EmbeddingService: mocks.NewMockEmbeddingService(),
		Tokenizer:        mocks.NewMockTokenizer(),
		Lock:             mocks.NewMockDistributedLock(),
	})

	_, err := orchestrator.Ingest(context.Background(), testDocument("doc-1", "hello"), false)
	assert.ErrorIs(t, err, domain.ErrNotReady)

	_, err = orchestrator.Reindex(context.Background(), "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotReady)

	_, err = orchestrator.SyncSource(context.Background(), "notion")
	assert.ErrorIs(t, err, domain.ErrNotReady)
}

func TestIngest_ProcessesNewDocument(t *testing.T) {
	orchestrator, meta, vectors, _, _, _ := createTestOrchestrator(t)
	doc := testDocument("doc-1", "team goals for the quarter")

	result, err := orchestrator.Ingest(context.Background(), doc, false)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 1, result.ChunksProcessed)
	assert.Equal(t, "successfully processed 1 chunks", result.Message)

	rec := meta.Record("doc-1")
	require.NotNil(t, rec)
	assert.Equal(t, domain.Fingerprint(doc.Text), rec.ContentHash)
	assert.Equal(t, doc.Text, rec.Content)
	assert.Equal(t, 1, rec.ChunkCount)

	point := vectors.Point("doc-1_0")
	require.NotNil(t, point)
	assert.Equal(t, "doc-1", point.Payload["doc_id"])
	assert.Equal(t, 0, point.Payload["chunk_index"])
	assert.Equal(t, doc.Text, point.Payload["text"])

	logs := meta.LogsForEvent(domain.EventProcessed)
	require.Len(t, logs, 1)
	assert.Equal(t, "doc-1", logs[0].DocID)
	assert.False(t, logs[0].Timestamp.IsZero(), "audit entries carry the outcome time")
}

func TestIngest_SkipsUnchangedDocument(t *testing.T) {
	orchestrator, meta, _, embedder, _, _ := createTestOrchestrator(t)
	doc := testDocument("doc-1", "unchanged content")

	_, err := orchestrator.Ingest(context.Background(), doc, false)
	require.NoError(t, err)
	callsAfterFirst := embedder.Calls()

	result, err := orchestrator.Ingest(context.Background(), doc, false)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 0, result.ChunksProcessed)
	assert.Equal(t, "document unchanged, skipped processing", result.Message)
	assert.Equal(t, callsAfterFirst, embedder.Calls(), "skip path must not embed")

	assert.Len(t, meta.LogsForEvent(domain.EventSkipped), 1)
}

func TestIngest_ReprocessesChangedDocument(t *testing.T) {
	orchestrator, meta, _, _, _, _ := createTestOrchestrator(t)

	_, err := orchestrator.Ingest(context.Background(), testDocument("doc-1", "first draft"), false)
	require.NoError(t, err)

	changed := testDocument("doc-1", "second draft")
	result, err := orchestrator.Ingest(context.Background(), changed, false)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 1, result.ChunksProcessed)

	assert.Equal(t, domain.Fingerprint("second draft"), meta.Record("doc-1").ContentHash)
	assert.Len(t, meta.LogsForEvent(domain.EventProcessed), 2)
}

func TestIngest_ResurrectsSoftDeletedDocument(t *testing.T) {
	orchestrator, meta, _, _, _, _ := createTestOrchestrator(t)
	doc := testDocument("doc-1", "identical text")

	_, err := orchestrator.Ingest(context.Background(), doc, false)
	require.NoError(t, err)
	require.NoError(t, meta.MarkDeleted(context.Background(), "doc-1"))

	// The stored hash matches, but a soft-deleted row must not feed the
	// unchanged-skip: reprocessing is the only path that clears the flag.
	result, err := orchestrator.Ingest(context.Background(), doc, false)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 1, result.ChunksProcessed, "soft-deleted document must reprocess, not skip")
	assert.False(t, meta.Record("doc-1").IsDeleted)

	rec, err := meta.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Fingerprint(doc.Text), rec.ContentHash)
}

func TestIngest_ForceReindexBypassesHashCheck(t *testing.T) {
	orchestrator, meta, _, embedder, _, _ := createTestOrchestrator(t)
	doc := testDocument("doc-1", "same content both times")

	_, err := orchestrator.Ingest(context.Background(), doc, false)
	require.NoError(t, err)
	callsAfterFirst := embedder.Calls()

	result, err := orchestrator.Ingest(context.Background(), doc, true)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 1, result.ChunksProcessed)
	assert.Greater(t, embedder.Calls(), callsAfterFirst)

	assert.Empty(t, meta.LogsForEvent(domain.EventSkipped))
}

func TestIngest_ValidationFailureListsAllViolations(t *testing.T) {
	orchestrator, meta, _, _, _, _ := createTestOrchestrator(t)

	doc := &domain.Document{
		DocID:     "doc-1",
		Source:    "",
		Title:     "",
		URI:       "https://example.com/doc-1",
		Text:      "some text",
		Author:    "dana",
		CreatedAt: "not-a-timestamp",
		UpdatedAt: "2026-01-12T16:30:00Z",
	}

	_, err := orchestrator.Ingest(context.Background(), doc, false)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 3)

	require.Len(t, meta.LogsForEvent(domain.EventError), 1)
}

func TestIngest_WhitespaceOnlyTextIsRejected(t *testing.T) {
	orchestrator, _, vectors, _, _, _ := createTestOrchestrator(t)

	doc := testDocument("doc-1", "   \n\t  ")
	_, err := orchestrator.Ingest(context.Background(), doc, false)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, vectors.PointCount())
}

func TestIngest_EmbeddingFailureReturnsFailureResult(t *testing.T) {
	orchestrator, meta, vectors, embedder, _, _ := createTestOrchestrator(t)
	embedder.SetFailNext(true)

	result, err := orchestrator.Ingest(context.Background(), testDocument("doc-1", "will fail"), false)
	require.NoError(t, err, "pipeline failures are results, not errors")
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "failed to process document doc-1")
	assert.Equal(t, 0, vectors.PointCount())
	assert.Nil(t, meta.Record("doc-1"))

	require.Len(t, meta.LogsForEvent(domain.EventError), 1)
}

func TestIngest_MetadataFailureLeavesVectorsCommitted(t *testing.T) {
	orchestrator, meta, vectors, _, _, _ := createTestOrchestrator(t)
	meta.UpsertFn = func(rec *domain.DocumentRecord) error {
		return errors.New("connection reset")
	}

	result, err := orchestrator.Ingest(context.Background(), testDocument("doc-1", "partial write"), false)
	require.NoError(t, err)
	require.False(t, result.Success)

	// Non-transactional dual write: the vector upsert stays committed.
	assert.Equal(t, 1, vectors.PointCount())
	assert.Nil(t, meta.Record("doc-1"))

	// Re-ingestion converges once the store recovers.
	meta.UpsertFn = nil
	result, err = orchestrator.Ingest(context.Background(), testDocument("doc-1", "partial write"), false)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 1, result.ChunksProcessed)
	assert.NotNil(t, meta.Record("doc-1"))
}

func TestIngest_HashLookupFailureReprocesses(t *testing.T) {
	orchestrator, meta, _, _, _, _ := createTestOrchestrator(t)
	doc := testDocument("doc-1", "stable content")

	_, err := orchestrator.Ingest(context.Background(), doc, false)
	require.NoError(t, err)

	meta.GetHashFn = func(docID string) (string, error) {
		return "", errors.New("timeout")
	}

	result, err := orchestrator.Ingest(context.Background(), doc, false)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 1, result.ChunksProcessed, "flaky hash read must reprocess, not skip")
}

func TestIngest_WaitsForHeldLock(t *testing.T) {
	orchestrator, _, _, _, lock, _ := createTestOrchestrator(t)
	lock.SetLockHeld("ingest:doc-1", 30*time.Millisecond)

	start := time.Now()
	result, err := orchestrator.Ingest(context.Background(), testDocument("doc-1", "serialized"), false)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.False(t, lock.IsHeld("ingest:doc-1"), "lock released after processing")
}

func TestIngest_LockWaitHonorsContextCancellation(t *testing.T) {
	orchestrator, _, _, _, lock, _ := createTestOrchestrator(t)
	lock.SetLockHeld("ingest:doc-1", time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, err := orchestrator.Ingest(ctx, testDocument("doc-1", "blocked"), false)
	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "acquire document lock")
}

func TestReindex_NotFound(t *testing.T) {
	orchestrator, _, _, _, _, _ := createTestOrchestrator(t)

	_, err := orchestrator.Reindex(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReindex_ReprocessesStoredContent(t *testing.T) {
	orchestrator, meta, _, embedder, _, _ := createTestOrchestrator(t)
	doc := testDocument("doc-1", "indexed once")

	_, err := orchestrator.Ingest(context.Background(), doc, false)
	require.NoError(t, err)
	callsAfterFirst := embedder.Calls()

	result, err := orchestrator.Reindex(context.Background(), "doc-1")
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 1, result.ChunksProcessed)
	assert.Greater(t, embedder.Calls(), callsAfterFirst, "reindex must bypass the hash skip")

	assert.Len(t, meta.LogsForEvent(domain.EventProcessed), 2)
}

func TestSyncSource_WithoutConnectorReportsZeroWork(t *testing.T) {
	meta := mocks.NewMockMetadataStore()
	orchestrator := NewIngestionOrchestrator(IngestionOrchestratorConfig{
		MetadataStore:    meta,
		VectorStore:      mocks.NewMockVectorStore(),
		EmbeddingService: mocks.NewMockEmbeddingService(),
		Tokenizer:        mocks.NewMockTokenizer(),
		Lock:             mocks.NewMockDistributedLock(),
	})
	require.NoError(t, orchestrator.Bootstrap(context.Background()))

	result, err := orchestrator.SyncSource(context.Background(), "notion")
	require.NoError(t, err)
	assert.Equal(t, 0, result.DocumentsProcessed)
	assert.Equal(t, 0, result.DocumentsDeleted)
	assert.Empty(t, result.Errors)

	assert.Len(t, meta.LogsForEvent(domain.EventSyncStarted), 1)
	assert.Len(t, meta.LogsForEvent(domain.EventSyncCompleted), 1)
}

func TestSyncSource_ReconcilesWithConnector(t *testing.T) {
	orchestrator, meta, _, _, _, connector := createTestOrchestrator(t)

	// doc-stale exists in the store but is gone from the source.
	_, err := orchestrator.Ingest(context.Background(), testDocument("doc-stale", "old page"), false)
	require.NoError(t, err)

	connector.SetDocuments("notion", []*domain.Document{
		testDocument("doc-a", "page a"),
		testDocument("doc-b", "page b"),
	})

	result, err := orchestrator.SyncSource(context.Background(), "notion")
	require.NoError(t, err)
	assert.Equal(t, 2, result.DocumentsProcessed)
	assert.Equal(t, 1, result.DocumentsDeleted)
	assert.Empty(t, result.Errors)

	assert.True(t, meta.Record("doc-stale").IsDeleted)
	assert.False(t, meta.Record("doc-a").IsDeleted)
}

func TestSyncSource_CollectsPerDocumentErrors(t *testing.T) {
	orchestrator, _, _, _, _, connector := createTestOrchestrator(t)
	connector.ListFn = func(source string) ([]*domain.Document, error) {
		return nil, fmt.Errorf("source %s unreachable", source)
	}

	result, err := orchestrator.SyncSource(context.Background(), "notion")
	require.NoError(t, err)
	assert.Equal(t, 0, result.DocumentsProcessed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unreachable")
}

func TestHealth_ReportsPerStoreStatus(t *testing.T) {
	orchestrator, meta, vectors, _, _, _ := createTestOrchestrator(t)

	status := orchestrator.Health(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "connected", status.Postgres)
	assert.Equal(t, "connected", status.Qdrant)

	meta.PingFn = func() error { return errors.New("down") }
	status = orchestrator.Health(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "disconnected", status.Postgres)
	assert.Equal(t, "connected", status.Qdrant)

	meta.PingFn = nil
	vectors.HealthCheckFn = func() error { return errors.New("down") }
	status = orchestrator.Health(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "disconnected", status.Qdrant)
}
