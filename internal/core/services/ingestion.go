package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/chunker"
	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/domain"
	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/ports/driven"
	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/ports/driving"
)

// Ensure IngestionOrchestrator implements IngestionService
var _ driving.IngestionService = (*IngestionOrchestrator)(nil)

// IngestionOrchestrator coordinates the document ingestion pipeline:
//  1. Validate the payload
//  2. Fingerprint the text and check the stored hash (skip when unchanged)
//  3. Chunk into token-bounded passages
//  4. Embed all passages in one batch
//  5. Upsert points to the vector store
//  6. Upsert the document record in the metadata store
//  7. Log the terminal outcome
//
// The two writes in steps 5-6 are independent, non-transactional
// operations. A failure between them leaves the earlier write committed;
// the pipeline is at-least-once, converging on re-ingestion because both
// writes are idempotent by doc_id.
type IngestionOrchestrator struct {
	meta      driven.MetadataStore
	vectors   driven.VectorStore
	embedder  driven.EmbeddingService
	chunks    *chunker.Chunker
	lock      driven.DistributedLock
	connector driven.SourceConnector
	logger    *slog.Logger

	maxTokens     int
	overlapTokens int
	lockTTL       time.Duration
	lockPoll      time.Duration

	ready atomic.Bool
}

// IngestionOrchestratorConfig holds dependencies for IngestionOrchestrator.
type IngestionOrchestratorConfig struct {
	MetadataStore    driven.MetadataStore
	VectorStore      driven.VectorStore
	EmbeddingService driven.EmbeddingService
	Tokenizer        driven.Tokenizer
	Lock             driven.DistributedLock
	Connector        driven.SourceConnector // optional; sync reports zero work without one
	Logger           *slog.Logger

	MaxTokens     int // tokens per chunk window, default 500
	OverlapTokens int // tokens shared between consecutive chunks, default 50
	LockTTL       time.Duration
	LockPoll      time.Duration
}

// NewIngestionOrchestrator creates a new ingestion orchestrator.
func NewIngestionOrchestrator(cfg IngestionOrchestratorConfig) *IngestionOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	overlapTokens := cfg.OverlapTokens
	if overlapTokens <= 0 {
		overlapTokens = 50
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	lockPoll := cfg.LockPoll
	if lockPoll <= 0 {
		lockPoll = 100 * time.Millisecond
	}

	return &IngestionOrchestrator{
		meta:          cfg.MetadataStore,
		vectors:       cfg.VectorStore,
		embedder:      cfg.EmbeddingService,
		chunks:        chunker.New(cfg.Tokenizer),
		lock:          cfg.Lock,
		connector:     cfg.Connector,
		logger:        logger,
		maxTokens:     maxTokens,
		overlapTokens: overlapTokens,
		lockTTL:       lockTTL,
		lockPoll:      lockPoll,
	}
}

// Bootstrap prepares both backing stores and opens the readiness gate.
// Ingestion calls made before Bootstrap completes fail with ErrNotReady;
// the server must not start accepting requests until this returns.
func (o *IngestionOrchestrator) Bootstrap(ctx context.Context) error {
	if err := o.meta.InitSchema(ctx); err != nil {
		return err
	}
	if err := o.vectors.EnsureCollection(ctx); err != nil {
		return err
	}

	o.ready.Store(true)
	o.logger.Info("ingestion pipeline ready")
	return nil
}

// Ready reports whether bootstrap has completed.
func (o *IngestionOrchestrator) Ready() bool {
	return o.ready.Load()
}

// Ingest runs one document through the full pipeline.
func (o *IngestionOrchestrator) Ingest(ctx context.Context, doc *domain.Document, forceReindex bool) (*domain.IngestResult, error) {
	if !o.ready.Load() {
		return nil, domain.ErrNotReady
	}

	if err := doc.Validate(); err != nil {
		o.appendLog(ctx, doc.DocID, domain.EventError, err.Error(), map[string]any{"error": err.Error()})
		return nil, err
	}

	o.logger.Info("processing document",
		"doc_id", doc.DocID,
		"source", doc.Source,
		"text_length", len(doc.Text),
		"force_reindex", forceReindex,
	)

	// Writes for one doc_id are serialized so concurrent re-ingestion
	// cannot interleave partial chunk sets.
	release, err := o.acquireDocLock(ctx, doc.DocID)
	if err != nil {
		return o.fail(ctx, doc.DocID, fmt.Errorf("acquire document lock: %w", err)), nil
	}
	defer release()

	contentHash := domain.Fingerprint(doc.Text)

	if !forceReindex && o.isUnchanged(ctx, doc.DocID, contentHash) {
		o.appendLog(ctx, doc.DocID, domain.EventSkipped, "document content unchanged, skipping processing", nil)
		return &domain.IngestResult{
			Success:         true,
			ChunksProcessed: 0,
			Message:         "document unchanged, skipped processing",
		}, nil
	}

	chunks, err := o.chunks.Chunk(doc.Text, o.maxTokens, o.overlapTokens)
	if err != nil {
		return o.fail(ctx, doc.DocID, err), nil
	}
	o.logger.Info("chunked document", "doc_id", doc.DocID, "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings, err := o.embedder.Embed(ctx, texts)
	if err != nil {
		return o.fail(ctx, doc.DocID, err), nil
	}

	points := make([]*domain.Point, len(chunks))
	for i, c := range chunks {
		points[i] = &domain.Point{
			Key:    domain.PointKey(doc.DocID, i),
			Vector: embeddings[i],
			Payload: map[string]any{
				"doc_id":      doc.DocID,
				"source":      doc.Source,
				"chunk_index": i,
				"title":       doc.Title,
				"uri":         doc.URI,
				"author":      doc.Author,
				"created_at":  doc.CreatedAt,
				"updated_at":  doc.UpdatedAt,
				"text":        c.Text,
			},
		}
	}

	if err := o.vectors.Upsert(ctx, points); err != nil {
		return o.fail(ctx, doc.DocID, err), nil
	}

	rec := &domain.DocumentRecord{
		DocID:       doc.DocID,
		Source:      doc.Source,
		Title:       doc.Title,
		URI:         doc.URI,
		Author:      doc.Author,
		Content:     doc.Text,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		ContentHash: contentHash,
		ChunkCount:  len(chunks),
	}
	if err := o.meta.UpsertDocument(ctx, rec); err != nil {
		// The vector upsert above is already committed and stays; see the
		// dual-write note on the type.
		return o.fail(ctx, doc.DocID, err), nil
	}

	o.appendLog(ctx, doc.DocID, domain.EventProcessed,
		fmt.Sprintf("successfully processed %d chunks", len(chunks)),
		map[string]any{"chunks_processed": len(chunks), "content_hash": contentHash},
	)

	return &domain.IngestResult{
		Success:         true,
		ChunksProcessed: len(chunks),
		Message:         fmt.Sprintf("successfully processed %d chunks", len(chunks)),
	}, nil
}

// Reindex re-runs the pipeline for a known document with the hash-skip
// bypassed. The document is reconstructed from its stored record.
func (o *IngestionOrchestrator) Reindex(ctx context.Context, docID string) (*domain.IngestResult, error) {
	if !o.ready.Load() {
		return nil, domain.ErrNotReady
	}

	rec, err := o.meta.GetDocument(ctx, docID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return o.fail(ctx, docID, err), nil
	}

	doc := &domain.Document{
		DocID:     rec.DocID,
		Source:    rec.Source,
		Title:     rec.Title,
		URI:       rec.URI,
		Text:      rec.Content,
		Author:    rec.Author,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}

	return o.Ingest(ctx, doc, true)
}

// SyncSource performs a full synchronization for a source. The reconcile
// loop runs only when a SourceConnector is configured; without one the
// call reports zero work, matching the call surface while the actual
// diffing strategy stays pluggable.
func (o *IngestionOrchestrator) SyncSource(ctx context.Context, source string) (*domain.SyncResult, error) {
	if !o.ready.Load() {
		return nil, domain.ErrNotReady
	}

	o.appendLog(ctx, source, domain.EventSyncStarted,
		fmt.Sprintf("full sync started for source: %s", source), nil)

	result := &domain.SyncResult{Errors: []string{}}

	if o.connector != nil {
		o.reconcile(ctx, source, result)
	}

	o.appendLog(ctx, source, domain.EventSyncCompleted,
		fmt.Sprintf("sync completed: %d processed, %d deleted",
			result.DocumentsProcessed, result.DocumentsDeleted),
		map[string]any{
			"documents_processed": result.DocumentsProcessed,
			"documents_deleted":   result.DocumentsDeleted,
		},
	)

	return result, nil
}

// reconcile processes every live document at the source through the normal
// pipeline and soft-deletes stored documents the source no longer has.
func (o *IngestionOrchestrator) reconcile(ctx context.Context, source string, result *domain.SyncResult) {
	docs, err := o.connector.ListDocuments(ctx, source)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list documents: %v", err))
		return
	}

	live := make(map[string]bool, len(docs))
	for _, doc := range docs {
		live[doc.DocID] = true

		res, err := o.Ingest(ctx, doc, false)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", doc.DocID, err))
			continue
		}
		if !res.Success {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", doc.DocID, res.Error))
			continue
		}
		result.DocumentsProcessed++
	}

	stored, err := o.meta.ListDocIDsBySource(ctx, source)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list stored documents: %v", err))
		return
	}

	for _, id := range stored {
		if live[id] {
			continue
		}
		if err := o.meta.MarkDeleted(ctx, id); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: mark deleted: %v", id, err))
			continue
		}
		result.DocumentsDeleted++
	}
}

// Health reports composite connectivity of both backing stores.
func (o *IngestionOrchestrator) Health(ctx context.Context) *domain.HealthStatus {
	status := &domain.HealthStatus{
		Status:   "healthy",
		Postgres: "connected",
		Qdrant:   "connected",
	}

	if err := o.meta.Ping(ctx); err != nil {
		o.logger.Error("postgres connection check failed", "error", err)
		status.Postgres = "disconnected"
		status.Status = "unhealthy"
	}
	if err := o.vectors.HealthCheck(ctx); err != nil {
		o.logger.Error("qdrant connection check failed", "error", err)
		status.Qdrant = "disconnected"
		status.Status = "unhealthy"
	}

	return status
}

// acquireDocLock blocks until the per-document lock is held, polling on a
// short interval. The returned func releases the lock.
func (o *IngestionOrchestrator) acquireDocLock(ctx context.Context, docID string) (func(), error) {
	name := "ingest:" + docID

	for {
		acquired, err := o.lock.Acquire(ctx, name, o.lockTTL)
		if err != nil {
			return nil, err
		}
		if acquired {
			return func() {
				if err := o.lock.Release(context.WithoutCancel(ctx), name); err != nil {
					o.logger.Warn("failed to release document lock", "doc_id", docID, "error", err)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.lockPoll):
		}
	}
}

// isUnchanged reports whether the stored hash for doc_id equals contentHash.
// Lookup failures are treated as "changed" so a flaky read never drops a
// document, only reprocesses it.
func (o *IngestionOrchestrator) isUnchanged(ctx context.Context, docID, contentHash string) bool {
	stored, err := o.meta.GetContentHash(ctx, docID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			o.logger.Warn("failed to check document hash", "doc_id", docID, "error", err)
		}
		return false
	}
	return stored == contentHash
}

// fail logs the terminal error outcome and converts it to a structured
// failure result. Pipeline failures never escape as errors.
func (o *IngestionOrchestrator) fail(ctx context.Context, docID string, err error) *domain.IngestResult {
	msg := fmt.Sprintf("failed to process document %s: %v", docID, err)
	o.logger.Error("document processing failed", "doc_id", docID, "error", err)

	o.appendLog(ctx, docID, domain.EventError, msg, map[string]any{"error": err.Error()})

	return &domain.IngestResult{
		Success:         false,
		ChunksProcessed: 0,
		Error:           msg,
	}
}

// appendLog writes the audit entry for a terminal outcome. Audit append
// failures are logged and swallowed; they must not mask the outcome itself.
func (o *IngestionOrchestrator) appendLog(ctx context.Context, docID, eventType, message string, metadata map[string]any) {
	entry := &domain.LogEntry{
		DocID:     docID,
		EventType: eventType,
		Message:   message,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
	if err := o.meta.AppendLog(ctx, entry); err != nil {
		o.logger.Error("failed to log ingestion event",
			"doc_id", docID,
			"event_type", eventType,
			"error", err,
		)
	}
}
