package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/domain"
	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.MetadataStore = (*MetadataStore)(nil)

// MetadataStore implements driven.MetadataStore using PostgreSQL.
// Note: vectors are stored in Qdrant, not here.
type MetadataStore struct {
	db *DB
}

// NewMetadataStore creates a new MetadataStore
func NewMetadataStore(db *DB) *MetadataStore {
	return &MetadataStore{db: db}
}

// InitSchema creates tables and indexes if absent.
func (s *MetadataStore) InitSchema(ctx context.Context) error {
	if err := s.db.InitSchema(ctx); err != nil {
		return &domain.StoreError{Store: "postgres", Op: "init schema", Err: err}
	}
	return nil
}

// UpsertDocument inserts or overwrites a document record by doc_id.
// processed_at is always refreshed and is_deleted cleared, so a re-ingested
// document comes back to life even if it was previously soft-deleted.
func (s *MetadataStore) UpsertDocument(ctx context.Context, rec *domain.DocumentRecord) error {
	query := `
		INSERT INTO documents (
			doc_id, source, title, uri, author, content, created_at, updated_at,
			content_hash, chunk_count, is_deleted
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE)
		ON CONFLICT (doc_id) DO UPDATE SET
			source = EXCLUDED.source,
			title = EXCLUDED.title,
			uri = EXCLUDED.uri,
			author = EXCLUDED.author,
			content = EXCLUDED.content,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			content_hash = EXCLUDED.content_hash,
			chunk_count = EXCLUDED.chunk_count,
			processed_at = NOW(),
			is_deleted = FALSE
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.DocID,
		rec.Source,
		rec.Title,
		rec.URI,
		rec.Author,
		rec.Content,
		parseTimestamp(rec.CreatedAt),
		parseTimestamp(rec.UpdatedAt),
		rec.ContentHash,
		rec.ChunkCount,
	)
	if err != nil {
		return &domain.StoreError{Store: "postgres", Op: "upsert document", Err: err}
	}
	return nil
}

// GetDocument retrieves a record by doc_id, excluding soft-deleted rows.
func (s *MetadataStore) GetDocument(ctx context.Context, docID string) (*domain.DocumentRecord, error) {
	query := `
		SELECT doc_id, source, title, uri, author, content, created_at, updated_at,
		       content_hash, processed_at, is_deleted, chunk_count
		FROM documents
		WHERE doc_id = $1 AND is_deleted = FALSE
	`

	var rec domain.DocumentRecord
	var title, uri, author, content, contentHash sql.NullString
	var createdAt, updatedAt, processedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, docID).Scan(
		&rec.DocID,
		&rec.Source,
		&title,
		&uri,
		&author,
		&content,
		&createdAt,
		&updatedAt,
		&contentHash,
		&processedAt,
		&rec.IsDeleted,
		&rec.ChunkCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreError{Store: "postgres", Op: "get document", Err: err}
	}

	rec.Title = title.String
	rec.URI = uri.String
	rec.Author = author.String
	rec.Content = content.String
	rec.ContentHash = contentHash.String
	rec.CreatedAt = formatTimestamp(createdAt)
	rec.UpdatedAt = formatTimestamp(updatedAt)
	if processedAt.Valid {
		rec.ProcessedAt = processedAt.Time
	}

	return &rec, nil
}

// GetContentHash returns the stored content hash for a document.
// Soft-deleted rows are treated as absent: their hash must not trigger the
// unchanged-skip, or a re-submitted document could never come back to life.
func (s *MetadataStore) GetContentHash(ctx context.Context, docID string) (string, error) {
	query := `SELECT content_hash FROM documents WHERE doc_id = $1 AND is_deleted = FALSE`

	var hash sql.NullString
	err := s.db.QueryRowContext(ctx, query, docID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", &domain.StoreError{Store: "postgres", Op: "get content hash", Err: err}
	}
	return hash.String, nil
}

// ListDocIDsBySource returns doc_ids of all non-deleted documents for a source.
func (s *MetadataStore) ListDocIDsBySource(ctx context.Context, source string) ([]string, error) {
	query := `SELECT doc_id FROM documents WHERE source = $1 AND is_deleted = FALSE`

	rows, err := s.db.QueryContext(ctx, query, source)
	if err != nil {
		return nil, &domain.StoreError{Store: "postgres", Op: "list doc ids", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &domain.StoreError{Store: "postgres", Op: "list doc ids", Err: err}
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Store: "postgres", Op: "list doc ids", Err: err}
	}

	return ids, nil
}

// MarkDeleted soft-deletes a document record. The row is never removed.
func (s *MetadataStore) MarkDeleted(ctx context.Context, docID string) error {
	query := `UPDATE documents SET is_deleted = TRUE WHERE doc_id = $1`

	result, err := s.db.ExecContext(ctx, query, docID)
	if err != nil {
		return &domain.StoreError{Store: "postgres", Op: "mark deleted", Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &domain.StoreError{Store: "postgres", Op: "mark deleted", Err: err}
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AppendLog appends an ingestion log entry.
func (s *MetadataStore) AppendLog(ctx context.Context, entry *domain.LogEntry) error {
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return &domain.StoreError{Store: "postgres", Op: "append log", Err: err}
	}

	query := `
		INSERT INTO ingestion_log (doc_id, event_type, message, timestamp, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.db.ExecContext(ctx, query, entry.DocID, entry.EventType, entry.Message, entry.Timestamp, metadataJSON)
	if err != nil {
		return &domain.StoreError{Store: "postgres", Op: "append log", Err: err}
	}
	return nil
}

// Ping checks if the store is reachable.
func (s *MetadataStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// parseTimestamp converts a caller-supplied ISO-8601 string to a nullable
// timestamp. Inputs are validated at the boundary, so a parse failure here
// only means the column stays NULL.
func parseTimestamp(value string) sql.NullTime {
	t, err := domain.ParseTimestamp(value)
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func formatTimestamp(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Format(time.RFC3339)
}
