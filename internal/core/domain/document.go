package domain

import (
	"fmt"
	"time"
)

// Document is the unified payload submitted for ingestion. All fields are
// caller-supplied and required; timestamps are ISO-8601 strings from the
// source system, not parsed times, so they round-trip into point payloads
// unchanged.
type Document struct {
	DocID     string `json:"doc_id"`
	Source    string `json:"source"`
	Title     string `json:"title"`
	URI       string `json:"uri"`
	Text      string `json:"text"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Validate checks that every required field is present and non-empty and
// that timestamps parse as ISO-8601. It reports all violations at once
// rather than failing on the first.
func (d *Document) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"doc_id", d.DocID},
		{"source", d.Source},
		{"title", d.Title},
		{"uri", d.URI},
		{"text", d.Text},
		{"author", d.Author},
		{"created_at", d.CreatedAt},
		{"updated_at", d.UpdatedAt},
	}

	var violations []string
	for _, f := range required {
		if isBlank(f.value) {
			violations = append(violations, fmt.Sprintf("missing or empty required field: %s", f.name))
		}
	}

	timestamps := []struct {
		name  string
		value string
	}{
		{"created_at", d.CreatedAt},
		{"updated_at", d.UpdatedAt},
	}
	for _, f := range timestamps {
		if isBlank(f.value) {
			continue
		}
		if _, err := ParseTimestamp(f.value); err != nil {
			violations = append(violations, fmt.Sprintf("invalid timestamp format for %s", f.name))
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// timestampLayouts are the accepted ISO-8601 forms. Source systems commonly
// emit naive timestamps without a UTC offset; those are accepted as-is.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses an ISO-8601 timestamp, with or without a UTC offset.
func ParseTimestamp(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// Chunk is a word-boundary-trimmed, token-bounded span of a document's text.
// Chunks exist only for the duration of one ingestion call; the persisted
// form is a Point.
type Chunk struct {
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
}

// Point is the unit stored in the vector index. Key is the deterministic
// logical identifier "{doc_id}_{chunk_index}", so re-ingesting a document
// overwrites its prior points instead of duplicating them.
type Point struct {
	Key     string         `json:"key"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// PointKey builds the deterministic logical point identifier.
func PointKey(docID string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", docID, chunkIndex)
}

// ScoredPoint is a similarity search hit.
type ScoredPoint struct {
	Key     string         `json:"key"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// DocumentRecord mirrors a row of the documents table: the processing state
// tracked per document. Content carries the full text so a document can be
// re-indexed without the source system resubmitting it.
type DocumentRecord struct {
	DocID       string    `json:"doc_id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	URI         string    `json:"uri"`
	Author      string    `json:"author"`
	Content     string    `json:"-"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
	ContentHash string    `json:"content_hash"`
	ProcessedAt time.Time `json:"processed_at"`
	IsDeleted   bool      `json:"is_deleted"`
	ChunkCount  int       `json:"chunk_count"`
}

// Ingestion log event types.
const (
	EventSkipped       = "skipped"
	EventProcessed     = "processed"
	EventError         = "error"
	EventSyncStarted   = "sync_started"
	EventSyncCompleted = "sync_completed"
)

// LogEntry is an append-only audit record of one terminal ingestion outcome.
type LogEntry struct {
	DocID     string         `json:"doc_id"`
	EventType string         `json:"event_type"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// IngestResult is the structured outcome of one ingestion call. Failures are
// reported here as values, never as panics out of the pipeline.
type IngestResult struct {
	Success         bool   `json:"success"`
	ChunksProcessed int    `json:"chunks_processed"`
	Message         string `json:"message"`
	Error           string `json:"error,omitempty"`
}

// SyncResult is the outcome of a full source synchronization.
type SyncResult struct {
	DocumentsProcessed int      `json:"documents_processed"`
	DocumentsDeleted   int      `json:"documents_deleted"`
	Errors             []string `json:"errors"`
}

// HealthStatus reports composite liveness of both backing stores.
type HealthStatus struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres"`
	Qdrant   string `json:"qdrant"`
}
