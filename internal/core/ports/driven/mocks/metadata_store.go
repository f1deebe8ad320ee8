package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/domain"
)

// MockMetadataStore is a mock implementation of MetadataStore for testing
type MockMetadataStore struct {
	mu      sync.RWMutex
	records map[string]*domain.DocumentRecord
	logs    []*domain.LogEntry

	// Custom behavior hooks (optional)
	UpsertFn  func(rec *domain.DocumentRecord) error
	GetHashFn func(docID string) (string, error)
	PingFn    func() error
}

// NewMockMetadataStore creates a new MockMetadataStore
func NewMockMetadataStore() *MockMetadataStore {
	return &MockMetadataStore{
		records: make(map[string]*domain.DocumentRecord),
	}
}

func (m *MockMetadataStore) InitSchema(ctx context.Context) error {
	return nil
}

func (m *MockMetadataStore) UpsertDocument(ctx context.Context, rec *domain.DocumentRecord) error {
	if m.UpsertFn != nil {
		return m.UpsertFn(rec)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *rec
	stored.ProcessedAt = time.Now()
	stored.IsDeleted = false
	m.records[rec.DocID] = &stored
	return nil
}

func (m *MockMetadataStore) GetDocument(ctx context.Context, docID string) (*domain.DocumentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[docID]
	if !ok || rec.IsDeleted {
		return nil, domain.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (m *MockMetadataStore) GetContentHash(ctx context.Context, docID string) (string, error) {
	if m.GetHashFn != nil {
		return m.GetHashFn(docID)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[docID]
	if !ok || rec.IsDeleted {
		return "", domain.ErrNotFound
	}
	return rec.ContentHash, nil
}

func (m *MockMetadataStore) ListDocIDsBySource(ctx context.Context, source string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, rec := range m.records {
		if rec.Source == source && !rec.IsDeleted {
			ids = append(ids, rec.DocID)
		}
	}
	return ids, nil
}

func (m *MockMetadataStore) MarkDeleted(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[docID]
	if !ok {
		return domain.ErrNotFound
	}
	rec.IsDeleted = true
	return nil
}

func (m *MockMetadataStore) AppendLog(ctx context.Context, entry *domain.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *entry
	m.logs = append(m.logs, &copied)
	return nil
}

func (m *MockMetadataStore) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

// Helper methods for testing

func (m *MockMetadataStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*domain.DocumentRecord)
	m.logs = nil
}

// Logs returns a snapshot of appended log entries.
func (m *MockMetadataStore) Logs() []*domain.LogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.LogEntry, len(m.logs))
	copy(out, m.logs)
	return out
}

// LogsForEvent returns appended log entries matching an event type.
func (m *MockMetadataStore) LogsForEvent(eventType string) []*domain.LogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.LogEntry
	for _, e := range m.logs {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Record returns the stored record for a doc_id, including soft-deleted ones.
func (m *MockMetadataStore) Record(docID string) *domain.DocumentRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records[docID]
}
