package mocks

import (
	"context"
	"sync"

	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/domain"
)

// MockConnector is a mock implementation of SourceConnector for testing
type MockConnector struct {
	mu        sync.RWMutex
	documents map[string][]*domain.Document

	// Custom behavior hooks (optional)
	ListFn func(source string) ([]*domain.Document, error)
}

// NewMockConnector creates a new MockConnector
func NewMockConnector() *MockConnector {
	return &MockConnector{
		documents: make(map[string][]*domain.Document),
	}
}

func (m *MockConnector) ListDocuments(ctx context.Context, source string) ([]*domain.Document, error) {
	if m.ListFn != nil {
		return m.ListFn(source)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.documents[source], nil
}

// Helper methods for testing

// SetDocuments replaces the document set a source reports.
func (m *MockConnector) SetDocuments(source string, docs []*domain.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[source] = docs
}
