package mocks

import (
	"context"
	"sync"

	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/domain"
)

// MockVectorStore is a mock implementation of VectorStore for testing
type MockVectorStore struct {
	mu              sync.RWMutex
	points          map[string]*domain.Point
	collectionReady bool
	ensureCalls     int

	// Custom behavior hooks (optional)
	UpsertFn      func(points []*domain.Point) error
	EnsureFn      func() error
	HealthCheckFn func() error
}

// NewMockVectorStore creates a new MockVectorStore
func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{
		points: make(map[string]*domain.Point),
	}
}

func (m *MockVectorStore) EnsureCollection(ctx context.Context) error {
	m.mu.Lock()
	m.ensureCalls++
	m.mu.Unlock()

	if m.EnsureFn != nil {
		return m.EnsureFn()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.collectionReady = true
	return nil
}

func (m *MockVectorStore) Upsert(ctx context.Context, points []*domain.Point) error {
	if m.UpsertFn != nil {
		return m.UpsertFn(points)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		copied := *p
		m.points[p.Key] = &copied
	}
	return nil
}

func (m *MockVectorStore) Search(ctx context.Context, vector []float32, limit int) ([]*domain.ScoredPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.ScoredPoint
	for _, p := range m.points {
		if len(out) >= limit {
			break
		}
		out = append(out, &domain.ScoredPoint{Key: p.Key, Score: 1.0, Payload: p.Payload})
	}
	return out, nil
}

func (m *MockVectorStore) HealthCheck(ctx context.Context) error {
	if m.HealthCheckFn != nil {
		return m.HealthCheckFn()
	}
	return nil
}

// Helper methods for testing

func (m *MockVectorStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = make(map[string]*domain.Point)
	m.collectionReady = false
	m.ensureCalls = 0
}

// Point returns the stored point for a key, or nil.
func (m *MockVectorStore) Point(key string) *domain.Point {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.points[key]
}

// PointCount returns the number of stored points.
func (m *MockVectorStore) PointCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

// EnsureCalls returns how many times EnsureCollection was invoked.
func (m *MockVectorStore) EnsureCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ensureCalls
}
