package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/domain"
)

func testConfig(baseURL string) Config {
	cfg := DefaultConfig(baseURL, "test_documents", 3)
	cfg.BootstrapAttempts = 3
	cfg.BootstrapBackoff = time.Millisecond
	cfg.BootstrapMaxWait = 5 * time.Millisecond
	return cfg
}

func collectionsBody(names ...string) map[string]any {
	collections := make([]map[string]any, len(names))
	for i, n := range names {
		collections[i] = map[string]any{"name": n}
	}
	return map[string]any{"result": map[string]any{"collections": collections}}
}

func TestEnsureCollection_CreatesWhenMissing(t *testing.T) {
	var created atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET" && r.URL.Path == "/collections":
			_ = json.NewEncoder(w).Encode(collectionsBody("other_collection"))
		case r.Method == "PUT" && r.URL.Path == "/collections/test_documents":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			vectors := body["vectors"].(map[string]any)
			if vectors["size"].(float64) != 3 {
				t.Errorf("expected vector size 3, got %v", vectors["size"])
			}
			if vectors["distance"] != "Cosine" {
				t.Errorf("expected Cosine distance, got %v", vectors["distance"])
			}
			created.Store(true)
			_ = json.NewEncoder(w).Encode(map[string]any{"result": true})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	store := NewVectorStore(testConfig(server.URL))
	if err := store.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection failed: %v", err)
	}
	if !created.Load() {
		t.Error("expected collection creation call")
	}
}

func TestEnsureCollection_SkipsWhenExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "PUT" {
			t.Errorf("unexpected creation call for existing collection")
		}
		_ = json.NewEncoder(w).Encode(collectionsBody("test_documents"))
	}))
	defer server.Close()

	store := NewVectorStore(testConfig(server.URL))
	if err := store.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection failed: %v", err)
	}
}

func TestEnsureCollection_RetriesUntilReady(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(collectionsBody("test_documents"))
	}))
	defer server.Close()

	store := NewVectorStore(testConfig(server.URL))
	if err := store.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("expected bootstrap to recover, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestEnsureCollection_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	store := NewVectorStore(testConfig(server.URL))
	err := store.EnsureCollection(context.Background())

	var serr *domain.StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if serr.Store != "qdrant" {
		t.Errorf("expected qdrant store error, got %s", serr.Store)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestUpsert_WireFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PUT" || r.URL.Path != "/collections/test_documents/points" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Error("expected wait=true")
		}

		var body struct {
			Points []qdrantPoint `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode upsert body: %v", err)
		}
		if len(body.Points) != 2 {
			t.Fatalf("expected 2 points, got %d", len(body.Points))
		}

		p := body.Points[0]
		if p.ID != PointID("doc-1_0") {
			t.Errorf("expected deterministic UUID id, got %s", p.ID)
		}
		if p.Payload["point_key"] != "doc-1_0" {
			t.Errorf("expected point_key in payload, got %v", p.Payload["point_key"])
		}
		if p.Payload["doc_id"] != "doc-1" {
			t.Errorf("expected doc_id in payload, got %v", p.Payload["doc_id"])
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"result": true})
	}))
	defer server.Close()

	store := NewVectorStore(testConfig(server.URL))
	points := []*domain.Point{
		{
			Key:     domain.PointKey("doc-1", 0),
			Vector:  []float32{0.1, 0.2, 0.3},
			Payload: map[string]any{"doc_id": "doc-1", "chunk_index": 0},
		},
		{
			Key:     domain.PointKey("doc-1", 1),
			Vector:  []float32{0.4, 0.5, 0.6},
			Payload: map[string]any{"doc_id": "doc-1", "chunk_index": 1},
		},
	}

	if err := store.Upsert(context.Background(), points); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
}

func TestUpsert_EmptyBatchNoCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty batch")
	}))
	defer server.Close()

	store := NewVectorStore(testConfig(server.URL))
	if err := store.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
}

func TestUpsert_ErrorIsStoreError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":{"error":"wrong vector size"}}`))
	}))
	defer server.Close()

	store := NewVectorStore(testConfig(server.URL))
	err := store.Upsert(context.Background(), []*domain.Point{
		{Key: "doc-1_0", Vector: []float32{0.1}},
	})

	var serr *domain.StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
}

func TestSearch_ReturnsLogicalKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/collections/test_documents/points/search" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["with_payload"] != true {
			t.Error("expected with_payload=true")
		}
		if body["limit"].(float64) != 5 {
			t.Errorf("expected limit 5, got %v", body["limit"])
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{
					"id":      PointID("doc-1_0"),
					"score":   0.92,
					"payload": map[string]any{"point_key": "doc-1_0", "text": "chunk text"},
				},
			},
		})
	}))
	defer server.Close()

	store := NewVectorStore(testConfig(server.URL))
	hits, err := store.Search(context.Background(), []float32{0.1, 0.2, 0.3}, 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Key != "doc-1_0" {
		t.Errorf("expected logical key doc-1_0, got %s", hits[0].Key)
	}
	if hits[0].Score != 0.92 {
		t.Errorf("expected score 0.92, got %f", hits[0].Score)
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(collectionsBody())
	}))

	store := NewVectorStore(testConfig(server.URL))
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("unexpected health check error: %v", err)
	}

	server.Close()
	if err := store.HealthCheck(context.Background()); err == nil {
		t.Error("expected health check error after server shutdown")
	}
}

func TestPointID_DeterministicAndDistinct(t *testing.T) {
	a := PointID("doc-1_0")
	b := PointID("doc-1_0")
	c := PointID("doc-1_1")

	if a != b {
		t.Errorf("same key must map to same id: %s vs %s", a, b)
	}
	if a == c {
		t.Error("distinct keys must map to distinct ids")
	}
	if len(a) != 36 {
		t.Errorf("expected UUID string form, got %q", a)
	}
}
