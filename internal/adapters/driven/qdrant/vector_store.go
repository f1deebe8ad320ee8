// Package qdrant implements the vector store port against the Qdrant
// REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/domain"
	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*VectorStore)(nil)

// pointNamespace is the UUID namespace for deterministic point IDs. Qdrant
// accepts only integer or UUID point IDs, so the logical "{doc_id}_{index}"
// key is mapped through uuid.NewSHA1; the mapping is stable, which is what
// gives upserts their overwrite semantics.
var pointNamespace = uuid.MustParse("a6e1c3f0-45c2-4e8e-9f57-8b2d2f1d9f04")

// VectorStore implements driven.VectorStore using Qdrant
type VectorStore struct {
	baseURL    string
	collection string
	vectorSize int
	httpClient *http.Client
	logger     *slog.Logger

	bootstrapAttempts int
	bootstrapBackoff  time.Duration
	bootstrapMaxWait  time.Duration
}

// Config holds Qdrant connection configuration
type Config struct {
	// BaseURL is the Qdrant endpoint (e.g., http://localhost:6333)
	BaseURL string

	// Collection is the collection name to bootstrap and write into
	Collection string

	// VectorSize is the embedding dimension, fixed at collection creation
	VectorSize int

	// Timeout for HTTP requests
	Timeout time.Duration

	// BootstrapAttempts is how many times EnsureCollection retries against
	// a not-yet-ready Qdrant before giving up
	BootstrapAttempts int

	// BootstrapBackoff is the initial delay between bootstrap attempts;
	// it doubles per attempt up to BootstrapMaxWait
	BootstrapBackoff time.Duration
	BootstrapMaxWait time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL, collection string, vectorSize int) Config {
	return Config{
		BaseURL:           baseURL,
		Collection:        collection,
		VectorSize:        vectorSize,
		Timeout:           30 * time.Second,
		BootstrapAttempts: 10,
		BootstrapBackoff:  1 * time.Second,
		BootstrapMaxWait:  10 * time.Second,
	}
}

// NewVectorStore creates a new Qdrant-backed VectorStore
func NewVectorStore(cfg Config) *VectorStore {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorStore{
		baseURL:           strings.TrimSuffix(cfg.BaseURL, "/"),
		collection:        cfg.Collection,
		vectorSize:        cfg.VectorSize,
		httpClient:        &http.Client{Timeout: cfg.Timeout},
		logger:            logger,
		bootstrapAttempts: cfg.BootstrapAttempts,
		bootstrapBackoff:  cfg.BootstrapBackoff,
		bootstrapMaxWait:  cfg.BootstrapMaxWait,
	}
}

// EnsureCollection creates the collection with the configured dimension and
// cosine distance if it does not exist. Qdrant may not be ready when the
// worker starts, so it retries with capped exponential backoff; exhausting
// the attempts fails startup.
func (s *VectorStore) EnsureCollection(ctx context.Context) error {
	delay := s.bootstrapBackoff
	var lastErr error

	for attempt := 1; attempt <= s.bootstrapAttempts; attempt++ {
		lastErr = s.ensureCollectionOnce(ctx)
		if lastErr == nil {
			return nil
		}

		s.logger.Warn("failed to contact qdrant",
			"attempt", attempt,
			"max_attempts", s.bootstrapAttempts,
			"error", lastErr,
		)

		if attempt == s.bootstrapAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return &domain.StoreError{Store: "qdrant", Op: "ensure collection", Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
		if delay > s.bootstrapMaxWait {
			delay = s.bootstrapMaxWait
		}
	}

	return &domain.StoreError{
		Store: "qdrant",
		Op:    fmt.Sprintf("ensure collection after %d attempts", s.bootstrapAttempts),
		Err:   lastErr,
	}
}

func (s *VectorStore) ensureCollectionOnce(ctx context.Context) error {
	names, err := s.listCollections(ctx)
	if err != nil {
		return err
	}

	for _, name := range names {
		if name == s.collection {
			s.logger.Info("qdrant collection already exists", "collection", s.collection)
			return nil
		}
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.vectorSize,
			"distance": "Cosine",
		},
	}
	if err := s.doRequest(ctx, http.MethodPut, "/collections/"+s.collection, body, nil); err != nil {
		return err
	}

	s.logger.Info("created qdrant collection", "collection", s.collection, "vector_size", s.vectorSize)
	return nil
}

// collectionsResponse is the body of GET /collections
type collectionsResponse struct {
	Result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	} `json:"result"`
}

func (s *VectorStore) listCollections(ctx context.Context) ([]string, error) {
	var resp collectionsResponse
	if err := s.doRequest(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resp.Result.Collections))
	for _, c := range resp.Result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

// qdrantPoint is the wire form of one point in an upsert batch
type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Upsert writes a batch of points in one call. Re-upserting the same
// logical key replaces the prior vector and payload.
func (s *VectorStore) Upsert(ctx context.Context, points []*domain.Point) error {
	if len(points) == 0 {
		return nil
	}

	wire := make([]qdrantPoint, 0, len(points))
	for _, p := range points {
		payload := make(map[string]any, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		payload["point_key"] = p.Key

		wire = append(wire, qdrantPoint{
			ID:      PointID(p.Key),
			Vector:  p.Vector,
			Payload: payload,
		})
	}

	body := map[string]any{"points": wire}
	path := fmt.Sprintf("/collections/%s/points?wait=true", s.collection)
	if err := s.doRequest(ctx, http.MethodPut, path, body, nil); err != nil {
		return &domain.StoreError{Store: "qdrant", Op: "upsert points", Err: err}
	}
	return nil
}

// searchResponse is the body of POST /collections/{name}/points/search
type searchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Search returns the closest points to the query vector with payloads.
func (s *VectorStore) Search(ctx context.Context, vector []float32, limit int) ([]*domain.ScoredPoint, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}

	var resp searchResponse
	path := fmt.Sprintf("/collections/%s/points/search", s.collection)
	if err := s.doRequest(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, &domain.StoreError{Store: "qdrant", Op: "search", Err: err}
	}

	results := make([]*domain.ScoredPoint, 0, len(resp.Result))
	for _, hit := range resp.Result {
		sp := &domain.ScoredPoint{
			Score:   hit.Score,
			Payload: hit.Payload,
		}
		// Report the logical key, not the wire UUID.
		if key, ok := hit.Payload["point_key"].(string); ok {
			sp.Key = key
		} else {
			sp.Key = fmt.Sprint(hit.ID)
		}
		results = append(results, sp)
	}
	return results, nil
}

// HealthCheck verifies Qdrant is reachable (listing collections must succeed).
func (s *VectorStore) HealthCheck(ctx context.Context) error {
	_, err := s.listCollections(ctx)
	if err != nil {
		return &domain.StoreError{Store: "qdrant", Op: "health check", Err: err}
	}
	return nil
}

// PointID maps a logical point key to the deterministic UUID Qdrant stores
// it under.
func PointID(key string) string {
	return uuid.NewSHA1(pointNamespace, []byte(key)).String()
}

func (s *VectorStore) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant returned %s: %s", resp.Status, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
