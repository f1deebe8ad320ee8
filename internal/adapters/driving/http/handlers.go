package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/domain"
)

// IngestRequest is one document plus the hash-skip override.
type IngestRequest struct {
	domain.Document
	ForceReindex bool `json:"force_reindex"`
}

// ReindexRequest identifies a previously processed document.
type ReindexRequest struct {
	DocID string `json:"doc_id"`
}

// SyncRequest names the source to synchronize.
type SyncRequest struct {
	Source string `json:"source"`
}

// IngestionResponse is the outcome of an ingest or reindex call.
type IngestionResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	DocID           string `json:"doc_id"`
	ChunksProcessed int    `json:"chunks_processed"`
	Error           string `json:"error,omitempty"`
}

// SyncResponse is the outcome of a sync call.
type SyncResponse struct {
	Success            bool     `json:"success"`
	Message            string   `json:"message"`
	DocumentsProcessed int      `json:"documents_processed"`
	DocumentsDeleted   int      `json:"documents_deleted"`
	Errors             []string `json:"errors"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Black Synapse Data Ingestion Worker",
		"status":  "healthy",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.ingestion.Health(r.Context())

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.ingestion.Ingest(r.Context(), &req.Document, req.ForceReindex)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestionResponse(req.DocID, result))
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req ReindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DocID == "" {
		writeError(w, http.StatusBadRequest, "doc_id is required")
		return
	}

	result, err := s.ingestion.Reindex(r.Context(), req.DocID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestionResponse(req.DocID, result))
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source is required")
		return
	}

	result, err := s.ingestion.SyncSource(r.Context(), req.Source)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SyncResponse{
		Success:            len(result.Errors) == 0,
		Message:            "sync completed",
		DocumentsProcessed: result.DocumentsProcessed,
		DocumentsDeleted:   result.DocumentsDeleted,
		Errors:             result.Errors,
	})
}

func ingestionResponse(docID string, result *domain.IngestResult) IngestionResponse {
	resp := IngestionResponse{
		Success:         result.Success,
		DocID:           docID,
		ChunksProcessed: result.ChunksProcessed,
		Message:         result.Message,
		Error:           result.Error,
	}
	if resp.Message == "" {
		if result.Success {
			resp.Message = "document processed successfully"
		} else {
			resp.Message = "document processing failed"
		}
	}
	return resp
}

// writeServiceError maps boundary errors from the ingestion service to
// HTTP status codes. Pipeline failures arrive as results, not errors, and
// never reach this path.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, domain.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, "pipeline not ready")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
