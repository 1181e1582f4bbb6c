package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Lllllllleong/documentingest/internal/core"
	"github.com/Lllllllleong/documentingest/internal/logging"
	"github.com/Lllllllleong/documentingest/internal/models"
)

type DocumentHandler struct {
	records core.RecordStore
}

func NewDocumentHandler(records core.RecordStore) *DocumentHandler {
	return &DocumentHandler{records: records}
}

type errorResponse struct {
	Error string `json:"error"`
}

type sectionsResponse struct {
	DocumentKey string           `json:"documentKey"`
	AttemptID   string           `json:"attemptId"`
	Sections    []models.Section `json:"sections"`
}

// documentKey reads the route parameter. Keys contain slashes, so callers
// send them path-escaped.
func documentKey(r *http.Request) (string, error) {
	return url.PathUnescape(chi.URLParam(r, "documentKey"))
}

// GetDocument returns the master record of one document.
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ListSections returns a document's sections ordered by index. Sections are
// only trustworthy once the document is Completed, so any other status is a 409.
func (h *DocumentHandler) ListSections(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadDocument(w, r)
	if !ok {
		return
	}
	if doc.Status != models.StatusCompleted {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "document is " + string(doc.Status)})
		return
	}

	sections, err := h.records.ListSections(r.Context(), doc.DocumentKey)
	if err != nil {
		logging.FromContext(r.Context()).Error("Failed to list sections", "documentKey", doc.DocumentKey, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list sections"})
		return
	}
	writeJSON(w, http.StatusOK, sectionsResponse{DocumentKey: doc.DocumentKey, AttemptID: doc.AttemptID, Sections: sections})
}

// ListHistory returns the status transitions of a document, oldest first.
func (h *DocumentHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadDocument(w, r)
	if !ok {
		return
	}
	changes, err := h.records.ListStatusChanges(r.Context(), doc.DocumentKey)
	if err != nil {
		logging.FromContext(r.Context()).Error("Failed to list status history", "documentKey", doc.DocumentKey, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list status history"})
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

func (h *DocumentHandler) loadDocument(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	key, err := documentKey(r)
	if err != nil || key == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid document key"})
		return nil, false
	}
	doc, err := h.records.GetDocument(r.Context(), key)
	if errors.Is(err, core.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "document not found"})
		return nil, false
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("Failed to get document", "documentKey", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to get document"})
		return nil, false
	}
	return doc, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// requestLogger logs one line per request through slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logging.FromContext(r.Context()).Info("Request served.",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"durationMs", time.Since(start).Milliseconds(),
		)
	})
}
