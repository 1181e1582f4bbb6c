package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentingest/internal/badgerstore"
	"github.com/Lllllllleong/documentingest/internal/models"
)

func newTestRouter(t *testing.T) (http.Handler, *badgerstore.Store) {
	t.Helper()
	store, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewRouter(store), store
}

func seed(t *testing.T, store *badgerstore.Store, key string, status models.Status, sections int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.PutDocument(ctx, &models.Document{DocumentKey: key, Status: status, SectionCount: sections, AttemptID: "attempt-1"}))
	for i := 1; i <= sections; i++ {
		require.NoError(t, store.PutSection(ctx, &models.Section{DocumentKey: key, SectionIndex: i}))
	}
	require.NoError(t, store.AppendStatusChange(ctx, &models.StatusChange{DocumentKey: key, From: models.StatusPending, To: models.StatusProcessing}))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func docPath(key string, suffix string) string {
	return "/api/documents/" + url.PathEscape(key) + suffix
}

func TestHealthz(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetDocument(t *testing.T) {
	h, store := newTestRouter(t)
	seed(t, store, "uploads/reports/q1.csv", models.StatusCompleted, 2)

	rec := get(t, h, docPath("uploads/reports/q1.csv", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	var doc models.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "uploads/reports/q1.csv", doc.DocumentKey)
	assert.Equal(t, models.StatusCompleted, doc.Status)

	rec = get(t, h, docPath("uploads/missing.txt", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSections(t *testing.T) {
	h, store := newTestRouter(t)
	seed(t, store, "uploads/done.txt", models.StatusCompleted, 3)

	rec := get(t, h, docPath("uploads/done.txt", "/sections"))
	require.Equal(t, http.StatusOK, rec.Code)
	var body sectionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "attempt-1", body.AttemptID)
	require.Len(t, body.Sections, 3)
	assert.Equal(t, 3, body.Sections[2].SectionIndex)
}

func TestListSections_NotCompleted(t *testing.T) {
	h, store := newTestRouter(t)
	for _, status := range []models.Status{models.StatusProcessing, models.StatusError} {
		key := "uploads/" + string(status) + ".txt"
		seed(t, store, key, status, 1)

		rec := get(t, h, docPath(key, "/sections"))
		assert.Equal(t, http.StatusConflict, rec.Code, status)
	}
}

func TestListHistory(t *testing.T) {
	h, store := newTestRouter(t)
	seed(t, store, "uploads/a.txt", models.StatusProcessing, 0)

	rec := get(t, h, docPath("uploads/a.txt", "/history"))
	require.Equal(t, http.StatusOK, rec.Code)
	var changes []models.StatusChange
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &changes))
	require.Len(t, changes, 1)
	assert.Equal(t, models.StatusProcessing, changes[0].To)
}
