package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlparker/palaver/pkg/events"
	"github.com/dlparker/palaver/pkg/router"
	"github.com/dlparker/palaver/pkg/store"
)

func newTestServer(t *testing.T, recordingOff bool) (*Server, store.DraftStore) {
	t.Helper()
	s := store.NewMemStore()
	r := router.New(0, "", nil)
	return New(s, r, recordingOff, nil), s
}

func postRevision(t *testing.T, srv *Server, body revisionRequestBody) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/revisions", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPostRevisionSucceedsWhenOriginalExists(t *testing.T) {
	srv, s := newTestServer(t, false)
	original := events.Draft{DraftID: uuid.New(), FullText: "alpha", Timestamp: time.Now()}
	require.NoError(t, s.Put(context.Background(), original))

	rec := postRevision(t, srv, revisionRequestBody{
		OriginalDraftID: original.DraftID,
		RevisedDraft:    draftWire{FullText: "alpha (rescanned)"},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp revisionResponseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Stored)
	assert.Equal(t, original.DraftID, resp.OriginalDraftID)
}

func TestPostRevisionReturns404WhenOriginalMissing(t *testing.T) {
	srv, _ := newTestServer(t, false)
	rec := postRevision(t, srv, revisionRequestBody{
		OriginalDraftID: uuid.New(),
		RevisedDraft:    draftWire{FullText: "orphaned"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostRevisionReturns503WhenRecordingDisabled(t *testing.T) {
	srv, _ := newTestServer(t, true)
	rec := postRevision(t, srv, revisionRequestBody{OriginalDraftID: uuid.New()})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetRevisionsOrdersNewestFirst(t *testing.T) {
	srv, s := newTestServer(t, false)
	original := events.Draft{DraftID: uuid.New(), FullText: "alpha", Timestamp: time.Now()}
	require.NoError(t, s.Put(context.Background(), original))

	older := revisionRequestBody{OriginalDraftID: original.DraftID, RevisedDraft: draftWire{FullText: "older revision"}}
	postRevision(t, srv, older)
	time.Sleep(time.Millisecond)
	newer := revisionRequestBody{OriginalDraftID: original.DraftID, RevisedDraft: draftWire{FullText: "newer revision"}}
	postRevision(t, srv, newer)

	req := httptest.NewRequest(http.MethodGet, "/api/revisions/"+original.DraftID.String(), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body revisionsForDraftBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Revisions, 2)
	assert.Equal(t, "newer revision", body.Revisions[0].FullText)
	assert.Equal(t, original.DraftID, body.OriginalDraft.DraftID)
}

func TestGetRevisionsUnknownDraftReturns404(t *testing.T) {
	srv, _ := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/api/revisions/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
