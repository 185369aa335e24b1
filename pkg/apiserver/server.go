// Package apiserver implements spec.md §6's HTTP revision surface
// (POST/GET /api/revisions) and the remote WebSocket join endpoint
// (§6 "Remote event channel"), in the net/http + coder/websocket idiom
// the teacher's lokutor.go client side already exercises.
package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/events"
	"github.com/dlparker/palaver/pkg/logging"
	"github.com/dlparker/palaver/pkg/router"
	"github.com/dlparker/palaver/pkg/store"
)

// textPreviewLimit bounds the text_preview field of a revision listing.
const textPreviewLimit = 120

// Server hosts the revision HTTP endpoints and the WebSocket join
// endpoint against one DraftStore and one Router.
type Server struct {
	store        store.DraftStore
	router       *router.Router
	recordingOff bool
	logger       logging.Logger

	mu       sync.Mutex
	metadata map[uuid.UUID]map[string]interface{}
}

// New builds a Server. recordingOff, when true, makes POST /api/revisions
// respond 503 (spec.md §6: "503 when draft recording is disabled").
func New(draftStore store.DraftStore, r *router.Router, recordingOff bool, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{
		store:        draftStore,
		router:       r,
		recordingOff: recordingOff,
		logger:       logger,
		metadata:     make(map[uuid.UUID]map[string]interface{}),
	}
}

// Handler builds the mux routing /api/revisions and /ws to this Server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/revisions", s.handleRevisionsCollection)
	mux.HandleFunc("/api/revisions/", s.handleRevisionByDraftID)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

type revisionRequestBody struct {
	OriginalDraftID uuid.UUID              `json:"original_draft_id"`
	RevisedDraft    draftWire              `json:"revised_draft"`
	Metadata        map[string]interface{} `json:"metadata"`
}

type draftWire struct {
	DraftID        uuid.UUID `json:"draft_id"`
	AudioStartTime float64   `json:"audio_start_time"`
	AudioEndTime   float64   `json:"audio_end_time"`
	StartText      string    `json:"start_text"`
	EndText        string    `json:"end_text"`
	FullText       string    `json:"full_text"`
}

type revisionResponseBody struct {
	RevisionID      uuid.UUID `json:"revision_id"`
	OriginalDraftID uuid.UUID `json:"original_draft_id"`
	Stored          bool      `json:"stored"`
	CreatedAt       time.Time `json:"created_at"`
}

func (s *Server) handleRevisionsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.recordingOff {
		http.Error(w, "draft recording is disabled", http.StatusServiceUnavailable)
		return
	}

	var body revisionRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, err := s.store.Get(ctx, body.OriginalDraftID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "original draft not found", http.StatusNotFound)
			return
		}
		s.logger.Error("revision lookup failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	revisionID := body.RevisedDraft.DraftID
	if revisionID == uuid.Nil {
		revisionID = uuid.New()
	}
	revised := events.Draft{
		DraftID:        revisionID,
		ParentDraftID:  &body.OriginalDraftID,
		Timestamp:      time.Now(),
		AudioStartTime: body.RevisedDraft.AudioStartTime,
		AudioEndTime:   body.RevisedDraft.AudioEndTime,
		StartText:      body.RevisedDraft.StartText,
		EndText:        body.RevisedDraft.EndText,
		FullText:       body.RevisedDraft.FullText,
	}

	if err := s.store.Put(ctx, revised); err != nil {
		s.logger.Error("storing revision failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if len(body.Metadata) > 0 {
		s.mu.Lock()
		s.metadata[revisionID] = body.Metadata
		s.mu.Unlock()
	}

	resp := revisionResponseBody{
		RevisionID:      revisionID,
		OriginalDraftID: body.OriginalDraftID,
		Stored:          true,
		CreatedAt:       revised.Timestamp,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

type revisionListingEntry struct {
	RevisionID  uuid.UUID `json:"revision_id"`
	Model       string    `json:"model,omitempty"`
	Source      string    `json:"source,omitempty"`
	SourceURI   string    `json:"source_uri,omitempty"`
	FullText    string    `json:"full_text"`
	TextPreview string    `json:"text_preview"`
}

type revisionsForDraftBody struct {
	DraftID       uuid.UUID              `json:"draft_id"`
	OriginalDraft events.Draft           `json:"original_draft"`
	Revisions     []revisionListingEntry `json:"revisions"`
}

func (s *Server) handleRevisionByDraftID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/revisions/")
	draftID, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "malformed draft id", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	draft, _, children, err := s.store.GetFamily(ctx, draftID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "draft not found", http.StatusNotFound)
			return
		}
		s.logger.Error("revision family lookup failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	sortNewestFirst(children)

	entries := make([]revisionListingEntry, 0, len(children))
	for _, child := range children {
		entry := revisionListingEntry{
			RevisionID:  child.DraftID,
			FullText:    child.FullText,
			TextPreview: preview(child.FullText),
		}
		s.mu.Lock()
		meta := s.metadata[child.DraftID]
		s.mu.Unlock()
		if meta != nil {
			entry.Model, _ = meta["model"].(string)
			entry.Source, _ = meta["source"].(string)
			entry.SourceURI, _ = meta["source_uri"].(string)
		}
		entries = append(entries, entry)
	}

	resp := revisionsForDraftBody{
		DraftID:       draftID,
		OriginalDraft: draft,
		Revisions:     entries,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func sortNewestFirst(drafts []events.Draft) {
	for i := 1; i < len(drafts); i++ {
		for j := i; j > 0 && drafts[j].Timestamp.After(drafts[j-1].Timestamp); j-- {
			drafts[j], drafts[j-1] = drafts[j-1], drafts[j]
		}
	}
}

func preview(text string) string {
	if len(text) <= textPreviewLimit {
		return text
	}
	return text[:textPreviewLimit]
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	id := uuid.New().String()
	if err := router.Accept(r.Context(), s.router, id, conn); err != nil {
		s.logger.Warn("websocket session ended", "client", id, "error", err)
	}
}
