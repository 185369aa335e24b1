package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dlparker/palaver/pkg/rescan"
)

// HTTPPoster implements rescan.Poster by issuing a real POST
// /api/revisions request, the wire-level counterpart to Server's
// handleRevisionsCollection, for deployments where the Rescanner and
// the DraftStore-owning host are different processes.
type HTTPPoster struct {
	baseURL string
	client  *http.Client
}

// NewHTTPPoster builds a poster targeting baseURL (e.g.
// "http://localhost:8088"); it appends "/api/revisions" itself.
func NewHTTPPoster(baseURL string) *HTTPPoster {
	return &HTTPPoster{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPPoster) PostRevision(ctx context.Context, req rescan.RevisionRequest) (rescan.RevisionResponse, error) {
	body := revisionRequestBody{
		OriginalDraftID: req.OriginalDraftID,
		RevisedDraft: draftWire{
			DraftID:        req.RevisedDraft.DraftID,
			AudioStartTime: req.RevisedDraft.AudioStartTime,
			AudioEndTime:   req.RevisedDraft.AudioEndTime,
			StartText:      req.RevisedDraft.StartText,
			EndText:        req.RevisedDraft.EndText,
			FullText:       req.RevisedDraft.FullText,
		},
		Metadata: req.Metadata,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return rescan.RevisionResponse{}, fmt.Errorf("apiserver: marshal revision request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/revisions", bytes.NewReader(raw))
	if err != nil {
		return rescan.RevisionResponse{}, fmt.Errorf("apiserver: build revision request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return rescan.RevisionResponse{}, fmt.Errorf("apiserver: post revision: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return rescan.RevisionResponse{}, fmt.Errorf("apiserver: revision post status %d", resp.StatusCode)
	}

	var out revisionResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return rescan.RevisionResponse{}, fmt.Errorf("apiserver: decode revision response: %w", err)
	}

	return rescan.RevisionResponse{
		RevisionID:      out.RevisionID,
		OriginalDraftID: out.OriginalDraftID,
		Stored:          out.Stored,
		CreatedAt:       out.CreatedAt,
	}, nil
}
