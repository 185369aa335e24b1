package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/events"
)

// TestRescanFamilyLookup mirrors spec.md §8 S6's DraftStore assertion:
// get_family(A') returns (A', A, []).
func TestRescanFamilyLookup(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	a := events.Draft{DraftID: uuid.New(), FullText: "alpha", Timestamp: time.Now()}
	if err := s.Put(ctx, a); err != nil {
		t.Fatalf("unexpected error storing original: %v", err)
	}

	revised := events.Draft{DraftID: uuid.New(), ParentDraftID: &a.DraftID, FullText: "alpha (rescanned)", Timestamp: time.Now()}
	if err := s.Put(ctx, revised); err != nil {
		t.Fatalf("unexpected error storing revision: %v", err)
	}

	draft, parent, children, err := s.GetFamily(ctx, revised.DraftID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.DraftID != revised.DraftID {
		t.Errorf("expected draft to be the revision itself")
	}
	if parent == nil || parent.DraftID != a.DraftID {
		t.Fatalf("expected parent to be the original draft")
	}
	if len(children) != 0 {
		t.Errorf("expected no children for a revision, got %d", len(children))
	}
}

func TestPutRejectsDuplicateID(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	d := events.Draft{DraftID: uuid.New()}

	if err := s.Put(ctx, d); err != nil {
		t.Fatalf("unexpected error on first put: %v", err)
	}
	if err := s.Put(ctx, d); err != ErrDuplicateID {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestPutRejectsMissingParent(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	missing := uuid.New()
	d := events.Draft{DraftID: uuid.New(), ParentDraftID: &missing}

	if err := s.Put(ctx, d); err != ErrParentNotFound {
		t.Fatalf("expected ErrParentNotFound, got %v", err)
	}
}

func TestGetSinceOrdersNewestFirstOnDescending(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	base := time.Now()

	older := events.Draft{DraftID: uuid.New(), Timestamp: base}
	newer := events.Draft{DraftID: uuid.New(), Timestamp: base.Add(time.Minute)}
	s.Put(ctx, older)
	s.Put(ctx, newer)

	out, err := s.GetSince(ctx, base.Add(-time.Hour), 0, 0, OrderDescending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || out[0].DraftID != newer.DraftID {
		t.Fatalf("expected newest-first ordering, got %+v", out)
	}
}

func TestGetUnknownDraftReturnsErrNotFound(t *testing.T) {
	s := NewMemStore()
	if _, err := s.Get(context.Background(), uuid.New()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
