// Package store implements C12 DraftStore: a keyed durable map from
// draft_id to record, with a parent_draft_id index, used by the
// revision submission/lookup HTTP surface (spec.md §4.12, §6).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/events"
)

// ErrDuplicateID is returned by Put when draft_id already exists.
var ErrDuplicateID = errors.New("store: duplicate draft id")

// ErrParentNotFound is returned by Put when ParentDraftID is set but no
// record with that id exists.
var ErrParentNotFound = errors.New("store: parent draft not found")

// ErrNotFound is returned by Get/GetFamily for an unknown draft id.
var ErrNotFound = errors.New("store: draft not found")

// Order selects ascending or descending GetSince pagination.
type Order int

const (
	OrderAscending Order = iota
	OrderDescending
)

// DraftStore is C12's contract.
type DraftStore interface {
	// Put persists draft, failing with ErrDuplicateID or
	// ErrParentNotFound per spec.md §4.12.
	Put(ctx context.Context, draft events.Draft) error

	// Get returns the record for draftID, or ErrNotFound.
	Get(ctx context.Context, draftID uuid.UUID) (events.Draft, error)

	// GetSince returns a page of drafts with Timestamp >= since,
	// ordered and bounded by limit/offset.
	GetSince(ctx context.Context, since time.Time, limit, offset int, order Order) ([]events.Draft, error)

	// GetFamily returns the draft, its parent (nil if none), and its
	// direct children.
	GetFamily(ctx context.Context, draftID uuid.UUID) (draft events.Draft, parent *events.Draft, children []events.Draft, err error)
}
