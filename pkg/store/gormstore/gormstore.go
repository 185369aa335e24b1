// Package gormstore is the durable C12 DraftStore implementation,
// backed by GORM the way the pack's webhook repository persists its
// own JSONB-bearing records.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dlparker/palaver/pkg/events"
	"github.com/dlparker/palaver/pkg/store"
)

// textEventsJSON is a custom GORM type storing []events.TextEvent as
// JSONB, grounded on the pack's EventTypesJSON pattern for persisting
// a typed slice without a join table.
type textEventsJSON []events.TextEvent

func (t textEventsJSON) Value() (interface{}, error) {
	return json.Marshal(t)
}

func (t *textEventsJSON) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		*t = textEventsJSON{}
		return nil
	}
}

// draftRecord is the GORM model backing one draft row.
type draftRecord struct {
	ID                 string         `gorm:"type:varchar(36);primaryKey"`
	ParentDraftID      *string        `gorm:"type:varchar(36);index:idx_parent"`
	Timestamp          time.Time
	AudioStartTime     float64
	AudioEndTime       float64
	StartText          string         `gorm:"type:text"`
	EndText            string         `gorm:"type:text"`
	FullText           string         `gorm:"type:text"`
	StartMatchedEvents textEventsJSON `gorm:"type:jsonb"`
	EndMatchedEvents   textEventsJSON `gorm:"type:jsonb"`
}

func (draftRecord) TableName() string { return "drafts" }

func toRecord(d events.Draft) draftRecord {
	var parent *string
	if d.ParentDraftID != nil {
		s := d.ParentDraftID.String()
		parent = &s
	}
	return draftRecord{
		ID:                 d.DraftID.String(),
		ParentDraftID:      parent,
		Timestamp:          d.Timestamp,
		AudioStartTime:     d.AudioStartTime,
		AudioEndTime:       d.AudioEndTime,
		StartText:          d.StartText,
		EndText:            d.EndText,
		FullText:           d.FullText,
		StartMatchedEvents: d.StartMatchedEvents,
		EndMatchedEvents:   d.EndMatchedEvents,
	}
}

func fromRecord(r draftRecord) (events.Draft, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return events.Draft{}, err
	}
	d := events.Draft{
		DraftID:            id,
		Timestamp:          r.Timestamp,
		AudioStartTime:     r.AudioStartTime,
		AudioEndTime:       r.AudioEndTime,
		StartText:          r.StartText,
		EndText:            r.EndText,
		FullText:           r.FullText,
		StartMatchedEvents: []events.TextEvent(r.StartMatchedEvents),
		EndMatchedEvents:   []events.TextEvent(r.EndMatchedEvents),
	}
	if r.ParentDraftID != nil {
		pid, err := uuid.Parse(*r.ParentDraftID)
		if err != nil {
			return events.Draft{}, err
		}
		d.ParentDraftID = &pid
	}
	return d, nil
}

// Store is a GORM-backed store.DraftStore.
type Store struct {
	db *gorm.DB
}

// New wraps db, which must already have draftRecord migrated
// (AutoMigrate(&draftRecord{})).
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate runs AutoMigrate for the draft table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&draftRecord{})
}

func (s *Store) Put(ctx context.Context, draft events.Draft) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&draftRecord{}).Where("id = ?", draft.DraftID.String()).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return store.ErrDuplicateID
	}

	if draft.ParentDraftID != nil {
		var parentCount int64
		if err := s.db.WithContext(ctx).Model(&draftRecord{}).Where("id = ?", draft.ParentDraftID.String()).Count(&parentCount).Error; err != nil {
			return err
		}
		if parentCount == 0 {
			return store.ErrParentNotFound
		}
	}

	return s.db.WithContext(ctx).Create(toRecord(draft)).Error
}

func (s *Store) Get(ctx context.Context, draftID uuid.UUID) (events.Draft, error) {
	var rec draftRecord
	err := s.db.WithContext(ctx).Where("id = ?", draftID.String()).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return events.Draft{}, store.ErrNotFound
	}
	if err != nil {
		return events.Draft{}, err
	}
	return fromRecord(rec)
}

func (s *Store) GetSince(ctx context.Context, since time.Time, limit, offset int, order store.Order) ([]events.Draft, error) {
	q := s.db.WithContext(ctx).Where("timestamp >= ?", since)
	if order == store.OrderDescending {
		q = q.Order("timestamp DESC")
	} else {
		q = q.Order("timestamp ASC")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var recs []draftRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}

	out := make([]events.Draft, 0, len(recs))
	for _, r := range recs {
		d, err := fromRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) GetFamily(ctx context.Context, draftID uuid.UUID) (events.Draft, *events.Draft, []events.Draft, error) {
	d, err := s.Get(ctx, draftID)
	if err != nil {
		return events.Draft{}, nil, nil, err
	}

	var parent *events.Draft
	if d.ParentDraftID != nil {
		p, err := s.Get(ctx, *d.ParentDraftID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return events.Draft{}, nil, nil, err
		}
		if err == nil {
			parent = &p
		}
	}

	var childRecs []draftRecord
	if err := s.db.WithContext(ctx).Where("parent_draft_id = ?", draftID.String()).Find(&childRecs).Error; err != nil {
		return events.Draft{}, nil, nil, err
	}
	children := make([]events.Draft, 0, len(childRecs))
	for _, r := range childRecs {
		c, err := fromRecord(r)
		if err != nil {
			return events.Draft{}, nil, nil, err
		}
		children = append(children, c)
	}

	return d, parent, children, nil
}

var _ store.DraftStore = (*Store)(nil)
