// Package draft implements C7 DraftMaker: it watches the TextEvent
// stream for configured start/end phrase pairs and assembles the text
// between them into Drafts, publishing DraftStart/DraftEnd/DraftRescan
// events.
package draft

import (
	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/events"
	"github.com/dlparker/palaver/pkg/logging"
)

// DraftMaker is the public C7 component: a Builder wired to the event
// bus's TextEvent and Draft channels.
type DraftMaker struct {
	builder *Builder
	onDraft func(events.DraftEvent)
	logger  logging.Logger
}

// New builds a DraftMaker with the default start/end pattern families.
// onDraft is called synchronously for every DraftEvent produced.
func New(onDraft func(events.DraftEvent), logger logging.Logger) *DraftMaker {
	if logger == nil {
		logger = logging.Default()
	}
	return &DraftMaker{
		builder: NewBuilder(nil, nil, logger),
		onDraft: onDraft,
		logger:  logger,
	}
}

// OnTextEvent feeds ev through the boundary matcher and reports any
// resulting DraftEvents.
func (m *DraftMaker) OnTextEvent(ev events.TextEvent) {
	for _, de := range m.builder.OnTextEvent(ev) {
		m.report(de)
	}
}

// ForceEnd closes an in-progress draft with the forced-end sentinel,
// used when AudioStop arrives without a matching end phrase
// (cmd/palaverd's AudioStop lifecycle handler and the C11 Rescanner's
// force-end timeout drive this).
func (m *DraftMaker) ForceEnd() {
	if de, ok := m.builder.ForceEnd(); ok {
		m.report(de)
	}
}

// ImportDraft reports a remotely-rescanned revision of a previously
// emitted draft (C11 Rescanner drives this).
func (m *DraftMaker) ImportDraft(originalID uuid.UUID, revised events.Draft) {
	m.report(m.builder.ImportDraft(originalID, revised))
}

// InProgress reports whether a draft is currently open.
func (m *DraftMaker) InProgress() bool { return m.builder.InProgress() }

func (m *DraftMaker) report(de events.DraftEvent) {
	if m.onDraft != nil {
		m.onDraft(de)
	}
}
