package events

import "testing"

func TestBusPublishTextFansOutInOrder(t *testing.T) {
	b := NewBus()
	var got []string
	b.OnText(func(ev TextEvent) { got = append(got, "a:"+ev.Text) })
	b.OnText(func(ev TextEvent) { got = append(got, "b:"+ev.Text) })

	b.PublishText(TextEvent{Text: "hello"})

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	if got[0] != "a:hello" || got[1] != "b:hello" {
		t.Errorf("expected registration order delivery, got %v", got)
	}
}

func TestBusPublishDraftNoSubscribersIsNoop(t *testing.T) {
	b := NewBus()
	b.PublishDraft(DraftEvent{Kind: DraftStart})
}

func TestBusPublishCommandDelivers(t *testing.T) {
	b := NewBus()
	var received *CommandEvent
	b.OnCommand(func(ev CommandEvent) { received = &ev })

	b.PublishCommand(CommandEvent{Command: CommandStartBlock, MatchedText: "rupert"})

	if received == nil {
		t.Fatalf("expected a delivery")
	}
	if received.MatchedText != "rupert" {
		t.Errorf("expected matched text rupert, got %s", received.MatchedText)
	}
}
