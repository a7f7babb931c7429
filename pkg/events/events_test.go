package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&Event{
		Type:      EventPlacementDispatched,
		RequestID: "req-1",
		Backend:   "lvm-1#pool-a",
	})

	select {
	case ev := <-sub:
		if ev.Type != EventPlacementDispatched {
			t.Errorf("got type %s, want %s", ev.Type, EventPlacementDispatched)
		}
		if ev.ID == "" {
			t.Error("event ID not assigned")
		}
		if ev.Timestamp.IsZero() {
			t.Error("event timestamp not assigned")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	// Never drained; its buffer fills and further events are dropped.
	_ = broker.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			broker.Publish(&Event{Type: EventReportApplied})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}

func TestSubscriberCount(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	if broker.SubscriberCount() != 0 {
		t.Fatal("expected no subscribers")
	}
	sub := broker.Subscribe()
	if broker.SubscriberCount() != 1 {
		t.Fatal("expected one subscriber")
	}
	broker.Unsubscribe(sub)
	if broker.SubscriberCount() != 0 {
		t.Fatal("expected zero after unsubscribe")
	}
}
