package api

import (
	"testing"

	"github.com/julesqueue/julesq/internal/domain"
)

func TestHub_BroadcastFanout(t *testing.T) {
	h := NewHub()
	a := h.subscribe()
	b := h.subscribe()

	h.Broadcast(SweepEvent(domain.RetryStats{Attempted: 2, Successful: 2}))

	for _, ch := range []chan Event{a, b} {
		ev := <-ch
		if ev.Type != EventSweep {
			t.Errorf("Type = %q, want %q", ev.Type, EventSweep)
		}
	}
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	h := NewHub()
	slow := h.subscribe()
	live := h.subscribe()

	// One more than the subscriber buffer: the last delivery evicts.
	for i := 0; i <= eventBuffer; i++ {
		h.Broadcast(Event{Type: EventTaskUpdate})
		<-live
	}

	for i := 0; i < eventBuffer; i++ {
		<-slow
	}
	if _, ok := <-slow; ok {
		t.Error("slow subscriber channel should be closed")
	}

	// Already dropped; a second removal must not panic.
	h.unsubscribe(slow)
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	ch := h.subscribe()
	h.unsubscribe(ch)

	h.Broadcast(Event{Type: EventWebhook})
	if _, ok := <-ch; ok {
		t.Error("unsubscribed channel should be closed without events")
	}
}
