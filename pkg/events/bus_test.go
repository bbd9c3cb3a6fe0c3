package events

import (
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewMemoryBus(0)
	a, b := bus.Subscribe(), bus.Subscribe()
	defer bus.Unsubscribe(a)
	defer bus.Unsubscribe(b)

	bus.Publish(NewEvent(EventBatchStart, BatchInfo{Total: 2}))

	for _, ch := range []<-chan Event{a, b} {
		e := receive(t, ch)
		if e.Type != EventBatchStart || e.Data.(BatchInfo).Total != 2 {
			t.Errorf("event = %+v", e)
		}
	}
}

func TestSubscribeFilter(t *testing.T) {
	bus := NewMemoryBus(0)
	ch := bus.Subscribe(EventRunEnd, EventRunError)
	defer bus.Unsubscribe(ch)

	bus.Publish(NewEvent(EventRunStart, "start"))
	bus.Publish(NewEvent(EventRunError, "boom"))

	if e := receive(t, ch); e.Type != EventRunError {
		t.Errorf("got %s, want run.error", e.Type)
	}
	select {
	case e := <-ch:
		t.Errorf("unexpected event: %+v", e)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPublishAssignsSequence(t *testing.T) {
	bus := NewMemoryBus(0)
	for i := 0; i < 3; i++ {
		bus.Publish(NewEvent(EventRunEnd, i))
	}
	for i, e := range bus.After(0) {
		if e.Seq != uint64(i+1) {
			t.Errorf("event %d seq = %d", i, e.Seq)
		}
	}
}

func TestPublishStampsMissingTimestamp(t *testing.T) {
	bus := NewMemoryBus(0)
	bus.Publish(Event{Type: EventTestSaved})
	if got := bus.After(0); len(got) != 1 || got[0].Timestamp.IsZero() {
		t.Errorf("history = %+v", got)
	}
}

func TestAfter(t *testing.T) {
	bus := NewMemoryBus(4)
	for i := 1; i <= 6; i++ {
		bus.Publish(NewEvent(EventRunEnd, i))
	}

	tests := []struct {
		after     uint64
		wantFirst uint64
		wantLen   int
	}{
		{0, 3, 4}, // oldest two fell out of the ring
		{2, 3, 4},
		{4, 5, 2},
		{6, 0, 0},
		{99, 0, 0},
	}
	for _, tt := range tests {
		got := bus.After(tt.after)
		if len(got) != tt.wantLen {
			t.Errorf("After(%d) len = %d, want %d", tt.after, len(got), tt.wantLen)
			continue
		}
		if tt.wantLen > 0 && got[0].Seq != tt.wantFirst {
			t.Errorf("After(%d) first seq = %d, want %d", tt.after, got[0].Seq, tt.wantFirst)
		}
		for i := 1; i < len(got); i++ {
			if got[i].Seq != got[i-1].Seq+1 {
				t.Errorf("After(%d) out of order: %d then %d", tt.after, got[i-1].Seq, got[i].Seq)
			}
		}
	}
}

func TestHistorySince(t *testing.T) {
	bus := NewMemoryBus(0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		bus.Publish(Event{Type: EventRunEnd, Timestamp: base.Add(time.Duration(i) * time.Minute), Data: i})
	}

	if got := bus.History(time.Time{}); len(got) != 3 {
		t.Errorf("History(zero) = %d events", len(got))
	}
	got := bus.History(base.Add(time.Minute))
	if len(got) != 2 || got[0].Data != 1 {
		t.Errorf("History(+1m) = %+v", got)
	}
	if got := NewMemoryBus(0).History(time.Time{}); len(got) != 0 {
		t.Errorf("empty bus history = %d", len(got))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewMemoryBus(0)
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed")
	}
	// Unknown channels are ignored.
	bus.Unsubscribe(make(chan Event))
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewMemoryBus(0)
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			bus.Publish(NewEvent(EventRunEnd, i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}
}

func TestConcurrentUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(0)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			bus.Publish(NewEvent(EventRunStart, i))
		}
	}()
	for i := 0; i < 50; i++ {
		bus.Unsubscribe(bus.Subscribe())
	}
	<-done
}
