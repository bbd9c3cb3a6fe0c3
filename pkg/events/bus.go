package events

import (
	"sync"
	"time"
)

// DefaultHistorySize bounds how many events a MemoryBus retains.
const DefaultHistorySize = 1024

// EventBus provides publish/subscribe for run events.
type EventBus interface {
	Publish(event Event)
	Subscribe(filter ...EventType) <-chan Event
	Unsubscribe(ch <-chan Event)
	History(since time.Time) []Event
	After(seq uint64) []Event
}

type subscriber struct {
	ch     chan Event
	filter map[EventType]bool // empty means all events
}

func (s subscriber) wants(t EventType) bool {
	return len(s.filter) == 0 || s.filter[t]
}

// MemoryBus keeps the most recent events in a ring so a dashboard that
// reconnects can resume from the last sequence number it saw.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers []subscriber
	ring        []Event
	head        int // index of the oldest retained event
	size        int
	seq         uint64
}

// NewMemoryBus creates a bus retaining up to historySize events. A
// non-positive size means DefaultHistorySize.
func NewMemoryBus(historySize int) *MemoryBus {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &MemoryBus{ring: make([]Event, historySize)}
}

// Publish stamps the event and fans it out. Slow subscribers miss events
// rather than stalling the runner.
func (b *MemoryBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	b.seq++
	event.Seq = b.seq
	b.retain(event)
	b.mu.Unlock()

	// Sends never block, so holding the read lock here only keeps
	// Unsubscribe from closing a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// retain must be called with mu held.
func (b *MemoryBus) retain(event Event) {
	if b.size < len(b.ring) {
		b.ring[(b.head+b.size)%len(b.ring)] = event
		b.size++
		return
	}
	b.ring[b.head] = event
	b.head = (b.head + 1) % len(b.ring)
}

func (b *MemoryBus) Subscribe(filter ...EventType) <-chan Event {
	sub := subscriber{ch: make(chan Event, 64)}
	if len(filter) > 0 {
		sub.filter = make(map[EventType]bool, len(filter))
		for _, f := range filter {
			sub.filter[f] = true
		}
	}

	b.mu.Lock()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()
	return sub.ch
}

func (b *MemoryBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub.ch == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// History returns retained events stamped at or after since, oldest first.
func (b *MemoryBus) History(since time.Time) []Event {
	return b.collect(func(e Event) bool { return !e.Timestamp.Before(since) })
}

// After returns retained events with a sequence number greater than seq,
// oldest first. After(0) returns everything retained.
func (b *MemoryBus) After(seq uint64) []Event {
	return b.collect(func(e Event) bool { return e.Seq > seq })
}

func (b *MemoryBus) collect(keep func(Event) bool) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, 0, b.size)
	for i := 0; i < b.size; i++ {
		e := b.ring[(b.head+i)%len(b.ring)]
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
