package stream

import (
	"context"
	"sync"
	"time"
)

// ModerationEvent describes a single applied moderation action, fanned out to
// live admin dashboards.
type ModerationEvent struct {
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	ActorID    string    `json:"actor_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// Stream fan-outs moderation events to all active subscribers (SSE clients).
// Slow subscribers drop events instead of blocking the publisher.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan ModerationEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan ModerationEvent)}
}

// Subscribe registers a new consumer. The returned channel closes when ctx is done.
func (s *Stream) Subscribe(ctx context.Context) <-chan ModerationEvent {
	ch := make(chan ModerationEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Publish delivers the event to every subscriber without blocking.
func (s *Stream) Publish(event ModerationEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (s *Stream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
