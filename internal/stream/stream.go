// Package stream fans committed engine facts out to live subscribers
// (SSE clients, notification workers). Delivery is best-effort: slow
// subscribers lose events rather than block the publisher.
package stream

import (
	"context"
	"sync"

	"alignhq.org/internal/okr"
)

// Stream fan-outs engine events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan okr.Event
	next int
}

var _ okr.Emitter = (*Stream)(nil)

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan okr.Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan okr.Event {
	ch := make(chan okr.Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Emit fan-outs the event to all subscribers.
func (s *Stream) Emit(evt okr.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
