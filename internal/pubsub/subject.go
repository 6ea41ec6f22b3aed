// Package pubsub provides the observable subject primitive that exposes
// manager state to consumers with explicit subscribe/unsubscribe lifecycle.
package pubsub

import "sync"

// Subject broadcasts values of type T to any number of subscribers. Publishing
// never blocks: each subscriber holds at most one pending value and a newer
// publish replaces an unconsumed one (latest wins). Once a value has been
// published, new subscribers receive the current value immediately.
type Subject[T any] struct {
	mu      sync.Mutex
	subs    map[chan T]struct{}
	current *T
	closed  bool
}

// NewSubject constructs an empty subject with no current value.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{
		subs: make(map[chan T]struct{}),
	}
}

// Subscribe registers a new subscriber. The returned channel yields published
// values; the returned function removes the subscription and closes the
// channel. Unsubscribing twice is safe.
func (s *Subject[T]) Subscribe() (func(), <-chan T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan T, 1)
	if s.closed {
		close(ch)
		return func() {}, ch
	}

	s.subs[ch] = struct{}{}
	if s.current != nil {
		ch <- *s.current
	}

	unsub := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; !ok {
			return
		}
		delete(s.subs, ch)
		drainAndClose(ch)
	}
	return unsub, ch
}

// Publish records v as the current value and offers it to every subscriber,
// replacing any pending value a slow subscriber has not consumed yet.
func (s *Subject[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.current = &v
	for ch := range s.subs {
		select {
		case ch <- v:
		default:
			// Replace the stale pending value.
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (s *Subject[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Value returns the current value and whether one has been published.
func (s *Subject[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		var zero T
		return zero, false
	}
	return *s.current, true
}

// Close removes all subscribers and closes their channels. Further publishes
// are no-ops and further subscriptions receive a closed channel.
func (s *Subject[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		delete(s.subs, ch)
		drainAndClose(ch)
	}
}

// drainAndClose removes any pending value before closing the channel so
// receivers observe a closed channel immediately.
func drainAndClose[T any](ch chan T) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}
