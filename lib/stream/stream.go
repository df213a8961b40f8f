package stream

import (
	"sync"
)

// Stream is a replay-1 multicast stream.
//
// Emit stores the value as the stream's most recent value and forwards it to
// every current subscriber. Subscribers added later receive the most recent
// value first (replay-1), then all subsequent emissions in emission order.
//
// Every subscriber is backed by its own unbounded Queue, so Emit never
// blocks: a subscriber that stops reading only grows its own buffer and can
// never delay the emitter or other subscribers.
type Stream[T any] struct {
	mu     sync.Mutex
	last   *T
	subs   map[uint64]*Subscriber[T]
	nextID uint64
	closed bool
}

// Subscriber is one subscription to a Stream. Values are consumed from the
// channel returned by C. Cancel detaches the subscriber, discards values not
// yet delivered and closes the channel; a stream Close instead delivers the
// buffered values first.
type Subscriber[T any] struct {
	id     uint64
	queue  *Queue[T]
	stream *Stream[T]
	once   sync.Once
}

// New creates a new empty stream.
func New[T any]() *Stream[T] {
	return &Stream[T]{
		subs: make(map[uint64]*Subscriber[T]),
	}
}

// Emit publishes a value to all current subscribers and stores it as the
// stream's most recent value.
//
// Thread-safety: safe to call concurrently; values emitted from a single
// goroutine are delivered to each subscriber in emission order.
func (s *Stream[T]) Emit(value T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.last = &value
	for _, sub := range s.subs {
		sub.queue.Push(&value)
	}
}

// Subscribe registers a new subscriber. If the stream has already emitted at
// least one value, the most recent one is delivered to the new subscriber
// first.
func (s *Stream[T]) Subscribe() *Subscriber[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &Subscriber[T]{
		id:     s.nextID,
		queue:  NewQueue[T](),
		stream: s,
	}
	s.nextID++

	// replay the most recent value
	if s.last != nil {
		sub.queue.Push(s.last)
	}

	if s.closed {
		// closed streams hand out an already-drained subscription
		sub.queue.Close()
		return sub
	}

	s.subs[sub.id] = sub
	return sub
}

// Len returns the current number of subscribers.
func (s *Stream[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close closes the stream and all current subscribers. Buffered values are
// still delivered to each subscriber before its channel closes.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	for id, sub := range s.subs {
		sub.queue.Close()
		delete(s.subs, id)
	}
}

// C returns the channel values are received on. The channel is closed after
// Cancel, or after a stream Close once all buffered values have been
// delivered.
func (sub *Subscriber[T]) C() <-chan *T {
	return sub.queue.Recv()
}

// Cancel detaches the subscriber from the stream. Values not yet delivered
// are discarded: a cancelled subscriber is abandoned, so waiting for it to
// drain would keep its queue goroutine alive forever. Safe to call multiple
// times.
func (sub *Subscriber[T]) Cancel() {
	sub.once.Do(func() {
		sub.stream.mu.Lock()
		delete(sub.stream.subs, sub.id)
		sub.stream.mu.Unlock()

		sub.queue.Abort()
	})
}
