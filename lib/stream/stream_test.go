package stream

import (
	"runtime"
	"testing"
	"time"
)

// recv reads one value from a subscriber with a timeout
func recv[T any](t *testing.T, sub *Subscriber[T]) T {
	t.Helper()
	select {
	case val, ok := <-sub.C():
		if !ok {
			t.Fatalf("Subscriber channel closed unexpectedly")
		}
		return *val
	case <-time.After(time.Second):
		t.Fatalf("Timeout waiting for value")
	}
	panic("unreachable")
}

// TestStreamReplayLatest verifies a late subscriber first receives the most
// recent value
func TestStreamReplayLatest(t *testing.T) {
	s := New[int]()
	defer s.Close()

	s.Emit(1)
	s.Emit(2)

	sub := s.Subscribe()
	defer sub.Cancel()

	if got := recv(t, sub); got != 2 {
		t.Errorf("Expected replay of latest value 2, got %d", got)
	}

	// later emissions follow in order
	s.Emit(3)
	if got := recv(t, sub); got != 3 {
		t.Errorf("Expected 3, got %d", got)
	}
}

// TestStreamNoReplayBeforeFirstEmit verifies a subscriber to a fresh stream
// receives nothing until the first emission
func TestStreamNoReplayBeforeFirstEmit(t *testing.T) {
	s := New[int]()
	defer s.Close()

	sub := s.Subscribe()
	defer sub.Cancel()

	select {
	case val := <-sub.C():
		t.Errorf("Expected no value before first emit, got %v", val)
	case <-time.After(20 * time.Millisecond):
		// expected
	}

	s.Emit(7)
	if got := recv(t, sub); got != 7 {
		t.Errorf("Expected 7, got %d", got)
	}
}

// TestStreamMulticast verifies every subscriber receives every emission in order
func TestStreamMulticast(t *testing.T) {
	s := New[int]()
	defer s.Close()

	sub1 := s.Subscribe()
	defer sub1.Cancel()
	sub2 := s.Subscribe()
	defer sub2.Cancel()

	if s.Len() != 2 {
		t.Errorf("Expected 2 subscribers, got %d", s.Len())
	}

	for i := 0; i < 10; i++ {
		s.Emit(i)
	}

	for i := 0; i < 10; i++ {
		if got := recv(t, sub1); got != i {
			t.Errorf("sub1: expected %d, got %d", i, got)
		}
		if got := recv(t, sub2); got != i {
			t.Errorf("sub2: expected %d, got %d", i, got)
		}
	}
}

// TestStreamSlowSubscriberDoesNotBlock verifies a subscriber that never reads
// cannot delay the emitter or other subscribers
func TestStreamSlowSubscriberDoesNotBlock(t *testing.T) {
	s := New[int]()
	defer s.Close()

	// this subscriber never reads, its buffer just grows
	slow := s.Subscribe()
	defer slow.Cancel()

	fast := s.Subscribe()
	defer fast.Cancel()

	const items = 1000

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < items; i++ {
			s.Emit(i)
		}
	}()

	select {
	case <-done:
		// emitter finished without ever blocking on the slow subscriber
	case <-time.After(2 * time.Second):
		t.Fatalf("Emitter blocked by a slow subscriber")
	}

	for i := 0; i < items; i++ {
		if got := recv(t, fast); got != i {
			t.Fatalf("fast: expected %d, got %d", i, got)
		}
	}
}

// TestStreamCancel verifies a cancelled subscriber detaches and its channel closes
func TestStreamCancel(t *testing.T) {
	s := New[int]()
	defer s.Close()

	sub := s.Subscribe()
	s.Emit(1)

	if got := recv(t, sub); got != 1 {
		t.Errorf("Expected 1, got %d", got)
	}

	sub.Cancel()
	sub.Cancel() // idempotent

	if s.Len() != 0 {
		t.Errorf("Expected 0 subscribers after cancel, got %d", s.Len())
	}

	select {
	case _, ok := <-sub.C():
		if ok {
			t.Errorf("Expected closed channel after cancel")
		}
	case <-time.After(time.Second):
		t.Fatalf("Timeout waiting for channel close")
	}
}

// TestStreamClose verifies closing the stream closes all subscribers and that
// a subscriber created afterwards still sees the replayed value
func TestStreamClose(t *testing.T) {
	s := New[int]()

	sub := s.Subscribe()
	s.Emit(42)
	s.Close()
	s.Close() // idempotent

	// buffered value is still delivered, then the channel closes
	if got := recv(t, sub); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
	select {
	case _, ok := <-sub.C():
		if ok {
			t.Errorf("Expected closed channel after stream close")
		}
	case <-time.After(time.Second):
		t.Fatalf("Timeout waiting for channel close")
	}

	// emissions after close are dropped
	s.Emit(43)

	// a late subscriber gets the replayed value and a closed channel
	late := s.Subscribe()
	if got := recv(t, late); got != 42 {
		t.Errorf("Expected replayed 42 after close, got %d", got)
	}
	select {
	case _, ok := <-late.C():
		if ok {
			t.Errorf("Expected closed channel for late subscriber")
		}
	case <-time.After(time.Second):
		t.Fatalf("Timeout waiting for late channel close")
	}
}

// TestStreamCancelUnreadReleasesConsumer verifies cancelling subscribers
// that never read their replayed value leaves no goroutine behind
func TestStreamCancelUnreadReleasesConsumer(t *testing.T) {
	s := New[int]()
	defer s.Close()

	s.Emit(1)

	before := runtime.NumGoroutine()

	subs := make([]*Subscriber[int], 0, 50)
	for i := 0; i < 50; i++ {
		// each subscriber gets the replayed value buffered
		subs = append(subs, s.Subscribe())
	}
	for _, sub := range subs {
		sub.Cancel()
	}

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			t.Fatalf("%d goroutines alive after cancelling 50 unread subscribers, started with %d",
				runtime.NumGoroutine(), before)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
