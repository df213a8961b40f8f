package stream

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// qnode is a single element of the queue's linked list
type qnode[T any] struct {
	value *T
	next  atomic.Pointer[qnode[T]]
}

// Queue is an unbounded lock-free multi-producer single-consumer queue.
//
// Guarantees:
//
//   - Push never blocks: producers only perform atomic operations, so a
//     slow consumer can never stall a producer.
//   - Unbounded: the queue grows as needed, limited only by memory.
//   - Thread-safe writes: any number of goroutines may Push concurrently.
//   - Single consumer: one goroutine consumes values via the Recv channel.
type Queue[T any] struct {
	head     atomic.Pointer[qnode[T]]
	tail     atomic.Pointer[qnode[T]]
	out      chan *T
	consumer sync.WaitGroup
	closed   atomic.Bool

	// closed by Abort so a consumer blocked on the out channel can stop
	// without a reader
	aborted   chan struct{}
	abortOnce sync.Once

	// condition variable so the consumer can sleep while the queue is empty
	mu   sync.Mutex
	cond *sync.Cond
}

// NewQueue creates a new queue and starts its consumer goroutine.
func NewQueue[T any]() *Queue[T] {
	// sentinel node so head/tail are never nil
	sentinel := &qnode[T]{}

	q := &Queue[T]{
		out:     make(chan *T),
		aborted: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)

	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.consumer.Add(1)
	go q.consume()

	return q
}

// Push adds an item to the queue.
// Returns true if the item was added, or false if the queue is closed.
//
// Thread-safety: safe to call from any number of goroutines concurrently.
func (q *Queue[T]) Push(value *T) bool {
	if value == nil {
		return false
	}

	if q.closed.Load() {
		return false
	}

	newNode := &qnode[T]{value: value}

	var backoff uint8 = 0

	for {
		tailNode := q.tail.Load()

		next := tailNode.next.Load()
		if next == nil {
			// tail has no successor yet, try to append our node
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// appended; the tail CAS may fail if another producer
				// helps out, which is fine
				q.tail.CompareAndSwap(tailNode, newNode)

				// wake the consumer
				q.cond.Signal()

				return true
			}
		} else {
			// another producer appended but has not updated tail yet, help it
			q.tail.CompareAndSwap(tailNode, next)
		}

		// Exponential backoff under contention: spin at low retry counts,
		// yield the processor once contention is sustained. This avoids all
		// producers retrying in lockstep after a failed CAS.
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// consume moves items from the linked list to the output channel and frees
// the consumed nodes
func (q *Queue[T]) consume() {
	defer q.consumer.Done()
	defer close(q.out)

	for {
		select {
		case <-q.aborted:
			return
		default:
		}

		hasItems := false

		for {
			head := q.head.Load()
			next := head.next.Load()

			if next == nil {
				break // drained
			}

			hasItems = true

			value := next.value

			// advance head, releasing the old node to the gc
			q.head.Store(next)

			// an abort must unblock the send even when nobody reads the
			// out channel anymore
			select {
			case q.out <- value:
			case <-q.aborted:
				return
			}

			next.value = nil
		}

		if !hasItems && q.closed.Load() {
			return
		}

		if !hasItems {
			q.mu.Lock()
			// re-check after acquiring the lock, a producer may have
			// pushed or closed in the meantime
			head := q.head.Load()
			if head.next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the receive-only channel for consuming from the queue.
// The channel is closed after Close once all buffered items are delivered,
// or immediately after Abort.
func (q *Queue[T]) Recv() <-chan *T {
	return q.out
}

// Close closes the queue, preventing further writes.
// Items already in the queue are still delivered to the consumer.
func (q *Queue[T]) Close() {
	q.closed.Store(true)

	// wake the consumer if it is waiting; taking the lock orders the store
	// before a concurrent empty-check so the wakeup cannot be missed
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// Abort closes the queue and discards items not yet delivered. The consumer
// goroutine stops immediately, even mid-send with no reader on the Recv
// channel, and the Recv channel is closed. Safe to call multiple times and
// alongside Close.
func (q *Queue[T]) Abort() {
	q.abortOnce.Do(func() {
		q.closed.Store(true)
		close(q.aborted)

		q.mu.Lock()
		q.cond.Signal()
		q.mu.Unlock()
	})
}

// IsClosed returns true if the queue is closed.
func (q *Queue[T]) IsClosed() bool {
	return q.closed.Load()
}
