// Package stream provides the broadcast primitives used to fan out query
// results to subscribers.
//
// The package contains two building blocks:
//
//   - Queue: an unbounded lock-free multi-producer single-consumer queue.
//     Producers never block, which is the property the result fan-out relies
//     on: emitting a value to a slow subscriber must never delay delivery to
//     a fast one, and must never block the execution path.
//
//   - Stream: a replay-1 multicast stream built on top of Queue. Every
//     subscriber owns its own Queue, so subscribers are fully isolated from
//     each other. A new subscriber immediately receives the most recently
//     emitted value (if any) before subsequent emissions.
package stream
