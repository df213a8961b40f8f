package query

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// gatedExecutor is a fake executor. Every call is counted; if gate is set,
// each call blocks until a token is sent to the gate. The respond function
// builds the result from the running call number.
type gatedExecutor struct {
	calls   atomic.Int32
	gate    chan struct{}
	respond func(call int32, name string, payload []byte) ([]byte, error)
}

func (e *gatedExecutor) PerformOperation(_ context.Context, name string, payload []byte) ([]byte, error) {
	n := e.calls.Add(1)
	if e.gate != nil {
		<-e.gate
	}
	if e.respond != nil {
		return e.respond(n, name, payload)
	}
	return []byte(fmt.Sprintf(`{"call":%d}`, n)), nil
}

// waitForCalls polls until the executor has seen the expected number of calls
func waitForCalls(t *testing.T, e *gatedExecutor, expected int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for e.calls.Load() < expected {
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for %d calls, saw %d", expected, e.calls.Load())
		}
		time.Sleep(time.Millisecond)
	}
}

type callResult struct {
	Call int `json:"call"`
}

// TestExecuteReturnsDecodedResult verifies the basic execute-decode round trip
func TestExecuteReturnsDecodedResult(t *testing.T) {
	exec := &gatedExecutor{}
	coord := NewCoordinator(exec, nil)
	defer coord.Close()

	result, err := Execute[callResult](context.Background(), coord, "getItem", map[string]any{"id": 1})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Call != 1 {
		t.Errorf("Expected call 1, got %d", result.Call)
	}
	if exec.calls.Load() != 1 {
		t.Errorf("Expected 1 executor call, got %d", exec.calls.Load())
	}
}

// TestConcurrentCallersShareRoundTrip verifies the coalescing behavior:
// callers arriving while a call is in flight wait it out, then share exactly
// one fresh round trip among themselves.
func TestConcurrentCallersShareRoundTrip(t *testing.T) {
	exec := &gatedExecutor{gate: make(chan struct{}, 64)}
	coord := NewCoordinator(exec, nil)
	defer coord.Close()

	// first wave: one caller starts call 1 and blocks in the executor
	firstResult := make(chan callResult, 1)
	go func() {
		r, err := Execute[callResult](context.Background(), coord, "getItem", nil)
		if err != nil {
			t.Errorf("First caller failed: %v", err)
		}
		firstResult <- r
	}()
	waitForCalls(t, exec, 1)

	// second wave: arrives while call 1 is in flight
	const waiters = 49
	var wg sync.WaitGroup
	wg.Add(waiters)
	results := make(chan callResult, waiters)

	for i := 0; i < waiters; i++ {
		go func() {
			defer wg.Done()
			r, err := Execute[callResult](context.Background(), coord, "getItem", nil)
			if err != nil {
				t.Errorf("Waiter failed: %v", err)
				return
			}
			results <- r
		}()
	}

	// give the waiters time to park on the in-flight execution
	time.Sleep(50 * time.Millisecond)

	// complete call 1: the waiters must not reuse its result but share one
	// fresh call among all of them
	exec.gate <- struct{}{}

	if r := <-firstResult; r.Call != 1 {
		t.Errorf("First caller expected result of call 1, got %d", r.Call)
	}

	waitForCalls(t, exec, 2)
	exec.gate <- struct{}{}

	wg.Wait()
	close(results)

	for r := range results {
		if r.Call != 2 {
			t.Errorf("Waiter expected result of call 2, got %d", r.Call)
		}
	}

	if got := exec.calls.Load(); got != 2 {
		t.Errorf("Expected exactly 2 executor calls for 50 callers, got %d", got)
	}
}

// TestSequentialCallsExecuteFresh verifies a caller arriving after a
// completed execution never reuses its result
func TestSequentialCallsExecuteFresh(t *testing.T) {
	exec := &gatedExecutor{}
	coord := NewCoordinator(exec, nil)
	defer coord.Close()

	for i := int32(1); i <= 3; i++ {
		r, err := Execute[callResult](context.Background(), coord, "getItem", nil)
		if err != nil {
			t.Fatalf("Execute %d failed: %v", i, err)
		}
		if int32(r.Call) != i {
			t.Errorf("Expected fresh call %d, got %d", i, r.Call)
		}
	}
}

// TestDistinctVariablesDoNotCoalesce verifies operations with different
// variables run independently
func TestDistinctVariablesDoNotCoalesce(t *testing.T) {
	exec := &gatedExecutor{
		respond: func(_ int32, _ string, payload []byte) ([]byte, error) {
			return payload, nil
		},
	}
	coord := NewCoordinator(exec, nil)
	defer coord.Close()

	a, err := Execute[map[string]any](context.Background(), coord, "getItem", map[string]any{"id": 1})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	b, err := Execute[map[string]any](context.Background(), coord, "getItem", map[string]any{"id": 2})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if a["id"] == b["id"] {
		t.Errorf("Expected distinct results for distinct variables")
	}
	if exec.calls.Load() != 2 {
		t.Errorf("Expected 2 executor calls, got %d", exec.calls.Load())
	}
}

// TestCallerCancellationDetaches verifies a cancelled caller returns
// immediately while the shared execution keeps running for the others
func TestCallerCancellationDetaches(t *testing.T) {
	exec := &gatedExecutor{gate: make(chan struct{}, 1)}
	coord := NewCoordinator(exec, nil)
	defer coord.Close()

	firstErr := make(chan error, 1)
	go func() {
		_, err := Execute[callResult](context.Background(), coord, "getItem", nil)
		firstErr <- err
	}()
	waitForCalls(t, exec, 1)

	// the second caller waits on the in-flight execution, then is cancelled
	ctx, cancel := context.WithCancel(context.Background())
	secondErr := make(chan error, 1)
	go func() {
		_, err := Execute[callResult](ctx, coord, "getItem", nil)
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-secondErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Cancelled caller did not return")
	}

	// the shared execution is unaffected
	exec.gate <- struct{}{}
	select {
	case err := <-firstErr:
		if err != nil {
			t.Errorf("First caller failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("First caller did not return")
	}

	if exec.calls.Load() != 1 {
		t.Errorf("Expected 1 executor call, got %d", exec.calls.Load())
	}
}

// TestTransportErrorWrapped verifies executor failures surface as transport
// errors that unwrap to the cause
func TestTransportErrorWrapped(t *testing.T) {
	cause := errors.New("connection refused")
	exec := &gatedExecutor{
		respond: func(int32, string, []byte) ([]byte, error) {
			return nil, cause
		},
	}
	coord := NewCoordinator(exec, nil)
	defer coord.Close()

	_, err := Execute[callResult](context.Background(), coord, "getItem", nil)
	if err == nil {
		t.Fatalf("Expected error")
	}

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Expected TransportError, got %T: %v", err, err)
	}
	if te.Operation != "getItem" {
		t.Errorf("Expected operation getItem, got %q", te.Operation)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Expected error to unwrap to the cause")
	}

	// the operation stays usable, the next call starts fresh
	exec.respond = nil
	if _, err := Execute[callResult](context.Background(), coord, "getItem", nil); err != nil {
		t.Errorf("Expected recovery after transport error, got %v", err)
	}
}

// TestDecodeErrorIsolatedPerShape verifies one shape failing to decode does
// not affect other shapes of the same operation
func TestDecodeErrorIsolatedPerShape(t *testing.T) {
	exec := &gatedExecutor{
		respond: func(int32, string, []byte) ([]byte, error) {
			return []byte(`{"call":"notanumber"}`), nil
		},
	}
	coord := NewCoordinator(exec, nil)
	defer coord.Close()

	// lenient shape: decodes fine
	lenient, err := Subscribe[map[string]any](coord, "getItem", nil)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer lenient.Close()

	// strict shape: the string does not fit the int field
	strict, err := Subscribe[callResult](coord, "getItem", nil)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer strict.Close()

	// trigger one execution with a third, raw shape
	if _, err := coord.Execute(context.Background(), "getItem", nil, RawShape()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	select {
	case outcome := <-lenient.C():
		if outcome.Err != nil {
			t.Errorf("Lenient shape should decode, got error %v", outcome.Err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Timeout waiting for lenient outcome")
	}

	select {
	case outcome := <-strict.C():
		var de *DecodeError
		if !errors.As(outcome.Err, &de) {
			t.Fatalf("Strict shape expected DecodeError, got %v", outcome.Err)
		}
		if de.Operation != "getItem" {
			t.Errorf("Expected operation getItem, got %q", de.Operation)
		}
	case <-time.After(time.Second):
		t.Fatalf("Timeout waiting for strict outcome")
	}
}

// TestSubscriptionReplayLatest verifies a second subscriber of the same shape
// immediately observes the most recent outcome
func TestSubscriptionReplayLatest(t *testing.T) {
	exec := &gatedExecutor{}
	coord := NewCoordinator(exec, nil)
	defer coord.Close()

	first, err := Subscribe[callResult](coord, "getItem", nil)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer first.Close()

	// subscribing must not trigger an execution by itself
	time.Sleep(20 * time.Millisecond)
	if exec.calls.Load() != 0 {
		t.Fatalf("Subscribe triggered an execution")
	}
	if first.Latest() != nil {
		t.Errorf("Fresh subscription should have no latest outcome")
	}

	if _, err := Execute[callResult](context.Background(), coord, "getItem", nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	select {
	case outcome := <-first.C():
		if outcome.Err != nil || outcome.Value.(callResult).Call != 1 {
			t.Errorf("Expected outcome of call 1, got %+v", outcome)
		}
	case <-time.After(time.Second):
		t.Fatalf("Timeout waiting for outcome")
	}
	if first.Latest() == nil {
		t.Errorf("Expected latest outcome after delivery")
	}

	// a late subscriber of the same shape sees the replayed outcome
	second, err := Subscribe[callResult](coord, "getItem", nil)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer second.Close()

	select {
	case outcome := <-second.C():
		if outcome.Err != nil || outcome.Value.(callResult).Call != 1 {
			t.Errorf("Expected replayed outcome of call 1, got %+v", outcome)
		}
	case <-time.After(time.Second):
		t.Fatalf("Timeout waiting for replayed outcome")
	}
}

// TestReloadCoalesces verifies a burst of reload triggers collapses into a
// bounded number of executions
func TestReloadCoalesces(t *testing.T) {
	exec := &gatedExecutor{gate: make(chan struct{}, 8)}
	coord := NewCoordinator(exec, nil)
	defer coord.Close()

	sub, err := Subscribe[callResult](coord, "getItem", nil)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	// first trigger starts call 1
	sub.Reload()
	waitForCalls(t, exec, 1)

	// a burst of triggers while call 1 runs must collapse into one follow-up
	for i := 0; i < 100; i++ {
		sub.Reload()
	}
	time.Sleep(20 * time.Millisecond)

	exec.gate <- struct{}{}
	waitForCalls(t, exec, 2)
	exec.gate <- struct{}{}

	// both outcomes arrive in order, then the stream stays quiet
	for i := int32(1); i <= 2; i++ {
		select {
		case outcome := <-sub.C():
			if outcome.Err != nil || int32(outcome.Value.(callResult).Call) != i {
				t.Errorf("Expected outcome of call %d, got %+v", i, outcome)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for outcome %d", i)
		}
	}

	time.Sleep(50 * time.Millisecond)
	if got := exec.calls.Load(); got != 2 {
		t.Errorf("Expected 101 triggers to collapse into 2 executions, got %d", got)
	}
}

// TestCollect verifies the sink-driven collection loop
func TestCollect(t *testing.T) {
	exec := &gatedExecutor{}
	coord := NewCoordinator(exec, nil)
	defer coord.Close()

	collected := make(chan Outcome, 8)
	done := make(chan error, 1)

	go func() {
		count := 0
		done <- coord.Collect(context.Background(), "getItem", nil, ShapeOf[callResult](), func(o Outcome) bool {
			collected <- o
			count++
			return count < 2
		})
	}()

	// let the collector subscribe before triggering
	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if _, err := coord.Execute(context.Background(), "getItem", nil, RawShape()); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Collect returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Collect did not return after sink stopped")
	}

	for i := int32(1); i <= 2; i++ {
		o := <-collected
		if o.Err != nil || int32(o.Value.(callResult).Call) != i {
			t.Errorf("Expected collected outcome of call %d, got %+v", i, o)
		}
	}
}

// TestCollectCancelled verifies Collect honors context cancellation
func TestCollectCancelled(t *testing.T) {
	exec := &gatedExecutor{}
	coord := NewCoordinator(exec, nil)
	defer coord.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- coord.Collect(ctx, "getItem", nil, ShapeOf[callResult](), func(Outcome) bool {
			return true
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Collect did not return after cancellation")
	}
}

// TestManyCallersFewExecutions floods one operation with a large number of
// concurrent callers and verifies the number of remote calls stays tiny
func TestManyCallersFewExecutions(t *testing.T) {
	exec := &gatedExecutor{
		respond: func(call int32, _ string, _ []byte) ([]byte, error) {
			time.Sleep(50 * time.Millisecond)
			return []byte(fmt.Sprintf(`{"call":%d}`, call)), nil
		},
	}
	coord := NewCoordinator(exec, nil)
	defer coord.Close()

	const callers = 1000

	var wg sync.WaitGroup
	wg.Add(callers)
	var failures atomic.Int32

	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			if _, err := Execute[callResult](context.Background(), coord, "getItem", nil); err != nil {
				failures.Add(1)
			}
		}()
	}

	wg.Wait()

	if failures.Load() != 0 {
		t.Errorf("%d callers failed", failures.Load())
	}
	if got := exec.calls.Load(); got < 1 || got > 10 {
		t.Errorf("Expected a handful of remote calls for %d callers, got %d", callers, got)
	}
}

// TestSubscriptionCloseReleasesResources verifies closing subscriptions with
// undelivered outcomes leaves no goroutine behind
func TestSubscriptionCloseReleasesResources(t *testing.T) {
	exec := &gatedExecutor{}
	coord := NewCoordinator(exec, nil)
	defer coord.Close()

	before := runtime.NumGoroutine()

	for i := 0; i < 30; i++ {
		sub, err := Subscribe[callResult](coord, "getItem", nil)
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}

		// produce an outcome the subscription never reads
		if _, err := Execute[callResult](context.Background(), coord, "getItem", nil); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}

		sub.Close()
	}

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			t.Fatalf("%d goroutines alive after closing 30 undrained subscriptions, started with %d",
				runtime.NumGoroutine(), before)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestReloadStormFromManyWorkers verifies reload triggers racing in from
// many goroutines collapse into a bounded number of executions while a
// collector keeps receiving results
func TestReloadStormFromManyWorkers(t *testing.T) {
	exec := &gatedExecutor{respond: func(call int32, name string, payload []byte) ([]byte, error) {
		time.Sleep(time.Millisecond)
		return []byte(fmt.Sprintf(`{"call":%d}`, call)), nil
	}}
	coord := NewCoordinator(exec, nil)
	defer coord.Close()

	sub, err := Subscribe[callResult](coord, "getItem", nil)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	var outcomes atomic.Int32
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for outcome := range sub.C() {
			if outcome.Err != nil {
				t.Errorf("Storm outcome carried error: %v", outcome.Err)
			}
			outcomes.Add(1)
		}
	}()

	const workers = 20
	const triggersPerWorker = 200

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < triggersPerWorker; j++ {
				sub.Reload()
			}
		}()
	}
	wg.Wait()

	// wait until the reload workers have drained their pending triggers
	waitForCalls(t, exec, 1)
	settle := time.Now().Add(2 * time.Second)
	for {
		calls := exec.calls.Load()
		time.Sleep(50 * time.Millisecond)
		if exec.calls.Load() == calls {
			break
		}
		if time.Now().After(settle) {
			t.Fatalf("Reload executions did not settle, at %d calls", exec.calls.Load())
		}
	}

	const triggers = workers * triggersPerWorker
	if got := exec.calls.Load(); got >= triggers/2 {
		t.Errorf("Expected %d concurrent triggers to coalesce, got %d executions", triggers, got)
	}

	sub.Close()
	select {
	case <-collectorDone:
	case <-time.After(time.Second):
		t.Fatalf("Collector did not stop after close")
	}

	if outcomes.Load() < 1 {
		t.Errorf("Expected at least one outcome from the storm")
	}
}
