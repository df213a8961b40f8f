package client

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ValentinKolb/liveQ/lib/query"
	"github.com/ValentinKolb/liveQ/rpc/common"
	"github.com/ValentinKolb/liveQ/rpc/serializer"
)

// memTransport is an in-memory client transport backed by a handler function,
// used to test the executor without a network
type memTransport struct {
	connected bool
	handle    func(req *common.Message) *common.Message
	ser       serializer.IRPCSerializer
}

func (t *memTransport) Connect(common.ClientConfig) error {
	t.connected = true
	return nil
}

func (t *memTransport) Send(req []byte) ([]byte, error) {
	var msg common.Message
	if err := t.ser.Deserialize(req, &msg); err != nil {
		return nil, err
	}
	return t.ser.Serialize(*t.handle(&msg))
}

func (t *memTransport) Close() error {
	t.connected = false
	return nil
}

func newMemTransport(handle func(req *common.Message) *common.Message) *memTransport {
	return &memTransport{handle: handle, ser: serializer.NewJSONSerializer()}
}

// TestRemoteExecutorRoundTrip verifies the executor sends a query message and
// returns the raw result of the response
func TestRemoteExecutorRoundTrip(t *testing.T) {
	tr := newMemTransport(func(req *common.Message) *common.Message {
		if req.MsgType != common.MsgTQuery {
			t.Errorf("Expected query request, got %s", req.MsgType)
		}
		if req.Operation != "listMovies" {
			t.Errorf("Expected operation listMovies, got %q", req.Operation)
		}
		if string(req.Variables) != `{"limit":10}` {
			t.Errorf("Unexpected variables payload: %s", req.Variables)
		}
		return common.NewQueryResponse(req.Operation, []byte(`[{"title":"Solaris"}]`), nil)
	})

	executor, err := NewRemoteExecutor(common.ClientConfig{}, tr, serializer.NewJSONSerializer())
	if err != nil {
		t.Fatalf("NewRemoteExecutor failed: %v", err)
	}
	if !tr.connected {
		t.Errorf("Expected executor to connect the transport")
	}

	result, err := executor.PerformOperation(context.Background(), "listMovies", []byte(`{"limit":10}`))
	if err != nil {
		t.Fatalf("PerformOperation failed: %v", err)
	}
	if string(result) != `[{"title":"Solaris"}]` {
		t.Errorf("Unexpected result: %s", result)
	}
}

// TestMutationExecutorMessageType verifies the mutation executor tags its
// requests as mutations
func TestMutationExecutorMessageType(t *testing.T) {
	tr := newMemTransport(func(req *common.Message) *common.Message {
		if req.MsgType != common.MsgTMutation {
			t.Errorf("Expected mutation request, got %s", req.MsgType)
		}
		return common.NewMutationResponse(req.Operation, []byte(`{"ok":true}`), nil)
	})

	executor, err := NewMutationExecutor(common.ClientConfig{}, tr, serializer.NewJSONSerializer())
	if err != nil {
		t.Fatalf("NewMutationExecutor failed: %v", err)
	}

	if _, err := executor.PerformOperation(context.Background(), "addMovie", nil); err != nil {
		t.Fatalf("PerformOperation failed: %v", err)
	}
}

// TestRemoteExecutorServerError verifies remote errors surface as transport errors
func TestRemoteExecutorServerError(t *testing.T) {
	tr := newMemTransport(func(req *common.Message) *common.Message {
		return common.NewErrorResponse("unknown operation")
	})

	executor, err := NewRemoteExecutor(common.ClientConfig{}, tr, serializer.NewJSONSerializer())
	if err != nil {
		t.Fatalf("NewRemoteExecutor failed: %v", err)
	}

	_, err = executor.PerformOperation(context.Background(), "nope", nil)

	var te *query.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Expected TransportError, got %T: %v", err, err)
	}
	if te.Operation != "nope" {
		t.Errorf("Expected operation nope, got %q", te.Operation)
	}
}

// TestRemoteExecutorTypeMismatch verifies a response of the wrong message
// type is rejected
func TestRemoteExecutorTypeMismatch(t *testing.T) {
	tr := newMemTransport(func(req *common.Message) *common.Message {
		return common.NewMutationResponse(req.Operation, nil, nil)
	})

	executor, err := NewRemoteExecutor(common.ClientConfig{}, tr, serializer.NewJSONSerializer())
	if err != nil {
		t.Fatalf("NewRemoteExecutor failed: %v", err)
	}

	if _, err := executor.PerformOperation(context.Background(), "getMovie", nil); err == nil {
		t.Errorf("Expected error for mismatched response type")
	}
}

// TestRemoteExecutorConnectFailure verifies a failing transport connect is
// reported by the factory
func TestRemoteExecutorConnectFailure(t *testing.T) {
	tr := &failingTransport{}

	if _, err := NewRemoteExecutor(common.ClientConfig{}, tr, serializer.NewJSONSerializer()); err == nil {
		t.Errorf("Expected connect error")
	}
}

type failingTransport struct{}

func (t *failingTransport) Connect(common.ClientConfig) error {
	return fmt.Errorf("connection refused")
}
func (t *failingTransport) Send([]byte) ([]byte, error) { return nil, nil }
func (t *failingTransport) Close() error                { return nil }
