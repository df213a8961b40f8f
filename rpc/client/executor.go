package client

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/liveQ/lib/query"
	"github.com/ValentinKolb/liveQ/rpc/common"
	"github.com/ValentinKolb/liveQ/rpc/serializer"
	"github.com/ValentinKolb/liveQ/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// NewRemoteExecutor creates a query executor backed by the given transport
// and serializer. The function connects the transport; the returned executor
// sends each operation as a query message.
// It returns a query.IExecutor and an error.
func NewRemoteExecutor(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (query.IExecutor, error) {
	return newExecutor(config, transport, serializer, common.MsgTQuery)
}

// NewMutationExecutor creates an executor like NewRemoteExecutor, but the
// returned executor sends each operation as a mutation message.
func NewMutationExecutor(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (query.IExecutor, error) {
	return newExecutor(config, transport, serializer, common.MsgTMutation)
}

func newExecutor(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
	msgType common.MessageType,
) (query.IExecutor, error) {
	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &remoteExecutor{
		config:     config,
		transport:  transport,
		serializer: serializer,
		msgType:    msgType,
	}, nil
}

// remoteExecutor performs operations against a remote service via the
// transport and serializer it was created with
type remoteExecutor struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
	msgType    common.MessageType
}

// --------------------------------------------------------------------------
// Interface Methods (docu see query.IExecutor)
// --------------------------------------------------------------------------

func (e *remoteExecutor) PerformOperation(ctx context.Context, name string, payload []byte) ([]byte, error) {
	var req *common.Message
	switch e.msgType {
	case common.MsgTMutation:
		req = common.NewMutationRequest(name, payload)
	default:
		req = common.NewQueryRequest(name, payload)
	}

	// the transport has its own timeout handling; the context is only
	// checked between the blocking stages
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := invokeRPCRequest(req, e.transport, e.serializer)
	if err != nil {
		return nil, &query.TransportError{Operation: name, Err: err}
	}

	return resp.Result, nil
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// invokeRPCRequest is a helper function used for all RPC clients to send requests
// It takes a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also checks if the response is an error response and if the type of the response is the expected type
func invokeRPCRequest(req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := transport.Send(reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	err = serializer.Deserialize(respBytes, resp)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize response: %s", err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		return nil, fmt.Errorf("remote error: %s", resp.Err)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	// Return the response
	return resp, nil
}
