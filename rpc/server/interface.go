package server

import (
	"github.com/ValentinKolb/liveQ/rpc/common"
)

// QueryHandlerFunc handles a single named query operation. It receives the
// raw variables payload from the request and returns the raw result payload
// or an error. The error is transported back to the client verbatim.
type QueryHandlerFunc func(variables []byte) ([]byte, error)

// MutationHandlerFunc handles a single named mutation operation. The
// signature matches QueryHandlerFunc; the two types only exist so that a
// handler cannot accidentally be registered for the wrong message type.
type MutationHandlerFunc func(variables []byte) ([]byte, error)

// IRPCServer defines the interface for the operation server. Handlers are
// registered per operation name before Serve is called; registering a second
// handler under the same name replaces the first.
type IRPCServer interface {
	// RegisterQuery registers a handler for the named query operation
	RegisterQuery(operation string, handler QueryHandlerFunc)

	// RegisterMutation registers a handler for the named mutation operation
	RegisterMutation(operation string, handler MutationHandlerFunc)

	// Serve initializes the server and starts the transport layer
	// This method blocks until the transport shuts down
	Serve() error
}

// ensure interface compliance
var (
	_ IRPCServer = (*rpcServer)(nil)
)

// helper to keep the two handler maps symmetric
type handlerEntry struct {
	msgType common.MessageType
	handler func(variables []byte) ([]byte, error)
}
