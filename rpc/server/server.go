package server

import (
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ValentinKolb/liveQ/rpc/common"
	"github.com/ValentinKolb/liveQ/rpc/serializer"
	"github.com/ValentinKolb/liveQ/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new operation server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	s.RegisterQuery("listMovies", listMovies)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) IRPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		handlers:   xsync.NewMapOf[string, handlerEntry](),
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	handlers   *xsync.MapOf[string, handlerEntry]
}

// --------------------------------------------------------------------------
// Interface Methods (docu see interface.go)
// --------------------------------------------------------------------------

func (s *rpcServer) RegisterQuery(operation string, handler QueryHandlerFunc) {
	s.handlers.Store(operation, handlerEntry{msgType: common.MsgTQuery, handler: handler})
	Logger.Infof("registered query handler for %q", operation)
}

func (s *rpcServer) RegisterMutation(operation string, handler MutationHandlerFunc) {
	s.handlers.Store(operation, handlerEntry{msgType: common.MsgTMutation, handler: handler})
	Logger.Infof("registered mutation handler for %q", operation)
}

func (s *rpcServer) Serve() error {
	// Init logger
	common.InitLoggers(s.config.LogLevel)

	// Configure the transport layer
	s.registerTransportHandler()

	return s.transport.Listen(s.config)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// registerTransportHandler wires the request dispatch into the transport.
// Requests are routed to their handler by operation name; ping requests are
// answered directly without touching the handler map.
func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(req []byte) []byte {
		var msg common.Message

		// Decode the request
		if err := s.serializer.Deserialize(req, &msg); err != nil {
			return s.encode(common.NewErrorResponse(
				fmt.Sprintf("failed to deserialize request: %s", err),
			))
		}

		return s.encode(s.dispatch(&msg))
	})
}

// dispatch routes a single decoded request message to its handler
func (s *rpcServer) dispatch(msg *common.Message) *common.Message {
	// Ping is handled by the server itself
	if msg.MsgType == common.MsgTPing {
		return common.NewPingResponse()
	}

	// Get appropriate handler
	entry, ok := s.handlers.Load(msg.Operation)
	if !ok {
		return common.NewErrorResponse(fmt.Sprintf("unknown operation: %q", msg.Operation))
	}

	// The registered kind must match the request kind
	if entry.msgType != msg.MsgType {
		return common.NewErrorResponse(fmt.Sprintf(
			"operation %q is a %s, got %s request", msg.Operation, entry.msgType, msg.MsgType,
		))
	}

	// Let the handler handle the request
	result, err := entry.handler(msg.Variables)

	switch msg.MsgType {
	case common.MsgTMutation:
		return common.NewMutationResponse(msg.Operation, result, err)
	default:
		return common.NewQueryResponse(msg.Operation, result, err)
	}
}

// encode serializes a response message, falling back to a plain error
// message if the serializer rejects the response
func (s *rpcServer) encode(resp *common.Message) []byte {
	val, err := s.serializer.Serialize(*resp)
	if err != nil {
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(
			fmt.Sprintf("failed to serialize response: %s", err),
		))
	}
	return val
}
