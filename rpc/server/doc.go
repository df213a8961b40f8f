// Package server implements the operation server for the liveQ query system.
// It dispatches incoming RPC requests to registered query and mutation
// handlers by operation name.
//
// The package focuses on:
//   - Server-side handling of named query and mutation requests
//   - Handler registration decoupled from the transport mechanism
//   - Uniform error responses for unknown operations and malformed requests
//
// Key Components:
//
//   - IRPCServer: Interface for the operation server, with handler
//     registration and the blocking Serve method.
//
//   - QueryHandlerFunc / MutationHandlerFunc: Handler signatures taking the
//     raw variables payload and returning the raw result payload.
//
//   - NewRPCServer: Factory function creating a configured server with the
//     specified transport and serializer.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Transport: common.ServerTransportConfig{Endpoint: "0.0.0.0:8080"},
//	  TimeoutSecond: 5,
//	  LogLevel: "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	s.RegisterQuery("listMovies", func(variables []byte) ([]byte, error) {
//	  return json.Marshal(movies)
//	})
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	The Serve method is not thread-safe and should be called only once.
package server
