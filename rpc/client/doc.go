// Package client implements remote executors for the liveQ query system.
// It provides implementations of the query.IExecutor interface that forward
// named operations to an operation server via RPC.
//
// The package focuses on:
//   - Transparent remote execution of named queries and mutations
//   - Integration with the transport and serialization layers
//   - Wrapping of network failures as query.TransportError values
//
// Key Components:
//
//   - NewRemoteExecutor: Factory function that creates an executor sending
//     each operation as a query message. The returned executor is the usual
//     backend for a query.ICoordinator.
//
//   - NewMutationExecutor: Factory function that creates an executor sending
//     each operation as a mutation message, for write paths that must never
//     be deduplicated with concurrent reads.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:5000"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	}
//
//	// Create the executor and a coordinator on top of it
//	executor, _ := client.NewRemoteExecutor(config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	coord := query.NewCoordinator(executor, nil)
//
//	// Execute a named query
//	movies, err := query.Execute[[]Movie](ctx, coord, "listMovies", nil)
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	All executors are thread-safe and can be used concurrently from multiple
//	goroutines without additional synchronization.
package client
