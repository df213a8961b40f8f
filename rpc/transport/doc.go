// Package transport defines the network communication abstractions of the
// liveQ RPC system and hosts its pluggable implementations.
//
// The package itself only contains the two transport interfaces:
//
//   - IRPCClientTransport: connect, send a serialized request and receive
//     the serialized response, close.
//
//   - IRPCServerTransport: register a handler and listen for incoming
//     requests.
//
// Implementations live in subpackages: base (shared connection pooling,
// framing and worker pool logic), tcp, unix and http.
package transport
