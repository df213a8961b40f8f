// Package tcp implements TCP socket-based transport for the liveQ RPC
// system, providing client and server implementations of the transport
// interfaces optimized for TCP connections.
//
// The package builds on the base package and only contributes the
// TCP-specific pieces:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// Both connectors apply the configured socket options (no-delay, buffer
// sizes, keep-alive, linger) to established connections.
package tcp
