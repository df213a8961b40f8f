// Package common provides core data structures and utilities shared across
// the liveQ RPC system. It defines fundamental types, configuration
// structures, and protocol elements used by other packages.
//
// The package focuses on:
//   - Message protocol definition for client/server communication
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with Dragonboat's logger facade
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication, carrying the
//     operation name, the raw variables payload and the raw result payload.
//     Includes factory methods for creating the various request and response
//     messages.
//
//   - MessageType: Enumeration defining all supported message kinds
//     (query, mutation, ping, success, error).
//
//   - ClientConfig / ServerConfig: Configuration for the two sides of a
//     connection, controlling endpoints, timeouts, retry behavior, socket
//     buffers and worker counts.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's
//     logging system while providing consistent formatting across the
//     application.
package common
