// Package rpc provides the remote procedure call framework for the liveQ
// query system. It acts as the communication layer between applications and
// operation servers, enabling named queries and mutations across network
// boundaries.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: Remote executor implementations of query.IExecutor that forward
//     named operations to an operation server transparently.
//
//   - server: The operation server that dispatches incoming requests to
//     registered query and mutation handlers by operation name.
package rpc
