// Package unix implements Unix domain socket transport for the liveQ RPC
// system. It provides the lowest-latency option when client and server run
// on the same host.
//
// The package builds on the base package and only contributes the
// Unix-socket-specific pieces:
//
//   - clientConnector: Unix-socket implementation of base.IClientConnector
//   - serverConnector: Unix-socket implementation of base.IServerConnector
//
// The server connector removes a stale socket file before listening, so a
// crashed process does not block the next start.
package unix
