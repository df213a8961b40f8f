// Package base provides the shared core of the stream-based transports
// (tcp, unix). It implements connection pooling with round-robin selection,
// request/response correlation via unique request IDs, framing, retry with
// exponential backoff on the client side, and a per-connection worker pool
// with bounded concurrency on the server side.
//
// Transport-specific behavior (dialing, listening, socket options) is
// injected through the IClientConnector and IServerConnector interfaces,
// implemented by the tcp and unix packages.
//
// Wire format: each frame is an 8-byte big-endian request ID, a 4-byte
// big-endian payload length and the payload itself. Responses carry the
// request ID of the request they answer, which allows multiple requests to
// be in flight on one connection at the same time.
package base
