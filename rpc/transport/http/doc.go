// Package http implements HTTP-based transport for the liveQ RPC system.
// Serialized messages travel as POST bodies; the response body carries the
// serialized response message.
//
// Compared to the stream transports (tcp, unix) this trades latency for
// compatibility: it works through proxies and load balancers and needs no
// custom framing, at the cost of per-request HTTP overhead.
package http
