// Package query implements the client-side coordination layer for remote
// query and mutation execution.
//
// The package deduplicates concurrent identical operations into a single
// remote round trip, fans results out to any number of independent
// observers, and manages the shared per-operation state with reference
// counting so that state exists exactly as long as someone is using it.
//
// The main types are:
//
//   - ICoordinator: the public entry point. Execute runs an operation once
//     (joining an already-running identical execution if there is one),
//     Subscribe returns a live Subscription, and Collect pushes results to a
//     sink for the lifetime of the call.
//
//   - IExecutor: the transport collaborator. The coordinator hands it an
//     operation name and the encoded variables payload and gets back the raw
//     result bytes. See the rpc/client package for the wire implementation.
//
//   - ICodec / IShape: the encoding collaborators. The codec produces the
//     canonical variables payload and its fingerprint (which, together with
//     the operation name, identifies an operation); a shape decodes the raw
//     result into the caller's requested type. Shapes are identified by a
//     stable string tag, never by descriptor identity.
//
//   - Subscription: a live handle bound to one operation and one result
//     shape, with the last observed result, a coalesced Reload trigger and
//     a multicast receive channel.
//
// Identical operations are recognized by their Key: the operation name plus
// a SHA-512 fingerprint of the canonical variables payload. Per key, at most
// one remote call is in flight at any time; callers arriving while a call is
// running join it, and callers arriving after it completed trigger a fresh
// one, so nobody ever reads a stale result.
package query
