// Package coordinator wires the four independent activities (address
// probe, UDP discovery responder, TCP session server, and liveness
// monitor) under one cancellation scope, and dispatches session
// frames into the device registry and the event bus.
//
// Nothing in this package talks to a socket directly; that all lives
// in pkg/discovery, pkg/transport and pkg/registry. Coordinator is
// glue: it owns the lifecycle and the per-type dispatch table.
package coordinator
