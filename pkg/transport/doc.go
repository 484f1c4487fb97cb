// Package transport provides the coordinator's TCP session layer.
//
// The transport layer handles:
//   - Plain TCP connections (no TLS; see spec Non-goals)
//   - Newline-delimited JSON message framing
//   - Per-socket TCP keep-alive configuration
//   - Connection accept/close lifecycle
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      JSON frame (one object)   │
//	├────────────────────────────────┤
//	│   Newline-delimited framing    │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Framing
//
// Each frame is a single compact JSON object terminated by '\n'. There is
// no length prefix; a frame may not straddle more than one physical read
// from the caller's perspective, since the reader joins reads until the
// next newline. An oversized frame (no newline within MaxFrameSize bytes)
// is rejected rather than buffered without bound.
//
// # Keep-Alive
//
// Liveness below the application's own heartbeat frame is backed by TCP
// keep-alive on the accepted socket: an idle period of ~30s (stdlib
// net.TCPConn) and, on platforms that expose it, a probe interval and
// count via golang.org/x/sys/unix.
package transport
