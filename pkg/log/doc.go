// Package log provides structured protocol logging for the coordinator.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (discovery, transport, wire,
// service). It is separate from operational logging (slog) - protocol
// capture provides a complete machine-readable event trace for debugging
// and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For diagnostics: write to a binary trace file
//	fileLogger, _ := log.NewFileLogger("/var/log/coordinator/trace.clog")
//	cfg.Logger = fileLogger
//
//	// Both: use MultiLogger
//	cfg.Logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Discovery: the UDP announce/ack handshake
//   - Transport: raw frame bytes (FrameEvent)
//   - Wire: classified messages (MessageEvent)
//   - Service: connection/session state changes (StateChangeEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Trace files use CBOR encoding. Reader provides filtered iteration over
// a trace file for offline analysis.
package log
