// Package log captures the connection lifecycle of a station as structured
// events.
//
// It is separate from operational logging (slog): every connection cycle
// gets an ID, and each state change, radio event, terminal outcome and
// fatal error of that cycle is recorded as an Event that can be written to
// a file and replayed later.
//
// # Basic Usage
//
//	// Console, via slog
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// Binary file
//	cfg.EventLogger, _ = log.NewFileLogger("/var/log/tenderoni/station.wlog")
//
//	// Both
//	cfg.EventLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys, using
// the .wlog extension. The tenderoni-log tool views them.
package log
