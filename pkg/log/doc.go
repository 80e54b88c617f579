// Package log provides a structured trace of download/upload cycles.
//
// This package defines the Logger interface and the Event type recorded for
// every executed cycle. It is separate from operational logging (slog): the
// cycle trace is a complete machine-readable record of what each scope read
// or wrote, how long it took and whether it failed or recovered.
//
// # Basic Usage
//
// Coordinators accept a Logger in their configuration:
//
//	// For development: log to console via slog
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.EventLogger, _ = log.NewFileLogger("/var/log/mash/exchange.mlog")
//
//	// Both: use MultiLogger
//	cfg.EventLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys (.mlog).
// Reader iterates a file, optionally filtered.
package log
