// Package pkg provides shared utilities for the host-side USB bridge
// transport.
//
// This package contains common functionality used across the transport
// subsystem:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types matching the transport error taxonomy
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with transport-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentScan, "device located", "path", path)
//
// # Errors
//
// Transport failure categories are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrInvalidated) {
//	    // Handle was kicked; drop the transport.
//	}
package pkg
