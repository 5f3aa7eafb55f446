// Package log provides structured logging for the gateway and registry
// services. Loggers carry typed fields, route records through a
// formatter/output pipeline, and bridge to the standard library's slog
// so that records emitted by third-party packages through the stdlib
// logger are captured too.
//
// Example:
//
//	logger, _ := log.ApplyConfig(&log.Config{Level: "info", Format: "text"})
//	logger = logger.With(log.Component("gateway"))
//	logger.Info("node started", log.Str("node_id", nodeID), log.Str("addr", addr))
package log
