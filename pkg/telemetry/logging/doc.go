// Package logging builds the process logger on log/slog.
//
// # Overview
//
//   - JSON or text output at a configurable level
//   - Credential redaction through a ReplaceAttr hook
//   - Request id and user id taken from the context on *Context calls
//
// # Usage
//
//	logger, err := logging.SetDefault(logging.FromConfig(cfg.Telemetry.Logging))
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "request settled", "model", "gpt-4o-mini", "cost", "0.0021")
//
// # Privacy
//
// Request and response bodies are never logged anywhere in Tollbooth; only
// ids, model names, statuses, token counts and amounts are. The redactor is
// a second line for credentials that reach a log call by mistake.
package logging
