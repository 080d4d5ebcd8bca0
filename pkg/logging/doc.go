// Package logging provides a structured logging system for simbridge built
// on Go's standard slog package.
//
// Log entries carry a subsystem identifier for categorization:
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//	logging.Info("OAuth", "Exchange completed for %s", username)
//	logging.Error("Cloud", err, "Failed to fetch models")
//
// Security-sensitive actions are recorded through Audit, which logs at INFO
// level with an [AUDIT] prefix:
//
//	logging.Audit(logging.AuditEvent{
//	    Action:  "run_simulation",
//	    Outcome: "denied",
//	    User:    identity.Username,
//	})
//
// The logging system is safe for concurrent use from multiple goroutines.
// When serving MCP over stdio, output must go to stderr because stdout
// carries the protocol stream.
package logging
