package logging

import (
	"context"
	"log/slog"
)

// AuditEvent describes a security-relevant decision.
type AuditEvent struct {
	Operation string
	Actor     string
	Target    string
	Result    string
	Details   map[string]string
}

// Audit writes event as a warning tagged audit=true so authorization
// failures can be routed apart from ordinary validation noise.
func Audit(ctx context.Context, logger *slog.Logger, event AuditEvent) {
	if logger == nil {
		logger = slog.Default()
	}
	args := []any{
		slog.Bool("audit", true),
		slog.String("operation", event.Operation),
		slog.String("actor", event.Actor),
		slog.String("result", event.Result),
	}
	if event.Target != "" {
		args = append(args, slog.String("target", event.Target))
	}
	if len(event.Details) > 0 {
		details := make([]any, 0, len(event.Details))
		for k, v := range event.Details {
			details = append(details, MaskField(k, v))
		}
		args = append(args, slog.Group("details", details...))
	}
	logger.Log(ctx, slog.LevelWarn, "audit", args...)
}
