// Package audit defines the audit trail sink consumed by the approval
// engine. Storage of audit records belongs to the surrounding system; the
// engine only emits entries, and always on a best-effort basis - an audit
// outage must never block a status transition that has already been
// persisted.
package audit

import (
	"context"
	"log/slog"
)

// Audit actions recorded by the engine.
const (
	ActionCreate       = "create"
	ActionStatusChange = "status_change"
	ActionResolve      = "resolve"
)

// Entry is one audit record.
type Entry struct {
	TableName string         `json:"table_name"`
	RecordID  string         `json:"record_id"`
	Action    string         `json:"action"`
	OldValues map[string]any `json:"old_values,omitempty"`
	NewValues map[string]any `json:"new_values,omitempty"`
	ActorID   string         `json:"actor_id"`
	IPAddress string         `json:"ip_address,omitempty"`
}

// Sink receives audit entries.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// LogSink writes audit entries to the structured log. Useful on its own in
// development and as a fallback when no real sink is wired.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(ctx context.Context, entry Entry) error {
	s.logger.InfoContext(ctx, "audit",
		"table", entry.TableName,
		"record_id", entry.RecordID,
		"action", entry.Action,
		"actor_id", entry.ActorID,
		"old_values", entry.OldValues,
		"new_values", entry.NewValues,
	)

	return nil
}

type bestEffort struct {
	next   Sink
	logger *slog.Logger
}

// BestEffort wraps a sink so failures are logged and swallowed instead of
// propagating into the triggering operation.
func BestEffort(next Sink, logger *slog.Logger) Sink {
	return &bestEffort{next: next, logger: logger}
}

func (b *bestEffort) Record(ctx context.Context, entry Entry) error {
	err := b.next.Record(ctx, entry)
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to record audit entry",
			"table", entry.TableName,
			"record_id", entry.RecordID,
			"action", entry.Action,
			"error", err,
		)
	}

	return nil
}
