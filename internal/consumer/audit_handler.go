package consumer

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditHandler records roster events in roster_event_log. Redelivered events
// are ignored by event_id.
type AuditHandler struct {
	pool *pgxpool.Pool
}

// NewAuditHandler constructs a handler backed by the provided pool.
func NewAuditHandler(pool *pgxpool.Pool) *AuditHandler {
	return &AuditHandler{pool: pool}
}

// Handle implements Handler.
func (h *AuditHandler) Handle(ctx context.Context, msg Message) error {
	event := msg.Event
	_, err := h.pool.Exec(ctx,
		`INSERT INTO roster_event_log (event_id, event_type, activity_name, email, roster_size, occurred_at, topic, partition, record_offset)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (event_id) DO NOTHING`,
		event.EventID,
		event.EventType,
		event.Activity,
		event.Email,
		event.RosterSize,
		event.OccurredAt,
		msg.Topic,
		msg.Partition,
		msg.Offset,
	)
	return err
}
