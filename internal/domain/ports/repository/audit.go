package repository

import (
	"context"

	"framely/internal/domain/model"
)

// AuditRepository is append-only; there is deliberately no update or delete.
type AuditRepository interface {
	Insert(ctx context.Context, tx Tx, e *model.AuditLogEntry) error

	// InsertBatch writes entries in one batched round-trip (sweep chunks).
	InsertBatch(ctx context.Context, tx Tx, entries []*model.AuditLogEntry) error

	CountByEventType(ctx context.Context, tx Tx, eventType model.AuditEventType) (int, error)
}
