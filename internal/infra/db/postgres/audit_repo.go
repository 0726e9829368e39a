package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"framely/internal/domain"
	"framely/internal/domain/model"
	"framely/internal/domain/ports/repository"
)

var _ repository.AuditRepository = (*auditRepo)(nil)

const insertAuditSQL = `
INSERT INTO audit_logs (id, event_type, actor_id, description, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`

type auditRepo struct{ pool *pgxpool.Pool }

func NewAuditRepo(pool *pgxpool.Pool) *auditRepo {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Insert(ctx context.Context, tx repository.Tx, e *model.AuditLogEntry) error {
	_, err := execSQL(ctx, r.pool, tx, insertAuditSQL,
		e.ID, e.EventType, e.ActorID, e.Description, e.Metadata, e.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *auditRepo) InsertBatch(ctx context.Context, tx repository.Tx, entries []*model.AuditLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, e := range entries {
		b.Queue(insertAuditSQL, e.ID, e.EventType, e.ActorID, e.Description, e.Metadata, e.CreatedAt)
	}
	res, err := sendBatch(ctx, r.pool, tx, b)
	if err != nil {
		return err
	}
	defer res.Close()

	for range entries {
		if _, err := res.Exec(); err != nil {
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *auditRepo) CountByEventType(ctx context.Context, tx repository.Tx, event model.AuditEventType) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM audit_logs WHERE event_type=$1;`, event)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}
