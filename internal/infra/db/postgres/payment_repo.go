package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"framely/internal/domain"
	"framely/internal/domain/model"
	"framely/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

const paymentColumns = `order_id, campaign_id, payer_user_id, plan_type, amount, currency, status, gateway_order_id, gateway_payment_id, created_at, completed_at, webhook_received_at, raw_webhook_payload`

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

func scanPayment(row pgx.Row) (*model.PaymentRecord, error) {
	p := &model.PaymentRecord{}
	err := row.Scan(&p.OrderID, &p.CampaignID, &p.PayerUserID, &p.PlanType, &p.Amount, &p.Currency,
		&p.Status, &p.GatewayOrderID, &p.GatewayPaymentID, &p.CreatedAt, &p.CompletedAt, &p.WebhookReceivedAt, &p.RawWebhookPayload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	const q = `
INSERT INTO payments (
  order_id, campaign_id, payer_user_id, plan_type, amount, currency, status, gateway_order_id, gateway_payment_id, created_at, completed_at, webhook_received_at, raw_webhook_payload
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13);`

	_, err := execSQL(ctx, r.pool, tx, q, p.OrderID, p.CampaignID, p.PayerUserID, p.PlanType,
		p.Amount, p.Currency, p.Status, p.GatewayOrderID, p.GatewayPaymentID, p.CreatedAt,
		p.CompletedAt, p.WebhookReceivedAt, p.RawWebhookPayload)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateOrder
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.PaymentRecord, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", orderID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// MarkTerminalIfPending finalizes a ledger row exactly once. The status guard
// makes webhook replays rowcount-zero instead of double-writes.
func (r *paymentRepo) MarkTerminalIfPending(ctx context.Context, tx repository.Tx, orderID string, status model.PaymentStatus, gatewayPaymentID *string, completedAt, webhookReceivedAt time.Time, rawPayload []byte) (bool, error) {
	if !status.Terminal() {
		return false, domain.ErrInvalidArgument
	}
	const q = `
UPDATE payments
   SET status=$2, gateway_payment_id=COALESCE($3, gateway_payment_id),
       completed_at=$4, webhook_received_at=$5, raw_webhook_payload=$6
 WHERE order_id=$1 AND status='pending';`

	cmd, err := execSQL(ctx, r.pool, tx, q, orderID, status, gatewayPaymentID, completedAt, webhookReceivedAt, rawPayload)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) FindSuccessByCampaign(ctx context.Context, tx repository.Tx, campaignID string) (*model.PaymentRecord, error) {
	const q = `
SELECT ` + paymentColumns + `
  FROM payments
 WHERE campaign_id=$1 AND status='success'
 ORDER BY completed_at DESC NULLS LAST, created_at DESC
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, campaignID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ListOrphaned(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentRecord, error) {
	if limit <= 0 {
		limit = 400
	}
	const q = `
SELECT ` + paymentColumns + `
  FROM payments p
 WHERE NOT EXISTS (SELECT 1 FROM campaigns c WHERE c.id = p.campaign_id)
 ORDER BY p.created_at ASC
 LIMIT $1;`
	return r.list(ctx, tx, q, limit)
}

func (r *paymentRepo) DeleteBatch(ctx context.Context, tx repository.Tx, orderIDs []string) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}
	b := &pgx.Batch{}
	for _, id := range orderIDs {
		b.Queue(`DELETE FROM payments WHERE order_id=$1;`, id)
	}
	res, err := sendBatch(ctx, r.pool, tx, b)
	if err != nil {
		return 0, err
	}
	defer res.Close()

	var removed int64
	for range orderIDs {
		cmd, err := res.Exec()
		if err != nil {
			return removed, domain.ErrOperationFailed
		}
		removed += cmd.RowsAffected()
	}
	return removed, nil
}

func (r *paymentRepo) ListAll(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.PaymentRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	q := `SELECT ` + paymentColumns + ` FROM payments ORDER BY created_at ASC LIMIT $1 OFFSET $2;`
	return r.list(ctx, tx, q, limit, offset)
}

func (r *paymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.PaymentRecord, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
