package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"framely/internal/domain"
	"framely/internal/domain/model"
	"framely/internal/domain/ports/repository"
)

var _ repository.CampaignRepository = (*campaignRepo)(nil)

const campaignColumns = `id, owner_user_id, title, is_active, status, is_free_campaign, plan_type, amount_paid, payment_ref, expires_at, last_payment_at, created_at, updated_at`

type campaignRepo struct{ pool *pgxpool.Pool }

func NewCampaignRepo(pool *pgxpool.Pool) *campaignRepo {
	return &campaignRepo{pool: pool}
}

func scanCampaign(row pgx.Row) (*model.Campaign, error) {
	c := &model.Campaign{}
	err := row.Scan(&c.ID, &c.OwnerUserID, &c.Title, &c.IsActive, &c.Status, &c.IsFreeCampaign,
		&c.PlanType, &c.AmountPaid, &c.PaymentRef, &c.ExpiresAt, &c.LastPaymentAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}

func (r *campaignRepo) Save(ctx context.Context, tx repository.Tx, c *model.Campaign) error {
	const q = `
INSERT INTO campaigns (
  id, owner_user_id, title, is_active, status, is_free_campaign, plan_type, amount_paid, payment_ref, expires_at, last_payment_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
) ON CONFLICT (id) DO UPDATE SET
  owner_user_id=$2, title=$3, is_active=$4, status=$5, is_free_campaign=$6, plan_type=$7, amount_paid=$8, payment_ref=$9, expires_at=$10, last_payment_at=$11, updated_at=$13;`

	_, err := execSQL(ctx, r.pool, tx, q, c.ID, c.OwnerUserID, c.Title, c.IsActive, c.Status,
		c.IsFreeCampaign, c.PlanType, c.AmountPaid, c.PaymentRef, c.ExpiresAt, c.LastPaymentAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *campaignRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanCampaign(row)
}

func (r *campaignRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	cmd, err := execSQL(ctx, r.pool, tx, `DELETE FROM campaigns WHERE id=$1;`, id)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateIfStatus writes the activation field set only while the stored status
// still matches expect; racing writers lose cleanly.
func (r *campaignRepo) UpdateIfStatus(ctx context.Context, tx repository.Tx, c *model.Campaign, expect model.CampaignStatus) (bool, error) {
	const q = `
UPDATE campaigns
   SET is_active=$2, status=$3, is_free_campaign=$4, plan_type=$5, amount_paid=$6,
       payment_ref=$7, expires_at=$8, last_payment_at=$9, updated_at=$10
 WHERE id=$1 AND status=$11;`

	cmd, err := execSQL(ctx, r.pool, tx, q, c.ID, c.IsActive, c.Status, c.IsFreeCampaign,
		c.PlanType, c.AmountPaid, c.PaymentRef, c.ExpiresAt, c.LastPaymentAt, c.UpdatedAt, expect)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *campaignRepo) ListExpired(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Campaign, error) {
	if limit <= 0 {
		limit = 400
	}
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE is_active AND expires_at < $1 ORDER BY expires_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, now, limit)
}

func (r *campaignRepo) DeactivateBatch(ctx context.Context, tx repository.Tx, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	b := &pgx.Batch{}
	for _, id := range ids {
		b.Queue(`UPDATE campaigns SET is_active=FALSE, status='inactive', updated_at=now() WHERE id=$1 AND is_active;`, id)
	}
	res, err := sendBatch(ctx, r.pool, tx, b)
	if err != nil {
		return 0, err
	}
	defer res.Close()

	var flipped int64
	for range ids {
		cmd, err := res.Exec()
		if err != nil {
			return flipped, domain.ErrOperationFailed
		}
		flipped += cmd.RowsAffected()
	}
	return flipped, nil
}

func (r *campaignRepo) ListStuckPaid(ctx context.Context, tx repository.Tx, limit int) ([]*model.Campaign, error) {
	if limit <= 0 {
		limit = 400
	}
	q := `
SELECT ` + campaignColumns + `
  FROM campaigns c
 WHERE NOT c.is_active
   AND EXISTS (SELECT 1 FROM payments p WHERE p.campaign_id = c.id AND p.status = 'success')
 ORDER BY c.created_at ASC
 LIMIT $1;`
	return r.list(ctx, tx, q, limit)
}

func (r *campaignRepo) ListStuckFree(ctx context.Context, tx repository.Tx, limit int) ([]*model.Campaign, error) {
	if limit <= 0 {
		limit = 400
	}
	q := `
SELECT ` + campaignColumns + `
  FROM campaigns c
  JOIN users u ON u.id = c.owner_user_id
 WHERE NOT c.is_active
   AND c.plan_type = 'free'
   AND NOT u.free_campaign_used
   AND NOT u.is_blocked
 ORDER BY c.created_at ASC
 LIMIT $1;`
	return r.list(ctx, tx, q, limit)
}

func (r *campaignRepo) ListAll(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Campaign, error) {
	if limit <= 0 {
		limit = 500
	}
	q := `SELECT ` + campaignColumns + ` FROM campaigns ORDER BY created_at ASC LIMIT $1 OFFSET $2;`
	return r.list(ctx, tx, q, limit, offset)
}

func (r *campaignRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Campaign, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
