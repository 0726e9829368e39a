package repository

import (
	"context"
	"time"

	"framely/internal/domain/model"
)

type CampaignRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Campaign) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Campaign, error)
	Delete(ctx context.Context, tx Tx, id string) error

	// UpdateIfStatus writes the campaign's full activation field set only when
	// the stored status still matches expect. Returns false when the optimistic
	// precondition no longer holds.
	UpdateIfStatus(ctx context.Context, tx Tx, c *model.Campaign, expect model.CampaignStatus) (bool, error)

	// ListExpired returns active campaigns whose expiry has passed, oldest
	// expiry first. The filter excludes already-inactive rows, which is what
	// makes the sweep re-runnable.
	ListExpired(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.Campaign, error)

	// DeactivateBatch flips the given campaigns inactive in one batched
	// round-trip, skipping rows something else already flipped. Returns the
	// number actually deactivated.
	DeactivateBatch(ctx context.Context, tx Tx, ids []string) (int64, error)

	// ListStuckPaid returns inactive campaigns that have a successful payment
	// on the ledger (lost-webhook candidates).
	ListStuckPaid(ctx context.Context, tx Tx, limit int) ([]*model.Campaign, error)

	// ListStuckFree returns inactive free-plan campaigns whose owner has not
	// consumed the free grant (the grant never landed).
	ListStuckFree(ctx context.Context, tx Tx, limit int) ([]*model.Campaign, error)

	ListAll(ctx context.Context, tx Tx, limit, offset int) ([]*model.Campaign, error)
}
