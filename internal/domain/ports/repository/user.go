package repository

import (
	"context"

	"framely/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)

	// MarkFreeCampaignUsed flips free_campaign_used only when it is still
	// false. Returns false when the grant was already consumed.
	MarkFreeCampaignUsed(ctx context.Context, tx Tx, userID string) (bool, error)
}
