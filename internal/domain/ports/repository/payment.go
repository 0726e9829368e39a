package repository

import (
	"context"
	"time"

	"framely/internal/domain/model"
)

type PaymentRepository interface {
	// Insert creates a pending record; domain.ErrDuplicateOrder when the
	// order id already exists.
	Insert(ctx context.Context, tx Tx, p *model.PaymentRecord) error

	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.PaymentRecord, error)

	// MarkTerminalIfPending atomically finalizes a record only while it is
	// still pending. Returns false when the record was already terminal,
	// which is how webhook replays are detected before any side effect.
	MarkTerminalIfPending(ctx context.Context, tx Tx, orderID string, status model.PaymentStatus,
		gatewayPaymentID *string, completedAt, webhookReceivedAt time.Time, rawPayload []byte) (bool, error)

	// FindSuccessByCampaign returns the most recent successful payment for a
	// campaign, domain.ErrNotFound when there is none.
	FindSuccessByCampaign(ctx context.Context, tx Tx, campaignID string) (*model.PaymentRecord, error)

	// ListOrphaned returns payments whose campaign no longer exists.
	ListOrphaned(ctx context.Context, tx Tx, limit int) ([]*model.PaymentRecord, error)

	// DeleteBatch removes the given orders in one batched round-trip.
	DeleteBatch(ctx context.Context, tx Tx, orderIDs []string) (int64, error)

	ListAll(ctx context.Context, tx Tx, limit, offset int) ([]*model.PaymentRecord, error)
}
