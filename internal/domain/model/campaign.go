package model

import (
	"time"

	"framely/internal/domain"

	"github.com/google/uuid"
)

type CampaignStatus string

const (
	CampaignStatusActive   CampaignStatus = "active"
	CampaignStatusInactive CampaignStatus = "inactive"
)

// Campaign is a shareable photo-frame promotion owned by a creator. Status
// mirrors IsActive for query convenience; the two are always written together.
type Campaign struct {
	ID             string
	OwnerUserID    string
	Title          string
	IsActive       bool
	Status         CampaignStatus
	IsFreeCampaign bool
	PlanType       PlanType
	AmountPaid     int64
	PaymentRef     *string // order id of the activating payment
	ExpiresAt      *time.Time
	LastPaymentAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewCampaign constructs an inactive campaign. Activation is a separate step.
func NewCampaign(id, ownerUserID, title string) (*Campaign, error) {
	if ownerUserID == "" || title == "" {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	return &Campaign{
		ID:          id,
		OwnerUserID: ownerUserID,
		Title:       title,
		IsActive:    false,
		Status:      CampaignStatusInactive,
		PlanType:    PlanFree, // matches the schema default until a plan is bought
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (c *Campaign) IsZero() bool { return c == nil || c.ID == "" }

// Visible reports whether the campaign should be shown at the given instant.
// Expiry is derived at read time and never persisted as a status.
func (c *Campaign) Visible(now time.Time) bool {
	if c == nil || !c.IsActive {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}

// Expired reports whether the expiry instant has passed. An inactive campaign
// with a past expiry is not a sweep candidate.
func (c *Campaign) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}
