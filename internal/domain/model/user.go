package model

import (
	"time"

	"framely/internal/domain"

	"github.com/google/uuid"
)

// User carries only the fields the monetization core touches. Profile data
// lives with the rest of the platform.
type User struct {
	ID               string
	Email            string
	FreeCampaignUsed bool
	IsBlocked        bool
	RegisteredAt     time.Time
}

func NewUser(id, email string) (*User, error) {
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &User{
		ID:           id,
		Email:        email,
		RegisteredAt: time.Now(),
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
