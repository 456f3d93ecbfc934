package model

import (
	"time"

	"agri-sponsorship/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// UserSubscription is the entitlement a redeemed code turns into. Only its
// creation contract is owned here; ongoing lifecycle (renewal, usage limits)
// belongs to the subscription collaborator.
type UserSubscription struct {
	ID                string
	UserID            string
	TierID            string
	SponsorID         *string
	SponsorshipCodeID *string
	StartAt           time.Time
	ExpiresAt         time.Time
	Status            SubscriptionStatus
	PaymentMethod     string // "Sponsorship" for code-activated subscriptions
	PaymentReference  string // the redeemed code string
	CreatedAt         time.Time
}

// NewSponsoredSubscription builds the subscription a redeemed code activates.
// Sponsored subscriptions run 30 days from activation.
func NewSponsoredSubscription(id, userID string, code *SponsorshipCode) (*UserSubscription, error) {
	if id == "" || userID == "" || code == nil {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &UserSubscription{
		ID:                id,
		UserID:            userID,
		TierID:            code.TierID,
		SponsorID:         &code.SponsorID,
		SponsorshipCodeID: &code.ID,
		StartAt:           now,
		ExpiresAt:         now.Add(30 * 24 * time.Hour),
		Status:            SubscriptionStatusActive,
		PaymentMethod:     "Sponsorship",
		PaymentReference:  code.Code,
		CreatedAt:         now,
	}, nil
}
