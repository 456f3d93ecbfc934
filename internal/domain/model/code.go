package model

import (
	"time"

	"agri-sponsorship/internal/domain"
)

// SponsorshipCode is a single-use entitlement token. A code moves
// Available -> Reserved -> Used, with side exits to Deactivated while it is
// still unused. Expiry is derived from ExpiryDate at read time and never
// stored as a state of its own.
type SponsorshipCode struct {
	ID         string
	Code       string // unique, e.g. AGRI-2026-4812KQ3F
	SponsorID  string
	PurchaseID string
	TierID     string

	IsUsed                bool
	UsedByUserID          *string
	UsedDate              *time.Time
	CreatedSubscriptionID *string

	IsActive           bool
	DeactivationReason *string

	// Reservation: at most one of the two invitation references may be set.
	ReservedForDealerInvitationID *string
	ReservedForFarmerInvitationID *string
	ReservedAt                    *time.Time

	// Distribution bookkeeping, written by the delivery flow.
	RecipientPhone      *string
	RecipientName       *string
	DistributionChannel *string
	LinkSentDate        *time.Time
	LinkDelivered       bool

	ExpiryDate time.Time
	CreatedAt  time.Time
}

// NewSponsorshipCode creates a fresh Available code valid for validityDays.
func NewSponsorshipCode(id, code, sponsorID, purchaseID, tierID string, validityDays int) (*SponsorshipCode, error) {
	if id == "" || code == "" || sponsorID == "" || purchaseID == "" || tierID == "" || validityDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &SponsorshipCode{
		ID:         id,
		Code:       code,
		SponsorID:  sponsorID,
		PurchaseID: purchaseID,
		TierID:     tierID,
		IsActive:   true,
		CreatedAt:  now,
		ExpiryDate: now.Add(time.Duration(validityDays) * 24 * time.Hour),
	}, nil
}

func (c *SponsorshipCode) IsExpired(now time.Time) bool { return !c.ExpiryDate.After(now) }

func (c *SponsorshipCode) IsReserved() bool {
	return c.ReservedForDealerInvitationID != nil || c.ReservedForFarmerInvitationID != nil
}

// IsDistributed reports whether the code has already been handed to a
// recipient via the distribution flow.
func (c *SponsorshipCode) IsDistributed() bool { return c.RecipientPhone != nil }

// Allocatable reports whether the code can be claimed by the allocation
// engine right now: active, unused, unreserved, undistributed and not past
// expiry.
func (c *SponsorshipCode) Allocatable(now time.Time) bool {
	return c.IsActive && !c.IsUsed && !c.IsReserved() && !c.IsDistributed() && !c.IsExpired(now)
}

// MarkDistributed stamps the recipient a code was handed to.
func (c *SponsorshipCode) MarkDistributed(phone, name, channel string, now time.Time) error {
	if err := c.reservable(now); err != nil {
		return err
	}
	if c.IsDistributed() {
		return domain.ErrReservationInvalid
	}
	c.RecipientPhone = &phone
	c.RecipientName = &name
	c.DistributionChannel = &channel
	c.LinkSentDate = &now
	return nil
}

// ReleaseDistribution undoes a recipient stamp after a failed delivery so
// the code returns to the pool instead of being wasted.
func (c *SponsorshipCode) ReleaseDistribution() {
	c.RecipientPhone = nil
	c.RecipientName = nil
	c.DistributionChannel = nil
	c.LinkSentDate = nil
	c.LinkDelivered = false
}

// ReserveForDealer stamps the dealer invitation reservation. Fails if the
// code is unusable or already holds any reservation.
func (c *SponsorshipCode) ReserveForDealer(invitationID string, now time.Time) error {
	if err := c.reservable(now); err != nil {
		return err
	}
	c.ReservedForDealerInvitationID = &invitationID
	c.ReservedAt = &now
	return nil
}

// ReserveForFarmer stamps the farmer invitation reservation.
func (c *SponsorshipCode) ReserveForFarmer(invitationID string, now time.Time) error {
	if err := c.reservable(now); err != nil {
		return err
	}
	c.ReservedForFarmerInvitationID = &invitationID
	c.ReservedAt = &now
	return nil
}

func (c *SponsorshipCode) reservable(now time.Time) error {
	if !c.IsActive {
		return domain.ErrCodeDeactivated
	}
	if c.IsUsed {
		return domain.ErrCodeAlreadyUsed
	}
	if c.IsExpired(now) {
		return domain.ErrCodeExpired
	}
	if c.IsReserved() {
		return domain.ErrReservationInvalid
	}
	return nil
}

// ReleaseReservation clears both reservation fields. Safe on an unreserved code.
func (c *SponsorshipCode) ReleaseReservation() {
	c.ReservedForDealerInvitationID = nil
	c.ReservedForFarmerInvitationID = nil
	c.ReservedAt = nil
}

// MarkUsed consumes the code. A code transitions Used at most once.
func (c *SponsorshipCode) MarkUsed(userID, subscriptionID string, now time.Time) error {
	if c.IsUsed {
		return domain.ErrCodeAlreadyUsed
	}
	if !c.IsActive {
		return domain.ErrCodeDeactivated
	}
	if c.IsExpired(now) {
		return domain.ErrCodeExpired
	}
	c.IsUsed = true
	c.UsedByUserID = &userID
	c.UsedDate = &now
	c.CreatedSubscriptionID = &subscriptionID
	c.ReleaseReservation()
	return nil
}

// Deactivate takes the code out of circulation. Used codes are immutable
// once consumed; deactivation is idempotent-hostile on purpose so admin
// tooling surfaces double submits.
func (c *SponsorshipCode) Deactivate(reason string) error {
	if c.IsUsed {
		return domain.ErrCodeAlreadyUsed
	}
	if !c.IsActive {
		return domain.ErrCodeDeactivated
	}
	c.IsActive = false
	if reason != "" {
		c.DeactivationReason = &reason
	}
	return nil
}
