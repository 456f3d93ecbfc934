package model

import (
	"fmt"
	"time"

	"agri-sponsorship/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusActive    PurchaseStatus = "active"
	PurchaseStatusCancelled PurchaseStatus = "cancelled"
)

// SponsorshipPurchase is a sponsor's bulk order of codes at one tier.
// Invariants: Active implies payment Completed; CodesUsed never exceeds
// CodesGenerated and never decreases; refund is terminal and only possible
// while CodesUsed is zero.
type SponsorshipPurchase struct {
	ID          string
	SponsorID   string
	TierID      string
	Quantity    int
	UnitPrice   int64
	TotalAmount int64
	Currency    string

	PaymentStatus    PaymentStatus
	PaymentMethod    string
	PaymentReference string
	Status           PurchaseStatus

	ApprovedByUserID *string
	ApprovalDate     *time.Time

	CodesGenerated int
	CodesUsed      int
	CodePrefix     string
	ValidityDays   int

	CompanyName string
	Notes       string

	CreatedAt time.Time
	UpdatedAt *time.Time
}

// NewSponsorshipPurchase constructs a pending purchase after validating the
// quantity against the tier's purchase window.
func NewSponsorshipPurchase(id, sponsorID string, tier *SubscriptionTier, quantity int, paymentMethod, paymentReference, companyName, codePrefix string, validityDays int) (*SponsorshipPurchase, error) {
	if id == "" || sponsorID == "" || tier.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	if quantity < tier.MinPurchaseQuantity || quantity > tier.MaxPurchaseQuantity {
		return nil, fmt.Errorf("quantity %d outside tier %s window [%d,%d]: %w",
			quantity, tier.TierName, tier.MinPurchaseQuantity, tier.MaxPurchaseQuantity, domain.ErrInvalidArgument)
	}
	if codePrefix == "" {
		codePrefix = "AGRI"
	}
	if validityDays <= 0 {
		validityDays = 30
	}
	return &SponsorshipPurchase{
		ID:               id,
		SponsorID:        sponsorID,
		TierID:           tier.ID,
		Quantity:         quantity,
		UnitPrice:        tier.MonthlyPrice,
		TotalAmount:      tier.MonthlyPrice * int64(quantity),
		Currency:         tier.Currency,
		PaymentStatus:    PaymentStatusPending,
		PaymentMethod:    paymentMethod,
		PaymentReference: paymentReference,
		Status:           PurchaseStatusPending,
		CodePrefix:       codePrefix,
		ValidityDays:     validityDays,
		CompanyName:      companyName,
		CreatedAt:        time.Now(),
	}, nil
}

// Approve moves the purchase to Active/Completed. Re-approving an already
// approved purchase fails and leaves ApprovalDate untouched.
func (p *SponsorshipPurchase) Approve(adminUserID string, now time.Time) error {
	if p.PaymentStatus == PaymentStatusRefunded {
		return domain.ErrAlreadyRefunded
	}
	if p.PaymentStatus == PaymentStatusCompleted && p.ApprovedByUserID != nil {
		return domain.ErrAlreadyApproved
	}
	p.PaymentStatus = PaymentStatusCompleted
	p.Status = PurchaseStatusActive
	p.ApprovedByUserID = &adminUserID
	p.ApprovalDate = &now
	p.UpdatedAt = &now
	return nil
}

// Refund marks the purchase refunded/cancelled. The caller is responsible
// for cascading deactivation into the purchase's unused codes.
func (p *SponsorshipPurchase) Refund(reason string, now time.Time) error {
	if p.PaymentStatus == PaymentStatusRefunded {
		return domain.ErrAlreadyRefunded
	}
	if p.CodesUsed > 0 {
		return &domain.RefundBlockedError{CodesUsed: p.CodesUsed}
	}
	p.PaymentStatus = PaymentStatusRefunded
	p.Status = PurchaseStatusCancelled
	p.UpdatedAt = &now
	if reason != "" {
		if p.Notes == "" {
			p.Notes = "[refunded] " + reason
		} else {
			p.Notes = p.Notes + "\n[refunded] " + reason
		}
	}
	return nil
}

// RecordUsage sets the redeemed-code counter. The counter is monotonic.
func (p *SponsorshipPurchase) RecordUsage(codesUsed int, now time.Time) error {
	if codesUsed < p.CodesUsed || codesUsed > p.CodesGenerated {
		return domain.ErrInvalidArgument
	}
	p.CodesUsed = codesUsed
	p.UpdatedAt = &now
	return nil
}
