package repository

import (
	"context"

	"agri-sponsorship/internal/domain/model"
)

// TierUsage is one row of a sponsor's per-tier redemption breakdown.
type TierUsage struct {
	TierName  model.TierName
	Purchased int
	Used      int
}

// SponsorTotals aggregates a sponsor's purchasing history.
type SponsorTotals struct {
	TotalSpent          int64
	TotalCodesPurchased int
	TotalCodesUsed      int
}

// PurchaseRepository is the port for sponsorship purchase orders.
type PurchaseRepository interface {
	Save(ctx context.Context, tx Tx, p *model.SponsorshipPurchase) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.SponsorshipPurchase, error)
	// FindByIDForUpdate locks the purchase row for the duration of tx;
	// approve/refund/usage-count updates serialize through it.
	FindByIDForUpdate(ctx context.Context, tx Tx, id string) (*model.SponsorshipPurchase, error)
	ListBySponsor(ctx context.Context, tx Tx, sponsorID string) ([]*model.SponsorshipPurchase, error)

	Totals(ctx context.Context, tx Tx, sponsorID string) (*SponsorTotals, error)
	UsageByTier(ctx context.Context, tx Tx, sponsorID string) ([]TierUsage, error)
}
