package repository

import (
	"context"

	"agri-sponsorship/internal/domain/model"
)

// TierRepository is a read-mostly lookup; Save exists for seeding.
type TierRepository interface {
	Save(ctx context.Context, tx Tx, tier *model.SubscriptionTier) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.SubscriptionTier, error)
	FindByName(ctx context.Context, tx Tx, name model.TierName) (*model.SubscriptionTier, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.SubscriptionTier, error)
}
