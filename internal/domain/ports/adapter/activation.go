package adapter

import (
	"context"

	"agri-sponsorship/internal/domain/model"
)

// SubscriptionActivator turns a validated code into a running subscription.
// The redemption processor calls it BEFORE flipping the code to used: only a
// successful activation commits the code, so a downstream failure never
// burns a token.
type SubscriptionActivator interface {
	Activate(ctx context.Context, userID string, code *model.SponsorshipCode) (*model.UserSubscription, error)
}
