package activation

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/adapter"
)

var _ adapter.SubscriptionActivator = (*PostgresActivator)(nil)

// PostgresActivator creates the sponsored subscription record directly in the
// platform's subscription table. In deployments where subscriptions live in a
// separate service this adapter is swapped for an HTTP client; the redemption
// flow only sees the port.
type PostgresActivator struct {
	pool *pgxpool.Pool
	log  *zerolog.Logger
}

func NewPostgresActivator(pool *pgxpool.Pool, logger *zerolog.Logger) *PostgresActivator {
	l := logger.With().Str("component", "PostgresActivator").Logger()
	return &PostgresActivator{pool: pool, log: &l}
}

func (a *PostgresActivator) Activate(ctx context.Context, userID string, code *model.SponsorshipCode) (*model.UserSubscription, error) {
	sub, err := model.NewSponsoredSubscription(uuid.NewString(), userID, code)
	if err != nil {
		return nil, err
	}
	const q = `
INSERT INTO user_subscriptions
  (id, user_id, tier_id, sponsor_id, sponsorship_code_id, start_at, expires_at, status, payment_method, payment_reference, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`
	_, err = a.pool.Exec(ctx, q,
		sub.ID, sub.UserID, sub.TierID, sub.SponsorID, sub.SponsorshipCodeID,
		sub.StartAt, sub.ExpiresAt, sub.Status, sub.PaymentMethod, sub.PaymentReference, sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.log.Info().Str("subscription_id", sub.ID).Str("user_id", userID).Msg("sponsored subscription activated")
	return sub, nil
}
