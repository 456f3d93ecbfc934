package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"agri-sponsorship/internal/domain"
	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/adapter"
	"agri-sponsorship/internal/domain/ports/repository"
	"agri-sponsorship/internal/infra/metrics"
)

// RateLimiter guards the redemption endpoint against code guessing.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

const (
	redeemAttemptLimit  = 10
	redeemAttemptWindow = time.Minute
)

// RedemptionUseCase converts a code into a running subscription via the
// activation collaborator. Ordering is activate-then-commit: the code flips
// to used only after the collaborator succeeds, so a downstream failure
// never burns a token.
type RedemptionUseCase struct {
	codes     repository.CodeRepository
	purchases repository.PurchaseRepository
	activator adapter.SubscriptionActivator
	txm       repository.TransactionManager
	limiter   RateLimiter
	log       *zerolog.Logger
}

func NewRedemptionUseCase(
	codes repository.CodeRepository,
	purchases repository.PurchaseRepository,
	activator adapter.SubscriptionActivator,
	txm repository.TransactionManager,
	limiter RateLimiter,
	logger *zerolog.Logger,
) *RedemptionUseCase {
	l := logger.With().Str("component", "RedemptionUseCase").Logger()
	return &RedemptionUseCase{codes: codes, purchases: purchases, activator: activator, txm: txm, limiter: limiter, log: &l}
}

// RedeemCode validates the code, activates the entitlement and consumes the
// token. Two concurrent redemptions of one code yield exactly one winner:
// the loser blocks on the row lock, re-reads a used code and fails with
// ErrCodeAlreadyUsed.
func (uc *RedemptionUseCase) RedeemCode(ctx context.Context, codeStr, userID string) (*model.UserSubscription, error) {
	if codeStr == "" || userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if uc.limiter != nil {
		ok, err := uc.limiter.Allow(ctx, "redeem:"+userID, redeemAttemptLimit, redeemAttemptWindow)
		if err != nil {
			uc.log.Warn().Err(err).Msg("rate limiter unavailable, allowing attempt")
		} else if !ok {
			return nil, domain.ErrRateLimited
		}
	}

	var sub *model.UserSubscription
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		code, err := uc.codes.FindByCodeForUpdate(ctx, tx, codeStr)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrCodeNotFound
			}
			return err
		}
		now := time.Now()
		switch {
		case code.IsUsed:
			return domain.ErrCodeAlreadyUsed
		case !code.IsActive:
			return domain.ErrCodeDeactivated
		case code.IsExpired(now):
			return domain.ErrCodeExpired
		}

		// Activation first. The row lock is held across the call, so a
		// concurrent redeemer of the same code waits here rather than
		// racing the commit.
		created, err := uc.activator.Activate(ctx, userID, code)
		if err != nil {
			uc.log.Error().Err(err).Str("code", codeStr).Msg("activation collaborator failed")
			return domain.ErrActivationFailed
		}

		if err := code.MarkUsed(userID, created.ID, now); err != nil {
			return err
		}
		// Guarded write: even if the row lock were lost, the store refuses
		// a second consume of the same code.
		if err := uc.codes.Consume(ctx, tx, code); err != nil {
			return err
		}

		// Keep the parent purchase's monotonic usage counter in step.
		p, err := uc.purchases.FindByIDForUpdate(ctx, tx, code.PurchaseID)
		if err != nil {
			return err
		}
		used, err := uc.codes.CountUsedByPurchase(ctx, tx, code.PurchaseID)
		if err != nil {
			return err
		}
		if used > p.CodesUsed {
			if err := p.RecordUsage(used, now); err != nil {
				return err
			}
			if err := uc.purchases.Save(ctx, tx, p); err != nil {
				return err
			}
		}

		sub = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncCodesRedeemed()
	uc.log.Info().Str("code", codeStr).Str("user_id", userID).Str("subscription_id", sub.ID).Msg("code redeemed")
	return sub, nil
}

// ValidateCode reports whether a code could currently be redeemed, without
// consuming anything. Used by the redemption landing page.
func (uc *RedemptionUseCase) ValidateCode(ctx context.Context, codeStr string) error {
	code, err := uc.codes.FindByCode(ctx, repository.NoTX, codeStr)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrCodeNotFound
		}
		return err
	}
	switch {
	case code.IsUsed:
		return domain.ErrCodeAlreadyUsed
	case !code.IsActive:
		return domain.ErrCodeDeactivated
	case code.IsExpired(time.Now()):
		return domain.ErrCodeExpired
	}
	return nil
}
