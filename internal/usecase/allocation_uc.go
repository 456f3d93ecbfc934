package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"agri-sponsorship/internal/domain"
	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/repository"
	"agri-sponsorship/internal/infra/metrics"
)

// ReservationKind selects which invitation column a reservation stamps.
type ReservationKind string

const (
	ReserveForDealerInvitation ReservationKind = "dealer"
	ReserveForFarmerInvitation ReservationKind = "farmer"
)

// allocMaxRetries bounds re-selection after a lost claim race before the
// conflict surfaces as transient failure.
const allocMaxRetries = 3

// Locker is a best-effort advisory lock keeping allocation retry storms for
// one sponsor off the database. Correctness never depends on it; the
// transaction's row locks are the actual guarantee.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// AllocationUseCase selects and atomically claims available codes for
// invitations and distribution. All-or-nothing per request: a short pool
// mutates nothing and reports available vs requested.
type AllocationUseCase struct {
	codes  repository.CodeRepository
	tiers  repository.TierRepository
	txm    repository.TransactionManager
	locker Locker
	log    *zerolog.Logger
}

func NewAllocationUseCase(
	codes repository.CodeRepository,
	tiers repository.TierRepository,
	txm repository.TransactionManager,
	locker Locker,
	logger *zerolog.Logger,
) *AllocationUseCase {
	l := logger.With().Str("component", "AllocationUseCase").Logger()
	return &AllocationUseCase{codes: codes, tiers: tiers, txm: txm, locker: locker, log: &l}
}

// ReservationRequest asks for count codes to be reserved for one invitation.
type ReservationRequest struct {
	SponsorID    string
	InvitationID string
	Kind         ReservationKind
	Count        int
	TierFilter   string // optional tier name, e.g. "S"
}

// ReserveForInvitation claims up to req.Count codes for the invitation,
// soonest-to-expire first. Either every requested code is reserved in one
// transaction or none is.
func (uc *AllocationUseCase) ReserveForInvitation(ctx context.Context, actor model.Actor, req ReservationRequest) ([]*model.SponsorshipCode, error) {
	if req.InvitationID == "" || req.Count <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if req.Kind != ReserveForDealerInvitation && req.Kind != ReserveForFarmerInvitation {
		return nil, domain.ErrInvalidArgument
	}
	sponsorID := actor.EffectiveSponsorID(req.SponsorID)
	filter, err := uc.buildFilter(ctx, sponsorID, req.TierFilter, req.Count)
	if err != nil {
		return nil, err
	}

	var reserved []*model.SponsorshipCode
	err = uc.withSponsorLock(ctx, sponsorID, func(ctx context.Context) error {
		var lastErr error
		for attempt := 0; attempt < allocMaxRetries; attempt++ {
			reserved, lastErr = uc.reserveOnce(ctx, filter, req)
			if lastErr == nil || !errors.Is(lastErr, domain.ErrConcurrencyConflict) {
				return lastErr
			}
			uc.log.Warn().Int("attempt", attempt+1).Str("invitation_id", req.InvitationID).Msg("allocation claim conflict, reselecting")
		}
		return lastErr
	})
	if err != nil {
		return nil, err
	}
	metrics.AddCodesReserved(len(reserved))
	uc.log.Info().Str("sponsor_id", sponsorID).Str("invitation_id", req.InvitationID).
		Int("count", len(reserved)).Msg("codes reserved for invitation")
	return reserved, nil
}

// reserveOnce runs one select-and-claim transaction. The repository locks
// candidate rows (FOR UPDATE SKIP LOCKED), so a concurrent claimant simply
// sees fewer candidates instead of blocking or double-claiming.
func (uc *AllocationUseCase) reserveOnce(ctx context.Context, filter repository.AllocationFilter, req ReservationRequest) ([]*model.SponsorshipCode, error) {
	var out []*model.SponsorshipCode
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		candidates, err := uc.codes.SelectAllocatable(ctx, tx, filter)
		if err != nil {
			return err
		}
		if len(candidates) < req.Count {
			// Count without claiming for an accurate shortfall report;
			// returning the error aborts the transaction, so nothing the
			// selection touched is kept.
			available, cntErr := uc.codes.CountAllocatable(ctx, tx, filter)
			if cntErr != nil {
				available = len(candidates)
			}
			return &domain.InsufficientCodesError{Available: available, Requested: req.Count}
		}

		now := time.Now()
		for _, c := range candidates {
			switch req.Kind {
			case ReserveForDealerInvitation:
				err = c.ReserveForDealer(req.InvitationID, now)
			case ReserveForFarmerInvitation:
				err = c.ReserveForFarmer(req.InvitationID, now)
			}
			if err != nil {
				// Row changed between selection and claim.
				return domain.ErrConcurrencyConflict
			}
			if err := uc.codes.Save(ctx, tx, c); err != nil {
				return err
			}
		}
		out = candidates
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReleaseReservation frees every code held for an invitation (cancelled,
// expired or declined) and returns the released count.
func (uc *AllocationUseCase) ReleaseReservation(ctx context.Context, invitationID string) (int, error) {
	if invitationID == "" {
		return 0, domain.ErrInvalidArgument
	}
	var released int
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		released, err = uc.codes.ReleaseByInvitation(ctx, tx, invitationID)
		return err
	})
	if err != nil {
		return 0, err
	}
	if released > 0 {
		metrics.AddCodesReleased(released)
		uc.log.Info().Str("invitation_id", invitationID).Int("released", released).Msg("reservation released")
	}
	return released, nil
}

// AllocateOne claims a single code for direct distribution, stamping the
// recipient. Used by the distribution flow; same locking discipline as
// invitation reservation.
func (uc *AllocationUseCase) AllocateOne(ctx context.Context, sponsorID, tierFilter, phone, name, channel string) (*model.SponsorshipCode, error) {
	filter, err := uc.buildFilter(ctx, sponsorID, tierFilter, 1)
	if err != nil {
		return nil, err
	}
	var out *model.SponsorshipCode
	err = uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		candidates, err := uc.codes.SelectAllocatable(ctx, tx, filter)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return &domain.InsufficientCodesError{Available: 0, Requested: 1}
		}
		c := candidates[0]
		if err := c.MarkDistributed(phone, name, channel, time.Now()); err != nil {
			return domain.ErrConcurrencyConflict
		}
		if err := uc.codes.Save(ctx, tx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConfirmDelivery records the messaging collaborator's success for a
// distributed code.
func (uc *AllocationUseCase) ConfirmDelivery(ctx context.Context, codeID string) error {
	return uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		c, err := uc.codes.FindByID(ctx, tx, codeID)
		if err != nil {
			return err
		}
		c.LinkDelivered = true
		return uc.codes.Save(ctx, tx, c)
	})
}

// ReleaseDistribution returns a stamped code to the pool after a failed
// delivery.
func (uc *AllocationUseCase) ReleaseDistribution(ctx context.Context, codeID string) error {
	return uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		c, err := uc.codes.FindByID(ctx, tx, codeID)
		if err != nil {
			return err
		}
		c.ReleaseDistribution()
		return uc.codes.Save(ctx, tx, c)
	})
}

// ReleaseStale frees reservations older than maxAge. Called by the sweeper
// so abandoned invitations do not starve the pool.
func (uc *AllocationUseCase) ReleaseStale(ctx context.Context, maxAge time.Duration) (int, error) {
	var released int
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		released, err = uc.codes.ReleaseStaleReservations(ctx, tx, time.Now().Add(-maxAge))
		return err
	})
	if err != nil {
		return 0, err
	}
	if released > 0 {
		metrics.AddCodesReleased(released)
	}
	return released, nil
}

func (uc *AllocationUseCase) buildFilter(ctx context.Context, sponsorID, tierFilter string, limit int) (repository.AllocationFilter, error) {
	filter := repository.AllocationFilter{SponsorID: sponsorID, Limit: limit}
	if tierFilter != "" {
		name, err := model.ParseTierName(tierFilter)
		if err != nil {
			return filter, err
		}
		tier, err := uc.tiers.FindByName(ctx, repository.NoTX, name)
		if err != nil {
			return filter, err
		}
		filter.TierID = tier.ID
	}
	return filter, nil
}

func (uc *AllocationUseCase) withSponsorLock(ctx context.Context, sponsorID string, fn func(ctx context.Context) error) error {
	if uc.locker == nil {
		return fn(ctx)
	}
	key := "alloc:" + sponsorID
	token, err := uc.locker.TryLock(ctx, key, 10*time.Second)
	if err != nil {
		// Advisory only: proceed without it, the transaction still protects us.
		uc.log.Warn().Err(err).Str("sponsor_id", sponsorID).Msg("allocation lock unavailable, relying on row locks")
		return fn(ctx)
	}
	defer func() { _ = uc.locker.Unlock(ctx, key, token) }()
	return fn(ctx)
}
