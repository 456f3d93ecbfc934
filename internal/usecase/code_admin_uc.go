package usecase

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"agri-sponsorship/internal/domain"
	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/adapter"
	"agri-sponsorship/internal/domain/ports/repository"
	"agri-sponsorship/internal/infra/metrics"
)

// CodeAdminUseCase covers the admin surface over individual codes:
// inspection, manual deactivation and pool composition reporting.
type CodeAdminUseCase struct {
	codes repository.CodeRepository
	txm   repository.TransactionManager
	audit adapter.AuditSink
	log   *zerolog.Logger
}

func NewCodeAdminUseCase(codes repository.CodeRepository, txm repository.TransactionManager, audit adapter.AuditSink, logger *zerolog.Logger) *CodeAdminUseCase {
	l := logger.With().Str("component", "CodeAdminUseCase").Logger()
	return &CodeAdminUseCase{codes: codes, txm: txm, audit: audit, log: &l}
}

// DeactivateCode takes a single unused code out of circulation. Used codes
// are immutable; deactivating twice fails rather than silently succeeding so
// double submits surface in admin tooling.
func (uc *CodeAdminUseCase) DeactivateCode(ctx context.Context, actor model.Actor, codeID, reason string) error {
	if codeID == "" {
		return domain.ErrInvalidArgument
	}
	var before, after map[string]any
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		c, err := uc.codes.FindByID(ctx, tx, codeID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrCodeNotFound
			}
			return err
		}
		before = map[string]any{"is_active": c.IsActive, "is_used": c.IsUsed}
		if err := c.Deactivate(reason); err != nil {
			return err
		}
		if err := uc.codes.Save(ctx, tx, c); err != nil {
			return err
		}
		after = map[string]any{"is_active": c.IsActive, "reason": reason}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.AddCodesDeactivated(1)
	emitAudit(ctx, uc.audit, uc.log, newAuditRecord("code.deactivate", actor, "sponsorship_code", codeID, reason, before, after))
	uc.log.Info().Str("code_id", codeID).Str("actor", actor.UserID).Msg("code deactivated")
	return nil
}

// GetCode returns one code by its string for admin inspection.
func (uc *CodeAdminUseCase) GetCode(ctx context.Context, codeStr string) (*model.SponsorshipCode, error) {
	c, err := uc.codes.FindByCode(ctx, repository.NoTX, codeStr)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCodeNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListSponsorCodes returns every code belonging to a sponsor.
func (uc *CodeAdminUseCase) ListSponsorCodes(ctx context.Context, actor model.Actor, sponsorID string) ([]*model.SponsorshipCode, error) {
	return uc.codes.ListBySponsor(ctx, repository.NoTX, actor.EffectiveSponsorID(sponsorID))
}

// PoolCounts reports the sponsor's pool composition (available, reserved,
// used, deactivated, expired).
func (uc *CodeAdminUseCase) PoolCounts(ctx context.Context, actor model.Actor, sponsorID string) (map[string]int, error) {
	id := actor.EffectiveSponsorID(sponsorID)
	counts, err := uc.codes.PoolCounts(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	metrics.SetCodePoolSize(id, counts)
	return counts, nil
}
