package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"agri-sponsorship/internal/domain"
	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/adapter"
	"agri-sponsorship/internal/domain/ports/repository"
	"agri-sponsorship/internal/infra/metrics"
)

// PurchaseUseCase drives the purchase lifecycle: create (optionally
// pre-approved), approve, refund with cascade, and bulk code generation.
type PurchaseUseCase struct {
	purchases repository.PurchaseRepository
	codes     repository.CodeRepository
	tiers     repository.TierRepository
	txm       repository.TransactionManager
	audit     adapter.AuditSink
	log       *zerolog.Logger
}

func NewPurchaseUseCase(
	purchases repository.PurchaseRepository,
	codes repository.CodeRepository,
	tiers repository.TierRepository,
	txm repository.TransactionManager,
	audit adapter.AuditSink,
	logger *zerolog.Logger,
) *PurchaseUseCase {
	l := logger.With().Str("component", "PurchaseUseCase").Logger()
	return &PurchaseUseCase{purchases: purchases, codes: codes, tiers: tiers, txm: txm, audit: audit, log: &l}
}

// CreatePurchaseRequest carries everything needed to open a bulk order.
type CreatePurchaseRequest struct {
	SponsorID        string
	TierName         string
	Quantity         int
	PaymentMethod    string
	PaymentReference string
	CompanyName      string
	CodePrefix       string
	ValidityDays     int
	// AutoApprove marks the order paid and active at creation time, with
	// the creator as approver. Used for manual/offline-payment onboarding.
	AutoApprove bool
}

// CreatePurchase validates tier and quantity and persists a new order.
func (uc *PurchaseUseCase) CreatePurchase(ctx context.Context, actor model.Actor, req CreatePurchaseRequest) (*model.SponsorshipPurchase, error) {
	tierName, err := model.ParseTierName(req.TierName)
	if err != nil {
		return nil, err
	}
	tier, err := uc.tiers.FindByName(ctx, repository.NoTX, tierName)
	if err != nil {
		return nil, err
	}

	sponsorID := actor.EffectiveSponsorID(req.SponsorID)
	p, err := model.NewSponsorshipPurchase(
		uuid.NewString(), sponsorID, tier, req.Quantity,
		req.PaymentMethod, req.PaymentReference, req.CompanyName,
		req.CodePrefix, req.ValidityDays,
	)
	if err != nil {
		return nil, err
	}
	if req.AutoApprove {
		if err := p.Approve(actor.UserID, time.Now()); err != nil {
			return nil, err
		}
	}
	if err := uc.purchases.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}

	metrics.IncPurchasesCreated(string(tier.TierName), req.AutoApprove)
	emitAudit(ctx, uc.audit, uc.log, newAuditRecord("CreatePurchase", actor, "SponsorshipPurchase", p.ID, "",
		nil,
		map[string]any{"status": p.Status, "paymentStatus": p.PaymentStatus, "quantity": p.Quantity, "tier": tier.TierName},
	))
	uc.log.Info().Str("purchase_id", p.ID).Str("sponsor_id", sponsorID).
		Int("quantity", req.Quantity).Bool("auto_approve", req.AutoApprove).Msg("purchase created")
	return p, nil
}

// ApprovePurchase completes payment and activates the order. Idempotence is
// rejected explicitly: re-approving an approved purchase returns
// ErrAlreadyApproved and leaves the original approval untouched.
func (uc *PurchaseUseCase) ApprovePurchase(ctx context.Context, actor model.Actor, purchaseID, notes string) error {
	return uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := uc.purchases.FindByIDForUpdate(ctx, tx, purchaseID)
		if err != nil {
			return err
		}
		before := map[string]any{"status": p.Status, "paymentStatus": p.PaymentStatus, "approvedBy": p.ApprovedByUserID}

		if err := p.Approve(actor.UserID, time.Now()); err != nil {
			return err
		}
		if notes != "" {
			if p.Notes == "" {
				p.Notes = notes
			} else {
				p.Notes = p.Notes + "\n[approval] " + notes
			}
		}
		if err := uc.purchases.Save(ctx, tx, p); err != nil {
			return err
		}

		metrics.IncPurchasesApproved()
		emitAudit(ctx, uc.audit, uc.log, newAuditRecord("ApprovePurchase", actor, "SponsorshipPurchase", p.ID, notes,
			before,
			map[string]any{"status": p.Status, "paymentStatus": p.PaymentStatus, "approvedBy": actor.UserID},
		))
		uc.log.Info().Str("purchase_id", p.ID).Str("admin_id", actor.UserID).Msg("purchase approved")
		return nil
	})
}

// RefundPurchase refunds an order and cascades deactivation into its unused
// codes. Blocked while any code under the purchase has been redeemed.
// Returns the number of deactivated codes.
func (uc *PurchaseUseCase) RefundPurchase(ctx context.Context, actor model.Actor, purchaseID, reason string) (int, error) {
	var deactivated int
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := uc.purchases.FindByIDForUpdate(ctx, tx, purchaseID)
		if err != nil {
			return err
		}
		// Re-count inside the transaction: the cached counter may trail a
		// redemption that committed after this purchase was last saved.
		used, err := uc.codes.CountUsedByPurchase(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if used > p.CodesUsed {
			if err := p.RecordUsage(used, time.Now()); err != nil {
				return err
			}
		}
		before := map[string]any{"status": p.Status, "paymentStatus": p.PaymentStatus, "codesUsed": p.CodesUsed}

		if err := p.Refund(reason, time.Now()); err != nil {
			return err
		}
		deactivated, err = uc.codes.DeactivateUnusedByPurchase(ctx, tx, p.ID, "purchase refunded")
		if err != nil {
			return err
		}
		if err := uc.purchases.Save(ctx, tx, p); err != nil {
			return err
		}

		metrics.IncPurchasesRefunded()
		metrics.AddCodesDeactivated(deactivated)
		emitAudit(ctx, uc.audit, uc.log, newAuditRecord("RefundPurchase", actor, "SponsorshipPurchase", p.ID, reason,
			before,
			map[string]any{"status": p.Status, "paymentStatus": p.PaymentStatus, "deactivatedCodes": deactivated},
		))
		uc.log.Info().Str("purchase_id", p.ID).Int("deactivated", deactivated).Msg("purchase refunded")
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deactivated, nil
}

// GenerateCodes creates count fresh Available codes under an approved
// purchase. count <= 0 generates the purchase's remaining quota. Each code
// string is retried until unique against both the store and the in-flight
// batch, with a bounded retry budget.
func (uc *PurchaseUseCase) GenerateCodes(ctx context.Context, actor model.Actor, purchaseID string, count int) ([]*model.SponsorshipCode, error) {
	var out []*model.SponsorshipCode
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := uc.purchases.FindByIDForUpdate(ctx, tx, purchaseID)
		if err != nil {
			return err
		}
		if p.PaymentStatus != model.PaymentStatusCompleted || p.Status != model.PurchaseStatusActive {
			return domain.ErrOperationFailed
		}
		remaining := p.Quantity - p.CodesGenerated
		if count <= 0 {
			count = remaining
		}
		if count <= 0 || count > remaining {
			return domain.ErrInvalidArgument
		}

		batch := make([]*model.SponsorshipCode, 0, count)
		seen := make(map[string]struct{}, count)
		now := time.Now()
		for i := 0; i < count; i++ {
			var codeStr string
			ok := false
			for attempt := 0; attempt < maxCodeGenRetries; attempt++ {
				s, err := newCodeString(p.CodePrefix, now)
				if err != nil {
					return err
				}
				if _, dup := seen[s]; dup {
					continue
				}
				exists, err := uc.codes.CodeExists(ctx, tx, s)
				if err != nil {
					return err
				}
				if !exists {
					codeStr, ok = s, true
					break
				}
			}
			if !ok {
				return domain.ErrCodeGenExhausted
			}
			seen[codeStr] = struct{}{}

			c, err := model.NewSponsorshipCode(uuid.NewString(), codeStr, p.SponsorID, p.ID, p.TierID, p.ValidityDays)
			if err != nil {
				return err
			}
			batch = append(batch, c)
		}

		if err := uc.codes.SaveAll(ctx, tx, batch); err != nil {
			return err
		}
		p.CodesGenerated += count
		now2 := time.Now()
		p.UpdatedAt = &now2
		if err := uc.purchases.Save(ctx, tx, p); err != nil {
			return err
		}

		metrics.AddCodesGenerated(count)
		emitAudit(ctx, uc.audit, uc.log, newAuditRecord("GenerateCodes", actor, "SponsorshipPurchase", p.ID, "",
			map[string]any{"codesGenerated": p.CodesGenerated - count},
			map[string]any{"codesGenerated": p.CodesGenerated},
		))
		out = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("purchase_id", purchaseID).Int("count", len(out)).Msg("codes generated")
	return out, nil
}

// ListPurchases returns a sponsor's order history.
func (uc *PurchaseUseCase) ListPurchases(ctx context.Context, actor model.Actor, sponsorID string) ([]*model.SponsorshipPurchase, error) {
	return uc.purchases.ListBySponsor(ctx, repository.NoTX, actor.EffectiveSponsorID(sponsorID))
}
