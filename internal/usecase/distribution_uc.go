package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"agri-sponsorship/internal/domain"
	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/adapter"
	"agri-sponsorship/internal/infra/metrics"
)

// Recipient is one target of a bulk distribution.
type Recipient struct {
	Phone      string
	Name       string
	TierFilter string // optional tier name; empty = soonest-expiring of any tier
}

// ItemResult reports one recipient's outcome inside a bulk report.
type ItemResult struct {
	Phone  string
	Code   string // set on success
	Reason string // set on failure
}

// BulkReport aggregates a distribution batch. One recipient's failure never
// aborts the batch; insufficiency and delivery errors are reported per item.
type BulkReport struct {
	SuccessCount int
	FailedCount  int
	Items        []ItemResult
}

// DistributionUseCase hands codes to recipients over the messaging
// collaborator. Each recipient is an independent unit of work: a single-code
// all-or-nothing allocation followed by a delivery attempt, released back to
// the pool when delivery fails.
type DistributionUseCase struct {
	alloc    *AllocationUseCase
	delivery adapter.DeliveryAdapter
	log      *zerolog.Logger
	workers  int
}

func NewDistributionUseCase(alloc *AllocationUseCase, delivery adapter.DeliveryAdapter, workers int, logger *zerolog.Logger) *DistributionUseCase {
	if workers <= 0 {
		workers = 4
	}
	l := logger.With().Str("component", "DistributionUseCase").Logger()
	return &DistributionUseCase{alloc: alloc, delivery: delivery, workers: workers, log: &l}
}

// DistributeCodes allocates and sends one code per recipient over the given
// channel. Recipients are processed concurrently on a bounded worker set;
// results keep the input order.
func (uc *DistributionUseCase) DistributeCodes(ctx context.Context, actor model.Actor, sponsorID, channel, customMessage string, recipients []Recipient) (*BulkReport, error) {
	if len(recipients) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	for _, r := range recipients {
		if r.Phone == "" {
			return nil, domain.ErrInvalidArgument
		}
	}
	sponsor := actor.EffectiveSponsorID(sponsorID)

	report := &BulkReport{Items: make([]ItemResult, len(recipients))}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, uc.workers)

	for i, r := range recipients {
		wg.Add(1)
		go func(idx int, rcpt Recipient) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			item := uc.distributeOne(ctx, sponsor, channel, customMessage, rcpt)
			mu.Lock()
			report.Items[idx] = item
			if item.Reason == "" {
				report.SuccessCount++
			} else {
				report.FailedCount++
			}
			mu.Unlock()
		}(i, r)
	}
	wg.Wait()

	metrics.ObserveDistribution(report.SuccessCount, report.FailedCount)
	uc.log.Info().Str("sponsor_id", sponsor).Int("success", report.SuccessCount).
		Int("failed", report.FailedCount).Msg("bulk distribution finished")
	return report, nil
}

func (uc *DistributionUseCase) distributeOne(ctx context.Context, sponsorID, channel, customMessage string, rcpt Recipient) ItemResult {
	code, err := uc.alloc.AllocateOne(ctx, sponsorID, rcpt.TierFilter, rcpt.Phone, rcpt.Name, channel)
	if err != nil {
		var short *domain.InsufficientCodesError
		if errors.As(err, &short) {
			return ItemResult{Phone: rcpt.Phone, Reason: short.Error()}
		}
		return ItemResult{Phone: rcpt.Phone, Reason: err.Error()}
	}

	err = uc.delivery.SendRedemptionLink(ctx, adapter.SendLinkParams{
		Phone:         rcpt.Phone,
		RecipientName: rcpt.Name,
		Channel:       channel,
		Code:          code.Code,
		CustomMessage: customMessage,
	})
	if err != nil {
		// Delivery failed: put the code back so it is not wasted on a
		// recipient who never received it.
		if relErr := uc.alloc.ReleaseDistribution(ctx, code.ID); relErr != nil {
			uc.log.Error().Err(relErr).Str("code_id", code.ID).Msg("failed to release code after delivery failure")
		}
		return ItemResult{Phone: rcpt.Phone, Reason: domain.ErrDeliveryFailed.Error()}
	}
	if err := uc.alloc.ConfirmDelivery(ctx, code.ID); err != nil {
		uc.log.Error().Err(err).Str("code_id", code.ID).Msg("failed to record delivery confirmation")
	}
	return ItemResult{Phone: rcpt.Phone, Code: code.Code}
}
