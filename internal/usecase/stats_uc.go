package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"agri-sponsorship/internal/domain"
	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/repository"
)

// SponsorStatistics is the aggregate a sponsor's dashboard renders.
type SponsorStatistics struct {
	SponsorID           string
	TotalSpent          int64
	TotalCodesPurchased int
	TotalCodesUsed      int
	TotalCodesUnused    int
	UsageRate           float64 // used / purchased, 0 when nothing purchased
	ByTier              []TierBreakdown
}

// TierBreakdown is one tier's slice of the sponsor's purchasing history.
type TierBreakdown struct {
	TierName  model.TierName
	Purchased int
	Used      int
	UsageRate float64
}

// StatsUseCase aggregates a sponsor's purchasing and redemption history.
type StatsUseCase struct {
	purchases repository.PurchaseRepository
	log       *zerolog.Logger
}

func NewStatsUseCase(purchases repository.PurchaseRepository, logger *zerolog.Logger) *StatsUseCase {
	l := logger.With().Str("component", "StatsUseCase").Logger()
	return &StatsUseCase{purchases: purchases, log: &l}
}

// SponsorStatistics computes totals and the per-tier breakdown for one
// sponsor. Reads are snapshot reads; a dashboard refresh mid-redemption may
// be off by one until the next load.
func (uc *StatsUseCase) SponsorStatistics(ctx context.Context, actor model.Actor, sponsorID string) (*SponsorStatistics, error) {
	id := actor.EffectiveSponsorID(sponsorID)
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}

	totals, err := uc.purchases.Totals(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	usage, err := uc.purchases.UsageByTier(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}

	stats := &SponsorStatistics{
		SponsorID:           id,
		TotalSpent:          totals.TotalSpent,
		TotalCodesPurchased: totals.TotalCodesPurchased,
		TotalCodesUsed:      totals.TotalCodesUsed,
		TotalCodesUnused:    totals.TotalCodesPurchased - totals.TotalCodesUsed,
		UsageRate:           rate(totals.TotalCodesUsed, totals.TotalCodesPurchased),
	}
	for _, u := range usage {
		stats.ByTier = append(stats.ByTier, TierBreakdown{
			TierName:  u.TierName,
			Purchased: u.Purchased,
			Used:      u.Used,
			UsageRate: rate(u.Used, u.Purchased),
		})
	}
	return stats, nil
}

func rate(used, purchased int) float64 {
	if purchased == 0 {
		return 0
	}
	return float64(used) / float64(purchased)
}
