package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"agri-sponsorship/internal/domain"
	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/adapter"
	"agri-sponsorship/internal/domain/ports/repository"
)

// DisclosureUseCase serves tier-filtered analysis views to sponsors. It only
// reads: the analysis store is a snapshot owned by the analysis pipeline, the
// user store belongs to the identity collaborator.
type DisclosureUseCase struct {
	analyses  repository.AnalysisRepository
	users     repository.UserRepository
	purchases repository.PurchaseRepository
	tiers     repository.TierRepository
	audit     adapter.AuditSink
	log       *zerolog.Logger
}

func NewDisclosureUseCase(
	analyses repository.AnalysisRepository,
	users repository.UserRepository,
	purchases repository.PurchaseRepository,
	tiers repository.TierRepository,
	audit adapter.AuditSink,
	logger *zerolog.Logger,
) *DisclosureUseCase {
	l := logger.With().Str("component", "DisclosureUseCase").Logger()
	return &DisclosureUseCase{analyses: analyses, users: users, purchases: purchases, tiers: tiers, audit: audit, log: &l}
}

// GetAnalysisView returns one analysis projected for the acting sponsor.
func (uc *DisclosureUseCase) GetAnalysisView(ctx context.Context, actor model.Actor, analysisID string) (*model.SummaryView, error) {
	if analysisID == "" {
		return nil, domain.ErrInvalidArgument
	}
	sponsorID := actor.EffectiveSponsorID("")

	a, err := uc.analyses.FindByID(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	pct, profile, err := uc.sponsorAccess(ctx, sponsorID)
	if err != nil {
		return nil, err
	}
	view := ProjectAnalysisForSponsor(a, pct, profile, uc.farmerContact(ctx, a, pct))

	emitAudit(ctx, uc.audit, uc.log, newAuditRecord("analysis.view", actor, "plant_analysis", a.ID, "",
		nil, map[string]any{"access_percentage": pct, "fields": AccessibleFields(pct)}))
	return view, nil
}

// ListSponsoredAnalyses pages through the analyses visible to the sponsor,
// each projected at the sponsor's current access percentage.
func (uc *DisclosureUseCase) ListSponsoredAnalyses(ctx context.Context, actor model.Actor, q repository.AnalysisQuery) ([]*model.SummaryView, int, error) {
	sponsorID := actor.EffectiveSponsorID(q.SponsorUserID)
	q.SponsorUserID = sponsorID
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	pct, profile, err := uc.sponsorAccess(ctx, sponsorID)
	if err != nil {
		return nil, 0, err
	}
	analyses, total, err := uc.analyses.ListForSponsor(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	views := make([]*model.SummaryView, 0, len(analyses))
	for _, a := range analyses {
		views = append(views, ProjectAnalysisForSponsor(a, pct, profile, uc.farmerContact(ctx, a, pct)))
	}
	uc.log.Debug().Str("sponsor_id", sponsorID).Int("pct", pct).Int("count", len(views)).Msg("sponsored analyses listed")
	return views, total, nil
}

// sponsorAccess resolves the sponsor's current data access percentage: the
// highest tier among the sponsor's active purchases. A sponsor with no
// active purchase sees at 0%.
func (uc *DisclosureUseCase) sponsorAccess(ctx context.Context, sponsorID string) (int, model.SponsorDisplayInfo, error) {
	info := model.SponsorDisplayInfo{SponsorID: sponsorID}
	profile, err := uc.users.FindSponsorProfile(ctx, sponsorID)
	if err == nil {
		info.CompanyName = profile.CompanyName
		info.LogoURL = profile.LogoURL
		info.WebsiteURL = profile.WebsiteURL
	} else if !errors.Is(err, domain.ErrNotFound) {
		return 0, info, err
	}

	list, err := uc.purchases.ListBySponsor(ctx, repository.NoTX, sponsorID)
	if err != nil {
		return 0, info, err
	}
	pct := 0
	for _, p := range list {
		if p.Status != model.PurchaseStatusActive {
			continue
		}
		tier, err := uc.tiers.FindByID(ctx, repository.NoTX, p.TierID)
		if err != nil {
			return 0, info, err
		}
		if tier.DataAccessPercentage > pct {
			pct = tier.DataAccessPercentage
		}
	}
	return pct, info, nil
}

// farmerContact fetches the farmer's user record for 100% projections; a
// missing record is not an error, the projection falls back to the contact
// snapshot on the analysis itself.
func (uc *DisclosureUseCase) farmerContact(ctx context.Context, a *model.PlantAnalysis, pct int) *model.FarmerContact {
	if pct < disclosureContact || a.FarmerUserID == nil {
		return nil
	}
	fc, err := uc.users.FindFarmerContact(ctx, *a.FarmerUserID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			uc.log.Warn().Err(err).Str("farmer_user_id", *a.FarmerUserID).Msg("farmer contact lookup failed, using analysis fallback")
		}
		return nil
	}
	return fc
}
