package repository

import (
	"context"
	"time"

	"agri-sponsorship/internal/domain/model"
)

// AnalysisQuery filters the sponsored-analyses listing.
type AnalysisQuery struct {
	SponsorUserID string
	CropType      string
	From, To      *time.Time
	Page          int
	PageSize      int
}

// AnalysisRepository is a read-only snapshot view over the analysis store.
// The disclosure filter never writes back; staleness is acceptable.
type AnalysisRepository interface {
	FindByID(ctx context.Context, id string) (*model.PlantAnalysis, error)
	ListForSponsor(ctx context.Context, q AnalysisQuery) ([]*model.PlantAnalysis, int, error)
}
