package repository

import (
	"context"

	"agri-sponsorship/internal/domain/model"
)

// UserRepository exposes the two slices of the user collaborator this engine
// reads: farmer contact details for 100% disclosure, and sponsor display
// profiles for every tier.
type UserRepository interface {
	FindFarmerContact(ctx context.Context, userID string) (*model.FarmerContact, error)
	FindSponsorProfile(ctx context.Context, sponsorID string) (*model.SponsorProfile, error)
}
