package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"agri-sponsorship/internal/domain"
	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

// userRepo reads the two slices of the identity store this engine needs:
// farmer contact details and sponsor display profiles.
type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepo{pool: pool}
}

func (r *userRepo) FindFarmerContact(ctx context.Context, userID string) (*model.FarmerContact, error) {
	const q = `
SELECT id, full_name, COALESCE(phone, ''), COALESCE(email, '')
  FROM users
 WHERE id = $1 AND role = 'farmer';
`
	row, err := pickRow(ctx, r.pool, nil, q, userID)
	if err != nil {
		return nil, err
	}
	var fc model.FarmerContact
	if err := row.Scan(&fc.UserID, &fc.FullName, &fc.Phone, &fc.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &fc, nil
}

func (r *userRepo) FindSponsorProfile(ctx context.Context, sponsorID string) (*model.SponsorProfile, error) {
	const q = `
SELECT sponsor_id, company_name, COALESCE(logo_url, ''), COALESCE(website_url, ''), is_active, is_verified
  FROM sponsor_profiles
 WHERE sponsor_id = $1;
`
	row, err := pickRow(ctx, r.pool, nil, q, sponsorID)
	if err != nil {
		return nil, err
	}
	var sp model.SponsorProfile
	if err := row.Scan(&sp.SponsorID, &sp.CompanyName, &sp.LogoURL, &sp.WebsiteURL, &sp.IsActive, &sp.IsVerified); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &sp, nil
}
