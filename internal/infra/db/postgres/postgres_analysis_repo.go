package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"agri-sponsorship/internal/domain"
	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/repository"
)

var _ repository.AnalysisRepository = (*analysisRepo)(nil)

// analysisRepo is a read-only view over the analysis pipeline's table. The
// disclosure filter never writes back.
type analysisRepo struct {
	pool *pgxpool.Pool
}

func NewAnalysisRepo(pool *pgxpool.Pool) repository.AnalysisRepository {
	return &analysisRepo{pool: pool}
}

const analysisColumns = `
id, farmer_user_id, sponsor_user_id, analysis_date, analysis_status, crop_type,
overall_health_score, plant_species, plant_variety, growth_stage, image_url,
vigor_score, health_severity, primary_concern, location,
contact_name, contact_phone, contact_email`

func scanAnalysis(row pgx.Row) (*model.PlantAnalysis, error) {
	var a model.PlantAnalysis
	err := row.Scan(
		&a.ID, &a.FarmerUserID, &a.SponsorUserID, &a.AnalysisDate, &a.AnalysisStatus, &a.CropType,
		&a.OverallHealthScore, &a.PlantSpecies, &a.PlantVariety, &a.GrowthStage, &a.ImageURL,
		&a.VigorScore, &a.HealthSeverity, &a.PrimaryConcern, &a.Location,
		&a.ContactName, &a.ContactPhone, &a.ContactEmail,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &a, nil
}

func (r *analysisRepo) FindByID(ctx context.Context, id string) (*model.PlantAnalysis, error) {
	const q = `SELECT ` + analysisColumns + ` FROM plant_analyses WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, nil, q, id)
	if err != nil {
		return nil, err
	}
	return scanAnalysis(row)
}

func (r *analysisRepo) ListForSponsor(ctx context.Context, query repository.AnalysisQuery) ([]*model.PlantAnalysis, int, error) {
	where := `sponsor_user_id = $1`
	args := []interface{}{query.SponsorUserID}
	if query.CropType != "" {
		args = append(args, query.CropType)
		where += fmt.Sprintf(" AND crop_type = $%d", len(args))
	}
	if query.From != nil {
		args = append(args, *query.From)
		where += fmt.Sprintf(" AND analysis_date >= $%d", len(args))
	}
	if query.To != nil {
		args = append(args, *query.To)
		where += fmt.Sprintf(" AND analysis_date < $%d", len(args))
	}

	row, err := pickRow(ctx, r.pool, nil, `SELECT COUNT(*) FROM plant_analyses WHERE `+where+`;`, args...)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := row.Scan(&total); err != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, pageSize, (page-1)*pageSize)
	q := `SELECT ` + analysisColumns + ` FROM plant_analyses WHERE ` + where +
		fmt.Sprintf(` ORDER BY analysis_date DESC LIMIT $%d OFFSET $%d;`, len(args)-1, len(args))

	rows, err := queryRows(ctx, r.pool, nil, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*model.PlantAnalysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}
