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

var _ repository.TierRepository = (*tierRepo)(nil)

type tierRepo struct {
	pool *pgxpool.Pool
}

func NewTierRepo(pool *pgxpool.Pool) repository.TierRepository {
	return &tierRepo{pool: pool}
}

const tierColumns = `
id, tier_name, display_name, data_access_percentage,
min_purchase_quantity, max_purchase_quantity, monthly_price, currency, created_at`

func scanTier(row pgx.Row) (*model.SubscriptionTier, error) {
	var t model.SubscriptionTier
	err := row.Scan(
		&t.ID, &t.TierName, &t.DisplayName, &t.DataAccessPercentage,
		&t.MinPurchaseQuantity, &t.MaxPurchaseQuantity, &t.MonthlyPrice, &t.Currency, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &t, nil
}

func (r *tierRepo) Save(ctx context.Context, tx repository.Tx, tier *model.SubscriptionTier) error {
	const q = `
INSERT INTO subscription_tiers (` + tierColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
  display_name = EXCLUDED.display_name,
  data_access_percentage = EXCLUDED.data_access_percentage,
  min_purchase_quantity = EXCLUDED.min_purchase_quantity,
  max_purchase_quantity = EXCLUDED.max_purchase_quantity,
  monthly_price = EXCLUDED.monthly_price,
  currency = EXCLUDED.currency;
`
	_, err := execSQL(ctx, r.pool, tx, q,
		tier.ID, tier.TierName, tier.DisplayName, tier.DataAccessPercentage,
		tier.MinPurchaseQuantity, tier.MaxPurchaseQuantity, tier.MonthlyPrice, tier.Currency, tier.CreatedAt,
	)
	return err
}

func (r *tierRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionTier, error) {
	const q = `SELECT ` + tierColumns + ` FROM subscription_tiers WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanTier(row)
}

func (r *tierRepo) FindByName(ctx context.Context, tx repository.Tx, name model.TierName) (*model.SubscriptionTier, error) {
	const q = `SELECT ` + tierColumns + ` FROM subscription_tiers WHERE tier_name = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, string(name))
	if err != nil {
		return nil, err
	}
	return scanTier(row)
}

func (r *tierRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionTier, error) {
	const q = `SELECT ` + tierColumns + ` FROM subscription_tiers ORDER BY data_access_percentage ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.SubscriptionTier
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
