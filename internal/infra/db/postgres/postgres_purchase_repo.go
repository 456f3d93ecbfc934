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

var _ repository.PurchaseRepository = (*purchaseRepo)(nil)

type purchaseRepo struct {
	pool *pgxpool.Pool
}

func NewPurchaseRepo(pool *pgxpool.Pool) repository.PurchaseRepository {
	return &purchaseRepo{pool: pool}
}

const purchaseColumns = `
id, sponsor_id, tier_id, quantity, unit_price, total_amount, currency,
payment_status, payment_method, payment_reference, status,
approved_by_user_id, approval_date,
codes_generated, codes_used, code_prefix, validity_days,
company_name, notes, created_at, updated_at`

func scanPurchase(row pgx.Row) (*model.SponsorshipPurchase, error) {
	var p model.SponsorshipPurchase
	err := row.Scan(
		&p.ID, &p.SponsorID, &p.TierID, &p.Quantity, &p.UnitPrice, &p.TotalAmount, &p.Currency,
		&p.PaymentStatus, &p.PaymentMethod, &p.PaymentReference, &p.Status,
		&p.ApprovedByUserID, &p.ApprovalDate,
		&p.CodesGenerated, &p.CodesUsed, &p.CodePrefix, &p.ValidityDays,
		&p.CompanyName, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &p, nil
}

func (r *purchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.SponsorshipPurchase) error {
	const q = `
INSERT INTO sponsorship_purchases (` + purchaseColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
ON CONFLICT (id) DO UPDATE SET
  payment_status = EXCLUDED.payment_status,
  payment_reference = EXCLUDED.payment_reference,
  status = EXCLUDED.status,
  approved_by_user_id = EXCLUDED.approved_by_user_id,
  approval_date = EXCLUDED.approval_date,
  codes_generated = EXCLUDED.codes_generated,
  codes_used = EXCLUDED.codes_used,
  notes = EXCLUDED.notes,
  updated_at = EXCLUDED.updated_at;
`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.SponsorID, p.TierID, p.Quantity, p.UnitPrice, p.TotalAmount, p.Currency,
		p.PaymentStatus, p.PaymentMethod, p.PaymentReference, p.Status,
		p.ApprovedByUserID, p.ApprovalDate,
		p.CodesGenerated, p.CodesUsed, p.CodePrefix, p.ValidityDays,
		p.CompanyName, p.Notes, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *purchaseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SponsorshipPurchase, error) {
	const q = `SELECT ` + purchaseColumns + ` FROM sponsorship_purchases WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

func (r *purchaseRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.SponsorshipPurchase, error) {
	const q = `SELECT ` + purchaseColumns + ` FROM sponsorship_purchases WHERE id = $1 FOR UPDATE;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

func (r *purchaseRepo) ListBySponsor(ctx context.Context, tx repository.Tx, sponsorID string) ([]*model.SponsorshipPurchase, error) {
	const q = `SELECT ` + purchaseColumns + ` FROM sponsorship_purchases WHERE sponsor_id = $1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, sponsorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.SponsorshipPurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *purchaseRepo) Totals(ctx context.Context, tx repository.Tx, sponsorID string) (*repository.SponsorTotals, error) {
	const q = `
SELECT COALESCE(SUM(total_amount), 0),
       COALESCE(SUM(quantity), 0),
       COALESCE(SUM(codes_used), 0)
  FROM sponsorship_purchases
 WHERE sponsor_id = $1 AND payment_status = 'completed';
`
	row, err := pickRow(ctx, r.pool, tx, q, sponsorID)
	if err != nil {
		return nil, err
	}
	var t repository.SponsorTotals
	if err := row.Scan(&t.TotalSpent, &t.TotalCodesPurchased, &t.TotalCodesUsed); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return &t, nil
}

func (r *purchaseRepo) UsageByTier(ctx context.Context, tx repository.Tx, sponsorID string) ([]repository.TierUsage, error) {
	const q = `
SELECT t.tier_name,
       COALESCE(SUM(p.quantity), 0),
       COALESCE(SUM(p.codes_used), 0)
  FROM sponsorship_purchases p
  JOIN subscription_tiers t ON t.id = p.tier_id
 WHERE p.sponsor_id = $1 AND p.payment_status = 'completed'
 GROUP BY t.tier_name
 ORDER BY t.tier_name;
`
	rows, err := queryRows(ctx, r.pool, tx, q, sponsorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []repository.TierUsage
	for rows.Next() {
		var u repository.TierUsage
		if err := rows.Scan(&u.TierName, &u.Purchased, &u.Used); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
