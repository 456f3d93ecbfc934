package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"agri-sponsorship/internal/domain"
	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/repository"
)

var _ repository.CodeRepository = (*codeRepo)(nil)

type codeRepo struct {
	pool *pgxpool.Pool
}

func NewCodeRepo(pool *pgxpool.Pool) repository.CodeRepository {
	return &codeRepo{pool: pool}
}

const codeColumns = `
id, code, sponsor_id, purchase_id, tier_id,
is_used, used_by_user_id, used_date, created_subscription_id,
is_active, deactivation_reason,
reserved_for_dealer_invitation_id, reserved_for_farmer_invitation_id, reserved_at,
recipient_phone, recipient_name, distribution_channel, link_sent_date, link_delivered,
expiry_date, created_at`

// allocatablePred is the availability predicate shared by selection and
// counting. Expiry is derived here, never from a stored state column.
const allocatablePred = `
is_active = TRUE
AND is_used = FALSE
AND reserved_for_dealer_invitation_id IS NULL
AND reserved_for_farmer_invitation_id IS NULL
AND recipient_phone IS NULL
AND expiry_date > now()`

func scanCode(row pgx.Row) (*model.SponsorshipCode, error) {
	var c model.SponsorshipCode
	err := row.Scan(
		&c.ID, &c.Code, &c.SponsorID, &c.PurchaseID, &c.TierID,
		&c.IsUsed, &c.UsedByUserID, &c.UsedDate, &c.CreatedSubscriptionID,
		&c.IsActive, &c.DeactivationReason,
		&c.ReservedForDealerInvitationID, &c.ReservedForFarmerInvitationID, &c.ReservedAt,
		&c.RecipientPhone, &c.RecipientName, &c.DistributionChannel, &c.LinkSentDate, &c.LinkDelivered,
		&c.ExpiryDate, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &c, nil
}

func (r *codeRepo) Save(ctx context.Context, tx repository.Tx, code *model.SponsorshipCode) error {
	const q = `
INSERT INTO sponsorship_codes (` + codeColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
ON CONFLICT (id) DO UPDATE SET
  is_used = EXCLUDED.is_used,
  used_by_user_id = EXCLUDED.used_by_user_id,
  used_date = EXCLUDED.used_date,
  created_subscription_id = EXCLUDED.created_subscription_id,
  is_active = EXCLUDED.is_active,
  deactivation_reason = EXCLUDED.deactivation_reason,
  reserved_for_dealer_invitation_id = EXCLUDED.reserved_for_dealer_invitation_id,
  reserved_for_farmer_invitation_id = EXCLUDED.reserved_for_farmer_invitation_id,
  reserved_at = EXCLUDED.reserved_at,
  recipient_phone = EXCLUDED.recipient_phone,
  recipient_name = EXCLUDED.recipient_name,
  distribution_channel = EXCLUDED.distribution_channel,
  link_sent_date = EXCLUDED.link_sent_date,
  link_delivered = EXCLUDED.link_delivered;
`
	_, err := execSQL(ctx, r.pool, tx, q,
		code.ID, code.Code, code.SponsorID, code.PurchaseID, code.TierID,
		code.IsUsed, code.UsedByUserID, code.UsedDate, code.CreatedSubscriptionID,
		code.IsActive, code.DeactivationReason,
		code.ReservedForDealerInvitationID, code.ReservedForFarmerInvitationID, code.ReservedAt,
		code.RecipientPhone, code.RecipientName, code.DistributionChannel, code.LinkSentDate, code.LinkDelivered,
		code.ExpiryDate, code.CreatedAt,
	)
	return err
}

// Consume flips the code to used. The WHERE guard makes the flip
// single-shot: a writer that lost the race affects zero rows and gets
// ErrCodeAlreadyUsed regardless of what it read earlier.
func (r *codeRepo) Consume(ctx context.Context, tx repository.Tx, code *model.SponsorshipCode) error {
	const q = `
UPDATE sponsorship_codes
   SET is_used = TRUE,
       used_by_user_id = $2,
       used_date = $3,
       created_subscription_id = $4
 WHERE id = $1 AND is_used = FALSE;
`
	tag, err := execSQL(ctx, r.pool, tx, q, code.ID, code.UsedByUserID, code.UsedDate, code.CreatedSubscriptionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCodeAlreadyUsed
	}
	return nil
}

// SaveAll persists a generated batch inside one pgx.Batch round trip.
func (r *codeRepo) SaveAll(ctx context.Context, tx repository.Tx, codes []*model.SponsorshipCode) error {
	if len(codes) == 0 {
		return nil
	}
	const q = `
INSERT INTO sponsorship_codes (` + codeColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21);
`
	batch := &pgx.Batch{}
	for _, c := range codes {
		batch.Queue(q,
			c.ID, c.Code, c.SponsorID, c.PurchaseID, c.TierID,
			c.IsUsed, c.UsedByUserID, c.UsedDate, c.CreatedSubscriptionID,
			c.IsActive, c.DeactivationReason,
			c.ReservedForDealerInvitationID, c.ReservedForFarmerInvitationID, c.ReservedAt,
			c.RecipientPhone, c.RecipientName, c.DistributionChannel, c.LinkSentDate, c.LinkDelivered,
			c.ExpiryDate, c.CreatedAt,
		)
	}
	var br pgx.BatchResults
	switch v := tx.(type) {
	case pgx.Tx:
		br = v.SendBatch(ctx, batch)
	case *pgxpool.Conn:
		br = v.SendBatch(ctx, batch)
	case nil:
		br = r.pool.SendBatch(ctx, batch)
	default:
		return domain.ErrInvalidExecContext
	}
	defer br.Close()
	for range codes {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *codeRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SponsorshipCode, error) {
	const q = `SELECT ` + codeColumns + ` FROM sponsorship_codes WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanCode(row)
}

func (r *codeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.SponsorshipCode, error) {
	const q = `SELECT ` + codeColumns + ` FROM sponsorship_codes WHERE code = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	return scanCode(row)
}

// FindByCodeForUpdate locks the row for the duration of tx. Concurrent
// redemptions of one code serialize here.
func (r *codeRepo) FindByCodeForUpdate(ctx context.Context, tx repository.Tx, code string) (*model.SponsorshipCode, error) {
	const q = `SELECT ` + codeColumns + ` FROM sponsorship_codes WHERE code = $1 FOR UPDATE;`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	return scanCode(row)
}

// SelectAllocatable picks candidate codes soonest-to-expire first. SKIP
// LOCKED makes concurrent allocators see disjoint candidate sets instead of
// blocking on each other's rows.
func (r *codeRepo) SelectAllocatable(ctx context.Context, tx repository.Tx, filter repository.AllocationFilter) ([]*model.SponsorshipCode, error) {
	q := `SELECT ` + codeColumns + ` FROM sponsorship_codes WHERE sponsor_id = $1 AND ` + allocatablePred
	args := []interface{}{filter.SponsorID}
	if filter.TierID != "" {
		args = append(args, filter.TierID)
		q += fmt.Sprintf(" AND tier_id = $%d", len(args))
	}
	q += " ORDER BY expiry_date ASC, created_at ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	q += " FOR UPDATE SKIP LOCKED;"

	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SponsorshipCode
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountAllocatable counts over the same locked scan as SelectAllocatable,
// so a shortfall report never includes rows a concurrent allocator holds.
// Rows locked by the calling transaction itself still count.
func (r *codeRepo) CountAllocatable(ctx context.Context, tx repository.Tx, filter repository.AllocationFilter) (int, error) {
	q := `SELECT id FROM sponsorship_codes WHERE sponsor_id = $1 AND ` + allocatablePred
	args := []interface{}{filter.SponsorID}
	if filter.TierID != "" {
		args = append(args, filter.TierID)
		q += fmt.Sprintf(" AND tier_id = $%d", len(args))
	}
	q = `SELECT COUNT(*) FROM (` + q + ` FOR UPDATE SKIP LOCKED) candidates;`
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *codeRepo) CodeExists(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM sponsorship_codes WHERE code = $1);`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *codeRepo) ListByPurchase(ctx context.Context, tx repository.Tx, purchaseID string) ([]*model.SponsorshipCode, error) {
	const q = `SELECT ` + codeColumns + ` FROM sponsorship_codes WHERE purchase_id = $1 ORDER BY created_at ASC;`
	return r.list(ctx, tx, q, purchaseID)
}

func (r *codeRepo) ListBySponsor(ctx context.Context, tx repository.Tx, sponsorID string) ([]*model.SponsorshipCode, error) {
	const q = `SELECT ` + codeColumns + ` FROM sponsorship_codes WHERE sponsor_id = $1 ORDER BY created_at ASC;`
	return r.list(ctx, tx, q, sponsorID)
}

func (r *codeRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.SponsorshipCode, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.SponsorshipCode
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *codeRepo) CountUsedByPurchase(ctx context.Context, tx repository.Tx, purchaseID string) (int, error) {
	const q = `SELECT COUNT(*) FROM sponsorship_codes WHERE purchase_id = $1 AND is_used = TRUE;`
	row, err := pickRow(ctx, r.pool, tx, q, purchaseID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

// DeactivateUnusedByPurchase is the refund cascade. The is_used guard makes
// the statement safe against a redemption racing the refund.
func (r *codeRepo) DeactivateUnusedByPurchase(ctx context.Context, tx repository.Tx, purchaseID, reason string) (int, error) {
	const q = `
UPDATE sponsorship_codes
   SET is_active = FALSE, deactivation_reason = $2
 WHERE purchase_id = $1 AND is_used = FALSE AND is_active = TRUE;
`
	tag, err := execSQL(ctx, r.pool, tx, q, purchaseID, reason)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *codeRepo) ReleaseByInvitation(ctx context.Context, tx repository.Tx, invitationID string) (int, error) {
	const q = `
UPDATE sponsorship_codes
   SET reserved_for_dealer_invitation_id = NULL,
       reserved_for_farmer_invitation_id = NULL,
       reserved_at = NULL
 WHERE is_used = FALSE
   AND (reserved_for_dealer_invitation_id = $1 OR reserved_for_farmer_invitation_id = $1);
`
	tag, err := execSQL(ctx, r.pool, tx, q, invitationID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *codeRepo) ReleaseStaleReservations(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	const q = `
UPDATE sponsorship_codes
   SET reserved_for_dealer_invitation_id = NULL,
       reserved_for_farmer_invitation_id = NULL,
       reserved_at = NULL
 WHERE is_used = FALSE
   AND reserved_at IS NOT NULL
   AND reserved_at < $1;
`
	tag, err := execSQL(ctx, r.pool, tx, q, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *codeRepo) PoolCounts(ctx context.Context, tx repository.Tx, sponsorID string) (map[string]int, error) {
	const q = `
SELECT
  COUNT(*) FILTER (WHERE ` + allocatablePred + `) AS available,
  COUNT(*) FILTER (WHERE is_used = FALSE AND is_active = TRUE AND expiry_date > now()
                     AND (reserved_for_dealer_invitation_id IS NOT NULL
                       OR reserved_for_farmer_invitation_id IS NOT NULL)) AS reserved,
  COUNT(*) FILTER (WHERE is_used = TRUE) AS used,
  COUNT(*) FILTER (WHERE is_used = FALSE AND is_active = FALSE) AS deactivated,
  COUNT(*) FILTER (WHERE is_used = FALSE AND is_active = TRUE AND expiry_date <= now()) AS expired
  FROM sponsorship_codes
 WHERE sponsor_id = $1;
`
	row, err := pickRow(ctx, r.pool, tx, q, sponsorID)
	if err != nil {
		return nil, err
	}
	var available, reserved, used, deactivated, expired int
	if err := row.Scan(&available, &reserved, &used, &deactivated, &expired); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return map[string]int{
		"available":   available,
		"reserved":    reserved,
		"used":        used,
		"deactivated": deactivated,
		"expired":     expired,
	}, nil
}
