package repository

import (
	"context"
	"time"

	"agri-sponsorship/internal/domain/model"
)

// AllocationFilter narrows candidate selection for the allocation engine.
type AllocationFilter struct {
	SponsorID string
	TierID    string // empty = any tier
	Limit     int
}

// CodeRepository is the port for the sponsorship code pool.
//
// All writers of the pool (allocation claim, redemption consume, refund
// cascade, admin deactivate) go through this port inside one transaction so
// the store's row-level locking serializes them.
type CodeRepository interface {
	Save(ctx context.Context, tx Tx, code *model.SponsorshipCode) error
	// SaveAll persists a generated batch in one round trip.
	SaveAll(ctx context.Context, tx Tx, codes []*model.SponsorshipCode) error

	// Consume persists the used state of a redeemed code. The write carries
	// an unused guard, so it fails with ErrCodeAlreadyUsed instead of
	// overwriting a concurrent winner.
	Consume(ctx context.Context, tx Tx, code *model.SponsorshipCode) error

	FindByID(ctx context.Context, tx Tx, id string) (*model.SponsorshipCode, error)
	FindByCode(ctx context.Context, tx Tx, code string) (*model.SponsorshipCode, error)
	// FindByCodeForUpdate locks the row for the duration of tx.
	FindByCodeForUpdate(ctx context.Context, tx Tx, code string) (*model.SponsorshipCode, error)

	// SelectAllocatable returns up to filter.Limit codes matching the
	// availability predicate (active, unused, unreserved, unexpired),
	// ordered soonest-to-expire first then oldest first. Inside a
	// transaction the rows are locked with SKIP LOCKED semantics so two
	// concurrent allocations never pick the same candidates.
	SelectAllocatable(ctx context.Context, tx Tx, filter AllocationFilter) ([]*model.SponsorshipCode, error)
	CountAllocatable(ctx context.Context, tx Tx, filter AllocationFilter) (int, error)

	CodeExists(ctx context.Context, tx Tx, code string) (bool, error)

	ListByPurchase(ctx context.Context, tx Tx, purchaseID string) ([]*model.SponsorshipCode, error)
	ListBySponsor(ctx context.Context, tx Tx, sponsorID string) ([]*model.SponsorshipCode, error)
	CountUsedByPurchase(ctx context.Context, tx Tx, purchaseID string) (int, error)

	// DeactivateUnusedByPurchase flips is_active off for every unused code
	// under the purchase and returns the affected count (refund cascade).
	DeactivateUnusedByPurchase(ctx context.Context, tx Tx, purchaseID, reason string) (int, error)

	// ReleaseByInvitation clears reservation fields stamped for the given
	// invitation (either column) and returns the released count.
	ReleaseByInvitation(ctx context.Context, tx Tx, invitationID string) (int, error)
	// ReleaseStaleReservations frees reservations older than cutoff.
	ReleaseStaleReservations(ctx context.Context, tx Tx, cutoff time.Time) (int, error)

	// PoolCounts reports the current pool composition per sponsor for the
	// metrics gauge: available, reserved, used, deactivated, expired.
	PoolCounts(ctx context.Context, tx Tx, sponsorID string) (map[string]int, error)
}
