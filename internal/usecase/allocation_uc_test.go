//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"agri-sponsorship/internal/domain"
	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/usecase"
)

// seedCodes creates n allocatable codes for the sponsor with staggered
// expiries: code i expires in i+1 days.
func seedCodes(t *testing.T, repo *MockCodeRepo, sponsorID, tierID string, n int) []*model.SponsorshipCode {
	t.Helper()
	ctx := context.Background()
	out := make([]*model.SponsorshipCode, 0, n)
	for i := 0; i < n; i++ {
		c, err := model.NewSponsorshipCode(
			fmt.Sprintf("code-%s-%d", tierID, i),
			fmt.Sprintf("AGRI-2026-%s%04d", tierID, i),
			sponsorID, "p-1", tierID, i+1,
		)
		if err != nil {
			t.Fatalf("building code: %v", err)
		}
		if err := repo.Save(ctx, nil, c); err != nil {
			t.Fatalf("seeding code: %v", err)
		}
		out = append(out, c)
	}
	return out
}

func newAllocUC(codes *MockCodeRepo, tiers *MockTierRepo) *usecase.AllocationUseCase {
	return usecase.NewAllocationUseCase(codes, tiers, NewMockTxManager(), NewMockLocker(), newTestLogger())
}

func TestAllocationUseCase_ReserveForInvitation(t *testing.T) {
	ctx := context.Background()
	actor := model.Actor{UserID: "sponsor-1"}
	tier := testTier(t, "tier-s", model.TierS, 30, 1, 100)

	t.Run("reserves the soonest-expiring codes first", func(t *testing.T) {
		codes := NewMockCodeRepo()
		seedCodes(t, codes, "sponsor-1", "tier-s", 5)
		uc := newAllocUC(codes, NewMockTierRepo(tier))

		reserved, err := uc.ReserveForInvitation(ctx, actor, usecase.ReservationRequest{
			SponsorID: "sponsor-1", InvitationID: "inv-1", Kind: usecase.ReserveForDealerInvitation, Count: 2,
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(reserved) != 2 {
			t.Fatalf("expected 2 reserved codes, got %d", len(reserved))
		}
		// Codes 0 and 1 expire soonest.
		if reserved[0].ID != "code-tier-s-0" || reserved[1].ID != "code-tier-s-1" {
			t.Errorf("expected soonest-expiring codes first, got %s, %s", reserved[0].ID, reserved[1].ID)
		}
		for _, c := range reserved {
			stored := codes.Get(c.ID)
			if stored.ReservedForDealerInvitationID == nil || *stored.ReservedForDealerInvitationID != "inv-1" {
				t.Errorf("code %s not stamped with the invitation", c.ID)
			}
		}
	})

	t.Run("a short pool mutates nothing and reports the shortfall", func(t *testing.T) {
		codes := NewMockCodeRepo()
		seedCodes(t, codes, "sponsor-1", "tier-s", 3)
		uc := newAllocUC(codes, NewMockTierRepo(tier))

		_, err := uc.ReserveForInvitation(ctx, actor, usecase.ReservationRequest{
			SponsorID: "sponsor-1", InvitationID: "inv-1", Kind: usecase.ReserveForFarmerInvitation, Count: 5,
		})
		var short *domain.InsufficientCodesError
		if !errors.As(err, &short) {
			t.Fatalf("expected InsufficientCodesError, got %v", err)
		}
		if short.Available != 3 || short.Requested != 5 {
			t.Errorf("expected available=3 requested=5, got %+v", short)
		}
		if !errors.Is(err, domain.ErrInsufficientCodes) {
			t.Error("error must unwrap to ErrInsufficientCodes")
		}
		// All-or-nothing: no code may carry a reservation.
		list, _ := codes.ListBySponsor(ctx, nil, "sponsor-1")
		for _, c := range list {
			if c.IsReserved() {
				t.Errorf("code %s reserved despite failed allocation", c.ID)
			}
		}
	})

	t.Run("reserved codes are excluded from later allocations", func(t *testing.T) {
		codes := NewMockCodeRepo()
		seedCodes(t, codes, "sponsor-1", "tier-s", 4)
		uc := newAllocUC(codes, NewMockTierRepo(tier))

		first, err := uc.ReserveForInvitation(ctx, actor, usecase.ReservationRequest{
			SponsorID: "sponsor-1", InvitationID: "inv-1", Kind: usecase.ReserveForDealerInvitation, Count: 2,
		})
		if err != nil {
			t.Fatalf("first reservation: %v", err)
		}
		second, err := uc.ReserveForInvitation(ctx, actor, usecase.ReservationRequest{
			SponsorID: "sponsor-1", InvitationID: "inv-2", Kind: usecase.ReserveForFarmerInvitation, Count: 2,
		})
		if err != nil {
			t.Fatalf("second reservation: %v", err)
		}
		taken := map[string]bool{}
		for _, c := range first {
			taken[c.ID] = true
		}
		for _, c := range second {
			if taken[c.ID] {
				t.Errorf("code %s reserved by both invitations", c.ID)
			}
		}
	})

	t.Run("expired and deactivated codes never qualify", func(t *testing.T) {
		codes := NewMockCodeRepo()
		seeded := seedCodes(t, codes, "sponsor-1", "tier-s", 3)
		dead := seeded[0]
		_ = dead.Deactivate("ops")
		_ = codes.Save(ctx, nil, dead)
		stale := seeded[1]
		stale.ExpiryDate = time.Now().Add(-time.Hour)
		_ = codes.Save(ctx, nil, stale)
		uc := newAllocUC(codes, NewMockTierRepo(tier))

		_, err := uc.ReserveForInvitation(ctx, actor, usecase.ReservationRequest{
			SponsorID: "sponsor-1", InvitationID: "inv-1", Kind: usecase.ReserveForDealerInvitation, Count: 2,
		})
		var short *domain.InsufficientCodesError
		if !errors.As(err, &short) {
			t.Fatalf("expected InsufficientCodesError, got %v", err)
		}
		if short.Available != 1 {
			t.Errorf("expected only 1 allocatable code, got %d", short.Available)
		}
	})

	t.Run("tier filter restricts candidates", func(t *testing.T) {
		tierL := testTier(t, "tier-l", model.TierL, 60, 1, 100)
		codes := NewMockCodeRepo()
		seedCodes(t, codes, "sponsor-1", "tier-s", 2)
		seedCodes(t, codes, "sponsor-1", "tier-l", 2)
		uc := newAllocUC(codes, NewMockTierRepo(tier, tierL))

		reserved, err := uc.ReserveForInvitation(ctx, actor, usecase.ReservationRequest{
			SponsorID: "sponsor-1", InvitationID: "inv-1", Kind: usecase.ReserveForDealerInvitation, Count: 2, TierFilter: "L",
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		for _, c := range reserved {
			if c.TierID != "tier-l" {
				t.Errorf("expected only tier-l codes, got %s", c.TierID)
			}
		}
	})

	t.Run("rejects invalid kinds and counts", func(t *testing.T) {
		uc := newAllocUC(NewMockCodeRepo(), NewMockTierRepo(tier))
		_, err := uc.ReserveForInvitation(ctx, actor, usecase.ReservationRequest{
			SponsorID: "sponsor-1", InvitationID: "inv-1", Kind: "buyer", Count: 1,
		})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for bad kind, got %v", err)
		}
		_, err = uc.ReserveForInvitation(ctx, actor, usecase.ReservationRequest{
			SponsorID: "sponsor-1", InvitationID: "inv-1", Kind: usecase.ReserveForDealerInvitation, Count: 0,
		})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for zero count, got %v", err)
		}
	})
}

func TestAllocationUseCase_ReleaseReservation(t *testing.T) {
	ctx := context.Background()
	actor := model.Actor{UserID: "sponsor-1"}
	tier := testTier(t, "tier-s", model.TierS, 30, 1, 100)

	codes := NewMockCodeRepo()
	seedCodes(t, codes, "sponsor-1", "tier-s", 3)
	uc := newAllocUC(codes, NewMockTierRepo(tier))

	if _, err := uc.ReserveForInvitation(ctx, actor, usecase.ReservationRequest{
		SponsorID: "sponsor-1", InvitationID: "inv-1", Kind: usecase.ReserveForDealerInvitation, Count: 3,
	}); err != nil {
		t.Fatalf("reserving: %v", err)
	}

	released, err := uc.ReleaseReservation(ctx, "inv-1")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if released != 3 {
		t.Errorf("expected 3 released, got %d", released)
	}

	// Released codes are allocatable again.
	reserved, err := uc.ReserveForInvitation(ctx, actor, usecase.ReservationRequest{
		SponsorID: "sponsor-1", InvitationID: "inv-2", Kind: usecase.ReserveForFarmerInvitation, Count: 3,
	})
	if err != nil {
		t.Fatalf("re-reserving released codes: %v", err)
	}
	if len(reserved) != 3 {
		t.Errorf("expected all 3 codes reusable, got %d", len(reserved))
	}
}

func TestAllocationUseCase_AllocateOne(t *testing.T) {
	ctx := context.Background()
	tier := testTier(t, "tier-s", model.TierS, 30, 1, 100)

	t.Run("stamps the recipient and removes the code from the pool", func(t *testing.T) {
		codes := NewMockCodeRepo()
		seedCodes(t, codes, "sponsor-1", "tier-s", 1)
		uc := newAllocUC(codes, NewMockTierRepo(tier))

		c, err := uc.AllocateOne(ctx, "sponsor-1", "", "+15550001", "Dana", "SMS")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		stored := codes.Get(c.ID)
		if stored.RecipientPhone == nil || *stored.RecipientPhone != "+15550001" {
			t.Error("expected recipient phone stamped")
		}
		if _, err := uc.AllocateOne(ctx, "sponsor-1", "", "+15550002", "Eli", "SMS"); !errors.Is(err, domain.ErrInsufficientCodes) {
			t.Fatalf("expected pool exhaustion, got %v", err)
		}
	})

	t.Run("release returns the code to the pool", func(t *testing.T) {
		codes := NewMockCodeRepo()
		seedCodes(t, codes, "sponsor-1", "tier-s", 1)
		uc := newAllocUC(codes, NewMockTierRepo(tier))

		c, err := uc.AllocateOne(ctx, "sponsor-1", "", "+15550001", "Dana", "SMS")
		if err != nil {
			t.Fatalf("allocating: %v", err)
		}
		if err := uc.ReleaseDistribution(ctx, c.ID); err != nil {
			t.Fatalf("releasing: %v", err)
		}
		if _, err := uc.AllocateOne(ctx, "sponsor-1", "", "+15550002", "Eli", "SMS"); err != nil {
			t.Fatalf("expected released code to be allocatable, got %v", err)
		}
	})
}
