//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"agri-sponsorship/internal/domain"
	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/repository"
	"agri-sponsorship/internal/usecase"
)

func redemptionFixture(t *testing.T) (*usecase.RedemptionUseCase, *MockCodeRepo, *MockPurchaseRepo, *MockActivator) {
	t.Helper()
	ctx := context.Background()
	tier := testTier(t, "tier-s", model.TierS, 30, 1, 100)
	purchases := NewMockPurchaseRepo()
	codes := NewMockCodeRepo()
	activator := &MockActivator{}

	p, _ := model.NewSponsorshipPurchase("p-1", "sponsor-1", tier, 5, "BankTransfer", "", "", "", 30)
	_ = p.Approve("admin-1", time.Now())
	p.CodesGenerated = 1
	if err := purchases.Save(ctx, nil, p); err != nil {
		t.Fatalf("seeding purchase: %v", err)
	}
	c, _ := model.NewSponsorshipCode("code-1", "AGRI-2026-TESTCODE", "sponsor-1", "p-1", "tier-s", 30)
	if err := codes.Save(ctx, nil, c); err != nil {
		t.Fatalf("seeding code: %v", err)
	}

	uc := usecase.NewRedemptionUseCase(codes, purchases, activator, NewMockTxManager(), &MockRateLimiter{}, newTestLogger())
	return uc, codes, purchases, activator
}

func TestRedemptionUseCase_RedeemCode(t *testing.T) {
	ctx := context.Background()

	t.Run("redeems a valid code into an active subscription", func(t *testing.T) {
		uc, codes, purchases, _ := redemptionFixture(t)

		sub, err := uc.RedeemCode(ctx, "AGRI-2026-TESTCODE", "farmer-1")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if sub.Status != model.SubscriptionStatusActive || sub.PaymentMethod != "Sponsorship" {
			t.Errorf("expected active sponsored subscription, got %+v", sub)
		}
		stored := codes.Get("code-1")
		if !stored.IsUsed || stored.UsedByUserID == nil || *stored.UsedByUserID != "farmer-1" {
			t.Error("expected the code to be consumed by farmer-1")
		}
		if stored.CreatedSubscriptionID == nil || *stored.CreatedSubscriptionID != sub.ID {
			t.Error("expected the code to reference the created subscription")
		}
		p, _ := purchases.FindByID(ctx, nil, "p-1")
		if p.CodesUsed != 1 {
			t.Errorf("expected purchase CodesUsed=1, got %d", p.CodesUsed)
		}
	})

	t.Run("a code is consumed at most once", func(t *testing.T) {
		uc, _, _, activator := redemptionFixture(t)

		if _, err := uc.RedeemCode(ctx, "AGRI-2026-TESTCODE", "farmer-1"); err != nil {
			t.Fatalf("first redemption: %v", err)
		}
		_, err := uc.RedeemCode(ctx, "AGRI-2026-TESTCODE", "farmer-2")
		if !errors.Is(err, domain.ErrCodeAlreadyUsed) {
			t.Fatalf("expected ErrCodeAlreadyUsed, got %v", err)
		}
		if len(activator.Activated) != 1 {
			t.Errorf("activation must run exactly once, ran %d times", len(activator.Activated))
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		uc, _, _, _ := redemptionFixture(t)
		if _, err := uc.RedeemCode(ctx, "AGRI-2026-NOPE", "farmer-1"); !errors.Is(err, domain.ErrCodeNotFound) {
			t.Fatalf("expected ErrCodeNotFound, got %v", err)
		}
	})

	t.Run("expired code cannot be redeemed", func(t *testing.T) {
		uc, codes, _, _ := redemptionFixture(t)
		c := codes.Get("code-1")
		c.ExpiryDate = time.Now().Add(-time.Minute)
		_ = codes.Save(ctx, nil, c)

		if _, err := uc.RedeemCode(ctx, "AGRI-2026-TESTCODE", "farmer-1"); !errors.Is(err, domain.ErrCodeExpired) {
			t.Fatalf("expected ErrCodeExpired, got %v", err)
		}
	})

	t.Run("deactivated code cannot be redeemed", func(t *testing.T) {
		uc, codes, _, _ := redemptionFixture(t)
		c := codes.Get("code-1")
		_ = c.Deactivate("refund cascade")
		_ = codes.Save(ctx, nil, c)

		if _, err := uc.RedeemCode(ctx, "AGRI-2026-TESTCODE", "farmer-1"); !errors.Is(err, domain.ErrCodeDeactivated) {
			t.Fatalf("expected ErrCodeDeactivated, got %v", err)
		}
	})

	t.Run("activation failure leaves the code unused", func(t *testing.T) {
		uc, codes, _, activator := redemptionFixture(t)
		activator.ActivateFunc = func(ctx context.Context, userID string, code *model.SponsorshipCode) (*model.UserSubscription, error) {
			return nil, errors.New("subscription service down")
		}

		_, err := uc.RedeemCode(ctx, "AGRI-2026-TESTCODE", "farmer-1")
		if !errors.Is(err, domain.ErrActivationFailed) {
			t.Fatalf("expected ErrActivationFailed, got %v", err)
		}
		stored := codes.Get("code-1")
		if stored.IsUsed {
			t.Error("a failed activation must not consume the code")
		}

		// The same code succeeds once the collaborator recovers.
		activator.ActivateFunc = nil
		if _, err := uc.RedeemCode(ctx, "AGRI-2026-TESTCODE", "farmer-1"); err != nil {
			t.Fatalf("retry after recovery: %v", err)
		}
	})

	t.Run("the consume write refuses a stale read", func(t *testing.T) {
		uc, codes, _, _ := redemptionFixture(t)
		stale := codes.Get("code-1") // unused snapshot

		if _, err := uc.RedeemCode(ctx, "AGRI-2026-TESTCODE", "farmer-1"); err != nil {
			t.Fatalf("first redemption: %v", err)
		}

		// Hand the second redeemer the pre-consumption snapshot, as if its
		// locked read had not seen the winner's commit.
		codes.FindByCodeForUpdateFunc = func(ctx context.Context, tx repository.Tx, code string) (*model.SponsorshipCode, error) {
			cp := *stale
			return &cp, nil
		}
		_, err := uc.RedeemCode(ctx, "AGRI-2026-TESTCODE", "farmer-2")
		if !errors.Is(err, domain.ErrCodeAlreadyUsed) {
			t.Fatalf("expected ErrCodeAlreadyUsed, got %v", err)
		}
		stored := codes.Get("code-1")
		if stored.UsedByUserID == nil || *stored.UsedByUserID != "farmer-1" {
			t.Error("the stale redeemer must not overwrite the winner")
		}
	})

	t.Run("rate limited attempts are rejected before any lookup", func(t *testing.T) {
		limited := usecase.NewRedemptionUseCase(NewMockCodeRepo(), NewMockPurchaseRepo(), &MockActivator{}, NewMockTxManager(),
			&MockRateLimiter{AllowFunc: func(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
				return false, nil
			}}, newTestLogger())

		if _, err := limited.RedeemCode(ctx, "AGRI-2026-TESTCODE", "farmer-1"); !errors.Is(err, domain.ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
	})
}

func TestRedemptionUseCase_ValidateCode(t *testing.T) {
	ctx := context.Background()
	uc, codes, _, _ := redemptionFixture(t)

	if err := uc.ValidateCode(ctx, "AGRI-2026-TESTCODE"); err != nil {
		t.Fatalf("expected valid code, got %v", err)
	}
	c := codes.Get("code-1")
	_ = c.MarkUsed("farmer-1", "sub-1", time.Now())
	_ = codes.Save(ctx, nil, c)
	if err := uc.ValidateCode(ctx, "AGRI-2026-TESTCODE"); !errors.Is(err, domain.ErrCodeAlreadyUsed) {
		t.Fatalf("expected ErrCodeAlreadyUsed, got %v", err)
	}
	if err := uc.ValidateCode(ctx, "AGRI-2026-NOPE"); !errors.Is(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}
