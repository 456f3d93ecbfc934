//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"agri-sponsorship/internal/domain"
	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/adapter"
	"agri-sponsorship/internal/domain/ports/repository"
)

// =============================
// Repositories
// =============================

// ---- In-memory CodeRepository ----

// MockCodeRepo stores copies, like a real store: callers mutate their own
// copy and must Save it back for the change to stick.
type MockCodeRepo struct {
	mu    sync.Mutex
	store map[string]*model.SponsorshipCode // by ID

	SaveFunc                func(ctx context.Context, tx repository.Tx, code *model.SponsorshipCode) error
	SelectAllocatableFunc   func(ctx context.Context, tx repository.Tx, filter repository.AllocationFilter) ([]*model.SponsorshipCode, error)
	CodeExistsFunc          func(ctx context.Context, tx repository.Tx, code string) (bool, error)
	FindByCodeForUpdateFunc func(ctx context.Context, tx repository.Tx, code string) (*model.SponsorshipCode, error)
}

func NewMockCodeRepo() *MockCodeRepo {
	return &MockCodeRepo{store: make(map[string]*model.SponsorshipCode)}
}

var _ repository.CodeRepository = (*MockCodeRepo)(nil)

func (m *MockCodeRepo) Save(ctx context.Context, tx repository.Tx, code *model.SponsorshipCode) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *code
	m.store[code.ID] = &cp
	return nil
}

func (m *MockCodeRepo) SaveAll(ctx context.Context, tx repository.Tx, codes []*model.SponsorshipCode) error {
	for _, c := range codes {
		if err := m.Save(ctx, tx, c); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockCodeRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SponsorshipCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.SponsorshipCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.store {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockCodeRepo) FindByCodeForUpdate(ctx context.Context, tx repository.Tx, code string) (*model.SponsorshipCode, error) {
	if m.FindByCodeForUpdateFunc != nil {
		return m.FindByCodeForUpdateFunc(ctx, tx, code)
	}
	return m.FindByCode(ctx, tx, code)
}

// Consume refuses a second consume of the same code, like the store's
// guarded UPDATE.
func (m *MockCodeRepo) Consume(ctx context.Context, tx repository.Tx, code *model.SponsorshipCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[code.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.IsUsed {
		return domain.ErrCodeAlreadyUsed
	}
	cp := *code
	m.store[code.ID] = &cp
	return nil
}

func (m *MockCodeRepo) SelectAllocatable(ctx context.Context, tx repository.Tx, filter repository.AllocationFilter) ([]*model.SponsorshipCode, error) {
	if m.SelectAllocatableFunc != nil {
		return m.SelectAllocatableFunc(ctx, tx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []*model.SponsorshipCode
	for _, c := range m.store {
		if !m.matches(c, filter) || !c.Allocatable(now) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiryDate.Equal(out[j].ExpiryDate) {
			return out[i].ExpiryDate.Before(out[j].ExpiryDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MockCodeRepo) CountAllocatable(ctx context.Context, tx repository.Tx, filter repository.AllocationFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for _, c := range m.store {
		if m.matches(c, filter) && c.Allocatable(now) {
			n++
		}
	}
	return n, nil
}

func (m *MockCodeRepo) matches(c *model.SponsorshipCode, f repository.AllocationFilter) bool {
	if f.SponsorID != "" && c.SponsorID != f.SponsorID {
		return false
	}
	if f.TierID != "" && c.TierID != f.TierID {
		return false
	}
	return true
}

func (m *MockCodeRepo) CodeExists(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	if m.CodeExistsFunc != nil {
		return m.CodeExistsFunc(ctx, tx, code)
	}
	_, err := m.FindByCode(ctx, tx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *MockCodeRepo) ListByPurchase(ctx context.Context, tx repository.Tx, purchaseID string) ([]*model.SponsorshipCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SponsorshipCode
	for _, c := range m.store {
		if c.PurchaseID == purchaseID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockCodeRepo) ListBySponsor(ctx context.Context, tx repository.Tx, sponsorID string) ([]*model.SponsorshipCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SponsorshipCode
	for _, c := range m.store {
		if c.SponsorID == sponsorID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockCodeRepo) CountUsedByPurchase(ctx context.Context, tx repository.Tx, purchaseID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.store {
		if c.PurchaseID == purchaseID && c.IsUsed {
			n++
		}
	}
	return n, nil
}

func (m *MockCodeRepo) DeactivateUnusedByPurchase(ctx context.Context, tx repository.Tx, purchaseID, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.store {
		if c.PurchaseID == purchaseID && !c.IsUsed && c.IsActive {
			c.IsActive = false
			r := reason
			c.DeactivationReason = &r
			n++
		}
	}
	return n, nil
}

func (m *MockCodeRepo) ReleaseByInvitation(ctx context.Context, tx repository.Tx, invitationID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.store {
		dealer := c.ReservedForDealerInvitationID != nil && *c.ReservedForDealerInvitationID == invitationID
		farmer := c.ReservedForFarmerInvitationID != nil && *c.ReservedForFarmerInvitationID == invitationID
		if dealer || farmer {
			c.ReleaseReservation()
			n++
		}
	}
	return n, nil
}

func (m *MockCodeRepo) ReleaseStaleReservations(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.store {
		if c.IsReserved() && c.ReservedAt != nil && c.ReservedAt.Before(cutoff) {
			c.ReleaseReservation()
			n++
		}
	}
	return n, nil
}

func (m *MockCodeRepo) PoolCounts(ctx context.Context, tx repository.Tx, sponsorID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	counts := map[string]int{"available": 0, "reserved": 0, "used": 0, "deactivated": 0, "expired": 0}
	for _, c := range m.store {
		if c.SponsorID != sponsorID {
			continue
		}
		switch {
		case c.IsUsed:
			counts["used"]++
		case !c.IsActive:
			counts["deactivated"]++
		case c.IsExpired(now):
			counts["expired"]++
		case c.IsReserved():
			counts["reserved"]++
		default:
			counts["available"]++
		}
	}
	return counts, nil
}

// Get returns the stored copy for assertions.
func (m *MockCodeRepo) Get(id string) *model.SponsorshipCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// ---- In-memory PurchaseRepository ----

type MockPurchaseRepo struct {
	mu    sync.Mutex
	store map[string]*model.SponsorshipPurchase

	SaveFunc        func(ctx context.Context, tx repository.Tx, p *model.SponsorshipPurchase) error
	TotalsFunc      func(ctx context.Context, tx repository.Tx, sponsorID string) (*repository.SponsorTotals, error)
	UsageByTierFunc func(ctx context.Context, tx repository.Tx, sponsorID string) ([]repository.TierUsage, error)
}

func NewMockPurchaseRepo() *MockPurchaseRepo {
	return &MockPurchaseRepo{store: make(map[string]*model.SponsorshipPurchase)}
}

var _ repository.PurchaseRepository = (*MockPurchaseRepo)(nil)

func (m *MockPurchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.SponsorshipPurchase) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPurchaseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SponsorshipPurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPurchaseRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.SponsorshipPurchase, error) {
	return m.FindByID(ctx, tx, id)
}

func (m *MockPurchaseRepo) ListBySponsor(ctx context.Context, tx repository.Tx, sponsorID string) ([]*model.SponsorshipPurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SponsorshipPurchase
	for _, p := range m.store {
		if p.SponsorID == sponsorID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPurchaseRepo) Totals(ctx context.Context, tx repository.Tx, sponsorID string) (*repository.SponsorTotals, error) {
	if m.TotalsFunc != nil {
		return m.TotalsFunc(ctx, tx, sponsorID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &repository.SponsorTotals{}
	for _, p := range m.store {
		if p.SponsorID != sponsorID || p.PaymentStatus != model.PaymentStatusCompleted {
			continue
		}
		t.TotalSpent += p.TotalAmount
		t.TotalCodesPurchased += p.Quantity
		t.TotalCodesUsed += p.CodesUsed
	}
	return t, nil
}

func (m *MockPurchaseRepo) UsageByTier(ctx context.Context, tx repository.Tx, sponsorID string) ([]repository.TierUsage, error) {
	if m.UsageByTierFunc != nil {
		return m.UsageByTierFunc(ctx, tx, sponsorID)
	}
	return nil, nil
}

// ---- In-memory TierRepository ----

type MockTierRepo struct {
	mu    sync.Mutex
	store map[string]*model.SubscriptionTier
}

func NewMockTierRepo(tiers ...*model.SubscriptionTier) *MockTierRepo {
	m := &MockTierRepo{store: make(map[string]*model.SubscriptionTier)}
	for _, t := range tiers {
		m.store[t.ID] = t
	}
	return m
}

var _ repository.TierRepository = (*MockTierRepo)(nil)

func (m *MockTierRepo) Save(ctx context.Context, tx repository.Tx, tier *model.SubscriptionTier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tier
	m.store[tier.ID] = &cp
	return nil
}

func (m *MockTierRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionTier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTierRepo) FindByName(ctx context.Context, tx repository.Tx, name model.TierName) (*model.SubscriptionTier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.store {
		if t.TierName == name {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockTierRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionTier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SubscriptionTier
	for _, t := range m.store {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// ---- In-memory UserRepository ----

type MockUserRepo struct {
	Farmers  map[string]*model.FarmerContact
	Sponsors map[string]*model.SponsorProfile
}

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{
		Farmers:  make(map[string]*model.FarmerContact),
		Sponsors: make(map[string]*model.SponsorProfile),
	}
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func (m *MockUserRepo) FindFarmerContact(ctx context.Context, userID string) (*model.FarmerContact, error) {
	fc, ok := m.Farmers[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return fc, nil
}

func (m *MockUserRepo) FindSponsorProfile(ctx context.Context, sponsorID string) (*model.SponsorProfile, error) {
	sp, ok := m.Sponsors[sponsorID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sp, nil
}

// ---- In-memory AnalysisRepository ----

type MockAnalysisRepo struct {
	Analyses []*model.PlantAnalysis
}

var _ repository.AnalysisRepository = (*MockAnalysisRepo)(nil)

func (m *MockAnalysisRepo) FindByID(ctx context.Context, id string) (*model.PlantAnalysis, error) {
	for _, a := range m.Analyses {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockAnalysisRepo) ListForSponsor(ctx context.Context, q repository.AnalysisQuery) ([]*model.PlantAnalysis, int, error) {
	var out []*model.PlantAnalysis
	for _, a := range m.Analyses {
		if a.SponsorUserID != nil && *a.SponsorUserID == q.SponsorUserID {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

// =============================
// Adapters
// =============================

// ---- Mock SubscriptionActivator ----

type MockActivator struct {
	mu           sync.Mutex
	Activated    []string // code IDs passed in
	ActivateFunc func(ctx context.Context, userID string, code *model.SponsorshipCode) (*model.UserSubscription, error)
}

var _ adapter.SubscriptionActivator = (*MockActivator)(nil)

func (m *MockActivator) Activate(ctx context.Context, userID string, code *model.SponsorshipCode) (*model.UserSubscription, error) {
	m.mu.Lock()
	m.Activated = append(m.Activated, code.ID)
	m.mu.Unlock()
	if m.ActivateFunc != nil {
		return m.ActivateFunc(ctx, userID, code)
	}
	return model.NewSponsoredSubscription(uuid.NewString(), userID, code)
}

// ---- Mock DeliveryAdapter ----

type MockDelivery struct {
	mu       sync.Mutex
	Sent     []adapter.SendLinkParams
	SendFunc func(ctx context.Context, params adapter.SendLinkParams) error
}

var _ adapter.DeliveryAdapter = (*MockDelivery)(nil)

func (m *MockDelivery) SendRedemptionLink(ctx context.Context, params adapter.SendLinkParams) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, params); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, params)
	return nil
}

// ---- Mock AuditSink ----

type MockAuditSink struct {
	mu      sync.Mutex
	Records []*model.AuditRecord
}

var _ adapter.AuditSink = (*MockAuditSink)(nil)

func (m *MockAuditSink) Record(ctx context.Context, rec *model.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, rec)
	return nil
}

func (m *MockAuditSink) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Records))
	for i, r := range m.Records {
		out[i] = r.Action
	}
	return out
}

// =============================
// Infra helpers for tests
// =============================

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately without a real transaction. Assign a
// custom WithTxFunc for tests that verify transactional behavior.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", errors.New("locked")
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

// ---- Mock RateLimiter ----

type MockRateLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, key, limit, window)
	}
	return true, nil
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
