//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"framely/internal/domain"
	"framely/internal/domain/model"
	"framely/internal/domain/ports/adapter"
	"framely/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Repositories
// =============================

// ---- Mock CampaignRepository ----

// MockCampaignRepo stores value copies so optimistic preconditions behave
// like the real store: a stale in-memory pointer does not leak writes.
type MockCampaignRepo struct {
	mu   sync.Mutex
	data map[string]model.Campaign

	// optional cross-repo references for the stuck-candidate queries
	Payments *MockPaymentRepo
	Users    *MockUserRepo

	SaveFunc            func(ctx context.Context, tx repository.Tx, c *model.Campaign) error
	FindByIDFunc        func(ctx context.Context, tx repository.Tx, id string) (*model.Campaign, error)
	UpdateIfStatusFunc  func(ctx context.Context, tx repository.Tx, c *model.Campaign, expect model.CampaignStatus) (bool, error)
	ListExpiredFunc     func(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Campaign, error)
	DeactivateBatchFunc func(ctx context.Context, tx repository.Tx, ids []string) (int64, error)
}

var _ repository.CampaignRepository = (*MockCampaignRepo)(nil)

func NewMockCampaignRepo() *MockCampaignRepo {
	return &MockCampaignRepo{data: map[string]model.Campaign{}}
}

func (r *MockCampaignRepo) Save(ctx context.Context, tx repository.Tx, c *model.Campaign) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, c)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[c.ID] = *c
	return nil
}

func (r *MockCampaignRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Campaign, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := c
	return &out, nil
}

func (r *MockCampaignRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.data, id)
	return nil
}

func (r *MockCampaignRepo) UpdateIfStatus(ctx context.Context, tx repository.Tx, c *model.Campaign, expect model.CampaignStatus) (bool, error) {
	if r.UpdateIfStatusFunc != nil {
		return r.UpdateIfStatusFunc(ctx, tx, c, expect)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.data[c.ID]
	if !ok || stored.Status != expect {
		return false, nil
	}
	r.data[c.ID] = *c
	return true, nil
}

func (r *MockCampaignRepo) ListExpired(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Campaign, error) {
	if r.ListExpiredFunc != nil {
		return r.ListExpiredFunc(ctx, tx, now, limit)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Campaign
	for _, c := range r.data {
		if c.IsActive && c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
			cp := c
			out = append(out, &cp)
		}
	}
	sortCampaignsByExpiry(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockCampaignRepo) DeactivateBatch(ctx context.Context, tx repository.Tx, ids []string) (int64, error) {
	if r.DeactivateBatchFunc != nil {
		return r.DeactivateBatchFunc(ctx, tx, ids)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		c, ok := r.data[id]
		if !ok || !c.IsActive {
			continue
		}
		c.IsActive = false
		c.Status = model.CampaignStatusInactive
		c.UpdatedAt = time.Now()
		r.data[id] = c
		n++
	}
	return n, nil
}

func (r *MockCampaignRepo) ListStuckPaid(ctx context.Context, tx repository.Tx, limit int) ([]*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Campaign
	for _, c := range r.data {
		if c.IsActive || r.Payments == nil {
			continue
		}
		if r.Payments.hasSuccess(c.ID) {
			cp := c
			out = append(out, &cp)
		}
	}
	sortCampaignsByID(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockCampaignRepo) ListStuckFree(ctx context.Context, tx repository.Tx, limit int) ([]*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Campaign
	for _, c := range r.data {
		if c.IsActive || c.PlanType != model.PlanFree || r.Users == nil {
			continue
		}
		u, err := r.Users.FindByID(ctx, tx, c.OwnerUserID)
		if err != nil || u.FreeCampaignUsed || u.IsBlocked {
			continue
		}
		cp := c
		out = append(out, &cp)
	}
	sortCampaignsByID(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockCampaignRepo) ListAll(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Campaign
	for _, c := range r.data {
		cp := c
		out = append(out, &cp)
	}
	sortCampaignsByID(out)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortCampaignsByID(cs []*model.Campaign) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })
}

func sortCampaignsByExpiry(cs []*model.Campaign) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ExpiresAt.Before(*cs[j].ExpiresAt) })
}

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	data map[string]model.PaymentRecord

	// optional reference for the orphan query
	Campaigns *MockCampaignRepo

	InsertFunc                func(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error
	MarkTerminalIfPendingFunc func(ctx context.Context, tx repository.Tx, orderID string, status model.PaymentStatus, gatewayPaymentID *string, completedAt, webhookReceivedAt time.Time, rawPayload []byte) (bool, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[string]model.PaymentRecord{}}
}

func (r *MockPaymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	if r.InsertFunc != nil {
		return r.InsertFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[p.OrderID]; ok {
		return domain.ErrDuplicateOrder
	}
	r.data[p.OrderID] = *p
	return nil
}

func (r *MockPaymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := p
	return &out, nil
}

func (r *MockPaymentRepo) MarkTerminalIfPending(ctx context.Context, tx repository.Tx, orderID string, status model.PaymentStatus, gatewayPaymentID *string, completedAt, webhookReceivedAt time.Time, rawPayload []byte) (bool, error) {
	if r.MarkTerminalIfPendingFunc != nil {
		return r.MarkTerminalIfPendingFunc(ctx, tx, orderID, status, gatewayPaymentID, completedAt, webhookReceivedAt, rawPayload)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[orderID]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	if gatewayPaymentID != nil {
		p.GatewayPaymentID = gatewayPaymentID
	}
	p.CompletedAt = &completedAt
	p.WebhookReceivedAt = &webhookReceivedAt
	p.RawWebhookPayload = rawPayload
	r.data[orderID] = p
	return true, nil
}

func (r *MockPaymentRepo) FindSuccessByCampaign(ctx context.Context, tx repository.Tx, campaignID string) (*model.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *model.PaymentRecord
	for _, p := range r.data {
		if p.CampaignID != campaignID || p.Status != model.PaymentStatusSuccess {
			continue
		}
		cp := p
		if best == nil || cp.CreatedAt.After(best.CreatedAt) {
			best = &cp
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return best, nil
}

func (r *MockPaymentRepo) ListOrphaned(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentRecord
	for _, p := range r.data {
		if r.Campaigns == nil {
			break
		}
		if _, err := r.Campaigns.FindByID(ctx, tx, p.CampaignID); err == nil {
			continue
		}
		cp := p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockPaymentRepo) DeleteBatch(ctx context.Context, tx repository.Tx, orderIDs []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range orderIDs {
		if _, ok := r.data[id]; ok {
			delete(r.data, id)
			n++
		}
	}
	return n, nil
}

func (r *MockPaymentRepo) ListAll(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentRecord
	for _, p := range r.data {
		cp := p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockPaymentRepo) hasSuccess(campaignID string) bool {
	for _, p := range r.data {
		if p.CampaignID == campaignID && p.Status == model.PaymentStatusSuccess {
			return true
		}
	}
	return false
}

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	data map[string]model.User

	MarkFreeCampaignUsedFunc func(ctx context.Context, tx repository.Tx, userID string) (bool, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{data: map[string]model.User{}}
}

func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[u.ID] = *u
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := u
	return &out, nil
}

func (r *MockUserRepo) MarkFreeCampaignUsed(ctx context.Context, tx repository.Tx, userID string) (bool, error) {
	if r.MarkFreeCampaignUsedFunc != nil {
		return r.MarkFreeCampaignUsedFunc(ctx, tx, userID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[userID]
	if !ok || u.FreeCampaignUsed {
		return false, nil
	}
	u.FreeCampaignUsed = true
	r.data[userID] = u
	return true, nil
}

// ---- Mock AuditRepository ----

type MockAuditRepo struct {
	mu      sync.Mutex
	Entries []*model.AuditLogEntry

	InsertFunc      func(ctx context.Context, tx repository.Tx, e *model.AuditLogEntry) error
	InsertBatchFunc func(ctx context.Context, tx repository.Tx, entries []*model.AuditLogEntry) error
}

var _ repository.AuditRepository = (*MockAuditRepo)(nil)

func NewMockAuditRepo() *MockAuditRepo {
	return &MockAuditRepo{}
}

func (r *MockAuditRepo) Insert(ctx context.Context, tx repository.Tx, e *model.AuditLogEntry) error {
	if r.InsertFunc != nil {
		return r.InsertFunc(ctx, tx, e)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, e)
	return nil
}

func (r *MockAuditRepo) InsertBatch(ctx context.Context, tx repository.Tx, entries []*model.AuditLogEntry) error {
	if r.InsertBatchFunc != nil {
		return r.InsertBatchFunc(ctx, tx, entries)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, entries...)
	return nil
}

func (r *MockAuditRepo) CountByEventType(ctx context.Context, tx repository.Tx, eventType model.AuditEventType) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.Entries {
		if e.EventType == eventType {
			n++
		}
	}
	return n, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately without a real transaction. Assign
// WithTxFunc for tests that need to observe or fail the transactional path.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu     sync.Mutex
	Orders []adapter.CreateOrderParams

	CreateOrderFunc func(ctx context.Context, p adapter.CreateOrderParams) (adapter.CreateOrderResult, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, p adapter.CreateOrderParams) (adapter.CreateOrderResult, error) {
	m.mu.Lock()
	m.Orders = append(m.Orders, p)
	m.mu.Unlock()
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, p)
	}
	return adapter.CreateOrderResult{GatewayOrderID: "gw-" + p.OrderID, SessionRef: "sess-" + p.OrderID}, nil
}
