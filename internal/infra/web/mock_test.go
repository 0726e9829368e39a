//go:build !integration

package web

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"framely/internal/domain"
	"framely/internal/domain/model"
	"framely/internal/domain/ports/adapter"
	"framely/internal/usecase"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// --- Mock Use Cases ---

type mockLedgerUC struct {
	mu              sync.Mutex
	CreateOrderFunc func(ctx context.Context, campaignID, payerUserID string, plan model.PlanType) (*model.PaymentRecord, string, error)
	ApplyWebhookErr error
	Applied         []adapter.WebhookNotification
}

func (m *mockLedgerUC) CreateOrder(ctx context.Context, campaignID, payerUserID string, plan model.PlanType) (*model.PaymentRecord, string, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, campaignID, payerUserID, plan)
	}
	rec, err := model.NewPendingRecord("ord-1", campaignID, payerUserID, plan, 149)
	if err != nil {
		return nil, "", err
	}
	return rec, "sess-ord-1", nil
}

func (m *mockLedgerUC) ApplyWebhook(ctx context.Context, n adapter.WebhookNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ApplyWebhookErr != nil {
		return m.ApplyWebhookErr
	}
	m.Applied = append(m.Applied, n)
	return nil
}

type mockActivationUC struct {
	usecase.ActivationUseCase // embed interface, only ActivateFree is served
	ActivateFreeFunc          func(ctx context.Context, campaignID, actorID string) (*model.Campaign, error)
}

func (m *mockActivationUC) ActivateFree(ctx context.Context, campaignID, actorID string) (*model.Campaign, error) {
	if m.ActivateFreeFunc != nil {
		return m.ActivateFreeFunc(ctx, campaignID, actorID)
	}
	c, err := model.NewCampaign(campaignID, actorID, "Launch frames")
	if err != nil {
		return nil, err
	}
	c.IsActive = true
	c.Status = model.CampaignStatusActive
	c.IsFreeCampaign = true
	c.PlanType = model.PlanFree
	return c, nil
}

type mockAdminUC struct {
	mu           sync.Mutex
	DispatchFunc func(ctx context.Context, req usecase.AdminRequest) (usecase.AdminResult, error)
	Dispatched   []usecase.AdminRequest
	Exported     []string
}

func (m *mockAdminUC) Dispatch(ctx context.Context, req usecase.AdminRequest) (usecase.AdminResult, error) {
	m.mu.Lock()
	m.Dispatched = append(m.Dispatched, req)
	m.mu.Unlock()
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, req)
	}
	return usecase.AdminResult{Success: true, Message: "done"}, nil
}

func (m *mockAdminUC) IsExport(action string) bool {
	return action == usecase.ActionExportPayments || action == usecase.ActionExportCampaigns
}

func (m *mockAdminUC) ExportCSV(ctx context.Context, action string, w io.Writer) error {
	m.mu.Lock()
	m.Exported = append(m.Exported, action)
	m.mu.Unlock()
	switch action {
	case usecase.ActionExportPayments:
		fmt.Fprintln(w, "order_id,status")
		fmt.Fprintln(w, "ord-1,pending")
		return nil
	case usecase.ActionExportCampaigns:
		fmt.Fprintln(w, "id,title")
		return nil
	}
	return domain.ErrInvalidAction
}
