//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"framely/internal/domain"
	"framely/internal/domain/model"
	"framely/internal/usecase"
)

// adminUCTestDeps assembles the full use-case stack behind the dispatcher.
type adminUCTestDeps struct {
	campaigns *MockCampaignRepo
	payments  *MockPaymentRepo
	users     *MockUserRepo
	audit     *MockAuditRepo
	tm        *MockTxManager
}

func newAdminUCDeps() *adminUCTestDeps {
	deps := &adminUCTestDeps{
		campaigns: NewMockCampaignRepo(),
		payments:  NewMockPaymentRepo(),
		users:     NewMockUserRepo(),
		audit:     NewMockAuditRepo(),
		tm:        NewMockTxManager(),
	}
	deps.campaigns.Payments = deps.payments
	deps.campaigns.Users = deps.users
	deps.payments.Campaigns = deps.campaigns
	return deps
}

func (d *adminUCTestDeps) uc() usecase.AdminUseCase {
	activation := usecase.NewActivationUseCase(d.campaigns, d.users, d.audit, d.tm, nil, newTestLogger())
	sweep := usecase.NewSweepUseCase(d.campaigns, d.audit, d.tm, 0, nil, newTestLogger())
	reconcile := usecase.NewReconcileUseCase(d.campaigns, d.payments, d.users, d.audit, activation, d.tm, 0, nil, newTestLogger())
	return usecase.NewAdminUseCase(activation, sweep, reconcile, d.campaigns, d.payments, newTestLogger())
}

func (d *adminUCTestDeps) seedActiveCampaign(t *testing.T, id, owner string) *model.Campaign {
	t.Helper()
	u, err := model.NewUser(owner, owner+"@example.com")
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	d.users.Save(context.Background(), nil, u)
	c, err := model.NewCampaign(id, owner, "Gallery frames")
	if err != nil {
		t.Fatalf("NewCampaign: %v", err)
	}
	c.IsActive = true
	c.Status = model.CampaignStatusActive
	expires := time.Now().Add(24 * time.Hour)
	c.ExpiresAt = &expires
	d.campaigns.Save(context.Background(), nil, c)
	return c
}

func TestAdminUseCase_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("should reject an unknown action", func(t *testing.T) {
		deps := newAdminUCDeps()
		_, err := deps.uc().Dispatch(ctx, usecase.AdminRequest{Action: "explode", ActorID: "admin-1"})
		if !errors.Is(err, domain.ErrInvalidAction) {
			t.Errorf("expected ErrInvalidAction, got: %v", err)
		}
	})

	t.Run("should reject a missing actor", func(t *testing.T) {
		deps := newAdminUCDeps()
		_, err := deps.uc().Dispatch(ctx, usecase.AdminRequest{Action: usecase.ActionDeactivate, CampaignID: "camp-1"})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got: %v", err)
		}
	})

	t.Run("should reject parameterized actions without a campaign id", func(t *testing.T) {
		deps := newAdminUCDeps()
		uc := deps.uc()
		for _, action := range []string{usecase.ActionDeactivate, usecase.ActionReactivate, usecase.ActionExtend, usecase.ActionSetExpiry, usecase.ActionDelete} {
			req := usecase.AdminRequest{Action: action, ActorID: "admin-1", Days: 5}
			if action == usecase.ActionSetExpiry {
				at := time.Now()
				req.ExpiresAt = &at
			}
			if _, err := uc.Dispatch(ctx, req); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("action %s: expected ErrInvalidArgument, got: %v", action, err)
			}
		}
	})

	t.Run("deactivate should flip and report success", func(t *testing.T) {
		deps := newAdminUCDeps()
		deps.seedActiveCampaign(t, "camp-1", "user-1")

		res, err := deps.uc().Dispatch(ctx, usecase.AdminRequest{
			Action: usecase.ActionDeactivate, ActorID: "admin-1", CampaignID: "camp-1",
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !res.Success {
			t.Errorf("expected success, got %+v", res)
		}
		c, _ := deps.campaigns.FindByID(ctx, nil, "camp-1")
		if c.IsActive {
			t.Error("expected campaign inactive")
		}
	})

	t.Run("extend should demand positive days", func(t *testing.T) {
		deps := newAdminUCDeps()
		deps.seedActiveCampaign(t, "camp-1", "user-1")

		_, err := deps.uc().Dispatch(ctx, usecase.AdminRequest{
			Action: usecase.ActionExtend, ActorID: "admin-1", CampaignID: "camp-1", Days: -3,
		})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got: %v", err)
		}
	})

	t.Run("triggerExpiryCron should run the sweep inline", func(t *testing.T) {
		deps := newAdminUCDeps()
		c := deps.seedActiveCampaign(t, "camp-1", "user-1")
		past := time.Now().Add(-time.Hour)
		c.ExpiresAt = &past
		deps.campaigns.Save(ctx, nil, c)

		res, err := deps.uc().Dispatch(ctx, usecase.AdminRequest{Action: usecase.ActionTriggerExpiryCron, ActorID: "admin-1"})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !res.Success || !strings.Contains(res.Message, "1 campaigns deactivated") {
			t.Errorf("expected sweep result message, got %+v", res)
		}
	})

	t.Run("fixStuckCampaigns single mode should require a campaign id", func(t *testing.T) {
		deps := newAdminUCDeps()
		_, err := deps.uc().Dispatch(ctx, usecase.AdminRequest{
			Action: usecase.ActionFixStuck, ActorID: "admin-1", Mode: usecase.FixModeSingle,
		})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got: %v", err)
		}
	})

	t.Run("fixStuckCampaigns should default to the all mode", func(t *testing.T) {
		deps := newAdminUCDeps()
		res, err := deps.uc().Dispatch(ctx, usecase.AdminRequest{Action: usecase.ActionFixStuck, ActorID: "admin-1"})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !res.Success {
			t.Errorf("expected success, got %+v", res)
		}
	})

	t.Run("fixStuckCampaigns cleanup mode should remove orphans", func(t *testing.T) {
		deps := newAdminUCDeps()
		rec, _ := model.NewPendingRecord("ord-orphan", "camp-gone", "user-1", model.PlanMonth, 149)
		deps.payments.Insert(ctx, nil, rec)

		res, err := deps.uc().Dispatch(ctx, usecase.AdminRequest{
			Action: usecase.ActionFixStuck, ActorID: "admin-1", Mode: usecase.FixModeCleanup,
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !strings.Contains(res.Message, "1 orphaned") {
			t.Errorf("expected 1 orphan reported, got %+v", res)
		}
	})

	t.Run("export actions should not dispatch as JSON commands", func(t *testing.T) {
		deps := newAdminUCDeps()
		_, err := deps.uc().Dispatch(ctx, usecase.AdminRequest{Action: usecase.ActionExportPayments, ActorID: "admin-1"})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got: %v", err)
		}
	})
}

func TestAdminUseCase_ExportCSV(t *testing.T) {
	ctx := context.Background()

	t.Run("payments export carries the fixed header and one row per record", func(t *testing.T) {
		deps := newAdminUCDeps()
		rec, _ := model.NewPendingRecord("ord-1", "camp-1", "user-1", model.PlanMonth, 149)
		deps.payments.Insert(ctx, nil, rec)

		var sb strings.Builder
		if err := deps.uc().ExportCSV(ctx, usecase.ActionExportPayments, &sb); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected header + 1 row, got %d lines", len(lines))
		}
		if !strings.HasPrefix(lines[0], "order_id,campaign_id,payer_user_id,plan_type,amount,") {
			t.Errorf("unexpected header: %q", lines[0])
		}
		if !strings.HasPrefix(lines[1], "ord-1,camp-1,user-1,month,149,INR,pending,") {
			t.Errorf("unexpected row: %q", lines[1])
		}
	})

	t.Run("campaign titles containing commas are quoted", func(t *testing.T) {
		deps := newAdminUCDeps()
		c, _ := model.NewCampaign("camp-1", "user-1", "Weddings, parties, events")
		deps.campaigns.Save(ctx, nil, c)

		var sb strings.Builder
		if err := deps.uc().ExportCSV(ctx, usecase.ActionExportCampaigns, &sb); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !strings.Contains(sb.String(), `"Weddings, parties, events"`) {
			t.Errorf("expected quoted title, got: %q", sb.String())
		}
	})

	t.Run("unknown export action is rejected", func(t *testing.T) {
		deps := newAdminUCDeps()
		var sb strings.Builder
		err := deps.uc().ExportCSV(ctx, "exportEverything", &sb)
		if !errors.Is(err, domain.ErrInvalidAction) {
			t.Errorf("expected ErrInvalidAction, got: %v", err)
		}
	})
}

func TestAdminUseCase_IsExport(t *testing.T) {
	deps := newAdminUCDeps()
	uc := deps.uc()
	if !uc.IsExport(usecase.ActionExportPayments) || !uc.IsExport(usecase.ActionExportCampaigns) {
		t.Error("expected export actions recognized")
	}
	if uc.IsExport(usecase.ActionDeactivate) {
		t.Error("expected deactivate not to be an export")
	}
}
