// File: internal/usecase/admin_uc.go
package usecase

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"framely/internal/domain"
	"framely/internal/domain/ports/repository"
	"framely/internal/infra/logging"
)

// Admin action names form a closed vocabulary; anything else is rejected
// before any parameter is looked at.
const (
	ActionDeactivate        = "deactivate"
	ActionReactivate        = "reactivate"
	ActionExtend            = "extend"
	ActionSetExpiry         = "setExpiry"
	ActionDelete            = "delete"
	ActionTriggerExpiryCron = "triggerExpiryCron"
	ActionFixStuck          = "fixStuckCampaigns"
	ActionExportPayments    = "exportPayments"
	ActionExportCampaigns   = "exportCampaigns"
)

// Modes for fixStuckCampaigns.
const (
	FixModeAll     = "all"
	FixModeSingle  = "single"
	FixModeCleanup = "cleanup-orphaned"
)

// AdminRequest is the operator boundary: {action, actorId} plus
// action-specific parameters.
type AdminRequest struct {
	Action     string     `json:"action"`
	ActorID    string     `json:"actorId"`
	CampaignID string     `json:"campaignId,omitempty"`
	Days       int        `json:"days,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	Mode       string     `json:"mode,omitempty"`
}

type AdminResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Compile-time check
var _ AdminUseCase = (*adminUC)(nil)

type AdminUseCase interface {
	Dispatch(ctx context.Context, req AdminRequest) (AdminResult, error)
	// IsExport reports whether the action answers with a CSV body instead of
	// a JSON result.
	IsExport(action string) bool
	ExportCSV(ctx context.Context, action string, w io.Writer) error
}

type adminUC struct {
	activation ActivationUseCase
	sweep      SweepUseCase
	reconcile  ReconcileUseCase
	campaigns  repository.CampaignRepository
	payments   repository.PaymentRepository
	pageSize   int
	log        *zerolog.Logger
}

func NewAdminUseCase(
	activation ActivationUseCase,
	sweep SweepUseCase,
	reconcile ReconcileUseCase,
	campaigns repository.CampaignRepository,
	payments repository.PaymentRepository,
	logger *zerolog.Logger,
) *adminUC {
	l := logger.With().Str("component", "AdminUC").Logger()
	return &adminUC{
		activation: activation, sweep: sweep, reconcile: reconcile,
		campaigns: campaigns, payments: payments, pageSize: 500, log: &l,
	}
}

func (uc *adminUC) Dispatch(ctx context.Context, req AdminRequest) (AdminResult, error) {
	defer logging.TraceDuration(uc.log, "AdminUC.Dispatch")()

	if req.ActorID == "" {
		return AdminResult{}, domain.ErrInvalidArgument
	}

	switch req.Action {
	case ActionDeactivate:
		if req.CampaignID == "" {
			return AdminResult{}, domain.ErrInvalidArgument
		}
		if _, err := uc.activation.Deactivate(ctx, req.CampaignID, req.ActorID); err != nil {
			return AdminResult{}, err
		}
		return AdminResult{Success: true, Message: "campaign deactivated"}, nil

	case ActionReactivate:
		if req.CampaignID == "" {
			return AdminResult{}, domain.ErrInvalidArgument
		}
		c, err := uc.activation.Reactivate(ctx, req.CampaignID, req.ActorID, req.ExpiresAt)
		if err != nil {
			return AdminResult{}, err
		}
		return AdminResult{Success: true, Message: fmt.Sprintf("campaign reactivated until %s", c.ExpiresAt.Format(time.RFC3339))}, nil

	case ActionExtend:
		if req.CampaignID == "" || req.Days <= 0 {
			return AdminResult{}, domain.ErrInvalidArgument
		}
		c, err := uc.activation.Extend(ctx, req.CampaignID, req.ActorID, req.Days)
		if err != nil {
			return AdminResult{}, err
		}
		return AdminResult{Success: true, Message: fmt.Sprintf("campaign extended until %s", c.ExpiresAt.Format(time.RFC3339))}, nil

	case ActionSetExpiry:
		if req.CampaignID == "" || req.ExpiresAt == nil {
			return AdminResult{}, domain.ErrInvalidArgument
		}
		if _, err := uc.activation.SetExpiry(ctx, req.CampaignID, req.ActorID, *req.ExpiresAt); err != nil {
			return AdminResult{}, err
		}
		return AdminResult{Success: true, Message: "expiry updated"}, nil

	case ActionDelete:
		if req.CampaignID == "" {
			return AdminResult{}, domain.ErrInvalidArgument
		}
		if err := uc.activation.Delete(ctx, req.CampaignID, req.ActorID); err != nil {
			return AdminResult{}, err
		}
		return AdminResult{Success: true, Message: "campaign deleted"}, nil

	case ActionTriggerExpiryCron:
		res, err := uc.sweep.Run(ctx, time.Now())
		if err != nil {
			return AdminResult{}, err
		}
		return AdminResult{Success: true, Message: fmt.Sprintf("%d campaigns deactivated", res.Deactivated)}, nil

	case ActionFixStuck:
		return uc.dispatchFix(ctx, req)

	case ActionExportPayments, ActionExportCampaigns:
		// Export actions answer with a CSV body; the transport layer routes
		// them to ExportCSV.
		return AdminResult{}, domain.ErrInvalidArgument

	default:
		return AdminResult{}, domain.ErrInvalidAction
	}
}

func (uc *adminUC) dispatchFix(ctx context.Context, req AdminRequest) (AdminResult, error) {
	mode := req.Mode
	if mode == "" {
		mode = FixModeAll
	}
	switch mode {
	case FixModeAll:
		res, err := uc.reconcile.FixAll(ctx)
		if err != nil {
			return AdminResult{}, err
		}
		return AdminResult{Success: true,
			Message: fmt.Sprintf("%d paid and %d free campaigns recovered, %d skipped", res.PaidFixed, res.FreeFixed, res.Skipped)}, nil
	case FixModeSingle:
		if req.CampaignID == "" {
			return AdminResult{}, domain.ErrInvalidArgument
		}
		res, err := uc.reconcile.FixOne(ctx, req.CampaignID)
		if err != nil {
			return AdminResult{}, err
		}
		return AdminResult{Success: res.Fixed, Message: res.Reason}, nil
	case FixModeCleanup:
		n, err := uc.reconcile.CleanupOrphans(ctx)
		if err != nil {
			return AdminResult{}, err
		}
		return AdminResult{Success: true, Message: fmt.Sprintf("%d orphaned payment records removed", n)}, nil
	default:
		return AdminResult{}, domain.ErrInvalidArgument
	}
}

func (uc *adminUC) IsExport(action string) bool {
	return action == ActionExportPayments || action == ActionExportCampaigns
}

// Export column lists are fixed and explicit so the output shape survives
// schema drift on the stored documents.
var (
	paymentCSVHeader = []string{
		"order_id", "campaign_id", "payer_user_id", "plan_type", "amount",
		"currency", "status", "gateway_order_id", "gateway_payment_id",
		"created_at", "completed_at",
	}
	campaignCSVHeader = []string{
		"id", "owner_user_id", "title", "is_active", "status",
		"is_free_campaign", "plan_type", "amount_paid", "payment_ref",
		"expires_at", "last_payment_at", "created_at",
	}
)

func (uc *adminUC) ExportCSV(ctx context.Context, action string, w io.Writer) error {
	switch action {
	case ActionExportPayments:
		return uc.exportPayments(ctx, w)
	case ActionExportCampaigns:
		return uc.exportCampaigns(ctx, w)
	default:
		return domain.ErrInvalidAction
	}
}

func (uc *adminUC) exportPayments(ctx context.Context, w io.Writer) error {
	if err := writeCSVRow(w, paymentCSVHeader); err != nil {
		return err
	}
	for offset := 0; ; offset += uc.pageSize {
		page, err := uc.payments.ListAll(ctx, nil, uc.pageSize, offset)
		if err != nil {
			return err
		}
		for _, p := range page {
			gw := ""
			if p.GatewayPaymentID != nil {
				gw = *p.GatewayPaymentID
			}
			row := []string{
				p.OrderID, p.CampaignID, p.PayerUserID, string(p.PlanType),
				strconv.FormatInt(p.Amount, 10), p.Currency, string(p.Status),
				p.GatewayOrderID, gw, csvTime(&p.CreatedAt), csvTime(p.CompletedAt),
			}
			if err := writeCSVRow(w, row); err != nil {
				return err
			}
		}
		if len(page) < uc.pageSize {
			return nil
		}
	}
}

func (uc *adminUC) exportCampaigns(ctx context.Context, w io.Writer) error {
	if err := writeCSVRow(w, campaignCSVHeader); err != nil {
		return err
	}
	for offset := 0; ; offset += uc.pageSize {
		page, err := uc.campaigns.ListAll(ctx, nil, uc.pageSize, offset)
		if err != nil {
			return err
		}
		for _, c := range page {
			ref := ""
			if c.PaymentRef != nil {
				ref = *c.PaymentRef
			}
			row := []string{
				c.ID, c.OwnerUserID, c.Title, strconv.FormatBool(c.IsActive),
				string(c.Status), strconv.FormatBool(c.IsFreeCampaign),
				string(c.PlanType), strconv.FormatInt(c.AmountPaid, 10), ref,
				csvTime(c.ExpiresAt), csvTime(c.LastPaymentAt), csvTime(&c.CreatedAt),
			}
			if err := writeCSVRow(w, row); err != nil {
				return err
			}
		}
		if len(page) < uc.pageSize {
			return nil
		}
	}
}

func csvTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// writeCSVRow joins fields with commas, double-quoting only fields that
// themselves contain a comma.
func writeCSVRow(w io.Writer, fields []string) error {
	out := make([]string, len(fields))
	for i, f := range fields {
		if strings.Contains(f, ",") {
			f = `"` + f + `"`
		}
		out[i] = f
	}
	_, err := io.WriteString(w, strings.Join(out, ",")+"\n")
	return err
}
