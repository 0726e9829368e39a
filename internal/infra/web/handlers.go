package web

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"framely/internal/domain"
	"framely/internal/domain/model"
	"framely/internal/infra/logging"
	"framely/internal/infra/payment"
	"framely/internal/infra/redis"
	"framely/internal/usecase"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// A struct to define the expected JSON request body for opening an order.
type orderCreateRequest struct {
	CampaignID  string `json:"campaign_id"`
	PayerUserID string `json:"payer_user_id"`
	Plan        string `json:"plan"`
}

type orderCreateResponse struct {
	OrderID    string `json:"order_id"`
	SessionRef string `json:"session_ref"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
}

// Handler for opening a payment order.
func orderCreateHandler(ledgerUC usecase.LedgerUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req orderCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		rec, sessionRef, err := ledgerUC.CreateOrder(ctx, req.CampaignID, req.PayerUserID, model.PlanType(req.Plan))
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrNotPaidPlan):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, domain.ErrNotFound):
				http.NotFound(w, r)
			case errors.Is(err, domain.ErrNotOwner), errors.Is(err, domain.ErrBlockedUser):
				http.Error(w, err.Error(), http.StatusForbidden)
			case errors.Is(err, domain.ErrDuplicateOrder):
				http.Error(w, err.Error(), http.StatusConflict)
			case errors.Is(err, domain.ErrGateway):
				http.Error(w, "Payment gateway unavailable", http.StatusBadGateway)
			default:
				http.Error(w, "Failed to create order", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(orderCreateResponse{
			OrderID:    rec.OrderID,
			SessionRef: sessionRef,
			Amount:     rec.Amount,
			Currency:   rec.Currency,
			Status:     string(rec.Status),
		})
	}
}

type freeActivationRequest struct {
	CampaignID string `json:"campaign_id"`
	UserID     string `json:"user_id"`
}

type freeActivationResponse struct {
	CampaignID string     `json:"campaign_id"`
	Active     bool       `json:"active"`
	PlanType   string     `json:"plan_type"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// freeActivationHandler consumes the owner's one complimentary activation.
func freeActivationHandler(activationUC usecase.ActivationUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req freeActivationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.CampaignID == "" || req.UserID == "" {
			http.Error(w, "campaign_id and user_id are required", http.StatusBadRequest)
			return
		}

		c, err := activationUC.ActivateFree(r.Context(), req.CampaignID, req.UserID)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				http.NotFound(w, r)
			case errors.Is(err, domain.ErrNotOwner), errors.Is(err, domain.ErrBlockedUser):
				http.Error(w, err.Error(), http.StatusForbidden)
			case errors.Is(err, domain.ErrFreeAlreadyUsed):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				http.Error(w, "Failed to activate campaign", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(freeActivationResponse{
			CampaignID: c.ID,
			Active:     c.IsActive,
			PlanType:   string(c.PlanType),
			ExpiresAt:  c.ExpiresAt,
		})
	}
}

// webhookHandler verifies and applies gateway payment notifications. Replayed
// or unknown notifications still answer 200 so the gateway stops retrying.
func (s *Server) webhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if s.limiter != nil {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			ok, err := s.limiter.Allow(ctx, redis.WebhookSourceKey(host), 60, time.Minute)
			if err != nil {
				s.log.Warn().Err(err).Msg("webhook rate limiter unavailable")
			} else if !ok {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "Failed to read body", http.StatusBadRequest)
			return
		}

		signature := r.Header.Get("x-webhook-signature")
		timestamp := r.Header.Get("x-webhook-timestamp")
		if !payment.VerifyCashfreeWebhookSignature(s.webhookSecret, timestamp, body, signature) {
			s.log.Warn().Str("remote", r.RemoteAddr).Msg("webhook signature rejected")
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}

		n, err := payment.ParseCashfreeWebhook(body, time.Now().UTC())
		if err != nil {
			logging.With(ctx, s.log).Warn().Err(err).Msg("webhook payload rejected")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		ctx = logging.WithOrderID(ctx, n.OrderID)
		if err := s.ledgerUC.ApplyWebhook(ctx, *n); err != nil {
			logging.With(ctx, s.log).Error().Err(err).Msg("webhook apply failed")
			http.Error(w, "Failed to apply webhook", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

type loginRequest struct {
	APIKey  string `json:"api_key"`
	ActorID string `json:"actor_id"`
}

// loginHandler exchanges the static API key for a short-lived session token.
func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if key := r.Header.Get("X-Api-Key"); key != "" {
			req.APIKey = key
		}
		if req.ActorID == "" {
			req.ActorID = "admin"
		}

		if s.limiter != nil {
			ok, err := s.limiter.Allow(r.Context(), redis.AdminActorKey(req.ActorID), 10, time.Minute)
			if err != nil {
				s.log.Warn().Err(err).Msg("login rate limiter unavailable")
			} else if !ok {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
		}

		if s.apiKey == "" || req.APIKey != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		token, err := s.auth.Mint(w, req.ActorID)
		if err != nil {
			http.Error(w, "Failed to mint session", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Token string `json:"token"`
		}{Token: token})
	}
}

func (s *Server) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.auth.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

// adminActionsHandler dispatches the operator command vocabulary.
func (s *Server) adminActionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req usecase.AdminRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.ActorID == "" {
			req.ActorID = actorFromContext(r)
		}
		if req.CampaignID != "" {
			ctx = logging.WithCampaignID(ctx, req.CampaignID)
		}

		if s.adminUC.IsExport(req.Action) {
			w.Header().Set("Content-Type", "text/csv")
			if err := s.adminUC.ExportCSV(ctx, req.Action, w); err != nil {
				logging.With(ctx, s.log).Error().Err(err).Str("action", req.Action).Msg("export failed")
			}
			return
		}

		res, err := s.adminUC.Dispatch(ctx, req)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidAction), errors.Is(err, domain.ErrInvalidArgument):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, domain.ErrNotFound):
				http.NotFound(w, r)
			default:
				http.Error(w, "Action failed", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

// exportHandler streams a CSV snapshot of a ledger table.
func (s *Server) exportHandler(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment")
		if err := s.adminUC.ExportCSV(r.Context(), action, w); err != nil {
			s.log.Error().Err(err).Str("action", action).Msg("export failed")
		}
	}
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Status string `json:"status"`
		}{Status: "ok"})
	}
}
