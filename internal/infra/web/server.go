package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"framely/internal/infra/logging"
	"framely/internal/infra/redis"
	"framely/internal/usecase"
)

type ctxKey string

const ctxKeyActor ctxKey = "actor_id"

type Server struct {
	ledgerUC      usecase.LedgerUseCase
	activationUC  usecase.ActivationUseCase
	adminUC       usecase.AdminUseCase
	auth          *AuthManager
	limiter       *redis.RateLimiter
	apiKey        string
	webhookSecret string
	log           *zerolog.Logger
}

func NewServer(
	ledgerUC usecase.LedgerUseCase,
	activationUC usecase.ActivationUseCase,
	adminUC usecase.AdminUseCase,
	auth *AuthManager,
	limiter *redis.RateLimiter,
	apiKey string,
	webhookSecret string,
	logger *zerolog.Logger,
) *Server {
	webLog := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		ledgerUC:      ledgerUC,
		activationUC:  activationUC,
		adminUC:       adminUC,
		auth:          auth,
		limiter:       limiter,
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		log:           &webLog,
	}
}

// Router assembles the HTTP surface. Admin routes sit behind the session
// middleware; the webhook route authenticates by signature instead.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(s.requestLogContext)
	r.Use(chimw.Recoverer)

	r.Get("/health", healthHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/orders", orderCreateHandler(s.ledgerUC))
		r.Post("/activations/free", freeActivationHandler(s.activationUC))
		r.Post("/webhooks/payment", s.webhookHandler())

		r.Post("/admin/login", s.loginHandler())
		r.Post("/admin/logout", s.logoutHandler())
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/admin/actions", s.adminActionsHandler())
			r.Get("/admin/export/payments", s.exportHandler(usecase.ActionExportPayments))
			r.Get("/admin/export/campaigns", s.exportHandler(usecase.ActionExportCampaigns))
		})
	})

	return r
}

// requestLogContext carries chi's request id into the log context so
// handler log lines can be correlated with the request.
func (s *Server) requestLogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), chimw.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware admits either the static API key as a bearer token or a
// session minted by the login endpoint.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if hdr := r.Header.Get("Authorization"); hdr != "" {
			parts := strings.SplitN(hdr, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] == s.apiKey {
				ctx := logging.WithActorID(context.WithValue(r.Context(), ctxKeyActor, "admin"), "admin")
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := logging.WithActorID(context.WithValue(r.Context(), ctxKeyActor, claims.ActorID), claims.ActorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(r *http.Request) string {
	if v, ok := r.Context().Value(ctxKeyActor).(string); ok && v != "" {
		return v
	}
	return "admin"
}
