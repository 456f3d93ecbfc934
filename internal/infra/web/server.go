package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/infra/logging"
	"agri-sponsorship/internal/usecase"
)

type Server struct {
	purchaseUC   *usecase.PurchaseUseCase
	allocUC      *usecase.AllocationUseCase
	distUC       *usecase.DistributionUseCase
	redeemUC     *usecase.RedemptionUseCase
	disclosureUC *usecase.DisclosureUseCase
	codeAdminUC  *usecase.CodeAdminUseCase
	statsUC      *usecase.StatsUseCase
	auth         *AuthManager
	apiKey       string
	log          *zerolog.Logger
}

func NewServer(
	purchaseUC *usecase.PurchaseUseCase,
	allocUC *usecase.AllocationUseCase,
	distUC *usecase.DistributionUseCase,
	redeemUC *usecase.RedemptionUseCase,
	disclosureUC *usecase.DisclosureUseCase,
	codeAdminUC *usecase.CodeAdminUseCase,
	statsUC *usecase.StatsUseCase,
	auth *AuthManager,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		purchaseUC:   purchaseUC,
		allocUC:      allocUC,
		distUC:       distUC,
		redeemUC:     redeemUC,
		disclosureUC: disclosureUC,
		codeAdminUC:  codeAdminUC,
		statsUC:      statsUC,
		auth:         auth,
		apiKey:       apiKey,
		log:          &l,
	}
}

// RegisterRoutes sets up the routing for the public and admin APIs.
func (s *Server) RegisterRoutes(r *chi.Mux) {
	r.Use(s.traceMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public redemption surface. Abuse protection lives in the use case's
	// rate limiter, keyed by the redeeming user.
	r.Route("/api/v1/redemptions", func(r chi.Router) {
		r.Post("/", s.redeemHandler())
		r.Get("/{code}", s.validateCodeHandler())
	})

	r.Post("/api/v1/auth/login", s.loginHandler())
	r.Post("/api/v1/auth/logout", s.logoutHandler())

	// Everything below requires an admin session.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.adminMiddleware)

		r.Route("/purchases", func(r chi.Router) {
			r.Post("/", s.purchaseCreateHandler())
			r.Get("/", s.purchaseListHandler())
			r.Post("/{id}/approve", s.purchaseApproveHandler())
			r.Post("/{id}/refund", s.purchaseRefundHandler())
			r.Post("/{id}/codes", s.generateCodesHandler())
		})

		r.Route("/codes", func(r chi.Router) {
			r.Get("/", s.codeListHandler())
			r.Get("/pool", s.poolCountsHandler())
			r.Get("/{code}", s.codeGetHandler())
			r.Post("/{id}/deactivate", s.codeDeactivateHandler())
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", s.reserveHandler())
			r.Delete("/{invitationID}", s.releaseReservationHandler())
		})

		r.Post("/distributions", s.distributeHandler())

		r.Route("/analyses", func(r chi.Router) {
			r.Get("/", s.analysisListHandler())
			r.Get("/{id}", s.analysisGetHandler())
		})

		r.Get("/stats", s.statsHandler())
	})
}

type ctxActorKey struct{}

// adminMiddleware authenticates the session and places the acting admin in
// the request context. A sponsor scope baked into the session wins; an
// unscoped session may still pass X-On-Behalf-Of-Sponsor per request.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.Authenticate(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != "admin" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		scope := claims.SponsorScope
		if scope == "" {
			scope = r.Header.Get("X-On-Behalf-Of-Sponsor")
		}
		actor := model.Actor{
			UserID:              claims.Subject,
			OnBehalfOfSponsorID: scope,
		}
		ctx := context.WithValue(r.Context(), ctxActorKey{}, actor)
		ctx = logging.WithActorID(ctx, actor.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(r *http.Request) model.Actor {
	if a, ok := r.Context().Value(ctxActorKey{}).(model.Actor); ok {
		return a
	}
	return model.Actor{}
}

func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithTraceID(r.Context(), id)))
	})
}

// loginHandler exchanges the configured API key for a short-lived admin
// session. Passing on_behalf_of_sponsor scopes the whole session to that
// sponsor.
func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		var req struct {
			APIKey            string `json:"api_key"`
			UserID            string `json:"user_id"`
			OnBehalfOfSponsor string `json:"on_behalf_of_sponsor"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.APIKey != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		userID := req.UserID
		if userID == "" {
			userID = "admin"
		}
		token, err := s.auth.Issue(w, userID, req.OnBehalfOfSponsor)
		if err != nil {
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func (s *Server) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.auth.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	}
}
