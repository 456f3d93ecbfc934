package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"agri-sponsorship/internal/domain"
	"agri-sponsorship/internal/domain/ports/repository"
	"agri-sponsorship/internal/usecase"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainErr maps domain errors onto HTTP statuses. Unknown errors are
// logged by the use cases already, so a generic 500 is enough here.
func writeDomainErr(w http.ResponseWriter, err error) {
	var short *domain.InsufficientCodesError
	if errors.As(err, &short) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     short.Error(),
			"available": short.Available,
			"requested": short.Requested,
		})
		return
	}
	var blocked *domain.RefundBlockedError
	if errors.As(err, &blocked) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      blocked.Error(),
			"codes_used": blocked.CodesUsed,
		})
		return
	}

	var status int
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrCodeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrCodeAlreadyUsed),
		errors.Is(err, domain.ErrAlreadyApproved),
		errors.Is(err, domain.ErrAlreadyRefunded),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrConcurrencyConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrCodeExpired), errors.Is(err, domain.ErrCodeDeactivated):
		status = http.StatusGone
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrActivationFailed), errors.Is(err, domain.ErrDeliveryFailed):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrOperationFailed):
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// ===== public redemption =====

func (s *Server) redeemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Code   string `json:"code"`
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		sub, err := s.redeemUC.RedeemCode(r.Context(), req.Code, req.UserID)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	}
}

func (s *Server) validateCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if err := s.redeemUC.ValidateCode(r.Context(), code); err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
	}
}

// ===== purchases =====

type purchaseCreateRequest struct {
	SponsorID        string `json:"sponsor_id"`
	Tier             string `json:"tier"`
	Quantity         int    `json:"quantity"`
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
	CompanyName      string `json:"company_name"`
	CodePrefix       string `json:"code_prefix"`
	ValidityDays     int    `json:"validity_days"`
	AutoApprove      bool   `json:"auto_approve"`
}

func (s *Server) purchaseCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req purchaseCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		p, err := s.purchaseUC.CreatePurchase(r.Context(), actorFrom(r), usecase.CreatePurchaseRequest{
			SponsorID:        req.SponsorID,
			TierName:         req.Tier,
			Quantity:         req.Quantity,
			PaymentMethod:    req.PaymentMethod,
			PaymentReference: req.PaymentReference,
			CompanyName:      req.CompanyName,
			CodePrefix:       req.CodePrefix,
			ValidityDays:     req.ValidityDays,
			AutoApprove:      req.AutoApprove,
		})
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func (s *Server) purchaseListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		purchases, err := s.purchaseUC.ListPurchases(r.Context(), actorFrom(r), r.URL.Query().Get("sponsor_id"))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": purchases})
	}
}

func (s *Server) purchaseApproveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Notes string `json:"notes"`
		}
		// Body is optional for approvals.
		_ = json.NewDecoder(r.Body).Decode(&req)

		if err := s.purchaseUC.ApprovePurchase(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.Notes); err != nil {
			writeDomainErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) purchaseRefundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		deactivated, err := s.purchaseUC.RefundPurchase(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.Reason)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"deactivated_codes": deactivated})
	}
}

func (s *Server) generateCodesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Count int `json:"count"`
		}
		// Empty body generates the purchase's remaining quota.
		_ = json.NewDecoder(r.Body).Decode(&req)

		codes, err := s.purchaseUC.GenerateCodes(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.Count)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"count": len(codes), "codes": codes})
	}
}

// ===== codes =====

func (s *Server) codeListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		codes, err := s.codeAdminUC.ListSponsorCodes(r.Context(), actorFrom(r), r.URL.Query().Get("sponsor_id"))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": codes})
	}
}

func (s *Server) codeGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := s.codeAdminUC.GetCode(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func (s *Server) codeDeactivateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.codeAdminUC.DeactivateCode(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.Reason); err != nil {
			writeDomainErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) poolCountsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := s.codeAdminUC.PoolCounts(r.Context(), actorFrom(r), r.URL.Query().Get("sponsor_id"))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	}
}

// ===== reservations =====

type reserveRequest struct {
	SponsorID    string `json:"sponsor_id"`
	InvitationID string `json:"invitation_id"`
	Kind         string `json:"kind"` // "dealer" | "farmer"
	Count        int    `json:"count"`
	Tier         string `json:"tier"`
}

func (s *Server) reserveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reserveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		codes, err := s.allocUC.ReserveForInvitation(r.Context(), actorFrom(r), usecase.ReservationRequest{
			SponsorID:    req.SponsorID,
			InvitationID: req.InvitationID,
			Kind:         usecase.ReservationKind(req.Kind),
			Count:        req.Count,
			TierFilter:   req.Tier,
		})
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"count": len(codes), "codes": codes})
	}
}

func (s *Server) releaseReservationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		released, err := s.allocUC.ReleaseReservation(r.Context(), chi.URLParam(r, "invitationID"))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"released": released})
	}
}

// ===== distribution =====

type distributeRequest struct {
	SponsorID  string `json:"sponsor_id"`
	Channel    string `json:"channel"`
	Message    string `json:"message"`
	Recipients []struct {
		Phone string `json:"phone"`
		Name  string `json:"name"`
		Tier  string `json:"tier"`
	} `json:"recipients"`
}

func (s *Server) distributeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req distributeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		recipients := make([]usecase.Recipient, 0, len(req.Recipients))
		for _, rc := range req.Recipients {
			recipients = append(recipients, usecase.Recipient{Phone: rc.Phone, Name: rc.Name, TierFilter: rc.Tier})
		}
		report, err := s.distUC.DistributeCodes(r.Context(), actorFrom(r), req.SponsorID, req.Channel, req.Message, recipients)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		// Partial failure is still a completed batch; 207 signals mixed results.
		status := http.StatusOK
		if report.FailedCount > 0 && report.SuccessCount > 0 {
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, report)
	}
}

// ===== analyses (tiered disclosure) =====

func (s *Server) analysisListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := repository.AnalysisQuery{
			SponsorUserID: r.URL.Query().Get("sponsor_id"),
			CropType:      r.URL.Query().Get("crop_type"),
		}
		q.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
		q.PageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
		if q.Page <= 0 {
			q.Page = 1
		}
		if q.PageSize <= 0 {
			q.PageSize = 20
		}
		if v := r.URL.Query().Get("from"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				q.From = &t
			}
		}
		if v := r.URL.Query().Get("to"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				q.To = &t
			}
		}

		views, total, err := s.disclosureUC.ListSponsoredAnalyses(r.Context(), actorFrom(r), q)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data":      views,
			"total":     total,
			"page":      q.Page,
			"page_size": q.PageSize,
		})
	}
}

func (s *Server) analysisGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := s.disclosureUC.GetAnalysisView(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// ===== stats =====

func (s *Server) statsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.statsUC.SponsorStatistics(r.Context(), actorFrom(r), r.URL.Query().Get("sponsor_id"))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
