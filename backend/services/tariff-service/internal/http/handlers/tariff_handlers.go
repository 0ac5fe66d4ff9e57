package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"careportal/backend/services/tariff-service/internal/models"
	"careportal/backend/services/tariff-service/internal/service"
)

// TariffHandlers serves the /tariff routes.
type TariffHandlers struct {
	resolver *service.Resolver
	admin    *service.AdminService
	history  *service.HistoryService
	logger   *zap.Logger
}

// NewTariffHandlers builds handlers.
func NewTariffHandlers(resolver *service.Resolver, admin *service.AdminService, history *service.HistoryService, logger *zap.Logger) *TariffHandlers {
	return &TariffHandlers{
		resolver: resolver,
		admin:    admin,
		history:  history,
		logger:   logger,
	}
}

type setRateRequest struct {
	Rate          *decimal.Decimal `json:"rate_lsl"`
	EffectiveFrom *time.Time       `json:"effective_from"`
	Notes         string           `json:"notes"`
}

// Current handles GET /tariff/current.
func (h *TariffHandlers) Current(w http.ResponseWriter, r *http.Request) {
	current, err := h.resolver.Current(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

// Resolve handles GET /tariff/resolve/{identifier}.
func (h *TariffHandlers) Resolve(w http.ResponseWriter, r *http.Request) {
	resolved, err := h.resolver.Resolve(r.Context(), r.PathValue("identifier"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

// SetGlobal handles PUT /tariff/global.
func (h *TariffHandlers) SetGlobal(w http.ResponseWriter, r *http.Request) {
	h.set(w, r, func(ctx context.Context, in service.SetRateInput) (*service.MutationResult, error) {
		return h.admin.SetGlobalRate(ctx, in)
	})
}

// SetConcession handles PUT /tariff/concession/{code}.
func (h *TariffHandlers) SetConcession(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	h.set(w, r, func(ctx context.Context, in service.SetRateInput) (*service.MutationResult, error) {
		return h.admin.SetConcessionRate(ctx, code, in)
	})
}

// SetCustomer handles PUT /tariff/customer/{id}.
func (h *TariffHandlers) SetCustomer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.set(w, r, func(ctx context.Context, in service.SetRateInput) (*service.MutationResult, error) {
		return h.admin.SetCustomerRate(ctx, id, in)
	})
}

// DeleteConcession handles DELETE /tariff/concession/{code}.
func (h *TariffHandlers) DeleteConcession(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	h.delete(w, r, func(ctx context.Context, actor models.Actor) (*service.MutationResult, error) {
		return h.admin.DeleteConcessionOverride(ctx, code, actor)
	})
}

// DeleteCustomer handles DELETE /tariff/customer/{id}.
func (h *TariffHandlers) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.delete(w, r, func(ctx context.Context, actor models.Actor) (*service.MutationResult, error) {
		return h.admin.DeleteCustomerOverride(ctx, id, actor)
	})
}

// History handles GET /tariff/history.
func (h *TariffHandlers) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.history.List(r.Context(), service.HistoryQuery{
		Page:  q.Get("page"),
		Limit: q.Get("limit"),
		Scope: q.Get("scope"),
		Key:   q.Get("key"),
		From:  q.Get("from"),
		To:    q.Get("to"),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *TariffHandlers) set(w http.ResponseWriter, r *http.Request, apply func(context.Context, service.SetRateInput) (*service.MutationResult, error)) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req setRateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Rate == nil {
		writeFieldError(w, "rate_lsl", "is required")
		return
	}

	result, err := apply(r.Context(), service.SetRateInput{
		Rate:          *req.Rate,
		EffectiveFrom: req.EffectiveFrom,
		Notes:         req.Notes,
		Actor:         actor,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *TariffHandlers) delete(w http.ResponseWriter, r *http.Request, apply func(context.Context, models.Actor) (*service.MutationResult, error)) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := apply(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": result.History,
	})
}
