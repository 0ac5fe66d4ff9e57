package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"careportal/backend/libs/middleware"
	"careportal/backend/services/billing-service/internal/clients"
	"careportal/backend/services/billing-service/internal/service"
)

// PaymentsHandler handles prepaid payments.
type PaymentsHandler struct {
	service *service.BillingService
	logger  *zap.Logger
}

// NewPaymentsHandler builds handler.
func NewPaymentsHandler(svc *service.BillingService, logger *zap.Logger) *PaymentsHandler {
	return &PaymentsHandler{
		service: svc,
		logger:  logger,
	}
}

type paymentRequest struct {
	CustomerID string           `json:"customer_id"`
	Amount     *decimal.Decimal `json:"amount_lsl"`
	Reference  string           `json:"reference"`
}

// ServeHTTP handles POST /billing/payments.
func (h *PaymentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Amount == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount_lsl is required", "field": "amount_lsl"})
		return
	}

	ctx := clients.WithAuthorization(r.Context(), r.Header.Get("Authorization"))
	tx, err := h.service.RecordPayment(ctx, service.PaymentInput{
		CustomerID: req.CustomerID,
		Amount:     *req.Amount,
		Reference:  req.Reference,
		RecordedBy: actor.ID,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, tx)
}
