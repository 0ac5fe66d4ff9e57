package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"careportal/backend/services/billing-service/internal/service"
)

// NewCustomerTransactionsHandler returns GET /billing/customers/{id}/transactions handler.
func NewCustomerTransactionsHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = parsed
		}

		transactions, err := svc.TransactionsForCustomer(r.Context(), r.PathValue("id"), limit)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"transactions": transactions,
		})
	}
}
