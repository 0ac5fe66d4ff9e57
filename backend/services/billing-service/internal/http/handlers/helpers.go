package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"careportal/backend/services/billing-service/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": verr.Field + " " + verr.Message,
			"field": verr.Field,
		})
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "customer not found")
	case errors.Is(err, service.ErrUpstream):
		writeError(w, http.StatusBadGateway, "tariff service unavailable")
	default:
		logger.Error("billing request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
