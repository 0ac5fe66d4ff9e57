package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"careportal/backend/libs/middleware"
)

// Routes groups HTTP handlers.
type Routes struct {
	Payments     http.Handler
	Transactions http.HandlerFunc
	Health       http.HandlerFunc
}

// NewRouter registers service endpoints.
func NewRouter(routes Routes, jwtSecret string, logger *zap.Logger) http.Handler {
	auth := middleware.AuthMiddleware(jwtSecret)
	mux := http.NewServeMux()
	if routes.Payments != nil {
		mux.Handle("POST /billing/payments", auth(routes.Payments))
	}
	if routes.Transactions != nil {
		mux.Handle("GET /billing/customers/{id}/transactions", auth(routes.Transactions))
	}
	if routes.Health != nil {
		mux.Handle("GET /health", routes.Health)
	}
	return middleware.Chain(mux,
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)
}
