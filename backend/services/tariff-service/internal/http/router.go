package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"careportal/backend/libs/middleware"
)

// Routes aggregates handlers for HTTP server.
type Routes struct {
	Current          http.HandlerFunc
	Resolve          http.HandlerFunc
	SetGlobal        http.HandlerFunc
	SetConcession    http.HandlerFunc
	DeleteConcession http.HandlerFunc
	SetCustomer      http.HandlerFunc
	DeleteCustomer   http.HandlerFunc
	History          http.HandlerFunc
	Health           http.HandlerFunc
	Metrics          http.Handler
}

// NewRouter wires all HTTP routes. Tariff routes require a bearer token; health and metrics do not.
func NewRouter(routes Routes, jwtSecret string, logger *zap.Logger) http.Handler {
	auth := middleware.AuthMiddleware(jwtSecret)
	mux := http.NewServeMux()

	protected := map[string]http.HandlerFunc{
		"GET /tariff/current":              routes.Current,
		"GET /tariff/resolve/{identifier}": routes.Resolve,
		"PUT /tariff/global":               routes.SetGlobal,
		"PUT /tariff/concession/{code}":    routes.SetConcession,
		"DELETE /tariff/concession/{code}": routes.DeleteConcession,
		"PUT /tariff/customer/{id}":        routes.SetCustomer,
		"DELETE /tariff/customer/{id}":     routes.DeleteCustomer,
		"GET /tariff/history":              routes.History,
	}
	for pattern, handler := range protected {
		if handler != nil {
			mux.Handle(pattern, auth(handler))
		}
	}

	if routes.Health != nil {
		mux.Handle("GET /health", routes.Health)
	}
	if routes.Metrics != nil {
		mux.Handle("GET /metrics", routes.Metrics)
	}

	return middleware.Chain(mux,
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)
}
