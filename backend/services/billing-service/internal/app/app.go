package app

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"careportal/backend/services/billing-service/internal/clients"
	"careportal/backend/services/billing-service/internal/config"
	"careportal/backend/services/billing-service/internal/db"
	httpserver "careportal/backend/services/billing-service/internal/http"
	"careportal/backend/services/billing-service/internal/http/handlers"
	"careportal/backend/services/billing-service/internal/repository"
	"careportal/backend/services/billing-service/internal/service"
)

// App wires billing service dependencies.
type App struct {
	server *httpserver.Server
	db     *sqlx.DB
	logger *zap.Logger
}

// New constructs application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.NewPostgres(cfg.Database.DSN, logger)
	if err != nil {
		return nil, err
	}

	txRepo := repository.NewTransactionRepository(sqlDB)
	tariffClient := clients.NewTariffClient(cfg.Tariff.BaseURL, clients.NewDefaultHTTPClient(cfg.Tariff.Timeout))
	billingService := service.NewBillingService(txRepo, tariffClient, logger)

	routes := httpserver.Routes{
		Payments:     handlers.NewPaymentsHandler(billingService, logger),
		Transactions: handlers.NewCustomerTransactionsHandler(billingService, logger),
		Health:       handlers.NewHealthHandler(),
	}

	router := httpserver.NewRouter(routes, cfg.Auth.JWTSecret, logger)
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return &App{
		server: server,
		db:     sqlDB,
		logger: logger,
	}, nil
}

// Run starts HTTP server.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
