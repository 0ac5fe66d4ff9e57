package app

import (
	"context"
	"io"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libredis "careportal/backend/libs/redis"
	"careportal/backend/services/tariff-service/internal/config"
	"careportal/backend/services/tariff-service/internal/db"
	httpserver "careportal/backend/services/tariff-service/internal/http"
	"careportal/backend/services/tariff-service/internal/http/handlers"
	"careportal/backend/services/tariff-service/internal/lock"
	"careportal/backend/services/tariff-service/internal/metrics"
	"careportal/backend/services/tariff-service/internal/repository"
	"careportal/backend/services/tariff-service/internal/service"
)

// App wires tariff service dependencies.
type App struct {
	server  *httpserver.Server
	admin   *service.AdminService
	cfg     *config.Config
	closers []io.Closer
	logger  *zap.Logger
}

type stores struct {
	reader    service.RateReader
	writer    service.RateWriter
	history   service.HistoryReader
	directory service.CustomerDirectory
}

// New constructs application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	st, err := a.openStores()
	if err != nil {
		a.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	locker, err := a.newLocker()
	if err != nil {
		a.Close()
		return nil, err
	}

	resolver := service.NewResolver(st.reader, st.directory, m, logger)
	a.admin = service.NewAdminService(st.writer, st.directory, locker, m, logger)
	historyService := service.NewHistoryService(st.history)

	tariffHandlers := handlers.NewTariffHandlers(resolver, a.admin, historyService, logger)
	routes := httpserver.Routes{
		Current:          tariffHandlers.Current,
		Resolve:          tariffHandlers.Resolve,
		SetGlobal:        tariffHandlers.SetGlobal,
		SetConcession:    tariffHandlers.SetConcession,
		DeleteConcession: tariffHandlers.DeleteConcession,
		SetCustomer:      tariffHandlers.SetCustomer,
		DeleteCustomer:   tariffHandlers.DeleteCustomer,
		History:          tariffHandlers.History,
		Health:           handlers.NewHealthHandler(),
		Metrics:          promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}

	router := httpserver.NewRouter(routes, cfg.Auth.JWTSecret, logger)
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger)
	return a, nil
}

func (a *App) openStores() (stores, error) {
	if a.cfg.Storage.Driver == config.StorageMemory {
		a.logger.Warn("using in-memory tariff storage; data is lost on restart")
		mem := repository.NewMemoryStore()
		for _, code := range a.cfg.Storage.Seed.Concessions {
			mem.AddConcession(strings.TrimSpace(code))
		}
		for _, entry := range a.cfg.Storage.Seed.Customers {
			id, concession, _ := strings.Cut(entry, "=")
			mem.AddCustomer(strings.TrimSpace(id), strings.TrimSpace(concession))
		}
		return stores{reader: mem, writer: mem, history: mem, directory: mem}, nil
	}

	sqlDB, err := db.NewPostgres(a.cfg.Database.DSN, a.logger)
	if err != nil {
		return stores{}, err
	}
	a.closers = append(a.closers, sqlDB)
	return newPostgresStores(sqlDB), nil
}

func newPostgresStores(sqlDB *sqlx.DB) stores {
	rates := repository.NewTariffRepository(sqlDB)
	return stores{
		reader:    rates,
		writer:    rates,
		history:   repository.NewHistoryRepository(sqlDB),
		directory: repository.NewCustomerRepository(sqlDB),
	}
}

func (a *App) newLocker() (service.ScopeLocker, error) {
	if !a.cfg.RedisEnabled() {
		return service.NewLocalLocker(a.cfg.Tariff.LockTimeout), nil
	}
	client, err := libredis.NewRedisClient(a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client)
	var universal goredis.UniversalClient = client
	return lock.NewRedisLocker(universal, "", a.cfg.Tariff.LockTTL, a.cfg.Tariff.LockTimeout, a.logger), nil
}

// Run bootstraps the global rate when configured, then starts the HTTP server.
func (a *App) Run(ctx context.Context) error {
	rate, err := a.cfg.DefaultGlobalRate()
	if err != nil {
		return err
	}
	if rate.IsPositive() {
		if _, err := a.admin.EnsureGlobalRate(ctx, rate); err != nil {
			return err
		}
	}
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("failed to close resource", zap.Error(err))
		}
	}
	a.closers = nil
}
