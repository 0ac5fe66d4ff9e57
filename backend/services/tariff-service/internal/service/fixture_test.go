package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"careportal/backend/services/tariff-service/internal/models"
	"careportal/backend/services/tariff-service/internal/repository"
)

var (
	operator = models.Actor{ID: "op-1", Name: "Palesa"}
	epoch    = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
)

// tickingClock advances one second on every reading so concurrent writes get distinct times.
type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	store    *repository.MemoryStore
	clock    *tickingClock
	resolver *Resolver
	admin    *AdminService
	history  *HistoryService
}

func newFixture(t *testing.T, globalRate string) *fixture {
	t.Helper()

	store := repository.NewMemoryStore()
	store.AddConcession("MAK")
	store.AddConcession("HA-NKU")
	store.AddCustomer("cust-in-MAK", "MAK")
	store.AddCustomer("cust-also-MAK", "MAK")
	store.AddCustomer("cust-plain", "")

	clock := &tickingClock{t: epoch}
	logger := zap.NewNop()

	resolver := NewResolver(store, store, nil, logger)
	resolver.now = clock.Now
	admin := NewAdminService(store, store, NewLocalLocker(time.Second), nil, logger)
	admin.now = clock.Now

	f := &fixture{
		store:    store,
		clock:    clock,
		resolver: resolver,
		admin:    admin,
		history:  NewHistoryService(store),
	}
	if globalRate != "" {
		_, err := admin.SetGlobalRate(context.Background(), SetRateInput{Rate: dec(globalRate), Actor: operator})
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) allHistory(t *testing.T) []models.HistoryEntry {
	t.Helper()
	entries, _, err := f.store.ListHistory(context.Background(), models.HistoryFilter{})
	require.NoError(t, err)
	return entries
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireRate(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want rate %s, got %s", want, got)
}
