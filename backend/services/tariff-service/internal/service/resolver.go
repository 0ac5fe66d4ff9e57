package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"careportal/backend/services/tariff-service/internal/metrics"
	"careportal/backend/services/tariff-service/internal/models"
	"careportal/backend/services/tariff-service/internal/repository"
)

// RateReader is the read side of the rate store.
type RateReader interface {
	RecordsFor(ctx context.Context, refs []models.ScopeRef) ([]models.RateRecord, error)
	ListScope(ctx context.Context, scope models.Scope) ([]models.RateRecord, error)
}

// CustomerDirectory maps customers to concessions.
type CustomerDirectory interface {
	ConcessionFor(ctx context.Context, customerID string) (string, error)
	ConcessionExists(ctx context.Context, code string) (bool, error)
}

// Resolver computes effective rates. It never writes and takes no locks.
type Resolver struct {
	rates     RateReader
	directory CustomerDirectory
	cascade   []ScopeLookup
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewResolver builds resolver.
func NewResolver(rates RateReader, directory CustomerDirectory, m *metrics.Metrics, logger *zap.Logger) *Resolver {
	return &Resolver{
		rates:     rates,
		directory: directory,
		cascade:   DefaultCascade,
		metrics:   m,
		logger:    logger,
		now:       utcNow,
	}
}

// Resolve returns the rate in effect for customerID.
func (r *Resolver) Resolve(ctx context.Context, customerID string) (*models.ResolvedRate, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, invalid("customer_id", "is required")
	}

	concession, err := r.directory.ConcessionFor(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, fmt.Errorf("%w: customer %q", ErrNotFound, customerID)
		}
		return nil, fmt.Errorf("tariff: lookup customer: %w", err)
	}

	target := resolveTarget{CustomerID: customerID, ConcessionCode: concession}
	records, err := r.rates.RecordsFor(ctx, cascadeRefs(r.cascade, target))
	if err != nil {
		return nil, err
	}

	result := walkCascade(r.cascade, target, records, r.now())
	if result.winner == nil {
		r.logger.Error("no active global rate", zap.String("customer_id", customerID))
		return nil, errors.New("tariff: no active global rate configured")
	}

	r.metrics.ObserveResolution(string(result.winner.Scope))
	return &models.ResolvedRate{
		CustomerID:     customerID,
		ConcessionCode: concession,
		Rate:           result.winner.Rate,
		Source:         result.winner.Scope,
		SourceKey:      result.winner.ScopeKey,
		EffectiveFrom:  result.winner.EffectiveFrom,
		Cascade:        result.levels,
		Pending:        nonNil(result.pending),
	}, nil
}

// Current returns the tariff snapshot: active and pending global rate plus every override
// version that is in effect or still pending.
func (r *Resolver) Current(ctx context.Context) (*models.CurrentTariff, error) {
	now := r.now()

	globals, err := r.rates.ListScope(ctx, models.ScopeGlobal)
	if err != nil {
		return nil, err
	}
	concessions, err := r.rates.ListScope(ctx, models.ScopeConcession)
	if err != nil {
		return nil, err
	}
	customers, err := r.rates.ListScope(ctx, models.ScopeCustomer)
	if err != nil {
		return nil, err
	}

	current := &models.CurrentTariff{}
	if active, ok := models.ActiveRecord(globals, now); ok {
		current.GlobalRate = &active
	}
	if pending := models.PendingRecords(globals, now); len(pending) > 0 {
		current.PendingGlobal = &pending[0]
	}

	current.ConcessionOverrides, _ = overrideViews(concessions, now)
	var customerKeys int
	current.CustomerOverrides, customerKeys = overrideViews(customers, now)
	current.CustomerOverrideCount = customerKeys
	return current, nil
}

// overrideViews keeps, per key, the active version and the pending ones; superseded versions
// are dropped. It also reports how many distinct keys were listed.
func overrideViews(records []models.RateRecord, now time.Time) ([]models.OverrideView, int) {
	grouped := models.GroupByKey(records)
	keys := make([]string, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	views := []models.OverrideView{}
	for _, key := range keys {
		versions := grouped[key]
		if active, ok := models.ActiveRecord(versions, now); ok {
			views = append(views, models.OverrideView{RateRecord: active})
		}
		for _, pending := range models.PendingRecords(versions, now) {
			views = append(views, models.OverrideView{RateRecord: pending, Pending: true})
		}
	}
	return views, len(keys)
}

func nonNil(records []models.RateRecord) []models.RateRecord {
	if records == nil {
		return []models.RateRecord{}
	}
	return records
}
