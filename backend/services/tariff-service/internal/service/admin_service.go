package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"careportal/backend/services/tariff-service/internal/metrics"
	"careportal/backend/services/tariff-service/internal/models"
	"careportal/backend/services/tariff-service/internal/repository"
)

const (
	systemActor   = "system"
	maxKeyLength  = 64
	maxRateScale  = 4
	bootstrapNote = "initial global rate"
)

var maxRate = decimal.New(1, 8)

// RateWriter opens write transactions pinned to one scope key.
type RateWriter interface {
	WithScopeTx(ctx context.Context, ref models.ScopeRef, fn func(tx repository.ScopeTx) error) error
}

// SetRateInput carries one override write.
type SetRateInput struct {
	Rate          decimal.Decimal
	EffectiveFrom *time.Time
	Notes         string
	Actor         models.Actor
}

// MutationResult is what a committed write produced. Record is nil for deletions.
type MutationResult struct {
	Record  *models.RateRecord  `json:"record,omitempty"`
	History models.HistoryEntry `json:"history"`
}

type writeMeta struct {
	Notes string `json:"notes" validate:"max=500"`
	SetBy string `json:"set_by" validate:"required"`
}

// AdminService applies override writes: one new version or one removal per call, with exactly
// one history entry committed alongside it.
type AdminService struct {
	writer    RateWriter
	directory CustomerDirectory
	locker    ScopeLocker
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewAdminService builds service.
func NewAdminService(writer RateWriter, directory CustomerDirectory, locker ScopeLocker, m *metrics.Metrics, logger *zap.Logger) *AdminService {
	return &AdminService{
		writer:    writer,
		directory: directory,
		locker:    locker,
		metrics:   m,
		logger:    logger,
		now:       utcNow,
	}
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// SetGlobalRate writes a new version of the global rate.
func (s *AdminService) SetGlobalRate(ctx context.Context, in SetRateInput) (*MutationResult, error) {
	return s.setRate(ctx, models.GlobalRef, in)
}

// SetConcessionRate writes a new override version for a concession.
func (s *AdminService) SetConcessionRate(ctx context.Context, code string, in SetRateInput) (*MutationResult, error) {
	return s.setRate(ctx, models.ScopeRef{Scope: models.ScopeConcession, Key: strings.TrimSpace(code)}, in)
}

// SetCustomerRate writes a new override version for a customer.
func (s *AdminService) SetCustomerRate(ctx context.Context, customerID string, in SetRateInput) (*MutationResult, error) {
	return s.setRate(ctx, models.ScopeRef{Scope: models.ScopeCustomer, Key: strings.TrimSpace(customerID)}, in)
}

// DeleteConcessionOverride removes every version of a concession override.
func (s *AdminService) DeleteConcessionOverride(ctx context.Context, code string, actor models.Actor) (*MutationResult, error) {
	return s.deleteOverride(ctx, models.ScopeRef{Scope: models.ScopeConcession, Key: strings.TrimSpace(code)}, actor)
}

// DeleteCustomerOverride removes every version of a customer override.
func (s *AdminService) DeleteCustomerOverride(ctx context.Context, customerID string, actor models.Actor) (*MutationResult, error) {
	return s.deleteOverride(ctx, models.ScopeRef{Scope: models.ScopeCustomer, Key: strings.TrimSpace(customerID)}, actor)
}

// EnsureGlobalRate writes rate as the global rate when no global version exists at all.
// It reports whether a record was written.
func (s *AdminService) EnsureGlobalRate(ctx context.Context, rate decimal.Decimal) (bool, error) {
	if err := validateRate(rate); err != nil {
		return false, err
	}

	unlock, err := s.lock(ctx, models.GlobalRef)
	if err != nil {
		return false, err
	}
	defer unlock()

	now := s.now()
	var result *MutationResult
	err = s.writer.WithScopeTx(ctx, models.GlobalRef, func(tx repository.ScopeTx) error {
		existing, err := tx.Records(ctx)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}
		result, err = insertVersion(ctx, tx, models.GlobalRef, SetRateInput{
			Rate:  rate,
			Notes: bootstrapNote,
			Actor: models.Actor{ID: systemActor, Name: systemActor},
		}, now, nil)
		return err
	})
	if err != nil {
		return false, s.fail(models.GlobalRef, err)
	}
	if result == nil {
		return false, nil
	}

	s.metrics.ObserveMutation(string(models.ScopeGlobal), models.HistoryActionSet)
	s.logger.Info("global rate bootstrapped", zap.String("rate", rate.String()))
	return true, nil
}

func (s *AdminService) setRate(ctx context.Context, ref models.ScopeRef, in SetRateInput) (*MutationResult, error) {
	if err := validateWrite(ref, in.Notes, in.Actor); err != nil {
		return nil, s.fail(ref, err)
	}
	if err := validateRate(in.Rate); err != nil {
		return nil, s.fail(ref, err)
	}
	if err := s.ensureTargetExists(ctx, ref); err != nil {
		return nil, s.fail(ref, err)
	}

	unlock, err := s.lock(ctx, ref)
	if err != nil {
		return nil, s.fail(ref, err)
	}
	defer unlock()

	now := s.now()
	var result *MutationResult
	err = s.writer.WithScopeTx(ctx, ref, func(tx repository.ScopeTx) error {
		existing, err := tx.Records(ctx)
		if err != nil {
			return err
		}
		result, err = insertVersion(ctx, tx, ref, in, now, existing)
		return err
	})
	if err != nil {
		return nil, s.fail(ref, err)
	}

	s.metrics.ObserveMutation(string(ref.Scope), models.HistoryActionSet)
	s.logger.Info("tariff rate set",
		zap.String("scope", ref.String()),
		zap.String("rate", result.Record.Rate.String()),
		zap.Time("effective_from", result.Record.EffectiveFrom),
		zap.String("set_by", result.Record.SetBy),
		zap.Int64("history_id", result.History.ID),
	)
	return result, nil
}

func insertVersion(ctx context.Context, tx repository.ScopeTx, ref models.ScopeRef, in SetRateInput, now time.Time, existing []models.RateRecord) (*MutationResult, error) {
	effective := now
	if in.EffectiveFrom != nil {
		effective = in.EffectiveFrom.UTC().Truncate(time.Microsecond)
	}

	record := models.RateRecord{
		ID:            uuid.NewString(),
		Scope:         ref.Scope,
		ScopeKey:      ref.Key,
		Rate:          in.Rate,
		EffectiveFrom: effective,
		SetBy:         in.Actor.ID,
		SetByName:     actorName(in.Actor),
		SetAt:         now,
		Notes:         strings.TrimSpace(in.Notes),
	}
	entry := models.HistoryEntry{
		Action:        models.HistoryActionSet,
		Scope:         ref.Scope,
		ScopeKey:      ref.Key,
		PreviousRate:  activeRate(existing, now),
		NewRate:       in.Rate,
		EffectiveFrom: effective,
		SetBy:         record.SetBy,
		SetByName:     record.SetByName,
		SetAt:         now,
		Notes:         record.Notes,
	}

	result := &MutationResult{Record: &record, History: entry}
	if err := tx.InsertRecord(ctx, result.Record); err != nil {
		return nil, err
	}
	// ID is assigned through the pointer when the transaction commits.
	if err := tx.AppendHistory(ctx, &result.History); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *AdminService) deleteOverride(ctx context.Context, ref models.ScopeRef, actor models.Actor) (*MutationResult, error) {
	if err := validateWrite(ref, "", actor); err != nil {
		return nil, s.fail(ref, err)
	}

	unlock, err := s.lock(ctx, ref)
	if err != nil {
		return nil, s.fail(ref, err)
	}
	defer unlock()

	now := s.now()
	entry := models.HistoryEntry{
		Action:        models.HistoryActionDelete,
		Scope:         ref.Scope,
		ScopeKey:      ref.Key,
		NewRate:       decimal.Zero,
		EffectiveFrom: now,
		SetBy:         actor.ID,
		SetByName:     actorName(actor),
		SetAt:         now,
	}
	err = s.writer.WithScopeTx(ctx, ref, func(tx repository.ScopeTx) error {
		existing, err := tx.Records(ctx)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			return fmt.Errorf("%w: no override for %s", ErrNotFound, ref)
		}
		entry.PreviousRate = activeRate(existing, now)
		if _, err := tx.DeleteRecords(ctx); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, &entry)
	})
	if err != nil {
		return nil, s.fail(ref, err)
	}

	s.metrics.ObserveMutation(string(ref.Scope), models.HistoryActionDelete)
	s.logger.Info("tariff override removed",
		zap.String("scope", ref.String()),
		zap.String("set_by", entry.SetBy),
		zap.Int64("history_id", entry.ID),
	)
	return &MutationResult{History: entry}, nil
}

func (s *AdminService) ensureTargetExists(ctx context.Context, ref models.ScopeRef) error {
	switch ref.Scope {
	case models.ScopeConcession:
		ok, err := s.directory.ConcessionExists(ctx, ref.Key)
		if err != nil {
			return fmt.Errorf("tariff: lookup concession: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: concession %q", ErrNotFound, ref.Key)
		}
	case models.ScopeCustomer:
		if _, err := s.directory.ConcessionFor(ctx, ref.Key); err != nil {
			if errors.Is(err, repository.ErrCustomerNotFound) {
				return fmt.Errorf("%w: customer %q", ErrNotFound, ref.Key)
			}
			return fmt.Errorf("tariff: lookup customer: %w", err)
		}
	}
	return nil
}

func (s *AdminService) lock(ctx context.Context, ref models.ScopeRef) (func(), error) {
	started := time.Now()
	unlock, err := s.locker.Lock(ctx, ref.String())
	s.metrics.ObserveLockWait(time.Since(started))
	if err != nil {
		return nil, err
	}
	return unlock, nil
}

// fail counts a rejected write and passes err through.
func (s *AdminService) fail(ref models.ScopeRef, err error) error {
	reason := "store"
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		reason = "validation"
	case errors.Is(err, ErrNotFound):
		reason = "not_found"
	case errors.Is(err, ErrConflict):
		reason = "conflict"
	default:
		s.logger.Error("tariff write failed", zap.String("scope", ref.String()), zap.Error(err))
	}
	s.metrics.ObserveMutationError(string(ref.Scope), reason)
	return err
}

func validateWrite(ref models.ScopeRef, notes string, actor models.Actor) error {
	if ref.Scope != models.ScopeGlobal {
		field := "code"
		if ref.Scope == models.ScopeCustomer {
			field = "customer_id"
		}
		if ref.Key == "" {
			return invalid(field, "is required")
		}
		if len(ref.Key) > maxKeyLength {
			return invalid(field, fmt.Sprintf("must be at most %d characters", maxKeyLength))
		}
	}
	return validateStruct(writeMeta{Notes: strings.TrimSpace(notes), SetBy: strings.TrimSpace(actor.ID)})
}

func validateRate(rate decimal.Decimal) error {
	switch {
	case !rate.IsPositive():
		return invalid("rate_lsl", "must be greater than zero")
	case rate.GreaterThanOrEqual(maxRate):
		return invalid("rate_lsl", "is too large")
	case !rate.Equal(rate.Truncate(maxRateScale)):
		return invalid("rate_lsl", fmt.Sprintf("must have at most %d decimal places", maxRateScale))
	}
	return nil
}

func activeRate(records []models.RateRecord, now time.Time) decimal.NullDecimal {
	if active, ok := models.ActiveRecord(records, now); ok {
		return decimal.NullDecimal{Decimal: active.Rate, Valid: true}
	}
	return decimal.NullDecimal{}
}

func actorName(actor models.Actor) string {
	if name := strings.TrimSpace(actor.Name); name != "" {
		return name
	}
	return actor.ID
}
