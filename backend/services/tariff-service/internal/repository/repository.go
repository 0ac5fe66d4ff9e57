package repository

import (
	"context"
	"errors"

	"careportal/backend/services/tariff-service/internal/models"
)

var (
	// ErrCustomerNotFound is returned when the directory has no such customer.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrConcessionNotFound is returned when the directory has no such concession.
	ErrConcessionNotFound = errors.New("concession not found")
)

// ScopeTx is a write transaction pinned to one scope key. Nothing written through it is
// visible to readers until the surrounding WithScopeTx call returns nil.
type ScopeTx interface {
	// Records returns every version stored for the pinned key, oldest effective first.
	Records(ctx context.Context) ([]models.RateRecord, error)
	InsertRecord(ctx context.Context, record *models.RateRecord) error
	// DeleteRecords removes every version of the pinned key and reports how many were removed.
	DeleteRecords(ctx context.Context) (int64, error)
	// AppendHistory inserts entry and assigns its ID.
	AppendHistory(ctx context.Context, entry *models.HistoryEntry) error
}
