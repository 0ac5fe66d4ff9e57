package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"careportal/backend/services/tariff-service/internal/models"
)

const (
	ratesTable = "tariff_rates"

	rateColumns = "id, scope, scope_key, rate, effective_from, set_by, set_by_name, set_at, notes"
)

// TariffRepository stores rate versions in Postgres.
type TariffRepository struct {
	db *sqlx.DB
}

// NewTariffRepository returns repository.
func NewTariffRepository(db *sqlx.DB) *TariffRepository {
	return &TariffRepository{db: db}
}

// RecordsFor loads every version of the given keys in one round trip.
func (r *TariffRepository) RecordsFor(ctx context.Context, refs []models.ScopeRef) ([]models.RateRecord, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(rateColumns).From(ratesTable)
	matches := make([]string, 0, len(refs))
	for _, ref := range refs {
		matches = append(matches, sb.And(
			sb.Equal("scope", string(ref.Scope)),
			sb.Equal("scope_key", ref.Key),
		))
	}
	sb.Where(sb.Or(matches...))
	sb.OrderBy("effective_from ASC", "set_at ASC", "seq ASC")

	query, args := sb.Build()
	var records []models.RateRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("tariff repo: records for keys: %w", err)
	}
	return records, nil
}

// ListScope returns every version stored at scope.
func (r *TariffRepository) ListScope(ctx context.Context, scope models.Scope) ([]models.RateRecord, error) {
	const query = `
		SELECT ` + rateColumns + `
		FROM tariff_rates
		WHERE scope = $1
		ORDER BY scope_key ASC, effective_from ASC, set_at ASC, seq ASC
	`
	var records []models.RateRecord
	if err := r.db.SelectContext(ctx, &records, query, string(scope)); err != nil {
		return nil, fmt.Errorf("tariff repo: list %s: %w", scope, err)
	}
	return records, nil
}

// WithScopeTx runs fn inside a transaction holding the advisory lock for ref. The lock is
// released when the transaction ends, so two writers for one key never interleave.
func (r *TariffRepository) WithScopeTx(ctx context.Context, ref models.ScopeRef, fn func(tx ScopeTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("tariff repo: begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ref.String()); err != nil {
		return fmt.Errorf("tariff repo: lock %s: %w", ref, err)
	}

	if err = fn(&pgScopeTx{tx: tx, ref: ref}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("tariff repo: commit: %w", err)
	}
	return nil
}

type pgScopeTx struct {
	tx  *sqlx.Tx
	ref models.ScopeRef
}

func (t *pgScopeTx) Records(ctx context.Context) ([]models.RateRecord, error) {
	const query = `
		SELECT ` + rateColumns + `
		FROM tariff_rates
		WHERE scope = $1 AND scope_key = $2
		ORDER BY effective_from ASC, set_at ASC, seq ASC
	`
	var records []models.RateRecord
	if err := t.tx.SelectContext(ctx, &records, query, string(t.ref.Scope), t.ref.Key); err != nil {
		return nil, fmt.Errorf("tariff repo: records %s: %w", t.ref, err)
	}
	return records, nil
}

func (t *pgScopeTx) InsertRecord(ctx context.Context, record *models.RateRecord) error {
	if record.Ref() != t.ref {
		return fmt.Errorf("tariff repo: record for %s written in %s transaction", record.Ref(), t.ref)
	}
	const query = `
		INSERT INTO tariff_rates (id, scope, scope_key, rate, effective_from, set_by, set_by_name, set_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := t.tx.ExecContext(ctx, query,
		record.ID,
		string(record.Scope),
		record.ScopeKey,
		record.Rate,
		record.EffectiveFrom,
		record.SetBy,
		record.SetByName,
		record.SetAt,
		record.Notes,
	)
	if err != nil {
		return fmt.Errorf("tariff repo: insert record: %w", err)
	}
	return nil
}

func (t *pgScopeTx) DeleteRecords(ctx context.Context) (int64, error) {
	const query = `DELETE FROM tariff_rates WHERE scope = $1 AND scope_key = $2`
	result, err := t.tx.ExecContext(ctx, query, string(t.ref.Scope), t.ref.Key)
	if err != nil {
		return 0, fmt.Errorf("tariff repo: delete %s: %w", t.ref, err)
	}
	return result.RowsAffected()
}

func (t *pgScopeTx) AppendHistory(ctx context.Context, entry *models.HistoryEntry) error {
	const query = `
		INSERT INTO tariff_history (action, scope, scope_key, previous_rate, new_rate, effective_from, set_by, set_by_name, set_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := t.tx.QueryRowContext(ctx, query,
		entry.Action,
		string(entry.Scope),
		entry.ScopeKey,
		entry.PreviousRate,
		entry.NewRate,
		entry.EffectiveFrom,
		entry.SetBy,
		entry.SetByName,
		entry.SetAt,
		entry.Notes,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("tariff repo: append history: %w", err)
	}
	return nil
}
