package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"careportal/backend/services/billing-service/internal/models"
)

const defaultListLimit = 50

// TransactionRepository persists billing transactions.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository returns repository.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a new transaction and fills in created_at.
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	const query = `
		INSERT INTO billing_transactions (id, customer_id, amount, energy_kwh, rate, rate_source, rate_source_key, reference, recorded_by, created_at)
		VALUES (:id, :customer_id, :amount, :energy_kwh, :rate, :rate_source, :rate_source_key, :reference, :recorded_by, NOW())
		RETURNING created_at
	`
	rows, err := sqlx.NamedQueryContext(ctx, r.db, query, tx)
	if err != nil {
		return fmt.Errorf("billing repo: insert transaction: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&tx.CreatedAt); err != nil {
			return fmt.Errorf("billing repo: scan created_at: %w", err)
		}
	}
	return rows.Err()
}

// ListByCustomer returns latest transactions for customer.
func (r *TransactionRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	const query = `
		SELECT id, customer_id, amount, energy_kwh, rate, rate_source, rate_source_key, reference, recorded_by, created_at
		FROM billing_transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	var txs []models.Transaction
	if err := r.db.SelectContext(ctx, &txs, query, customerID, limit); err != nil {
		return nil, fmt.Errorf("billing repo: list transactions: %w", err)
	}
	return txs, nil
}
