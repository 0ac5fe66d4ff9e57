package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// CustomerRepository is the read side of the customer/concession directory.
type CustomerRepository struct {
	db *sqlx.DB
}

// NewCustomerRepository returns repository.
func NewCustomerRepository(db *sqlx.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// ConcessionFor returns the concession code of a customer, or "" if it has none.
func (r *CustomerRepository) ConcessionFor(ctx context.Context, customerID string) (string, error) {
	const query = `
		SELECT concession_code
		FROM customers
		WHERE id = $1
		LIMIT 1
	`
	var code sql.NullString
	if err := r.db.QueryRowxContext(ctx, query, customerID).Scan(&code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrCustomerNotFound
		}
		return "", err
	}
	return code.String, nil
}

// ConcessionExists reports whether code is a known concession.
func (r *CustomerRepository) ConcessionExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM concessions WHERE code = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		return false, err
	}
	return exists, nil
}
