package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a prepaid payment converted into energy credit at the customer's resolved rate.
type Transaction struct {
	ID            string          `db:"id" json:"id"`
	CustomerID    string          `db:"customer_id" json:"customer_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount_lsl"`
	EnergyKWh     decimal.Decimal `db:"energy_kwh" json:"energy_kwh"`
	Rate          decimal.Decimal `db:"rate" json:"rate_lsl"`
	RateSource    string          `db:"rate_source" json:"rate_source"`
	RateSourceKey string          `db:"rate_source_key" json:"rate_source_key"`
	Reference     string          `db:"reference" json:"reference"`
	RecordedBy    string          `db:"recorded_by" json:"recorded_by"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
