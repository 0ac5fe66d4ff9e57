package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CascadeLevel reports what one scope level would contribute to a resolution.
type CascadeLevel struct {
	Scope         Scope               `json:"scope"`
	Key           string              `json:"key"`
	Rate          decimal.NullDecimal `json:"rate"`
	EffectiveFrom *time.Time          `json:"effective_from"`
	Applied       bool                `json:"applied"`
}

// ResolvedRate is the rate in effect for one customer and where it came from.
// Cascade is ordered customer, concession, global.
type ResolvedRate struct {
	CustomerID     string          `json:"customer_id"`
	ConcessionCode string          `json:"concession_code"`
	Rate           decimal.Decimal `json:"rate"`
	Source         Scope           `json:"source"`
	SourceKey      string          `json:"source_key"`
	EffectiveFrom  time.Time       `json:"effective_from"`
	Cascade        []CascadeLevel  `json:"cascade"`
	Pending        []RateRecord    `json:"pending"`
}

// OverrideView is a concession or customer override version as listed by the current tariff view.
type OverrideView struct {
	RateRecord
	Pending bool `json:"pending"`
}

// CurrentTariff is the snapshot served by GET /tariff/current.
type CurrentTariff struct {
	GlobalRate            *RateRecord    `json:"global_rate"`
	PendingGlobal         *RateRecord    `json:"pending_global"`
	ConcessionOverrides   []OverrideView `json:"concession_overrides"`
	CustomerOverrides     []OverrideView `json:"customer_overrides"`
	CustomerOverrideCount int            `json:"customer_override_count"`
}
