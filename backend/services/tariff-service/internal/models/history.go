package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// History actions.
const (
	HistoryActionSet    = "set"
	HistoryActionDelete = "delete"
)

// HistoryEntry is an immutable ledger row written once per mutating call.
// NewRate is zero when the entry records an override removal.
type HistoryEntry struct {
	ID            int64               `db:"id" json:"id"`
	Action        string              `db:"action" json:"action"`
	Scope         Scope               `db:"scope" json:"scope"`
	ScopeKey      string              `db:"scope_key" json:"scope_key"`
	PreviousRate  decimal.NullDecimal `db:"previous_rate" json:"previous_rate"`
	NewRate       decimal.Decimal     `db:"new_rate" json:"new_rate"`
	EffectiveFrom time.Time           `db:"effective_from" json:"effective_from"`
	SetBy         string              `db:"set_by" json:"set_by"`
	SetByName     string              `db:"set_by_name" json:"set_by_name"`
	SetAt         time.Time           `db:"set_at" json:"set_at"`
	Notes         string              `db:"notes" json:"notes"`
}

// HistoryFilter narrows a history listing. Zero values mean "no filter".
type HistoryFilter struct {
	Scope  Scope
	Key    string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// Matches applies the filter predicate (not the paging) to one entry.
func (f HistoryFilter) Matches(e HistoryEntry) bool {
	if f.Scope != "" && e.Scope != f.Scope {
		return false
	}
	if f.Key != "" && e.ScopeKey != f.Key {
		return false
	}
	if f.From != nil && e.SetAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.SetAt.After(*f.To) {
		return false
	}
	return true
}

// HistoryPage is one page of history, newest first.
type HistoryPage struct {
	Entries    []HistoryEntry `json:"entries"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}
