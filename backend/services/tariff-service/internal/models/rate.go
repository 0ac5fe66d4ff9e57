package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Scope is the level a tariff rate applies at.
type Scope string

const (
	ScopeGlobal     Scope = "global"
	ScopeConcession Scope = "concession"
	ScopeCustomer   Scope = "customer"
)

// ParseScope accepts the lowercase scope names used on the wire.
func ParseScope(raw string) (Scope, error) {
	switch s := Scope(strings.ToLower(strings.TrimSpace(raw))); s {
	case ScopeGlobal, ScopeConcession, ScopeCustomer:
		return s, nil
	default:
		return "", fmt.Errorf("unknown scope %q", raw)
	}
}

// ScopeRef addresses one rate key: the global rate, one concession or one customer.
type ScopeRef struct {
	Scope Scope
	Key   string
}

// GlobalRef is the single global scope key.
var GlobalRef = ScopeRef{Scope: ScopeGlobal}

// String renders the ref as global, concession:<code> or customer:<id>.
func (r ScopeRef) String() string {
	if r.Scope == ScopeGlobal {
		return string(ScopeGlobal)
	}
	return string(r.Scope) + ":" + r.Key
}

// Actor is the identity recorded on every write.
type Actor struct {
	ID   string
	Name string
}

// RateRecord is one effective-dated version of a rate for a scope key.
type RateRecord struct {
	ID            string          `db:"id" json:"id"`
	Scope         Scope           `db:"scope" json:"scope"`
	ScopeKey      string          `db:"scope_key" json:"scope_key"`
	Rate          decimal.Decimal `db:"rate" json:"rate_lsl"`
	EffectiveFrom time.Time       `db:"effective_from" json:"effective_from"`
	SetBy         string          `db:"set_by" json:"set_by"`
	SetByName     string          `db:"set_by_name" json:"set_by_name"`
	SetAt         time.Time       `db:"set_at" json:"set_at"`
	Notes         string          `db:"notes" json:"notes"`
}

// Ref returns the scope key the record belongs to.
func (r RateRecord) Ref() ScopeRef {
	return ScopeRef{Scope: r.Scope, Key: r.ScopeKey}
}

// ActiveAt reports whether the record has taken effect at t.
func (r RateRecord) ActiveAt(t time.Time) bool {
	return !r.EffectiveFrom.After(t)
}

// ActiveRecord picks the version in effect at now: the latest effective_from not after now.
// Ties go to the later set_at, then to the later element of records.
func ActiveRecord(records []RateRecord, now time.Time) (RateRecord, bool) {
	var (
		best  RateRecord
		found bool
	)
	for _, rec := range records {
		if !rec.ActiveAt(now) {
			continue
		}
		if !found || supersedes(rec, best) {
			best = rec
			found = true
		}
	}
	return best, found
}

func supersedes(candidate, current RateRecord) bool {
	if !candidate.EffectiveFrom.Equal(current.EffectiveFrom) {
		return candidate.EffectiveFrom.After(current.EffectiveFrom)
	}
	return !candidate.SetAt.Before(current.SetAt)
}

// PendingRecords returns the versions that have not taken effect yet, soonest first.
func PendingRecords(records []RateRecord, now time.Time) []RateRecord {
	var pending []RateRecord
	for _, rec := range records {
		if !rec.ActiveAt(now) {
			pending = append(pending, rec)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].EffectiveFrom.Before(pending[j].EffectiveFrom)
	})
	return pending
}

// GroupByKey splits records into per-key slices, preserving order within each key.
func GroupByKey(records []RateRecord) map[string][]RateRecord {
	out := make(map[string][]RateRecord)
	for _, rec := range records {
		out[rec.ScopeKey] = append(out[rec.ScopeKey], rec)
	}
	return out
}
