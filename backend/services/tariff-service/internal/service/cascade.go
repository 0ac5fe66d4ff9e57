package service

import (
	"time"

	"github.com/shopspring/decimal"

	"careportal/backend/services/tariff-service/internal/models"
)

// resolveTarget is what a resolution is computed for.
type resolveTarget struct {
	CustomerID     string
	ConcessionCode string
}

// ScopeLookup is one step of the precedence walk. KeyFor reports false when the step does not
// apply to the target (a customer without a concession has no concession step).
type ScopeLookup interface {
	Scope() models.Scope
	KeyFor(target resolveTarget) (string, bool)
}

// CustomerScope looks up the customer's own override.
type CustomerScope struct{}

func (CustomerScope) Scope() models.Scope { return models.ScopeCustomer }

func (CustomerScope) KeyFor(target resolveTarget) (string, bool) {
	return target.CustomerID, target.CustomerID != ""
}

// ConcessionScope looks up the override of the customer's concession.
type ConcessionScope struct{}

func (ConcessionScope) Scope() models.Scope { return models.ScopeConcession }

func (ConcessionScope) KeyFor(target resolveTarget) (string, bool) {
	return target.ConcessionCode, target.ConcessionCode != ""
}

// GlobalScope always applies.
type GlobalScope struct{}

func (GlobalScope) Scope() models.Scope { return models.ScopeGlobal }

func (GlobalScope) KeyFor(resolveTarget) (string, bool) { return "", true }

// DefaultCascade is the precedence order; the first lookup with an active record wins.
var DefaultCascade = []ScopeLookup{CustomerScope{}, ConcessionScope{}, GlobalScope{}}

type cascadeResult struct {
	winner  *models.RateRecord
	levels  []models.CascadeLevel
	pending []models.RateRecord
}

// cascadeRefs lists the scope keys the cascade consults for target.
func cascadeRefs(cascade []ScopeLookup, target resolveTarget) []models.ScopeRef {
	refs := make([]models.ScopeRef, 0, len(cascade))
	for _, lookup := range cascade {
		if key, ok := lookup.KeyFor(target); ok {
			refs = append(refs, models.ScopeRef{Scope: lookup.Scope(), Key: key})
		}
	}
	return refs
}

// walkCascade evaluates every level against records: the first level with an active version
// wins, the others are still reported so callers can see what each scope would contribute.
func walkCascade(cascade []ScopeLookup, target resolveTarget, records []models.RateRecord, now time.Time) cascadeResult {
	byRef := make(map[models.ScopeRef][]models.RateRecord)
	for _, rec := range records {
		byRef[rec.Ref()] = append(byRef[rec.Ref()], rec)
	}

	var res cascadeResult
	for _, lookup := range cascade {
		key, ok := lookup.KeyFor(target)
		level := models.CascadeLevel{Scope: lookup.Scope(), Key: key}
		if !ok {
			res.levels = append(res.levels, level)
			continue
		}

		versions := byRef[models.ScopeRef{Scope: lookup.Scope(), Key: key}]
		res.pending = append(res.pending, models.PendingRecords(versions, now)...)

		if active, found := models.ActiveRecord(versions, now); found {
			effective := active.EffectiveFrom
			level.Rate = decimal.NullDecimal{Decimal: active.Rate, Valid: true}
			level.EffectiveFrom = &effective
			if res.winner == nil {
				res.winner = &active
				level.Applied = true
			}
		}
		res.levels = append(res.levels, level)
	}
	return res
}
