package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careportal/backend/services/tariff-service/internal/models"
)

func rateAt(scope models.Scope, key, rate string, effective time.Time) models.RateRecord {
	return models.RateRecord{Scope: scope, ScopeKey: key, Rate: dec(rate), EffectiveFrom: effective, SetAt: effective}
}

func TestCascadeRefs(t *testing.T) {
	refs := cascadeRefs(DefaultCascade, resolveTarget{CustomerID: "c-1", ConcessionCode: "MAK"})
	assert.Equal(t, []models.ScopeRef{
		{Scope: models.ScopeCustomer, Key: "c-1"},
		{Scope: models.ScopeConcession, Key: "MAK"},
		models.GlobalRef,
	}, refs)

	refs = cascadeRefs(DefaultCascade, resolveTarget{CustomerID: "c-1"})
	assert.Len(t, refs, 2)
}

func TestWalkCascadeFirstActiveLevelWins(t *testing.T) {
	now := epoch
	target := resolveTarget{CustomerID: "c-1", ConcessionCode: "MAK"}

	cases := []struct {
		name    string
		records []models.RateRecord
		want    models.Scope
		rate    string
	}{
		{
			name: "global only",
			records: []models.RateRecord{
				rateAt(models.ScopeGlobal, "", "5.00", now.Add(-time.Hour)),
			},
			want: models.ScopeGlobal,
			rate: "5.00",
		},
		{
			name: "concession beats global",
			records: []models.RateRecord{
				rateAt(models.ScopeGlobal, "", "5.00", now.Add(-time.Hour)),
				rateAt(models.ScopeConcession, "MAK", "6.00", now.Add(-time.Hour)),
			},
			want: models.ScopeConcession,
			rate: "6.00",
		},
		{
			name: "customer beats everything",
			records: []models.RateRecord{
				rateAt(models.ScopeGlobal, "", "5.00", now.Add(-time.Hour)),
				rateAt(models.ScopeConcession, "MAK", "6.00", now.Add(-time.Hour)),
				rateAt(models.ScopeCustomer, "c-1", "7.50", now.Add(-time.Hour)),
			},
			want: models.ScopeCustomer,
			rate: "7.50",
		},
		{
			name: "pending customer does not win",
			records: []models.RateRecord{
				rateAt(models.ScopeGlobal, "", "5.00", now.Add(-time.Hour)),
				rateAt(models.ScopeCustomer, "c-1", "7.50", now.Add(time.Hour)),
			},
			want: models.ScopeGlobal,
			rate: "5.00",
		},
		{
			name: "other keys are ignored",
			records: []models.RateRecord{
				rateAt(models.ScopeGlobal, "", "5.00", now.Add(-time.Hour)),
				rateAt(models.ScopeConcession, "HA-NKU", "6.00", now.Add(-time.Hour)),
				rateAt(models.ScopeCustomer, "c-2", "7.50", now.Add(-time.Hour)),
			},
			want: models.ScopeGlobal,
			rate: "5.00",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := walkCascade(DefaultCascade, target, tc.records, now)
			require.NotNil(t, res.winner)
			assert.Equal(t, tc.want, res.winner.Scope)
			requireRate(t, tc.rate, res.winner.Rate)

			applied := 0
			for _, level := range res.levels {
				if level.Applied {
					applied++
					assert.Equal(t, tc.want, level.Scope)
				}
			}
			assert.Equal(t, 1, applied)
		})
	}
}

func TestWalkCascadeCustomOrder(t *testing.T) {
	now := epoch
	records := []models.RateRecord{
		rateAt(models.ScopeGlobal, "", "5.00", now.Add(-time.Hour)),
		rateAt(models.ScopeCustomer, "c-1", "7.50", now.Add(-time.Hour)),
	}

	res := walkCascade([]ScopeLookup{GlobalScope{}, CustomerScope{}}, resolveTarget{CustomerID: "c-1"}, records, now)
	require.NotNil(t, res.winner)
	assert.Equal(t, models.ScopeGlobal, res.winner.Scope)
}

func TestWalkCascadeWithoutGlobal(t *testing.T) {
	res := walkCascade(DefaultCascade, resolveTarget{CustomerID: "c-1"}, nil, epoch)
	assert.Nil(t, res.winner)
	assert.Len(t, res.levels, 3)
}
