package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(rate string, effective, setAt time.Time) RateRecord {
	return RateRecord{
		Scope:         ScopeConcession,
		ScopeKey:      "MAK",
		Rate:          decimal.RequireFromString(rate),
		EffectiveFrom: effective,
		SetAt:         setAt,
	}
}

func TestActiveRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("latest effective wins regardless of write order", func(t *testing.T) {
		records := []RateRecord{
			record("6.00", now.Add(-time.Hour), now.Add(-time.Minute)),
			record("5.00", now.Add(-48*time.Hour), now),
		}
		got, ok := ActiveRecord(records, now)
		require.True(t, ok)
		assert.True(t, decimal.RequireFromString("6.00").Equal(got.Rate))
	})

	t.Run("future records are ignored", func(t *testing.T) {
		records := []RateRecord{
			record("5.00", now.Add(-time.Hour), now.Add(-time.Hour)),
			record("9.00", now.Add(time.Hour), now),
		}
		got, ok := ActiveRecord(records, now)
		require.True(t, ok)
		assert.True(t, decimal.RequireFromString("5.00").Equal(got.Rate))
	})

	t.Run("effective exactly now is active", func(t *testing.T) {
		got, ok := ActiveRecord([]RateRecord{record("7.00", now, now)}, now)
		require.True(t, ok)
		assert.True(t, decimal.RequireFromString("7.00").Equal(got.Rate))
	})

	t.Run("ties resolve to the later write", func(t *testing.T) {
		records := []RateRecord{
			record("5.00", now.Add(-time.Hour), now.Add(-time.Minute)),
			record("5.50", now.Add(-time.Hour), now),
			record("5.75", now.Add(-time.Hour), now),
		}
		got, ok := ActiveRecord(records, now)
		require.True(t, ok)
		assert.True(t, decimal.RequireFromString("5.75").Equal(got.Rate))
	})

	t.Run("only pending", func(t *testing.T) {
		_, ok := ActiveRecord([]RateRecord{record("5.00", now.Add(time.Second), now)}, now)
		assert.False(t, ok)
	})
}

func TestPendingRecordsSortedSoonestFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []RateRecord{
		record("8.00", now.Add(48*time.Hour), now),
		record("5.00", now.Add(-time.Hour), now),
		record("7.00", now.Add(time.Hour), now),
	}

	pending := PendingRecords(records, now)
	require.Len(t, pending, 2)
	assert.True(t, decimal.RequireFromString("7.00").Equal(pending[0].Rate))
	assert.True(t, decimal.RequireFromString("8.00").Equal(pending[1].Rate))
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope(" Concession ")
	require.NoError(t, err)
	assert.Equal(t, ScopeConcession, s)

	_, err = ParseScope("country")
	assert.Error(t, err)
}

func TestScopeRefString(t *testing.T) {
	assert.Equal(t, "global", GlobalRef.String())
	assert.Equal(t, "customer:cust-1", ScopeRef{Scope: ScopeCustomer, Key: "cust-1"}.String())
}

func TestHistoryFilterMatches(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := HistoryEntry{Scope: ScopeCustomer, ScopeKey: "c-1", SetAt: at}

	before, after := at.Add(-time.Minute), at.Add(time.Minute)
	assert.True(t, HistoryFilter{}.Matches(entry))
	assert.True(t, HistoryFilter{Scope: ScopeCustomer, Key: "c-1", From: &at, To: &at}.Matches(entry))
	assert.False(t, HistoryFilter{Scope: ScopeGlobal}.Matches(entry))
	assert.False(t, HistoryFilter{Key: "c-2"}.Matches(entry))
	assert.False(t, HistoryFilter{From: &after}.Matches(entry))
	assert.False(t, HistoryFilter{To: &before}.Matches(entry))
}
