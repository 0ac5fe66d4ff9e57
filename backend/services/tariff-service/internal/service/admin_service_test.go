package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"careportal/backend/services/tariff-service/internal/models"
	"careportal/backend/services/tariff-service/internal/repository"
)

func TestSetRateRecordsPreviousRate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "5.00")

	first, err := f.admin.SetConcessionRate(ctx, "MAK", SetRateInput{Rate: dec("6.00"), Notes: " winter ", Actor: operator})
	require.NoError(t, err)
	assert.False(t, first.History.PreviousRate.Valid)
	requireRate(t, "6.00", first.History.NewRate)
	assert.Equal(t, models.HistoryActionSet, first.History.Action)
	assert.Equal(t, "winter", first.Record.Notes)
	assert.Equal(t, "Palesa", first.Record.SetByName)
	assert.NotEmpty(t, first.Record.ID)
	assert.NotZero(t, first.History.ID)

	second, err := f.admin.SetConcessionRate(ctx, "MAK", SetRateInput{Rate: dec("6.50"), Actor: operator})
	require.NoError(t, err)
	require.True(t, second.History.PreviousRate.Valid)
	requireRate(t, "6.00", second.History.PreviousRate.Decimal)
	assert.Greater(t, second.History.ID, first.History.ID)

	global, err := f.admin.SetGlobalRate(ctx, SetRateInput{Rate: dec("5.25"), Actor: operator})
	require.NoError(t, err)
	requireRate(t, "5.00", global.History.PreviousRate.Decimal)
	assert.Empty(t, global.Record.ScopeKey)
}

func TestPreviousRateMatchesResolutionBeforeWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "5.00")

	_, err := f.admin.SetCustomerRate(ctx, "cust-plain", SetRateInput{Rate: dec("4.40"), Actor: operator})
	require.NoError(t, err)

	before, err := f.resolver.Resolve(ctx, "cust-plain")
	require.NoError(t, err)

	res, err := f.admin.SetCustomerRate(ctx, "cust-plain", SetRateInput{Rate: dec("4.10"), Actor: operator})
	require.NoError(t, err)
	requireRate(t, before.Rate.String(), res.History.PreviousRate.Decimal)
}

func TestPendingWriteLeavesActiveRateAsPrevious(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "5.00")

	future := epoch.Add(24 * time.Hour)
	pending, err := f.admin.SetGlobalRate(ctx, SetRateInput{Rate: dec("5.80"), EffectiveFrom: &future, Actor: operator})
	require.NoError(t, err)
	assert.True(t, pending.Record.EffectiveFrom.Equal(future))
	assert.True(t, pending.History.EffectiveFrom.Equal(future))

	// the pending 5.80 is not active yet, so 5.00 is still what gets replaced
	next, err := f.admin.SetGlobalRate(ctx, SetRateInput{Rate: dec("5.10"), Actor: operator})
	require.NoError(t, err)
	requireRate(t, "5.00", next.History.PreviousRate.Decimal)
}

func TestSetGlobalRateRejectsNegativeRate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "5.00")

	before, err := f.resolver.Current(ctx)
	require.NoError(t, err)
	historyBefore := f.allHistory(t)

	_, err = f.admin.SetGlobalRate(ctx, SetRateInput{Rate: dec("-1"), Actor: operator})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "rate_lsl", verr.Field)

	after, err := f.resolver.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, historyBefore, f.allHistory(t))
}

func TestSetRateValidation(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name  string
		call  func(a *AdminService) error
		field string
	}{
		{
			name: "zero rate",
			call: func(a *AdminService) error {
				_, err := a.SetCustomerRate(ctx, "cust-plain", SetRateInput{Rate: dec("0"), Actor: operator})
				return err
			},
			field: "rate_lsl",
		},
		{
			name: "too many decimals",
			call: func(a *AdminService) error {
				_, err := a.SetGlobalRate(ctx, SetRateInput{Rate: dec("5.12345"), Actor: operator})
				return err
			},
			field: "rate_lsl",
		},
		{
			name: "blank concession code",
			call: func(a *AdminService) error {
				_, err := a.SetConcessionRate(ctx, "   ", SetRateInput{Rate: dec("5"), Actor: operator})
				return err
			},
			field: "code",
		},
		{
			name: "long customer id",
			call: func(a *AdminService) error {
				_, err := a.SetCustomerRate(ctx, strings.Repeat("c", 65), SetRateInput{Rate: dec("5"), Actor: operator})
				return err
			},
			field: "customer_id",
		},
		{
			name: "long notes",
			call: func(a *AdminService) error {
				_, err := a.SetGlobalRate(ctx, SetRateInput{Rate: dec("5"), Notes: strings.Repeat("n", 501), Actor: operator})
				return err
			},
			field: "notes",
		},
		{
			name: "missing actor",
			call: func(a *AdminService) error {
				_, err := a.SetGlobalRate(ctx, SetRateInput{Rate: dec("5")})
				return err
			},
			field: "set_by",
		},
		{
			name: "delete without key",
			call: func(a *AdminService) error {
				_, err := a.DeleteCustomerOverride(ctx, "", operator)
				return err
			},
			field: "customer_id",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, "5.00")
			historyBefore := f.allHistory(t)

			err := tc.call(f.admin)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.Equal(t, historyBefore, f.allHistory(t))
		})
	}
}

func TestSetRateUnknownTargets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "5.00")

	_, err := f.admin.SetConcessionRate(ctx, "NOPE", SetRateInput{Rate: dec("5"), Actor: operator})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.admin.SetCustomerRate(ctx, "ghost", SetRateInput{Rate: dec("5"), Actor: operator})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Len(t, f.allHistory(t), 1)
}

func TestDeleteOverride(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to global without concession override", func(t *testing.T) {
		f := newFixture(t, "5.00")
		_, err := f.admin.SetCustomerRate(ctx, "cust-in-MAK", SetRateInput{Rate: dec("3.00"), Actor: operator})
		require.NoError(t, err)

		res, err := f.admin.DeleteCustomerOverride(ctx, "cust-in-MAK", operator)
		require.NoError(t, err)
		assert.Nil(t, res.Record)
		assert.Equal(t, models.HistoryActionDelete, res.History.Action)
		assert.True(t, res.History.NewRate.IsZero())
		requireRate(t, "3.00", res.History.PreviousRate.Decimal)
		assert.NotZero(t, res.History.ID)

		got, err := f.resolver.Resolve(ctx, "cust-in-MAK")
		require.NoError(t, err)
		requireRate(t, "5.00", got.Rate)
		assert.Equal(t, models.ScopeGlobal, got.Source)
	})

	t.Run("removes pending versions too", func(t *testing.T) {
		f := newFixture(t, "5.00")
		future := epoch.Add(time.Hour * 72)
		_, err := f.admin.SetConcessionRate(ctx, "MAK", SetRateInput{Rate: dec("6.00"), EffectiveFrom: &future, Actor: operator})
		require.NoError(t, err)

		res, err := f.admin.DeleteConcessionOverride(ctx, "MAK", operator)
		require.NoError(t, err)
		assert.False(t, res.History.PreviousRate.Valid)

		current, err := f.resolver.Current(ctx)
		require.NoError(t, err)
		assert.Empty(t, current.ConcessionOverrides)
	})

	t.Run("missing override writes nothing", func(t *testing.T) {
		f := newFixture(t, "5.00")
		_, err := f.admin.DeleteConcessionOverride(ctx, "MAK", operator)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Len(t, f.allHistory(t), 1)
	})
}

func TestEveryWriteAppendsExactlyOneHistoryEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "5.00")

	_, err := f.admin.SetConcessionRate(ctx, "MAK", SetRateInput{Rate: dec("6.00"), Actor: operator})
	require.NoError(t, err)
	_, err = f.admin.SetCustomerRate(ctx, "cust-in-MAK", SetRateInput{Rate: dec("7.50"), Actor: operator})
	require.NoError(t, err)
	_, err = f.admin.DeleteCustomerOverride(ctx, "cust-in-MAK", operator)
	require.NoError(t, err)
	_, err = f.admin.SetGlobalRate(ctx, SetRateInput{Rate: dec("-3"), Actor: operator})
	require.Error(t, err)

	entries := f.allHistory(t)
	require.Len(t, entries, 4)
	assert.Equal(t, models.HistoryActionDelete, entries[0].Action)
	assert.Equal(t, "cust-in-MAK", entries[0].ScopeKey)
	assert.Equal(t, models.ScopeGlobal, entries[3].Scope)
}

func TestConcurrentWritesFormUnbrokenHistoryChain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "5.00")

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rate := dec(fmt.Sprintf("%d.25", i+1))
			_, err := f.admin.SetConcessionRate(ctx, "MAK", SetRateInput{Rate: rate, Actor: operator})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entries, total, err := f.store.ListHistory(ctx, models.HistoryFilter{Scope: models.ScopeConcession, Key: "MAK"})
	require.NoError(t, err)
	require.Equal(t, writers, total)

	// newest first: each entry's previous rate is the next-older entry's new rate
	for i := 0; i < len(entries)-1; i++ {
		require.True(t, entries[i].PreviousRate.Valid)
		requireRate(t, entries[i+1].NewRate.String(), entries[i].PreviousRate.Decimal)
	}
	assert.False(t, entries[len(entries)-1].PreviousRate.Valid)

	got, err := f.resolver.Resolve(ctx, "cust-in-MAK")
	require.NoError(t, err)
	requireRate(t, entries[0].NewRate.String(), got.Rate)
}

func TestEnsureGlobalRate(t *testing.T) {
	ctx := context.Background()

	t.Run("writes when empty", func(t *testing.T) {
		f := newFixture(t, "")
		written, err := f.admin.EnsureGlobalRate(ctx, dec("4.75"))
		require.NoError(t, err)
		assert.True(t, written)

		entries := f.allHistory(t)
		require.Len(t, entries, 1)
		assert.Equal(t, "system", entries[0].SetBy)
		assert.False(t, entries[0].PreviousRate.Valid)

		got, err := f.resolver.Resolve(ctx, "cust-plain")
		require.NoError(t, err)
		requireRate(t, "4.75", got.Rate)
	})

	t.Run("keeps existing global", func(t *testing.T) {
		f := newFixture(t, "5.00")
		written, err := f.admin.EnsureGlobalRate(ctx, dec("4.75"))
		require.NoError(t, err)
		assert.False(t, written)
		assert.Len(t, f.allHistory(t), 1)
	})

	t.Run("rejects invalid default", func(t *testing.T) {
		f := newFixture(t, "")
		_, err := f.admin.EnsureGlobalRate(ctx, dec("0"))
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

type failingWriter struct{ err error }

func (w failingWriter) WithScopeTx(context.Context, models.ScopeRef, func(repository.ScopeTx) error) error {
	return w.err
}

type busyLocker struct{}

func (busyLocker) Lock(context.Context, string) (func(), error) {
	return nil, fmt.Errorf("%w: held elsewhere", ErrConflict)
}

func TestSetRatePropagatesStoreAndLockErrors(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	storeErr := errors.New("connection reset")
	admin := NewAdminService(failingWriter{err: storeErr}, store, NewLocalLocker(time.Second), nil, zap.NewNop())
	_, err := admin.SetGlobalRate(ctx, SetRateInput{Rate: dec("5"), Actor: operator})
	assert.ErrorIs(t, err, storeErr)

	admin = NewAdminService(store, store, busyLocker{}, nil, zap.NewNop())
	_, err = admin.SetGlobalRate(ctx, SetRateInput{Rate: dec("5"), Actor: operator})
	assert.ErrorIs(t, err, ErrConflict)

	entries, total, err := store.ListHistory(ctx, models.HistoryFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, entries)
}
