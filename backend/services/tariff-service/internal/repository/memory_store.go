package repository

import (
	"context"
	"sort"
	"sync"

	"careportal/backend/services/tariff-service/internal/models"
)

// MemoryStore keeps rates, history and the customer directory in process. It backs tests and
// the `memory` storage driver; writes are serialized and applied atomically at commit.
type MemoryStore struct {
	txMu sync.Mutex

	mu          sync.RWMutex
	records     []models.RateRecord
	history     []models.HistoryEntry
	nextID      int64
	customers   map[string]string
	concessions map[string]struct{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers:   make(map[string]string),
		concessions: make(map[string]struct{}),
	}
}

// AddConcession registers a concession code.
func (s *MemoryStore) AddConcession(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.concessions[code] = struct{}{}
}

// AddCustomer registers a customer, optionally attached to a concession.
func (s *MemoryStore) AddCustomer(customerID, concessionCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[customerID] = concessionCode
	if concessionCode != "" {
		s.concessions[concessionCode] = struct{}{}
	}
}

// ConcessionFor implements the directory lookup.
func (s *MemoryStore) ConcessionFor(_ context.Context, customerID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.customers[customerID]
	if !ok {
		return "", ErrCustomerNotFound
	}
	return code, nil
}

// ConcessionExists implements the directory lookup.
func (s *MemoryStore) ConcessionExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.concessions[code]
	return ok, nil
}

// RecordsFor returns every version of refs, oldest effective first.
func (s *MemoryStore) RecordsFor(_ context.Context, refs []models.ScopeRef) ([]models.RateRecord, error) {
	want := make(map[models.ScopeRef]struct{}, len(refs))
	for _, ref := range refs {
		want[ref] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RateRecord
	for _, rec := range s.records {
		if _, ok := want[rec.Ref()]; ok {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

// ListScope returns every version stored at scope.
func (s *MemoryStore) ListScope(_ context.Context, scope models.Scope) ([]models.RateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RateRecord
	for _, rec := range s.records {
		if rec.Scope == scope {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

// WithScopeTx stages fn's writes and applies them only if fn succeeds.
func (s *MemoryStore) WithScopeTx(ctx context.Context, ref models.ScopeRef, fn func(tx ScopeTx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryScopeTx{store: s, ref: ref}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.deleted {
		kept := s.records[:0:0]
		for _, rec := range s.records {
			if rec.Ref() != ref {
				kept = append(kept, rec)
			}
		}
		s.records = kept
	}
	s.records = append(s.records, tx.inserted...)
	for _, entry := range tx.history {
		s.nextID++
		entry.ID = s.nextID
		*entry.target = entry.HistoryEntry
		s.history = append(s.history, entry.HistoryEntry)
	}
	return nil
}

// ListHistory returns the filtered page, newest first, and the total number of matches.
func (s *MemoryStore) ListHistory(_ context.Context, filter models.HistoryFilter) ([]models.HistoryEntry, int, error) {
	s.mu.RLock()
	matched := make([]models.HistoryEntry, 0, len(s.history))
	for _, entry := range s.history {
		if filter.Matches(entry) {
			matched = append(matched, entry)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].SetAt.Equal(matched[j].SetAt) {
			return matched[i].SetAt.After(matched[j].SetAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := min(filter.Offset, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func sortRecords(records []models.RateRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.ScopeKey != b.ScopeKey {
			return a.ScopeKey < b.ScopeKey
		}
		if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
			return a.EffectiveFrom.Before(b.EffectiveFrom)
		}
		return a.SetAt.Before(b.SetAt)
	})
}

type stagedEntry struct {
	models.HistoryEntry
	target *models.HistoryEntry
}

type memoryScopeTx struct {
	store    *MemoryStore
	ref      models.ScopeRef
	deleted  bool
	inserted []models.RateRecord
	history  []stagedEntry
}

func (t *memoryScopeTx) Records(ctx context.Context) ([]models.RateRecord, error) {
	var out []models.RateRecord
	if !t.deleted {
		committed, err := t.store.RecordsFor(ctx, []models.ScopeRef{t.ref})
		if err != nil {
			return nil, err
		}
		out = append(out, committed...)
	}
	out = append(out, t.inserted...)
	sortRecords(out)
	return out, nil
}

func (t *memoryScopeTx) InsertRecord(_ context.Context, record *models.RateRecord) error {
	t.inserted = append(t.inserted, *record)
	return nil
}

func (t *memoryScopeTx) DeleteRecords(ctx context.Context) (int64, error) {
	current, err := t.Records(ctx)
	if err != nil {
		return 0, err
	}
	t.deleted = true
	t.inserted = nil
	return int64(len(current)), nil
}

func (t *memoryScopeTx) AppendHistory(_ context.Context, entry *models.HistoryEntry) error {
	t.history = append(t.history, stagedEntry{HistoryEntry: *entry, target: entry})
	return nil
}
