package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"careportal/backend/services/tariff-service/internal/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HistoryReader lists the history ledger.
type HistoryReader interface {
	ListHistory(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryEntry, int, error)
}

// HistoryQuery holds raw query parameters; empty strings mean "not given".
type HistoryQuery struct {
	Page  string
	Limit string
	Scope string
	Key   string
	From  string
	To    string
}

// HistoryService serves paged history listings.
type HistoryService struct {
	reader HistoryReader
}

// NewHistoryService builds service.
func NewHistoryService(reader HistoryReader) *HistoryService {
	return &HistoryService{reader: reader}
}

// List returns one page of history, newest first.
func (s *HistoryService) List(ctx context.Context, q HistoryQuery) (*models.HistoryPage, error) {
	page, err := positiveInt("page", q.Page, 1)
	if err != nil {
		return nil, err
	}
	limit, err := positiveInt("limit", q.Limit, defaultHistoryLimit)
	if err != nil {
		return nil, err
	}
	if limit > maxHistoryLimit {
		return nil, invalid("limit", "must be at most "+strconv.Itoa(maxHistoryLimit))
	}

	filter := models.HistoryFilter{
		Key:    strings.TrimSpace(q.Key),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if raw := strings.TrimSpace(q.Scope); raw != "" {
		if filter.Scope, err = models.ParseScope(raw); err != nil {
			return nil, invalid("scope", "must be one of: global, concession, customer")
		}
	}
	if filter.From, err = timestamp("from", q.From); err != nil {
		return nil, err
	}
	if filter.To, err = timestamp("to", q.To); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, invalid("from", "must not be after to")
	}

	entries, total, err := s.reader.ListHistory(ctx, filter)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	return &models.HistoryPage{
		Entries:    entries,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

func positiveInt(field, raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, invalid(field, "must be a positive integer")
	}
	return n, nil
}

func timestamp(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, invalid(field, "must be an RFC 3339 timestamp")
	}
	t = t.UTC()
	return &t, nil
}
