package repository

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"careportal/backend/services/tariff-service/internal/models"
)

const historyTable = "tariff_history"

// HistoryRepository reads the append-only tariff ledger. Writes go through ScopeTx.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository returns repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// ListHistory returns the filtered page, newest first, and the total number of matching rows.
func (r *HistoryRepository) ListHistory(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryEntry, int, error) {
	cb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	cb.Select("COUNT(*)").From(historyTable)
	applyHistoryFilter(cb, filter)

	countQuery, countArgs := cb.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("history repo: count: %w", err)
	}
	if total == 0 {
		return []models.HistoryEntry{}, 0, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"id", "action", "scope", "scope_key", "previous_rate", "new_rate",
		"effective_from", "set_by", "set_by_name", "set_at", "notes",
	).From(historyTable)
	applyHistoryFilter(sb, filter)
	sb.OrderBy("set_at DESC", "id DESC")
	if filter.Limit > 0 {
		sb.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		sb.Offset(filter.Offset)
	}

	query, args := sb.Build()
	entries := []models.HistoryEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("history repo: list: %w", err)
	}
	return entries, total, nil
}

func applyHistoryFilter(sb *sqlbuilder.SelectBuilder, filter models.HistoryFilter) {
	var conds []string
	if filter.Scope != "" {
		conds = append(conds, sb.Equal("scope", string(filter.Scope)))
	}
	if filter.Key != "" {
		conds = append(conds, sb.Equal("scope_key", filter.Key))
	}
	if filter.From != nil {
		conds = append(conds, sb.GreaterEqualThan("set_at", *filter.From))
	}
	if filter.To != nil {
		conds = append(conds, sb.LessEqualThan("set_at", *filter.To))
	}
	if len(conds) > 0 {
		sb.Where(conds...)
	}
}
