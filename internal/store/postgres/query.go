package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/MatweyL/Potok/internal/domain"
	"github.com/MatweyL/Potok/internal/store"
)

// ListTaskRuns is the paginated run query behind the read API: arbitrary
// field filters, ordering, limit and offset.
func (s *Store) ListTaskRuns(ctx context.Context, filters []store.Filter, orders []store.Order, limit, offset int) ([]domain.TaskRun, error) {
	query := "SELECT " + taskRunColumns + "\nFROM task_runs"
	where, args, err := store.SQL(filters, 1)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if where != "" {
		query += "\nWHERE " + where
	}
	if len(orders) > 0 {
		terms := make([]string, len(orders))
		for i, order := range orders {
			terms[i] = order.Field
			if order.Desc {
				terms[i] += " DESC"
			}
		}
		query += "\nORDER BY " + strings.Join(terms, ", ")
	} else {
		query += "\nORDER BY id"
	}
	next := len(args) + 1
	if limit > 0 {
		query += fmt.Sprintf("\nLIMIT $%d", next)
		args = append(args, limit)
		next++
	}
	if offset > 0 {
		query += fmt.Sprintf("\nOFFSET $%d", next)
		args = append(args, offset)
	}

	rows, err := s.db.Query(ctx, query+";", args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.TaskRun
	for rows.Next() {
		run, err := scanTaskRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
