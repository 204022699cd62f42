// Package postgres persists tasks, task runs, payloads, monitoring
// algorithms, status logs, and collection progress in Postgres. Every method
// that writes more than one row runs in a single transaction.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MatweyL/Potok/internal/shared/logging"
)

// pool abstracts the subset of pgxpool.Pool used by the store for easier testing.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Store is the single persistence gateway of the scheduler.
type Store struct {
	db     pool
	logger logging.Logger
}

// New builds a Store backed by the provided connection pool.
func New(db pool) (*Store, error) {
	if db == nil {
		return nil, errors.New("postgres store requires pool")
	}
	return &Store{db: db, logger: logging.NewComponentLogger("PostgresStore")}, nil
}

func jsonBytes(value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return raw, nil
}

func unmarshalInto(raw []byte, target any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, target)
}

func statusStrings[S ~string](statuses []S) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
