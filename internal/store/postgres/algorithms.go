package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MatweyL/Potok/internal/domain"
	"github.com/MatweyL/Potok/internal/store"
)

// CreateAlgorithm persists a monitoring algorithm and returns it with its
// assigned id.
func (s *Store) CreateAlgorithm(ctx context.Context, algorithm domain.MonitoringAlgorithm) (domain.MonitoringAlgorithm, error) {
	timeoutsJSON, err := jsonBytes(algorithm.Timeouts)
	if err != nil {
		return domain.MonitoringAlgorithm{}, fmt.Errorf("algorithm timeouts: %w", err)
	}
	if err := s.db.QueryRow(ctx, `
INSERT INTO monitoring_algorithms (type, timeout, timeouts, timeout_noise)
VALUES ($1, $2, $3, $4)
RETURNING id;
`, string(algorithm.Type), algorithm.Timeout, timeoutsJSON, algorithm.TimeoutNoise).Scan(&algorithm.ID); err != nil {
		return domain.MonitoringAlgorithm{}, fmt.Errorf("insert algorithm: %w", err)
	}
	return algorithm, nil
}

// GetAlgorithm fetches one monitoring algorithm by id.
func (s *Store) GetAlgorithm(ctx context.Context, id int64) (domain.MonitoringAlgorithm, error) {
	var (
		algorithm    domain.MonitoringAlgorithm
		timeoutsJSON []byte
	)
	err := s.db.QueryRow(ctx, `
SELECT id, type, timeout, timeouts, timeout_noise FROM monitoring_algorithms WHERE id = $1;
`, id).Scan(&algorithm.ID, &algorithm.Type, &algorithm.Timeout, &timeoutsJSON, &algorithm.TimeoutNoise)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MonitoringAlgorithm{}, store.ErrNotFound
	}
	if err != nil {
		return domain.MonitoringAlgorithm{}, fmt.Errorf("get algorithm %d: %w", id, err)
	}
	if err := unmarshalInto(timeoutsJSON, &algorithm.Timeouts); err != nil {
		return domain.MonitoringAlgorithm{}, fmt.Errorf("algorithm %d timeouts: %w", id, err)
	}
	return algorithm, nil
}
