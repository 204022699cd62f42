package postgres

import (
	"context"
	"fmt"

	"github.com/MatweyL/Potok/internal/domain"
)

// GetPayloads fetches payloads by id, keyed by id. Missing ids are absent
// from the result.
func (s *Store) GetPayloads(ctx context.Context, ids []int64) (map[int64]domain.Payload, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
SELECT id, data, checksum FROM payloads WHERE id = ANY($1);
`, ids)
	if err != nil {
		return nil, fmt.Errorf("get payloads: %w", err)
	}
	defer rows.Close()

	payloads := make(map[int64]domain.Payload, len(ids))
	for rows.Next() {
		var (
			payload  domain.Payload
			dataJSON []byte
		)
		if err := rows.Scan(&payload.ID, &dataJSON, &payload.Checksum); err != nil {
			return nil, fmt.Errorf("scan payload: %w", err)
		}
		if err := unmarshalInto(dataJSON, &payload.Data); err != nil {
			return nil, fmt.Errorf("payload %d data: %w", payload.ID, err)
		}
		payloads[payload.ID] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get payloads: %w", err)
	}
	return payloads, nil
}
