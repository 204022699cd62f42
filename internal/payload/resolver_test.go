package payload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatweyL/Potok/internal/domain"
)

type countingReader struct {
	payloads map[int64]domain.Payload
	queried  [][]int64
}

func (r *countingReader) GetPayloads(_ context.Context, ids []int64) (map[int64]domain.Payload, error) {
	r.queried = append(r.queried, ids)
	result := make(map[int64]domain.Payload)
	for _, id := range ids {
		if payload, ok := r.payloads[id]; ok {
			result[id] = payload
		}
	}
	return result, nil
}

func TestResolveBatchesMissesAndCaches(t *testing.T) {
	reader := &countingReader{payloads: map[int64]domain.Payload{
		1: {ID: 1, Checksum: "a"},
		2: {ID: 2, Checksum: "b"},
	}}
	resolver, err := NewResolver(reader, 16)
	require.NoError(t, err)

	result, err := resolver.Resolve(context.Background(), []int64{1, 2, 1})
	require.NoError(t, err)
	assert.Len(t, result, 2)
	require.Len(t, reader.queried, 1)
	assert.ElementsMatch(t, []int64{1, 2}, reader.queried[0])

	// second call is served from cache
	result, err = resolver.Resolve(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.Len(t, result, 2)
	assert.Len(t, reader.queried, 1)
}

func TestResolveUnknownIDsAbsent(t *testing.T) {
	reader := &countingReader{payloads: map[int64]domain.Payload{1: {ID: 1}}}
	resolver, err := NewResolver(reader, 16)
	require.NoError(t, err)

	result, err := resolver.Resolve(context.Background(), []int64{1, 99})
	require.NoError(t, err)
	assert.Contains(t, result, int64(1))
	assert.NotContains(t, result, int64(99))
}
