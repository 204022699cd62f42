package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestKindOfTagged(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
	}{
		{StoreTransient("append log", stderrors.New("conn reset")), KindStoreTransient},
		{StoreFatal("schema", nil), KindStoreFatal},
		{BrokerTransient("publish", nil), KindBrokerTransient},
		{BrokerFatal("too large", nil), KindBrokerFatal},
		{ResponseMalformed("decode", nil), KindResponseMalformed},
		{UnknownReference("run 9", nil), KindUnknownReference},
		{Programmer("negative batch", nil), KindProgrammer},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, KindOf(c.err))
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("dispatch tick: %w", StoreTransient("update runs", stderrors.New("broken pipe")))
	assert.Equal(t, KindStoreTransient, KindOf(err))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsFatal(err))
}

func TestKindOfPgErrors(t *testing.T) {
	conn := &pgconn.PgError{Code: "08006"} // connection_failure
	assert.Equal(t, KindStoreTransient, KindOf(fmt.Errorf("query: %w", conn)))

	undefined := &pgconn.PgError{Code: "42P01"} // undefined_table
	assert.Equal(t, KindStoreFatal, KindOf(undefined))
	assert.True(t, IsFatal(undefined))
}

func TestKindOfUnknownDefaultsToProgrammer(t *testing.T) {
	assert.Equal(t, KindProgrammer, KindOf(stderrors.New("unexpected")))
}

func TestErrorFormatting(t *testing.T) {
	err := StoreTransient("append log", stderrors.New("conn reset"))
	assert.Equal(t, "append log: conn reset", err.Error())
	assert.Equal(t, "conn reset", stderrors.Unwrap(err).Error())
	assert.Equal(t, "schema", StoreFatal("schema", nil).Error())
}
