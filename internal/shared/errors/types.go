// Package errors classifies scheduler failures so callers can decide between
// retrying at the next tick, dropping the message, and aborting the process.
package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind partitions errors by recovery policy.
type Kind int

const (
	// KindStoreTransient - connection lost, lock timeout; retry at next tick.
	KindStoreTransient Kind = iota
	// KindStoreFatal - schema mismatch, corruption; abort the process.
	KindStoreFatal
	// KindBrokerTransient - publish failed; retried with sleep, then dropped.
	KindBrokerTransient
	// KindBrokerFatal - message unpublishable; drop and mark the run ERROR.
	KindBrokerFatal
	// KindResponseMalformed - unparseable worker response; log and drop.
	KindResponseMalformed
	// KindUnknownReference - response names a run the store has never seen.
	KindUnknownReference
	// KindProgrammer - broken invariant; surfaced, the runner keeps going.
	KindProgrammer
)

// Error tags a cause with a recovery kind. Construct via the kind helpers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StoreTransient wraps a storage error that should be retried.
func StoreTransient(message string, err error) *Error {
	return &Error{Kind: KindStoreTransient, Message: message, Err: err}
}

// StoreFatal wraps a storage error the process cannot survive.
func StoreFatal(message string, err error) *Error {
	return &Error{Kind: KindStoreFatal, Message: message, Err: err}
}

// BrokerTransient wraps a publish failure worth retrying.
func BrokerTransient(message string, err error) *Error {
	return &Error{Kind: KindBrokerTransient, Message: message, Err: err}
}

// BrokerFatal wraps a message-level failure that must not be retried.
func BrokerFatal(message string, err error) *Error {
	return &Error{Kind: KindBrokerFatal, Message: message, Err: err}
}

// ResponseMalformed wraps a response body the ingestor could not decode.
func ResponseMalformed(message string, err error) *Error {
	return &Error{Kind: KindResponseMalformed, Message: message, Err: err}
}

// UnknownReference wraps a response referencing a nonexistent run.
func UnknownReference(message string, err error) *Error {
	return &Error{Kind: KindUnknownReference, Message: message, Err: err}
}

// Programmer wraps a broken invariant.
func Programmer(message string, err error) *Error {
	return &Error{Kind: KindProgrammer, Message: message, Err: err}
}

// KindOf reports the recovery kind of err. Untagged storage errors are
// classified by their postgres error class; everything else defaults to
// programmer error so broken invariants surface instead of looping silently.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	if kind, ok := classifyPg(err); ok {
		return kind
	}
	return KindProgrammer
}

// IsFatal reports whether err must abort the process.
func IsFatal(err error) bool {
	return KindOf(err) == KindStoreFatal
}

// IsRetryable reports whether err is recovered by simply trying again later.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindStoreTransient, KindBrokerTransient:
		return true
	}
	return false
}

// classifyPg maps postgres error classes onto store kinds. Connection and
// lock classes are transient; schema and integrity classes are fatal.
func classifyPg(err error) (Kind, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		if pgconn.Timeout(err) {
			return KindStoreTransient, true
		}
		return 0, false
	}
	if len(pgErr.Code) < 2 {
		return 0, false
	}
	switch pgErr.Code[:2] {
	case "08", "40", "55", "57": // connection, rollback, object-in-use, operator intervention
		return KindStoreTransient, true
	case "42", "3F", "XX": // syntax/undefined object, schema, internal corruption
		return KindStoreFatal, true
	}
	return KindStoreTransient, true
}
