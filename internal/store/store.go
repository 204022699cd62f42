// Package store defines the storage-layer contracts shared by the postgres
// and in-memory implementations: field filters, ordering, and the not-found
// sentinel.
package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound reports that the requested entity does not exist.
var ErrNotFound = errors.New("entity not found")

// Op is a filter comparison operator.
type Op string

const (
	OpEQ      Op = "EQ"
	OpLT      Op = "LT"
	OpLTE     Op = "LTE"
	OpGT      Op = "GT"
	OpGTE     Op = "GTE"
	OpIsNull  Op = "IS_NULL"
	OpNotNull Op = "NOT_NULL"
	OpIn      Op = "IN"
)

// Filter is one field predicate. Value is ignored for IS_NULL/NOT_NULL and
// must be a slice for IN.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// EQ builds an equality filter.
func EQ(field string, value any) Filter { return Filter{Field: field, Op: OpEQ, Value: value} }

// LT builds a strict less-than filter.
func LT(field string, value any) Filter { return Filter{Field: field, Op: OpLT, Value: value} }

// In builds a membership filter over values.
func In[T any](field string, values []T) Filter {
	boxed := make([]any, len(values))
	for i, v := range values {
		boxed[i] = v
	}
	return Filter{Field: field, Op: OpIn, Value: boxed}
}

// Order is one ordering term for paginated queries.
type Order struct {
	Field string
	Desc  bool
}

// SQL renders filters into a WHERE fragment with positional placeholders
// starting at $startArg. Returns the fragment and the bound arguments.
// Field names come from code, never from user input.
func SQL(filters []Filter, startArg int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	var (
		terms []string
		args  []any
		next  = startArg
	)
	for _, f := range filters {
		switch f.Op {
		case OpEQ, OpLT, OpLTE, OpGT, OpGTE:
			terms = append(terms, fmt.Sprintf("%s %s $%d", f.Field, sqlOp(f.Op), next))
			args = append(args, f.Value)
			next++
		case OpIsNull:
			terms = append(terms, f.Field+" IS NULL")
		case OpNotNull:
			terms = append(terms, f.Field+" IS NOT NULL")
		case OpIn:
			values, ok := f.Value.([]any)
			if !ok {
				return "", nil, fmt.Errorf("filter %s: IN value must be a slice", f.Field)
			}
			if len(values) == 0 {
				terms = append(terms, "FALSE")
				continue
			}
			placeholders := make([]string, len(values))
			for i, v := range values {
				placeholders[i] = fmt.Sprintf("$%d", next)
				args = append(args, v)
				next++
			}
			terms = append(terms, fmt.Sprintf("%s IN (%s)", f.Field, strings.Join(placeholders, ", ")))
		default:
			return "", nil, fmt.Errorf("filter %s: unknown op %q", f.Field, f.Op)
		}
	}
	return strings.Join(terms, " AND "), args, nil
}

func sqlOp(op Op) string {
	switch op {
	case OpEQ:
		return "="
	case OpLT:
		return "<"
	case OpLTE:
		return "<="
	case OpGT:
		return ">"
	case OpGTE:
		return ">="
	}
	return "="
}
