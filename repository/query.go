package repository

import "fmt"

// Query is a backend-interpreted lookup value. The set of variants is closed:
// IDQuery, PredicateQuery and NativeQuery.
type Query interface {
	queryKind() string
}

// IDQuery selects the model with the given identifier.
type IDQuery string

func (IDQuery) queryKind() string { return "id" }

// String returns the identifier.
func (q IDQuery) String() string { return string(q) }

// PredicateQuery selects models for which the function returns true. It can
// only be evaluated by backends that hold decoded models in process or can
// decode them while scanning.
type PredicateQuery[T Model] func(T) bool

func (PredicateQuery[T]) queryKind() string { return "predicate" }

// NativeQuery wraps a backend specific filter, e.g. a bson.M for MongoDB or
// bun select criteria for SQL backends.
type NativeQuery struct {
	Value any
}

func (NativeQuery) queryKind() string { return "native" }

// ByID builds an IDQuery.
func ByID(id string) Query {
	return IDQuery(id)
}

// Where builds a PredicateQuery over models of type T.
func Where[T Model](fn func(T) bool) Query {
	return PredicateQuery[T](fn)
}

// Native builds a NativeQuery around a backend specific value.
func Native(v any) Query {
	return NativeQuery{Value: v}
}

// DescribeQuery renders a query for error messages and logs.
func DescribeQuery(q Query) string {
	switch v := q.(type) {
	case nil:
		return "nil"
	case IDQuery:
		return "id:" + string(v)
	case NativeQuery:
		return fmt.Sprintf("native:%T", v.Value)
	default:
		return q.queryKind()
	}
}

// Matcher resolves q into an in process match function, for backends that
// evaluate queries over decoded models. IDQuery and PredicateQuery[T] are
// supported; anything else fails with UnsupportedQuery(backend, q).
func Matcher[T Model](backend string, q Query) (func(T) bool, error) {
	switch v := q.(type) {
	case IDQuery:
		id := string(v)
		return func(m T) bool { return m.GetID() == id }, nil
	case PredicateQuery[T]:
		if v == nil {
			return nil, UnsupportedQuery(backend, q)
		}
		return v, nil
	default:
		return nil, UnsupportedQuery(backend, q)
	}
}
