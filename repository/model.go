package repository

// Model is an entity with a stable, unique string identity. The id is
// assigned by the caller before the first Create and never changes.
type Model interface {
	GetID() string
}

// Lookup carries the result of a single-model lookup where absence is not an
// error. It is used where a (T, bool) pair cannot travel as one value, for
// example through a future.
type Lookup[T Model] struct {
	Model T
	Found bool
}

// IDs returns the identifiers of the given models, preserving order.
func IDs[T Model](models []T) []string {
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.GetID())
	}
	return ids
}
