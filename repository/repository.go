package repository

import "context"

// Repository is the CRUD contract over a collection of models of type T.
//
// Every operation may be called concurrently. Absence is reported through
// boolean results or empty slices, never through an error. Backends reject
// query variants they cannot interpret with ErrUnsupportedQuery and wrap I/O
// failures with StorageFailure.
type Repository[T Model] interface {
	// Create upserts model under its own id.
	Create(ctx context.Context, model T) error

	Exists(ctx context.Context, id string) (bool, error)

	// Find returns the model stored under id, or false when there is none.
	Find(ctx context.Context, id string) (T, bool, error)

	// FindByQuery returns the first match in implementation defined order.
	FindByQuery(ctx context.Context, query Query) (T, bool, error)

	// FindMany returns the stored models whose id is in ids, truncated to
	// limit entries. Ids without a stored model are omitted.
	FindMany(ctx context.Context, ids []string, limit int) ([]T, error)

	FindManyByQuery(ctx context.Context, query Query, limit int) ([]T, error)

	FindAll(ctx context.Context) ([]T, error)

	// Delete removes the model stored under id. Missing ids are a no-op.
	Delete(ctx context.Context, id string) error

	// DeleteByQuery removes the first match of query.
	DeleteByQuery(ctx context.Context, query Query) error

	DeleteMany(ctx context.Context, ids []string) error

	// DeleteManyByQuery removes at most limit matches of query.
	DeleteManyByQuery(ctx context.Context, query Query, limit int) error
}

// ExistsModel reports whether a model with m's id is stored in r.
func ExistsModel[T Model](ctx context.Context, r Repository[T], m T) (bool, error) {
	return r.Exists(ctx, m.GetID())
}

// DeleteModel removes m from r by id.
func DeleteModel[T Model](ctx context.Context, r Repository[T], m T) error {
	return r.Delete(ctx, m.GetID())
}

// CreateMany creates every model in order, stopping at the first error.
// Models created before the failure stay stored.
func CreateMany[T Model](ctx context.Context, r Repository[T], models []T) error {
	for _, m := range models {
		if err := r.Create(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
