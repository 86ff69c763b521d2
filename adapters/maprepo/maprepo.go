// Package maprepo is an in memory repository.Repository backed by a
// concurrent map. It supports IDQuery and PredicateQuery[T].
package maprepo

import (
	"context"

	"github.com/goliatone/go-model-repository/repository"
	"github.com/puzpuzpuz/xsync/v3"
)

const backendName = "maprepo"

var _ repository.Repository[repository.Model] = (*Repository[repository.Model])(nil)

// Repository keeps models in a xsync.MapOf keyed by id. Iteration order is
// unspecified.
type Repository[T repository.Model] struct {
	models *xsync.MapOf[string, T]
}

// New returns an empty repository.
func New[T repository.Model]() *Repository[T] {
	return &Repository[T]{models: xsync.NewMapOf[string, T]()}
}

// Len returns the number of stored models.
func (r *Repository[T]) Len() int {
	return r.models.Size()
}

// Create stores model, replacing any model with the same id.
func (r *Repository[T]) Create(_ context.Context, model T) error {
	r.models.Store(model.GetID(), model)
	return nil
}

// Exists reports whether id is stored.
func (r *Repository[T]) Exists(_ context.Context, id string) (bool, error) {
	_, ok := r.models.Load(id)
	return ok, nil
}

// Find returns the model stored under id.
func (r *Repository[T]) Find(_ context.Context, id string) (T, bool, error) {
	model, ok := r.models.Load(id)
	return model, ok, nil
}

// FindByQuery returns the first model matching query.
func (r *Repository[T]) FindByQuery(_ context.Context, query repository.Query) (T, bool, error) {
	var zero T
	found, err := r.scan(query, 1)
	if err != nil || len(found) == 0 {
		return zero, false, err
	}
	return found[0], true, nil
}

// FindMany returns the models stored under ids, up to limit.
func (r *Repository[T]) FindMany(_ context.Context, ids []string, limit int) ([]T, error) {
	var out []T
	for _, id := range repository.UniqueIDs(ids) {
		if repository.Reached(len(out), limit) {
			break
		}
		if model, ok := r.models.Load(id); ok {
			out = append(out, model)
		}
	}
	return out, nil
}

// FindManyByQuery returns up to limit models matching query.
func (r *Repository[T]) FindManyByQuery(_ context.Context, query repository.Query, limit int) ([]T, error) {
	return r.scan(query, limit)
}

// FindAll returns every model in map order.
func (r *Repository[T]) FindAll(_ context.Context) ([]T, error) {
	out := make([]T, 0, r.models.Size())
	r.models.Range(func(_ string, model T) bool {
		out = append(out, model)
		return true
	})
	return out, nil
}

// Delete removes id. Missing ids are not an error.
func (r *Repository[T]) Delete(_ context.Context, id string) error {
	r.models.Delete(id)
	return nil
}

// DeleteByQuery removes the first model matching query.
func (r *Repository[T]) DeleteByQuery(_ context.Context, query repository.Query) error {
	found, err := r.scan(query, 1)
	if err != nil {
		return err
	}
	r.deleteModels(found)
	return nil
}

// DeleteMany removes every id in ids.
func (r *Repository[T]) DeleteMany(_ context.Context, ids []string) error {
	for _, id := range ids {
		r.models.Delete(id)
	}
	return nil
}

// DeleteManyByQuery removes up to limit models matching query.
func (r *Repository[T]) DeleteManyByQuery(_ context.Context, query repository.Query, limit int) error {
	found, err := r.scan(query, limit)
	if err != nil {
		return err
	}
	r.deleteModels(found)
	return nil
}

func (r *Repository[T]) deleteModels(models []T) {
	for _, model := range models {
		r.models.Delete(model.GetID())
	}
}

func (r *Repository[T]) scan(query repository.Query, limit int) ([]T, error) {
	match, err := repository.Matcher[T](backendName, query)
	if err != nil {
		return nil, err
	}

	if id, ok := query.(repository.IDQuery); ok {
		model, found := r.models.Load(string(id))
		if !found || repository.Reached(0, limit) {
			return nil, nil
		}
		return []T{model}, nil
	}

	var out []T
	r.models.Range(func(_ string, model T) bool {
		if repository.Reached(len(out), limit) {
			return false
		}
		if match(model) {
			out = append(out, model)
		}
		return true
	})
	return out, nil
}
