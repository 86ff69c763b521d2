package async

import (
	"context"

	"github.com/goliatone/go-model-repository/repository"
)

// Repository runs the operations of a repository.Repository[T] on an
// Executor.
type Repository[T repository.Model] struct {
	repo  repository.Repository[T]
	exec  Executor
	owned bool
}

// New wraps repo. A nil exec gives the wrapper its own serial executor,
// released by Close.
func New[T repository.Model](repo repository.Repository[T], exec Executor) *Repository[T] {
	r := &Repository[T]{repo: repo, exec: exec}
	if r.exec == nil {
		r.exec = NewSerialExecutor()
		r.owned = true
	}
	return r
}

// Sync returns the wrapped repository.
func (r *Repository[T]) Sync() repository.Repository[T] {
	return r.repo
}

// Executor returns the executor running the async operations.
func (r *Repository[T]) Executor() Executor {
	return r.exec
}

// Close releases the executor if the wrapper created it. A shared executor
// is left to its owner.
func (r *Repository[T]) Close() error {
	if r.owned {
		return r.exec.Close()
	}
	return nil
}

func lookup[T repository.Model](model T, found bool, err error) (repository.Lookup[T], error) {
	if err != nil {
		return repository.Lookup[T]{}, err
	}
	return repository.Lookup[T]{Model: model, Found: found}, nil
}

func run(exec Executor, fn func() error) *Future[struct{}] {
	return Go(exec, func() (struct{}, error) {
		return struct{}{}, fn()
	})
}

// CreateAsync runs Create on the executor.
func (r *Repository[T]) CreateAsync(ctx context.Context, model T) *Future[struct{}] {
	return run(r.exec, func() error {
		return r.repo.Create(ctx, model)
	})
}

// ExistsAsync runs Exists on the executor.
func (r *Repository[T]) ExistsAsync(ctx context.Context, id string) *Future[bool] {
	return Go(r.exec, func() (bool, error) {
		return r.repo.Exists(ctx, id)
	})
}

// FindAsync runs Find on the executor.
func (r *Repository[T]) FindAsync(ctx context.Context, id string) *Future[repository.Lookup[T]] {
	return Go(r.exec, func() (repository.Lookup[T], error) {
		return lookup[T](r.repo.Find(ctx, id))
	})
}

// FindByQueryAsync runs FindByQuery on the executor.
func (r *Repository[T]) FindByQueryAsync(ctx context.Context, query repository.Query) *Future[repository.Lookup[T]] {
	return Go(r.exec, func() (repository.Lookup[T], error) {
		return lookup[T](r.repo.FindByQuery(ctx, query))
	})
}

// FindManyAsync runs FindMany on the executor.
func (r *Repository[T]) FindManyAsync(ctx context.Context, ids []string, limit int) *Future[[]T] {
	return Go(r.exec, func() ([]T, error) {
		return r.repo.FindMany(ctx, ids, limit)
	})
}

// FindManyByQueryAsync runs FindManyByQuery on the executor.
func (r *Repository[T]) FindManyByQueryAsync(ctx context.Context, query repository.Query, limit int) *Future[[]T] {
	return Go(r.exec, func() ([]T, error) {
		return r.repo.FindManyByQuery(ctx, query, limit)
	})
}

// FindAllAsync runs FindAll on the executor.
func (r *Repository[T]) FindAllAsync(ctx context.Context) *Future[[]T] {
	return Go(r.exec, func() ([]T, error) {
		return r.repo.FindAll(ctx)
	})
}

// DeleteAsync runs Delete on the executor.
func (r *Repository[T]) DeleteAsync(ctx context.Context, id string) *Future[struct{}] {
	return run(r.exec, func() error {
		return r.repo.Delete(ctx, id)
	})
}

// DeleteByQueryAsync runs DeleteByQuery on the executor.
func (r *Repository[T]) DeleteByQueryAsync(ctx context.Context, query repository.Query) *Future[struct{}] {
	return run(r.exec, func() error {
		return r.repo.DeleteByQuery(ctx, query)
	})
}

// DeleteManyAsync runs DeleteMany on the executor.
func (r *Repository[T]) DeleteManyAsync(ctx context.Context, ids []string) *Future[struct{}] {
	return run(r.exec, func() error {
		return r.repo.DeleteMany(ctx, ids)
	})
}

// DeleteManyByQueryAsync runs DeleteManyByQuery on the executor.
func (r *Repository[T]) DeleteManyByQueryAsync(ctx context.Context, query repository.Query, limit int) *Future[struct{}] {
	return run(r.exec, func() error {
		return r.repo.DeleteManyByQuery(ctx, query, limit)
	})
}
