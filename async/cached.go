package async

import (
	"context"

	"github.com/goliatone/go-model-repository/repository"
	"github.com/goliatone/go-model-repository/repositorycache"
)

// CachedRepository runs the operations of a repositorycache.CachedRepository
// on an Executor. The plain operations come from the embedded Repository.
type CachedRepository[T repository.Model] struct {
	*Repository[T]

	cached *repositorycache.CachedRepository[T]
}

// NewCached wraps cached. A nil exec gives the wrapper its own serial
// executor, released by Close.
func NewCached[T repository.Model](cached *repositorycache.CachedRepository[T], exec Executor) *CachedRepository[T] {
	return &CachedRepository[T]{
		Repository: New[T](cached, exec),
		cached:     cached,
	}
}

// Cached returns the wrapped decorator.
func (r *CachedRepository[T]) Cached() *repositorycache.CachedRepository[T] {
	return r.cached
}

// CacheAsync runs Cache on the executor.
func (r *CachedRepository[T]) CacheAsync(ctx context.Context, model T) *Future[struct{}] {
	return run(r.exec, func() error {
		return r.cached.Cache(ctx, model)
	})
}

// GetAsync runs Get on the executor.
func (r *CachedRepository[T]) GetAsync(ctx context.Context, id string) *Future[repository.Lookup[T]] {
	return Go(r.exec, func() (repository.Lookup[T], error) {
		return lookup[T](r.cached.Get(ctx, id))
	})
}

// GetOrFindAsync runs GetOrFind on the executor.
func (r *CachedRepository[T]) GetOrFindAsync(ctx context.Context, id string) *Future[repository.Lookup[T]] {
	return Go(r.exec, func() (repository.Lookup[T], error) {
		return lookup[T](r.cached.GetOrFind(ctx, id))
	})
}

// GetByQueryAsync runs GetByQuery on the executor.
func (r *CachedRepository[T]) GetByQueryAsync(ctx context.Context, query repository.Query) *Future[repository.Lookup[T]] {
	return Go(r.exec, func() (repository.Lookup[T], error) {
		return lookup[T](r.cached.GetByQuery(ctx, query))
	})
}

// GetOrFindByQueryAsync runs GetOrFindByQuery on the executor.
func (r *CachedRepository[T]) GetOrFindByQueryAsync(ctx context.Context, query repository.Query) *Future[repository.Lookup[T]] {
	return Go(r.exec, func() (repository.Lookup[T], error) {
		return lookup[T](r.cached.GetOrFindByQuery(ctx, query))
	})
}

// GetManyAsync runs GetMany on the executor.
func (r *CachedRepository[T]) GetManyAsync(ctx context.Context, ids []string, limit int) *Future[[]T] {
	return Go(r.exec, func() ([]T, error) {
		return r.cached.GetMany(ctx, ids, limit)
	})
}

// GetManyByQueryAsync runs GetManyByQuery on the executor.
func (r *CachedRepository[T]) GetManyByQueryAsync(ctx context.Context, query repository.Query, limit int) *Future[[]T] {
	return Go(r.exec, func() ([]T, error) {
		return r.cached.GetManyByQuery(ctx, query, limit)
	})
}

// GetAllAsync runs GetAll on the executor.
func (r *CachedRepository[T]) GetAllAsync(ctx context.Context) *Future[[]T] {
	return Go(r.exec, func() ([]T, error) {
		return r.cached.GetAll(ctx)
	})
}

// DeleteCachedAsync evicts id to the source on the executor.
func (r *CachedRepository[T]) DeleteCachedAsync(ctx context.Context, id string) *Future[struct{}] {
	return run(r.exec, func() error {
		return r.cached.DeleteCached(ctx, id)
	})
}

// DeleteByQueryCachedAsync runs DeleteByQueryCached on the executor.
func (r *CachedRepository[T]) DeleteByQueryCachedAsync(ctx context.Context, query repository.Query) *Future[struct{}] {
	return run(r.exec, func() error {
		return r.cached.DeleteByQueryCached(ctx, query)
	})
}

// DeleteManyCachedAsync runs DeleteManyCached on the executor.
func (r *CachedRepository[T]) DeleteManyCachedAsync(ctx context.Context, ids []string) *Future[struct{}] {
	return run(r.exec, func() error {
		return r.cached.DeleteManyCached(ctx, ids)
	})
}

// DeleteManyByQueryCachedAsync runs DeleteManyByQueryCached on the executor.
func (r *CachedRepository[T]) DeleteManyByQueryCachedAsync(ctx context.Context, query repository.Query, limit int) *Future[struct{}] {
	return run(r.exec, func() error {
		return r.cached.DeleteManyByQueryCached(ctx, query, limit)
	})
}
