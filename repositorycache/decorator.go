package repositorycache

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/goliatone/go-model-repository/repository"
	"go.uber.org/zap"
)

// Interface assertion to ensure CachedRepository implements Repository[T]
var _ repository.Repository[repository.Model] = (*CachedRepository[repository.Model])(nil)

// ErrNoCacheRepository is returned by cache operations while no cache
// repository is configured.
var ErrNoCacheRepository = errors.New("repositorycache: no cache repository configured")

// cacheSlot lets the cache repository be swapped with a single atomic store.
type cacheSlot[T repository.Model] struct {
	repo repository.Repository[T]
}

// CachedRepository decorates a source repository with a cache repository.
//
// The embedded source serves the plain Repository contract. The Get, Cache
// and *Cached operations work against the cache repository.
type CachedRepository[T repository.Model] struct {
	repository.Repository[T]

	cache  atomic.Pointer[cacheSlot[T]]
	logger *zap.Logger
}

// New creates a CachedRepository reading through cacheRepo in front of
// source. cacheRepo may be nil and set later with SetCacheRepository.
func New[T repository.Model](source repository.Repository[T], cacheRepo repository.Repository[T], opts ...Option) *CachedRepository[T] {
	s := newSettings(opts)

	c := &CachedRepository[T]{
		Repository: source,
		logger:     s.logger,
	}
	c.cache.Store(&cacheSlot[T]{repo: cacheRepo})

	return c
}

// Source returns the repository serving the plain contract.
func (c *CachedRepository[T]) Source() repository.Repository[T] {
	return c.Repository
}

// CacheRepository returns the repository currently serving cache operations.
func (c *CachedRepository[T]) CacheRepository() repository.Repository[T] {
	if slot := c.cache.Load(); slot != nil {
		return slot.repo
	}
	return nil
}

// SetCacheRepository swaps the repository serving subsequent cache
// operations. Content of the previous cache is neither migrated nor cleared.
// Operations already in flight keep the repository they started with.
func (c *CachedRepository[T]) SetCacheRepository(cacheRepo repository.Repository[T]) {
	c.cache.Store(&cacheSlot[T]{repo: cacheRepo})
	c.logger.Debug("cache repository replaced", zap.Bool("configured", cacheRepo != nil))
}

func (c *CachedRepository[T]) cacheRepo() (repository.Repository[T], error) {
	slot := c.cache.Load()
	if slot == nil || slot.repo == nil {
		return nil, ErrNoCacheRepository
	}
	return slot.repo, nil
}

// Cache stores model in the cache repository only.
func (c *CachedRepository[T]) Cache(ctx context.Context, model T) error {
	cache, err := c.cacheRepo()
	if err != nil {
		return err
	}
	return cache.Create(ctx, model)
}

// Get looks id up in the cache repository only. A miss is not an error.
func (c *CachedRepository[T]) Get(ctx context.Context, id string) (T, bool, error) {
	cache, err := c.cacheRepo()
	if err != nil {
		var zero T
		return zero, false, err
	}
	return cache.Find(ctx, id)
}

// GetOrFind looks id up in the cache and falls back to the source on a miss.
// The fallback result is not written to the cache; call Cache to populate it.
func (c *CachedRepository[T]) GetOrFind(ctx context.Context, id string) (T, bool, error) {
	model, found, err := c.Get(ctx, id)
	if err != nil || found {
		return model, found, err
	}
	return c.Repository.Find(ctx, id)
}

// GetByQuery runs query against the cache repository only.
func (c *CachedRepository[T]) GetByQuery(ctx context.Context, query repository.Query) (T, bool, error) {
	cache, err := c.cacheRepo()
	if err != nil {
		var zero T
		return zero, false, err
	}
	return cache.FindByQuery(ctx, query)
}

// GetOrFindByQuery runs query against the cache and falls back to the source
// on a miss, without populating the cache.
func (c *CachedRepository[T]) GetOrFindByQuery(ctx context.Context, query repository.Query) (T, bool, error) {
	model, found, err := c.GetByQuery(ctx, query)
	if err != nil || found {
		return model, found, err
	}
	return c.Repository.FindByQuery(ctx, query)
}

// GetMany reads ids from the cache repository only. Unlike GetOrFind there
// is no source fallback for batch reads.
func (c *CachedRepository[T]) GetMany(ctx context.Context, ids []string, limit int) ([]T, error) {
	cache, err := c.cacheRepo()
	if err != nil {
		return nil, err
	}
	return cache.FindMany(ctx, ids, limit)
}

// GetManyByQuery runs query against the cache repository only.
func (c *CachedRepository[T]) GetManyByQuery(ctx context.Context, query repository.Query, limit int) ([]T, error) {
	cache, err := c.cacheRepo()
	if err != nil {
		return nil, err
	}
	return cache.FindManyByQuery(ctx, query, limit)
}

// GetAll returns every model held by the cache repository.
func (c *CachedRepository[T]) GetAll(ctx context.Context) ([]T, error) {
	cache, err := c.cacheRepo()
	if err != nil {
		return nil, err
	}
	return cache.FindAll(ctx)
}

// DeleteCached evicts id from the cache into the source: the cached model is
// removed from the cache and created in the source. A cache miss is a no-op.
func (c *CachedRepository[T]) DeleteCached(ctx context.Context, id string) error {
	cache, err := c.cacheRepo()
	if err != nil {
		return err
	}

	model, found, err := cache.Find(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	if err := cache.Delete(ctx, id); err != nil {
		return err
	}
	if err := c.Repository.Create(ctx, model); err != nil {
		return err
	}

	c.logger.Debug("evicted cached model to source", zap.String("id", id))
	return nil
}

// DeleteCachedModel evicts model by id, see DeleteCached.
func (c *CachedRepository[T]) DeleteCachedModel(ctx context.Context, model T) error {
	return c.DeleteCached(ctx, model.GetID())
}

// DeleteByQueryCached evicts the first cache match of query into the source.
// No match is a no-op.
func (c *CachedRepository[T]) DeleteByQueryCached(ctx context.Context, query repository.Query) error {
	cache, err := c.cacheRepo()
	if err != nil {
		return err
	}

	model, found, err := cache.FindByQuery(ctx, query)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	if err := cache.DeleteByQuery(ctx, query); err != nil {
		return err
	}
	if err := c.Repository.Create(ctx, model); err != nil {
		return err
	}

	c.logger.Debug("evicted cached model to source",
		zap.String("id", model.GetID()),
		zap.String("query", repository.DescribeQuery(query)),
	)
	return nil
}

// DeleteManyCached evicts ids from the cache into the source. It works on
// whatever the cache returns for ids; there is no per id presence check.
func (c *CachedRepository[T]) DeleteManyCached(ctx context.Context, ids []string) error {
	cache, err := c.cacheRepo()
	if err != nil {
		return err
	}

	models, err := cache.FindMany(ctx, ids, repository.NoLimit)
	if err != nil {
		return err
	}
	if err := cache.DeleteMany(ctx, ids); err != nil {
		return err
	}

	return c.restore(ctx, models)
}

// DeleteManyByQueryCached evicts at most limit cache matches of query into
// the source.
func (c *CachedRepository[T]) DeleteManyByQueryCached(ctx context.Context, query repository.Query, limit int) error {
	cache, err := c.cacheRepo()
	if err != nil {
		return err
	}

	models, err := cache.FindManyByQuery(ctx, query, limit)
	if err != nil {
		return err
	}
	if err := cache.DeleteManyByQuery(ctx, query, limit); err != nil {
		return err
	}

	return c.restore(ctx, models)
}

// restore recreates evicted models in the source, stopping at the first
// failure. Models restored before it stay in the source.
func (c *CachedRepository[T]) restore(ctx context.Context, models []T) error {
	for i, model := range models {
		if err := c.Repository.Create(ctx, model); err != nil {
			c.logger.Warn("restoring evicted models to source failed",
				zap.Int("restored", i),
				zap.Int("evicted", len(models)),
				zap.Error(err),
			)
			return err
		}
	}

	if len(models) > 0 {
		c.logger.Debug("evicted cached models to source", zap.Int("count", len(models)))
	}
	return nil
}
