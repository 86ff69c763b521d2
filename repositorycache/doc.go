// Package repositorycache provides the cached repository decorator.
//
// # Overview
//
// A CachedRepository composes two repository.Repository[T] values: a source,
// the authoritative store, and a cache, an auxiliary store whose consistency
// with the source is driven by the caller. Neither owns the other; a model
// may live in the source, the cache, both, or neither.
//
// # Basic Usage
//
//	source := mongorepo.New[*User](collection, logger)
//	hot, _ := sturdyrepo.New[*User](cache.DefaultConfig())
//
//	users := repositorycache.New[*User](source, hot, repositorycache.WithLogger(logger))
//
//	_ = users.Create(ctx, u)             // source only
//	_ = users.Cache(ctx, u)              // cache only
//	u, ok, err := users.GetOrFind(ctx, id)
//
// # Operation Matrix
//
// The plain contract (Create, Find, FindMany, Delete, ...) is served by the
// source. The cache tagged operations use the cache:
//
//   - Cache: create into the cache.
//   - Get, GetByQuery: read the cache only; a miss returns found == false.
//   - GetOrFind, GetOrFindByQuery: read the cache, fall back to the source on
//     a miss. The fallback result is NOT written back to the cache.
//   - GetMany, GetManyByQuery, GetAll: read the cache only, with no source
//     fallback.
//   - DeleteCached, DeleteByQueryCached: evict to source. The cached model is
//     removed from the cache and created in the source; a miss is a no-op.
//   - DeleteManyCached, DeleteManyByQueryCached: batch evict to source. They
//     restore whatever the cache lookup returned, without a per id check.
//
// # Known Quirks
//
// Single reads fall back to the source while batch reads do not, and single
// evictions guard on presence while batch evictions do not. Tests pin both
// behaviours.
//
// # Concurrency
//
// No atomicity is provided across the cache-then-source steps of an
// eviction: a concurrent Cache or Create may interleave with it. Callers
// coordinate when that matters. SetCacheRepository swaps the cache through
// an atomic pointer; calls already in flight finish against the repository
// they started with.
//
// # Error Handling
//
// Errors from either repository, including repository.ErrUnsupportedQuery
// and storage failures, propagate unchanged. The decorator adds no query
// validation of its own. While no cache repository is configured every cache
// operation returns ErrNoCacheRepository.
//
// # See Also
//
// For non-blocking variants of every operation see the async package.
package repositorycache
