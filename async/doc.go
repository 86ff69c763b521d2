// Package async runs repository operations on an Executor and hands back
// futures.
//
// Repository wraps any repository.Repository[T] and exposes an *Async form of
// every operation. CachedRepository does the same for a
// repositorycache.CachedRepository[T], adding the cache operations. Each
// async form resolves to exactly what its synchronous form returns; single
// lookups resolve to a repository.Lookup[T] so the found flag travels with
// the model.
//
// Executors
//
// There is no process wide default executor. A wrapper built with a nil
// executor owns a private serial executor and releases it on Close:
//
//	repo := async.New[User](source, nil)
//	defer repo.Close()
//
//	lookup, err := repo.FindAsync(ctx, "user-1").Await(ctx)
//
// Share a pool between wrappers with NewPoolExecutor; the caller then owns
// its lifetime:
//
//	pool := async.NewPoolExecutor(4)
//	defer pool.Close()
//
//	users := async.New[User](userRepo, pool)
//	orders := async.New[Order](orderRepo, pool)
//
// Submitting to a closed executor resolves the future with ErrExecutorClosed.
// A task that panics resolves its future with an error matching
// ErrTaskPanicked; the worker keeps running.
package async
