// Package sturdyrepo is an in process, TTL bound repository.Repository backed
// by a sturdyc client. It is the usual cache repository of a
// repositorycache.CachedRepository.
//
// New builds a plain cache. NewLoading builds a read through cache whose Find
// loads missing ids with a Loader, remembering misses when the cache config
// enables MissingRecordStorage.
package sturdyrepo

import (
	"context"
	"errors"
	"slices"

	"github.com/goliatone/go-model-repository/cache"
	"github.com/goliatone/go-model-repository/repository"
	"github.com/viccon/sturdyc"
	"go.uber.org/zap"
)

const backendName = "sturdyrepo"

var _ repository.Repository[repository.Model] = (*Repository[repository.Model])(nil)

// Loader resolves a model that is not cached yet.
type Loader[T repository.Model] func(ctx context.Context, id string) (T, bool, error)

// SourceLoader loads missing ids from source.
func SourceLoader[T repository.Model](source repository.Repository[T]) Loader[T] {
	return source.Find
}

// Option configures a Repository.
type Option func(*settings)

type settings struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for loader failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Repository stores models in a sturdyc client keyed by id. Entries expire
// after the configured TTL and may be evicted when the cache is full.
type Repository[T repository.Model] struct {
	client *sturdyc.Client[T]
	loader Loader[T]
	logger *zap.Logger
}

// New validates cfg and returns a plain cache repository.
func New[T repository.Model](cfg cache.Config, opts ...Option) (*Repository[T], error) {
	client, err := cache.NewClient[T](cfg)
	if err != nil {
		return nil, err
	}
	return NewWithClient(client, opts...), nil
}

// NewLoading validates cfg and returns a cache repository that loads
// missing ids through loader on Find.
func NewLoading[T repository.Model](cfg cache.Config, loader Loader[T], opts ...Option) (*Repository[T], error) {
	if loader == nil {
		return nil, errors.New("sturdyrepo: loader is required")
	}
	r, err := New[T](cfg, opts...)
	if err != nil {
		return nil, err
	}
	r.loader = loader
	return r, nil
}

// NewWithClient wraps an existing client.
func NewWithClient[T repository.Model](client *sturdyc.Client[T], opts ...Option) *Repository[T] {
	s := settings{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return &Repository[T]{client: client, logger: s.logger}
}

// Client exposes the underlying sturdyc client.
func (r *Repository[T]) Client() *sturdyc.Client[T] {
	return r.client
}

// Len returns the number of cached entries.
func (r *Repository[T]) Len() int {
	return r.client.Size()
}

// Create caches model under its id.
func (r *Repository[T]) Create(_ context.Context, model T) error {
	r.client.Set(model.GetID(), model)
	return nil
}

// Exists reports whether id is cached. It never triggers the loader.
func (r *Repository[T]) Exists(_ context.Context, id string) (bool, error) {
	_, ok := r.client.Get(id)
	return ok, nil
}

// Find reads the cache, loading from the source in loading mode.
func (r *Repository[T]) Find(ctx context.Context, id string) (T, bool, error) {
	if r.loader == nil {
		model, ok := r.client.Get(id)
		return model, ok, nil
	}
	return r.load(ctx, id)
}

func (r *Repository[T]) load(ctx context.Context, id string) (T, bool, error) {
	var zero T

	model, err := r.client.GetOrFetch(ctx, id, func(ctx context.Context) (T, error) {
		loaded, found, err := r.loader(ctx, id)
		if err != nil {
			return zero, err
		}
		if !found {
			return zero, sturdyc.ErrNotFound
		}
		return loaded, nil
	})

	switch {
	case err == nil:
		return model, true, nil
	case errors.Is(err, sturdyc.ErrNotFound), errors.Is(err, sturdyc.ErrMissingRecord):
		return zero, false, nil
	default:
		r.logger.Warn("loading model into cache failed", zap.String("id", id), zap.Error(err))
		return zero, false, repository.StorageFailure(backendName, "load", err)
	}
}

// FindByQuery returns the first model matching query.
func (r *Repository[T]) FindByQuery(ctx context.Context, query repository.Query) (T, bool, error) {
	var zero T
	if id, ok := query.(repository.IDQuery); ok {
		return r.Find(ctx, string(id))
	}

	found, err := r.scan(query, 1)
	if err != nil || len(found) == 0 {
		return zero, false, err
	}
	return found[0], true, nil
}

// FindMany resolves ids in order, loading missing ones in loading mode.
func (r *Repository[T]) FindMany(ctx context.Context, ids []string, limit int) ([]T, error) {
	var out []T
	for _, id := range repository.UniqueIDs(ids) {
		if repository.Reached(len(out), limit) {
			break
		}
		model, found, err := r.Find(ctx, id)
		if err != nil {
			return out, err
		}
		if found {
			out = append(out, model)
		}
	}
	return out, nil
}

// FindManyByQuery resolves an IDQuery like FindMany, loading in loading
// mode. Other queries scan cached entries only.
func (r *Repository[T]) FindManyByQuery(ctx context.Context, query repository.Query, limit int) ([]T, error) {
	if id, ok := query.(repository.IDQuery); ok {
		return r.FindMany(ctx, []string{string(id)}, limit)
	}
	return r.scan(query, limit)
}

// FindAll returns every cached entry ordered by id.
func (r *Repository[T]) FindAll(_ context.Context) ([]T, error) {
	keys := r.keys()
	out := make([]T, 0, len(keys))
	for _, key := range keys {
		if model, ok := r.client.Get(key); ok {
			out = append(out, model)
		}
	}
	return out, nil
}

// Delete evicts id from the cache.
func (r *Repository[T]) Delete(_ context.Context, id string) error {
	r.client.Delete(id)
	return nil
}

// DeleteByQuery removes the first cached model matching query.
func (r *Repository[T]) DeleteByQuery(_ context.Context, query repository.Query) error {
	found, err := r.scan(query, 1)
	if err != nil {
		return err
	}
	for _, model := range found {
		r.client.Delete(model.GetID())
	}
	return nil
}

// DeleteMany evicts every id in ids.
func (r *Repository[T]) DeleteMany(_ context.Context, ids []string) error {
	for _, id := range ids {
		r.client.Delete(id)
	}
	return nil
}

// DeleteManyByQuery removes up to limit models matching query.
func (r *Repository[T]) DeleteManyByQuery(_ context.Context, query repository.Query, limit int) error {
	found, err := r.scan(query, limit)
	if err != nil {
		return err
	}
	for _, model := range found {
		r.client.Delete(model.GetID())
	}
	return nil
}

// keys returns the cached ids sorted, so repeated scans over unchanged
// contents pick the same models.
func (r *Repository[T]) keys() []string {
	keys := r.client.ScanKeys()
	slices.Sort(keys)
	return keys
}

// scan evaluates query over cached entries in id order; the loader is not
// used.
func (r *Repository[T]) scan(query repository.Query, limit int) ([]T, error) {
	match, err := repository.Matcher[T](backendName, query)
	if err != nil {
		return nil, err
	}

	var out []T
	for _, key := range r.keys() {
		if repository.Reached(len(out), limit) {
			break
		}
		if model, ok := r.client.Get(key); ok && match(model) {
			out = append(out, model)
		}
	}
	return out, nil
}
