// Package bunrepo exposes an existing go-repository-bun repository as a
// repository.Repository, so bun backed tables can serve as the source of a
// repositorycache.CachedRepository.
//
// Models are written with Upsert and read with List; ids are matched on a
// configurable column. Besides IDQuery the adapter interprets NativeQuery
// holding a bunrepository.SelectCriteria or a slice of them:
//
//	var active bunrepository.SelectCriteria = func(q *bun.SelectQuery) *bun.SelectQuery {
//		return q.Where("?TableAlias.active = ?", true)
//	}
//	users, err := repo.FindManyByQuery(ctx, repository.Native(active), 20)
package bunrepo

import (
	"context"

	bunrepository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-model-repository/repository"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

const backendName = "bunrepo"

// DefaultIDColumn is the column holding model ids unless configured otherwise.
const DefaultIDColumn = "id"

var _ repository.Repository[repository.Model] = (*Repository[repository.Model])(nil)

// Options configures a Repository.
type Options struct {
	// IDColumn holds the model id. Defaults to DefaultIDColumn.
	IDColumn string
	Logger   *zap.Logger
}

// Repository adapts a bunrepository.Repository[T].
type Repository[T repository.Model] struct {
	base     bunrepository.Repository[T]
	idColumn string
	logger   *zap.Logger
}

// New wraps base.
func New[T repository.Model](base bunrepository.Repository[T], opts Options) *Repository[T] {
	if opts.IDColumn == "" {
		opts.IDColumn = DefaultIDColumn
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Repository[T]{
		base:     base,
		idColumn: opts.IDColumn,
		logger:   opts.Logger,
	}
}

// Base returns the wrapped bun repository.
func (r *Repository[T]) Base() bunrepository.Repository[T] {
	return r.base
}

func (r *Repository[T]) fail(op string, err error) error {
	r.logger.Warn("bun repository operation failed", zap.String("op", op), zap.Error(err))
	return repository.StorageFailure(backendName, op, err)
}

func (r *Repository[T]) selectIDs(ids ...string) bunrepository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if len(ids) == 1 {
			return q.Where("? = ?", bun.Ident(r.idColumn), ids[0])
		}
		return q.Where("? IN (?)", bun.Ident(r.idColumn), bun.In(ids))
	}
}

func (r *Repository[T]) deleteIDs(ids ...string) bunrepository.DeleteCriteria {
	return func(q *bun.DeleteQuery) *bun.DeleteQuery {
		if len(ids) == 1 {
			return q.Where("? = ?", bun.Ident(r.idColumn), ids[0])
		}
		return q.Where("? IN (?)", bun.Ident(r.idColumn), bun.In(ids))
	}
}

func limitTo(limit int) bunrepository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Limit(limit)
	}
}

// criteria translates query into select criteria.
func (r *Repository[T]) criteria(query repository.Query) ([]bunrepository.SelectCriteria, error) {
	switch q := query.(type) {
	case repository.IDQuery:
		return []bunrepository.SelectCriteria{r.selectIDs(string(q))}, nil
	case repository.NativeQuery:
		switch v := q.Value.(type) {
		case bunrepository.SelectCriteria:
			return []bunrepository.SelectCriteria{v}, nil
		case []bunrepository.SelectCriteria:
			return v, nil
		}
	}
	return nil, repository.UnsupportedQuery(backendName, query)
}

func (r *Repository[T]) list(ctx context.Context, criteria []bunrepository.SelectCriteria, limit int) ([]T, error) {
	if repository.Reached(0, limit) {
		return nil, nil
	}
	if !repository.Unbounded(limit) {
		criteria = append(criteria[:len(criteria):len(criteria)], limitTo(limit))
	}

	models, _, err := r.base.List(ctx, criteria...)
	if err != nil {
		return nil, r.fail("list", err)
	}
	return models, nil
}

func (r *Repository[T]) first(ctx context.Context, criteria []bunrepository.SelectCriteria) (T, bool, error) {
	var zero T
	models, err := r.list(ctx, criteria, 1)
	if err != nil || len(models) == 0 {
		return zero, false, err
	}
	return models[0], true, nil
}

// Create upserts model.
func (r *Repository[T]) Create(ctx context.Context, model T) error {
	if _, err := r.base.Upsert(ctx, model); err != nil {
		return r.fail("upsert", err)
	}
	return nil
}

// Exists reports whether id is stored.
func (r *Repository[T]) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.base.Count(ctx, r.selectIDs(id))
	if err != nil {
		return false, r.fail("count", err)
	}
	return n > 0, nil
}

// Find returns the model stored under id.
func (r *Repository[T]) Find(ctx context.Context, id string) (T, bool, error) {
	return r.first(ctx, []bunrepository.SelectCriteria{r.selectIDs(id)})
}

// FindByQuery translates query into a bun WHERE clause.
func (r *Repository[T]) FindByQuery(ctx context.Context, query repository.Query) (T, bool, error) {
	criteria, err := r.criteria(query)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return r.first(ctx, criteria)
}

// FindMany returns the models stored under ids, up to limit.
func (r *Repository[T]) FindMany(ctx context.Context, ids []string, limit int) ([]T, error) {
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, []bunrepository.SelectCriteria{r.selectIDs(ids...)}, limit)
}

// FindManyByQuery returns up to limit models matching query.
func (r *Repository[T]) FindManyByQuery(ctx context.Context, query repository.Query, limit int) ([]T, error) {
	criteria, err := r.criteria(query)
	if err != nil {
		return nil, err
	}
	return r.list(ctx, criteria, limit)
}

// FindAll returns every stored model.
func (r *Repository[T]) FindAll(ctx context.Context) ([]T, error) {
	return r.list(ctx, nil, repository.NoLimit)
}

// Delete removes id. Missing ids are not an error.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	return r.DeleteMany(ctx, []string{id})
}

// DeleteByQuery removes the first model matching query.
func (r *Repository[T]) DeleteByQuery(ctx context.Context, query repository.Query) error {
	return r.DeleteManyByQuery(ctx, query, 1)
}

// DeleteMany removes every id in ids.
func (r *Repository[T]) DeleteMany(ctx context.Context, ids []string) error {
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	if err := r.base.DeleteWhere(ctx, r.deleteIDs(ids...)); err != nil {
		return r.fail("delete", err)
	}
	return nil
}

// DeleteManyByQuery resolves the ids of up to limit matches, then deletes
// them by id.
func (r *Repository[T]) DeleteManyByQuery(ctx context.Context, query repository.Query, limit int) error {
	models, err := r.FindManyByQuery(ctx, query, limit)
	if err != nil {
		return err
	}
	return r.DeleteMany(ctx, repository.IDs(models))
}
