// Package badgerrepo stores encoded models in an embedded Badger database
// under keys shaped namespace:type:id, each with an optional TTL. It supports
// IDQuery and PredicateQuery[T]; predicates decode every entry of the
// namespace while iterating.
package badgerrepo

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goliatone/go-model-repository/cache"
	"github.com/goliatone/go-model-repository/codec"
	"github.com/goliatone/go-model-repository/repository"
	"go.uber.org/zap"
)

const backendName = "badgerrepo"

var _ repository.Repository[repository.Model] = (*Repository[repository.Model])(nil)

// Config holds database and keying settings.
type Config struct {
	Path       string        `mapstructure:"path"`
	InMemory   bool          `mapstructure:"in_memory"`
	Namespace  string        `mapstructure:"namespace"`
	TTL        time.Duration `mapstructure:"ttl"`
	Codec      string        `mapstructure:"codec"`
	GCInterval time.Duration `mapstructure:"gc_interval"`
}

// DefaultConfig returns an in memory database without expiry.
func DefaultConfig() Config {
	return Config{
		InMemory:   true,
		Namespace:  "models",
		Codec:      "msgpack",
		GCInterval: 5 * time.Minute,
	}
}

// Open opens the database described by cfg with badger logging disabled.
func Open(cfg Config) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, repository.StorageFailure(backendName, "open", err)
	}
	return db, nil
}

// RunGC runs value log garbage collection every interval until ctx ends.
func RunGC(ctx context.Context, db *badger.DB, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				logger.Warn("badger value log gc failed", zap.Error(err))
			}
		}
	}
}

// Options configures a Repository.
type Options struct {
	// Namespace is the first key segment.
	Namespace string
	// TTL expires every written entry. Zero keeps entries forever.
	TTL time.Duration
	// Keys overrides the key layout derived from Namespace and T.
	Keys   cache.KeySerializer
	Logger *zap.Logger
}

// Repository stores models as Badger entries. The database is owned by the
// caller.
type Repository[T repository.Model] struct {
	db     *badger.DB
	codec  codec.Codec[T]
	keys   cache.KeySerializer
	ttl    time.Duration
	logger *zap.Logger
}

// New returns a repository over db. A nil codec means msgpack.
func New[T repository.Model](db *badger.DB, c codec.Codec[T], opts Options) *Repository[T] {
	if c == nil {
		c = codec.NewMsgpack[T]()
	}
	keys := opts.Keys
	if keys == nil {
		keys = cache.NewTypedKeySerializer[T](opts.Namespace)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Repository[T]{
		db:     db,
		codec:  c,
		keys:   keys,
		ttl:    opts.TTL,
		logger: logger,
	}
}

// NewFromConfig builds a repository from cfg over an open database.
func NewFromConfig[T repository.Model](db *badger.DB, cfg Config, logger *zap.Logger) (*Repository[T], error) {
	c, err := codec.ByName[T](cfg.Codec)
	if err != nil {
		return nil, err
	}
	return New[T](db, c, Options{Namespace: cfg.Namespace, TTL: cfg.TTL, Logger: logger}), nil
}

// Keys returns the key layout.
func (r *Repository[T]) Keys() cache.KeySerializer {
	return r.keys
}

func (r *Repository[T]) key(id string) []byte {
	return []byte(r.keys.SerializeKey(id))
}

func (r *Repository[T]) fail(op string, err error) error {
	r.logger.Warn("badger repository operation failed", zap.String("op", op), zap.Error(err))
	return repository.StorageFailure(backendName, op, err)
}

// Create stores model, replacing any model with the same id.
func (r *Repository[T]) Create(_ context.Context, model T) error {
	data, err := r.codec.Encode(model)
	if err != nil {
		return r.fail("encode", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(r.key(model.GetID()), data)
		if r.ttl > 0 {
			entry = entry.WithTTL(r.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return r.fail("set", err)
	}
	return nil
}

// Exists reports whether id is stored.
func (r *Repository[T]) Exists(_ context.Context, id string) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(r.key(id))
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, r.fail("get", err)
	}
}

// Find returns the model stored under id.
func (r *Repository[T]) Find(_ context.Context, id string) (T, bool, error) {
	var (
		zero  T
		model T
		found bool
	)

	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		model, found, err = r.get(txn, id)
		return err
	})
	if err != nil {
		return zero, false, err
	}
	return model, found, nil
}

func (r *Repository[T]) get(txn *badger.Txn, id string) (T, bool, error) {
	var zero T

	item, err := txn.Get(r.key(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return zero, false, nil
		}
		return zero, false, r.fail("get", err)
	}

	data, err := item.ValueCopy(nil)
	if err != nil {
		return zero, false, r.fail("read", err)
	}

	model, err := r.codec.Decode(data)
	if err != nil {
		return zero, false, r.fail("decode", err)
	}
	return model, true, nil
}

// FindByQuery accepts IDQuery and predicate queries.
func (r *Repository[T]) FindByQuery(_ context.Context, query repository.Query) (T, bool, error) {
	var zero T
	found, err := r.find(query, 1)
	if err != nil || len(found) == 0 {
		return zero, false, err
	}
	return found[0], true, nil
}

// FindMany returns the models stored under ids, up to limit.
func (r *Repository[T]) FindMany(_ context.Context, ids []string, limit int) ([]T, error) {
	var out []T
	err := r.db.View(func(txn *badger.Txn) error {
		for _, id := range repository.UniqueIDs(ids) {
			if repository.Reached(len(out), limit) {
				return nil
			}
			model, found, err := r.get(txn, id)
			if err != nil {
				return err
			}
			if found {
				out = append(out, model)
			}
		}
		return nil
	})
	return out, err
}

// FindManyByQuery returns up to limit models matching query.
func (r *Repository[T]) FindManyByQuery(_ context.Context, query repository.Query, limit int) ([]T, error) {
	return r.find(query, limit)
}

// FindAll iterates the prefix in key order.
func (r *Repository[T]) FindAll(_ context.Context) ([]T, error) {
	var out []T
	err := r.db.View(func(txn *badger.Txn) error {
		return r.iterate(txn, func(model T) bool {
			out = append(out, model)
			return true
		})
	})
	return out, err
}

// Delete removes id. Missing ids are not an error.
func (r *Repository[T]) Delete(_ context.Context, id string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(r.key(id))
	})
	if err != nil {
		return r.fail("delete", err)
	}
	return nil
}

// DeleteByQuery removes the first model matching query.
func (r *Repository[T]) DeleteByQuery(ctx context.Context, query repository.Query) error {
	return r.DeleteManyByQuery(ctx, query, 1)
}

// DeleteMany removes every id in ids.
func (r *Repository[T]) DeleteMany(_ context.Context, ids []string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := txn.Delete(r.key(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return r.fail("delete", err)
	}
	return nil
}

// DeleteManyByQuery removes up to limit models matching query.
func (r *Repository[T]) DeleteManyByQuery(_ context.Context, query repository.Query, limit int) error {
	match, err := repository.Matcher[T](backendName, query)
	if err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		matched, err := r.collect(txn, match, limit)
		if err != nil {
			return err
		}
		for _, model := range matched {
			if err := txn.Delete(r.key(model.GetID())); err != nil {
				return r.fail("delete", err)
			}
		}
		return nil
	})
}

func (r *Repository[T]) find(query repository.Query, limit int) ([]T, error) {
	match, err := repository.Matcher[T](backendName, query)
	if err != nil {
		return nil, err
	}

	var out []T
	err = r.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = r.collect(txn, match, limit)
		return err
	})
	return out, err
}

func (r *Repository[T]) collect(txn *badger.Txn, match func(T) bool, limit int) ([]T, error) {
	var out []T
	if repository.Reached(0, limit) {
		return nil, nil
	}
	err := r.iterate(txn, func(model T) bool {
		if match(model) {
			out = append(out, model)
		}
		return !repository.Reached(len(out), limit)
	})
	return out, err
}

// iterate decodes every entry of the namespace until fn returns false.
func (r *Repository[T]) iterate(txn *badger.Txn, fn func(T) bool) error {
	prefix := []byte(r.keys.Prefix())

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		data, err := it.Item().ValueCopy(nil)
		if err != nil {
			return r.fail("read", err)
		}
		model, err := r.codec.Decode(data)
		if err != nil {
			return r.fail("decode", err)
		}
		if !fn(model) {
			return nil
		}
	}
	return nil
}
