// Package di assembles repositories from a config.Config. The Container
// owns the clients it opens for the selected backend and releases them on
// Close.
package di

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goliatone/go-model-repository/adapters/badgerrepo"
	"github.com/goliatone/go-model-repository/adapters/filerepo"
	"github.com/goliatone/go-model-repository/adapters/maprepo"
	"github.com/goliatone/go-model-repository/adapters/mongorepo"
	"github.com/goliatone/go-model-repository/adapters/redisrepo"
	"github.com/goliatone/go-model-repository/adapters/sqlrepo"
	"github.com/goliatone/go-model-repository/adapters/sturdyrepo"
	"github.com/goliatone/go-model-repository/async"
	"github.com/goliatone/go-model-repository/cache"
	"github.com/goliatone/go-model-repository/pkg/config"
	"github.com/goliatone/go-model-repository/pkg/logger"
	"github.com/goliatone/go-model-repository/repository"
	"github.com/goliatone/go-model-repository/repositorycache"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ErrClosed is returned by factories called after Close.
var ErrClosed = errors.New("di: container closed")

// Option configures a Container.
type Option func(*Container)

// WithLogger uses l instead of building one from the logger section.
func WithLogger(l *zap.Logger) Option {
	return func(c *Container) {
		c.logger = l
	}
}

// Container provides the shared pieces repositories are built from: the
// validated config, the logger, and backend clients opened on first use.
type Container struct {
	config config.Config
	logger *zap.Logger

	mu       sync.Mutex
	closed   bool
	mongo    *mongo.Client
	redis    *redis.Client
	badger   *badger.DB
	sql      *bun.DB
	closers  []func() error
	stopGC   context.CancelFunc
	executor async.Executor
}

// NewContainer validates cfg and builds the logger.
func NewContainer(cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{config: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		l, err := logger.New(cfg.Logger)
		if err != nil {
			return nil, err
		}
		c.logger = l
	}
	return c, nil
}

// NewContainerWithDefaults uses config.DefaultConfig: an in-memory source
// and the default cache.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(config.DefaultConfig(), opts...)
}

// Config returns the configuration the container was built with.
func (c *Container) Config() config.Config {
	return c.config
}

// CacheConfig returns the in-process cache settings.
func (c *Container) CacheConfig() cache.Config {
	return c.config.Cache
}

func (c *Container) Logger() *zap.Logger {
	return c.logger
}

func (c *Container) onClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

func (c *Container) mongoClient(ctx context.Context) (*mongo.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.mongo != nil {
		return c.mongo, nil
	}

	client, err := mongorepo.Connect(ctx, c.config.Mongo)
	if err != nil {
		return nil, err
	}
	c.mongo = client
	c.onClose(func() error { return client.Disconnect(context.Background()) })
	c.logger.Info("connected to mongo", zap.String("database", c.config.Mongo.Database))
	return client, nil
}

func (c *Container) redisClient(ctx context.Context) (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.redis != nil {
		return c.redis, nil
	}

	client, err := redisrepo.NewClient(ctx, c.config.Redis)
	if err != nil {
		return nil, err
	}
	c.redis = client
	c.onClose(client.Close)
	c.logger.Info("connected to redis", zap.String("addr", c.config.Redis.Addr))
	return client, nil
}

func (c *Container) badgerDB() (*badger.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.badger != nil {
		return c.badger, nil
	}

	db, err := badgerrepo.Open(c.config.Badger)
	if err != nil {
		return nil, err
	}
	c.badger = db
	c.onClose(db.Close)

	if !c.config.Badger.InMemory && c.config.Badger.GCInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		c.stopGC = cancel
		go badgerrepo.RunGC(ctx, db, c.config.Badger.GCInterval, c.logger)
	}
	c.logger.Info("opened badger", zap.Bool("in_memory", c.config.Badger.InMemory))
	return db, nil
}

func (c *Container) sqlDB() (*bun.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.sql != nil {
		return c.sql, nil
	}

	db, err := sqlrepo.Open(c.config.SQL)
	if err != nil {
		return nil, err
	}
	c.sql = db
	c.onClose(db.Close)
	c.logger.Info("opened sql database", zap.String("driver", c.config.SQL.Driver))
	return db, nil
}

// Executor returns the executor shared by async repositories, creating it on
// first use: a pool when async.workers is above one, serial otherwise.
func (c *Container) Executor() (async.Executor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.executor == nil {
		if c.config.Async.Workers > 1 {
			c.executor = async.NewPoolExecutor(c.config.Async.Workers)
		} else {
			c.executor = async.NewSerialExecutor()
		}
	}
	return c.executor, nil
}

// Close stops background work and releases every client the container
// opened, most recent first. Repositories built from it must not be used
// afterwards.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.executor != nil {
		errs = append(errs, c.executor.Close())
	}
	if c.stopGC != nil {
		c.stopGC()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil

	c.logger.Sync()
	return errors.Join(errs...)
}

// NewSourceRepository builds the source backend named by config.Backend.
func NewSourceRepository[T repository.Model](ctx context.Context, c *Container) (repository.Repository[T], error) {
	cfg := c.config
	log := c.logger.With(zap.String("backend", cfg.Backend))

	switch cfg.Backend {
	case config.BackendMemory:
		return maprepo.New[T](), nil
	case config.BackendFile:
		return filerepo.NewFromConfig[T](cfg.File, log)
	case config.BackendMongo:
		client, err := c.mongoClient(ctx)
		if err != nil {
			return nil, err
		}
		coll := client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
		return mongorepo.New[T](coll, log), nil
	case config.BackendRedis:
		client, err := c.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return redisrepo.NewFromConfig[T](client, cfg.Redis, log)
	case config.BackendBadger:
		db, err := c.badgerDB()
		if err != nil {
			return nil, err
		}
		return badgerrepo.NewFromConfig[T](db, cfg.Badger, log)
	case config.BackendSQL:
		db, err := c.sqlDB()
		if err != nil {
			return nil, err
		}
		return sqlrepo.NewFromConfig[T](ctx, db, cfg.SQL, log)
	}
	return nil, fmt.Errorf("di: unknown backend %q", cfg.Backend)
}

// NewCacheRepository builds a sturdyc backed cache repository from the
// cache section.
func NewCacheRepository[T repository.Model](c *Container) (*sturdyrepo.Repository[T], error) {
	return sturdyrepo.New[T](c.config.Cache, sturdyrepo.WithLogger(c.logger.Named("cache")))
}

// WrapRepository decorates an existing source with a fresh cache
// repository.
//
// Since Go methods cannot have type parameters, this is a package-level
// function: WrapRepository[User](container, users)
func WrapRepository[T repository.Model](c *Container, source repository.Repository[T]) (*repositorycache.CachedRepository[T], error) {
	cacheRepo, err := NewCacheRepository[T](c)
	if err != nil {
		return nil, err
	}
	return repositorycache.New[T](source, cacheRepo, repositorycache.WithLogger(c.logger)), nil
}

// NewCachedRepository builds the configured source and wraps it with a
// cache repository.
func NewCachedRepository[T repository.Model](ctx context.Context, c *Container) (*repositorycache.CachedRepository[T], error) {
	source, err := NewSourceRepository[T](ctx, c)
	if err != nil {
		return nil, err
	}
	return WrapRepository[T](c, source)
}

// NewAsyncCachedRepository is NewCachedRepository with asynchronous
// operations running on the container executor.
func NewAsyncCachedRepository[T repository.Model](ctx context.Context, c *Container) (*async.CachedRepository[T], error) {
	cached, err := NewCachedRepository[T](ctx, c)
	if err != nil {
		return nil, err
	}
	exec, err := c.Executor()
	if err != nil {
		return nil, err
	}
	return async.NewCached[T](cached, exec), nil
}
