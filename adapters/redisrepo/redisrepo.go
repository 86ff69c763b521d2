// Package redisrepo stores encoded models in Redis under keys shaped
// namespace:type:id, each with an optional TTL. Redis cannot evaluate
// predicates over encoded payloads, so only IDQuery is interpreted.
//
// Multi-key reads and deletes are pipelined as single-key commands, so a
// *redis.ClusterClient routes each one to its own slot. Namespace scans
// visit every master of a cluster.
package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-model-repository/cache"
	"github.com/goliatone/go-model-repository/codec"
	"github.com/goliatone/go-model-repository/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const backendName = "redisrepo"

const scanCount = 100

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// scanPattern matches every key under prefix, with glob characters in the
// prefix taken literally.
func scanPattern(prefix string) string {
	return globEscaper.Replace(prefix) + "*"
}

var _ repository.Repository[repository.Model] = (*Repository[repository.Model])(nil)

// Config holds connection and keying settings.
type Config struct {
	Addr         string        `mapstructure:"addr"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	Namespace    string        `mapstructure:"namespace"`
	TTL          time.Duration `mapstructure:"ttl"`
	Codec        string        `mapstructure:"codec"`
}

// DefaultConfig returns settings for a local Redis without expiry.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		Namespace:    "models",
		Codec:        "json",
	}
}

// NewClient connects to Redis and checks the connection with a ping.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, repository.StorageFailure(backendName, "connect", err)
	}
	return client, nil
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

// Repository stores models as Redis strings.
type Repository[T repository.Model] struct {
	client redis.UniversalClient
	codec  codec.Codec[T]
	keys   cache.KeySerializer
	ttl    time.Duration
	logger *zap.Logger
}

// New returns a repository over client. A nil codec means compact JSON.
func New[T repository.Model](client redis.UniversalClient, c codec.Codec[T], opts Options) *Repository[T] {
	if c == nil {
		c = codec.NewJSON[T]()
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
		client: client,
		codec:  c,
		keys:   keys,
		ttl:    opts.TTL,
		logger: logger,
	}
}

// NewFromConfig builds a repository from cfg over an existing client.
func NewFromConfig[T repository.Model](client redis.UniversalClient, cfg Config, logger *zap.Logger) (*Repository[T], error) {
	c, err := codec.ByName[T](cfg.Codec)
	if err != nil {
		return nil, err
	}
	return New[T](client, c, Options{Namespace: cfg.Namespace, TTL: cfg.TTL, Logger: logger}), nil
}

// Keys returns the key layout.
func (r *Repository[T]) Keys() cache.KeySerializer {
	return r.keys
}

func (r *Repository[T]) fail(op string, err error) error {
	r.logger.Warn("redis repository operation failed", zap.String("op", op), zap.Error(err))
	return repository.StorageFailure(backendName, op, err)
}

// Create writes model under its key with the configured TTL.
func (r *Repository[T]) Create(ctx context.Context, model T) error {
	data, err := r.codec.Encode(model)
	if err != nil {
		return r.fail("encode", err)
	}
	if err := r.client.Set(ctx, r.keys.SerializeKey(model.GetID()), data, r.ttl).Err(); err != nil {
		return r.fail("set", err)
	}
	return nil
}

// Exists reports whether id is stored.
func (r *Repository[T]) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, r.keys.SerializeKey(id)).Result()
	if err != nil {
		return false, r.fail("exists", err)
	}
	return n > 0, nil
}

// Find returns the model stored under id.
func (r *Repository[T]) Find(ctx context.Context, id string) (T, bool, error) {
	var zero T
	data, err := r.client.Get(ctx, r.keys.SerializeKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, false, nil
		}
		return zero, false, r.fail("get", err)
	}

	model, err := r.codec.Decode(data)
	if err != nil {
		return zero, false, r.fail("decode", err)
	}
	return model, true, nil
}

// FindByQuery accepts IDQuery only.
func (r *Repository[T]) FindByQuery(ctx context.Context, query repository.Query) (T, bool, error) {
	id, ok := query.(repository.IDQuery)
	if !ok {
		var zero T
		return zero, false, repository.UnsupportedQuery(backendName, query)
	}
	return r.Find(ctx, string(id))
}

// FindMany fetches ids in one pipelined round trip and keeps request order.
func (r *Repository[T]) FindMany(ctx context.Context, ids []string, limit int) ([]T, error) {
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 || repository.Reached(0, limit) {
		return nil, nil
	}
	return r.fetch(ctx, r.serialize(ids), limit)
}

func (r *Repository[T]) serialize(ids []string) []string {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.keys.SerializeKey(id))
	}
	return keys
}

func (r *Repository[T]) fetch(ctx context.Context, keys []string, limit int) ([]T, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, 0, len(keys))
	for _, key := range keys {
		cmds = append(cmds, pipe.Get(ctx, key))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, r.fail("get", err)
	}

	var out []T
	for _, cmd := range cmds {
		if repository.Reached(len(out), limit) {
			break
		}
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			// missing or expired since the lookup
			continue
		}
		if err != nil {
			return out, r.fail("get", err)
		}
		model, err := r.codec.Decode(data)
		if err != nil {
			return out, r.fail("decode", err)
		}
		out = append(out, model)
	}
	return out, nil
}

// del removes keys one command per key so cluster clients never see a
// cross-slot DEL.
func (r *Repository[T]) del(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return r.fail("del", err)
	}
	return nil
}

// FindManyByQuery accepts IDQuery only.
func (r *Repository[T]) FindManyByQuery(ctx context.Context, query repository.Query, limit int) ([]T, error) {
	id, ok := query.(repository.IDQuery)
	if !ok {
		return nil, repository.UnsupportedQuery(backendName, query)
	}
	return r.FindMany(ctx, []string{string(id)}, limit)
}

// FindAll scans the namespace. Entries expiring during the scan are skipped.
func (r *Repository[T]) FindAll(ctx context.Context) ([]T, error) {
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	return r.fetch(ctx, keys, repository.NoLimit)
}

func (r *Repository[T]) scanKeys(ctx context.Context) ([]string, error) {
	cluster, ok := r.client.(*redis.ClusterClient)
	if !ok {
		return r.scanNode(ctx, r.client)
	}

	var (
		mu   sync.Mutex
		keys []string
	)
	err := cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
		found, err := r.scanNode(ctx, node)
		if err != nil {
			return err
		}
		mu.Lock()
		keys = append(keys, found...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *Repository[T]) scanNode(ctx context.Context, client redis.Cmdable) ([]string, error) {
	var keys []string
	iter := client.Scan(ctx, 0, scanPattern(r.keys.Prefix()), scanCount).Iterator()
	for iter.Next(ctx) {
		if _, ok := r.keys.DeserializeKey(iter.Val()); ok {
			keys = append(keys, iter.Val())
		}
	}
	if err := iter.Err(); err != nil {
		return nil, r.fail("scan", err)
	}
	return keys, nil
}

// Delete removes id. Missing ids are not an error.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.keys.SerializeKey(id)).Err(); err != nil {
		return r.fail("del", err)
	}
	return nil
}

// DeleteByQuery accepts IDQuery only.
func (r *Repository[T]) DeleteByQuery(ctx context.Context, query repository.Query) error {
	id, ok := query.(repository.IDQuery)
	if !ok {
		return repository.UnsupportedQuery(backendName, query)
	}
	return r.Delete(ctx, string(id))
}

// DeleteMany removes every id in ids.
func (r *Repository[T]) DeleteMany(ctx context.Context, ids []string) error {
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	return r.del(ctx, r.serialize(ids))
}

// DeleteManyByQuery accepts IDQuery only.
func (r *Repository[T]) DeleteManyByQuery(ctx context.Context, query repository.Query, limit int) error {
	id, ok := query.(repository.IDQuery)
	if !ok {
		return repository.UnsupportedQuery(backendName, query)
	}
	if repository.Reached(0, limit) {
		return nil
	}
	return r.Delete(ctx, string(id))
}

// Clear deletes every key of the namespace.
func (r *Repository[T]) Clear(ctx context.Context) error {
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return err
	}
	return r.del(ctx, keys)
}

// String describes the repository for logs.
func (r *Repository[T]) String() string {
	return fmt.Sprintf("redisrepo(%s*)", r.keys.Prefix())
}
