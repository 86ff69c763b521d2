// Package config loads the settings used to assemble repositories: which
// source backend to open, the in-process cache, logging and the async
// executor.
//
// Values come from defaults, then an optional YAML file, then environment
// variables prefixed with MODELREPO_ where dots become underscores:
//
//	MODELREPO_BACKEND=redis
//	MODELREPO_REDIS_ADDR=cache:6379
//	MODELREPO_CACHE_TTL=10m
package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-model-repository/adapters/badgerrepo"
	"github.com/goliatone/go-model-repository/adapters/filerepo"
	"github.com/goliatone/go-model-repository/adapters/mongorepo"
	"github.com/goliatone/go-model-repository/adapters/redisrepo"
	"github.com/goliatone/go-model-repository/adapters/sqlrepo"
	"github.com/goliatone/go-model-repository/cache"
	"github.com/goliatone/go-model-repository/internal/cacheinfra"
	"github.com/goliatone/go-model-repository/pkg/logger"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "MODELREPO"

// Source backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
	BackendBadger = "badger"
	BackendSQL    = "sql"
)

// Backends lists every supported source backend.
var Backends = []string{BackendMemory, BackendFile, BackendMongo, BackendRedis, BackendBadger, BackendSQL}

// ConfigError names the first invalid field.
type ConfigError = cacheinfra.ConfigError

// AsyncConfig configures the executor behind async repositories.
type AsyncConfig struct {
	// Workers above one selects a worker pool; otherwise tasks run serially.
	Workers int `mapstructure:"workers"`
}

// Config is the full set of settings.
type Config struct {
	Backend string            `mapstructure:"backend"`
	Cache   cache.Config      `mapstructure:"cache"`
	File    filerepo.Config   `mapstructure:"file"`
	Mongo   mongorepo.Config  `mapstructure:"mongo"`
	Redis   redisrepo.Config  `mapstructure:"redis"`
	Badger  badgerrepo.Config `mapstructure:"badger"`
	SQL     sqlrepo.Config    `mapstructure:"sql"`
	Logger  logger.Config     `mapstructure:"logger"`
	Async   AsyncConfig       `mapstructure:"async"`
}

// DefaultConfig uses the in-memory source and the default cache.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Cache:   cache.DefaultConfig(),
		File:    filerepo.Config{Dir: "data", Codec: "json"},
		Mongo:   mongorepo.DefaultConfig(),
		Redis:   redisrepo.DefaultConfig(),
		Badger:  badgerrepo.DefaultConfig(),
		SQL:     sqlrepo.DefaultConfig(),
		Logger:  logger.DefaultConfig(),
		Async:   AsyncConfig{Workers: 1},
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	return v
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("backend", d.Backend)

	v.SetDefault("cache.capacity", d.Cache.Capacity)
	v.SetDefault("cache.num_shards", d.Cache.NumShards)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.eviction_percentage", d.Cache.EvictionPercentage)
	v.SetDefault("cache.missing_record_storage", d.Cache.MissingRecordStorage)
	v.SetDefault("cache.eviction_interval", d.Cache.EvictionInterval)

	v.SetDefault("file.dir", d.File.Dir)
	v.SetDefault("file.codec", d.File.Codec)

	v.SetDefault("mongo.uri", d.Mongo.URI)
	v.SetDefault("mongo.database", d.Mongo.Database)
	v.SetDefault("mongo.collection", d.Mongo.Collection)
	v.SetDefault("mongo.timeout", d.Mongo.Timeout)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.username", d.Redis.Username)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.pool_size", d.Redis.PoolSize)
	v.SetDefault("redis.min_idle_conns", d.Redis.MinIdleConns)
	v.SetDefault("redis.namespace", d.Redis.Namespace)
	v.SetDefault("redis.ttl", d.Redis.TTL)
	v.SetDefault("redis.codec", d.Redis.Codec)

	v.SetDefault("badger.path", d.Badger.Path)
	v.SetDefault("badger.in_memory", d.Badger.InMemory)
	v.SetDefault("badger.namespace", d.Badger.Namespace)
	v.SetDefault("badger.ttl", d.Badger.TTL)
	v.SetDefault("badger.codec", d.Badger.Codec)
	v.SetDefault("badger.gc_interval", d.Badger.GCInterval)

	v.SetDefault("sql.driver", d.SQL.Driver)
	v.SetDefault("sql.dsn", d.SQL.DSN)
	v.SetDefault("sql.table", d.SQL.Table)
	v.SetDefault("sql.codec", d.SQL.Codec)

	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.format", d.Logger.Format)
	v.SetDefault("logger.development", d.Logger.Development)
	v.SetDefault("logger.caller", d.Logger.Caller)
	v.SetDefault("logger.output_paths", d.Logger.OutputPaths)

	v.SetDefault("async.workers", d.Async.Workers)
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return decode(v)
}

// Parse is Load for YAML already in memory.
func Parse(data []byte) (Config, error) {
	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	return decode(v)
}

var codecNames = []any{"", "json", "msgpack", "bson"}

// Validate checks the shared sections and the section of the selected
// backend.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(toAny(Backends)...)),
	)
	if err != nil {
		return cacheinfra.ToConfigError("", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return prefixed("Cache.", err)
	}

	if _, err := logger.ParseLevel(c.Logger.Level); err != nil {
		return &ConfigError{Field: "Logger.Level", Message: err.Error()}
	}

	if err := validation.ValidateStruct(&c.Async,
		validation.Field(&c.Async.Workers, validation.Min(0)),
	); err != nil {
		return cacheinfra.ToConfigError("Async.", err)
	}

	switch c.Backend {
	case BackendFile:
		f := &c.File
		err = validation.ValidateStruct(f,
			validation.Field(&f.Dir, validation.Required),
			validation.Field(&f.Codec, validation.In(codecNames...)),
		)
		return cacheinfra.ToConfigError("File.", err)
	case BackendMongo:
		m := &c.Mongo
		err = validation.ValidateStruct(m,
			validation.Field(&m.URI, validation.Required),
			validation.Field(&m.Database, validation.Required),
			validation.Field(&m.Collection, validation.Required),
		)
		return cacheinfra.ToConfigError("Mongo.", err)
	case BackendRedis:
		r := &c.Redis
		err = validation.ValidateStruct(r,
			validation.Field(&r.Addr, validation.Required),
			validation.Field(&r.DB, validation.Min(0)),
			validation.Field(&r.Codec, validation.In(codecNames...)),
		)
		return cacheinfra.ToConfigError("Redis.", err)
	case BackendBadger:
		b := &c.Badger
		err = validation.ValidateStruct(b,
			validation.Field(&b.Path, validation.When(!b.InMemory, validation.Required)),
			validation.Field(&b.Codec, validation.In(codecNames...)),
		)
		return cacheinfra.ToConfigError("Badger.", err)
	case BackendSQL:
		s := &c.SQL
		err = validation.ValidateStruct(s,
			validation.Field(&s.Driver, validation.Required, validation.In(sqlrepo.DriverSQLite, sqlrepo.DriverPostgres)),
			validation.Field(&s.DSN, validation.Required),
			validation.Field(&s.Table, validation.Required),
			validation.Field(&s.Codec, validation.In(codecNames...)),
		)
		return cacheinfra.ToConfigError("SQL.", err)
	}
	return nil
}

func prefixed(prefix string, err error) error {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return &ConfigError{Field: prefix + cfgErr.Field, Message: cfgErr.Message}
	}
	return err
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
