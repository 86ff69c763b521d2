package cacheinfra

import (
	"errors"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/viccon/sturdyc"
)

// Config sizes and times the sturdyc clients behind cache repositories.
type Config struct {
	// Capacity bounds the number of entries across all shards.
	Capacity int `mapstructure:"capacity"`

	NumShards int `mapstructure:"num_shards"`

	// TTL applies to every entry; cache repositories have no per-entry TTL.
	TTL time.Duration `mapstructure:"ttl"`

	// EvictionPercentage of a full shard is dropped to make room, 1 to 100.
	EvictionPercentage int `mapstructure:"eviction_percentage"`

	// EarlyRefresh only affects loading caches. Nil disables it.
	EarlyRefresh *EarlyRefreshConfig `mapstructure:"early_refresh"`

	// MissingRecordStorage makes loading caches remember ids the loader
	// could not find.
	MissingRecordStorage bool `mapstructure:"missing_record_storage"`

	// EvictionInterval is how often expired entries are swept. Zero keeps
	// the sturdyc default.
	EvictionInterval time.Duration `mapstructure:"eviction_interval"`
}

// EarlyRefreshConfig maps onto sturdyc.WithEarlyRefreshes.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `mapstructure:"min_async_refresh_time"`
	MaxAsyncRefreshTime time.Duration `mapstructure:"max_async_refresh_time"`
	SyncRefreshTime     time.Duration `mapstructure:"sync_refresh_time"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay"`
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
// Early refresh is off: cache repositories hold models written explicitly,
// there is nothing to refresh them from.
func DefaultConfig() Config {
	return Config{
		Capacity:             10000,
		NumShards:            256,
		TTL:                  5 * time.Minute,
		EvictionPercentage:   10,
		MissingRecordStorage: false,
	}
}

// ToSturdycOptions converts the optional parts of Config to sturdyc options.
// Capacity, NumShards, TTL and EvictionPercentage go to sturdyc.New directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return ToConfigError("", err)
	}

	if c.EarlyRefresh != nil {
		e := c.EarlyRefresh
		err := validation.ValidateStruct(e,
			validation.Field(&e.MinAsyncRefreshTime, validation.Min(time.Duration(0))),
			validation.Field(&e.MaxAsyncRefreshTime, validation.Min(time.Duration(0))),
			validation.Field(&e.SyncRefreshTime, validation.Min(time.Duration(0))),
			validation.Field(&e.RetryBaseDelay, validation.Min(time.Duration(0))),
		)
		if err != nil {
			return ToConfigError("EarlyRefresh.", err)
		}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// ToConfigError converts ozzo validation errors, prefixing field names with
// prefix. It reports the first failing field in field name order so
// the result is stable across runs.
func ToConfigError(prefix string, err error) error {
	var errs validation.Errors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}

	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	field := fields[0]
	return &ConfigError{Field: prefix + field, Message: errs[field].Error()}
}

// NewClient validates cfg and builds a sturdyc client for values of type T.
func NewClient[T any](cfg Config) (*sturdyc.Client[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return sturdyc.New[T](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	), nil
}
