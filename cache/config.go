package cache

import (
	"github.com/goliatone/go-model-repository/internal/cacheinfra"
	"github.com/viccon/sturdyc"
)

// Config configures the sturdyc clients behind in-process cache
// repositories. Fields carry mapstructure tags so the type can be embedded
// in file based configuration.
type Config = cacheinfra.Config

// EarlyRefreshConfig enables background refreshes for loading caches.
type EarlyRefreshConfig = cacheinfra.EarlyRefreshConfig

// ConfigError names the first invalid field of a Config.
type ConfigError = cacheinfra.ConfigError

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return cacheinfra.DefaultConfig()
}

// NewClient validates cfg and builds a sturdyc client holding values of
// type T.
func NewClient[T any](cfg Config) (*sturdyc.Client[T], error) {
	return cacheinfra.NewClient[T](cfg)
}
