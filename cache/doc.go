// Package cache holds the shared caching infrastructure used by the cache
// backed repositories.
//
// # Overview
//
// The package exports two pieces:
//
//   - Config: options for the in-process sturdyc cache, with DefaultConfig
//     and Validate. NewClient turns a Config into a *sturdyc.Client[T].
//   - KeySerializer: maps model ids to keys inside a KV namespace and back,
//     used by the Redis and Badger adapters.
//
// # Basic Usage
//
//	client, err := cache.NewClient[User](cache.DefaultConfig())
//
//	keys := cache.NewTypedKeySerializer[*User]("app")
//	keys.SerializeKey("42") // "app:user:42"
//
// # Key Strategy
//
// Keys are shaped namespace:type:id. The type segment comes from the
// reflected type name converted to snake_case, stripped of pointers, package
// paths and generic arguments, so every key of a collection shares one prefix
// and FindAll style scans stay a single prefix match.
//
// # See Also
//
// For the cache repository built on top of the sturdyc client see
// adapters/sturdyrepo. For the decorator that composes a cache repository in
// front of a source repository see the repositorycache package.
package cache
