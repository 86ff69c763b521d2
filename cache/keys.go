package cache

import (
	"reflect"
	"strings"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = ":"

// KeySerializer maps model ids to keys inside a KV store namespace and back.
type KeySerializer interface {
	// SerializeKey builds the store key for id.
	SerializeKey(id string) string
	// DeserializeKey extracts the id from a store key. It reports false for
	// keys outside the namespace.
	DeserializeKey(key string) (string, bool)
	// Prefix is shared by every key of the namespace, for prefix scans.
	Prefix() string
}

// namespacedKeySerializer produces keys shaped namespace:type:id.
type namespacedKeySerializer struct {
	prefix string
}

// NewKeySerializer returns a KeySerializer for the given namespace and type
// segment. Empty segments are skipped.
func NewKeySerializer(namespace, typeName string) KeySerializer {
	var parts []string
	for _, p := range []string{namespace, typeName} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	prefix := strings.Join(parts, KeySeparator)
	if prefix != "" {
		prefix += KeySeparator
	}

	return &namespacedKeySerializer{prefix: prefix}
}

// NewTypedKeySerializer derives the type segment from T.
func NewTypedKeySerializer[T any](namespace string) KeySerializer {
	return NewKeySerializer(namespace, TypeNamespace[T]())
}

func (s *namespacedKeySerializer) SerializeKey(id string) string {
	return s.prefix + id
}

func (s *namespacedKeySerializer) DeserializeKey(key string) (string, bool) {
	if !strings.HasPrefix(key, s.prefix) {
		return "", false
	}
	return strings.TrimPrefix(key, s.prefix), true
}

func (s *namespacedKeySerializer) Prefix() string {
	return s.prefix
}

// TypeNamespace returns the snake_case name of T with pointers and package
// paths removed, e.g. *models.UserProfile becomes user_profile.
func TypeNamespace[T any]() string {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}

	name := rt.Name()
	if name == "" {
		name = rt.String()
	}
	// generic instantiations carry the type arguments in brackets
	if i := strings.IndexByte(name, '['); i > 0 {
		name = name[:i]
	}

	return toSnake(name)
}
