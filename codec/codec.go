// Package codec encodes models to bytes or strings and back for the backends
// that persist opaque payloads (files, Redis, Badger, SQL tables).
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson"
)

// Codec converts models of type T to and from their persisted form.
type Codec[T any] interface {
	// Name identifies the codec, e.g. for file extensions and logs.
	Name() string
	Encode(model T) ([]byte, error)
	EncodeString(model T) (string, error)
	Decode(data []byte) (T, error)
	DecodeString(data string) (T, error)
}

// JSON encodes models with encoding/json.
type JSON[T any] struct {
	// Indent pretty prints payloads when not empty.
	Indent string
}

// NewJSON returns a compact JSON codec.
func NewJSON[T any]() JSON[T] {
	return JSON[T]{}
}

func (c JSON[T]) Name() string { return "json" }

func (c JSON[T]) Encode(model T) ([]byte, error) {
	if c.Indent != "" {
		return json.MarshalIndent(model, "", c.Indent)
	}
	return json.Marshal(model)
}

func (c JSON[T]) EncodeString(model T) (string, error) {
	data, err := c.Encode(model)
	return string(data), err
}

func (c JSON[T]) Decode(data []byte) (T, error) {
	var model T
	if err := json.Unmarshal(data, &model); err != nil {
		return model, fmt.Errorf("json decode: %w", err)
	}
	return model, nil
}

func (c JSON[T]) DecodeString(data string) (T, error) {
	return c.Decode([]byte(data))
}

// Msgpack encodes models with msgpack. The string form is base64 so it can
// travel through text-only stores.
type Msgpack[T any] struct{}

// NewMsgpack returns a msgpack codec.
func NewMsgpack[T any]() Msgpack[T] {
	return Msgpack[T]{}
}

func (Msgpack[T]) Name() string { return "msgpack" }

func (Msgpack[T]) Encode(model T) ([]byte, error) {
	return msgpack.Marshal(model)
}

func (c Msgpack[T]) EncodeString(model T) (string, error) {
	data, err := c.Encode(model)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (Msgpack[T]) Decode(data []byte) (T, error) {
	var model T
	if err := msgpack.Unmarshal(data, &model); err != nil {
		return model, fmt.Errorf("msgpack decode: %w", err)
	}
	return model, nil
}

func (c Msgpack[T]) DecodeString(data string) (T, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("msgpack decode: %w", err)
	}
	return c.Decode(raw)
}

// BSON encodes models with the MongoDB bson package. The string form is
// relaxed extended JSON.
type BSON[T any] struct{}

// NewBSON returns a bson codec.
func NewBSON[T any]() BSON[T] {
	return BSON[T]{}
}

func (BSON[T]) Name() string { return "bson" }

func (BSON[T]) Encode(model T) ([]byte, error) {
	return bson.Marshal(model)
}

func (BSON[T]) EncodeString(model T) (string, error) {
	data, err := bson.MarshalExtJSON(model, false, false)
	return string(data), err
}

func (BSON[T]) Decode(data []byte) (T, error) {
	var model T
	if err := bson.Unmarshal(data, &model); err != nil {
		return model, fmt.Errorf("bson decode: %w", err)
	}
	return model, nil
}

func (BSON[T]) DecodeString(data string) (T, error) {
	var model T
	if err := bson.UnmarshalExtJSON([]byte(data), false, &model); err != nil {
		return model, fmt.Errorf("bson decode: %w", err)
	}
	return model, nil
}

// ByName returns the codec registered under name: json, msgpack or bson.
func ByName[T any](name string) (Codec[T], error) {
	switch name {
	case "", "json":
		return NewJSON[T](), nil
	case "msgpack":
		return NewMsgpack[T](), nil
	case "bson":
		return NewBSON[T](), nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
