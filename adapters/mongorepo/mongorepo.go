// Package mongorepo stores models as documents of a MongoDB collection.
//
// Models must encode their id as the "_id" field, e.g. with a
// `bson:"_id"` tag on the ID field. The repository interprets IDQuery and
// NativeQuery holding a bson.M, a bson.D or an extended JSON string filter:
//
//	repo.FindManyByQuery(ctx, repository.Native(bson.M{"age": bson.M{"$gte": 18}}), 10)
//	repo.FindByQuery(ctx, repository.Native(`{"name": "alice"}`))
package mongorepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-model-repository/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const backendName = "mongorepo"

var _ repository.Repository[repository.Model] = (*Repository[repository.Model])(nil)

// Config holds connection settings.
type Config struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns settings for a local MongoDB.
func DefaultConfig() Config {
	return Config{
		URI:        "mongodb://localhost:27017",
		Database:   "models",
		Collection: "models",
		Timeout:    10 * time.Second,
	}
}

// Connect opens a client for cfg and pings the primary.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, repository.StorageFailure(backendName, "connect", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, repository.StorageFailure(backendName, "ping", err)
	}
	return client, nil
}

// Repository stores models in a collection keyed by _id.
type Repository[T repository.Model] struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// New returns a repository over collection.
func New[T repository.Model](collection *mongo.Collection, logger *zap.Logger) *Repository[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository[T]{collection: collection, logger: logger}
}

// Collection returns the underlying collection.
func (r *Repository[T]) Collection() *mongo.Collection {
	return r.collection
}

func (r *Repository[T]) fail(op string, err error) error {
	r.logger.Warn("mongo repository operation failed",
		zap.String("collection", r.collection.Name()),
		zap.String("op", op),
		zap.Error(err),
	)
	return repository.StorageFailure(backendName, op, err)
}

// filter translates query into a bson filter.
func filter(query repository.Query) (any, error) {
	switch q := query.(type) {
	case repository.IDQuery:
		return bson.M{"_id": string(q)}, nil
	case repository.NativeQuery:
		switch v := q.Value.(type) {
		case bson.M:
			return v, nil
		case bson.D:
			return v, nil
		case string:
			var doc bson.D
			if err := bson.UnmarshalExtJSON([]byte(v), false, &doc); err != nil {
				return nil, fmt.Errorf("%w: %v", repository.UnsupportedQuery(backendName, query), err)
			}
			return doc, nil
		}
	}
	return nil, repository.UnsupportedQuery(backendName, query)
}

func idsFilter(ids []string) bson.M {
	return bson.M{"_id": bson.M{"$in": ids}}
}

// Create upserts model, replacing any document with the same _id.
func (r *Repository[T]) Create(ctx context.Context, model T) error {
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": model.GetID()},
		model,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return r.fail("replace", err)
	}
	return nil
}

// Exists reports whether id is stored.
func (r *Repository[T]) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, r.fail("count", err)
	}
	return n > 0, nil
}

// Find returns the model stored under id.
func (r *Repository[T]) Find(ctx context.Context, id string) (T, bool, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *Repository[T]) findOne(ctx context.Context, f any) (T, bool, error) {
	var model T
	err := r.collection.FindOne(ctx, f).Decode(&model)
	if err != nil {
		var zero T
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, false, nil
		}
		return zero, false, r.fail("find", err)
	}
	return model, true, nil
}

// FindByQuery translates query into a Mongo filter.
func (r *Repository[T]) FindByQuery(ctx context.Context, query repository.Query) (T, bool, error) {
	f, err := filter(query)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return r.findOne(ctx, f)
}

// FindMany returns the models stored under ids, up to limit.
func (r *Repository[T]) FindMany(ctx context.Context, ids []string, limit int) ([]T, error) {
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	return r.findAll(ctx, idsFilter(ids), limit)
}

// FindManyByQuery returns up to limit models matching query.
func (r *Repository[T]) FindManyByQuery(ctx context.Context, query repository.Query, limit int) ([]T, error) {
	f, err := filter(query)
	if err != nil {
		return nil, err
	}
	return r.findAll(ctx, f, limit)
}

// FindAll returns every stored model.
func (r *Repository[T]) FindAll(ctx context.Context) ([]T, error) {
	return r.findAll(ctx, bson.M{}, repository.NoLimit)
}

// findAll runs f with limit. Mongo treats a zero limit as unbounded, so a
// zero limit never reaches the server.
func (r *Repository[T]) findAll(ctx context.Context, f any, limit int) ([]T, error) {
	if repository.Reached(0, limit) {
		return nil, nil
	}

	opts := options.Find()
	if !repository.Unbounded(limit) {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, f, opts)
	if err != nil {
		return nil, r.fail("find", err)
	}

	var out []T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, r.fail("decode", err)
	}
	return out, nil
}

// Delete removes id. Missing ids are not an error.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return r.fail("delete", err)
	}
	return nil
}

// DeleteByQuery removes the first document matching query.
func (r *Repository[T]) DeleteByQuery(ctx context.Context, query repository.Query) error {
	f, err := filter(query)
	if err != nil {
		return err
	}
	if _, err := r.collection.DeleteOne(ctx, f); err != nil {
		return r.fail("delete", err)
	}
	return nil
}

// DeleteMany removes every id in ids.
func (r *Repository[T]) DeleteMany(ctx context.Context, ids []string) error {
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.collection.DeleteMany(ctx, idsFilter(ids)); err != nil {
		return r.fail("delete", err)
	}
	return nil
}

// DeleteManyByQuery removes the documents matching query. With a limit, the
// first limit matching ids are resolved first and deleted by id.
func (r *Repository[T]) DeleteManyByQuery(ctx context.Context, query repository.Query, limit int) error {
	f, err := filter(query)
	if err != nil {
		return err
	}

	if repository.Unbounded(limit) {
		if _, err := r.collection.DeleteMany(ctx, f); err != nil {
			return r.fail("delete", err)
		}
		return nil
	}

	ids, err := r.matchingIDs(ctx, f, limit)
	if err != nil || len(ids) == 0 {
		return err
	}
	return r.DeleteMany(ctx, ids)
}

func (r *Repository[T]) matchingIDs(ctx context.Context, f any, limit int) ([]string, error) {
	if repository.Reached(0, limit) {
		return nil, nil
	}

	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, f, opts)
	if err != nil {
		return nil, r.fail("find", err)
	}

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, r.fail("decode", err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}
