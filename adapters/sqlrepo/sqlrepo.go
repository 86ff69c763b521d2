// Package sqlrepo stores encoded models in a two column SQL table,
// (id, data), through bun. SQLite and PostgreSQL are supported.
//
// JSON payloads are stored as text so native criteria can reach into them
// with the database's JSON functions; binary codecs use a blob column.
// Besides IDQuery and PredicateQuery[T] (decoded while scanning), the
// repository interprets NativeQuery holding a Criteria:
//
//	repo.FindManyByQuery(ctx, repository.Native(
//		sqlrepo.Where("json_extract(data, '$.name') = ?", "alice"),
//	), 10)
package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/goliatone/go-model-repository/codec"
	"github.com/goliatone/go-model-repository/repository"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const backendName = "sqlrepo"

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var _ repository.Repository[repository.Model] = (*Repository[repository.Model])(nil)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config describes the database and table.
type Config struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Table  string `mapstructure:"table"`
	Codec  string `mapstructure:"codec"`
}

// DefaultConfig returns an on disk SQLite database in the working directory.
func DefaultConfig() Config {
	return Config{
		Driver: DriverSQLite,
		DSN:    "file:models.db?cache=shared",
		Table:  "models",
		Codec:  "json",
	}
}

// Open connects to the database described by cfg.
func Open(cfg Config) (*bun.DB, error) {
	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, repository.StorageFailure(backendName, "open", err)
	}

	switch cfg.Driver {
	case DriverSQLite:
		// sqlite allows a single writer
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres:
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		sqldb.Close()
		return nil, fmt.Errorf("sqlrepo: unsupported driver %q", cfg.Driver)
	}
}

// Criteria is a raw WHERE fragment with bun placeholders. Column names are
// id and data.
type Criteria struct {
	Query string
	Args  []any
}

// Where builds a Criteria.
func Where(query string, args ...any) Criteria {
	return Criteria{Query: query, Args: args}
}

type row struct {
	ID   string `bun:"id"`
	Data []byte `bun:"data"`
}

// Repository stores models in a table of a bun database. The database is
// owned by the caller.
type Repository[T repository.Model] struct {
	db      *bun.DB
	codec   codec.Codec[T]
	table   string
	textual bool
	logger  *zap.Logger
}

// New creates the table if needed and returns a repository over it. A nil
// codec means compact JSON.
func New[T repository.Model](ctx context.Context, db *bun.DB, c codec.Codec[T], table string, logger *zap.Logger) (*Repository[T], error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("sqlrepo: invalid table name %q", table)
	}
	if c == nil {
		c = codec.NewJSON[T]()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Repository[T]{
		db:      db,
		codec:   c,
		table:   table,
		textual: c.Name() == "json",
		logger:  logger,
	}
	if err := r.createTable(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// NewFromConfig resolves the codec by name and calls New.
func NewFromConfig[T repository.Model](ctx context.Context, db *bun.DB, cfg Config, logger *zap.Logger) (*Repository[T], error) {
	c, err := codec.ByName[T](cfg.Codec)
	if err != nil {
		return nil, err
	}
	return New[T](ctx, db, c, cfg.Table, logger)
}

func (r *Repository[T]) createTable(ctx context.Context) error {
	dataType := "TEXT"
	if !r.textual {
		dataType = "BLOB"
		if r.db.Dialect().Name() == dialect.PG {
			dataType = "BYTEA"
		}
	}

	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS ? (id TEXT PRIMARY KEY, data %s NOT NULL)", dataType),
		bun.Ident(r.table),
	)
	if err != nil {
		return r.fail("create table", err)
	}
	return nil
}

// Table returns the table name.
func (r *Repository[T]) Table() string {
	return r.table
}

func (r *Repository[T]) fail(op string, err error) error {
	r.logger.Warn("sql repository operation failed",
		zap.String("table", r.table),
		zap.String("op", op),
		zap.Error(err),
	)
	return repository.StorageFailure(backendName, op, err)
}

func (r *Repository[T]) payload(model T) (any, error) {
	data, err := r.codec.Encode(model)
	if err != nil {
		return nil, err
	}
	if r.textual {
		return string(data), nil
	}
	return data, nil
}

// Create inserts model or replaces the row with the same id.
func (r *Repository[T]) Create(ctx context.Context, model T) error {
	data, err := r.payload(model)
	if err != nil {
		return r.fail("encode", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO ? (id, data) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data",
		bun.Ident(r.table), model.GetID(), data,
	)
	if err != nil {
		return r.fail("insert", err)
	}
	return nil
}

// Exists reports whether id is stored.
func (r *Repository[T]) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := r.db.NewRaw("SELECT COUNT(*) FROM ? WHERE id = ?", bun.Ident(r.table), id).Scan(ctx, &n)
	if err != nil {
		return false, r.fail("count", err)
	}
	return n > 0, nil
}

// Find returns the model stored under id.
func (r *Repository[T]) Find(ctx context.Context, id string) (T, bool, error) {
	return r.first(ctx, Where("id = ?", id))
}

func (r *Repository[T]) first(ctx context.Context, where Criteria) (T, bool, error) {
	var zero T
	models, err := r.query(ctx, where, 1)
	if err != nil || len(models) == 0 {
		return zero, false, err
	}
	return models[0], true, nil
}

// query selects rows matching where, ordered by id, and decodes them.
func (r *Repository[T]) query(ctx context.Context, where Criteria, limit int) ([]T, error) {
	if repository.Reached(0, limit) {
		return nil, nil
	}

	q := "SELECT id, data FROM ?"
	args := []any{bun.Ident(r.table)}
	if where.Query != "" {
		q += " WHERE " + where.Query
		args = append(args, where.Args...)
	}
	q += " ORDER BY id"
	if !repository.Unbounded(limit) {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []row
	if err := r.db.NewRaw(q, args...).Scan(ctx, &rows); err != nil {
		return nil, r.fail("select", err)
	}
	return r.decode(rows)
}

func (r *Repository[T]) decode(rows []row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, rw := range rows {
		model, err := r.codec.Decode(rw.Data)
		if err != nil {
			return out, r.fail("decode", err)
		}
		out = append(out, model)
	}
	return out, nil
}

// FindByQuery translates query into a WHERE clause.
func (r *Repository[T]) FindByQuery(ctx context.Context, query repository.Query) (T, bool, error) {
	var zero T
	models, err := r.FindManyByQuery(ctx, query, 1)
	if err != nil || len(models) == 0 {
		return zero, false, err
	}
	return models[0], true, nil
}

// FindMany returns the models stored under ids, up to limit.
func (r *Repository[T]) FindMany(ctx context.Context, ids []string, limit int) ([]T, error) {
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	return r.query(ctx, Where("id IN (?)", bun.In(ids)), limit)
}

// FindManyByQuery returns up to limit models matching query.
func (r *Repository[T]) FindManyByQuery(ctx context.Context, query repository.Query, limit int) ([]T, error) {
	switch q := query.(type) {
	case repository.IDQuery:
		return r.query(ctx, Where("id = ?", string(q)), limit)
	case repository.NativeQuery:
		if where, ok := q.Value.(Criteria); ok {
			return r.query(ctx, where, limit)
		}
	case repository.PredicateQuery[T]:
		match, err := repository.Matcher[T](backendName, query)
		if err != nil {
			return nil, err
		}
		all, err := r.query(ctx, Criteria{}, repository.NoLimit)
		if err != nil {
			return nil, err
		}
		return repository.Filter(all, match, limit), nil
	}
	return nil, repository.UnsupportedQuery(backendName, query)
}

// FindAll returns every stored model.
func (r *Repository[T]) FindAll(ctx context.Context) ([]T, error) {
	return r.query(ctx, Criteria{}, repository.NoLimit)
}

// Delete removes id. Missing ids are not an error.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	return r.DeleteMany(ctx, []string{id})
}

// DeleteByQuery removes the first row matching query.
func (r *Repository[T]) DeleteByQuery(ctx context.Context, query repository.Query) error {
	return r.DeleteManyByQuery(ctx, query, 1)
}

// DeleteMany removes every id in ids.
func (r *Repository[T]) DeleteMany(ctx context.Context, ids []string) error {
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, "DELETE FROM ? WHERE id IN (?)", bun.Ident(r.table), bun.In(ids))
	if err != nil {
		return r.fail("delete", err)
	}
	return nil
}

// DeleteManyByQuery resolves the ids of up to limit matches in id order,
// then deletes them.
func (r *Repository[T]) DeleteManyByQuery(ctx context.Context, query repository.Query, limit int) error {
	models, err := r.FindManyByQuery(ctx, query, limit)
	if err != nil {
		return err
	}
	return r.DeleteMany(ctx, repository.IDs(models))
}
