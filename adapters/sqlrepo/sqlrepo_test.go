package sqlrepo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-model-repository/codec"
	"github.com/goliatone/go-model-repository/pkg/testsupport"
	"github.com/goliatone/go-model-repository/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type User = testsupport.User

func openSQLite(t *testing.T) *bun.DB {
	t.Helper()

	db, err := Open(Config{
		Driver: DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "models.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func byNameJSON(name string) repository.Query {
	return repository.Native(Where("json_extract(data, '$.name') = ?", name))
}

func TestRepositoryContract_SQLiteJSON(t *testing.T) {
	testsupport.RunRepositoryContract(t, func(t *testing.T) repository.Repository[User] {
		repo, err := New[User](context.Background(), openSQLite(t), nil, "users", nil)
		require.NoError(t, err)
		return repo
	}, testsupport.Capabilities{Predicate: true, ByName: byNameJSON})
}

func TestRepositoryContract_SQLiteMsgpack(t *testing.T) {
	testsupport.RunRepositoryContract(t, func(t *testing.T) repository.Repository[User] {
		repo, err := New[User](context.Background(), openSQLite(t), codec.NewMsgpack[User](), "users", nil)
		require.NoError(t, err)
		return repo
	}, testsupport.Capabilities{Predicate: true})
}

func TestRepositoryContract_Postgres(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}

	testsupport.RunRepositoryContract(t, func(t *testing.T) repository.Repository[User] {
		db, err := Open(Config{Driver: DriverPostgres, DSN: dsn})
		require.NoError(t, err)

		ctx := context.Background()
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS ?", bun.Ident("sqlrepo_users"))
		require.NoError(t, err)
		t.Cleanup(func() {
			db.ExecContext(ctx, "DROP TABLE IF EXISTS ?", bun.Ident("sqlrepo_users"))
			db.Close()
		})

		repo, err := New[User](ctx, db, nil, "sqlrepo_users", nil)
		require.NoError(t, err)
		return repo
	}, testsupport.Capabilities{
		Predicate: true,
		ByName: func(name string) repository.Query {
			return repository.Native(Where("(data::jsonb)->>'name' = ?", name))
		},
	})
}

func TestNew_InvalidTable(t *testing.T) {
	for _, table := range []string{"", "users; DROP TABLE x", "1users", "a-b"} {
		_, err := New[User](context.Background(), openSQLite(t), nil, table, nil)
		assert.Error(t, err, table)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Table = "people"
	cfg.Codec = "msgpack"

	repo, err := NewFromConfig[User](context.Background(), openSQLite(t), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "people", repo.Table())

	cfg.Codec = "yaml"
	_, err = NewFromConfig[User](context.Background(), openSQLite(t), cfg, nil)
	assert.Error(t, err)
}

func TestStoredAsJSONText(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	repo, err := New[User](ctx, db, nil, "users", nil)
	require.NoError(t, err)

	require.NoError(t, repo.Create(ctx, User{ID: "user-1", Name: "Alice", Age: 31}))

	var data string
	require.NoError(t, db.NewRaw("SELECT data FROM ? WHERE id = ?", bun.Ident("users"), "user-1").Scan(ctx, &data))
	assert.JSONEq(t, `{"id":"user-1","name":"Alice","age":31}`, data)
}

func TestCriteria_Limit(t *testing.T) {
	ctx := context.Background()
	repo, err := New[User](ctx, openSQLite(t), nil, "users", nil)
	require.NoError(t, err)

	require.NoError(t, repository.CreateMany(ctx, repo, testsupport.Users(5, "bulk")))

	older := repository.Native(Where("json_extract(data, '$.age') >= ?", 22))

	found, err := repo.FindManyByQuery(ctx, older, 2)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	require.NoError(t, repo.DeleteManyByQuery(ctx, older, 2))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestClosedDatabase_StorageFailure(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	repo, err := New[User](ctx, db, nil, "users", nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	err = repo.Create(ctx, testsupport.NewUser("late"))
	assert.True(t, repository.IsStorageFailure(err))

	_, _, err = repo.Find(ctx, "any")
	assert.True(t, repository.IsStorageFailure(err))
}
